package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionActivations,
	)
}

var subscriptionActivations = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "subscription_activations_total",
		Help: "Subscriptions activated from verified payments, by plan type.",
	},
	[]string{"plan_type"},
)

func IncSubscriptionActivation(planType string) {
	subscriptionActivations.WithLabelValues(norm(planType)).Inc()
}
