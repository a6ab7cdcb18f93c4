package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		referralRewards,
	)
}

var referralRewards = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "referral_rewards_total",
		Help: "Referral reward credits by event type.",
	},
	[]string{"event"},
)

func IncReferralReward(event string) {
	referralRewards.WithLabelValues(norm(event)).Inc()
}
