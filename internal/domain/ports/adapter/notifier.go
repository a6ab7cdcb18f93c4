package adapter

import "context"

// Notifier is a best-effort outbound channel for operational events.
// Implementations must be non-blocking from the caller's point of view;
// failures are swallowed and logged, never returned to the request path.
type Notifier interface {
	Notify(ctx context.Context, text string)
}
