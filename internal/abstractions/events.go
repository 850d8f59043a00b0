package abstractions

import (
	"context"

	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// EventSender publishes run lifecycle events. Delivery is best effort, callers
// log failures and carry on.
type EventSender interface {
	Name() string
	Send(ctx context.Context, event *api.RunEvent) error
	Close() error
}
