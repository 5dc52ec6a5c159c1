package stage

import (
	"context"

	"evidentia/internal/queue"
)

// Handler describes the contract the workflow manager needs from each
// pipeline stage. Prepare validates inputs before any external work starts;
// Execute performs the stage and mutates the item in place. The manager
// persists the item after a successful Execute.
type Handler interface {
	Prepare(context.Context, *queue.Item) error
	Execute(context.Context, *queue.Item) error
	HealthCheck(context.Context) Health
}
