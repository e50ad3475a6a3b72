package interfaces

import (
	"context"
	"time"

	"github.com/ternarybob/colligo/internal/models"
)

// Delivery is one claimed queue message plus its broker bookkeeping. The
// broker is at-least-once with late acknowledgment: Ack only after the stage
// executor returns successfully. A worker crash before Ack causes redelivery
// once the visibility timeout lapses.
type Delivery struct {
	Message models.TaskMessage

	// Attempt is the 1-based receive count for this message, including the
	// current delivery. Attempt 1 is the initial execution.
	Attempt int

	// Ack removes the message from the queue after successful processing.
	Ack func() error

	// Retry reschedules the message for redelivery after the given delay,
	// used by the per-stage backoff policy.
	Retry func(delay time.Duration) error
}

// QueueManager is the persistent task broker. Receive returns
// models.ErrNoMessage when no message is currently visible.
type QueueManager interface {
	Enqueue(ctx context.Context, msg models.TaskMessage) error
	Receive(ctx context.Context) (*Delivery, error)
	Close() error
}
