package pipeline

import (
	"errors"
	"fmt"

	"github.com/ternarybob/colligo/internal/models"
)

// terminalError wraps a stage failure that retrying cannot fix. The
// orchestrator fails the job immediately instead of rescheduling.
type terminalError struct {
	err error
}

func (e *terminalError) Error() string {
	return e.err.Error()
}

func (e *terminalError) Unwrap() error {
	return e.err
}

// Terminal marks an error as non-retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &terminalError{err: err}
}

// Terminalf is Terminal with formatting.
func Terminalf(format string, args ...interface{}) error {
	return &terminalError{err: fmt.Errorf(format, args...)}
}

// IsTerminal reports whether a stage error should bypass the retry policy.
// Missing records are always terminal: a record absent now will not appear
// by trying again.
func IsTerminal(err error) bool {
	var te *terminalError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, models.ErrNotFound)
}
