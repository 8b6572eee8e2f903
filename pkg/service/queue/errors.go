package queue

import (
	"fmt"

	"github.com/pkg/errors"
)

// Errors returned for invalid arguments to an insert. They are returned before
// any storage call is made.
var (
	ErrInvalidPayload     = errors.New("value must be a string")
	ErrInvalidPriority    = errors.New("priority must be an integer")
	ErrInvalidDescription = errors.New("description must be a map with string keys")
)

// ErrInsertFailed classifies storage failures during an insert. It is never
// returned by Insert; it is wrapped into the message sent to the reporter.
var ErrInsertFailed = errors.New("insert failed")

// ConfigurationError reports an invalid queue Definition.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid queue definition: %s %s", e.Field, e.Reason)
}

// IsConfigurationError reports whether the cause of err is a
// *ConfigurationError.
func IsConfigurationError(err error) bool {
	_, ok := errors.Cause(err).(*ConfigurationError)
	return ok
}
