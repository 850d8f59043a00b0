package abstractions

import "github.com/wes-dispatch/wes-dispatch/internal/messages"

// ServiceError is a failure raised by the service itself (unknown run, bad
// query, storage conflict) as opposed to one reported by the workflow engine.
// The caller-facing message is rendered from MessageCode and MessageParams by
// the global error handler; Error() is for logs.
type ServiceError interface {
	Error() string
	MessageCode() *messages.MessageCode
	MessageParams() []any
	// Status is the HTTP status of the message code.
	Status() int
	// ShouldRollback reports whether a storage transaction failing with this
	// error must be rolled back.
	ShouldRollback() bool
}
