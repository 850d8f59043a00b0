package serviceerrors

import (
	"errors"

	"github.com/wes-dispatch/wes-dispatch/internal/messages"
)

// ServiceError is a catalog message raised by the service. A wrapped cause is
// kept for errors.Is and errors.As, its text fills the {{.Error}} parameter.
type ServiceError struct {
	messageCode   *messages.MessageCode
	messageParams []any
	cause         error
	rollback      bool
}

func NewServiceError(messageCode *messages.MessageCode, messageParams ...any) *ServiceError {
	return &ServiceError{messageCode: messageCode, messageParams: messageParams}
}

// Wrap reports cause with messageCode.
func Wrap(cause error, messageCode *messages.MessageCode, messageParams ...any) *ServiceError {
	params := append(append([]any(nil), messageParams...), "Error", cause.Error())
	return &ServiceError{messageCode: messageCode, messageParams: params, cause: cause}
}

// NotFound is returned for an unknown resource.
func NotFound(resourceType string, resourceID string) *ServiceError {
	return NewServiceError(messages.ResourceNotFound, "Type", resourceType, "ResourceId", resourceID)
}

// DatabaseFailure is returned when reading or writing a single resource fails.
func DatabaseFailure(resourceType string, resourceID string, cause error) *ServiceError {
	return Wrap(cause, messages.DatabaseOperationFailed, "Type", resourceType, "ResourceId", resourceID)
}

// QueryFailure is returned when a query over a collection fails.
func QueryFailure(resourceType string, cause error) *ServiceError {
	return Wrap(cause, messages.QueryFailed, "Type", resourceType)
}

func (e *ServiceError) Error() string {
	return messages.GetErrorMessage(e.messageCode, e.messageParams...)
}

func (e *ServiceError) Unwrap() error {
	return e.cause
}

func (e *ServiceError) MessageCode() *messages.MessageCode {
	return e.messageCode
}

func (e *ServiceError) MessageParams() []any {
	return e.messageParams
}

// Status returns the HTTP status reported for this error.
func (e *ServiceError) Status() int {
	return e.messageCode.GetCode()
}

// ShouldRollback is false unless the error was marked with WithRollback, a
// storage transaction failing with an unmarked service error still commits.
func (e *ServiceError) ShouldRollback() bool {
	return e.rollback
}

// WithRollback returns a copy of e that rolls back the enclosing transaction.
func (e *ServiceError) WithRollback() *ServiceError {
	clone := *e
	clone.rollback = true
	return &clone
}

// HasMessageCode reports whether err is a ServiceError raised with messageCode.
func HasMessageCode(err error, messageCode *messages.MessageCode) bool {
	var serviceError *ServiceError
	return errors.As(err, &serviceError) && serviceError.messageCode == messageCode
}
