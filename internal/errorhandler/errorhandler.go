package errorhandler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/classifier"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
	"github.com/wes-dispatch/wes-dispatch/internal/validation"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

// Resolve converts any error into the response returned to the caller. The
// checks are ordered: validation errors first, then service errors, then
// classified engine failures, then everything else.
func Resolve(err error) *api.ErrorResponse {
	if err == nil {
		return nil
	}

	var response *api.ErrorResponse
	if errors.As(err, &response) && response != nil {
		return &api.ErrorResponse{StatusCode: response.StatusCode, Msg: response.Msg}
	}

	var validationErrors *validation.Errors
	if errors.As(err, &validationErrors) {
		return &api.ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Msg:        validationErrors.Error(),
		}
	}

	var serviceError abstractions.ServiceError
	if errors.As(err, &serviceError) {
		return &api.ErrorResponse{
			StatusCode: serviceError.Status(),
			Msg:        messages.GetErrorMessage(serviceError.MessageCode(), serviceError.MessageParams()...),
		}
	}

	if category, ok := classifier.Classify(err); ok {
		return &api.ErrorResponse{
			StatusCode: category.StatusCode,
			Msg:        messages.GetErrorMessage(messages.EngineFailure, "Category", category.Label, "Error", err.Error()),
		}
	}

	return Unresolved(err)
}

// Unresolved renders err with the fallback status, without classification.
func Unresolved(err error) *api.ErrorResponse {
	msg := ""
	if err != nil {
		msg = strings.TrimSpace(err.Error())
	}
	if msg == "" {
		msg = messages.GetErrorMessage(messages.UnknownErrorPlaceholder)
	}
	return &api.ErrorResponse{
		StatusCode: classifier.Unresolved.StatusCode,
		Msg:        msg,
	}
}

// Label returns the category label recorded for err, used for metrics.
func Label(err error) string {
	var validationErrors *validation.Errors
	if errors.As(err, &validationErrors) {
		return classifier.LabelInvalidWorkflow
	}
	return classifier.Resolve(err).Label
}
