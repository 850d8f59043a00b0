package serialization

import (
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/wes-dispatch/wes-dispatch/internal/executioncontext"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
	"github.com/wes-dispatch/wes-dispatch/internal/validation"
)

// Unmarshal decodes the request body into v and validates it. Malformed JSON and
// field violations are both reported as *validation.Errors.
func Unmarshal(validate *validator.Validate, executionContext *executioncontext.ExecutionContext, jsonBytes []byte, v any) error {
	err := json.Unmarshal(jsonBytes, v)
	if err != nil {
		executionContext.Logger.Info("Request body is not valid JSON", "error", err.Error())
		return validation.NewErrors(messages.GetErrorMessage(messages.RequestBodyInvalid, "Error", err.Error()))
	}
	// now validate the unmarshalled data
	err = validation.Validate(executionContext.Ctx, validate, v)
	if err != nil {
		var validationErrors *validation.Errors
		if errors.As(err, &validationErrors) {
			for _, msg := range validationErrors.Messages() {
				executionContext.Logger.Info("Validation error", "error", msg)
			}
		}
		return err
	}
	return nil
}
