package validation

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
	"github.com/wes-dispatch/wes-dispatch/internal/messages"
)

// Errors holds every violation found in a request, in field declaration order.
type Errors struct {
	messages []string
}

func NewErrors(msgs ...string) *Errors {
	return &Errors{messages: msgs}
}

func (e *Errors) Error() string {
	return strings.Join(e.messages, " ")
}

func (e *Errors) Messages() []string {
	return append([]string(nil), e.messages...)
}

func (e *Errors) add(msg string) {
	e.messages = append(e.messages, msg)
}

// NewValidator returns a validator that reports fields by their JSON names
// and understands the notblank tag.
func NewValidator() (*validator.Validate, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.RegisterValidation("notblank", validators.NotBlank); err != nil {
		return nil, err
	}
	return validate, nil
}

// Validate checks v against its validate tags and returns nil or an *Errors
// containing one message per failing field. Any other failure of the validator
// itself is returned unchanged.
func Validate(ctx context.Context, validate *validator.Validate, v any) error {
	err := validate.StructCtx(ctx, v)
	if err == nil {
		return nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	result := &Errors{}
	for _, fieldError := range validationErrors {
		result.add(fieldMessage(fieldError))
	}
	return result
}

func fieldMessage(fieldError validator.FieldError) string {
	field := fieldName(fieldError)
	switch fieldError.Tag() {
	case "required", "notblank":
		return messages.GetErrorMessage(messages.RequiredField, "Field", field)
	case "uuid":
		return messages.GetErrorMessage(messages.InvalidField, "Field", field, "Type", "UUID")
	default:
		return messages.GetErrorMessage(messages.InvalidField, "Field", field, "Type", fieldError.Tag())
	}
}

// fieldName drops the top level struct name from the namespace so nested
// fields read as workflow_engine_params.resume.
func fieldName(fieldError validator.FieldError) string {
	ns := fieldError.Namespace()
	if _, rest, found := strings.Cut(ns, "."); found && rest != "" {
		return rest
	}
	return fieldError.Field()
}
