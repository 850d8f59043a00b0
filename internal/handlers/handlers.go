package handlers

import (
	"github.com/go-playground/validator/v10"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/dispatcher"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

type Handlers struct {
	storage       abstractions.Storage
	validate      *validator.Validate
	dispatcher    *dispatcher.Dispatcher
	serviceConfig *config.Config
}

func New(storage abstractions.Storage, validate *validator.Validate, dispatcher *dispatcher.Dispatcher, serviceConfig *config.Config) *Handlers {
	return &Handlers{
		storage:       storage,
		validate:      validate,
		dispatcher:    dispatcher,
		serviceConfig: serviceConfig,
	}
}

func (h *Handlers) engineDefaults() (defaults api.WorkflowEngineParams) {
	if h.serviceConfig != nil && h.serviceConfig.Engine != nil {
		defaults = h.serviceConfig.Engine.Defaults
	}
	return defaults
}
