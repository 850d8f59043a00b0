package runtimes

import (
	"log/slog"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/runtimes/k8s"
	"github.com/wes-dispatch/wes-dispatch/internal/runtimes/local"
)

func NewRuntime(logger *slog.Logger, serviceConfig *config.Config) (abstractions.Runtime, error) {

	var runtime abstractions.Runtime
	var err error

	if serviceConfig.Service.LocalMode {
		runtime, err = local.NewLocalRuntime(logger, serviceConfig.Engine)
	} else {
		runtime, err = k8s.NewK8sRuntime(logger, serviceConfig.Engine)
	}

	return runtime, err
}
