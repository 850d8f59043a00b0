package k8s

// Runtime entrypoints for Kubernetes job creation.
import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/wes-dispatch/wes-dispatch/internal/abstractions"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/internal/metadata"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

type K8sRuntime struct {
	logger *slog.Logger
	helper *KubernetesHelper
	engine *config.EngineConfig
	ctx    context.Context
}

// NewK8sRuntime creates a Kubernetes runtime.
func NewK8sRuntime(logger *slog.Logger, engineConfig *config.EngineConfig) (abstractions.Runtime, error) {
	helper, err := NewKubernetesHelper()
	if err != nil {
		return nil, err
	}
	if engineConfig == nil {
		engineConfig = &config.EngineConfig{}
	}
	return &K8sRuntime{logger: logger, helper: helper, engine: engineConfig, ctx: context.Background()}, nil
}

func (r *K8sRuntime) WithLogger(logger *slog.Logger) abstractions.Runtime {
	return &K8sRuntime{
		logger: logger,
		helper: r.helper,
		engine: r.engine,
		ctx:    r.ctx,
	}
}

func (r *K8sRuntime) WithContext(ctx context.Context) abstractions.Runtime {
	return &K8sRuntime{
		logger: r.logger,
		helper: r.helper,
		engine: r.engine,
		ctx:    ctx,
	}
}

// Launch creates the run's ConfigMap and Job. The returned handle watches the
// engine driver pod until it reaches a terminal phase.
func (r *K8sRuntime) Launch(params *api.RunParams, tracker *metadata.Tracker) (abstractions.LaunchHandle, error) {
	ctx := r.ctx
	cfg, err := buildJobConfig(params, r.engine)
	if err != nil {
		r.logger.Error("kubernetes job config error", "error", err)
		return nil, &engine.IllegalConfigError{Message: err.Error()}
	}

	r.recordLaunch(cfg, params, tracker)

	configMap := buildConfigMap(cfg)
	job, err := buildJob(cfg)
	if err != nil {
		r.logger.Error("kubernetes job build error", "error", err)
		return nil, &engine.IllegalConfigError{Message: err.Error()}
	}
	r.logger.Debug("kubernetes resource", "kind", "ConfigMap", "object", configMap)
	r.logger.Debug("kubernetes resource", "kind", "Job", "object", job)

	_, err = r.helper.CreateConfigMap(ctx, configMap.Namespace, configMap.Name, configMap.Data, &CreateConfigMapOptions{
		Labels:      configMap.Labels,
		Annotations: configMap.Annotations,
	})
	if err != nil {
		r.logger.Error("kubernetes configmap create error", "namespace", configMap.Namespace, "name", configMap.Name, "error", err)
		return nil, classifyAPIError(err, "create configmap "+configMap.Name)
	}

	createdJob, err := r.helper.CreateJob(ctx, job)
	if err != nil {
		r.logger.Error("kubernetes job create error", "namespace", job.Namespace, "name", job.Name, "error", err)
		cleanupErr := r.helper.DeleteConfigMap(ctx, configMap.Namespace, configMap.Name)
		if cleanupErr != nil && !apierrors.IsNotFound(cleanupErr) {
			r.logger.Error("failed to delete configmap after job creation error", "error", cleanupErr)
		}
		return nil, classifyAPIError(err, "create job "+job.Name)
	}
	ownerRef := metav1.OwnerReference{
		APIVersion: "batch/v1",
		Kind:       "Job",
		Name:       createdJob.Name,
		UID:        createdJob.UID,
		Controller: boolPtr(true),
	}
	if err := r.helper.SetConfigMapOwner(ctx, configMap.Namespace, configMap.Name, ownerRef); err != nil {
		r.logger.Error("failed to set configmap owner reference", "namespace", configMap.Namespace, "name", configMap.Name, "error", err)
	}
	r.logger.Info("kubernetes job created", "namespace", createdJob.Namespace, "name", createdJob.Name)

	return &jobHandle{
		logger:       r.logger,
		helper:       r.helper,
		tracker:      tracker,
		namespace:    createdJob.Namespace,
		name:         createdJob.Name,
		selector:     runSelector(cfg.runID),
		backoffLimit: cfg.backoffLimit,
		failedPods:   map[string]bool{},
	}, nil
}

func (r *K8sRuntime) recordLaunch(cfg *jobConfig, params *api.RunParams, tracker *metadata.Tracker) {
	var configFiles []string
	if r.engine.ConfigFile != "" {
		configFiles = append(configFiles, r.engine.ConfigFile)
	}
	if cfg.engineConfig != "" {
		configFiles = append(configFiles, engineConfigMountPath)
	}
	workDir := params.EngineParams.WorkDir
	if workDir == "" {
		workDir = workMountPath
	}
	launchDir := cfg.workingDir
	if launchDir == "" {
		launchDir = workMountPath
	}
	err := tracker.RecordLaunch(metadata.LaunchFacts{
		CommandLine: engine.CommandLine(cfg.command),
		Engine:      engine.EngineName,
		Profile:     params.EngineParams.Profile,
		Revision:    params.EngineParams.Revision,
		RunName:     params.EngineParams.RunName,
		SessionID:   params.EngineParams.Resume,
		Repository:  params.WorkflowURL,
		ProjectDir:  params.EngineParams.ProjectDir,
		LaunchDir:   launchDir,
		WorkDir:     workDir,
		ConfigFiles: configFiles,
	})
	if err != nil {
		r.logger.Warn("Failed to record the launch metadata", "error", err.Error())
	}
}

// classifyAPIError maps Kubernetes API failures onto engine failure types.
// Anything it does not recognise is returned wrapped and stays unclassified.
func classifyAPIError(err error, operation string) error {
	message := fmt.Sprintf("%s: %s", operation, err.Error())
	switch {
	case apierrors.IsServiceUnavailable(err),
		apierrors.IsServerTimeout(err),
		apierrors.IsTimeout(err),
		apierrors.IsTooManyRequests(err),
		apierrors.IsInternalError(err):
		return &engine.ClusterUnavailableError{Message: message}
	case apierrors.IsForbidden(err),
		apierrors.IsInvalid(err),
		apierrors.IsBadRequest(err):
		return &engine.IllegalConfigError{Message: message}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &engine.ClusterUnavailableError{Message: message}
	}
	return fmt.Errorf("%s: %w", operation, err)
}

func (r *K8sRuntime) Name() string {
	return "kubernetes"
}
