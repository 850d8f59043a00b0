package k8s

// Contains the configuration logic that prepares the data needed by the builders
import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/engine"
	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

const (
	defaultCPURequest      = "250m"
	defaultMemoryRequest   = "512Mi"
	defaultCPULimit        = "1"
	defaultMemoryLimit     = "2Gi"
	defaultNamespace       = "default"
	inClusterNamespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"
)

type jobConfig struct {
	runID              string
	namespace          string
	image              string
	serviceAccountName string
	command            []string
	workingDir         string
	backoffLimit       int32
	ttlSeconds         int32
	cpuRequest         string
	memoryRequest      string
	cpuLimit           string
	memoryLimit        string
	paramsJSON         string
	engineConfig       string
	defaultEnv         []api.EnvVar
}

func buildJobConfig(params *api.RunParams, engineConfig *config.EngineConfig) (*jobConfig, error) {
	if params == nil || params.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}
	if engineConfig == nil {
		engineConfig = &config.EngineConfig{}
	}
	if engineConfig.Image == "" {
		return nil, fmt.Errorf("engine image is required")
	}
	if engineConfig.BackoffLimit < 0 {
		return nil, fmt.Errorf("backoff limit cannot be negative")
	}

	workflowParams := params.WorkflowParams
	if workflowParams == nil {
		workflowParams = map[string]any{}
	}
	paramsJSON, err := json.MarshalIndent(workflowParams, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal workflow params: %w", err)
	}

	configFile := engineConfig.ConfigFile
	if engineConfig.ConfigContent != "" {
		configFile = engineConfigMountPath
	}

	ttl := engineConfig.TTLSecondsAfterEnd
	if ttl <= 0 {
		ttl = defaultJobTTLSeconds
	}

	return &jobConfig{
		runID:              params.RunID,
		namespace:          resolveNamespace(engineConfig.Namespace),
		image:              engineConfig.Image,
		serviceAccountName: engineConfig.ServiceAccountName,
		command:            engine.Command(engineConfig.Binary, params, paramsMountPath, configFile),
		workingDir:         params.EngineParams.LaunchDir,
		backoffLimit:       engineConfig.BackoffLimit,
		ttlSeconds:         ttl,
		cpuRequest:         defaultIfEmpty(engineConfig.CPURequest, defaultCPURequest),
		memoryRequest:      defaultIfEmpty(engineConfig.MemoryRequest, defaultMemoryRequest),
		cpuLimit:           defaultIfEmpty(engineConfig.CPULimit, defaultCPULimit),
		memoryLimit:        defaultIfEmpty(engineConfig.MemoryLimit, defaultMemoryLimit),
		paramsJSON:         string(paramsJSON),
		engineConfig:       engineConfig.ConfigContent,
		defaultEnv:         engineConfig.Env,
	}, nil
}

func defaultIfEmpty(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func resolveNamespace(configured string) string {
	if configured != "" {
		return configured
	}
	inClusterNamespace := readInClusterNamespace()
	if inClusterNamespace != "" {
		return inClusterNamespace
	}
	return defaultNamespace
}

func readInClusterNamespace() string {
	content, err := os.ReadFile(inClusterNamespaceFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(content))
}
