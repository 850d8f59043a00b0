package config

import "github.com/wes-dispatch/wes-dispatch/pkg/api"

// EngineConfig configures how the workflow engine is launched.
type EngineConfig struct {
	// Binary is the engine executable, used as-is in local mode and as the
	// container command in the cluster.
	Binary string `mapstructure:"binary"`
	// ConfigFile is an optional engine config file passed with -c.
	ConfigFile string `mapstructure:"config_file"`
	// ConfigContent is mounted into the driver pod as the engine config file.
	ConfigContent string `mapstructure:"config_content"`

	Image              string `mapstructure:"image"`
	Namespace          string `mapstructure:"namespace"`
	ServiceAccountName string `mapstructure:"service_account"`
	CPURequest         string `mapstructure:"cpu_request"`
	MemoryRequest      string `mapstructure:"memory_request"`
	CPULimit           string `mapstructure:"cpu_limit"`
	MemoryLimit        string `mapstructure:"memory_limit"`
	BackoffLimit       int32  `mapstructure:"backoff_limit"`
	TTLSecondsAfterEnd int32  `mapstructure:"ttl_seconds_after_finished"`
	// Env is added to the engine driver container.
	Env []api.EnvVar `mapstructure:"env"`

	// Defaults are merged with the engine params of every request, the request wins.
	Defaults api.WorkflowEngineParams `mapstructure:"defaults"`
}
