package config

type ServiceConfig struct {
	Version         string `mapstructure:"version,omitempty"`
	Build           string `mapstructure:"build,omitempty"`
	BuildDate       string `mapstructure:"build_date,omitempty"`
	Port            int    `mapstructure:"port,omitempty"`
	ReadyFile       string `mapstructure:"ready_file"`
	TerminationFile string `mapstructure:"termination_file"`
	LocalMode       bool   `mapstructure:"local_mode,omitempty"`
	// SupportedWorkflowTypes is reported by the service-info endpoint, keyed by type with its versions.
	SupportedWorkflowTypes map[string][]string `mapstructure:"supported_workflow_types,omitempty"`
	// AuthInstructionsURL is reported by service-info.
	AuthInstructionsURL string `mapstructure:"auth_instructions_url,omitempty"`
}
