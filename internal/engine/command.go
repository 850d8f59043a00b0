package engine

import (
	"strings"

	"github.com/wes-dispatch/wes-dispatch/pkg/api"
)

const (
	DefaultBinary = "nextflow"
	EngineName    = "nextflow"
)

// Command builds the argument vector the engine driver runs for params.
// paramsFile is the path where the workflow params are made available to the engine,
// configFile is optional.
func Command(binary string, params *api.RunParams, paramsFile string, configFile string) []string {
	if binary == "" {
		binary = DefaultBinary
	}
	args := []string{binary}
	if configFile != "" {
		args = append(args, "-c", configFile)
	}
	args = append(args, "run", params.WorkflowURL)
	if paramsFile != "" {
		args = append(args, "-params-file", paramsFile)
	}
	engineParams := params.EngineParams
	if engineParams.RunName != "" {
		args = append(args, "-name", engineParams.RunName)
	}
	if engineParams.Profile != "" {
		args = append(args, "-profile", engineParams.Profile)
	}
	if engineParams.Revision != "" {
		args = append(args, "-r", engineParams.Revision)
	}
	if engineParams.Latest {
		args = append(args, "-latest")
	}
	if engineParams.Resume != "" {
		args = append(args, "-resume", engineParams.Resume)
	}
	if engineParams.WorkDir != "" {
		args = append(args, "-w", engineParams.WorkDir)
	}
	if engineParams.ContainerEngine != "" {
		args = append(args, "-with-"+strings.ToLower(engineParams.ContainerEngine))
	}
	return args
}

// CommandLine renders args as a single shell-style line, quoting arguments
// that contain whitespace or quotes.
func CommandLine(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "" || strings.ContainsAny(arg, " \t\n'\"") {
			arg = "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
		}
		quoted = append(quoted, arg)
	}
	return strings.Join(quoted, " ")
}
