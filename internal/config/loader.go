package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/wes-dispatch/wes-dispatch/internal/constants"
)

type EnvMap struct {
	Mappings map[string]string `mapstructure:"mappings,omitempty"`
}

type SecretMap struct {
	Dir      string            `mapstructure:"dir,omitempty"`
	Mappings map[string]string `mapstructure:"mappings,omitempty"`
}

// readConfig locates and reads a configuration file using Viper. It searches for
// a file named "{name}.{ext}" in each of the given directories in order; the first
// found file is read. The returned Viper instance contains the parsed config and
// can be used for further unmarshaling or env binding.
//
// Parameters:
//   - logger: Logger for config load messages (success and failure).
//   - name: Config file base name without extension (e.g., "config").
//   - ext: Config file extension/type (e.g., "yaml"); used by Viper as config type.
//   - dirs: One or more directories to search for the file; first match wins.
//
// Returns:
//   - *viper.Viper: Viper instance with the config loaded, or a new Viper if no file was read.
//   - error: Non-nil if no config file was found in any dir or if reading failed.
func readConfig(logger *slog.Logger, name string, ext string, dirs ...string) (*viper.Viper, error) {
	logger.Info("Reading the configuration file", "file", fmt.Sprintf("%s.%s", name, ext), "dirs", fmt.Sprintf("%v", dirs))

	configValues := viper.New()

	configValues.SetConfigName(name) // name of config file (without extension)
	configValues.SetConfigType(ext)  // REQUIRED if the config file does not have the extension in the name
	for _, dir := range dirs {
		configValues.AddConfigPath(dir)
	}
	err := configValues.ReadInConfig() // Find and read the config file

	if err != nil {
		logger.Error("Failed to read the configuration file", "file", fmt.Sprintf("%s.%s", name, ext), "dirs", fmt.Sprintf("%v", dirs), "error", err.Error())
	} else {
		logger.Info("Read the configuration file", "file", configValues.ConfigFileUsed())
	}

	return configValues, err
}

// LoadConfig loads configuration using a layered system with Viper. This implements
// a loading strategy that supports cascading configuration values and
// multiple sources.
//
// Configuration loading order (later sources override earlier ones):
//  1. config.yaml (config/config.yaml) - Bundled configuration loaded first
//  2. The file named by CONFIG_PATH - Operator configuration merged over the bundled one,
//     a secrets section in this file replaces the bundled secrets section
//  3. Secrets from files - Mapped via secrets.mappings with secrets.dir
//  4. Environment variables - Mapped via env.mappings configuration
//
// Configuration supports:
//   - Environment variable mapping: Define in env.mappings (e.g., PORT → service.port)
//   - Secrets from files: Define in secrets.mappings with secrets.dir (e.g., /tmp/db_password → database.password)
//   - Optional secrets: Append :optional to the secret file name to mark it as optional.
//     If an optional secret file doesn't exist, no error is logged and the configuration
//     continues loading without that secret value.
//
// Example configuration structure:
//
//	env:
//	  mappings:
//	    PORT: service.port
//	secrets:
//	  dir: /tmp
//	  mappings:
//	    db_password: database.password
//	    api_token:optional: events.webhook.headers.authorization
//
// Parameters:
//   - logger: The logger for configuration loading messages
//   - dirs: Directories searched for config.yaml before the default locations
//
// Returns:
//   - *Config: The loaded configuration with all sources applied
//   - error: An error if configuration cannot be loaded or is invalid
func LoadConfig(logger *slog.Logger, version string, build string, buildDate string, dirs ...string) (*Config, error) {
	configValues, err := readConfig(logger, "config", "yaml", append(dirs, "config", "./config", "../../config")...)
	if err != nil {
		return nil, err
	}

	if err := mergeOperatorConfig(logger, configValues); err != nil {
		return nil, err
	}

	// set up the secrets from the secrets directory
	secrets := SecretMap{}
	if err := configValues.UnmarshalKey("secrets", &secrets); err != nil {
		return nil, err
	}
	if secrets.Dir != "" {
		// check that the secrets directory exists
		if _, err := os.Stat(secrets.Dir); !os.IsNotExist(err) {
			for fileName, fieldName := range secrets.Mappings {
				// the secret file name can be optional by appending :optional to the file name
				optional := strings.HasSuffix(fileName, ":optional")
				if optional {
					fileName = strings.TrimSuffix(fileName, ":optional")
				}
				secret, err := getSecret(secrets.Dir, fileName, optional)
				if err != nil {
					// log the error and fail the startup (by returning the error)
					logger.Error("Failed to read secret file", "file", fmt.Sprintf("%s/%s", secrets.Dir, fileName), "error", err.Error())
					return nil, err
				}
				if secret != "" {
					configValues.Set(fieldName, strings.TrimSpace(secret))
				}
			}
		}
	}
	// set up the environment variable mappings
	envMappings := EnvMap{}
	if err := configValues.UnmarshalKey("env", &envMappings); err != nil {
		return nil, err
	}
	for envName, field := range envMappings.Mappings {
		if err := configValues.BindEnv(field, strings.ToUpper(envName)); err != nil {
			return nil, err
		}
		logger.Info("Mapped environment variable", "field_name", field, "env_name", strings.ToUpper(envName))
	}

	conf := Config{}
	if err := configValues.Unmarshal(&conf); err != nil {
		return nil, err
	}

	if conf.Service == nil {
		conf.Service = &ServiceConfig{}
	}
	// set the version, build, and build date
	conf.Service.Version = version
	conf.Service.Build = build
	conf.Service.BuildDate = buildDate
	return &conf, nil
}

// mergeOperatorConfig merges the file named by CONFIG_PATH, when set, over the
// bundled configuration. The operator's secrets section replaces the bundled one
// so that bundled secret mappings never point at files the operator did not mount.
func mergeOperatorConfig(logger *slog.Logger, configValues *viper.Viper) error {
	path := os.Getenv(constants.EnvVarConfigPath)
	if path == "" {
		return nil
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	operatorValues, err := readConfig(logger, name, "yaml", filepath.Dir(path))
	if err != nil {
		return err
	}
	if operatorValues.IsSet("secrets") {
		configValues.Set("secrets", operatorValues.Get("secrets"))
	}
	if err := configValues.MergeConfigMap(operatorValues.AllSettings()); err != nil {
		return err
	}
	logger.Info("Merged the operator configuration", "file", operatorValues.ConfigFileUsed())
	return nil
}

// getSecret reads a secret from a file and returns the value as a string.
// If the file does not exist and optional is false, it logs an error and returns an empty string.
// If the file does not exist and optional is true, it silently returns an empty string.
// If the file cannot be read (permissions, etc.), it always logs an error and returns an empty string.
//
// Parameters:
//   - logger: The logger for logging messages
//   - secretsDir: The directory containing the secret files
//   - secretName: The name of the secret file
//   - optional: If true, missing files won't generate error logs
//
// Returns:
//   - string: The value of the secret as a string, or empty string if file doesn't exist or cannot be read
func getSecret(secretsDir string, secretName string, optional bool) (string, error) {
	// this is the full name of the secrets file to read
	secret, err := os.ReadFile(fmt.Sprintf("%s/%s", secretsDir, secretName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && optional {
			return "", nil
		}
		return "", err
	}
	return string(secret), nil
}
