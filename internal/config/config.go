package config

import "time"

type Config struct {
	Service    *ServiceConfig    `mapstructure:"service"`
	Database   *map[string]any   `mapstructure:"database"`
	Engine     *EngineConfig     `mapstructure:"engine"`
	Dispatcher *DispatcherConfig `mapstructure:"dispatcher"`
	Events     *EventsConfig     `mapstructure:"events"`
	Tracing    *TracingConfig    `mapstructure:"tracing"`
}

type DispatcherConfig struct {
	// AckTimeout bounds how long a submission waits for the engine to acknowledge the launch.
	AckTimeout            time.Duration `mapstructure:"ack_timeout"`
	// MaxConcurrentLaunches bounds runs between LAUNCHING and RUNNING.
	MaxConcurrentLaunches int `mapstructure:"max_concurrent_launches"`
	// RunTimeout bounds the whole run, zero means no limit.
	RunTimeout time.Duration `mapstructure:"run_timeout"`
}

type EventsConfig struct {
	Webhook *WebhookConfig `mapstructure:"webhook"`
	Redis   *RedisConfig   `mapstructure:"redis"`
}

type WebhookConfig struct {
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
	Timeout time.Duration     `mapstructure:"timeout"`
	Retries int               `mapstructure:"retries"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	Channel string        `mapstructure:"channel"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retries int           `mapstructure:"retries"`
}

type TracingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Exporter is one of stdout, otlp-http or otlp-grpc.
	Exporter string `mapstructure:"exporter"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
	// Logs also exports the service logs as OpenTelemetry log records on stdout.
	Logs bool `mapstructure:"logs"`
}

// GetDispatcherConfig returns the dispatcher settings with defaults applied.
func (c *Config) GetDispatcherConfig() DispatcherConfig {
	conf := DispatcherConfig{}
	if c != nil && c.Dispatcher != nil {
		conf = *c.Dispatcher
	}
	if conf.AckTimeout <= 0 {
		conf.AckTimeout = 30 * time.Second
	}
	if conf.MaxConcurrentLaunches <= 0 {
		conf.MaxConcurrentLaunches = 10
	}
	return conf
}
