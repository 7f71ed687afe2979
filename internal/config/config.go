// Package config loads the demo host's process configuration: which demo
// model classes to register, how long to run the scheduler, and the
// addresses of the control-plane/HTTP/websocket surfaces.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the demo host's process configuration.
type Config struct {
	// RunFor is how much virtual time the demo host's sim loop advances
	// before it stops on its own. Zero means the loop runs until the host
	// is stopped.
	RunFor time.Duration `mapstructure:"run_for"`

	// DemoClasses lists which internal/demomodel UIDs cmd/quartzsim
	// registers and instantiates at startup.
	DemoClasses []string `mapstructure:"demo_classes"`

	GRPCAddr string `mapstructure:"grpc_addr"`
	HTTPAddr string `mapstructure:"http_addr"`
	WSAddr   string `mapstructure:"ws_addr"`

	Dashboard bool `mapstructure:"dashboard"`
}

// Load reads configuration from (in ascending precedence) defaults, a
// config file named by --config_file or ./quartzsim.yaml if present, and
// QUARTZSIM_-prefixed environment variables.
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("run_for", 0)
	v.SetDefault("demo_classes", []string{"quartz.demo.Ping", "quartz.demo.Pong"})
	v.SetDefault("grpc_addr", ":7070")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("ws_addr", ":8081")
	v.SetDefault("dashboard", false)

	v.SetEnvPrefix("quartzsim")
	v.AutomaticEnv()

	var configFile string
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("config: bind flags: %w", err)
		}
		configFile, _ = flags.GetString("config_file")
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("quartzsim")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}
