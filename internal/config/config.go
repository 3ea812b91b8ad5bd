// Package config loads optional on-disk defaults via github.com/spf13/viper,
// grounded directly on the teacher's device.LoadDMGConfig /
// disk.LoadDMGConfig (internal/device/dmg.go, internal/disk/dmg.go):
// same SetConfigName/AddConfigPath/SetEnvPrefix/AutomaticEnv shape, same
// "missing config file is fine, fall back to defaults" handling.
//
// CLI flags always win. cmd/ddrescue applies HardBS and Cluster from here
// when --sector-size / --cluster-size are left unset; the other fields are
// loaded but not applied to any flag.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Defaults holds the subset of rescue-tool flags that can be preset from a
// config file (spec §6.2).
type Defaults struct {
	HardBS      int     `mapstructure:"hard_bs"`
	Cluster     int     `mapstructure:"cluster"`
	SkipBS      int64   `mapstructure:"skip_bs"`
	MaxSkipBS   int64   `mapstructure:"max_skip_bs"`
	MinReadRate float64 `mapstructure:"min_read_rate"`
	MaxReadRate float64 `mapstructure:"max_read_rate"`
	MaxErrorRate float64 `mapstructure:"max_error_rate"`
	MaxRetries  int     `mapstructure:"max_retries"`
	Timeout     string  `mapstructure:"timeout"`
	LogRates    string  `mapstructure:"log_rates"`
	LogReads    string  `mapstructure:"log_reads"`
}

// Load reads ddrescue-config.yaml from the current directory, ./config,
// $HOME/.ddrescue, or /etc/ddrescue, falling back to built-in defaults if
// no config file is present.
func Load() (*Defaults, error) {
	v := viper.New()
	v.SetConfigName("ddrescue-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.ddrescue")
	v.AddConfigPath("/etc/ddrescue")

	v.SetDefault("hard_bs", 512)
	v.SetDefault("cluster", 128)
	v.SetDefault("skip_bs", 0)
	v.SetDefault("max_skip_bs", 0)
	v.SetDefault("min_read_rate", 0)
	v.SetDefault("max_read_rate", 0)
	v.SetDefault("max_error_rate", 0)
	v.SetDefault("max_retries", 0)
	v.SetDefault("timeout", "")
	v.SetDefault("log_rates", "")
	v.SetDefault("log_reads", "")

	v.SetEnvPrefix("DDRESCUE")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, defaults above apply.
	}

	var d Defaults
	if err := v.Unmarshal(&d); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &d, nil
}
