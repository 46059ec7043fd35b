// Package models holds the data types shared between the CLI and the
// internal packages
package models

import "time"

// Config is the on-disk configuration of orphan-spawner
type Config struct {
	// Image replaces the detached process when set
	Image string `mapstructure:"image"`
	// EnvKey and EnvValue define the variable exported to the image
	EnvKey   string `mapstructure:"env_key"`
	EnvValue string `mapstructure:"env_value"`
	// NiceName is the argv[0] and process name the detached process presents
	NiceName string `mapstructure:"nice_name"`
	// FdFlag carries the result descriptor number to the image
	FdFlag     string `mapstructure:"fd_flag"`
	KillParent bool   `mapstructure:"kill_parent"`

	ResultTimeout time.Duration `mapstructure:"result_timeout"`
	Linger        time.Duration `mapstructure:"linger"`

	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`

	Checker CheckerConfig `mapstructure:"checker"`
}

// CheckerConfig configures the built-in tracer check
type CheckerConfig struct {
	TouchPath string        `mapstructure:"touch_path"`
	Settle    time.Duration `mapstructure:"settle"`
}
