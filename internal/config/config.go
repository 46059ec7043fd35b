// Package config provides configuration management for orphan-spawner
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"orphan-spawner/internal/checker"
	"orphan-spawner/internal/constants"
	"orphan-spawner/pkg/models"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is the default path to the configuration file
	DefaultConfigFile = "/etc/orphan-spawner/config.yml"
	// DefaultLogFile is the default log destination
	DefaultLogFile = "console"
	// DefaultLogLevel is the default logging level
	DefaultLogLevel = constants.LogLevelInfo
	// DefaultResultTimeout bounds how long a synchronous spawn waits
	DefaultResultTimeout = 10 * time.Second
)

// Manager handles configuration management
type Manager struct {
	config     *models.Config
	configFile string
}

// New creates a new configuration manager
func New() *Manager {
	return &Manager{
		config:     Defaults(),
		configFile: DefaultConfigFile,
	}
}

// Defaults returns the built-in configuration
func Defaults() *models.Config {
	return &models.Config{
		EnvKey:        constants.DefaultEnvKey,
		NiceName:      constants.DefaultNiceName,
		FdFlag:        constants.DefaultFdFlag,
		ResultTimeout: DefaultResultTimeout,
		LogFile:       DefaultLogFile,
		LogLevel:      DefaultLogLevel,
		Checker: models.CheckerConfig{
			TouchPath: checker.DefaultTouchPath,
			Settle:    checker.DefaultSettle,
		},
	}
}

// SetConfigFile sets the path to the config file (called from CLI flag)
func (m *Manager) SetConfigFile(path string) {
	m.configFile = path
}

// GetConfigFile returns the path to the config file
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// LoadConfig loads configuration from file and ORPHAN_SPAWNER_* variables.
// A missing file leaves the defaults in place.
func (m *Manager) LoadConfig() error {
	v := viper.New()
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, m.config)

	if _, err := os.Stat(m.configFile); err == nil {
		v.SetConfigFile(m.configFile)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error checking config file: %w", err)
	}

	if err := v.Unmarshal(m.config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	if m.config.FdFlag == "" {
		m.config.FdFlag = constants.DefaultFdFlag
	}
	if m.config.ResultTimeout <= 0 {
		m.config.ResultTimeout = DefaultResultTimeout
	}

	return m.Validate()
}

// Validate reports every invalid field at once
func (m *Manager) Validate() error {
	var result *multierror.Error
	c := m.config

	if c.EnvKey != "" && strings.ContainsAny(c.EnvKey, "= \t\n") {
		result = multierror.Append(result, fmt.Errorf("invalid env_key %q", c.EnvKey))
	}
	if c.EnvKey == "" && c.EnvValue != "" {
		result = multierror.Append(result, errors.New("env_value set without env_key"))
	}
	if !strings.HasPrefix(c.FdFlag, "-") {
		result = multierror.Append(result, fmt.Errorf("invalid fd_flag %q: must start with '-'", c.FdFlag))
	}
	if c.Image != "" && !filepath.IsAbs(c.Image) {
		result = multierror.Append(result, fmt.Errorf("image must be an absolute path: %s", c.Image))
	}
	if c.Linger < 0 {
		result = multierror.Append(result, fmt.Errorf("invalid linger: %s", c.Linger))
	}
	if c.Checker.Settle < 0 {
		result = multierror.Append(result, fmt.Errorf("invalid checker.settle: %s", c.Checker.Settle))
	}
	switch c.LogLevel {
	case constants.LogLevelDebug, constants.LogLevelInfo, constants.LogLevelWarn, constants.LogLevelError:
	default:
		result = multierror.Append(result, fmt.Errorf("invalid log_level %q", c.LogLevel))
	}

	return result.ErrorOrNil()
}

// SaveConfig saves configuration to file
func (m *Manager) SaveConfig() error {
	if err := m.setupDirectories(); err != nil {
		return err
	}

	configViper := viper.New()
	configViper.Set("image", m.config.Image)
	configViper.Set("env_key", m.config.EnvKey)
	configViper.Set("env_value", m.config.EnvValue)
	configViper.Set("nice_name", m.config.NiceName)
	configViper.Set("fd_flag", m.config.FdFlag)
	configViper.Set("kill_parent", m.config.KillParent)
	configViper.Set("result_timeout", m.config.ResultTimeout.String())
	configViper.Set("linger", m.config.Linger.String())
	configViper.Set("log_file", m.config.LogFile)
	configViper.Set("log_level", m.config.LogLevel)
	configViper.Set("checker.touch_path", m.config.Checker.TouchPath)
	configViper.Set("checker.settle", m.config.Checker.Settle.String())

	if err := configViper.WriteConfigAs(m.configFile); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// setDefaults registers every key so AutomaticEnv can override keys that
// the file does not mention
func setDefaults(v *viper.Viper, c *models.Config) {
	v.SetDefault("image", c.Image)
	v.SetDefault("env_key", c.EnvKey)
	v.SetDefault("env_value", c.EnvValue)
	v.SetDefault("nice_name", c.NiceName)
	v.SetDefault("fd_flag", c.FdFlag)
	v.SetDefault("kill_parent", c.KillParent)
	v.SetDefault("result_timeout", c.ResultTimeout)
	v.SetDefault("linger", c.Linger)
	v.SetDefault("log_file", c.LogFile)
	v.SetDefault("log_level", c.LogLevel)
	v.SetDefault("checker.touch_path", c.Checker.TouchPath)
	v.SetDefault("checker.settle", c.Checker.Settle)
}

// setupDirectories creates the config directory with 0750 permissions
func (m *Manager) setupDirectories() error {
	dir := filepath.Dir(m.configFile)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("error creating directory %s: %w", dir, err)
	}
	return nil
}
