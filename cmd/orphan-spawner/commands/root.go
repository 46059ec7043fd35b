// Package commands implements the orphan-spawner command line interface
package commands

import (
	"orphan-spawner/internal/config"
	"orphan-spawner/internal/logging"

	"github.com/spf13/cobra"
)

var (
	cfgManager *config.Manager
	logger     = logging.New()

	configFile string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "orphan-spawner",
	Short: "Start fully detached processes and collect their first result",
	Long: `orphan-spawner starts a process through a double fork so that it is
reparented away from the caller, optionally replaces it with another program
image under a chosen name and environment, and reads back a single result
(a pid or an errno) through a pipe.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initialize(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", config.DefaultConfigFile, "path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "log file path, or \"console\" for stderr")
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logger.WithError(err).Error("Command failed")
	}
	return err
}

func initialize(cmd *cobra.Command) error {
	cfgManager = config.New()
	cfgManager.SetConfigFile(configFile)
	if err := cfgManager.LoadConfig(); err != nil {
		return err
	}

	cfg := cfgManager.GetConfig()
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = logFile
	}

	if err := logging.Init(logger, cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	logger.WithField("config_file", cfgManager.GetConfigFile()).Debug("Configuration loaded")
	return nil
}
