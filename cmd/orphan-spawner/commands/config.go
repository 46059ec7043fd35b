package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or initialize the configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := cfgManager.GetConfig()
		fmt.Printf("Configuration file: %s\n", cfgManager.GetConfigFile())
		fmt.Printf("image:          %s\n", cfg.Image)
		fmt.Printf("env_key:        %s\n", cfg.EnvKey)
		fmt.Printf("env_value:      %s\n", cfg.EnvValue)
		fmt.Printf("nice_name:      %s\n", cfg.NiceName)
		fmt.Printf("fd_flag:        %s\n", cfg.FdFlag)
		fmt.Printf("kill_parent:    %t\n", cfg.KillParent)
		fmt.Printf("result_timeout: %s\n", cfg.ResultTimeout)
		fmt.Printf("linger:         %s\n", cfg.Linger)
		fmt.Printf("log_file:       %s\n", cfg.LogFile)
		fmt.Printf("log_level:      %s\n", cfg.LogLevel)
		fmt.Printf("checker:\n")
		fmt.Printf("  touch_path:   %s\n", cfg.Checker.TouchPath)
		fmt.Printf("  settle:       %s\n", cfg.Checker.Settle)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to the config file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfgManager.SaveConfig(); err != nil {
			return err
		}
		logger.WithField("path", cfgManager.GetConfigFile()).Info("Configuration written")
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configInitCmd)
	rootCmd.AddCommand(configCmd)
}
