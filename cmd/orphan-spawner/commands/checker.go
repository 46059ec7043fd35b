//go:build unix

package commands

import (
	"bytes"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orphan-spawner/internal/checker"
	"orphan-spawner/internal/pipechan"
	"orphan-spawner/internal/system"

	"github.com/spf13/cobra"
)

var (
	checkerWriteFd  int
	checkerNiceName string
	checkerTouch    string
	checkerSettle   time.Duration
	checkerStatus   string
)

// checkerCmd is what a detached process runs after it was replaced with this
// binary. It writes the tracer pid to the inherited descriptor, or nothing.
var checkerCmd = &cobra.Command{
	Use:    "checker",
	Short:  "Report the tracer of this process through an inherited descriptor",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChecker(cmd)
	},
}

func init() {
	checkerCmd.Flags().IntVar(&checkerWriteFd, "write-fd", -1, "descriptor the result is written to")
	checkerCmd.Flags().StringVar(&checkerNiceName, "nice-name", "", "process name to present while checking")
	checkerCmd.Flags().StringVar(&checkerTouch, "touch", "", "file read once before checking (default from config)")
	checkerCmd.Flags().DurationVar(&checkerSettle, "settle", 0, "wait before reading the tracer (default from config)")
	checkerCmd.Flags().StringVar(&checkerStatus, "status-path", "", "status file holding TracerPid (default /proc/self/status)")
	_ = checkerCmd.Flags().MarkHidden("status-path")
	_ = checkerCmd.MarkFlagRequired("write-fd")

	rootCmd.AddCommand(checkerCmd)
}

func runChecker(cmd *cobra.Command) error {
	if checkerWriteFd < 0 {
		return fmt.Errorf("invalid descriptor: %d", checkerWriteFd)
	}

	if checkerNiceName != "" {
		if err := system.SetProcessName(checkerNiceName); err != nil {
			logger.WithError(err).Warn("Failed to set process name")
		}
	}

	cfg := cfgManager.GetConfig()
	opts := checker.Options{
		TouchPath:  cfg.Checker.TouchPath,
		Settle:     cfg.Checker.Settle,
		StatusPath: checkerStatus,
	}
	if cmd.Flags().Changed("touch") {
		opts.TouchPath = checkerTouch
	}
	if cmd.Flags().Changed("settle") {
		opts.Settle = checkerSettle
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// buffered so that a failed check leaves the descriptor untouched
	var buf bytes.Buffer
	tracer, err := checker.New(logger).Run(ctx, opts, &buf)
	if err != nil {
		_ = syscall.Close(checkerWriteFd)
		return err
	}

	logger.WithField("tracer_pid", tracer).Info("Tracer check complete")
	if err := pipechan.Write(checkerWriteFd, buf.Bytes()); err != nil {
		return fmt.Errorf("error writing result: %w", err)
	}
	return syscall.Close(checkerWriteFd)
}
