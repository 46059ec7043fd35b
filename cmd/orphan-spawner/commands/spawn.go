//go:build unix

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"orphan-spawner/internal/constants"
	"orphan-spawner/internal/spawner"
	"orphan-spawner/internal/utils"
	"orphan-spawner/pkg/models"

	"github.com/spf13/cobra"
)

var (
	spawnImage       string
	spawnSelfChecker bool
	spawnEnv         string
	spawnNiceName    string
	spawnKillParent  bool
	spawnAsync       bool
	spawnTimeout     time.Duration
	spawnLinger      time.Duration
	spawnJSON        bool
)

var spawnCmd = &cobra.Command{
	Use:   "spawn [flags] [-- image args...]",
	Short: "Start a detached process and print its result",
	Long: `Start a process through a double fork. Without --image the detached
process reports its own pid. With --image it is replaced by that program,
which receives the result descriptor as "--write-fd N" after its arguments.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := buildRequest(cmd, args)
		if err != nil {
			return err
		}
		return runSpawn(cmd.Context(), cmd.OutOrStdout(), req)
	},
}

func init() {
	spawnCmd.Flags().StringVar(&spawnImage, "image", "", "program image the detached process is replaced with")
	spawnCmd.Flags().BoolVar(&spawnSelfChecker, "self-checker", false, "replace the detached process with this binary's tracer checker")
	spawnCmd.Flags().StringVar(&spawnEnv, "env", "", "environment variable for the image as KEY=VALUE")
	spawnCmd.Flags().StringVar(&spawnNiceName, "nice-name", "", "process name presented by the detached process")
	spawnCmd.Flags().BoolVar(&spawnKillParent, "kill-parent", false, "SIGKILL the intermediate process from the detached one")
	spawnCmd.Flags().BoolVar(&spawnAsync, "async", false, "return once the intermediate exits, without waiting for the result")
	spawnCmd.Flags().DurationVar(&spawnTimeout, "timeout", 0, "how long to wait for the result (default from config)")
	spawnCmd.Flags().DurationVar(&spawnLinger, "linger", 0, "keep a detached process without image alive this long after it reports")
	spawnCmd.Flags().BoolVar(&spawnJSON, "json", false, "print the outcome as JSON")
	spawnCmd.MarkFlagsMutuallyExclusive("image", "self-checker")

	rootCmd.AddCommand(spawnCmd)
}

// buildRequest merges the configuration with the command line
func buildRequest(cmd *cobra.Command, args []string) (spawner.Request, error) {
	cfg := cfgManager.GetConfig()
	req := spawner.Request{
		Image:      cfg.Image,
		EnvKey:     cfg.EnvKey,
		EnvValue:   cfg.EnvValue,
		NiceName:   cfg.NiceName,
		FdFlag:     cfg.FdFlag,
		KillParent: cfg.KillParent,
		Linger:     cfg.Linger,
		Args:       args,
	}

	if cmd.Flags().Changed("image") {
		req.Image = spawnImage
	}
	if cmd.Flags().Changed("env") {
		key, value, ok := utils.ParseEnvPair(spawnEnv)
		if !ok {
			return req, fmt.Errorf("invalid --env %q: want KEY=VALUE", spawnEnv)
		}
		req.EnvKey, req.EnvValue = key, value
	}
	if cmd.Flags().Changed("nice-name") {
		req.NiceName = spawnNiceName
	}
	if cmd.Flags().Changed("kill-parent") {
		req.KillParent = spawnKillParent
	}
	if cmd.Flags().Changed("linger") {
		req.Linger = spawnLinger
	}

	if spawnSelfChecker {
		exe, err := os.Executable()
		if err != nil {
			return req, fmt.Errorf("error resolving executable: %w", err)
		}
		req.Image = exe
		req.FdFlag = constants.DefaultFdFlag
		req.Args = checkerArgs(req.NiceName)
	}

	// the payload variable is only meaningful with a value
	if req.EnvValue == "" && !cmd.Flags().Changed("env") {
		req.EnvKey = ""
	}
	return req, nil
}

// checkerArgs is the command line handed to the replaced image when it is
// this binary's checker command
func checkerArgs(niceName string) []string {
	cfg := cfgManager.GetConfig()
	args := []string{
		"checker",
		"--config", cfgManager.GetConfigFile(),
		"--touch", cfg.Checker.TouchPath,
		"--settle", cfg.Checker.Settle.String(),
	}
	if niceName != "" {
		args = append(args, "--nice-name", niceName)
	}
	return args
}

func runSpawn(parent context.Context, w io.Writer, req spawner.Request) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := spawner.New(logger)
	h, err := s.Start(req)
	if err != nil {
		return printOutcome(w, spawner.NewFailure(err), 0)
	}

	if spawnAsync {
		select {
		case <-h.Reaped():
		case <-ctx.Done():
		}
		return printOutcome(w, h.Outcome(), h.IntermediatePid())
	}

	timeout := spawnTimeout
	if timeout <= 0 {
		timeout = cfgManager.GetConfig().ResultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return printOutcome(w, h.Resolve(ctx), h.IntermediatePid())
}

func printOutcome(w io.Writer, out spawner.Outcome, intermediatePid int) error {
	report := models.SpawnReport{
		Outcome:         out.Kind.String(),
		IntermediatePid: intermediatePid,
	}
	switch out.Kind {
	case spawner.KindResolvedPid:
		report.Pid = out.Pid
	case spawner.KindSpawnFailed:
		report.Errno = int(out.Errno)
		if out.Err != nil {
			report.Error = out.Err.Error()
		}
	}

	if spawnJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding outcome: %w", err)
		}
		fmt.Fprintln(w, string(data))
	} else {
		switch out.Kind {
		case spawner.KindResolvedPid:
			fmt.Fprintf(w, "resolved: %d\n", report.Pid)
		case spawner.KindDetachedHandle:
			fmt.Fprintf(w, "detached: intermediate %d exited\n", intermediatePid)
		case spawner.KindSpawnFailed:
			fmt.Fprintf(w, "failed: %s\n", report.Error)
		}
	}

	if out.Failed() {
		return out.Err
	}
	return nil
}
