package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"orphan-spawner/internal/system"
	"orphan-spawner/pkg/models"

	"github.com/spf13/cobra"
)

var (
	inspectReparentedFrom int
	inspectWaitExit       bool
	inspectTimeout        time.Duration
	inspectJSON           bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect PID",
	Short: "Show a process's parent, name and command line as observers see them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pid, err := strconv.Atoi(args[0])
		if err != nil || pid <= 0 {
			return fmt.Errorf("invalid pid: %s", args[0])
		}
		return runInspect(cmd.Context(), pid)
	},
}

func init() {
	inspectCmd.Flags().IntVar(&inspectReparentedFrom, "wait-reparented-from", 0, "wait until the process is no longer a child of this pid")
	inspectCmd.Flags().BoolVar(&inspectWaitExit, "wait-exit", false, "wait until the process exits")
	inspectCmd.Flags().DurationVar(&inspectTimeout, "timeout", 10*time.Second, "how long to wait")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "print the lineage as JSON")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(ctx context.Context, pid int) error {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()

	d := system.NewDetector(logger)

	if inspectWaitExit {
		if err := d.WaitGone(ctx, pid); err != nil {
			return err
		}
		fmt.Printf("process %d exited\n", pid)
		return nil
	}

	var (
		lineage system.Lineage
		err     error
	)
	if inspectReparentedFrom > 0 {
		lineage, err = d.WaitReparented(ctx, pid, inspectReparentedFrom)
	} else {
		lineage, err = d.Lineage(ctx, pid)
	}
	if err != nil {
		return err
	}

	report := models.LineageReport{
		Pid:     lineage.Pid,
		Ppid:    lineage.Ppid,
		Name:    lineage.Name,
		Cmdline: lineage.Cmdline,
		Status:  lineage.Status,
	}
	if inspectJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return fmt.Errorf("error encoding lineage: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("pid:     %d\n", report.Pid)
	fmt.Printf("ppid:    %d\n", report.Ppid)
	fmt.Printf("name:    %s\n", report.Name)
	fmt.Printf("cmdline: %s\n", report.Cmdline)
	if len(report.Status) > 0 {
		fmt.Printf("status:  %s\n", strings.Join(report.Status, ","))
	}
	return nil
}
