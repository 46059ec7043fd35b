package stage

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"orphan-spawner/internal/constants"

	"github.com/spf13/pflag"
)

// Args carries one spawn request across a process boundary. Every field
// travels on the command line; nothing is inherited from ambient state.
type Args struct {
	Stage   string
	WriteFd int

	Image    string
	EnvKey   string
	EnvValue string
	NiceName string
	FdFlag   string
	Extra    []string

	KillParent bool
	// TargetPid is the process the grandchild kills when KillParent is set.
	// The intermediate fills it with its own pid before the second fork.
	TargetPid int
	Linger    time.Duration

	// GrandchildExe overrides the executable the intermediate starts.
	// Empty means the intermediate's own executable.
	GrandchildExe string
}

// Encode renders a as command line arguments. Extra arguments follow "--".
func (a Args) Encode() []string {
	out := []string{
		"--stage=" + a.Stage,
		"--write-fd=" + strconv.Itoa(a.WriteFd),
	}
	if a.Image != "" {
		out = append(out, "--image="+a.Image)
	}
	if a.EnvKey != "" {
		out = append(out, "--env-key="+a.EnvKey, "--env-value="+a.EnvValue)
	}
	if a.NiceName != "" {
		out = append(out, "--nice-name="+a.NiceName)
	}
	if a.FdFlag != "" {
		out = append(out, "--fd-flag="+a.FdFlag)
	}
	if a.KillParent {
		out = append(out, "--kill-parent")
	}
	if a.TargetPid > 0 {
		out = append(out, "--target-pid="+strconv.Itoa(a.TargetPid))
	}
	if a.Linger > 0 {
		out = append(out, "--linger="+a.Linger.String())
	}
	if a.GrandchildExe != "" {
		out = append(out, "--grandchild-exe="+a.GrandchildExe)
	}
	out = append(out, "--")
	return append(out, a.Extra...)
}

// ParseArgs is the inverse of Encode.
func ParseArgs(argv []string) (Args, error) {
	var a Args
	fs := pflag.NewFlagSet("stage", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&a.Stage, "stage", "", "")
	fs.IntVar(&a.WriteFd, "write-fd", constants.ResultFd, "")
	fs.StringVar(&a.Image, "image", "", "")
	fs.StringVar(&a.EnvKey, "env-key", "", "")
	fs.StringVar(&a.EnvValue, "env-value", "", "")
	fs.StringVar(&a.NiceName, "nice-name", "", "")
	fs.StringVar(&a.FdFlag, "fd-flag", "", "")
	fs.BoolVar(&a.KillParent, "kill-parent", false, "")
	fs.IntVar(&a.TargetPid, "target-pid", 0, "")
	fs.DurationVar(&a.Linger, "linger", 0, "")
	fs.StringVar(&a.GrandchildExe, "grandchild-exe", "", "")

	if err := fs.Parse(argv); err != nil {
		return Args{}, fmt.Errorf("parse stage args: %w", err)
	}
	dash := fs.ArgsLenAtDash()
	if dash > 0 || (dash < 0 && fs.NArg() > 0) {
		return Args{}, fmt.Errorf("unexpected stage argument %q", fs.Arg(0))
	}
	if fs.NArg() > 0 {
		a.Extra = fs.Args()
	}

	switch a.Stage {
	case constants.StageIntermediate, constants.StageGrandchild:
	default:
		return Args{}, fmt.Errorf("unknown stage %q", a.Stage)
	}
	if a.WriteFd < 0 {
		return Args{}, fmt.Errorf("invalid write fd %d", a.WriteFd)
	}
	return a, nil
}
