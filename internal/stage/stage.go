//go:build unix

// Package stage runs the processes created while detaching: the intermediate
// child, which only starts the grandchild and exits, and the grandchild,
// which reports its pid or replaces its image.
//
// A binary that embeds the spawner must call Main early, before it parses
// its own command line, whenever Active reports true:
//
//	func main() {
//		if stage.Active() {
//			stage.Main()
//		}
//		...
//	}
package stage

import (
	"errors"
	"os"
	"syscall"

	"orphan-spawner/internal/constants"
	"orphan-spawner/internal/launcher"
	"orphan-spawner/internal/protocol"
	"orphan-spawner/internal/utils"
)

// Active reports whether this process was started as a stage
func Active() bool {
	return os.Getenv(constants.StageEnv) == constants.StageValue
}

// Main runs the stage described by the command line and exits.
func Main() {
	args, err := ParseArgs(os.Args[1:])
	if err != nil {
		// nothing trustworthy to report on; closing the channel signals failure
		os.Exit(constants.ExitAborted)
	}
	ctx := newContext(args.WriteFd)

	switch args.Stage {
	case constants.StageIntermediate:
		runIntermediate(ctx, args)
	case constants.StageGrandchild:
		runGrandchild(ctx, args)
	}
	ctx.Abort()
}

func runIntermediate(ctx *Context, args Args) {
	exe := args.GrandchildExe
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			ctx.Report(protocol.EncodeErrno(errnoOf(err)))
			ctx.Abort()
		}
		exe = self
	}

	next := args
	next.Stage = constants.StageGrandchild
	next.WriteFd = constants.ResultFd
	next.GrandchildExe = ""
	if args.KillParent {
		// captured here, before the fork, and passed down explicitly
		next.TargetPid = ctx.Pid()
	}

	argv := append([]string{exe}, next.Encode()...)
	env := utils.SetEnv(os.Environ(), constants.StageEnv, constants.StageValue)

	if _, err := ctx.ForkExec(exe, argv, env); err != nil {
		ctx.Report(protocol.EncodeErrno(errnoOf(err)))
		ctx.Abort()
	}
	ctx.Exit()
}

func runGrandchild(ctx *Context, args Args) {
	if args.KillParent && args.TargetPid > 0 {
		// The target may already be gone, which is the common case.
		_ = ctx.Kill(args.TargetPid)
	}

	if args.Image != "" {
		plan := launcher.NewPlan(launcher.PlanOptions{
			Image:    args.Image,
			NiceName: args.NiceName,
			Args:     args.Extra,
			FdFlag:   args.FdFlag,
			Fd:       args.WriteFd,
			EnvKey:   args.EnvKey,
			EnvValue: args.EnvValue,
		}, os.Environ())
		_ = ctx.Exec(plan)
		// Never fall through to the caller's code after a failed replacement.
		ctx.Abort()
	}

	if args.EnvKey != "" {
		_ = os.Setenv(args.EnvKey, args.EnvValue)
	}
	if args.NiceName != "" {
		_ = ctx.SetName(args.NiceName)
	}
	ctx.Report(protocol.EncodePid(ctx.Pid()))
	ctx.Sleep(args.Linger)
	ctx.Exit()
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return syscall.EIO
}
