//go:build unix

// Package launcher replaces the running program image with another
// executable, carrying the result descriptor number on the command line and
// a payload location in the environment.
package launcher

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"orphan-spawner/internal/constants"
	"orphan-spawner/internal/pipechan"
	"orphan-spawner/internal/utils"

	"golang.org/x/sys/unix"
)

// ErrImageReplacementFailed is returned when the new image could not be started.
// The process that attempted the replacement must not continue.
var ErrImageReplacementFailed = errors.New("image replacement failed")

// ExecFunc performs the replacement. It only returns on failure.
type ExecFunc func(path string, argv []string, env []string) error

// Plan is a fully resolved image replacement.
type Plan struct {
	Path string
	Argv []string
	Env  []string
	Fd   int
}

// PlanOptions describes the image replacement requested by a caller.
type PlanOptions struct {
	Image    string
	NiceName string
	Args     []string
	FdFlag   string
	Fd       int
	EnvKey   string
	EnvValue string
}

// NewPlan builds the argument vector and environment for the new image.
//
// argv[0] is the nice name when one is given, which is the name most
// process listings show. The descriptor flag and number always come last.
func NewPlan(opts PlanOptions, baseEnv []string) Plan {
	argv0 := opts.Image
	if opts.NiceName != "" {
		argv0 = opts.NiceName
	}
	fdFlag := opts.FdFlag
	if fdFlag == "" {
		fdFlag = constants.DefaultFdFlag
	}

	argv := make([]string, 0, len(opts.Args)+3)
	argv = append(argv, argv0)
	argv = append(argv, opts.Args...)
	argv = append(argv, fdFlag, strconv.Itoa(opts.Fd))

	env := utils.WithoutEnv(baseEnv, constants.StageEnv)
	if opts.EnvKey != "" {
		env = utils.SetEnv(env, opts.EnvKey, opts.EnvValue)
	}

	return Plan{
		Path: opts.Image,
		Argv: argv,
		Env:  env,
		Fd:   opts.Fd,
	}
}

// Validate checks that the image exists and is an executable regular file.
func (p Plan) Validate() error {
	if p.Path == "" {
		return fmt.Errorf("%w: no image path", ErrImageReplacementFailed)
	}
	if strings.ContainsRune(p.Path, 0) {
		return fmt.Errorf("%w: invalid image path", ErrImageReplacementFailed)
	}
	info, err := os.Stat(p.Path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrImageReplacementFailed, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a regular file", ErrImageReplacementFailed, p.Path)
	}
	if info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("%w: %s is not executable", ErrImageReplacementFailed, p.Path)
	}
	return nil
}

// Launch replaces the current image according to p. On success it never
// returns; every return is a failure wrapping ErrImageReplacementFailed.
func Launch(p Plan, exec ExecFunc) error {
	if exec == nil {
		exec = unix.Exec
	}
	if err := p.Validate(); err != nil {
		return err
	}
	if err := pipechan.Inherit(p.Fd); err != nil {
		return fmt.Errorf("%w: %w", ErrImageReplacementFailed, err)
	}
	if err := exec(p.Path, p.Argv, p.Env); err != nil {
		return fmt.Errorf("%w: exec %s: %w", ErrImageReplacementFailed, p.Path, err)
	}
	// only reachable with a test ExecFunc that returns nil
	return nil
}
