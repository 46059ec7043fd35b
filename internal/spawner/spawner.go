//go:build unix

// Package spawner detaches a process from its caller with a double fork and
// hands a single result back through a pipe.
//
// Each fork is a fork+exec of the current executable into a stage (see
// package stage), so the executable must dispatch to stage.Main when
// stage.Active reports true.
package spawner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"orphan-spawner/internal/constants"
	"orphan-spawner/internal/pipechan"
	"orphan-spawner/internal/stage"
	"orphan-spawner/internal/utils"

	"github.com/sirupsen/logrus"
)

var (
	// ErrFirstForkFailed is returned when the intermediate process could not be started
	ErrFirstForkFailed = errors.New("first fork failed")
	// ErrSecondForkFailed is reported through the channel when the intermediate
	// could not start the grandchild
	ErrSecondForkFailed = errors.New("second fork failed")
	// ErrChannelReadIncomplete means the channel closed without a usable result
	ErrChannelReadIncomplete = errors.New("channel read incomplete")
	// ErrAlreadyResolved is returned when a handle is resolved twice
	ErrAlreadyResolved = errors.New("handle already resolved")
)

// Request describes one detached process.
type Request struct {
	// Image replaces the grandchild's program when set
	Image string
	// EnvKey and EnvValue define one environment variable for the grandchild
	EnvKey   string
	EnvValue string
	// NiceName is the process name the grandchild presents
	NiceName string
	// Args are passed to Image before the descriptor flag
	Args []string
	// FdFlag names the flag carrying the descriptor number to Image
	FdFlag string
	// KillParent makes the grandchild SIGKILL the intermediate process
	KillParent bool
	// Linger keeps a grandchild without Image alive after it reported
	Linger time.Duration
}

// Option configures a Spawner
type Option func(*Spawner)

// WithExecutable sets the executable started for the stages. It must
// dispatch to stage.Main. Defaults to os.Executable().
func WithExecutable(path string) Option {
	return func(s *Spawner) {
		s.executable = path
	}
}

// Spawner starts detached processes. It holds no per-request state and is
// safe for concurrent use.
type Spawner struct {
	logger     *logrus.Logger
	executable string

	// hooks replaced by tests
	newChannel    func() (*pipechan.Channel, error)
	start         func(*exec.Cmd) error
	grandchildExe string
}

// New creates a new Spawner
func New(logger *logrus.Logger, opts ...Option) *Spawner {
	s := &Spawner{
		logger:     logger,
		newChannel: pipechan.Create,
		start:      (*exec.Cmd).Start,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start performs the first fork and returns a handle to the pending result.
// Errors are returned only for failures before or at the first fork; they
// wrap pipechan.ErrChannelCreationFailed or ErrFirstForkFailed and leave no
// descriptor open.
func (s *Spawner) Start(req Request) (*Handle, error) {
	exe, err := s.resolveExecutable()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFirstForkFailed, err)
	}

	ch, err := s.newChannel()
	if err != nil {
		s.logger.WithError(err).Warn("Failed to create result channel")
		return nil, err
	}

	args := stage.Args{
		Stage:         constants.StageIntermediate,
		WriteFd:       constants.ResultFd,
		Image:         req.Image,
		EnvKey:        req.EnvKey,
		EnvValue:      req.EnvValue,
		NiceName:      req.NiceName,
		FdFlag:        req.FdFlag,
		Extra:         append([]string(nil), req.Args...),
		KillParent:    req.KillParent,
		Linger:        req.Linger,
		GrandchildExe: s.grandchildExe,
	}

	cmd := exec.Command(exe, args.Encode()...)
	cmd.Env = utils.SetEnv(os.Environ(), constants.StageEnv, constants.StageValue)
	// nil stdio is /dev/null; ExtraFiles[0] lands on constants.ResultFd
	cmd.ExtraFiles = []*os.File{ch.WriteEnd()}

	if err := s.start(cmd); err != nil {
		if cerr := ch.Close(); cerr != nil {
			s.logger.WithError(cerr).Warn("Failed to release result channel")
		}
		s.logger.WithError(err).WithField("executable", exe).Warn("Failed to start intermediate process")
		return nil, fmt.Errorf("%w: %w", ErrFirstForkFailed, err)
	}

	// the caller never writes; keeping this open would hide end-of-stream
	if err := ch.CloseWrite(); err != nil {
		s.logger.WithError(err).Debug("Failed to close write end")
	}

	h := newHandle(ch, cmd.Process.Pid, s.logger)
	go h.reap(cmd)

	s.logger.WithFields(logrus.Fields{
		"intermediate_pid": h.intermediatePid,
		"image":            req.Image,
		"nice_name":        req.NiceName,
		"kill_parent":      req.KillParent,
	}).Debug("Started intermediate process")
	return h, nil
}

// Spawn starts a detached process and blocks until it reports, its channel
// closes, or ctx ends. A failure at the first fork is returned here
// synchronously; later failures arrive through the channel.
func (s *Spawner) Spawn(ctx context.Context, req Request) Outcome {
	h, err := s.Start(req)
	if err != nil {
		return NewFailure(err)
	}
	return h.Resolve(ctx)
}

func (s *Spawner) resolveExecutable() (string, error) {
	if s.executable != "" {
		return s.executable, nil
	}
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("error resolving executable: %w", err)
	}
	return exe, nil
}

func errnoOf(err error) syscall.Errno {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}
