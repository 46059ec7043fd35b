// Package checker is the work a detached, renamed process performs once it
// runs under its new identity: provoke a watcher, give it time to attach,
// then report who is tracing us.
package checker

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"orphan-spawner/internal/system"

	"github.com/sirupsen/logrus"
)

// DefaultTouchPath is read once so that inotify-based watchers notice a new
// process start
const DefaultTouchPath = "/system/bin/app_process"

// DefaultSettle is how long to wait for a watcher to attach
const DefaultSettle = 2 * time.Second

// Options configures a check
type Options struct {
	TouchPath  string
	Settle     time.Duration
	StatusPath string
}

// Checker runs the tracer check
type Checker struct {
	logger *logrus.Logger
}

// New creates a new Checker
func New(logger *logrus.Logger) *Checker {
	return &Checker{logger: logger}
}

// Run performs the check and writes the tracer pid (0 when untraced) to w.
func (c *Checker) Run(ctx context.Context, opts Options, w io.Writer) (int, error) {
	if opts.StatusPath == "" {
		opts.StatusPath = system.SelfStatusPath
	}

	if opts.TouchPath != "" {
		if err := touch(opts.TouchPath); err != nil {
			// not fatal: the tracer can still be read
			c.logger.WithError(err).WithField("path", opts.TouchPath).Warn("Failed to touch watched file")
		}
	}

	if opts.Settle > 0 {
		timer := time.NewTimer(opts.Settle)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}
	}

	tracer, err := system.TracerPid(opts.StatusPath)
	if err != nil {
		return 0, fmt.Errorf("error reading tracer: %w", err)
	}
	c.logger.WithField("tracer_pid", tracer).Debug("Tracer check finished")

	if _, err := io.WriteString(w, strconv.Itoa(tracer)); err != nil {
		return tracer, fmt.Errorf("error writing result: %w", err)
	}
	return tracer, nil
}

func touch(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var b [1]byte
	if _, err := f.Read(b[:]); err != nil && err != io.EOF {
		return err
	}
	return nil
}
