// Package system inspects processes the way an outside observer would: parent
// ids, names and command lines as the kernel reports them.
package system

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/shirou/gopsutil/v4/process"
	"github.com/sirupsen/logrus"
)

// ErrStillAttached is returned while a process is still parented by the
// process it is waiting to leave
var ErrStillAttached = errors.New("process still attached to its original parent")

// Lineage is a snapshot of one process's place in the process tree
type Lineage struct {
	Pid     int
	Ppid    int
	Name    string
	Cmdline string
	Status  []string
}

// Detector inspects processes
type Detector struct {
	logger *logrus.Logger
}

// NewDetector creates a new Detector
func NewDetector(logger *logrus.Logger) *Detector {
	return &Detector{logger: logger}
}

// Lineage returns the current view of pid
func (d *Detector) Lineage(ctx context.Context, pid int) (Lineage, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return Lineage{}, fmt.Errorf("error finding process %d: %w", pid, err)
	}

	ppid, err := p.PpidWithContext(ctx)
	if err != nil {
		return Lineage{}, fmt.Errorf("error reading parent of %d: %w", pid, err)
	}

	l := Lineage{Pid: pid, Ppid: int(ppid)}
	if name, err := p.NameWithContext(ctx); err == nil {
		l.Name = name
	} else {
		d.logger.WithError(err).WithField("pid", pid).Debug("Failed to read process name")
	}
	if cmdline, err := p.CmdlineWithContext(ctx); err == nil {
		l.Cmdline = cmdline
	} else {
		d.logger.WithError(err).WithField("pid", pid).Debug("Failed to read process cmdline")
	}
	if status, err := p.StatusWithContext(ctx); err == nil {
		l.Status = status
	}
	return l, nil
}

// WaitReparented polls until pid is no longer a child of from and returns the
// final lineage. Polling stops when ctx is done.
func (d *Detector) WaitReparented(ctx context.Context, pid, from int) (Lineage, error) {
	var last Lineage
	operation := func() error {
		l, err := d.Lineage(ctx, pid)
		if err != nil {
			return backoff.Permanent(err)
		}
		last = l
		if l.Ppid == from {
			return ErrStillAttached
		}
		return nil
	}

	if err := backoff.Retry(operation, pollBackoff(ctx)); err != nil {
		return last, fmt.Errorf("wait for %d to leave %d: %w", pid, from, err)
	}
	d.logger.WithFields(logrus.Fields{
		"pid":  pid,
		"from": from,
		"ppid": last.Ppid,
	}).Debug("Process reparented")
	return last, nil
}

// WaitGone polls until pid no longer exists
func (d *Detector) WaitGone(ctx context.Context, pid int) error {
	operation := func() error {
		running, err := process.PidExistsWithContext(ctx, int32(pid))
		if err != nil {
			return backoff.Permanent(err)
		}
		if running {
			return fmt.Errorf("process %d still running", pid)
		}
		return nil
	}
	if err := backoff.Retry(operation, pollBackoff(ctx)); err != nil {
		return fmt.Errorf("wait for %d to exit: %w", pid, err)
	}
	return nil
}

func pollBackoff(ctx context.Context) backoff.BackOff {
	return backoff.WithContext(&backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Millisecond,
		RandomizationFactor: 0.2,
		Multiplier:          1.5,
		MaxInterval:         250 * time.Millisecond,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}, ctx)
}
