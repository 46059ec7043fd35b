//go:build unix

package spawner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"orphan-spawner/internal/pipechan"
	"orphan-spawner/internal/protocol"

	"github.com/sirupsen/logrus"
)

// Handle is the caller's side of one spawn: the read end of the result
// channel and the bookkeeping for the intermediate process.
type Handle struct {
	ch              *pipechan.Channel
	intermediatePid int
	logger          *logrus.Logger

	mu       sync.Mutex
	resolved bool

	reaped          chan struct{}
	intermediateErr error
}

func newHandle(ch *pipechan.Channel, intermediatePid int, logger *logrus.Logger) *Handle {
	return &Handle{
		ch:              ch,
		intermediatePid: intermediatePid,
		logger:          logger,
		reaped:          make(chan struct{}),
	}
}

// IntermediatePid returns the pid of the intermediate process
func (h *Handle) IntermediatePid() int {
	return h.intermediatePid
}

// Reaped is closed once the intermediate process has exited and been reaped
func (h *Handle) Reaped() <-chan struct{} {
	return h.reaped
}

// IntermediateErr returns the intermediate's exit error after Reaped is
// closed. A SIGKILL from the grandchild shows up here and is expected.
func (h *Handle) IntermediateErr() error {
	<-h.reaped
	return h.intermediateErr
}

// Outcome returns the handle in its pending form
func (h *Handle) Outcome() Outcome {
	return Outcome{Kind: KindDetachedHandle, Handle: h}
}

func (h *Handle) reap(cmd *exec.Cmd) {
	defer close(h.reaped)
	h.intermediateErr = cmd.Wait()

	fields := logrus.Fields{"intermediate_pid": h.intermediatePid}
	if h.intermediateErr != nil {
		h.logger.WithFields(fields).WithError(h.intermediateErr).Debug("Intermediate process exited abnormally")
		return
	}
	h.logger.WithFields(fields).Debug("Intermediate process reaped")
}

// Resolve blocks until the detached process reports or the channel closes,
// and decodes the result. If ctx ends first the wait is abandoned and the
// read end closed; a late write from the grandchild then fails on its side.
// The read end is always closed on return.
func (h *Handle) Resolve(ctx context.Context) Outcome {
	h.mu.Lock()
	if h.resolved {
		h.mu.Unlock()
		return NewFailure(ErrAlreadyResolved)
	}
	h.resolved = true
	h.mu.Unlock()

	defer func() {
		if err := h.ch.CloseRead(); err != nil {
			h.logger.WithError(err).Debug("Failed to close read end")
		}
	}()

	r := h.ch.ReadEnd()
	stop := context.AfterFunc(ctx, func() {
		// wakes the blocked read below
		_ = r.SetReadDeadline(time.Now())
	})
	defer stop()

	msg, err := pipechan.ReadMessage(r, protocol.MaxMessageSize)
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, os.ErrDeadlineExceeded) {
			return NewFailure(fmt.Errorf("%w: %w", ErrChannelReadIncomplete, ctx.Err()))
		}
		return NewFailure(fmt.Errorf("%w: %w", ErrChannelReadIncomplete, err))
	}

	res, err := protocol.Decode(msg)
	if err != nil {
		return NewFailure(fmt.Errorf("%w: %w", ErrChannelReadIncomplete, err))
	}
	if res.IsError() {
		return Outcome{
			Kind:  KindSpawnFailed,
			Errno: res.Errno,
			Err:   fmt.Errorf("%w: %w", ErrSecondForkFailed, res.Errno),
		}
	}

	h.logger.WithFields(logrus.Fields{
		"intermediate_pid": h.intermediatePid,
		"value":            res.Value,
	}).Debug("Detached process reported")
	return Outcome{Kind: KindResolvedPid, Pid: res.Value}
}
