//go:build unix

// Package pipechan provides the single-use, one-way byte channel used to hand
// a result from a detached process back to the process that spawned it.
package pipechan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sys/unix"
)

var (
	// ErrChannelCreationFailed is returned when the pipe cannot be allocated
	ErrChannelCreationFailed = errors.New("channel creation failed")
	// ErrMessageTooLong is returned when the writer sent more than the reader accepts
	ErrMessageTooLong = errors.New("message exceeds maximum size")
)

// Channel is a pipe whose ends are owned independently.
//
// Both descriptors are close-on-exec in the creating process. The write end
// reaches a child through exec.Cmd.ExtraFiles, which installs it at a fixed
// descriptor number without close-on-exec.
type Channel struct {
	read  *os.File
	write *os.File

	readOnce  sync.Once
	writeOnce sync.Once
	readErr   error
	writeErr  error
}

// Create allocates a new channel. The read end is registered with the
// runtime poller so that a blocked read can be interrupted with a deadline.
func Create() (*Channel, error) {
	r, w, err := newPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChannelCreationFailed, err)
	}
	if err := unix.SetNonblock(r, true); err != nil {
		_ = unix.Close(r)
		_ = unix.Close(w)
		return nil, fmt.Errorf("%w: set nonblock: %w", ErrChannelCreationFailed, err)
	}
	return &Channel{
		read:  os.NewFile(uintptr(r), "result_rd"),
		write: os.NewFile(uintptr(w), "result_wr"),
	}, nil
}

// ReadEnd returns the reading end
func (c *Channel) ReadEnd() *os.File {
	return c.read
}

// WriteEnd returns the writing end
func (c *Channel) WriteEnd() *os.File {
	return c.write
}

// CloseRead closes the reading end. Subsequent calls return the first result.
func (c *Channel) CloseRead() error {
	c.readOnce.Do(func() {
		c.readErr = c.read.Close()
	})
	return c.readErr
}

// CloseWrite closes the writing end. Subsequent calls return the first result.
func (c *Channel) CloseWrite() error {
	c.writeOnce.Do(func() {
		c.writeErr = c.write.Close()
	})
	return c.writeErr
}

// Close closes both ends.
func (c *Channel) Close() error {
	var merr *multierror.Error
	if err := c.CloseWrite(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("close write end: %w", err))
	}
	if err := c.CloseRead(); err != nil {
		merr = multierror.Append(merr, fmt.Errorf("close read end: %w", err))
	}
	return merr.ErrorOrNil()
}

// Write writes b to the raw descriptor fd, retrying interrupted and short
// writes. It uses no runtime file state, so it is safe in a stage process
// that only knows the descriptor number.
func Write(fd int, b []byte) error {
	for len(b) > 0 {
		n, err := unix.Write(fd, b)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		b = b[n:]
	}
	return nil
}

// ReadMessage reads from r until EOF and returns what arrived. An empty
// result with a nil error means the writer closed without sending anything.
func ReadMessage(r io.Reader, max int) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if err != nil {
		return buf, err
	}
	if len(buf) > max {
		return buf[:max], ErrMessageTooLong
	}
	return buf, nil
}

// Inherit clears close-on-exec on fd so that it survives image replacement.
func Inherit(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return fmt.Errorf("get descriptor flags: %w", err)
	}
	if flags&unix.FD_CLOEXEC == 0 {
		return nil
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC); err != nil {
		return fmt.Errorf("clear close-on-exec: %w", err)
	}
	return nil
}

// IsInheritable reports whether fd survives image replacement.
func IsInheritable(fd int) (bool, error) {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return false, err
	}
	return flags&unix.FD_CLOEXEC == 0, nil
}
