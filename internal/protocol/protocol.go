// Package protocol defines the bytes exchanged over the result channel.
//
// A result is a short decimal string: a non-negative value (normally a
// process id) or a negated errno. There is no length prefix or delimiter;
// the message ends when the writer closes its end of the channel.
package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"
)

// MaxMessageSize is the largest message a reader accepts.
const MaxMessageSize = 32

var (
	// ErrNoResult is returned when the channel closed before any byte arrived
	ErrNoResult = errors.New("channel closed without a result")
	// ErrMalformed is returned when the payload is not a decimal integer
	ErrMalformed = errors.New("malformed result payload")
)

// Result is a decoded message. Exactly one of Value or Errno is meaningful:
// Errno is non-zero only for error messages.
type Result struct {
	Value int
	Errno syscall.Errno
}

// IsError reports whether the message carried an error code
func (r Result) IsError() bool {
	return r.Errno != 0
}

// EncodePid encodes a non-negative value, normally a process id.
func EncodePid(pid int) []byte {
	if pid < 0 {
		pid = 0
	}
	return []byte(strconv.Itoa(pid))
}

// EncodeErrno encodes an error code as its negated decimal value.
// A zero errno is encoded as EIO so that an error never reads back as pid 0.
func EncodeErrno(errno syscall.Errno) []byte {
	if errno == 0 {
		errno = syscall.EIO
	}
	return []byte(strconv.Itoa(-int(errno)))
}

// Decode parses a message read up to channel closure.
func Decode(b []byte) (Result, error) {
	s := strings.TrimSpace(string(b))
	if s == "" {
		return Result{}, ErrNoResult
	}
	if len(s) > MaxMessageSize {
		return Result{}, fmt.Errorf("%w: %d bytes", ErrMalformed, len(s))
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %q", ErrMalformed, s)
	}
	if n < 0 {
		return Result{Errno: syscall.Errno(-n)}, nil
	}
	return Result{Value: n}, nil
}
