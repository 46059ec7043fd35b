//go:build unix && !linux

package pipechan

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// newPipe holds the fork lock so no child can inherit the descriptors
// between pipe and the close-on-exec update.
func newPipe() (int, int, error) {
	syscall.ForkLock.RLock()
	defer syscall.ForkLock.RUnlock()

	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return -1, -1, err
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])
	return p[0], p[1], nil
}
