//go:build linux

package system

import (
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// maxCommLen is TASK_COMM_LEN without the terminating NUL
const maxCommLen = 15

// SetProcessName sets the kernel's short name for the process. Writing
// /proc/self/comm renames the main thread whichever thread runs this;
// prctl only renames the calling thread and is kept as a fallback.
func SetProcessName(name string) error {
	if len(name) > maxCommLen {
		name = name[:maxCommLen]
	}
	if err := os.WriteFile("/proc/self/comm", []byte(name), 0); err == nil {
		return nil
	}
	p, err := unix.BytePtrFromString(name)
	if err != nil {
		return err
	}
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(p)), 0, 0, 0)
}
