//go:build unix

package stage

import "syscall"

// sysProcAttrForDetach returns SysProcAttr to detach a child process (new session).
// Setsid drops the controlling terminal so the grandchild survives the caller's session.
func sysProcAttrForDetach() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}
