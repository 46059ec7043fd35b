//go:build unix

package stage

import (
	"os"
	"syscall"
	"time"

	"orphan-spawner/internal/constants"
	"orphan-spawner/internal/launcher"
	"orphan-spawner/internal/pipechan"
	"orphan-spawner/internal/system"

	"golang.org/x/sys/unix"
)

// Context is the execution context of a stage process.
//
// It only offers raw process control and raw I/O on the inherited result
// descriptor. Stages have no logger and no configuration, and must not use
// os/exec.
type Context struct {
	writeFd int
	closed  bool
}

func newContext(writeFd int) *Context {
	return &Context{writeFd: writeFd}
}

// Pid returns the calling process id
func (c *Context) Pid() int {
	return unix.Getpid()
}

// Report writes msg to the result channel and closes it. A failed write is
// not reported: the reader treats a short or missing message as failure.
func (c *Context) Report(msg []byte) {
	if c.closed {
		return
	}
	_ = pipechan.Write(c.writeFd, msg)
	c.CloseChannel()
}

// CloseChannel closes the result descriptor without writing
func (c *Context) CloseChannel() {
	if c.closed {
		return
	}
	_ = unix.Close(c.writeFd)
	c.closed = true
}

// Kill sends SIGKILL to pid
func (c *Context) Kill(pid int) error {
	if pid <= 1 {
		return unix.EINVAL
	}
	return unix.Kill(pid, unix.SIGKILL)
}

// ForkExec starts path as a new session leader with stdio on /dev/null and
// the result descriptor at constants.ResultFd. It returns the child's pid.
func (c *Context) ForkExec(path string, argv, env []string) (int, error) {
	null, err := unix.Open(os.DevNull, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(null)

	files := make([]uintptr, constants.ResultFd+1)
	for i := range files {
		files[i] = uintptr(null)
	}
	files[constants.ResultFd] = uintptr(c.writeFd)

	return syscall.ForkExec(path, argv, &syscall.ProcAttr{
		Env:   env,
		Files: files,
		Sys:   sysProcAttrForDetach(),
	})
}

// Exec replaces the process image. It only returns on failure.
func (c *Context) Exec(plan launcher.Plan) error {
	return launcher.Launch(plan, unix.Exec)
}

// SetName sets the name shown by process listings
func (c *Context) SetName(name string) error {
	return system.SetProcessName(name)
}

// Sleep pauses the process
func (c *Context) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

// Exit terminates the process successfully
func (c *Context) Exit() {
	os.Exit(constants.ExitOK)
}

// Abort terminates the process abnormally without touching the channel
func (c *Context) Abort() {
	os.Exit(constants.ExitAborted)
}
