//go:build unix

package spawner

import (
	"fmt"
	"syscall"
)

// Kind tells which form an Outcome takes
type Kind int

const (
	// KindDetachedHandle carries a handle whose result is still pending
	KindDetachedHandle Kind = iota
	// KindResolvedPid carries the value reported by the detached process
	KindResolvedPid
	// KindSpawnFailed carries the failure
	KindSpawnFailed
)

func (k Kind) String() string {
	switch k {
	case KindDetachedHandle:
		return "detached"
	case KindResolvedPid:
		return "resolved"
	case KindSpawnFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of a spawn. Only the fields matching Kind are set.
type Outcome struct {
	Kind Kind

	Handle *Handle

	// Pid is the reported value. Without image replacement it is the
	// grandchild's pid; a replaced image reports whatever it chooses.
	Pid int

	// Errno is the error code when one is known
	Errno syscall.Errno
	// Err wraps one of the package's sentinel errors
	Err error
}

// Failed reports whether the spawn failed
func (o Outcome) Failed() bool {
	return o.Kind == KindSpawnFailed
}

// NewFailure builds a KindSpawnFailed outcome, extracting the errno from err
// when it carries one
func NewFailure(err error) Outcome {
	return Outcome{Kind: KindSpawnFailed, Errno: errnoOf(err), Err: err}
}
