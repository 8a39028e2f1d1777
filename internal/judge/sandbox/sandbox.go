// Package sandbox abstracts the container engine that executes untrusted
// submission code. Each run gets a fresh, disposable container that is never
// reused or shared between submissions.
package sandbox

import (
	"context"
	"errors"
	"time"
)

// ErrTimeout is returned by Backend.Run when the container did not finish
// within the allotted wall-clock timeout. The container has been killed and
// any output it produced is discarded.
var ErrTimeout = errors.New("sandbox run timed out")

// RunSpec describes one disposable container run.
type RunSpec struct {
	// Image is the pre-provisioned judge image for the language.
	Image string

	// Command is the full argv, typically ["/bin/sh", "-c", script].
	Command []string

	// MemoryBytes caps memory. Swap is pinned to the same value so the
	// limit cannot be escaped by swapping.
	MemoryBytes int64

	// NanoCPUs fixes the CPU share (1e9 = one full CPU).
	NanoCPUs int64

	// PidsLimit caps the process count; 0 leaves it unlimited.
	PidsLimit int64

	// User is the non-privileged uid the command runs as.
	User string

	// Tmpfs maps mount points to tmpfs option strings. The scratch area the
	// submission writes to lives here; the root filesystem stays read-only.
	Tmpfs map[string]string

	// Runtime selects an alternative OCI runtime ("runsc" for gVisor);
	// empty means the engine default.
	Runtime string
}

// RunResult is the terminal state of a completed (non-timeout) run.
type RunResult struct {
	ExitCode int64
	// Output is combined stdout+stderr, bounded by the backend.
	Output string
}

// Backend executes one RunSpec to completion. It returns ErrTimeout on
// timeout expiry; any other error means the platform itself failed (engine
// unreachable, image missing, API error) rather than the submitted code.
type Backend interface {
	Run(ctx context.Context, spec RunSpec, timeout time.Duration) (RunResult, error)
}
