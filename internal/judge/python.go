package judge

import (
	"context"
	"errors"
	"strings"
	"time"

	"jarcode/internal/judge/sandbox"
)

const (
	pythonImage        = "python_judge:latest"
	pythonSolutionFile = "solution.py"
	pythonTestFile     = "test.py"
)

// PythonJudge runs a python submission with pytest inside a disposable
// container.
type PythonJudge struct {
	backend sandbox.Backend
}

func NewPythonJudge(backend sandbox.Backend) *PythonJudge {
	return &PythonJudge{backend: backend}
}

func (j *PythonJudge) Run(ctx context.Context, solutionCode, testCode string, timeout time.Duration) Result {
	script := strings.Join([]string{
		writeFileCommand(solutionCode, pythonSolutionFile),
		writeFileCommand(testCode, pythonTestFile),
		"pytest " + pythonTestFile,
	}, " && ")

	spec := sandbox.RunSpec{
		Image:       pythonImage,
		Command:     []string{"/bin/sh", "-c", script},
		MemoryBytes: 512 << 20,
		NanoCPUs:    1_000_000_000,
		PidsLimit:   20,
		User:        "1000",
		Tmpfs:       map[string]string{"/home/user": "size=50m,uid=1000"},
	}

	res, err := j.backend.Run(ctx, spec, timeout)
	if err != nil {
		if errors.Is(err, sandbox.ErrTimeout) {
			return resultNoOutput(OutcomeTimeout)
		}
		return resultNoOutput(OutcomeInternalServerError)
	}

	if res.ExitCode == 0 {
		return resultWithOutput(OutcomePassed, res.Output)
	}
	// pytest exits nonzero for assertion failures and for crashes alike,
	// without a distinguishing code, so every nonzero exit is a runtime
	// error.
	return resultWithOutput(OutcomeRuntimeError, res.Output)
}
