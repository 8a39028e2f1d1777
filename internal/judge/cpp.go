package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jarcode/internal/judge/sandbox"
)

const (
	cppImage        = "cpp_judge:latest"
	cppSolutionFile = "solution.cpp"
	cppTestFile     = "test.cpp"
)

// CppJudge compiles a C++ submission with its Catch2 test file and runs the
// resulting binary inside a disposable container.
type CppJudge struct {
	backend sandbox.Backend
}

func NewCppJudge(backend sandbox.Backend) *CppJudge {
	return &CppJudge{backend: backend}
}

func (j *CppJudge) Run(ctx context.Context, solutionCode, testCode string, timeout time.Duration) Result {
	script := strings.Join([]string{
		"export TMPDIR=/home/user && " +
			writeFileCommand(solutionCode, cppSolutionFile) + " && " +
			writeFileCommand(testCode, cppTestFile) + " && " +
			"g++ -std=c++20 -O2 " + cppTestFile + " -o tests -lCatch2Main -lCatch2 2>&1",
		"COMP=$?",
		fmt.Sprintf("if [ $COMP -ne 0 ]; then exit %d; fi", compileFailedExit),
		"./tests",
	}, "; ")

	spec := sandbox.RunSpec{
		Image:       cppImage,
		Command:     []string{"/bin/sh", "-c", script},
		MemoryBytes: 512 << 20,
		NanoCPUs:    1_000_000_000,
		User:        "1000",
		Tmpfs:       map[string]string{"/home/user": "size=50m,uid=1000,exec"},
		Runtime:     "runsc",
	}

	res, err := j.backend.Run(ctx, spec, timeout)
	if err != nil {
		if errors.Is(err, sandbox.ErrTimeout) {
			return resultNoOutput(OutcomeTimeout)
		}
		return resultNoOutput(OutcomeInternalServerError)
	}

	switch {
	case res.ExitCode == 0:
		return resultWithOutput(OutcomePassed, res.Output)
	case res.ExitCode == compileFailedExit:
		return resultWithOutput(OutcomeCompilationError, res.Output)
	default:
		// Catch2 exits with the failed-assertion count on test failure and
		// the shell reports signals as 128+n; neither is separable from a
		// crash here, so every other nonzero exit is a runtime error.
		return resultWithOutput(OutcomeRuntimeError, res.Output)
	}
}
