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
	javaImage        = "java_judge:latest"
	javaSolutionFile = "Solution.java"
	javaTestFile     = "SolutionTest.java"
	junitJar         = "/opt/junit/junit-platform-console-standalone.jar"

	// compileFailedExit is the reserved sentinel a judge script exits with
	// when compilation fails, so the test runner is never invoked.
	compileFailedExit = 100
)

// JavaJudge compiles a java submission and runs its JUnit test class inside
// a disposable container. gVisor is used as the runtime since the JVM needs
// a wider syscall surface than the interpreter images.
type JavaJudge struct {
	backend sandbox.Backend
}

func NewJavaJudge(backend sandbox.Backend) *JavaJudge {
	return &JavaJudge{backend: backend}
}

func (j *JavaJudge) Run(ctx context.Context, solutionCode, testCode string, timeout time.Duration) Result {
	classpath := ".:" + junitJar
	script := strings.Join([]string{
		"export TMPDIR=/home/user && " +
			writeFileCommand(solutionCode, javaSolutionFile) + " && " +
			writeFileCommand(testCode, javaTestFile) + " && " +
			"javac -cp " + classpath + " " + javaSolutionFile + " " + javaTestFile + " 2>&1",
		"COMP=$?",
		fmt.Sprintf("if [ $COMP -ne 0 ]; then exit %d; fi", compileFailedExit),
		"java -jar " + junitJar + " -cp . -c SolutionTest --disable-banner",
	}, "; ")

	spec := sandbox.RunSpec{
		Image:       javaImage,
		Command:     []string{"/bin/sh", "-c", script},
		MemoryBytes: 512 << 20,
		NanoCPUs:    500_000_000,
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
		// The JUnit console launcher exits nonzero for failed assertions
		// and uncaught exceptions alike, so every other nonzero exit is a
		// runtime error.
		return resultWithOutput(OutcomeRuntimeError, res.Output)
	}
}
