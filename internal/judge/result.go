package judge

import "unicode/utf8"

// Outcome is the closed verdict set for one execution attempt. Values are
// stored and transmitted as-is, so they must stay stable.
type Outcome string

const (
	OutcomePassed              Outcome = "PASSED"
	OutcomeRuntimeError        Outcome = "RUN_ERR"
	OutcomeCompilationError    Outcome = "COMP_ERR"
	OutcomeTimeout             Outcome = "TIMEOUT"
	OutcomeInternalServerError Outcome = "INT_SERV_ERR"
)

// Valid reports whether o is a member of the outcome enumeration.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePassed, OutcomeRuntimeError, OutcomeCompilationError,
		OutcomeTimeout, OutcomeInternalServerError:
		return true
	}
	return false
}

// MaxOutputChars bounds captured output before it leaves the judge boundary,
// regardless of what the untrusted program prints.
const MaxOutputChars = 100_000

// Result carries the captured output and verdict of one run.
// Output is nil exactly when the run produced nothing capturable:
// a timeout, or an infrastructure failure before the sandbox started.
type Result struct {
	Output  *string
	Outcome Outcome
}

func resultWithOutput(outcome Outcome, output string) Result {
	output = TruncateOutput(output)
	return Result{Output: &output, Outcome: outcome}
}

func resultNoOutput(outcome Outcome) Result {
	return Result{Outcome: outcome}
}

// TruncateOutput caps s at MaxOutputChars characters without splitting a rune.
func TruncateOutput(s string) string {
	if utf8.RuneCountInString(s) <= MaxOutputChars {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxOutputChars {
			return s[:i]
		}
		n++
	}
	return s
}
