// Package judge runs untrusted submissions inside disposable sandboxes and
// classifies each run into a closed outcome set.
package judge

import (
	"context"
	"fmt"
	"time"

	"jarcode/internal/judge/sandbox"
)

// Language tags as stored on the problems table.
const (
	LanguagePython = "PYTHON"
	LanguageJava   = "JAVA"
	LanguageCpp    = "CPP"
)

// Judge compiles and runs one language's submission against the problem's
// test code inside a fresh sandbox. Run never returns an error: every
// failure path maps to an Outcome, so callers treat the verdict as terminal.
type Judge interface {
	Run(ctx context.Context, solutionCode, testCode string, timeout time.Duration) Result
}

// Entry pairs a Judge with the wall-clock timeout applied to its runs.
type Entry struct {
	Judge   Judge
	Timeout time.Duration
}

// Registry maps a problem language tag to the judge that evaluates it.
// The mapping is resolved once at construction; an unmapped language is a
// configuration error, not a per-request condition.
type Registry map[string]Entry

// NewRegistry builds the registry for all supported languages against one
// shared sandbox backend. timeouts must contain a positive timeout for every
// supported language.
func NewRegistry(backend sandbox.Backend, timeouts map[string]time.Duration) (Registry, error) {
	if backend == nil {
		return nil, fmt.Errorf("sandbox backend is required")
	}

	judges := map[string]Judge{
		LanguagePython: NewPythonJudge(backend),
		LanguageJava:   NewJavaJudge(backend),
		LanguageCpp:    NewCppJudge(backend),
	}

	registry := make(Registry, len(judges))
	for lang, j := range judges {
		timeout, ok := timeouts[lang]
		if !ok {
			return nil, fmt.Errorf("no timeout configured for language %s", lang)
		}
		if timeout <= 0 {
			return nil, fmt.Errorf("timeout for language %s must be positive", lang)
		}
		registry[lang] = Entry{Judge: j, Timeout: timeout}
	}
	return registry, nil
}

// Lookup returns the entry for a language tag.
func (r Registry) Lookup(language string) (Entry, bool) {
	entry, ok := r[language]
	return entry, ok
}

// Languages returns the configured language tags.
func (r Registry) Languages() []string {
	langs := make([]string, 0, len(r))
	for lang := range r {
		langs = append(langs, lang)
	}
	return langs
}
