// Package shell runs external programs with an argument vector and reports
// their output and exit code.
package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrTimeout is returned when a command is killed because its context
// deadline passed. It is distinct from a nonzero exit code.
var ErrTimeout = errors.New("command timed out")

// Result is the outcome of one command execution.
type Result struct {
	Content  string
	Stderr   string
	ExitCode int
}

// OK reports whether the command exited with status 0.
func (r Result) OK() bool {
	return r.ExitCode == 0
}

// Executor runs name with args in dir. A nonzero exit is reported through
// Result.ExitCode with a nil error; the error is reserved for commands that
// could not run to completion (timeout, cancellation, missing binary).
type Executor interface {
	Execute(ctx context.Context, dir string, name string, args ...string) (Result, error)
}

// ExecExecutor runs commands with os/exec. Env entries are appended to the
// process environment.
type ExecExecutor struct {
	Env []string
}

func NewExecExecutor(env ...string) *ExecExecutor {
	return &ExecExecutor{Env: env}
}

func (e *ExecExecutor) Execute(ctx context.Context, dir string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if strings.TrimSpace(dir) != "" {
		cmd.Dir = dir
	}
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := Result{Content: stdout.String(), Stderr: stderr.String()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return result, fmt.Errorf("%s %s: %w", name, summarize(args), ErrTimeout)
		}
		return result, fmt.Errorf("%s %s: %w", name, summarize(args), ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("run %s: %w", name, err)
	}
	return result, nil
}

// summarize keeps only the leading subcommand words so that URLs and paths
// never end up in error messages.
func summarize(args []string) string {
	words := make([]string, 0, 2)
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if strings.ContainsAny(arg, "/:@.") {
			break
		}
		words = append(words, arg)
		if len(words) == 2 {
			break
		}
	}
	if len(words) == 0 {
		return "<redacted>"
	}
	return strings.Join(words, " ")
}

var _ Executor = (*ExecExecutor)(nil)
