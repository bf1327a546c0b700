package shell

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestExecExecutorCapturesStdout(t *testing.T) {
	executor := NewExecExecutor()

	result, err := executor.Execute(context.Background(), "", "echo", "hello")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Content != "hello\n" {
		t.Fatalf("expected %q, got %q", "hello\n", result.Content)
	}
	if !result.OK() {
		t.Fatalf("expected exit code 0, got %d", result.ExitCode)
	}
}

func TestExecExecutorReportsNonzeroExitWithoutError(t *testing.T) {
	executor := NewExecExecutor()

	result, err := executor.Execute(context.Background(), "", "sh", "-c", "echo oops >&2; exit 3")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", result.ExitCode)
	}
	if result.Stderr != "oops\n" {
		t.Fatalf("expected stderr captured separately, got %q", result.Stderr)
	}
	if result.Content != "" {
		t.Fatalf("expected empty stdout, got %q", result.Content)
	}
}

func TestExecExecutorTimeoutIsDistinctError(t *testing.T) {
	executor := NewExecExecutor()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := executor.Execute(ctx, "", "sleep", "5")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestExecExecutorMissingBinary(t *testing.T) {
	executor := NewExecExecutor()

	result, err := executor.Execute(context.Background(), "", "definitely-not-a-real-binary-xyz")
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("missing binary must not be reported as a timeout: %v", err)
	}
	if result.ExitCode != -1 {
		t.Fatalf("expected exit code -1, got %d", result.ExitCode)
	}
}

func TestExecExecutorRunsInDirectory(t *testing.T) {
	dir := t.TempDir()
	executor := NewExecExecutor()

	result, err := executor.Execute(context.Background(), dir, "pwd")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Content == "" {
		t.Fatal("expected pwd output")
	}
}

func TestSummarizeRedactsURLs(t *testing.T) {
	got := summarize([]string{"--no-pager", "clone", "--", "https://token@example.com/r.git", "r"})
	if got != "clone" {
		t.Fatalf("expected %q, got %q", "clone", got)
	}
	if summarize([]string{"https://example.com"}) != "<redacted>" {
		t.Fatal("expected fully redacted summary")
	}
}
