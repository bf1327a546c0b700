// Package gitcli drives the git binary through a shell.Executor to answer
// repository-state queries and perform basic repository lifecycle actions.
package gitcli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"mojocode/api/internal/shell"
)

// EmptyTreeSHA is the hash of the empty tree, usable as a diff base in any
// repository.
const EmptyTreeSHA = "4b825dc642cb6eb9a060e54bf8d69288fbee4904"

// DefaultCommandTimeout bounds each git invocation when the handler is
// created without an explicit timeout.
const DefaultCommandTimeout = 2 * time.Minute

const defaultPushBranch = "main"

var (
	ErrNoDefaultBranch = errors.New("no default branch")
	ErrDiffFailed      = errors.New("git diff failed")
	ErrInvalidArgument = errors.New("invalid git argument")
)

// Diff holds the live and the reference content of one file.
type Diff struct {
	Modified string `json:"modified"`
	Original string `json:"original"`
}

// Handler runs git commands against a working directory. It is not safe for
// concurrent use; callers create one per unit of work.
type Handler struct {
	executor shell.Executor
	timeout  time.Duration
	cwd      string
}

func NewHandler(executor shell.Executor, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return &Handler{executor: executor, timeout: timeout}
}

// SetWorkingDirectory records the directory used by subsequent queries. The
// path is not validated.
func (h *Handler) SetWorkingDirectory(path string) {
	h.cwd = path
}

func (h *Handler) WorkingDirectory() string {
	return h.cwd
}

func (h *Handler) IsRepository(ctx context.Context) (bool, error) {
	result, err := h.git(ctx, h.cwd, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(result.Content) == "true", nil
}

func (h *Handler) CurrentBranch(ctx context.Context) (string, error) {
	result, err := h.git(ctx, h.cwd, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(result.Content), nil
}

// DefaultBranch reads the HEAD branch of the origin remote.
func (h *Handler) DefaultBranch(ctx context.Context) (string, error) {
	result, err := h.git(ctx, h.cwd, "remote", "show", "origin")
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", fmt.Errorf("%w: remote show origin exited %d", ErrNoDefaultBranch, result.ExitCode)
	}
	for _, line := range outputLines(result.Content) {
		if !strings.Contains(line, "HEAD branch") {
			continue
		}
		fields := strings.Fields(line)
		branch := strings.TrimSpace(fields[len(fields)-1])
		if branch == "" || branch == "(unknown)" || strings.HasSuffix(branch, ":") {
			break
		}
		return branch, nil
	}
	return "", fmt.Errorf("%w: origin reports no HEAD branch", ErrNoDefaultBranch)
}

func (h *Handler) ReferenceExists(ctx context.Context, ref string) (bool, error) {
	if strings.HasPrefix(ref, "-") {
		return false, nil
	}
	result, err := h.git(ctx, h.cwd, "rev-parse", "--verify", ref)
	if err != nil {
		return false, err
	}
	return result.OK(), nil
}

// ResolveComparisonReference picks the base to diff the working tree
// against: origin/<current>, the merge-base with origin/<default>,
// origin/<default>, then the empty tree. ok is false when none exists.
func (h *Handler) ResolveComparisonReference(ctx context.Context) (ref string, ok bool, err error) {
	candidates, err := h.comparisonCandidates(ctx)
	if err != nil {
		return "", false, err
	}
	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		exists, err := h.ReferenceExists(ctx, candidate)
		if err != nil {
			return "", false, err
		}
		if exists {
			return candidate, true, nil
		}
	}
	return "", false, nil
}

func (h *Handler) comparisonCandidates(ctx context.Context) ([]string, error) {
	current, err := h.CurrentBranch(ctx)
	if err != nil {
		return nil, err
	}
	defaultBranch, err := h.DefaultBranch(ctx)
	if err != nil && !errors.Is(err, ErrNoDefaultBranch) {
		return nil, err
	}

	candidates := make([]string, 0, 4)
	if current != "" {
		candidates = append(candidates, "origin/"+current)
	}
	if defaultBranch != "" {
		mergeBase, err := h.mergeBase(ctx, "origin/"+defaultBranch)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, mergeBase, "origin/"+defaultBranch)
	}
	return append(candidates, EmptyTreeSHA), nil
}

// mergeBase returns "" when git cannot compute one.
func (h *Handler) mergeBase(ctx context.Context, upstream string) (string, error) {
	result, err := h.git(ctx, h.cwd, "merge-base", "HEAD", upstream)
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", nil
	}
	return strings.TrimSpace(result.Content), nil
}

// ChangedFiles lists tracked changes against the comparison reference. No
// reference means no changes; a failing diff is an error.
func (h *Handler) ChangedFiles(ctx context.Context) ([]FileChange, error) {
	ref, ok, err := h.ResolveComparisonReference(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []FileChange{}, nil
	}

	result, err := h.git(ctx, h.cwd, "diff", "--name-status", ref, "--")
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return nil, fmt.Errorf("%w for ref %s in %s: %s", ErrDiffFailed, ref, h.cwd, strings.TrimSpace(result.Stderr+result.Content))
	}
	return ParseChanges(outputLines(result.Content))
}

// UntrackedFiles lists untracked, non-ignored files as additions. A failing
// listing yields no files rather than an error.
func (h *Handler) UntrackedFiles(ctx context.Context) ([]FileChange, error) {
	result, err := h.git(ctx, h.cwd, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	if !result.OK() {
		return []FileChange{}, nil
	}
	lines := outputLines(result.Content)
	changes := make([]FileChange, 0, len(lines))
	for _, path := range lines {
		changes = append(changes, FileChange{Status: "A", Path: path})
	}
	return changes, nil
}

// RepositoryChanges returns tracked changes followed by untracked files. ok
// is false when the working directory is not inside a repository.
func (h *Handler) RepositoryChanges(ctx context.Context) ([]FileChange, bool, error) {
	isRepo, err := h.IsRepository(ctx)
	if err != nil {
		return nil, false, err
	}
	if !isRepo {
		return nil, false, nil
	}

	changed, err := h.ChangedFiles(ctx)
	if err != nil {
		return nil, true, err
	}
	untracked, err := h.UntrackedFiles(ctx)
	if err != nil {
		return nil, true, err
	}
	return append(changed, untracked...), true, nil
}

func (h *Handler) FileDiff(ctx context.Context, path string) (Diff, error) {
	current, err := h.run(ctx, h.cwd, "cat", "--", path)
	if err != nil {
		return Diff{}, err
	}
	original, err := h.referenceContent(ctx, path)
	if err != nil {
		return Diff{}, err
	}
	return Diff{Modified: current.Content, Original: original}, nil
}

func (h *Handler) referenceContent(ctx context.Context, path string) (string, error) {
	ref, ok, err := h.ResolveComparisonReference(ctx)
	if err != nil || !ok {
		return "", err
	}
	result, err := h.git(ctx, h.cwd, "show", ref+":"+path)
	if err != nil {
		return "", err
	}
	if !result.OK() {
		return "", nil
	}
	return result.Content, nil
}

// CloneRepository clones url into localPath. The clone runs in the parent of
// localPath, or in the working directory when localPath is a bare name.
func (h *Handler) CloneRepository(ctx context.Context, url, localPath string) (bool, error) {
	parent, leaf := filepath.Split(localPath)
	if leaf == "" {
		return false, fmt.Errorf("%w: clone target %q has no name", ErrInvalidArgument, localPath)
	}
	dir := h.cwd
	if parent != "" {
		dir = filepath.Clean(parent)
	}
	result, err := h.git(ctx, dir, "clone", "--", url, leaf)
	if err != nil {
		return false, err
	}
	return result.OK(), nil
}

func (h *Handler) InitRepository(ctx context.Context, localPath string) (bool, error) {
	result, err := h.git(ctx, localPath, "init")
	if err != nil {
		return false, err
	}
	return result.OK(), nil
}

// CommitAll stages everything under localPath and commits it. The commit is
// not attempted when staging fails.
func (h *Handler) CommitAll(ctx context.Context, localPath, message string) (bool, error) {
	added, err := h.git(ctx, localPath, "add", ".")
	if err != nil {
		return false, err
	}
	if !added.OK() {
		return false, nil
	}
	committed, err := h.git(ctx, localPath, "commit", "-m", message)
	if err != nil {
		return false, err
	}
	return committed.OK(), nil
}

func (h *Handler) AddRemote(ctx context.Context, localPath, remoteName, remoteURL string) (bool, error) {
	if err := checkOperand("remote name", remoteName); err != nil {
		return false, err
	}
	if err := checkOperand("remote url", remoteURL); err != nil {
		return false, err
	}
	result, err := h.git(ctx, localPath, "remote", "add", remoteName, remoteURL)
	if err != nil {
		return false, err
	}
	return result.OK(), nil
}

// PushToRemote pushes branchName (main when empty) and sets its upstream.
func (h *Handler) PushToRemote(ctx context.Context, localPath, remoteName, branchName string) (bool, error) {
	if branchName == "" {
		branchName = defaultPushBranch
	}
	if err := checkOperand("remote name", remoteName); err != nil {
		return false, err
	}
	if err := checkOperand("branch name", branchName); err != nil {
		return false, err
	}
	result, err := h.git(ctx, localPath, "push", "-u", remoteName, branchName)
	if err != nil {
		return false, err
	}
	return result.OK(), nil
}

func (h *Handler) git(ctx context.Context, dir string, args ...string) (shell.Result, error) {
	return h.run(ctx, dir, "git", append([]string{"--no-pager"}, args...)...)
}

func (h *Handler) run(ctx context.Context, dir, name string, args ...string) (shell.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	return h.executor.Execute(ctx, dir, name, args...)
}

func checkOperand(label, value string) error {
	if strings.TrimSpace(value) == "" || strings.HasPrefix(value, "-") {
		return fmt.Errorf("%w: %s %q", ErrInvalidArgument, label, value)
	}
	return nil
}
