// Package workspace manages per-user project directories under a base
// directory.
package workspace

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	ErrInvalidPath = errors.New("invalid workspace path")
	ErrNotFound    = errors.New("project not found")
)

// Project describes one top-level directory of a user's workspace.
type Project struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	IsRepository bool      `json:"is_repository"`
	Branch       string    `json:"branch,omitempty"`
	HeadCommit   string    `json:"head_commit,omitempty"`
	HeadMessage  string    `json:"head_message,omitempty"`
	RemoteURL    string    `json:"remote_url,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*pathLock
}

// pathLock is dropped from Service.locks once nobody holds or waits on it.
type pathLock struct {
	mu   sync.Mutex
	refs int
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*pathLock),
	}
}

func (s *Service) BaseDir() string {
	return s.baseDir
}

// UserDir returns the user's workspace root, creating it when missing.
func (s *Service) UserDir(userID string) (string, error) {
	if !validSegment(userID) {
		return "", fmt.Errorf("%w: user %q", ErrInvalidPath, userID)
	}
	dir := filepath.Join(s.baseDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create user workspace: %w", err)
	}
	return dir, nil
}

// ProjectPath resolves a path relative to the user's workspace. Absolute
// paths and paths with ".." segments are rejected.
func (s *Service) ProjectPath(userID, relative string) (string, error) {
	relative, err := CleanRelative(relative)
	if err != nil {
		return "", err
	}
	root, err := s.UserDir(userID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, relative)
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relative)
	}
	return path, nil
}

// CleanRelative validates a path that must stay below some root: it is
// non-empty, relative, free of ".." segments and does not look like a command
// line option.
func CleanRelative(relative string) (string, error) {
	relative = strings.TrimSpace(relative)
	if relative == "" || filepath.IsAbs(relative) || strings.HasPrefix(relative, `\`) || strings.HasPrefix(relative, "-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, relative)
	}
	for _, segment := range strings.FieldsFunc(relative, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, relative)
		}
	}
	return filepath.Clean(relative), nil
}

// ProjectDir is ProjectPath for a path that must be an existing directory
// reached without following symlinks out of the workspace.
func (s *Service) ProjectDir(userID, relative string) (string, error) {
	path, err := s.ProjectPath(userID, relative)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotFound, relative)
	}
	root, err := s.UserDir(userID)
	if err != nil {
		return "", err
	}
	if _, err := ResolveInside(root, relative); err != nil {
		return "", err
	}
	return path, nil
}

// ResolveInside validates relative with CleanRelative and checks that
// root/relative does not leave root through a symlink. Components that do
// not exist yet are accepted; a dangling symlink is not. It returns the
// cleaned relative path.
func ResolveInside(root, relative string) (string, error) {
	relative, err := CleanRelative(relative)
	if err != nil {
		return "", err
	}
	realRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}

	for current := filepath.Join(root, relative); ; {
		resolved, err := filepath.EvalSymlinks(current)
		if err == nil {
			if !within(realRoot, resolved) {
				return "", fmt.Errorf("%w: %q resolves outside the project", ErrInvalidPath, relative)
			}
			return relative, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("resolve %q: %w", relative, err)
		}
		if _, lerr := os.Lstat(current); lerr == nil {
			return "", fmt.Errorf("%w: %q is a dangling link", ErrInvalidPath, relative)
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, relative)
		}
		current = parent
	}
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// Lock serializes repository operations on one path. The returned func
// releases it.
func (s *Service) Lock(path string) func() {
	s.lockMu.Lock()
	lock, ok := s.locks[path]
	if !ok {
		lock = &pathLock{}
		s.locks[path] = lock
	}
	lock.refs++
	s.lockMu.Unlock()

	lock.mu.Lock()
	var once sync.Once
	return func() {
		once.Do(func() {
			lock.mu.Unlock()
			s.lockMu.Lock()
			lock.refs--
			if lock.refs == 0 {
				delete(s.locks, path)
			}
			s.lockMu.Unlock()
		})
	}
}

// RemoveProject deletes a project directory, e.g. a partial clone. It only
// removes paths inside the base directory.
func (s *Service) RemoveProject(path string) error {
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove project: %w", err)
	}
	return nil
}

func (s *Service) ListProjects(userID string) ([]Project, error) {
	root, err := s.UserDir(userID)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read user workspace: %w", err)
	}

	projects := make([]Project, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("stat project %s: %w", entry.Name(), err)
		}
		project := Project{Name: entry.Name(), Path: entry.Name(), UpdatedAt: info.ModTime().UTC()}
		if err := describeRepository(filepath.Join(root, entry.Name()), &project); err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	sort.Slice(projects, func(i, j int) bool { return projects[i].Name < projects[j].Name })
	return projects, nil
}

func describeRepository(path string, project *Project) error {
	repo, err := git.PlainOpen(path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open repo %s: %w", project.Name, err)
	}
	project.IsRepository = true

	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		project.RemoteURL = remote.Config().URLs[0]
	}

	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		if ref, refErr := repo.Storer.Reference(plumbing.HEAD); refErr == nil && ref.Type() == plumbing.SymbolicReference {
			project.Branch = ref.Target().Short()
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read head %s: %w", project.Name, err)
	}
	if head.Name().IsBranch() {
		project.Branch = head.Name().Short()
	}
	project.HeadCommit = head.Hash().String()

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return fmt.Errorf("read head commit %s: %w", project.Name, err)
	}
	project.HeadMessage = strings.TrimSpace(commit.Message)
	project.UpdatedAt = commit.Committer.When.UTC()
	return nil
}

// RepositoryNameFromURL derives the clone directory from a URL ending in
// .git: the last path segment without the suffix.
func RepositoryNameFromURL(repoURL string) string {
	trimmed := strings.TrimSuffix(strings.TrimSpace(repoURL), ".git")
	if idx := strings.LastIndexAny(trimmed, "/:"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	}
	if !validSegment(trimmed) {
		return ""
	}
	return trimmed
}

func validSegment(value string) bool {
	value = strings.TrimSpace(value)
	return value != "" && value != "." && value != ".." && !strings.ContainsAny(value, `/\`) && !strings.HasPrefix(value, "-")
}
