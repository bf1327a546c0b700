package gitcli

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedDiffLine is returned when a --name-status line has no
// parseable status code or no path.
var ErrMalformedDiffLine = errors.New("malformed diff line")

// FileChange is one entry of a change list.
type FileChange struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// ParseChanges converts `git diff --name-status` lines into file changes.
// The status is the first non-space character of the two-character prefix,
// so scored codes such as R100 reduce to R. Tab-separated lines take their
// last field as the path, which is the destination of a rename or copy.
func ParseChanges(lines []string) ([]FileChange, error) {
	changes := make([]FileChange, 0, len(lines))
	for _, line := range lines {
		change, err := parseChangeLine(line)
		if err != nil {
			return nil, err
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func parseChangeLine(line string) (FileChange, error) {
	prefix := line
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	status := strings.ReplaceAll(strings.TrimSpace(prefix), " ", "")
	if status == "" {
		return FileChange{}, fmt.Errorf("%w: %q", ErrMalformedDiffLine, line)
	}

	var path string
	if fields := strings.Split(line, "\t"); len(fields) > 1 {
		path = strings.TrimSpace(fields[len(fields)-1])
	} else if len(line) > 2 {
		path = strings.TrimSpace(line[2:])
	}
	if path == "" {
		return FileChange{}, fmt.Errorf("%w: %q", ErrMalformedDiffLine, line)
	}

	return FileChange{Status: status[:1], Path: path}, nil
}

// outputLines splits command output into lines, dropping the trailing
// newline the way a line-oriented reader would.
func outputLines(content string) []string {
	trimmed := strings.TrimRight(content, "\r\n")
	if trimmed == "" {
		return nil
	}
	lines := strings.Split(trimmed, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return lines
}
