package git

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Measurer reports the size and line count of one path as it existed at a
// commit. Full rebuilds use it for group member stats and heatmap enrichment.
type Measurer interface {
	Measure(ctx context.Context, repoPath, commitHash, path string) (sizeBytes int64, loc int, err error)
}

// CLIMeasurer implements Measurer with git cat-file and git show.
type CLIMeasurer struct{}

// NewCLIMeasurer creates a git-backed measurer.
func NewCLIMeasurer() *CLIMeasurer {
	return &CLIMeasurer{}
}

func (m *CLIMeasurer) Measure(ctx context.Context, repoPath, commitHash, path string) (int64, int, error) {
	spec := commitHash + ":" + path

	sizeCmd := exec.CommandContext(ctx, "git", "cat-file", "-s", spec)
	sizeCmd.Dir = repoPath
	sizeOut, err := sizeCmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("git cat-file -s %s: %w", spec, err)
	}
	size, err := strconv.ParseInt(strings.TrimSpace(string(sizeOut)), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse size for %s: %w", spec, err)
	}

	showCmd := exec.CommandContext(ctx, "git", "show", spec)
	showCmd.Dir = repoPath
	content, err := showCmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("git show %s: %w", spec, err)
	}

	return size, countLines(content), nil
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	loc := bytes.Count(content, []byte("\n"))
	if content[len(content)-1] != '\n' {
		loc++
	}
	return loc
}
