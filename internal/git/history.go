// Package git shells out to the git CLI for commit history, repo path
// resolution, and per-file measurement at a commit.
package git

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
)

// HistoryProvider supplies commit events for a repo path and time range. The
// engine treats provider errors as "empty result for that range"; ordering is
// not guaranteed and callers filter timestamps themselves.
type HistoryProvider interface {
	Commits(ctx context.Context, repoPath string, since, until time.Time) ([]models.CommitEvent, error)
}

// CLIProvider implements HistoryProvider with git log.
type CLIProvider struct{}

// NewCLIProvider creates a git-log-backed history provider.
func NewCLIProvider() *CLIProvider {
	return &CLIProvider{}
}

// Commits runs git log with numstat over the given range and parses the
// output into commit events, sorted by timestamp ascending.
func (p *CLIProvider) Commits(ctx context.Context, repoPath string, since, until time.Time) ([]models.CommitEvent, error) {
	cmd := exec.CommandContext(ctx, "git", "log",
		fmt.Sprintf("--since=%s", since.Format(time.RFC3339)),
		fmt.Sprintf("--until=%s", until.Format(time.RFC3339)),
		"--numstat",
		"--pretty=format:%H|%ad",
		"--date=iso-strict")
	cmd.Dir = repoPath

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("git log failed: %w (output: %s)", err, string(output))
	}

	commits, err := parseGitLogOutput(string(output))
	if err != nil {
		return nil, err
	}

	sort.Slice(commits, func(i, j int) bool {
		return commits[i].Timestamp.Before(commits[j].Timestamp)
	})
	return commits, nil
}

// parseGitLogOutput parses raw git log output into commit events.
func parseGitLogOutput(output string) ([]models.CommitEvent, error) {
	var commits []models.CommitEvent
	var current *models.CommitEvent

	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()

		// Empty line separates commits
		if line == "" {
			if current != nil {
				commits = append(commits, *current)
				current = nil
			}
			continue
		}

		// Commit header line: SHA|Date
		if strings.Contains(line, "|") {
			if current != nil {
				commits = append(commits, *current)
			}

			parts := strings.SplitN(line, "|", 2)
			if len(parts) != 2 {
				continue // Skip malformed lines
			}

			timestamp, err := time.Parse(time.RFC3339, parts[1])
			if err != nil {
				continue
			}

			current = &models.CommitEvent{
				Hash:      parts[0],
				Timestamp: timestamp,
			}
			continue
		}

		// Numstat line: additions deletions path
		if current != nil {
			fields := strings.Fields(line)
			if len(fields) >= 3 {
				// Binary files show "-" for both counts
				if fields[0] == "-" && fields[1] == "-" {
					continue
				}
				current.Files = append(current.Files, strings.Join(fields[2:], " "))
			}
		}
	}

	// Don't forget the last commit
	if current != nil {
		commits = append(commits, *current)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning git log output: %w", err)
	}

	return commits, nil
}
