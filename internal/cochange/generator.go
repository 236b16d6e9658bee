// Package cochange maintains co-change groups: sets of paths that repeatedly
// change together inside the rolling window, with per-commit provenance rows
// as the ground-truth frequency counter.
package cochange

import (
	"sort"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/extract"
	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/sirupsen/logrus"
)

// MatchingCommit identifies one commit supporting a group.
type MatchingCommit struct {
	Hash      string
	Timestamp time.Time
}

// Group is a generator result: a key, its members, and the commits in which
// the members changed together.
type Group struct {
	GroupKey        string
	Members         []string
	Frequency       int
	LastSeenAt      time.Time
	MatchingCommits []MatchingCommit
}

// Generator derives the complete group set from a commit list. Only groups
// with frequency >= 2 are returned; paths changing together once never form
// a group.
type Generator interface {
	Generate(commits []models.CommitEvent, scope models.Scope) []Group
}

// PairGenerator is the default Generator: every group is an unordered path
// pair observed in at least two commits. The large-commit guardrail applies,
// so mega-commits contribute no pairs.
type PairGenerator struct {
	logger *logrus.Logger
}

// NewPairGenerator creates the default pair-based generator.
func NewPairGenerator(logger *logrus.Logger) *PairGenerator {
	return &PairGenerator{logger: logger}
}

func (g *PairGenerator) Generate(commits []models.CommitEvent, scope models.Scope) []Group {
	type acc struct {
		members []string
		commits []MatchingCommit
		lastAt  time.Time
	}
	byKey := make(map[string]*acc)

	for _, commit := range commits {
		entries, _ := extract.PairEntries(commit, scope, g.logger)
		for _, e := range entries {
			a, ok := byKey[e.GroupKey]
			if !ok {
				a = &acc{members: e.Members}
				byKey[e.GroupKey] = a
			}
			a.commits = append(a.commits, MatchingCommit{Hash: e.CommitHash, Timestamp: e.CommittedAt})
			if e.CommittedAt.After(a.lastAt) {
				a.lastAt = e.CommittedAt
			}
		}
	}

	var groups []Group
	for key, a := range byKey {
		if len(a.commits) < 2 {
			continue
		}
		groups = append(groups, Group{
			GroupKey:        key,
			Members:         a.members,
			Frequency:       len(a.commits),
			LastSeenAt:      a.lastAt,
			MatchingCommits: a.commits,
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].Frequency != groups[j].Frequency {
			return groups[i].Frequency > groups[j].Frequency
		}
		return groups[i].GroupKey < groups[j].GroupKey
	})
	return groups
}
