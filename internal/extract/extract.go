// Package extract normalizes a commit's changed files into dataset-specific
// keys: sorted path pairs for co-change analysis and individual paths for the
// heatmap.
package extract

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/sirupsen/logrus"
)

// MaxCommitMembers caps how many normalized members a commit may have before
// pair generation is skipped for it. One mega-commit touching hundreds of
// paths would otherwise contribute O(n²) pairs and dominate the whole run.
const MaxCommitMembers = 100

// binaryExtensions lists file extensions excluded from all key extraction:
// images, archives, fonts, and build artifacts.
var binaryExtensions = map[string]bool{
	// images
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".ico": true, ".webp": true, ".tiff": true,
	// archives
	".zip": true, ".tar": true, ".gz": true, ".tgz": true,
	".bz2": true, ".xz": true, ".rar": true, ".7z": true,
	// fonts
	".ttf": true, ".otf": true, ".woff": true, ".woff2": true, ".eot": true,
	// build artifacts
	".exe": true, ".dll": true, ".so": true, ".dylib": true,
	".a": true, ".o": true, ".obj": true, ".class": true,
	".jar": true, ".war": true, ".pyc": true, ".beam": true,
	".wasm": true, ".bin": true,
}

// PairEntry is one co-change observation: a sorted path pair plus the commit
// that produced it.
type PairEntry struct {
	GroupKey    string
	Members     []string
	CommitHash  string
	CommittedAt time.Time
}

// HeatEntry is one heatmap observation: a path touched by a commit.
type HeatEntry struct {
	Path        string
	CommittedAt time.Time
}

// IsBinaryPath reports whether a path is excluded by the binary denylist.
func IsBinaryPath(p string) bool {
	return binaryExtensions[strings.ToLower(path.Ext(p))]
}

// NormalizeMembers maps a commit's changed files to normalized, de-duplicated,
// sorted members for the given scope. File scope drops binary paths; directory
// scope maps each surviving file to its parent directory (root files map to
// ".").
func NormalizeMembers(files []string, scope models.Scope) []string {
	seen := make(map[string]bool, len(files))
	var members []string
	for _, f := range files {
		if f == "" || IsBinaryPath(f) {
			continue
		}
		member := f
		if scope == models.ScopeDirectory {
			member = path.Dir(f)
		}
		if !seen[member] {
			seen[member] = true
			members = append(members, member)
		}
	}
	sort.Strings(members)
	return members
}

// PairEntries produces all unordered 2-combinations of a commit's normalized
// members. Commits whose member count exceeds MaxCommitMembers contribute no
// pairs at all; skipped reports that case so callers can surface it.
func PairEntries(commit models.CommitEvent, scope models.Scope, log *logrus.Logger) (entries []PairEntry, skipped bool) {
	members := NormalizeMembers(commit.Files, scope)
	if len(members) < 2 {
		return nil, false
	}
	if len(members) > MaxCommitMembers {
		if log != nil {
			log.WithFields(logrus.Fields{
				"commit":  commit.Hash,
				"scope":   scope,
				"members": len(members),
				"cap":     MaxCommitMembers,
			}).Warn("commit exceeds member cap, skipping pair generation")
		}
		return nil, true
	}

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			// members is sorted, so the pair is already in key order
			pair := []string{members[i], members[j]}
			entries = append(entries, PairEntry{
				GroupKey:    models.GroupKeyFor(pair),
				Members:     pair,
				CommitHash:  commit.Hash,
				CommittedAt: commit.Timestamp,
			})
		}
	}
	return entries, false
}

// HeatEntries produces one entry per normalized file-scope member of a commit.
// The guardrail does not apply: per-path counting is linear in commit size.
func HeatEntries(commit models.CommitEvent) []HeatEntry {
	members := NormalizeMembers(commit.Files, models.ScopeFile)
	entries := make([]HeatEntry, 0, len(members))
	for _, m := range members {
		entries = append(entries, HeatEntry{Path: m, CommittedAt: commit.Timestamp})
	}
	return entries
}
