package git

import (
	"os"
	"os/exec"
)

// RepoResolver maps a project ID to a local working directory. The second
// return is false when no reachable repo exists; the engine then skips the
// git-dependent portion of a run but still advances the watermark.
type RepoResolver interface {
	Resolve(projectID string) (string, bool)
}

// PathResolver resolves project IDs through a static map of configured
// working directories, verifying each is a git work tree on disk.
type PathResolver struct {
	paths map[string]string
}

// NewPathResolver creates a resolver over configured project paths.
func NewPathResolver(paths map[string]string) *PathResolver {
	return &PathResolver{paths: paths}
}

func (r *PathResolver) Resolve(projectID string) (string, bool) {
	path, ok := r.paths[projectID]
	if !ok || path == "" {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}

	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = path
	if err := cmd.Run(); err != nil {
		return "", false
	}

	return path, true
}
