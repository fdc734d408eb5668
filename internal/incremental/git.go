package incremental

import (
	"os/exec"
	"strings"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
)

// GitDiff is the result of the git-aware incremental variant
// (spec.md §4.3): when a cached entry is a git checkout, comparing
// commits directly is both cheaper and more precise than a full
// manifest walk.
type GitDiff struct {
	Pulled       bool
	ChangedFiles []string
}

// GitAwareUpdate implements spec.md §4.3's "Git-aware variant": if the
// checkout's current commit differs from the remote's head, pull, then
// report the changed files via `git diff --name-only` directly rather
// than recomputing a full file manifest.
func GitAwareUpdate(repo *vcs.GitRepo) (*GitDiff, error) {
	before, err := repo.Current()
	if err != nil {
		return nil, errors.Wrap(err, "incremental: reading current commit")
	}

	if err := repo.Update(); err != nil {
		return nil, errors.Wrap(err, "incremental: git update")
	}

	after, err := repo.Current()
	if err != nil {
		return nil, errors.Wrap(err, "incremental: reading updated commit")
	}

	if before == after {
		return &GitDiff{Pulled: false}, nil
	}

	out, err := exec.Command("git", "-C", repo.LocalPath(), "diff", "--name-only", before, after).Output()
	if err != nil {
		return nil, errors.Wrap(err, "incremental: git diff --name-only")
	}

	var files []string
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		if line != "" {
			files = append(files, line)
		}
	}
	return &GitDiff{Pulled: true, ChangedFiles: files}, nil
}
