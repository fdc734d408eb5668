package fetcher

import (
	"context"
	"os"

	"github.com/Masterminds/vcs"
	"github.com/pkg/errors"
)

// GitFetcher implements Fetcher by cloning (or updating, if a checkout
// already exists at targetPath) a git remote and checking out version.
//
// Grounded on the teacher's context.go/deduce.go use of
// Masterminds/vcs.NewRepo for repo-root deduction and checkout
// management, trimmed to exactly the Fetch contract this spec names.
type GitFetcher struct{}

// Fetch clones url into targetPath (or updates an existing checkout)
// and checks out version.
func (GitFetcher) Fetch(ctx context.Context, url, version, targetPath string) error {
	repo, err := vcs.NewGitRepo(url, targetPath)
	if err != nil {
		return &Error{Kind: Unreachable, Message: errors.Wrap(err, "fetcher: constructing git repo").Error()}
	}

	if repo.CheckLocal() {
		if err := repo.Update(); err != nil {
			return &Error{Kind: Unreachable, Message: errors.Wrap(err, "fetcher: updating checkout").Error()}
		}
	} else {
		if err := os.MkdirAll(targetPath, 0o755); err != nil {
			return errors.Wrap(err, "fetcher: preparing target directory")
		}
		if err := repo.Get(); err != nil {
			return &Error{Kind: Unreachable, Message: errors.Wrap(err, "fetcher: cloning").Error()}
		}
	}

	if version == "" || version == "latest" {
		return nil
	}
	if err := repo.UpdateVersion(version); err != nil {
		return &Error{Kind: Corrupted, Message: errors.Wrapf(err, "fetcher: checking out %q", version).Error()}
	}
	return nil
}
