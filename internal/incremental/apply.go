package incremental

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"
)

// Apply performs the incremental-apply path of spec.md §4.3 step 3:
// delete the Deleted files from the existing cache entry directory,
// and copy the Added/Modified files over from the candidate directory.
// Grounded on the teacher's fs.go directory-copy helpers, delegated
// here to termie/go-shutil's CopyFile for the per-file copy.
func Apply(diff *Diff, candidateDir, cachedDir string) error {
	for _, c := range diff.Changes {
		target := filepath.Join(cachedDir, filepath.FromSlash(c.RelativePath))
		switch c.Kind {
		case Deleted:
			if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
				return errors.Wrapf(err, "incremental: removing deleted file %q", c.RelativePath)
			}
		case Added, Modified:
			src := filepath.Join(candidateDir, filepath.FromSlash(c.RelativePath))
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "incremental: preparing directory for %q", c.RelativePath)
			}
			if err := shutil.CopyFile(src, target, true); err != nil {
				return errors.Wrapf(err, "incremental: copying %q", c.RelativePath)
			}
		}
	}
	return nil
}
