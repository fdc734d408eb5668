package cache

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// linkDirectory materializes dst as a file-for-file hard-link copy of
// src, falling back to a symlink per file when hard-linking fails
// (typically because src and dst live on different filesystems), per
// spec.md §5 "Filesystem discipline": "hard links are preferred when
// supported to avoid dangling-link hazards" — a symlink to a directory
// that gets evicted would dangle, but a per-file hard link keeps the
// project tree valid even if the cache entry's directory entry is
// later unlinked (the inode survives until every link is gone).
func linkDirectory(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := os.Link(path, target); err != nil {
			if symErr := os.Symlink(path, target); symErr != nil {
				return errors.Wrapf(symErr, "cache: linking %q into project tree", rel)
			}
		}
		return nil
	})
}
