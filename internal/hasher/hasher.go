// Package hasher implements the Hasher abstraction consumed by the
// cache, incremental updater and resolver: every place that needs to
// turn bytes, a file, or a whole directory into a content digest goes
// through this interface so that the rest of the core never imports
// crypto/* directly.
//
// The directory-hashing algorithm (sorted relative paths, NUL-separated
// framing of name/type/content so that no two distinct trees can ever
// hash to the same digest through concatenation ambiguity) is grounded
// on the teacher's internal/gps/pkgtree/digest.go DigestFromDirectory.
package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"
)

// Hasher computes content digests over bytes, files, and whole
// directory trees. Implementations must be safe for concurrent use;
// the default implementation is purely functional (no shared state) and
// trivially is.
type Hasher interface {
	SHA256(data []byte) string
	SHA256File(path string) (string, error)
	SHA256Directory(path string) (string, error)
	MD5(data []byte) string
	CRC32(data []byte) string
}

// Default is the production Hasher. It is stateless; a zero value is
// ready to use.
type Default struct{}

// SHA256 hashes data and returns its hex-encoded digest.
func (Default) SHA256(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SHA256File streams the file at path through SHA-256 without loading
// it entirely into memory.
func (Default) SHA256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "hasher: cannot open %q", path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hasher: cannot read %q", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SHA256Directory computes a single digest over an entire directory
// tree. It is deterministic: visiting the same file contents under the
// same relative paths, in any order, always produces the same digest,
// because children are always visited in sorted order and each node's
// relative path, type, and content (or size, for regular files) are
// written into the hash framed by a trailing NUL so that no accidental
// byte-concatenation collision is possible between, say, a file named
// "ab" and sibling files "a" and "b".
func (d Default) SHA256Directory(root string) (string, error) {
	root = filepath.Clean(root)

	fi, err := os.Stat(root)
	if err != nil {
		return "", errors.Wrap(err, "hasher: cannot stat directory")
	}
	if !fi.IsDir() {
		return "", errors.Errorf("hasher: %q is not a directory", root)
	}

	h := sha256.New()
	queue := []string{""}

	for len(queue) > 0 {
		rel := queue[0]
		queue = queue[1:]
		abs := filepath.Join(root, rel)

		lfi, err := os.Lstat(abs)
		if err != nil {
			return "", errors.Wrap(err, "hasher: lstat failed")
		}

		writeFramed(h, []byte(filepath.ToSlash(rel)))

		switch {
		case lfi.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(abs)
			if err != nil {
				return "", errors.Wrap(err, "hasher: readlink failed")
			}
			writeFramed(h, []byte("symlink"))
			writeFramed(h, []byte(filepath.ToSlash(target)))
		case lfi.IsDir():
			writeFramed(h, []byte("dir"))
			names, err := sortedChildren(abs)
			if err != nil {
				return "", err
			}
			for _, name := range names {
				queue = append(queue, filepath.Join(rel, name))
			}
		default:
			writeFramed(h, []byte("file"))
			n, err := hashFileInto(h, abs)
			if err != nil {
				return "", err
			}
			writeFramed(h, []byte(strconv.FormatInt(n, 10)))
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// MD5 hashes data and returns its hex-encoded digest.
func (Default) MD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// CRC32 hashes data with the IEEE polynomial and returns its
// hex-encoded checksum.
func (Default) CRC32(data []byte) string {
	sum := crc32.ChecksumIEEE(data)
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, sum)
	return hex.EncodeToString(buf)
}

func hashFileInto(h hash.Hash, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.Wrapf(err, "hasher: cannot open %q", path)
	}
	defer f.Close()

	n, err := io.Copy(h, f)
	if err != nil {
		return 0, errors.Wrapf(err, "hasher: cannot read %q", path)
	}
	return n, nil
}

func sortedChildren(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, errors.Wrap(err, "hasher: cannot open directory")
	}
	defer f.Close()

	names, err := f.Readdirnames(0)
	if err != nil {
		return nil, errors.Wrap(err, "hasher: cannot list directory")
	}
	sort.Strings(names)
	return names, nil
}

func writeFramed(h hash.Hash, b []byte) {
	_, _ = h.Write(b)
	_, _ = h.Write([]byte{0})
}
