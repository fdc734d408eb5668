package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	flock "github.com/theckman/go-flock"
)

// indexFile is the on-disk JSON shape spec.md §6 specifies for
// cache_index.json.
type indexFile struct {
	Statistics indexStats  `json:"statistics"`
	Items      []indexItem `json:"items"`
}

type indexStats struct {
	TotalItems    int     `json:"total_items"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	HitCount      int64   `json:"hit_count"`
	MissCount     int64   `json:"miss_count"`
	HitRate       float64 `json:"hit_rate"`
	LastCleanup   int64   `json:"last_cleanup"`
}

type indexItem struct {
	Key         string `json:"key"`
	PackageName string `json:"package_name"`
	Version     string `json:"version"`
	CachePath   string `json:"cache_path"`
	SizeBytes   int64  `json:"size_bytes"`
	LastAccess  int64  `json:"last_access"`
	InstallTime int64  `json:"install_time"`
	AccessCount int64  `json:"access_count"`
	IsPinned    bool   `json:"is_pinned"`
}

// Save persists the tier's current state to cache_index.json under its
// root, guarded by an advisory file lock (go-flock) so a concurrently
// running ccpm process doesn't interleave writes.
//
// Save runs only when called: Admit, eviction, Cleanup and
// Core.Shutdown do not call it, so the index on disk reflects the
// tier as of the last explicit Save.
func (t *Tier) Save() error {
	path := IndexPath(t.Root)
	fl := flock.NewFlock(path + ".lock")
	if err := fl.Lock(); err != nil {
		return errors.Wrap(err, "cache: acquiring index file lock")
	}
	defer fl.Unlock()

	t.mu.Lock()
	idx := indexFile{
		Statistics: indexStats{
			TotalItems:     t.stats.TotalItems,
			TotalSizeBytes: t.stats.TotalSizeBytes,
			HitCount:       t.stats.HitCount,
			MissCount:      t.stats.MissCount,
			HitRate:        t.stats.HitRate,
			LastCleanup:    t.stats.LastCleanup.Unix(),
		},
	}
	for _, e := range t.entries {
		idx.Items = append(idx.Items, indexItem{
			Key: e.Key, PackageName: e.Package, Version: e.Version,
			CachePath: e.Path, SizeBytes: e.SizeBytes,
			LastAccess: e.LastAccess.Unix(), InstallTime: e.InstallTime.Unix(),
			AccessCount: e.AccessCount, IsPinned: e.Pinned,
		})
	}
	t.mu.Unlock()

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return errors.Wrap(err, "cache: encoding index")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "cache: writing index")
	}
	return errors.Wrap(os.Rename(tmp, path), "cache: replacing index")
}

// Load reads cache_index.json from the tier's root and reconciles it
// against the filesystem: entries whose path no longer exists are
// dropped; directories under the root not referenced by the index are
// left alone (spec.md §4.2: "never auto-deleted — operator decision"),
// but returned so the caller can log them.
func (t *Tier) Load() (unreferenced []string, err error) {
	path := IndexPath(t.Root)
	fl := flock.NewFlock(path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, errors.Wrap(err, "cache: acquiring index file lock")
	}
	defer fl.Unlock()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "cache: reading index")
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, errors.Wrap(err, "cache: decoding index")
	}

	t.mu.Lock()
	referenced := make(map[string]bool, len(idx.Items))
	for _, item := range idx.Items {
		if _, statErr := os.Stat(item.CachePath); statErr != nil {
			continue // dropped: path no longer exists
		}
		e := &Entry{
			Key: item.Key, Package: item.PackageName, Version: item.Version,
			Path: item.CachePath, SizeBytes: item.SizeBytes,
			LastAccess: time.Unix(item.LastAccess, 0), InstallTime: time.Unix(item.InstallTime, 0),
			AccessCount: item.AccessCount, Pinned: item.IsPinned,
		}
		t.entries[e.Key] = e
		t.refs[e.Key] = &refCountedEntry{path: e.Path, log: t.log}
		t.lru.touch(e.Key)
		t.totalSize += e.SizeBytes
		t.pathIdx.insert(e.Package, e.Key)
		referenced[item.CachePath] = true
	}
	t.stats = Statistics{
		TotalItems: len(t.entries), TotalSizeBytes: t.totalSize,
		HitCount: idx.Statistics.HitCount, MissCount: idx.Statistics.MissCount,
		HitRate: idx.Statistics.HitRate, LastCleanup: time.Unix(idx.Statistics.LastCleanup, 0),
	}
	t.mu.Unlock()

	entriesOnDisk, walkErr := os.ReadDir(t.Root)
	if walkErr != nil {
		return nil, nil
	}
	for _, ent := range entriesOnDisk {
		full := filepath.Join(t.Root, ent.Name())
		if ent.Name() == "cache_index.json" || ent.Name() == "cache_index.json.lock" {
			continue
		}
		if !referenced[full] {
			unreferenced = append(unreferenced, full)
		}
	}
	return unreferenced, nil
}

// SweepStaging removes stale "staging-*" directories left behind by a
// crash between staging and rename, per spec.md §4.2: "startup sweeps
// staging-* prefixes older than one hour."
func (t *Tier) SweepStaging(now time.Time) error {
	entries, err := os.ReadDir(t.Root)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "cache: listing tier root")
	}
	for _, e := range entries {
		if !isStagingName(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > time.Hour {
			_ = os.RemoveAll(filepath.Join(t.Root, e.Name()))
		}
	}
	return nil
}

func isStagingName(name string) bool {
	return len(name) >= len("staging-") && name[:len("staging-")] == "staging-"
}
