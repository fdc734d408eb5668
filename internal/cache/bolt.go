package cache

import (
	"encoding/json"
	"os"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
)

// BoltIndex is the opt-in persistent backend for large caches where
// reparsing cache_index.json on every startup dominates, per
// SPEC_FULL.md's Cache domain-stack wiring.
//
// Grounded on internal/gps/source_cache_bolt.go's boltCache: one bucket
// per tier, keys are entry keys, values are JSON-encoded indexItem
// records (the teacher encodes with its own binary scheme via
// source_cache_bolt_encode.go; we reuse the JSON shape already defined
// for the plain index file rather than inventing a second wire format).
type BoltIndex struct {
	db *bolt.DB
}

var tierBucket = []byte("entries")

// OpenBoltIndex opens (creating if absent) a BoltDB file at path.
func OpenBoltIndex(path string) (*BoltIndex, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "cache: opening bolt index %q", path)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(tierBucket)
		return err
	}); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: initializing bolt bucket")
	}
	return &BoltIndex{db: db}, nil
}

// Close releases the underlying BoltDB file.
func (b *BoltIndex) Close() error {
	return errors.Wrap(b.db.Close(), "cache: closing bolt index")
}

// SaveTier persists every entry of t into the bolt index, replacing
// whatever was previously stored.
func (b *BoltIndex) SaveTier(t *Tier) error {
	t.mu.Lock()
	items := make([]indexItem, 0, len(t.entries))
	for _, e := range t.entries {
		items = append(items, indexItem{
			Key: e.Key, PackageName: e.Package, Version: e.Version,
			CachePath: e.Path, SizeBytes: e.SizeBytes,
			LastAccess: e.LastAccess.Unix(), InstallTime: e.InstallTime.Unix(),
			AccessCount: e.AccessCount, IsPinned: e.Pinned,
		})
	}
	t.mu.Unlock()

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(tierBucket)
		if err := bucket.DeleteBucket([]byte(t.Name)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		sub, err := bucket.CreateBucket([]byte(t.Name))
		if err != nil {
			return err
		}
		for _, item := range items {
			data, err := json.Marshal(item)
			if err != nil {
				return err
			}
			if err := sub.Put([]byte(item.Key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadTier reads every entry for t.Name back into t, mirroring Tier.Load's
// filesystem-existence reconciliation.
func (b *BoltIndex) LoadTier(t *Tier) error {
	var items []indexItem
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(tierBucket)
		sub := bucket.Bucket([]byte(t.Name))
		if sub == nil {
			return nil
		}
		return sub.ForEach(func(_, v []byte) error {
			var item indexItem
			if err := json.Unmarshal(v, &item); err != nil {
				return err
			}
			items = append(items, item)
			return nil
		})
	})
	if err != nil {
		return errors.Wrap(err, "cache: reading bolt index")
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, item := range items {
		if _, err := os.Stat(item.CachePath); err != nil {
			continue
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
	}
	t.stats.TotalItems = len(t.entries)
	t.stats.TotalSizeBytes = t.totalSize
	return nil
}
