package parsecache

import (
	"encoding/json"

	"github.com/boltdb/bolt"
	"github.com/jmank88/nuts"
	"github.com/pkg/errors"
)

// BoltIndex is the optional persistent backing for Cache, used when a
// parse cache should survive process restarts (spec.md §4.3 lists the
// parse cache as in-memory by default with an optional durable mode).
//
// Entries are stored keyed by an order-preserving sequence number
// rather than by (package, version) directly, so the bucket holds
// entries in append order and Recent walks it newest-first without a
// secondary index. Grounded on the teacher's
// internal/gps/source_cache_bolt.go for the bucket-per-cache layout,
// and on jmank88/nuts's Key for the big-endian sequence encoding. Every
// key is written at the full 8-byte width, so byte order equals numeric
// order for any counter value.
type BoltIndex struct {
	db  *bolt.DB
	seq uint64
}

var entriesBucket = []byte("parsecache_entries")

type boltRecord struct {
	Package      string
	Version      string
	ManifestHash string
	Dependencies json.RawMessage
}

// OpenBoltIndex opens (creating if necessary) a persistent parse-cache
// index at path.
func OpenBoltIndex(path string) (*BoltIndex, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, errors.Wrap(err, "parsecache: opening bolt index")
	}

	var seq uint64
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(entriesBucket)
		if err != nil {
			return err
		}
		seq = uint64(b.Stats().KeyN)
		return nil
	})
	if err != nil {
		db.Close()
		return nil, errors.Wrap(err, "parsecache: initializing bolt bucket")
	}

	return &BoltIndex{db: db, seq: seq}, nil
}

// Close releases the underlying bolt handle.
func (b *BoltIndex) Close() error {
	return b.db.Close()
}

// Append persists one parsed entry under the next sequence key.
func (b *BoltIndex) Append(pkg, version, manifestHash string, depsJSON []byte) error {
	rec := boltRecord{Package: pkg, Version: version, ManifestHash: manifestHash, Dependencies: depsJSON}
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "parsecache: marshaling entry")
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(entriesBucket)

		k := make(nuts.Key, 8)
		k.Put(b.seq)
		b.seq++

		return bkt.Put(k, data)
	})
}

// Recent returns up to limit of the most recently appended entries,
// newest first, by walking the sequence-ordered bucket backwards.
func (b *BoltIndex) Recent(limit int) ([]boltRecord, error) {
	var out []boltRecord
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(entriesBucket).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrap(err, "parsecache: unmarshaling entry")
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

// PackagePrefixCount counts persisted entries for pkg, used by
// diagnostics; it is a linear scan since entries are keyed by
// insertion order, not by package.
func (b *BoltIndex) PackagePrefixCount(pkg string) (int, error) {
	n := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(entriesBucket).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}
			if rec.Package == pkg {
				n++
			}
			return nil
		})
	})
	return n, err
}
