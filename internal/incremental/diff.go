package incremental

// ChangeKind classifies one path's status between a previously cached
// manifest and a freshly fetched candidate, per spec.md §4.3 step 2.
type ChangeKind int

const (
	Unchanged ChangeKind = iota
	Added
	Modified
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	}
	return "unchanged"
}

// Change is one path's diff result.
type Change struct {
	RelativePath string
	Kind         ChangeKind
	Size         int64 // candidate size for Added/Modified, cached size for Deleted
}

// Diff compares cached against candidate and also reports the fraction
// of changed bytes over the candidate's total, which ShouldApplyIncremental uses for
// the incremental-vs-full-replace decision.
type Diff struct {
	Changes      []Change
	ChangedBytes int64
	TotalBytes   int64
}

// ChangedFraction is changed_bytes / total_bytes, the ratio spec.md
// §4.3 step 3 thresholds at 0.10. A zero-byte candidate is considered
// fully changed if cached had any content, and unchanged otherwise.
func (d *Diff) ChangedFraction() float64 {
	if d.TotalBytes == 0 {
		if d.ChangedBytes == 0 {
			return 0
		}
		return 1
	}
	return float64(d.ChangedBytes) / float64(d.TotalBytes)
}

// IncrementalApplyThreshold is the spec.md §4.3 cutoff: at or below
// this fraction of changed bytes, an incremental apply is performed;
// above it, the caller should do a full replace.
const IncrementalApplyThreshold = 0.10

// ShouldApplyIncremental reports whether the diff's changed fraction is
// within the incremental-apply threshold.
func (d *Diff) ShouldApplyIncremental() bool {
	return d.ChangedFraction() <= IncrementalApplyThreshold
}

// DiffManifests computes the path-by-path diff between a previously
// cached manifest and a freshly fetched candidate.
func DiffManifests(cached, candidate *FileManifest) *Diff {
	cachedByPath := cached.byPath()
	candidateByPath := candidate.byPath()

	d := &Diff{TotalBytes: candidate.TotalBytes()}

	for path, cf := range candidateByPath {
		of, existed := cachedByPath[path]
		switch {
		case !existed:
			d.Changes = append(d.Changes, Change{RelativePath: path, Kind: Added, Size: cf.Size})
			d.ChangedBytes += cf.Size
		case of.ContentHash != cf.ContentHash:
			d.Changes = append(d.Changes, Change{RelativePath: path, Kind: Modified, Size: cf.Size})
			d.ChangedBytes += cf.Size
		default:
			d.Changes = append(d.Changes, Change{RelativePath: path, Kind: Unchanged, Size: cf.Size})
		}
	}
	for path, of := range cachedByPath {
		if _, stillPresent := candidateByPath[path]; !stillPresent {
			d.Changes = append(d.Changes, Change{RelativePath: path, Kind: Deleted, Size: of.Size})
			d.ChangedBytes += of.Size
		}
	}
	return d
}
