package certdir

import (
	"path/filepath"

	"go.dedis.ch/certd/certstore"
)

// shardLen is the number of leading fingerprint characters naming the shard
// subdirectory.
const shardLen = 2

// entryRef locates one entry of the directory. The fingerprint is empty for
// special names, in which case the content checks against the key are
// skipped.
type entryRef struct {
	key  string
	fp   string
	path string
}

// fingerprintRef validates the fingerprint and resolves it to its location
// in the shard tree. Validation happens before any filesystem access so that
// a bad name can never escape the base directory.
func (s *DirectoryStore) fingerprintRef(fp string) (entryRef, error) {
	fp, err := certstore.ValidateFingerprint(fp)
	if err != nil {
		return entryRef{}, err
	}

	ref := entryRef{
		key:  fp,
		fp:   fp,
		path: filepath.Join(s.dir, fp[:shardLen], fp[shardLen:]),
	}

	return ref, nil
}

// specialNameRef validates the special name and resolves it to its location
// at the root of the directory.
func (s *DirectoryStore) specialNameRef(name certstore.SpecialName) (entryRef, error) {
	name, err := certstore.ValidateSpecialName(name)
	if err != nil {
		return entryRef{}, err
	}

	ref := entryRef{
		key:  string(name),
		path: filepath.Join(s.dir, string(name)),
	}

	return ref, nil
}
