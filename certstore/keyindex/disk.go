package keyindex

import (
	"encoding/binary"

	"go.dedis.ch/certd/certstore"
	"go.dedis.ch/certd/kv"
	"golang.org/x/xerrors"
)

// indexBucket is the bucket where the associations are stored.
var indexBucket = []byte("keyindex")

// DiskLookup is a key ID index that persists the associations in a key/value
// database, with a write-through cache in memory for the key IDs already
// seen by this process.
//
// - implements keyindex.Lookup
type DiskLookup struct {
	*InMemoryLookup

	db kv.DB
}

// NewDiskLookup returns an index backed by the database.
func NewDiskLookup(db kv.DB) *DiskLookup {
	return &DiskLookup{
		InMemoryLookup: NewInMemoryLookup(),
		db:             db,
	}
}

// Record implements keyindex.Lookup. It persists the associations before
// updating the cache.
func (l *DiskLookup) Record(fp string, keyIDs []uint64) error {
	fp, err := certstore.ValidateFingerprint(fp)
	if err != nil {
		return err
	}

	err = l.db.Update(func(tx kv.WritableTx) error {
		bucket, err := tx.GetBucketOrCreate(indexBucket)
		if err != nil {
			return xerrors.Errorf("while getting bucket: %v", err)
		}

		for _, id := range keyIDs {
			err = bucket.Set(indexKey(id, fp), nil)
			if err != nil {
				return xerrors.Errorf("while writing association: %v", err)
			}
		}

		return nil
	})

	if err != nil {
		return xerrors.Errorf("while updating db: %v", err)
	}

	return l.InMemoryLookup.Record(fp, keyIDs)
}

// Get implements keyindex.Lookup. It returns the cached candidates when the
// key ID has been seen by this process, otherwise it scans the database and
// fills the cache.
func (l *DiskLookup) Get(keyID uint64) ([]string, error) {
	fps, err := l.InMemoryLookup.Get(keyID)
	if err != nil || len(fps) > 0 {
		return fps, err
	}

	prefix := make([]byte, 8)
	binary.BigEndian.PutUint64(prefix, keyID)

	err = l.db.View(func(tx kv.ReadableTx) error {
		bucket := tx.GetBucket(indexBucket)
		if bucket == nil {
			return nil
		}

		return bucket.Scan(prefix, func(k, v []byte) error {
			fps = append(fps, string(k[len(prefix):]))

			return nil
		})
	})

	if err != nil {
		return nil, xerrors.Errorf("while reading db: %v", err)
	}

	for _, fp := range fps {
		err = l.InMemoryLookup.Record(fp, []uint64{keyID})
		if err != nil {
			return nil, xerrors.Errorf("while filling cache: %v", err)
		}
	}

	return fps, nil
}

// indexKey returns the database key of one association: the big-endian key
// ID followed by the fingerprint, so that all the candidates of a key ID
// share a prefix.
func indexKey(keyID uint64, fp string) []byte {
	key := make([]byte, 8+len(fp))
	binary.BigEndian.PutUint64(key, keyID)
	copy(key[8:], fp)

	return key
}
