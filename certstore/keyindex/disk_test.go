package keyindex

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/certd/certstore"
	"go.dedis.ch/certd/internal/testing/fake"
	"go.dedis.ch/certd/kv"
)

func TestDiskLookup_Record(t *testing.T) {
	db := makeDb(t)

	fpA := strings.Repeat("aa", certstore.FingerprintLen/2)
	fpB := strings.Repeat("bb", certstore.FingerprintLen/2)

	lookup := NewDiskLookup(db)

	err := lookup.Record(fpA, []uint64{1, 2})
	require.NoError(t, err)

	err = lookup.Record(fpB, []uint64{2})
	require.NoError(t, err)

	fps, err := lookup.Get(2)
	require.NoError(t, err)
	require.Equal(t, []string{fpA, fpB}, fps)

	// A fresh lookup on the same database sees the persisted associations
	// without any cache.
	other := NewDiskLookup(db)

	fps, err = other.Get(2)
	require.NoError(t, err)
	require.Equal(t, []string{fpA, fpB}, fps)

	// The scan filled the cache, so the next read skips the database.
	fps, err = other.InMemoryLookup.Get(2)
	require.NoError(t, err)
	require.Equal(t, []string{fpA, fpB}, fps)
}

func TestDiskLookup_BadName_Record(t *testing.T) {
	lookup := NewDiskLookup(fake.NewInMemoryDB())

	err := lookup.Record("zz", []uint64{1})

	naming := certstore.NamingError{}
	require.ErrorAs(t, err, &naming)
}

func TestDiskLookup_NoBucket_Record(t *testing.T) {
	lookup := NewDiskLookup(fake.NewBadDB())

	err := lookup.Record(strings.Repeat("aa", certstore.FingerprintLen/2), []uint64{1})
	require.EqualError(t, err, fake.Err("while updating db: while getting bucket"))
}

func TestDiskLookup_BadWrite_Record(t *testing.T) {
	db := fake.NewInMemoryDB()
	db.SetBucket(indexBucket, fake.NewBadWriteBucket())

	lookup := NewDiskLookup(db)

	err := lookup.Record(strings.Repeat("aa", certstore.FingerprintLen/2), []uint64{1})
	require.EqualError(t, err, fake.Err("while updating db: while writing association"))
}

func TestDiskLookup_Unknown_Get(t *testing.T) {
	lookup := NewDiskLookup(fake.NewInMemoryDB())

	fps, err := lookup.Get(42)
	require.NoError(t, err)
	require.Empty(t, fps)
}

func TestDiskLookup_BadView_Get(t *testing.T) {
	lookup := NewDiskLookup(fake.NewBadViewDB())

	_, err := lookup.Get(42)
	require.EqualError(t, err, fake.Err("while reading db"))
}

func TestDiskLookup_BadScan_Get(t *testing.T) {
	db := fake.NewInMemoryDB()
	db.SetBucket(indexBucket, fake.NewBadScanBucket())

	lookup := NewDiskLookup(db)

	_, err := lookup.Get(42)
	require.EqualError(t, err, fake.Err("while reading db"))
}

// -----------------------------------------------------------------------------
// Utility functions

func makeDb(t *testing.T) kv.DB {
	db, err := kv.New(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}
