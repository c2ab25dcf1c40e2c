package fake

import (
	"bytes"
	"sort"

	"go.dedis.ch/certd/kv"
)

// Bucket is a fake implementation of a database bucket backed by an ordered
// in-memory map.
//
// - implements kv.Bucket
type Bucket struct {
	kv.Bucket

	values map[string][]byte

	ErrSet    error
	ErrDelete error
	ErrScan   error
}

// NewBucket returns a new empty bucket.
func NewBucket() *Bucket {
	return &Bucket{
		values: make(map[string][]byte),
	}
}

// NewBadWriteBucket returns a bucket that fails to write.
func NewBadWriteBucket() *Bucket {
	b := NewBucket()
	b.ErrSet = fakeErr

	return b
}

// NewBadDeleteBucket returns a bucket that fails to delete.
func NewBadDeleteBucket() *Bucket {
	b := NewBucket()
	b.ErrDelete = fakeErr

	return b
}

// NewBadScanBucket returns a bucket that fails to iterate.
func NewBadScanBucket() *Bucket {
	b := NewBucket()
	b.ErrScan = fakeErr

	return b
}

// Get implements kv.Bucket.
func (b *Bucket) Get(key []byte) []byte {
	return b.values[string(key)]
}

// Set implements kv.Bucket.
func (b *Bucket) Set(key, value []byte) error {
	if b.ErrSet != nil {
		return b.ErrSet
	}

	b.values[string(key)] = value

	return nil
}

// Delete implements kv.Bucket.
func (b *Bucket) Delete(key []byte) error {
	if b.ErrDelete != nil {
		return b.ErrDelete
	}

	delete(b.values, string(key))

	return nil
}

// ForEach implements kv.Bucket. It iterates in lexicographic order so that
// the tests are deterministic.
func (b *Bucket) ForEach(fn func(k, v []byte) error) error {
	return b.Scan(nil, fn)
}

// Scan implements kv.Bucket.
func (b *Bucket) Scan(prefix []byte, fn func(k, v []byte) error) error {
	if b.ErrScan != nil {
		return b.ErrScan
	}

	keys := make([]string, 0, len(b.values))
	for key := range b.values {
		if bytes.HasPrefix([]byte(key), prefix) {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	for _, key := range keys {
		err := fn([]byte(key), b.values[key])
		if err != nil {
			return err
		}
	}

	return nil
}

// InMemoryDB is a fake key/value database.
//
// - implements kv.DB
type InMemoryDB struct {
	buckets map[string]*Bucket

	errView   error
	errBucket error
}

// NewInMemoryDB returns a new empty database.
func NewInMemoryDB() *InMemoryDB {
	return &InMemoryDB{
		buckets: make(map[string]*Bucket),
	}
}

// NewBadViewDB returns a database that fails to open read transactions.
func NewBadViewDB() *InMemoryDB {
	db := NewInMemoryDB()
	db.errView = fakeErr

	return db
}

// NewBadDB returns a database that fails to create buckets.
func NewBadDB() *InMemoryDB {
	db := NewInMemoryDB()
	db.errBucket = fakeErr

	return db
}

// SetBucket assigns the bucket to the name so that a test can preload values
// or inject failing buckets.
func (db *InMemoryDB) SetBucket(name []byte, bucket *Bucket) {
	db.buckets[string(name)] = bucket
}

// View implements kv.DB.
func (db *InMemoryDB) View(fn func(kv.ReadableTx) error) error {
	if db.errView != nil {
		return db.errView
	}

	return fn(dbTx{db: db})
}

// Update implements kv.DB.
func (db *InMemoryDB) Update(fn func(kv.WritableTx) error) error {
	return fn(dbTx{db: db})
}

// Close implements kv.DB.
func (db *InMemoryDB) Close() error {
	return nil
}

// dbTx is the transaction of the fake database.
//
// - implements kv.ReadableTx, kv.WritableTx
type dbTx struct {
	db *InMemoryDB
}

// GetBucket implements kv.ReadableTx.
func (tx dbTx) GetBucket(name []byte) kv.Bucket {
	bucket, ok := tx.db.buckets[string(name)]
	if !ok {
		return nil
	}

	return bucket
}

// GetBucketOrCreate implements kv.WritableTx.
func (tx dbTx) GetBucketOrCreate(name []byte) (kv.Bucket, error) {
	if tx.db.errBucket != nil {
		return nil, tx.db.errBucket
	}

	bucket, ok := tx.db.buckets[string(name)]
	if !ok {
		bucket = NewBucket()
		tx.db.buckets[string(name)] = bucket
	}

	return bucket, nil
}
