package certstore

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/xerrors"
)

// InMemoryStore is a certificate store that keeps the certificates in
// memory. It honors the same locking and merge semantics as the filesystem
// store, which makes it a drop-in replacement for tests and for ephemeral
// setups.
//
// - implements certstore.Storage
type InMemoryStore struct {
	sync.Mutex
	entries map[string]*memEntry
	fac     Factory
}

// memEntry is a single stored entry. The gate channel serializes the writers
// of the entry, while the content fields are guarded by the store mutex.
type memEntry struct {
	gate    chan struct{}
	cert    Certificate
	data    []byte
	version uint64
}

// NewInMemoryStore creates a new empty store that parses incoming material
// with the factory.
func NewInMemoryStore(fac Factory) *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string]*memEntry),
		fac:     fac,
	}
}

// GetByFingerprint implements certstore.Storage. It returns the certificate
// stored under the fingerprint, or ErrNotFound.
func (s *InMemoryStore) GetByFingerprint(fp string) (Certificate, error) {
	fp, err := ValidateFingerprint(fp)
	if err != nil {
		return nil, err
	}

	cert, _, err := s.read(fp)

	return cert, err
}

// GetBySpecialName implements certstore.Storage. It returns the certificate
// stored under the special name, or ErrNotFound.
func (s *InMemoryStore) GetBySpecialName(name SpecialName) (Certificate, error) {
	name, err := ValidateSpecialName(name)
	if err != nil {
		return nil, err
	}

	cert, _, err := s.read(string(name))

	return cert, err
}

// GetByFingerprintIfChanged implements certstore.Storage. It returns the
// certificate only if its tag differs from the given one.
func (s *InMemoryStore) GetByFingerprintIfChanged(fp string, tag Tag) (Certificate, Tag, error) {
	fp, err := ValidateFingerprint(fp)
	if err != nil {
		return nil, NoTag, err
	}

	return s.readIfChanged(fp, tag)
}

// GetBySpecialNameIfChanged implements certstore.Storage. It returns the
// certificate only if its tag differs from the given one.
func (s *InMemoryStore) GetBySpecialNameIfChanged(name SpecialName, tag Tag) (Certificate, Tag, error) {
	name, err := ValidateSpecialName(name)
	if err != nil {
		return nil, NoTag, err
	}

	return s.readIfChanged(string(name), tag)
}

// Insert implements certstore.Storage. It parses the data and merges it with
// the entry stored under the fingerprint, waiting for concurrent writers of
// the same entry until the context is done.
func (s *InMemoryStore) Insert(ctx context.Context, fp string, data []byte, merge MergeFunc) (Certificate, error) {
	fp, err := ValidateFingerprint(fp)
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, fp, fp, data, merge, true)
}

// TryInsert implements certstore.Storage. It works like Insert except that
// it returns ErrWouldBlock right away when the entry is already held.
func (s *InMemoryStore) TryInsert(fp string, data []byte, merge MergeFunc) (Certificate, error) {
	fp, err := ValidateFingerprint(fp)
	if err != nil {
		return nil, err
	}

	return s.insert(context.Background(), fp, fp, data, merge, false)
}

// InsertWithSpecialName implements certstore.Storage. It parses the data and
// merges it with the entry stored under the special name.
func (s *InMemoryStore) InsertWithSpecialName(ctx context.Context, name SpecialName,
	data []byte, merge MergeFunc) (Certificate, error) {

	name, err := ValidateSpecialName(name)
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, string(name), "", data, merge, true)
}

// TryInsertWithSpecialName implements certstore.Storage. It works like
// InsertWithSpecialName except that it returns ErrWouldBlock right away when
// the entry is already held.
func (s *InMemoryStore) TryInsertWithSpecialName(name SpecialName,
	data []byte, merge MergeFunc) (Certificate, error) {

	name, err := ValidateSpecialName(name)
	if err != nil {
		return nil, err
	}

	return s.insert(context.Background(), string(name), "", data, merge, false)
}

// Items implements certstore.Storage. It iterates over the certificates of
// the fingerprint entries in lexicographic order.
func (s *InMemoryStore) Items(fn func(Certificate) bool) error {
	for _, key := range s.fingerprintKeys() {
		s.Lock()
		entry, ok := s.entries[key]

		var cert Certificate
		if ok {
			cert = entry.cert
		}
		s.Unlock()

		if cert == nil {
			continue
		}

		if !fn(cert) {
			return nil
		}
	}

	return nil
}

// Fingerprints implements certstore.Storage. It iterates over the
// fingerprints in lexicographic order.
func (s *InMemoryStore) Fingerprints(fn func(fp string) bool) error {
	for _, key := range s.fingerprintKeys() {
		if !fn(key) {
			return nil
		}
	}

	return nil
}

func (s *InMemoryStore) read(key string) (Certificate, Tag, error) {
	s.Lock()
	defer s.Unlock()

	entry, ok := s.entries[key]
	if !ok || entry.data == nil {
		return nil, NoTag, ErrNotFound
	}

	return entry.cert, memTag(entry.version), nil
}

func (s *InMemoryStore) readIfChanged(key string, tag Tag) (Certificate, Tag, error) {
	cert, cur, err := s.read(key)
	if err != nil {
		// The entry is gone, which is a change in itself unless the caller
		// already knew it does not exist.
		if tag == NoTag {
			return nil, NoTag, nil
		}

		return nil, NoTag, err
	}

	if cur == tag {
		return nil, tag, nil
	}

	return cert, cur, nil
}

// entry returns the entry stored under the key, creating an empty
// placeholder when none exists so that its gate can be acquired.
func (s *InMemoryStore) entry(key string) *memEntry {
	s.Lock()
	defer s.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		entry = &memEntry{gate: make(chan struct{}, 1)}
		s.entries[key] = entry
	}

	return entry
}

func (s *InMemoryStore) insert(ctx context.Context, key, fp string,
	data []byte, merge MergeFunc, blocking bool) (Certificate, error) {

	entry := s.entry(key)

	if blocking {
		select {
		case entry.gate <- struct{}{}:
		case <-ctx.Done():
			return nil, xerrors.Errorf("while waiting for entry %q: %w", key, ctx.Err())
		}
	} else {
		select {
		case entry.gate <- struct{}{}:
		default:
			return nil, ErrWouldBlock
		}
	}

	defer func() {
		<-entry.gate
	}()

	s.Lock()
	existing := entry.cert
	existingData := entry.data
	s.Unlock()

	incoming, err := s.fac.FromBytes(data)
	if err != nil {
		return nil, DataError{Key: key, Reason: "malformed certificate", Err: err}
	}

	if fp != "" && !strings.EqualFold(incoming.GetFingerprint(), fp) {
		return nil, DataError{
			Key:    key,
			Reason: fmt.Sprintf("certificate reports fingerprint %q", incoming.GetFingerprint()),
		}
	}

	merged, err := merge(existing, incoming)
	if err != nil {
		return nil, DataError{Key: key, Reason: "merge rejected the certificate", Err: err}
	}

	if merged == nil {
		return nil, DataError{Key: key, Reason: "merge returned no certificate"}
	}

	if fp != "" && !strings.EqualFold(merged.GetFingerprint(), fp) {
		return nil, DataError{
			Key:    key,
			Reason: fmt.Sprintf("merge reports fingerprint %q", merged.GetFingerprint()),
		}
	}

	out := merged.GetData()

	if existingData != nil && bytes.Equal(existingData, out) {
		return existing, nil
	}

	s.Lock()
	entry.cert = merged
	entry.data = out
	entry.version++
	s.Unlock()

	return merged, nil
}

func (s *InMemoryStore) fingerprintKeys() []string {
	s.Lock()
	defer s.Unlock()

	keys := make([]string, 0, len(s.entries))

	for key, entry := range s.entries {
		if entry.data == nil {
			continue
		}

		if _, err := ValidateFingerprint(key); err != nil {
			continue
		}

		keys = append(keys, key)
	}

	sort.Strings(keys)

	return keys
}

func memTag(version uint64) Tag {
	return Tag(fmt.Sprintf("mem-%x", version))
}
