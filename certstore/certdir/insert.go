package certdir

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/xid"
	"go.dedis.ch/certd/certstore"
	"golang.org/x/xerrors"
)

// Insert implements certstore.Storage. It parses the data and merges it with
// the entry stored under the fingerprint, waiting for concurrent writers of
// the same entry until the context is done.
func (s *DirectoryStore) Insert(ctx context.Context, fp string, data []byte,
	merge certstore.MergeFunc) (certstore.Certificate, error) {

	ref, err := s.fingerprintRef(fp)
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, ref, data, merge, true)
}

// TryInsert implements certstore.Storage. It works like Insert except that
// it returns ErrWouldBlock right away when the entry is already held.
func (s *DirectoryStore) TryInsert(fp string, data []byte,
	merge certstore.MergeFunc) (certstore.Certificate, error) {

	ref, err := s.fingerprintRef(fp)
	if err != nil {
		return nil, err
	}

	return s.insert(context.Background(), ref, data, merge, false)
}

// InsertWithSpecialName implements certstore.Storage. It parses the data and
// merges it with the entry stored under the special name.
func (s *DirectoryStore) InsertWithSpecialName(ctx context.Context, name certstore.SpecialName,
	data []byte, merge certstore.MergeFunc) (certstore.Certificate, error) {

	ref, err := s.specialNameRef(name)
	if err != nil {
		return nil, err
	}

	return s.insert(ctx, ref, data, merge, true)
}

// TryInsertWithSpecialName implements certstore.Storage. It works like
// InsertWithSpecialName except that it returns ErrWouldBlock right away when
// the entry is already held.
func (s *DirectoryStore) TryInsertWithSpecialName(name certstore.SpecialName,
	data []byte, merge certstore.MergeFunc) (certstore.Certificate, error) {

	ref, err := s.specialNameRef(name)
	if err != nil {
		return nil, err
	}

	return s.insert(context.Background(), ref, data, merge, false)
}

// insert is the single write path of the store. It runs with the entry lock
// held, reads the current version, resolves the conflict through the merge
// callback and publishes the result, unless the outcome is byte-identical to
// what is already stored.
func (s *DirectoryStore) insert(ctx context.Context, ref entryRef, data []byte,
	merge certstore.MergeFunc, blocking bool) (certstore.Certificate, error) {

	logger := s.logger.With().Str("entry", ref.key).Stringer("op", xid.New()).Logger()

	// The shard directory hosts the lock file, so it must exist before the
	// lock is taken. MkdirAll keeps this safe between concurrent writers.
	err := os.MkdirAll(filepath.Dir(ref.path), dirPerm)
	if err != nil {
		return nil, xerrors.Errorf("while creating shard directory: %v", err)
	}

	start := time.Now()

	held, err := s.locks.acquire(ctx, ref.path, blocking)
	if err != nil {
		return nil, err
	}

	promLockWait.Observe(time.Since(start).Seconds())

	defer held.release()

	existing, _, err := s.readEntry(ref)
	if err != nil && !errors.Is(err, certstore.ErrNotFound) {
		return nil, err
	}

	incoming, err := s.fac.FromBytes(data)
	if err != nil {
		promRejected.Inc()

		return nil, certstore.DataError{
			Key:    ref.key,
			Reason: "malformed certificate",
			Err:    err,
		}
	}

	if ref.fp != "" && !strings.EqualFold(incoming.GetFingerprint(), ref.fp) {
		promRejected.Inc()

		return nil, certstore.DataError{
			Key:    ref.key,
			Reason: fmt.Sprintf("certificate reports fingerprint %q", incoming.GetFingerprint()),
		}
	}

	merged, err := merge(existing, incoming)
	if err != nil {
		promRejected.Inc()

		return nil, certstore.DataError{
			Key:    ref.key,
			Reason: "merge rejected the certificate",
			Err:    err,
		}
	}

	if merged == nil {
		promRejected.Inc()

		return nil, certstore.DataError{Key: ref.key, Reason: "merge returned no certificate"}
	}

	if ref.fp != "" && !strings.EqualFold(merged.GetFingerprint(), ref.fp) {
		promRejected.Inc()

		return nil, certstore.DataError{
			Key:    ref.key,
			Reason: fmt.Sprintf("merge reports fingerprint %q", merged.GetFingerprint()),
		}
	}

	out := merged.GetData()

	if existing != nil && bytes.Equal(out, existing.GetData()) {
		logger.Trace().Msg("content unchanged, nothing to publish")

		return existing, nil
	}

	tag, err := s.commit(ref, out)
	if err != nil {
		return nil, err
	}

	promInserts.Inc()

	logger.Debug().Str("tag", string(tag)).Int("size", len(out)).Msg("certificate published")

	return merged, nil
}
