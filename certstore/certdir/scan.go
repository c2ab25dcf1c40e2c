package certdir

import (
	"errors"
	"os"
	"path/filepath"

	"go.dedis.ch/certd/certstore"
	"golang.org/x/xerrors"
)

// errStopIteration differentiates a real error from a request of the
// callback to stop iterating.
var errStopIteration = errors.New("stop iteration")

// Items implements certstore.Storage. It walks the shard subdirectories in
// lexicographic order and parses each entry as it is yielded, so a caller
// that stops early does not pay for the rest of the tree.
func (s *DirectoryStore) Items(fn func(certstore.Certificate) bool) error {
	err := s.walk(func(ref entryRef) error {
		cert, _, err := s.readEntry(ref)
		if errors.Is(err, certstore.ErrNotFound) {
			// The entry disappeared between the directory listing and the
			// read, most likely removed by another process.
			return nil
		}

		if err != nil {
			return err
		}

		if !fn(cert) {
			return errStopIteration
		}

		return nil
	})

	if err != nil && !errors.Is(err, errStopIteration) {
		return err
	}

	return nil
}

// Fingerprints implements certstore.Storage. It yields the fingerprints
// reconstructed from the file names, without opening the payloads.
func (s *DirectoryStore) Fingerprints(fn func(fp string) bool) error {
	err := s.walk(func(ref entryRef) error {
		if !fn(ref.fp) {
			return errStopIteration
		}

		return nil
	})

	if err != nil && !errors.Is(err, errStopIteration) {
		return err
	}

	return nil
}

// walk visits the entries of the fingerprint tree in lexicographic order.
// Files that do not follow the shard naming, such as lock files, leftover
// temporary files and the special names, are ignored.
func (s *DirectoryStore) walk(fn func(entryRef) error) error {
	shards, err := os.ReadDir(s.dir)
	if err != nil {
		return xerrors.Errorf("while listing directory: %v", err)
	}

	for _, shard := range shards {
		if !shard.IsDir() || !isHexName(shard.Name(), shardLen) {
			continue
		}

		dir := filepath.Join(s.dir, shard.Name())

		files, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}

		if err != nil {
			return xerrors.Errorf("while listing shard %q: %v", shard.Name(), err)
		}

		for _, file := range files {
			if file.IsDir() || !isHexName(file.Name(), certstore.FingerprintLen-shardLen) {
				continue
			}

			fp := shard.Name() + file.Name()

			ref := entryRef{
				key:  fp,
				fp:   fp,
				path: filepath.Join(dir, file.Name()),
			}

			err := fn(ref)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// isHexName returns true when the name is made of n lowercase hex
// characters, which is how the store spells fingerprints on disk.
func isHexName(name string, n int) bool {
	if len(name) != n {
		return false
	}

	for i := 0; i < len(name); i++ {
		c := name[i]

		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}
