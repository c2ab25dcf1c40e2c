package certdir

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.dedis.ch/certd/certstore"
	"golang.org/x/xerrors"
)

// Tags are derived from the identity and the modification state of the entry
// file. Writers never rewrite a published file, they rename a fresh one into
// place, so the triple (file id, mtime, size) pins down one version of the
// content.

func tagOf(fi os.FileInfo) certstore.Tag {
	return certstore.Tag(fmt.Sprintf("%x-%x-%x",
		fileID(fi), fi.ModTime().UnixNano(), fi.Size()))
}

// currentTag returns the tag of the entry without reading its payload, or
// NoTag when the entry does not exist.
func (s *DirectoryStore) currentTag(ref entryRef) (certstore.Tag, error) {
	fi, err := os.Stat(ref.path)
	if os.IsNotExist(err) {
		return certstore.NoTag, nil
	}

	if err != nil {
		return certstore.NoTag, xerrors.Errorf("while checking entry %q: %v", ref.key, err)
	}

	if fi.IsDir() {
		return certstore.NoTag, certstore.DataError{Key: ref.key, Reason: "entry is a directory"}
	}

	return tagOf(fi), nil
}

// readEntry reads and parses the entry. The tag is taken from the open file
// descriptor before reading through it, so the tag and the returned bytes
// always describe the same version even when a writer renames a new one into
// place concurrently.
func (s *DirectoryStore) readEntry(ref entryRef) (certstore.Certificate, certstore.Tag, error) {
	file, err := os.Open(ref.path)
	if os.IsNotExist(err) {
		return nil, certstore.NoTag, certstore.ErrNotFound
	}

	if err != nil {
		return nil, certstore.NoTag, xerrors.Errorf("while opening entry %q: %v", ref.key, err)
	}

	defer file.Close()

	fi, err := file.Stat()
	if err != nil {
		return nil, certstore.NoTag, xerrors.Errorf("while checking entry %q: %v", ref.key, err)
	}

	if fi.IsDir() {
		return nil, certstore.NoTag, certstore.DataError{Key: ref.key, Reason: "entry is a directory"}
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, certstore.NoTag, xerrors.Errorf("while reading entry %q: %v", ref.key, err)
	}

	cert, err := s.fac.FromBytes(data)
	if err != nil {
		return nil, certstore.NoTag, certstore.DataError{
			Key:    ref.key,
			Reason: "malformed certificate",
			Err:    err,
		}
	}

	if ref.fp != "" && !strings.EqualFold(cert.GetFingerprint(), ref.fp) {
		return nil, certstore.NoTag, certstore.DataError{
			Key:    ref.key,
			Reason: fmt.Sprintf("certificate reports fingerprint %q", cert.GetFingerprint()),
		}
	}

	return cert, tagOf(fi), nil
}
