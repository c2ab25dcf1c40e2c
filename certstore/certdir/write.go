package certdir

import (
	"os"
	"path/filepath"

	"go.dedis.ch/certd/certstore"
	"golang.org/x/xerrors"
)

// commit publishes the payload as the new content of the entry. The bytes go
// to a temporary file in the destination directory first, which is then
// renamed into place: readers either observe the previous version or the new
// one, never a partial write.
func (s *DirectoryStore) commit(ref entryRef, data []byte) (certstore.Tag, error) {
	tmp, err := s.createTemp(filepath.Dir(ref.path), tmpPattern)
	if err != nil {
		return certstore.NoTag, xerrors.Errorf("while creating temporary file: %v", err)
	}

	err = writeAndSync(tmp, data)
	if err != nil {
		os.Remove(tmp.Name())

		return certstore.NoTag, xerrors.Errorf("while writing temporary file: %v", err)
	}

	err = s.rename(tmp.Name(), ref.path)
	if err != nil {
		os.Remove(tmp.Name())

		return certstore.NoTag, xerrors.Errorf("while publishing entry %q: %v", ref.key, err)
	}

	fi, err := os.Stat(ref.path)
	if err != nil {
		return certstore.NoTag, xerrors.Errorf("while checking entry %q: %v", ref.key, err)
	}

	return tagOf(fi), nil
}

// writeAndSync writes the payload and flushes it to stable storage before
// closing the file.
func writeAndSync(file *os.File, data []byte) error {
	_, err := file.Write(data)
	if err != nil {
		file.Close()

		return err
	}

	err = file.Sync()
	if err != nil {
		file.Close()

		return err
	}

	return file.Close()
}
