// Package certdir implements the certificate store on top of a shared
// filesystem directory.
//
// The layout follows the shared-directory convention: an entry keyed by a
// fingerprint lives in a shard subdirectory named after the first two
// characters of the fingerprint, while special names resolve to files at the
// root of the directory.
//
//	<base>/ab/cdef...  entry of the fingerprint starting with abcdef
//	<base>/trust-root  entry of the trust anchor
//
// Several processes may operate on the same directory concurrently: writers
// coordinate with per-entry lock files and publish new content by renaming a
// temporary file into place, so that readers always observe complete
// payloads. Reads return a tag alongside the certificate that the caller can
// present back to skip the payload when the entry has not changed.
package certdir

import (
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.dedis.ch/certd"
	"go.dedis.ch/certd/certstore"
	"golang.org/x/xerrors"
)

const (
	dirPerm    = 0755
	tmpPattern = ".certd-*.tmp"
)

// defaultPollInterval is the delay between two attempts to take the lock
// file of an entry held by another process.
const defaultPollInterval = 50 * time.Millisecond

// defines prometheus metrics
var (
	promInserts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "certd_directory_inserts_total",
		Help: "total number of certificates committed to the directory",
	})

	promRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "certd_directory_inserts_rejected_total",
		Help: "total number of inserts rejected before commit",
	})

	promLookups = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "certd_directory_lookups_total",
		Help: "total number of entry lookups",
	})

	promLockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "certd_directory_lock_wait_seconds",
		Help:    "time spent waiting for entry locks",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})
)

func init() {
	certd.PromCollectors = append(certd.PromCollectors, promInserts,
		promRejected, promLookups, promLockWait)
}

// DirectoryStore is a certificate store over a shared filesystem directory.
// It is safe for concurrent use by multiple goroutines and by multiple
// processes pointed at the same directory.
//
// - implements certstore.Storage
type DirectoryStore struct {
	dir    string
	fac    certstore.Factory
	locks  *lockTable
	logger zerolog.Logger

	createTemp func(dir, pattern string) (*os.File, error)
	rename     func(oldpath, newpath string) error
}

// storeTemplate gathers the configurable fields of a store before it is
// built.
type storeTemplate struct {
	poll   time.Duration
	logger zerolog.Logger
}

// Option is the type to set some fields when opening a directory store.
type Option func(*storeTemplate)

// WithPollInterval is an option to set the delay between two attempts to take
// the lock file of an entry held by another process.
func WithPollInterval(d time.Duration) Option {
	return func(tmpl *storeTemplate) {
		tmpl.poll = d
	}
}

// WithLogger is an option to set the logger of the store.
func WithLogger(logger zerolog.Logger) Option {
	return func(tmpl *storeTemplate) {
		tmpl.logger = logger
	}
}

// NewDirectoryStore opens the directory, creating it when necessary, and
// returns a store that parses the entries with the factory.
func NewDirectoryStore(dir string, fac certstore.Factory, opts ...Option) (*DirectoryStore, error) {
	dir = filepath.Clean(dir)

	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return nil, xerrors.Errorf("while creating directory: %v", err)
	}

	tmpl := storeTemplate{
		poll:   defaultPollInterval,
		logger: certd.Logger,
	}

	for _, opt := range opts {
		opt(&tmpl)
	}

	logger := tmpl.logger.With().Str("dir", dir).Logger()

	store := &DirectoryStore{
		dir:        dir,
		fac:        fac,
		locks:      newLockTable(tmpl.poll, logger),
		logger:     logger,
		createTemp: os.CreateTemp,
		rename:     os.Rename,
	}

	return store, nil
}

// GetByFingerprint implements certstore.Storage. It returns the certificate
// stored under the fingerprint, or ErrNotFound.
func (s *DirectoryStore) GetByFingerprint(fp string) (certstore.Certificate, error) {
	ref, err := s.fingerprintRef(fp)
	if err != nil {
		return nil, err
	}

	promLookups.Inc()

	cert, _, err := s.readEntry(ref)

	return cert, err
}

// GetBySpecialName implements certstore.Storage. It returns the certificate
// stored under the special name, or ErrNotFound.
func (s *DirectoryStore) GetBySpecialName(name certstore.SpecialName) (certstore.Certificate, error) {
	ref, err := s.specialNameRef(name)
	if err != nil {
		return nil, err
	}

	promLookups.Inc()

	cert, _, err := s.readEntry(ref)

	return cert, err
}

// GetByFingerprintIfChanged implements certstore.Storage. It returns the
// certificate stored under the fingerprint only if its tag differs from the
// given one, otherwise a nil certificate and the unchanged tag.
func (s *DirectoryStore) GetByFingerprintIfChanged(fp string,
	tag certstore.Tag) (certstore.Certificate, certstore.Tag, error) {

	ref, err := s.fingerprintRef(fp)
	if err != nil {
		return nil, certstore.NoTag, err
	}

	promLookups.Inc()

	return s.readIfChanged(ref, tag)
}

// GetBySpecialNameIfChanged implements certstore.Storage. It returns the
// certificate stored under the special name only if its tag differs from the
// given one, otherwise a nil certificate and the unchanged tag.
func (s *DirectoryStore) GetBySpecialNameIfChanged(name certstore.SpecialName,
	tag certstore.Tag) (certstore.Certificate, certstore.Tag, error) {

	ref, err := s.specialNameRef(name)
	if err != nil {
		return nil, certstore.NoTag, err
	}

	promLookups.Inc()

	return s.readIfChanged(ref, tag)
}

// readIfChanged checks the cheap metadata tag first and only opens the
// payload when it differs from the caller's.
func (s *DirectoryStore) readIfChanged(ref entryRef,
	tag certstore.Tag) (certstore.Certificate, certstore.Tag, error) {

	cur, err := s.currentTag(ref)
	if err != nil {
		return nil, certstore.NoTag, err
	}

	if cur == tag {
		return nil, tag, nil
	}

	cert, newTag, err := s.readEntry(ref)
	if err != nil {
		return nil, certstore.NoTag, err
	}

	return cert, newTag, nil
}
