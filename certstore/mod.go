// Package certstore defines a shared certificate directory. The directory
// shelters opaque certificate material keyed by the fingerprint of its
// primary key, or by one of the reserved special names, and resolves
// concurrent writes to the same entry by merging instead of overwriting.
//
// The package holds the abstractions only. The filesystem implementation
// lives in certstore/certdir and an in-memory implementation is provided
// alongside for tests and embedding.
//
// The store never interprets the certificate payloads: parsing is delegated
// to a Factory provided by the caller, and conflict resolution to a
// MergeFunc invoked on the write path.
package certstore

import "context"

// Certificate is an opaque certificate along with the fingerprint of its
// primary key material. Implementations are expected to be immutable.
type Certificate interface {
	// GetFingerprint returns the hex fingerprint of the certificate.
	GetFingerprint() string

	// GetData returns the raw bytes of the certificate. The returned slice
	// is owned by the caller.
	GetData() []byte
}

// Factory is the interface to deserialize raw bytes into a certificate. The
// implementation carries the actual parsing logic, which the store does not
// interpret.
type Factory interface {
	// FromBytes returns the certificate deserialized from the data.
	FromBytes(data []byte) (Certificate, error)
}

// MergeFunc is the callback invoked on the write path to combine an existing
// certificate with incoming material. The existing certificate is nil when
// the entry does not exist yet. Returning an error rejects the incoming data
// and leaves the entry untouched.
type MergeFunc func(existing, incoming Certificate) (Certificate, error)

// KeepIncoming is a merge function that always resolves to the incoming
// certificate.
func KeepIncoming(existing, incoming Certificate) (Certificate, error) {
	return incoming, nil
}

// KeepExisting is a merge function that resolves to the certificate already
// stored, or to the incoming one for the first insert.
func KeepExisting(existing, incoming Certificate) (Certificate, error) {
	if existing != nil {
		return existing, nil
	}

	return incoming, nil
}

// Tag is an opaque token that reflects the state of a stored entry at the
// time it was observed. Two reads returning the same tag have observed
// equivalent content, whereas a different tag only indicates that the
// content may have changed.
type Tag string

// NoTag is the tag of an entry that does not exist.
const NoTag Tag = ""

// SpecialName is one of the reserved entry names that resolve outside the
// fingerprint tree. The set is closed: new names are added here and nowhere
// else.
type SpecialName string

// TrustRoot is the special name of the designated trust anchor of the
// directory.
const TrustRoot SpecialName = "trust-root"

// Storage is the interface to store and retrieve certificates.
//
// Plain lookups return ErrNotFound when no entry exists. Conditional lookups
// take the tag of the caller's last observation and skip the payload when
// nothing changed: they return a nil certificate along with the unchanged
// tag. Inserts route the incoming bytes through the factory and the merge
// callback while holding the entry lock, so that concurrent writers to the
// same entry serialize and none of their material is lost.
type Storage interface {
	// GetByFingerprint returns the certificate stored under the fingerprint.
	GetByFingerprint(fp string) (Certificate, error)

	// GetBySpecialName returns the certificate stored under the special
	// name.
	GetBySpecialName(name SpecialName) (Certificate, error)

	// GetByFingerprintIfChanged returns the certificate stored under the
	// fingerprint only if its tag differs from the given one, otherwise a
	// nil certificate and the unchanged tag.
	GetByFingerprintIfChanged(fp string, tag Tag) (Certificate, Tag, error)

	// GetBySpecialNameIfChanged returns the certificate stored under the
	// special name only if its tag differs from the given one, otherwise a
	// nil certificate and the unchanged tag.
	GetBySpecialNameIfChanged(name SpecialName, tag Tag) (Certificate, Tag, error)

	// Insert stores the certificate parsed from the data under the
	// fingerprint, merging it with the existing entry if there is one. It
	// blocks while another writer holds the entry, until the context is
	// done.
	Insert(ctx context.Context, fp string, data []byte, merge MergeFunc) (Certificate, error)

	// TryInsert is like Insert but it never waits: it returns ErrWouldBlock
	// when another writer currently holds the entry.
	TryInsert(fp string, data []byte, merge MergeFunc) (Certificate, error)

	// InsertWithSpecialName stores the certificate parsed from the data
	// under the special name, merging it with the existing entry if there
	// is one.
	InsertWithSpecialName(ctx context.Context, name SpecialName, data []byte, merge MergeFunc) (Certificate, error)

	// TryInsertWithSpecialName is like InsertWithSpecialName but it never
	// waits: it returns ErrWouldBlock when another writer currently holds
	// the entry.
	TryInsertWithSpecialName(name SpecialName, data []byte, merge MergeFunc) (Certificate, error)

	// Items iterates over the certificates of the fingerprint tree as long
	// as the callback returns true. Special names are not enumerated.
	// Entries inserted while the iteration runs may or may not be yielded.
	Items(fn func(Certificate) bool) error

	// Fingerprints iterates over the fingerprints of the tree as long as
	// the callback returns true, without reading the payloads.
	Fingerprints(fn func(fp string) bool) error
}
