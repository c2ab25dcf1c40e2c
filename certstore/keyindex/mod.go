// Package keyindex maintains the reverse index from 64-bit component key IDs
// to the fingerprints of the certificates that contain them.
//
// A key ID is ambiguous by construction: several certificates may legitimately
// claim the same ID, and nothing prevents a hostile certificate from doing so
// on purpose. A lookup therefore returns every candidate fingerprint and the
// caller disambiguates with the full material fetched from the store.
package keyindex

// Lookup is the interface to record and query the key ID associations.
type Lookup interface {
	// Record associates the key IDs with the fingerprint of the certificate
	// that contains them. Recording the same association twice is a no-op.
	Record(fp string, keyIDs []uint64) error

	// Get returns the fingerprints of the certificates known to contain the
	// key ID, in lexicographic order, or an empty list when the key ID is
	// unknown.
	Get(keyID uint64) ([]string, error)
}
