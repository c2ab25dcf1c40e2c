package certstore

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups when no certificate is stored under the
// requested key.
var ErrNotFound = errors.New("certificate not found")

// ErrWouldBlock is returned by the non-blocking inserts when another writer
// currently holds the entry.
var ErrWouldBlock = errors.New("entry is locked by another writer")

// NamingError is returned when a fingerprint or a special name is
// syntactically invalid. No entry can exist under such a key, so the store
// rejects the request before touching the storage.
//
// - implements error
type NamingError struct {
	Name   string
	Reason string
}

// Error implements error. It returns the offending name and the reason it
// was rejected.
func (e NamingError) Error() string {
	return fmt.Sprintf("invalid name %q: %s", e.Name, e.Reason)
}

// DataError is returned when certificate material cannot be accepted: the
// payload does not parse, the parsed fingerprint contradicts the requested
// key, or the merge callback rejected the combination. The entry is left
// untouched.
//
// - implements error
type DataError struct {
	Key    string
	Reason string
	Err    error
}

// Error implements error. It returns the entry key and the reason the data
// was rejected.
func (e DataError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bad data for entry %q: %s: %v", e.Key, e.Reason, e.Err)
	}

	return fmt.Sprintf("bad data for entry %q: %s", e.Key, e.Reason)
}

// Unwrap returns the underlying cause, if any, so that the factory or merge
// error stays reachable with errors.Is and errors.As.
func (e DataError) Unwrap() error {
	return e.Err
}
