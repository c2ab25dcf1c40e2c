// Package fake provides fake implementations for interfaces commonly used in
// the repository.
// The implementations offer configuration to return errors when it is needed
// by the unit test and it is also possible to record the call of functions of
// an object in some cases.
package fake

import (
	"go.dedis.ch/certd/certstore"
	"golang.org/x/xerrors"
)

var fakeErr = xerrors.New("fake error")

// GetError returns the fake error that the fake implementations return when
// they are configured to fail.
func GetError() error {
	return fakeErr
}

// Err returns the expected text of a message wrapping the fake error.
func Err(msg string) string {
	return msg + ": fake error"
}

// Call is a tool to keep track of a function calls.
type Call struct {
	calls [][]interface{}
}

// Get returns the nth call ith parameter.
func (c *Call) Get(n, i int) interface{} {
	return c.calls[n][i]
}

// Len returns the number of calls.
func (c *Call) Len() int {
	return len(c.calls)
}

// Add adds a call to the list.
func (c *Call) Add(args ...interface{}) {
	c.calls = append(c.calls, args)
}

// Certificate is a fake implementation of certstore.Certificate with a fixed
// fingerprint and payload.
//
// - implements certstore.Certificate
type Certificate struct {
	FP   string
	Data []byte
}

// NewCertificate returns a fake certificate reporting the given fingerprint
// and payload.
func NewCertificate(fp string, data []byte) Certificate {
	return Certificate{FP: fp, Data: data}
}

// GetFingerprint implements certstore.Certificate.
func (c Certificate) GetFingerprint() string {
	return c.FP
}

// GetData implements certstore.Certificate.
func (c Certificate) GetData() []byte {
	return c.Data
}

// Factory is a fake implementation of certstore.Factory. It echoes the bytes
// into a certificate reporting a fixed fingerprint, unless it is configured
// to fail.
//
// - implements certstore.Factory
type Factory struct {
	FP   string
	Call *Call
	err  error
}

// NewFactory returns a factory producing certificates with the given
// fingerprint.
func NewFactory(fp string) Factory {
	return Factory{FP: fp}
}

// NewBadFactory returns a factory that always fails to parse.
func NewBadFactory() Factory {
	return Factory{err: fakeErr}
}

// FromBytes implements certstore.Factory.
func (f Factory) FromBytes(data []byte) (certstore.Certificate, error) {
	if f.Call != nil {
		f.Call.Add(data)
	}

	if f.err != nil {
		return nil, f.err
	}

	return Certificate{FP: f.FP, Data: data}, nil
}

// BadMerge is a merge function that always rejects the incoming certificate.
func BadMerge(existing, incoming certstore.Certificate) (certstore.Certificate, error) {
	return nil, fakeErr
}
