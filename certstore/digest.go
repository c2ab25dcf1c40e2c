package certstore

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/xerrors"
)

// DigestFactory is a certificate factory that does not interpret the
// payload: the fingerprint is the hex-encoded SHA-256 digest of the raw
// bytes. It allows the store and the tooling to operate on certificate
// material without an actual parser, at the price of content-addressed
// fingerprints.
//
// - implements certstore.Factory
type DigestFactory struct{}

// FromBytes implements certstore.Factory. It returns a certificate holding a
// copy of the data, keyed by its digest.
func (DigestFactory) FromBytes(data []byte) (Certificate, error) {
	if len(data) == 0 {
		return nil, xerrors.New("empty certificate data")
	}

	digest := sha256.Sum256(data)

	return digestCert{
		fp:   hex.EncodeToString(digest[:]),
		data: append([]byte{}, data...),
	}, nil
}

// digestCert is a certificate produced by the digest factory.
//
// - implements certstore.Certificate
type digestCert struct {
	fp   string
	data []byte
}

// GetFingerprint implements certstore.Certificate.
func (c digestCert) GetFingerprint() string {
	return c.fp
}

// GetData implements certstore.Certificate. It returns an independent copy
// so that the caller cannot corrupt the certificate.
func (c digestCert) GetData() []byte {
	return append([]byte{}, c.data...)
}
