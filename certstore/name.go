package certstore

import (
	"fmt"
	"strings"
)

// FingerprintLen is the length of a hex-encoded fingerprint.
const FingerprintLen = 64

// ValidateFingerprint checks that the fingerprint is syntactically valid and
// returns its normalized lowercase form. The same normalization applies to
// lookups and inserts, so mixed-case spellings of one fingerprint always
// resolve to the same entry.
func ValidateFingerprint(fp string) (string, error) {
	if len(fp) != FingerprintLen {
		return "", NamingError{
			Name:   fp,
			Reason: fmt.Sprintf("fingerprint must be %d hex characters, got %d", FingerprintLen, len(fp)),
		}
	}

	upper := false

	for i := 0; i < len(fp); i++ {
		c := fp[i]

		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
			upper = true
		default:
			return "", NamingError{
				Name:   fp,
				Reason: fmt.Sprintf("fingerprint contains illegal character %q", c),
			}
		}
	}

	if upper {
		fp = strings.ToLower(fp)
	}

	return fp, nil
}

// ValidateSpecialName checks that the name belongs to the closed set of
// reserved special names.
func ValidateSpecialName(name SpecialName) (SpecialName, error) {
	switch name {
	case TrustRoot:
		return name, nil
	default:
		return "", NamingError{
			Name:   string(name),
			Reason: "not a reserved special name",
		}
	}
}
