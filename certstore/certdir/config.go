package certdir

import (
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"golang.org/x/xerrors"
)

// environment is the set of variables that locate the default directory.
type environment struct {
	Directory   string `envconfig:"PGP_CERT_D"`
	XDGDataHome string `envconfig:"XDG_DATA_HOME"`
	Home        string `envconfig:"HOME"`
}

// DefaultDirectory returns the conventional location of the shared
// directory: the PGP_CERT_D variable wins, then the XDG data home, then the
// fallback under the home directory.
func DefaultDirectory() (string, error) {
	var env environment

	err := envconfig.Process("", &env)
	if err != nil {
		return "", xerrors.Errorf("while reading environment: %v", err)
	}

	switch {
	case env.Directory != "":
		return env.Directory, nil
	case env.XDGDataHome != "":
		return filepath.Join(env.XDGDataHome, "pgp.cert.d"), nil
	case env.Home != "":
		return filepath.Join(env.Home, ".local", "share", "pgp.cert.d"), nil
	default:
		return "", xerrors.New("no suitable environment, set PGP_CERT_D")
	}
}
