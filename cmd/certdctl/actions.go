package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/certd/certstore"
	"golang.org/x/xerrors"
)

// list prints the fingerprint of every certificate of the directory, one per
// line in lexicographic order.
func list(c *cli.Context) error {
	store, _, err := openStore(c)
	if err != nil {
		return err
	}

	return store.Fingerprints(func(fp string) bool {
		fmt.Fprintln(c.App.Writer, fp)

		return true
	})
}

// export dumps every certificate to the output. Each payload is preceded by
// a line with the fingerprint and the length in bytes, so that a consumer
// can split the stream without interpreting the payloads.
func export(c *cli.Context) error {
	store, _, err := openStore(c)
	if err != nil {
		return err
	}

	var werr error

	err = store.Items(func(cert certstore.Certificate) bool {
		data := cert.GetData()

		_, werr = fmt.Fprintf(c.App.Writer, "%s %d\n", cert.GetFingerprint(), len(data))
		if werr != nil {
			return false
		}

		_, werr = c.App.Writer.Write(append(data, '\n'))

		return werr == nil
	})
	if err != nil {
		return err
	}

	if werr != nil {
		return xerrors.Errorf("failed to write: %v", werr)
	}

	return nil
}

// importCert inserts the certificate read from the file argument, or from
// stdin when no file is given. Existing material under the same key is
// replaced by the incoming bytes.
func importCert(c *cli.Context) error {
	data, err := readInput(c)
	if err != nil {
		return err
	}

	store, _, err := openStore(c)
	if err != nil {
		return err
	}

	if name := c.String("special-name"); name != "" {
		cert, err := store.InsertWithSpecialName(c.Context,
			certstore.SpecialName(name), data, certstore.KeepIncoming)
		if err != nil {
			return xerrors.Errorf("failed to insert: %v", err)
		}

		fmt.Fprintf(c.App.Writer, "%s %s\n", name, cert.GetFingerprint())

		return nil
	}

	cert, err := certstore.DigestFactory{}.FromBytes(data)
	if err != nil {
		return xerrors.Errorf("failed to read certificate: %v", err)
	}

	stored, err := store.Insert(c.Context, cert.GetFingerprint(), data,
		certstore.KeepIncoming)
	if err != nil {
		return xerrors.Errorf("failed to insert: %v", err)
	}

	fmt.Fprintln(c.App.Writer, stored.GetFingerprint())

	return nil
}

// status prints the location of the directory, the number of certificates
// and the state of the trust anchor.
func status(c *cli.Context) error {
	store, dir, err := openStore(c)
	if err != nil {
		return err
	}

	count := 0
	err = store.Fingerprints(func(string) bool {
		count++

		return true
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "Directory: %s\n", dir)
	fmt.Fprintf(c.App.Writer, "Certificates: %d\n", count)

	// A conditional read with the absent tag only misses when the trust
	// anchor exists, in which case it comes back with the current tag.
	_, tag, err := store.GetBySpecialNameIfChanged(certstore.TrustRoot, certstore.NoTag)
	if err != nil {
		return err
	}

	if tag == certstore.NoTag {
		fmt.Fprintln(c.App.Writer, "Trust root: none")

		return nil
	}

	fmt.Fprintf(c.App.Writer, "Trust root: present (tag %s)\n", tag)

	return nil
}

// readInput returns the content of the file argument, or everything from
// stdin when no file is given.
func readInput(c *cli.Context) ([]byte, error) {
	path := c.Args().First()
	if path == "" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, xerrors.Errorf("failed to read stdin: %v", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, xerrors.Errorf("failed to read file: %v", err)
	}

	return data, nil
}
