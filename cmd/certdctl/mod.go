// Package main implements certdctl, a command line tool to administrate a
// shared certificate directory: list and export the stored certificates,
// import new material and inspect the state of the directory.
//
// The directory is resolved from the --dir flag, from the optional yaml
// config file, or from the conventional environment variables, in that
// order.
package main

import (
	"io"
	"log"
	"os"

	"github.com/urfave/cli/v2"
	"go.dedis.ch/certd/certstore"
	"go.dedis.ch/certd/certstore/certdir"
	"golang.org/x/xerrors"
	"gopkg.in/yaml.v2"
)

// stdin feeds the import command when no file is given. The tests swap it.
var stdin io.Reader = os.Stdin

func main() {
	app := makeApp(os.Stdout)

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

// makeApp builds the application and its commands, writing to the given
// output.
func makeApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:   "certdctl",
		Usage:  "administrate a shared certificate directory",
		Writer: out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "the path of the certificate directory",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "the path to a yaml config file",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "print the fingerprint of every stored certificate",
				Action: list,
			},
			{
				Name: "export",
				Usage: "dump every certificate, each preceded by a line " +
					"with its fingerprint and length",
				Action: export,
			},
			{
				Name:      "import",
				Usage:     "insert the certificate read from a file, or from stdin",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "special-name",
						Usage: "store the certificate under this special name",
					},
				},
				Action: importCert,
			},
			{
				Name:   "status",
				Usage:  "print a summary of the directory",
				Action: status,
			},
		},
	}
}

// config is the expected content of the yaml config file.
type config struct {
	Directory string `yaml:"directory"`
}

// resolveDir returns the directory to operate on. The flag wins over the
// config file, which wins over the environment.
func resolveDir(c *cli.Context) (string, error) {
	if c.String("dir") != "" {
		return c.String("dir"), nil
	}

	if c.String("config") != "" {
		buf, err := os.ReadFile(c.String("config"))
		if err != nil {
			return "", xerrors.Errorf("failed to read config file: %v", err)
		}

		config := config{}

		err = yaml.Unmarshal(buf, &config)
		if err != nil {
			return "", xerrors.Errorf("failed to unmarshal config: %v", err)
		}

		if config.Directory != "" {
			return config.Directory, nil
		}
	}

	return certdir.DefaultDirectory()
}

// openStore opens the store over the resolved directory, which is returned
// alongside. The tool has no parser for any specific certificate format, so
// the content-addressed factory is used throughout.
func openStore(c *cli.Context) (*certdir.DirectoryStore, string, error) {
	dir, err := resolveDir(c)
	if err != nil {
		return nil, "", err
	}

	store, err := certdir.NewDirectoryStore(dir, certstore.DigestFactory{})
	if err != nil {
		return nil, "", xerrors.Errorf("failed to open directory %q: %v", dir, err)
	}

	return store, dir, nil
}
