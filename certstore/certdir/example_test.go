package certdir_test

import (
	"context"
	"fmt"
	"os"

	"go.dedis.ch/certd/certstore"
	"go.dedis.ch/certd/certstore/certdir"
)

func ExampleDirectoryStore_Insert() {
	dir, err := os.MkdirTemp("", "pgp.cert.d")
	if err != nil {
		panic("no temporary directory: " + err.Error())
	}

	defer os.RemoveAll(dir)

	store, err := certdir.NewDirectoryStore(dir, certstore.DigestFactory{})
	if err != nil {
		panic("while opening the store: " + err.Error())
	}

	data := []byte("alice's certificate")

	cert, err := certstore.DigestFactory{}.FromBytes(data)
	if err != nil {
		panic("while hashing: " + err.Error())
	}

	_, err = store.Insert(context.Background(), cert.GetFingerprint(), data,
		certstore.KeepIncoming)
	if err != nil {
		panic("insert failed: " + err.Error())
	}

	stored, err := store.GetByFingerprint(cert.GetFingerprint())
	if err != nil {
		panic("lookup failed: " + err.Error())
	}

	fmt.Println(string(stored.GetData()))

	// Output: alice's certificate
}

func ExampleDirectoryStore_GetByFingerprintIfChanged() {
	dir, err := os.MkdirTemp("", "pgp.cert.d")
	if err != nil {
		panic("no temporary directory: " + err.Error())
	}

	defer os.RemoveAll(dir)

	store, err := certdir.NewDirectoryStore(dir, certstore.DigestFactory{})
	if err != nil {
		panic("while opening the store: " + err.Error())
	}

	data := []byte("bob's certificate")

	cert, err := certstore.DigestFactory{}.FromBytes(data)
	if err != nil {
		panic("while hashing: " + err.Error())
	}

	_, err = store.Insert(context.Background(), cert.GetFingerprint(), data,
		certstore.KeepIncoming)
	if err != nil {
		panic("insert failed: " + err.Error())
	}

	// The first conditional read misses and yields the tag.
	first, tag, err := store.GetByFingerprintIfChanged(cert.GetFingerprint(), certstore.NoTag)
	if err != nil {
		panic("conditional lookup failed: " + err.Error())
	}

	fmt.Println(first != nil)

	// Presenting the tag back skips the payload as long as the entry does
	// not change.
	second, _, err := store.GetByFingerprintIfChanged(cert.GetFingerprint(), tag)
	if err != nil {
		panic("conditional lookup failed: " + err.Error())
	}

	fmt.Println(second == nil)

	// Output: true
	// true
}
