package integration

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/certd/certstore"
	"go.dedis.ch/certd/certstore/certdir"
	"go.dedis.ch/certd/certstore/keyindex"
	"go.dedis.ch/certd/kv"
	"golang.org/x/xerrors"
)

// Insert a certificate, then more material for the same fingerprint. The
// stored entry accumulates the identities instead of keeping the last write.
func TestIntegration_MergeAccumulates(t *testing.T) {
	dir := t.TempDir()

	store, err := certdir.NewDirectoryStore(dir, uidFactory{})
	require.NoError(t, err)

	fp := strings.Repeat("5c", 32)

	_, err = store.Insert(context.Background(), fp,
		payload(fp, "alice@example.com"), unionMerge)
	require.NoError(t, err)

	cert, err := store.GetByFingerprint(fp)
	require.NoError(t, err)
	require.Equal(t, payload(fp, "alice@example.com"), cert.GetData())

	_, err = store.Insert(context.Background(), fp,
		payload(fp, "alice@home.example"), unionMerge)
	require.NoError(t, err)

	cert, err = store.GetByFingerprint(fp)
	require.NoError(t, err)
	require.Equal(t,
		payload(fp, "alice@example.com", "alice@home.example"),
		cert.GetData())
}

// Two handles of the same directory stand in for two processes. Writers
// spread over both handles race on a single entry and every identity must
// survive the merges, while a reader observes only complete versions.
func TestIntegration_SharedDirectory(t *testing.T) {
	dir := t.TempDir()

	handles := make([]*certdir.DirectoryStore, 2)

	for i := range handles {
		store, err := certdir.NewDirectoryStore(dir, uidFactory{},
			certdir.WithPollInterval(2*time.Millisecond))
		require.NoError(t, err)

		handles[i] = store
	}

	fp := strings.Repeat("7e", 32)

	const writers = 16

	stop := make(chan struct{})
	observed := make(chan []certstore.Tag, 1)
	failed := make(chan error, 1)

	go func() {
		var tags []certstore.Tag

		tag := certstore.NoTag

		for {
			select {
			case <-stop:
				observed <- tags

				return
			default:
			}

			cert, cur, err := handles[0].GetByFingerprintIfChanged(fp, tag)
			if err != nil {
				failed <- err

				return
			}

			// A new version was returned: the factory accepted it, so the
			// payload was complete, and it must report the entry key.
			if cert != nil && cert.GetFingerprint() != fp {
				failed <- xerrors.Errorf("read fingerprint %q", cert.GetFingerprint())

				return
			}

			if cert != nil {
				tags = append(tags, cur)
			}

			tag = cur

			time.Sleep(time.Millisecond)
		}
	}()

	errs := make(chan error, writers)

	var wg sync.WaitGroup
	wg.Add(writers)

	for i := 0; i < writers; i++ {
		go func(i int) {
			defer wg.Done()

			store := handles[i%len(handles)]

			_, err := store.Insert(context.Background(), fp,
				payload(fp, fmt.Sprintf("uid-%02d@example.com", i)), unionMerge)
			errs <- err
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	close(stop)

	var tags []certstore.Tag

	select {
	case err := <-failed:
		t.Fatalf("reader failed: %v", err)
	case tags = <-observed:
	}

	cert, err := handles[1].GetByFingerprint(fp)
	require.NoError(t, err)

	// No identity was lost to a concurrent writer, through either handle.
	final := cert.(uidCert).uids
	require.Len(t, final, writers)

	for i := 0; i < writers; i++ {
		require.Contains(t, final, fmt.Sprintf("uid-%02d@example.com", i))
	}

	// Every insert grows the entry, so the reader never sees the same tag
	// twice: tags do not roll back to a previous version.
	unique := make(map[certstore.Tag]struct{})
	for _, tag := range tags {
		_, ok := unique[tag]
		require.False(t, ok)

		unique[tag] = struct{}{}
	}
}

// The full tour of a directory shared with the key ID index: certificates
// and a trust anchor go in, the index finds them back by component key ID
// and the traversal enumerates the fingerprint tree only.
func TestIntegration_DirectoryWithIndex(t *testing.T) {
	dir := t.TempDir()

	store, err := certdir.NewDirectoryStore(dir, uidFactory{})
	require.NoError(t, err)

	db, err := kv.New(filepath.Join(dir, "index.db"))
	require.NoError(t, err)

	defer db.Close()

	lookup := keyindex.NewDiskLookup(db)

	fps := make([]string, 3)
	for i := range fps {
		fps[i] = strings.Repeat(fmt.Sprintf("%02x", 16+i), 32)

		_, err = store.Insert(context.Background(), fps[i],
			payload(fps[i], fmt.Sprintf("user-%d@example.com", i)), unionMerge)
		require.NoError(t, err)

		keyID, err := strconv.ParseUint(fps[i][:16], 16, 64)
		require.NoError(t, err)

		require.NoError(t, lookup.Record(fps[i], []uint64{keyID, 42}))
	}

	_, err = store.InsertWithSpecialName(context.Background(), certstore.TrustRoot,
		payload(strings.Repeat("00", 32), "anchor@example.com"), unionMerge)
	require.NoError(t, err)

	// The shared key ID yields every candidate, sorted.
	candidates, err := lookup.Get(42)
	require.NoError(t, err)

	sorted := append([]string{}, fps...)
	sort.Strings(sorted)
	require.Equal(t, sorted, candidates)

	// An individual key ID yields its single certificate, which the store
	// resolves to the material.
	keyID, err := strconv.ParseUint(fps[1][:16], 16, 64)
	require.NoError(t, err)

	candidates, err = lookup.Get(keyID)
	require.NoError(t, err)
	require.Equal(t, []string{fps[1]}, candidates)

	cert, err := store.GetByFingerprint(candidates[0])
	require.NoError(t, err)
	require.Equal(t, payload(fps[1], "user-1@example.com"), cert.GetData())

	// The traversal yields the fingerprints but not the trust anchor, nor
	// the index database living in the same directory.
	var walked []string
	err = store.Fingerprints(func(fp string) bool {
		walked = append(walked, fp)

		return true
	})
	require.NoError(t, err)
	require.Equal(t, sorted, walked)
}

// -----------------------------------------------------------------------------
// Utility functions

// uidCert is the certificate format of the scenarios: the first line is the
// fingerprint and every following line one user identity.
//
// - implements certstore.Certificate
type uidCert struct {
	fp   string
	uids []string
}

func (c uidCert) GetFingerprint() string {
	return c.fp
}

func (c uidCert) GetData() []byte {
	return payload(c.fp, c.uids...)
}

// uidFactory parses the line format of uidCert.
//
// - implements certstore.Factory
type uidFactory struct{}

func (uidFactory) FromBytes(data []byte) (certstore.Certificate, error) {
	lines := strings.Split(string(data), "\n")

	fp, err := certstore.ValidateFingerprint(lines[0])
	if err != nil {
		return nil, err
	}

	uids := make([]string, 0, len(lines)-1)

	for _, line := range lines[1:] {
		if line != "" {
			uids = append(uids, line)
		}
	}

	sort.Strings(uids)

	return uidCert{fp: fp, uids: uids}, nil
}

// unionMerge resolves a conflict by keeping the identities of both
// certificates.
func unionMerge(existing, incoming certstore.Certificate) (certstore.Certificate, error) {
	if existing == nil {
		return incoming, nil
	}

	prev := existing.(uidCert)
	next := incoming.(uidCert)

	set := make(map[string]struct{}, len(prev.uids)+len(next.uids))

	for _, uid := range prev.uids {
		set[uid] = struct{}{}
	}

	for _, uid := range next.uids {
		set[uid] = struct{}{}
	}

	uids := make([]string, 0, len(set))
	for uid := range set {
		uids = append(uids, uid)
	}

	sort.Strings(uids)

	return uidCert{fp: prev.fp, uids: uids}, nil
}

func payload(fp string, uids ...string) []byte {
	return []byte(strings.Join(append([]string{fp}, uids...), "\n"))
}
