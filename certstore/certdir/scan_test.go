package certdir

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/certd/certstore"
)

func TestDirectoryStore_Items(t *testing.T) {
	store := makeStore(t)

	datas := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	for _, data := range datas {
		_, err := store.TryInsert(digestFp(t, data), data, certstore.KeepIncoming)
		require.NoError(t, err)
	}

	_, err := store.TryInsertWithSpecialName(certstore.TrustRoot,
		[]byte("anchor"), certstore.KeepIncoming)
	require.NoError(t, err)

	var contents [][]byte
	err = store.Items(func(cert certstore.Certificate) bool {
		contents = append(contents, cert.GetData())

		return true
	})
	require.NoError(t, err)

	// The special name is not part of the fingerprint tree.
	require.ElementsMatch(t, datas, contents)
}

func TestDirectoryStore_Stop_Items(t *testing.T) {
	store := makeStore(t)

	for _, data := range [][]byte{[]byte("one"), []byte("two"), []byte("three")} {
		_, err := store.TryInsert(digestFp(t, data), data, certstore.KeepIncoming)
		require.NoError(t, err)
	}

	count := 0
	err := store.Items(func(certstore.Certificate) bool {
		count++

		return false
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestDirectoryStore_Empty_Items(t *testing.T) {
	store := makeStore(t)

	err := store.Items(func(certstore.Certificate) bool {
		t.Fatal("unexpected certificate")

		return false
	})
	require.NoError(t, err)
}

func TestDirectoryStore_Corrupted_Items(t *testing.T) {
	store := makeStore(t)

	fp := digestFp(t, []byte("valid entry"))

	dir := filepath.Join(store.dir, fp[:2])
	require.NoError(t, os.MkdirAll(dir, dirPerm))
	require.NoError(t, os.WriteFile(filepath.Join(dir, fp[2:]), []byte("garbage"), 0644))

	err := store.Items(func(certstore.Certificate) bool {
		return true
	})

	dataErr := certstore.DataError{}
	require.ErrorAs(t, err, &dataErr)
}

func TestDirectoryStore_MissingDirectory_Items(t *testing.T) {
	store := makeStore(t)

	require.NoError(t, os.RemoveAll(store.dir))

	err := store.Items(func(certstore.Certificate) bool {
		return true
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "while listing directory")
}

func TestDirectoryStore_Fingerprints(t *testing.T) {
	store := makeStore(t)

	want := make([]string, 0, 3)
	for _, data := range [][]byte{[]byte("one"), []byte("two"), []byte("three")} {
		fp := digestFp(t, data)
		want = append(want, fp)

		_, err := store.TryInsert(fp, data, certstore.KeepIncoming)
		require.NoError(t, err)
	}

	sort.Strings(want)

	var seen []string
	err := store.Fingerprints(func(fp string) bool {
		seen = append(seen, fp)

		return true
	})
	require.NoError(t, err)

	// The walk follows the lexicographic order of the tree.
	require.Equal(t, want, seen)
}

func TestDirectoryStore_Debris_Fingerprints(t *testing.T) {
	store := makeStore(t)

	data := []byte("the only real entry")
	fp := digestFp(t, data)

	_, err := store.TryInsert(fp, data, certstore.KeepIncoming)
	require.NoError(t, err)

	_, err = store.TryInsertWithSpecialName(certstore.TrustRoot,
		[]byte("anchor"), certstore.KeepIncoming)
	require.NoError(t, err)

	// Scatter the kind of noise a shared directory accumulates: leftover
	// locks and temporary files, foreign files and directories.
	shard := filepath.Join(store.dir, fp[:2])
	require.NoError(t, os.WriteFile(filepath.Join(shard, fp[2:]+lockSuffix), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(shard, ".certd-123.tmp"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(store.dir, "README"), []byte("hi"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(store.dir, "zz"), dirPerm))
	require.NoError(t, os.MkdirAll(filepath.Join(shard, "nested"), dirPerm))

	var seen []string
	err = store.Fingerprints(func(got string) bool {
		seen = append(seen, got)

		return true
	})
	require.NoError(t, err)
	require.Equal(t, []string{fp}, seen)
}

func TestDirectoryStore_Stop_Fingerprints(t *testing.T) {
	store := makeStore(t)

	for _, data := range [][]byte{[]byte("one"), []byte("two"), []byte("three")} {
		_, err := store.TryInsert(digestFp(t, data), data, certstore.KeepIncoming)
		require.NoError(t, err)
	}

	count := 0
	err := store.Fingerprints(func(string) bool {
		count++

		return false
	})
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestIsHexName(t *testing.T) {
	require.True(t, isHexName("ab", 2))
	require.True(t, isHexName("0f", 2))

	require.False(t, isHexName("ab", 3))
	require.False(t, isHexName("AB", 2))
	require.False(t, isHexName("zz", 2))
	require.False(t, isHexName("a.", 2))
}
