package keyindex

import (
	"sort"
	"sync"

	"go.dedis.ch/certd/certstore"
)

// InMemoryLookup is a key ID index that keeps the associations in memory.
//
// - implements keyindex.Lookup
type InMemoryLookup struct {
	sync.Mutex
	ids map[uint64]map[string]struct{}
}

// NewInMemoryLookup returns a new empty index.
func NewInMemoryLookup() *InMemoryLookup {
	return &InMemoryLookup{
		ids: make(map[uint64]map[string]struct{}),
	}
}

// Record implements keyindex.Lookup. It adds the fingerprint to the
// candidate set of every key ID.
func (l *InMemoryLookup) Record(fp string, keyIDs []uint64) error {
	fp, err := certstore.ValidateFingerprint(fp)
	if err != nil {
		return err
	}

	l.Lock()
	defer l.Unlock()

	for _, id := range keyIDs {
		fps, ok := l.ids[id]
		if !ok {
			fps = make(map[string]struct{})
			l.ids[id] = fps
		}

		fps[fp] = struct{}{}
	}

	return nil
}

// Get implements keyindex.Lookup. It returns the candidate fingerprints of
// the key ID.
func (l *InMemoryLookup) Get(keyID uint64) ([]string, error) {
	l.Lock()
	defer l.Unlock()

	fps := l.ids[keyID]
	if len(fps) == 0 {
		return nil, nil
	}

	res := make([]string, 0, len(fps))
	for fp := range fps {
		res = append(res, fp)
	}

	sort.Strings(res)

	return res, nil
}
