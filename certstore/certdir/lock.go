package certdir

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.dedis.ch/certd/certstore"
	"golang.org/x/xerrors"
)

// lockSuffix is appended to the entry path to name its lock file.
const lockSuffix = ".lock"

const lockPerm = 0644

func lockPath(path string) string {
	return path + lockSuffix
}

// lockTable serializes the writers of each entry. The first layer is an
// in-process gate per entry so that goroutines of this process exclude each
// other without touching the filesystem, the second is an advisory lock on a
// file next to the entry so that writers of independent processes exclude
// each other as well.
type lockTable struct {
	sync.Mutex
	gates  map[string]chan struct{}
	poll   time.Duration
	logger zerolog.Logger
}

func newLockTable(poll time.Duration, logger zerolog.Logger) *lockTable {
	return &lockTable{
		gates:  make(map[string]chan struct{}),
		poll:   poll,
		logger: logger,
	}
}

func (t *lockTable) gate(path string) chan struct{} {
	t.Lock()
	defer t.Unlock()

	gate, ok := t.gates[path]
	if !ok {
		gate = make(chan struct{}, 1)
		t.gates[path] = gate
	}

	return gate
}

// acquire takes the write lock of the entry. When blocking, it waits on both
// layers until the context is done, otherwise it gives up right away with
// ErrWouldBlock.
func (t *lockTable) acquire(ctx context.Context, path string, blocking bool) (*lease, error) {
	gate := t.gate(path)

	if blocking {
		select {
		case gate <- struct{}{}:
		case <-ctx.Done():
			return nil, xerrors.Errorf("while waiting for entry lock: %w", ctx.Err())
		}
	} else {
		select {
		case gate <- struct{}{}:
		default:
			return nil, certstore.ErrWouldBlock
		}
	}

	lock, err := t.lockFile(ctx, path, blocking)
	if err != nil {
		<-gate

		return nil, err
	}

	held := &lease{
		table: t,
		gate:  gate,
		lock:  lock,
	}

	return held, nil
}

// lockFile takes the advisory lock of the entry lock file, retrying at the
// poll interval while another process holds it.
func (t *lockTable) lockFile(ctx context.Context, path string, blocking bool) (*fileLock, error) {
	name := lockPath(path)

	for {
		lock, ok, err := tryLockFile(name)
		if err != nil {
			return nil, xerrors.Errorf("while locking %q: %v", name, err)
		}

		if ok {
			return lock, nil
		}

		if !blocking {
			return nil, certstore.ErrWouldBlock
		}

		select {
		case <-ctx.Done():
			return nil, xerrors.Errorf("while waiting for entry lock: %w", ctx.Err())
		case <-time.After(t.poll):
		}
	}
}

// lease is a held entry lock. Releasing it removes the lock file and opens
// the in-process gate. It is safe to release a lease more than once.
type lease struct {
	table    *lockTable
	gate     chan struct{}
	lock     *fileLock
	released bool
}

func (l *lease) release() {
	if l.released {
		return
	}

	l.released = true

	err := l.lock.unlock()
	if err != nil {
		l.table.logger.Warn().Err(err).Msg("failed to release entry lock")
	}

	<-l.gate
}
