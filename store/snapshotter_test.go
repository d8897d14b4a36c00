package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mezonai/chainstore/db"
	"github.com/mezonai/chainstore/merkle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendLeaves(from, to int) func(tree *merkle.Tree) error {
	return func(tree *merkle.Tree) error {
		for i := from; i < to; i++ {
			tree.Append(leafAt(i))
		}
		return nil
	}
}

func TestSnapshotter_FlushOnlyWhenDirty(t *testing.T) {
	ts := NewTreeStore(db.NewMemoryProvider())
	s := NewSnapshotter(ts, DefaultTreeName, merkle.NewTree(testDepth, 2, hasher))

	require.NoError(t, s.Flush())
	_, err := ts.Load(DefaultTreeName, hasher)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)

	require.NoError(t, s.Update(appendLeaves(0, 3)))
	require.NoError(t, s.Flush())

	got, err := ts.Load(DefaultTreeName, hasher)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Size())

	// a clean snapshotter leaves the stored copy alone
	require.NoError(t, ts.Delete(DefaultTreeName))
	require.NoError(t, s.Flush())
	_, err = ts.Load(DefaultTreeName, hasher)
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSnapshotter_UpdateError(t *testing.T) {
	ts := NewTreeStore(db.NewMemoryProvider())
	s := NewSnapshotter(ts, DefaultTreeName, merkle.NewTree(testDepth, 2, hasher))

	err := s.Update(func(tree *merkle.Tree) error {
		return tree.Witness(0)
	})
	assert.ErrorIs(t, err, merkle.ErrEmptyTree)
}

func TestSnapshotter_OpenResumesSavedTree(t *testing.T) {
	ts := NewTreeStore(db.NewMemoryProvider())

	s, err := OpenSnapshotter(ts, DefaultTreeName, testDepth, 3, hasher)
	require.NoError(t, err)
	require.NoError(t, s.Update(func(tree *merkle.Tree) error {
		_ = appendLeaves(0, 6)(tree)
		tree.Checkpoint()
		return tree.Witness(5)
	}))
	var want merkle.Node
	s.View(func(tree *merkle.Tree) { want, _ = tree.Root(0) })
	require.NoError(t, s.Stop())

	resumed, err := OpenSnapshotter(ts, DefaultTreeName, testDepth, 3, hasher)
	require.NoError(t, err)
	resumed.View(func(tree *merkle.Tree) {
		root, _ := tree.Root(0)
		assert.Equal(t, want, root)
		assert.Equal(t, []merkle.Position{5}, tree.WitnessedPositions())
		assert.Len(t, tree.Checkpoints(), 1)
	})

	_, err = OpenSnapshotter(ts, DefaultTreeName, testDepth+1, 3, hasher)
	assert.Error(t, err)
}

func TestSnapshotter_PeriodicFlush(t *testing.T) {
	ts := NewTreeStore(db.NewMemoryProvider())
	s := NewSnapshotter(ts, DefaultTreeName, merkle.NewTree(testDepth, 2, hasher))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx, 10*time.Millisecond)
	s.Start(ctx, 10*time.Millisecond)

	require.NoError(t, s.Update(appendLeaves(0, 4)))
	require.Eventually(t, func() bool {
		got, err := ts.Load(DefaultTreeName, hasher)
		return err == nil && got.Size() == 4
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, s.Update(appendLeaves(4, 5)))
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop())

	got, err := ts.Load(DefaultTreeName, hasher)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), got.Size())
}

// gatedProvider blocks the first Put until release is closed.
type gatedProvider struct {
	db.DatabaseProvider
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (p *gatedProvider) Put(key, value []byte) error {
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.started)
		<-p.release
	}
	return p.DatabaseProvider.Put(key, value)
}

func TestSnapshotter_SlowFlushDoesNotOverwriteNewerSnapshot(t *testing.T) {
	provider := &gatedProvider{
		DatabaseProvider: db.NewMemoryProvider(),
		started:          make(chan struct{}),
		release:          make(chan struct{}),
	}
	ts := NewTreeStore(provider)
	s := NewSnapshotter(ts, DefaultTreeName, merkle.NewTree(testDepth, 2, hasher))

	require.NoError(t, s.Update(appendLeaves(0, 1)))
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- s.Flush()
	}()
	<-provider.started

	require.NoError(t, s.Update(appendLeaves(1, 2)))
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- s.Flush()
	}()
	time.Sleep(20 * time.Millisecond)
	close(provider.release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	require.NoError(t, s.Flush())

	var live uint64
	s.View(func(tree *merkle.Tree) { live = tree.Size() })
	got, err := ts.Load(DefaultTreeName, hasher)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), live)
	assert.Equal(t, live, got.Size())
}

func TestBridgeCount(t *testing.T) {
	tree := merkle.NewTree(testDepth, 2, hasher)
	assert.Equal(t, 0, bridgeCount(tree))

	require.NoError(t, appendLeaves(0, 3)(tree))
	assert.Equal(t, 1, bridgeCount(tree))

	require.NoError(t, tree.Witness(2))
	require.NoError(t, appendLeaves(3, 5)(tree))
	assert.Equal(t, len(tree.PriorBridges())+1, bridgeCount(tree))
	assert.Equal(t, 2, bridgeCount(tree))
}
