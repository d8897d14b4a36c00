package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mezonai/chainstore/errors"
	"github.com/mezonai/chainstore/exception"
	"github.com/mezonai/chainstore/logx"
	"github.com/mezonai/chainstore/merkle"
	"github.com/mezonai/chainstore/monitoring"
)

// Snapshotter owns a live commitment tree and persists it through a TreeStore.
// All access to the tree goes through Update and View.
type Snapshotter struct {
	store *TreeStore
	name  string

	mu    sync.Mutex
	tree  *merkle.Tree
	dirty bool

	// flushMu orders saves so an older clone never lands after a newer one
	flushMu sync.Mutex

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSnapshotter(store *TreeStore, name string, tree *merkle.Tree) *Snapshotter {
	return &Snapshotter{store: store, name: name, tree: tree}
}

// OpenSnapshotter resumes the tree saved under name, or starts an empty one
// when no snapshot exists yet.
func OpenSnapshotter(store *TreeStore, name string, depth uint8, maxCheckpoints int, hasher merkle.Hasher) (*Snapshotter, error) {
	tree, err := store.LoadDepth(name, depth, hasher)
	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		logx.Info("SNAPSHOT", "No snapshot for", name, ", starting empty tree")
		tree = merkle.NewTree(depth, maxCheckpoints, hasher)
	case err != nil:
		return nil, fmt.Errorf("failed to load tree %s: %w", name, err)
	default:
		logx.Info("SNAPSHOT", "Resumed tree", name, "with", tree.Size(), "leaves")
	}
	return NewSnapshotter(store, name, tree), nil
}

// Update runs fn with exclusive access to the tree and marks it for the next flush.
func (s *Snapshotter) Update(fn func(t *merkle.Tree) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dirty = true
	return fn(s.tree)
}

// View runs fn with exclusive access to the tree. fn must not mutate it.
func (s *Snapshotter) View(fn func(t *merkle.Tree)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.tree)
}

// Flush saves the tree if it changed since the last successful flush.
// Encoding runs on a clone so updates are not blocked by the write; concurrent
// flushes run one at a time.
func (s *Snapshotter) Flush() error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.tree.Clone()
	s.dirty = false
	s.mu.Unlock()

	started := time.Now()
	size, err := s.store.save(s.name, snapshot)
	if err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	monitoring.RecordTreeSnapshot(size, bridgeCount(snapshot), time.Since(started))
	logx.Debug("SNAPSHOT", "Flushed tree", s.name, "at size", snapshot.Size())
	return nil
}

func bridgeCount(t *merkle.Tree) int {
	n := len(t.PriorBridges())
	if t.CurrentBridge() != nil {
		n++
	}
	return n
}

// Start flushes every interval until ctx is done or Stop is called.
// Calling Start on a running snapshotter is a no-op.
func (s *Snapshotter) Start(ctx context.Context, interval time.Duration) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	exception.SafeGo("TreeSnapshotter", func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Flush(); err != nil {
					logx.Error("SNAPSHOT", "Periodic flush failed:", err)
				}
			}
		}
	}, done)
	logx.Info("SNAPSHOT", "Started snapshotter for", s.name, "every", interval)
}

// Stop ends the periodic loop, if any, and flushes once more.
func (s *Snapshotter) Stop() error {
	s.loopMu.Lock()
	if s.cancel != nil {
		s.cancel()
		<-s.done
		s.cancel = nil
		s.done = nil
	}
	s.loopMu.Unlock()
	return s.Flush()
}
