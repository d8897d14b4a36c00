package cmd

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/mezonai/chainstore/config"
	"github.com/mezonai/chainstore/logx"
	"github.com/mezonai/chainstore/merkle"
	"github.com/mezonai/chainstore/store"
	"github.com/spf13/cobra"
)

type CheckpointView struct {
	BridgesLen  int      `json:"bridges_len"`
	IsWitnessed bool     `json:"is_witnessed"`
	Witnessed   []uint64 `json:"witnessed"`
	Forgotten   []uint64 `json:"forgotten"`
}

type WitnessView struct {
	Position  uint64 `json:"position"`
	Leaf      string `json:"leaf"`
	PathValid bool   `json:"path_valid"`
}

// TreeView summarizes a commitment tree for inspection output
type TreeView struct {
	Name           string           `json:"name"`
	Depth          uint8            `json:"depth"`
	Size           uint64           `json:"size"`
	Root           string           `json:"root"`
	PriorBridges   int              `json:"prior_bridges"`
	MaxCheckpoints int              `json:"max_checkpoints"`
	Checkpoints    []CheckpointView `json:"checkpoints"`
	Witnessed      []WitnessView    `json:"witnessed"`
}

func hexNode(n merkle.Node) string {
	return hex.EncodeToString(n[:])
}

func positions(ps []merkle.Position) []uint64 {
	out := make([]uint64, len(ps))
	for i, p := range ps {
		out[i] = uint64(p)
	}
	return out
}

// inspectTree builds the view of t and checks every witnessed leaf's
// authentication path against the current root.
func inspectTree(name string, t *merkle.Tree) TreeView {
	root, _ := t.Root(0)
	view := TreeView{
		Name:           name,
		Depth:          t.Depth(),
		Size:           t.Size(),
		Root:           hexNode(root),
		PriorBridges:   len(t.PriorBridges()),
		MaxCheckpoints: t.MaxCheckpoints(),
		Checkpoints:    []CheckpointView{},
		Witnessed:      []WitnessView{},
	}
	for _, c := range t.Checkpoints() {
		view.Checkpoints = append(view.Checkpoints, CheckpointView{
			BridgesLen:  c.BridgesLen(),
			IsWitnessed: c.IsWitnessed(),
			Witnessed:   positions(c.Witnessed()),
			Forgotten:   positions(c.Forgotten()),
		})
	}
	for _, pos := range t.WitnessedPositions() {
		leaf, _ := t.WitnessedLeaf(pos)
		path, ok := t.AuthenticationPath(pos, root)
		view.Witnessed = append(view.Witnessed, WitnessView{
			Position:  uint64(pos),
			Leaf:      hexNode(leaf),
			PathValid: ok && merkle.VerifyPath(t.Hasher(), t.Depth(), pos, leaf, path, root),
		})
	}
	return view
}

func snapshotName(args []string, tc *config.TreeConfig) string {
	if len(args) > 0 {
		return args[0]
	}
	return tc.SnapshotName
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Inspect commitment tree snapshots",
}

var treeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tree snapshots",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, trees, closeFn, err := openStores()
		if err != nil {
			return err
		}
		defer closeFn()
		names, err := trees.Names()
		if err != nil {
			return err
		}
		return printJSON(names)
	},
}

var treeInspectCmd = &cobra.Command{
	Use:   "inspect [name]",
	Short: "Decode a tree snapshot and print its structure",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := treeConfig()
		if err != nil {
			return err
		}
		_, trees, closeFn, err := openStores()
		if err != nil {
			return err
		}
		defer closeFn()

		name := snapshotName(args, tc)
		t, err := trees.Load(name, merkle.NewBlake2bHasher())
		if err != nil {
			return fmt.Errorf("failed to load tree %s: %w", name, err)
		}
		return printJSON(inspectTree(name, t))
	},
}

type DemoConfig struct {
	Leaves       int
	WitnessEvery int
	Batch        int
}

var demoConfig DemoConfig

var treeDemoCmd = &cobra.Command{
	Use:   "demo [name]",
	Short: "Append generated leaves to a tree snapshot",
	Long: `Append generated leaves to the named tree, witnessing every n-th leaf and
checkpointing after each batch, then flush the snapshot and print it.
Examples:
  # Grow the default tree by 32 leaves, witnessing every 5th
  chainstore tree demo --leaves 32 --witness-every 5
`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := treeConfig()
		if err != nil {
			return err
		}
		_, trees, closeFn, err := openStores()
		if err != nil {
			return err
		}
		defer closeFn()

		name := snapshotName(args, tc)
		view, err := runDemo(cmd.Context(), trees, name, tc, demoConfig)
		if err != nil {
			return err
		}
		return printJSON(view)
	},
}

func demoLeaf(h *merkle.Blake2bHasher, i uint64) merkle.Node {
	return h.Leaf([]byte(fmt.Sprintf("demo-leaf-%d", i)))
}

func runDemo(ctx context.Context, trees *store.TreeStore, name string, tc *config.TreeConfig, dc DemoConfig) (*TreeView, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if dc.Batch <= 0 {
		return nil, fmt.Errorf("batch must be positive")
	}
	hasher := merkle.NewBlake2bHasher()
	snap, err := store.OpenSnapshotter(trees, name, tc.TreeDepth(), tc.MaxCheckpoints, hasher)
	if err != nil {
		return nil, err
	}
	snap.Start(ctx, tc.SnapshotInterval())

	for done := 0; done < dc.Leaves; done += dc.Batch {
		n := min(dc.Batch, dc.Leaves-done)
		err := snap.Update(func(t *merkle.Tree) error {
			for i := 0; i < n; i++ {
				if !t.Append(demoLeaf(hasher, t.Size())) {
					return fmt.Errorf("tree is full at %d leaves", t.Size())
				}
				pos, _ := t.CurrentPosition()
				if dc.WitnessEvery > 0 && uint64(pos)%uint64(dc.WitnessEvery) == 0 {
					if err := t.Witness(pos); err != nil {
						return err
					}
				}
			}
			t.Checkpoint()
			if merged := t.GarbageCollect(); merged > 0 {
				logx.Debug("CMD", "Garbage collected", merged, "bridges")
			}
			return nil
		})
		if err != nil {
			_ = snap.Stop()
			return nil, err
		}
	}

	if err := snap.Stop(); err != nil {
		return nil, err
	}
	var view TreeView
	snap.View(func(t *merkle.Tree) { view = inspectTree(name, t) })
	return &view, nil
}

func init() {
	rootCmd.AddCommand(treeCmd)
	treeCmd.AddCommand(treeListCmd, treeInspectCmd, treeDemoCmd)
	treeDemoCmd.Flags().IntVarP(&demoConfig.Leaves, "leaves", "n", 16, "number of leaves to append")
	treeDemoCmd.Flags().IntVarP(&demoConfig.WitnessEvery, "witness-every", "w", 4, "witness every n-th position (0 disables)")
	treeDemoCmd.Flags().IntVarP(&demoConfig.Batch, "batch", "b", 8, "leaves appended between checkpoints")
}
