package cmd

import (
	"fmt"
	"os"

	"github.com/mezonai/chainstore/block"
	"github.com/mezonai/chainstore/jsonx"
	"github.com/mezonai/chainstore/logx"
	"github.com/mezonai/chainstore/store"
	"github.com/spf13/cobra"
)

// BlockView is the JSON form of a block used for output and import files
type BlockView struct {
	Hash     string   `json:"hash,omitempty"`
	PrevHash string   `json:"prev_hash"`
	Slot     uint64   `json:"slot"`
	TxHashes []string `json:"tx_hashes"`
	Metadata string   `json:"metadata"`
}

func toBlockView(hash block.Digest, b *block.Block) BlockView {
	txs := make([]string, len(b.TxHashes))
	for i, tx := range b.TxHashes {
		txs[i] = tx.String()
	}
	return BlockView{
		Hash:     hash.String(),
		PrevHash: b.PrevHash.String(),
		Slot:     b.Slot,
		TxHashes: txs,
		Metadata: b.Metadata,
	}
}

// toBlock parses a view back into a block. A hash field, if present, must
// match the block content.
func (v BlockView) toBlock() (*block.Block, error) {
	prev, err := block.ParseDigest(v.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("prev_hash: %w", err)
	}
	txs := make([]block.Digest, len(v.TxHashes))
	for i, raw := range v.TxHashes {
		if txs[i], err = block.ParseDigest(raw); err != nil {
			return nil, fmt.Errorf("tx_hashes[%d]: %w", i, err)
		}
	}
	b := &block.Block{PrevHash: prev, Slot: v.Slot, TxHashes: txs, Metadata: v.Metadata}
	if v.Hash != "" {
		want, err := block.ParseDigest(v.Hash)
		if err != nil {
			return nil, fmt.Errorf("hash: %w", err)
		}
		got, err := b.Hash()
		if err != nil {
			return nil, err
		}
		if got != want {
			return nil, fmt.Errorf("hash %s does not match block content %s", want, got)
		}
	}
	return b, nil
}

func readBlockFile(path string) ([]*block.Block, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var views []BlockView
	if err := jsonx.Unmarshal(data, &views); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	blocks := make([]*block.Block, len(views))
	for i, v := range views {
		if blocks[i], err = v.toBlock(); err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
	}
	return blocks, nil
}

func parseDigests(args []string) ([]block.Digest, error) {
	out := make([]block.Digest, len(args))
	for i, arg := range args {
		d, err := block.ParseDigest(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid hash %q: %w", arg, err)
		}
		out[i] = d
	}
	return out, nil
}

// withBlockStore opens the configured store for the duration of fn
func withBlockStore(fn func(bs store.BlockStore) error) error {
	bs, _, closeFn, err := openStores()
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(bs)
}

func printEntry(e *store.Entry) error {
	if e == nil {
		return printJSON(nil)
	}
	return printJSON(toBlockView(e.Hash, e.Block))
}

var blockCmd = &cobra.Command{
	Use:   "block",
	Short: "Query and import blocks",
	Long: `Blocks are keyed by the digest of their encoding. first, last, lt and gt
walk keys in digest byte order, which is unrelated to slot order.`,
}

var blockGetCmd = &cobra.Command{
	Use:   "get <hash>...",
	Short: "Print blocks by hash; absent blocks print as null",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hashes, err := parseDigests(args)
		if err != nil {
			return err
		}
		return withBlockStore(func(bs store.BlockStore) error {
			blocks, err := bs.Get(hashes)
			if err != nil {
				return err
			}
			out := make([]*BlockView, len(blocks))
			for i, b := range blocks {
				if b != nil {
					v := toBlockView(hashes[i], b)
					out[i] = &v
				}
			}
			return printJSON(out)
		})
	},
}

var blockContainsCmd = &cobra.Command{
	Use:   "contains <hash>",
	Short: "Report whether a block is stored",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hashes, err := parseDigests(args)
		if err != nil {
			return err
		}
		return withBlockStore(func(bs store.BlockStore) error {
			ok, err := bs.Contains(hashes[0])
			if err != nil {
				return err
			}
			return printJSON(map[string]bool{"contains": ok})
		})
	},
}

var blockFirstCmd = &cobra.Command{
	Use:   "first",
	Short: "Print the block with the smallest hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBlockStore(func(bs store.BlockStore) error {
			e, err := bs.GetFirst()
			if err != nil {
				return err
			}
			return printEntry(e)
		})
	},
}

var blockLastCmd = &cobra.Command{
	Use:   "last",
	Short: "Print the block with the largest hash",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBlockStore(func(bs store.BlockStore) error {
			e, err := bs.GetLast()
			if err != nil {
				return err
			}
			return printEntry(e)
		})
	},
}

var blockLtCmd = &cobra.Command{
	Use:   "lt <hash>",
	Short: "Print the block with the largest hash below the given one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hashes, err := parseDigests(args)
		if err != nil {
			return err
		}
		return withBlockStore(func(bs store.BlockStore) error {
			e, err := bs.GetLt(hashes[0])
			if err != nil {
				return err
			}
			return printEntry(e)
		})
	},
}

var blockGtCmd = &cobra.Command{
	Use:   "gt <hash>",
	Short: "Print the block with the smallest hash above the given one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hashes, err := parseDigests(args)
		if err != nil {
			return err
		}
		return withBlockStore(func(bs store.BlockStore) error {
			e, err := bs.GetGt(hashes[0])
			if err != nil {
				return err
			}
			return printEntry(e)
		})
	},
}

var blockImportCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Insert the blocks of a JSON array file in one batch",
	Long: `Insert the blocks of a JSON array file in one batch.
Examples:
  # Import blocks into a bolt store
  chainstore block import blocks.json -t bolt -d ./data/bolt
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blocks, err := readBlockFile(args[0])
		if err != nil {
			return err
		}
		return withBlockStore(func(bs store.BlockStore) error {
			if err := bs.Insert(blocks); err != nil {
				return err
			}
			logx.Info("CMD", "Imported", len(blocks), "blocks from", args[0])
			hashes := make([]string, len(blocks))
			for i, b := range blocks {
				h, err := b.Hash()
				if err != nil {
					return err
				}
				hashes[i] = h.String()
			}
			return printJSON(map[string]interface{}{"imported": len(blocks), "hashes": hashes})
		})
	},
}

func init() {
	rootCmd.AddCommand(blockCmd)
	blockCmd.AddCommand(blockGetCmd, blockContainsCmd, blockFirstCmd, blockLastCmd, blockLtCmd, blockGtCmd, blockImportCmd)
}
