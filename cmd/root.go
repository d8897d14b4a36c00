package cmd

import (
	"fmt"
	"net/http"
	"os"

	"github.com/mezonai/chainstore/config"
	"github.com/mezonai/chainstore/exception"
	"github.com/mezonai/chainstore/jsonx"
	"github.com/mezonai/chainstore/logx"
	"github.com/mezonai/chainstore/monitoring"
	"github.com/mezonai/chainstore/store"
	"github.com/spf13/cobra"
)

type RootConfig struct {
	StoreConfigPath string
	TreeConfigPath  string
	StoreType       string
	DataDir         string
	MetricsAddr     string
	Debug           bool
	LogStderr       bool
}

var rootConfig RootConfig

var rootCmd = &cobra.Command{
	Use:   "chainstore",
	Short: "Content-addressed block store and commitment tree snapshots",
	Long: `Command line interface for querying a chainstore database and
inspecting the commitment tree snapshots stored next to it.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if rootConfig.LogStderr {
			logx.SetOutput(os.Stderr)
		}
		logx.SetDebug(rootConfig.Debug)
		if rootConfig.MetricsAddr != "" {
			startMetricsServer(rootConfig.MetricsAddr)
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&rootConfig.StoreConfigPath, "config", "c", "", "store config file (yaml); overrides --type and --data-dir")
	flags.StringVar(&rootConfig.TreeConfigPath, "tree-config", "", "tree parameters file (ini)")
	flags.StringVarP(&rootConfig.StoreType, "type", "t", string(store.LevelDBStoreType), "store type: leveldb, bolt, memory, redis or rocksdb")
	flags.StringVarP(&rootConfig.DataDir, "data-dir", "d", "./data/chainstore", "database directory")
	flags.StringVar(&rootConfig.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")
	flags.BoolVar(&rootConfig.Debug, "debug", false, "enable debug logging")
	flags.BoolVar(&rootConfig.LogStderr, "log-stderr", false, "log to stderr instead of the log file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", "Command execution failed:", err)
		os.Exit(1)
	}
}

func storeConfig() (*store.StoreConfig, error) {
	if rootConfig.StoreConfigPath != "" {
		return config.LoadStoreConfig(rootConfig.StoreConfigPath)
	}
	cfg := store.DefaultStoreConfig(rootConfig.DataDir)
	cfg.Type = store.StoreType(rootConfig.StoreType)
	return cfg, nil
}

func treeConfig() (*config.TreeConfig, error) {
	if rootConfig.TreeConfigPath == "" {
		return config.DefaultTreeConfig(), nil
	}
	return config.LoadTreeConfig(rootConfig.TreeConfigPath)
}

// openStores opens the block and tree stores over one provider. The returned
// close func releases the provider.
func openStores() (store.BlockStore, *store.TreeStore, func(), error) {
	cfg, err := storeConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load store config: %w", err)
	}
	blocks, trees, err := store.CreateStore(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	logx.Info("CMD", "Opened", cfg.Type, "store at", cfg.Directory)
	closeFn := func() {
		if err := blocks.Close(); err != nil {
			logx.Error("CMD", "Failed to close store:", err)
		}
	}
	return blocks, trees, closeFn, nil
}

func startMetricsServer(addr string) {
	monitoring.InitMetrics()
	mux := http.NewServeMux()
	monitoring.RegisterMetrics(mux)
	exception.SafeGoWithPanic("MetricsServer", func() {
		logx.Info("CMD", "Serving metrics on", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logx.Error("CMD", "Metrics server stopped:", err)
		}
	})
}

func printJSON(v interface{}) error {
	return jsonx.NewEncoder(os.Stdout).Encode(v)
}
