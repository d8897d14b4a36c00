package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/mezonai/chainstore/logx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StoreOp string

var (
	OpInsert   StoreOp = "insert"
	OpGet      StoreOp = "get"
	OpContains StoreOp = "contains"
	OpFirst    StoreOp = "first"
	OpLast     StoreOp = "last"
	OpLt       StoreOp = "lt"
	OpGt       StoreOp = "gt"
)

type storePromMetrics struct {
	upUnixSeconds     prometheus.Gauge
	blocksInserted    prometheus.Counter
	blockBytes        prometheus.Histogram
	storeOpDuration   *prometheus.HistogramVec
	storeOpErrors     *prometheus.CounterVec
	treeSnapshotBytes prometheus.Gauge
	treeSnapshotTime  prometheus.Histogram
	treeSnapshotCount prometheus.Counter
	treeBridges       prometheus.Gauge
	panicCount        prometheus.Counter
}

func newStorePromMetrics() *storePromMetrics {
	return &storePromMetrics{
		upUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chainstore_up_timestamp_unix_seconds",
				Help: "Unix timestamp at which the store process started",
			},
		),
		blocksInserted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chainstore_blocks_inserted_total",
				Help: "The total number of block records written, including idempotent re-inserts",
			},
		),
		blockBytes: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "chainstore_block_size_bytes",
				Help:    "Serialized block record size in bytes",
				Buckets: prometheus.ExponentialBuckets(64, 2, 12),
			},
		),
		storeOpDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "chainstore_block_store_op_seconds",
				Help: "Latency of block store operations",
			},
			[]string{"op"},
		),
		storeOpErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chainstore_block_store_op_errors_total",
				Help: "The total number of failed block store operations",
			},
			[]string{"op", "kind"},
		),
		treeSnapshotBytes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chainstore_tree_snapshot_bytes",
				Help: "Size of the most recently persisted commitment tree snapshot",
			},
		),
		treeSnapshotTime: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name: "chainstore_tree_snapshot_seconds",
				Help: "Duration of encoding and writing a commitment tree snapshot",
			},
		),
		treeSnapshotCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chainstore_tree_snapshots_total",
				Help: "The total number of persisted commitment tree snapshots",
			},
		),
		treeBridges: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "chainstore_tree_bridges",
				Help: "Number of bridges held by the commitment tree at the last snapshot",
			},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "chainstore_panic_total",
				Help: "The total number of recovered panics in background goroutines",
			},
		),
	}
}

var (
	storeMetrics *storePromMetrics
	initOnce     sync.Once
)

// InitMetrics registers the collectors. Record functions call it lazily so
// library users that never expose metrics still work.
func InitMetrics() {
	initOnce.Do(func() {
		storeMetrics = newStorePromMetrics()
		storeMetrics.upUnixSeconds.SetToCurrentTime()
	})
}

func metrics() *storePromMetrics {
	InitMetrics()
	return storeMetrics
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("MONITORING", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func RecordBlocksInserted(count int) {
	metrics().blocksInserted.Add(float64(count))
}

func RecordBlockSizeBytes(sizeBytes int) {
	metrics().blockBytes.Observe(float64(sizeBytes))
}

func RecordStoreOp(op StoreOp, started time.Time) {
	metrics().storeOpDuration.With(prometheus.Labels{
		"op": string(op),
	}).Observe(time.Since(started).Seconds())
}

func RecordStoreError(op StoreOp, kind string) {
	metrics().storeOpErrors.With(prometheus.Labels{
		"op":   string(op),
		"kind": kind,
	}).Inc()
}

func RecordTreeSnapshot(sizeBytes int, bridges int, duration time.Duration) {
	m := metrics()
	m.treeSnapshotBytes.Set(float64(sizeBytes))
	m.treeBridges.Set(float64(bridges))
	m.treeSnapshotTime.Observe(duration.Seconds())
	m.treeSnapshotCount.Inc()
}

func IncreasePanicCount() {
	metrics().panicCount.Inc()
}
