package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "gifcarver"
	subsystem = "recovery"
)

var (
	blocksScanned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "blocks_scanned_total",
			Help:      "Blocks read by the signature sweep.",
		},
	)

	shortReads = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "short_reads_total",
			Help:      "Block reads that failed or returned fewer bytes than the block size.",
		},
	)

	signatureHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "signature_hits_total",
			Help:      "Blocks starting with a known signature. Broken down by signature.",
		},
		[]string{"signature"},
	)

	resolverMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resolver_misses_total",
			Help:      "Hits abandoned because the owner or the extents could not be resolved. Broken down by stage.",
		},
		[]string{"stage"},
	)

	filesRecovered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "files_recovered_total",
			Help:      "Recovery plans written and applied.",
		},
	)

	bytesCopied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "bytes_copied_total",
			Help:      "Bytes copied from the device into recovered files.",
		},
	)
)

var register sync.Once
var Registry = prometheus.NewRegistry()

// Register registers metrics. This is always called only once.
func Register() {
	register.Do(func() {
		Registry.MustRegister(blocksScanned, shortReads, signatureHits, resolverMisses, filesRecovered, bytesCopied)
	})
}

// Export writes the registry in text format to path.
func Export(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}

func BlockScanned() {
	blocksScanned.Inc()
}

func ShortRead() {
	shortReads.Inc()
}

func SignatureHit(signature string) {
	signatureHits.WithLabelValues(signature).Inc()
}

func ResolverMiss(stage string) {
	resolverMisses.WithLabelValues(stage).Inc()
}

func FileRecovered() {
	filesRecovered.Inc()
}

func BytesCopied(n int64) {
	bytesCopied.Add(float64(n))
}
