// Package metrics implements the §6 Metrics endpoint: the exact gauge,
// counter and histogram series spec.md names, served as Prometheus text
// format on GET /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the narrow interface the Node Loop and its collaborators
// record events against; splitting it out of the concrete Prometheus types
// keeps node/node.go callable from tests without a live registry, the same
// boundary used for node/verifier.Deps and node/operator.Machine's clock.
type Recorder interface {
	IncBlocksPreconfirmed()
	IncBlocksReanchored()
	IncBatchRecovered()
	IncBatchProposed()
	IncBatchConfirmed()
	ObserveBatchProposeTries(tries int)
	ObserveBatchBlockCount(blocks int)
	ObserveBatchBlobSize(bytes int)

	SetPreconferEthBalance(eth float64)
	SetPreconferTaikoBalance(taiko float64)
	SetPreconferL2EthBalance(eth float64)
}

// prometheusRecorder is the concrete Recorder backed by client_golang,
// registered against its own registry so GET /metrics never leaks the
// process-wide default registry's Go-runtime collectors into an otherwise
// small, spec-defined series list.
type prometheusRecorder struct {
	registry *prometheus.Registry

	preconferEthBalance   prometheus.Gauge
	preconferTaikoBalance prometheus.Gauge
	preconferL2EthBalance prometheus.Gauge

	blocksPreconfirmed prometheus.Counter
	blocksReanchored   prometheus.Counter
	batchRecovered     prometheus.Counter
	batchProposed      prometheus.Counter
	batchConfirmed     prometheus.Counter

	batchProposeTries prometheus.Histogram
	batchBlockCount   prometheus.Histogram
	batchBlobSize     prometheus.Histogram
}

// NewRecorder builds a Recorder and the http.Handler that serves its
// registry in Prometheus text format, exposing exactly the series §6 names.
func NewRecorder() (Recorder, http.Handler) {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	r := &prometheusRecorder{
		registry: reg,

		preconferEthBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "preconfer_eth_balance",
			Help: "Preconfer operator's L1 ETH balance, in ETH.",
		}),
		preconferTaikoBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "preconfer_taiko_balance",
			Help: "Preconfer operator's L1 bond-token (TAIKO) balance, in whole tokens.",
		}),
		preconferL2EthBalance: factory.NewGauge(prometheus.GaugeOpts{
			Name: "preconfer_l2_eth_balance",
			Help: "Preconfer operator's L2 ETH balance, in ETH.",
		}),

		blocksPreconfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "blocks_preconfirmed",
			Help: "Total L2 blocks preconfirmed by the Batch Manager.",
		}),
		blocksReanchored: factory.NewCounter(prometheus.CounterOpts{
			Name: "blocks_reanchored",
			Help: "Total re-anchor events triggered by the Node Loop.",
		}),
		batchRecovered: factory.NewCounter(prometheus.CounterOpts{
			Name: "batch_recovered",
			Help: "Total Verifier recovery passes that recovered a missing batch tail.",
		}),
		batchProposed: factory.NewCounter(prometheus.CounterOpts{
			Name: "batch_proposed",
			Help: "Total proposeBatch transactions sent to L1.",
		}),
		batchConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "batch_confirmed",
			Help: "Total proposeBatch transactions confirmed on L1.",
		}),

		batchProposeTries: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_propose_tries",
			Help:    "Number of send attempts a proposeBatch transaction took to confirm.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		batchBlockCount: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_block_count",
			Help:    "Number of L2 blocks included in a proposed batch.",
			Buckets: prometheus.LinearBuckets(1, 4, 16),
		}),
		batchBlobSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "batch_blob_size",
			Help:    "Compressed tx-list byte size carried by a proposed batch.",
			Buckets: prometheus.ExponentialBuckets(1024, 2, 12),
		}),
	}
	return r, promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func (r *prometheusRecorder) IncBlocksPreconfirmed() { r.blocksPreconfirmed.Inc() }
func (r *prometheusRecorder) IncBlocksReanchored()   { r.blocksReanchored.Inc() }
func (r *prometheusRecorder) IncBatchRecovered()     { r.batchRecovered.Inc() }
func (r *prometheusRecorder) IncBatchProposed()      { r.batchProposed.Inc() }
func (r *prometheusRecorder) IncBatchConfirmed()     { r.batchConfirmed.Inc() }

func (r *prometheusRecorder) ObserveBatchProposeTries(tries int) {
	r.batchProposeTries.Observe(float64(tries))
}
func (r *prometheusRecorder) ObserveBatchBlockCount(blocks int) {
	r.batchBlockCount.Observe(float64(blocks))
}
func (r *prometheusRecorder) ObserveBatchBlobSize(bytes int) {
	r.batchBlobSize.Observe(float64(bytes))
}

func (r *prometheusRecorder) SetPreconferEthBalance(eth float64)   { r.preconferEthBalance.Set(eth) }
func (r *prometheusRecorder) SetPreconferTaikoBalance(taiko float64) {
	r.preconferTaikoBalance.Set(taiko)
}
func (r *prometheusRecorder) SetPreconferL2EthBalance(eth float64) {
	r.preconferL2EthBalance.Set(eth)
}

// noopRecorder discards every event; used where a caller is built without a
// wired metrics server (e.g. unit tests constructing a Loop directly).
type noopRecorder struct{}

// Noop is a Recorder that discards everything it is given.
var Noop Recorder = noopRecorder{}

func (noopRecorder) IncBlocksPreconfirmed()           {}
func (noopRecorder) IncBlocksReanchored()             {}
func (noopRecorder) IncBatchRecovered()               {}
func (noopRecorder) IncBatchProposed()                {}
func (noopRecorder) IncBatchConfirmed()               {}
func (noopRecorder) ObserveBatchProposeTries(int)     {}
func (noopRecorder) ObserveBatchBlockCount(int)       {}
func (noopRecorder) ObserveBatchBlobSize(int)         {}
func (noopRecorder) SetPreconferEthBalance(float64)   {}
func (noopRecorder) SetPreconferTaikoBalance(float64) {}
func (noopRecorder) SetPreconferL2EthBalance(float64) {}
