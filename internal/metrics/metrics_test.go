package metrics

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorderExposesEverySpecNamedSeries(t *testing.T) {
	rec, handler := NewRecorder()

	rec.SetPreconferEthBalance(1.5)
	rec.SetPreconferTaikoBalance(2.5)
	rec.SetPreconferL2EthBalance(3.5)
	rec.IncBlocksPreconfirmed()
	rec.IncBlocksReanchored()
	rec.IncBatchRecovered()
	rec.IncBatchProposed()
	rec.IncBatchConfirmed()
	rec.ObserveBatchProposeTries(1)
	rec.ObserveBatchBlockCount(4)
	rec.ObserveBatchBlobSize(2048)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, 200, w.Code)
	body := w.Body.String()
	for _, series := range []string{
		"preconfer_eth_balance",
		"preconfer_taiko_balance",
		"preconfer_l2_eth_balance",
		"blocks_preconfirmed",
		"blocks_reanchored",
		"batch_recovered",
		"batch_proposed",
		"batch_confirmed",
		"batch_propose_tries",
		"batch_block_count",
		"batch_blob_size",
	} {
		require.Contains(t, body, series, "missing series %q", series)
	}
}

func TestNoopRecorderNeverPanics(t *testing.T) {
	require.NotPanics(t, func() {
		Noop.IncBlocksPreconfirmed()
		Noop.IncBlocksReanchored()
		Noop.IncBatchRecovered()
		Noop.IncBatchProposed()
		Noop.IncBatchConfirmed()
		Noop.ObserveBatchProposeTries(1)
		Noop.ObserveBatchBlockCount(1)
		Noop.ObserveBatchBlobSize(1)
		Noop.SetPreconferEthBalance(1)
		Noop.SetPreconferTaikoBalance(1)
		Noop.SetPreconferL2EthBalance(1)
	})
}
