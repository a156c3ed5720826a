package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordWatchlistOp(t *testing.T) {
	ok := WatchlistOperations.WithLabelValues("local", "add", OutcomeOK)
	failed := WatchlistOperations.WithLabelValues("remote", "add", OutcomeError)
	okBefore := testutil.ToFloat64(ok)
	failedBefore := testutil.ToFloat64(failed)

	RecordWatchlistOp("local", "add", nil)
	RecordWatchlistOp("remote", "add", errors.New("unavailable"))

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.CollectAndCount(HTTPRequestDuration)
	RecordHTTPRequest("GET", "/api/v1/catalog/trending", 200, 15*time.Millisecond)
	RecordHTTPRequest("GET", "/api/v1/catalog/trending", 200, 5*time.Millisecond)

	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), before)
	assert.GreaterOrEqual(t, testutil.CollectAndCount(HTTPRequestDuration), 1)
}
