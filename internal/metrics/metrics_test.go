package metrics

import (
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/laskutin/internal/billing"
)

func TestInvoicesCreated(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.InvoicesCreated(2024, 3, 7500)
	m.InvoicesCreated(2024, 1, 2500)

	assert.Equal(t, float64(4), testutil.ToFloat64(m.InvoicesCreatedTotal.WithLabelValues("2024")))
	assert.Equal(t, float64(10000), testutil.ToFloat64(m.InvoicedCentsTotal.WithLabelValues("2024")))
}

func TestObserveRunClassifiesErrors(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRun("generate", 10*time.Millisecond, nil)
	m.ObserveRun("validate", time.Millisecond, fmt.Errorf("%w: no active members to invoice", billing.ErrValidation))
	m.ObserveRun("generate", time.Millisecond, &billing.StorageError{Op: "insert invoice", Err: errors.New("disk full")})

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BillingRunErrors.WithLabelValues("validate", "validation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.BillingRunErrors.WithLabelValues("generate", "storage")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.BillingRunDuration))
}

type fakeFeed struct{}

func (fakeFeed) ClientCount() int { return 2 }
func (fakeFeed) Dropped() uint64  { return 5 }

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.WatchLiveFeed(fakeFeed{})
	m.DeletionRefused("member")
	m.ObserveRequest("GET", "GET /api/stats", 200, time.Millisecond)
	m.SnapshotFinished("completed")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	out := string(body)
	for _, want := range []string{
		`laskutin_deletions_refused_total{entity="member"} 1`,
		`laskutin_http_requests_total{method="GET",route="GET /api/stats",status="200"} 1`,
		`laskutin_snapshots_total{status="completed"} 1`,
		`laskutin_websocket_clients 2`,
		`laskutin_websocket_dropped_total 5`,
	} {
		assert.True(t, strings.Contains(out, want), "missing %q", want)
	}
}
