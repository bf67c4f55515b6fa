package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/danmuck/exmdbctl/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog/log"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(clientRequests.WithLabelValues("ping_store", "ok"))
	RecordRoundTrip("ping_store", "ok", 3*time.Millisecond, 40, 5)
	RecordRoundTrip("ping_store", "ok", 2*time.Millisecond, 40, 5)
	if got := testutil.ToFloat64(clientRequests.WithLabelValues("ping_store", "ok")); got != before+2 {
		t.Fatalf("unexpected request count: got=%v want=%v", got, before+2)
	}

	RecordStoreProbe("/var/lib/gromox/user/alice", true)
	if got := testutil.ToFloat64(probeStoreUp.WithLabelValues("/var/lib/gromox/user/alice")); got != 1 {
		t.Fatalf("expected store up gauge 1, got %v", got)
	}
	RecordStoreProbe("/var/lib/gromox/user/alice", false)
	if got := testutil.ToFloat64(probeStoreUp.WithLabelValues("/var/lib/gromox/user/alice")); got != 0 {
		t.Fatalf("expected store up gauge 0, got %v", got)
	}

	SetProbeConnected(true)
	if got := testutil.ToFloat64(probeConnected); got != 1 {
		t.Fatalf("expected connected gauge 1, got %v", got)
	}
	SetProbeConnected(false)
	if got := testutil.ToFloat64(probeConnected); got != 0 {
		t.Fatalf("expected connected gauge 0, got %v", got)
	}
}

func TestHTTPObserverRecordsRoute(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(HTTPObserver("admin-a", log.Logger, "/health"))
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for _, path := range []string{"/health", "/nope/123", "/nope/456"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	}
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("admin-a", "GET", "/health", "204")); got != 1 {
		t.Fatalf("expected one recorded health request, got %v", got)
	}
	// Unrouted paths share one label so arbitrary URLs cannot grow the series set.
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("admin-a", "GET", "unmatched", "404")); got != 2 {
		t.Fatalf("expected two unmatched requests, got %v", got)
	}
}
