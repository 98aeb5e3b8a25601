package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilesAnalyzed(t *testing.T) {
	before := testutil.ToFloat64(FilesAnalyzed.WithLabelValues(ModeProfile))
	FilesAnalyzed.WithLabelValues(ModeProfile).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FilesAnalyzed.WithLabelValues(ModeProfile)))
}

func TestImpactedTestsGauge(t *testing.T) {
	ImpactedTests.Set(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(ImpactedTests))
}

func TestObserveSince(t *testing.T) {
	ObserveSince("unit", time.Now().Add(-time.Millisecond))
	assert.Positive(t, testutil.CollectAndCount(AnalysisDuration))
}

func TestHandler(t *testing.T) {
	WatcherEventsTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "testlens_watcher_events_total"))
}
