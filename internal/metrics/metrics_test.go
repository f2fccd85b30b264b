package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.CacheLookup("sentiment", true)
		r.TaskOutcome("enrich", "ok")
		r.ReasonerCall("error")
		r.ScanDone("standard", time.Second, 3)
		r.SnapshotAge(12)
	})
}

func TestRecorderCounts(t *testing.T) {
	r := New()
	r.CacheLookup("sentiment", true)
	r.CacheLookup("sentiment", true)
	r.CacheLookup("sentiment", false)
	r.TaskOutcome("enrich", "timeout")
	r.ScanDone("tail", 2*time.Second, 7)

	body := scrape(t, r)
	assert.Contains(t, body, `stockradar_cache_lookups_total{cache="sentiment",result="hit"} 2`)
	assert.Contains(t, body, `stockradar_cache_lookups_total{cache="sentiment",result="miss"} 1`)
	assert.Contains(t, body, `stockradar_task_outcomes_total{stage="enrich",status="timeout"} 1`)
	assert.Contains(t, body, `stockradar_scan_results{mode="tail"} 7`)
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ReasonerCall("ok")
	assert.True(t, strings.Contains(scrape(t, r), `stockradar_reasoner_calls_total{result="ok"} 1`))
}

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	return rec.Body.String()
}
