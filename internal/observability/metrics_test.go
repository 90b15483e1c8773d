package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsAreSafe(t *testing.T) {
	t.Parallel()
	var m *Metrics
	m.ObserveAPI("GET", "/x", "200", time.Millisecond)
	m.ObserveStep("BUILD", "continue", time.Second)
	m.IncToolFailure("template")
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 503 {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestHandlerExposesReleaseMetrics(t *testing.T) {
	t.Parallel()
	m := newMetrics()
	m.IncReleaseStarted("bcio")
	m.ObserveStep("VALIDATION", "paused", 2*time.Second)
	m.AddDiagnostics("VALIDATION", "unknown-parent", "error", 3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`ontorelease_releases_started_total{repository="bcio"} 1`,
		`ontorelease_steps_total{outcome="paused",step="VALIDATION"} 1`,
		`ontorelease_diagnostics_total{kind="unknown-parent",severity="error",step="VALIDATION"} 3`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("missing %q in exposition", want)
		}
	}
}
