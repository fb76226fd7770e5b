package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRequestMiddleware(t *testing.T) {
	m := New()
	h := RequestMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	for _, path := range []string{"/ok", "/missing", "/metrics"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requestsTotal); got != 2 {
		t.Errorf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.errorsTotal); got != 1 {
		t.Errorf("errors = %v, want 1", got)
	}
}

func TestHandler_refreshes_gauges(t *testing.T) {
	m := New()
	m.IncBreaksSkipped("seek")
	m.IncBreaksSkipped("seek")

	rec := httptest.NewRecorder()
	m.Handler(func() { m.SetActiveSessions(3) }).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "ad_active_sessions 3") {
		t.Errorf("expected refreshed gauge in scrape:\n%s", body)
	}
	if !strings.Contains(body, `ad_breaks_skipped_total{reason="seek"} 2`) {
		t.Errorf("expected skipped counter in scrape:\n%s", body)
	}
}
