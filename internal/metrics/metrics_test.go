package metrics

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistryExposesRecordedSeries(t *testing.T) {
	reg := New()
	reg.FramesReceived.WithLabelValues("heartbeat").Inc()
	reg.ActiveSessions.Set(3)

	srv := httptest.NewServer(promhttp.HandlerFor(reg.registry, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(string(body), "dtc_frames_received_total") {
		t.Fatal("expected frames-received series in scrape output")
	}
	if !strings.Contains(string(body), "dtc_active_sessions 3") {
		t.Fatal("expected active-sessions gauge in scrape output")
	}
}

func TestHealthzReturnsOK(t *testing.T) {
	reg := New()
	srv := NewServer(0, reg, testLogger())

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	srv.server.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "ok" {
		t.Fatalf("unexpected body: %q", rr.Body.String())
	}
}
