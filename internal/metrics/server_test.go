package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewServer(t *testing.T) {
	s := NewServer(":0")
	if s.addr != ":0" {
		t.Errorf("addr = %q, want %q", s.addr, ":0")
	}
	if s.Addr() != ":0" {
		t.Errorf("Addr() before start = %q, want %q", s.Addr(), ":0")
	}
}

func TestServer_StartAndClose(t *testing.T) {
	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	addr := s.Addr()
	if !strings.Contains(addr, ":") || strings.HasSuffix(addr, ":0") {
		t.Errorf("Addr() = %q, expected bound host:port", addr)
	}
}

func TestServerWithCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewGCMetricsWithRegistry(reg, "forward")
	m.RecordSweep(time.Millisecond, 1, 4, 0)
	m.RecordDiagnostics(3, 7, 64)

	s := NewServerWithRegistry("127.0.0.1:0", reg)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	resp, err := http.Get("http://" + s.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/plain") {
		t.Errorf("Content-Type = %q, expected text/plain", ct)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	bodyStr := string(body)
	for _, want := range []string{
		"edgegc_gc_reclaimed_edges_total",
		"edgegc_gc_peak_edges",
		`collector="forward"`,
	} {
		if !strings.Contains(bodyStr, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestServer_Close(t *testing.T) {
	s := NewServerWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	addr := s.Addr()

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := http.Get("http://" + addr + "/metrics"); err == nil {
		t.Error("expected error after server close")
	}
}

func TestServer_CloseWithoutStart(t *testing.T) {
	s := NewServer(":0")
	if err := s.Close(); err != nil {
		t.Errorf("Close on unstarted server returned error: %v", err)
	}
}

func TestServerHealthz(t *testing.T) {
	s := NewServerWithRegistry("127.0.0.1:0", prometheus.NewRegistry())
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Close()

	get := func() (int, HealthStatus) {
		t.Helper()
		resp, err := http.Get("http://" + s.Addr() + "/healthz")
		if err != nil {
			t.Fatalf("GET /healthz failed: %v", err)
		}
		defer resp.Body.Close()
		var status HealthStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			t.Fatalf("failed to decode health status: %v", err)
		}
		return resp.StatusCode, status
	}

	code, status := get()
	if code != http.StatusOK || status.Status != "ok" {
		t.Errorf("healthz with no checks = %d %q, want 200 ok", code, status.Status)
	}

	var unhealthy atomic.Bool
	s.RegisterCheck("collector", func(context.Context) error {
		if !unhealthy.Load() {
			return nil
		}
		return errors.New("scheduler stopped")
	})

	code, status = get()
	if code != http.StatusOK || !status.Checks["collector"].Healthy {
		t.Errorf("healthz with healthy check = %d %+v", code, status.Checks)
	}

	unhealthy.Store(true)
	code, status = get()
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if status.Status != "unhealthy" || status.Checks["collector"].Message != "scheduler stopped" {
		t.Errorf("unexpected health status %+v", status)
	}
}
