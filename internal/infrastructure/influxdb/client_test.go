package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/wifiattend/internal/infrastructure/config"
	"github.com/nerrad567/wifiattend/internal/infrastructure/influxdb"
)

// fakeInflux answers /ping and records line protocol posted to /api/v2/write.
type fakeInflux struct {
	mu     sync.Mutex
	lines  []string
	reject bool
	server *httptest.Server
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()
	f := &fakeInflux{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // test server
			f.mu.Lock()
			if f.reject {
				f.mu.Unlock()
				http.Error(w, `{"code":"invalid","message":"bad point"}`, http.StatusBadRequest)
				return
			}
			for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
				if line != "" {
					f.lines = append(f.lines, line)
				}
			}
			f.mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeInflux) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

func (f *fakeInflux) config() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           f.server.URL,
		Token:         "test-token",
		Org:           "wifiattend",
		Bucket:        "telemetry",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: false}

	client, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned client while disabled")
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:1"}

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_DefaultBatchSettings(t *testing.T) {
	fake := newFakeInflux(t)
	cfg := fake.config()
	cfg.BatchSize = -1
	cfg.FlushInterval = 0

	client, err := influxdb.Connect(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect")
	}
}

func TestWriteOperationMetric(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	var (
		mu       sync.Mutex
		writeErr error
	)
	client.SetOnError(func(err error) {
		mu.Lock()
		writeErr = err
		mu.Unlock()
	})

	client.WriteOperationMetric("insert", "created", 1500*time.Microsecond)
	client.WriteOperationMetric("reset", "not_found", time.Millisecond)
	client.Flush()

	deadline := time.Now().Add(5 * time.Second)
	for len(fake.received()) < 2 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}

	lines := fake.received()
	if len(lines) != 2 {
		t.Fatalf("received %d lines, want 2: %v", len(lines), lines)
	}
	wantParts := [][]string{
		{"operation=insert", "outcome=created", "service=wifiattend", " duration_ms=1.5"},
		{"operation=reset", "outcome=not_found", "service=wifiattend", " duration_ms=1"},
	}
	for i, parts := range wantParts {
		if !strings.HasPrefix(lines[i], influxdb.MeasurementRegistryOperations+",") {
			t.Errorf("line[%d] = %q, want measurement %s", i, lines[i], influxdb.MeasurementRegistryOperations)
		}
		for _, part := range parts {
			if !strings.Contains(lines[i], part) {
				t.Errorf("line[%d] = %q, missing %q", i, lines[i], part)
			}
		}
	}
	if got := client.Stats(); got.Points != 2 || got.Failures != 0 {
		t.Errorf("Stats() = %+v, want 2 points, 0 failures", got)
	}

	mu.Lock()
	defer mu.Unlock()
	if writeErr != nil {
		t.Errorf("async write error = %v", writeErr)
	}
}

func TestRejectedWritesReachOnError(t *testing.T) {
	fake := newFakeInflux(t)
	fake.reject = true

	client, err := influxdb.Connect(context.Background(), fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteOperationMetric("insert", "conflict", time.Millisecond)
	client.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("onError called with nil error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("rejected batch never reported")
	}
	if got := client.Stats().Failures; got == 0 {
		t.Error("Stats().Failures = 0 after rejected batch")
	}
}

func TestHealthCheck(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}
}

func TestWriteAfterCloseIsNoop(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	client.WriteOperationMetric("insert", "created", time.Millisecond)
	client.Flush()

	if got := fake.received(); len(got) != 0 {
		t.Errorf("received %v after Close, want nothing", got)
	}
}

func TestClose_Nil(t *testing.T) {
	client := &influxdb.Client{}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on zero client error = %v", err)
	}
	if client.IsConnected() {
		t.Error("zero client reports connected")
	}
	client.WriteOperationMetric("insert", "created", time.Millisecond)
	if got := client.Stats().Points; got != 0 {
		t.Errorf("zero client queued %d points", got)
	}
}

func TestClose_Idempotent(t *testing.T) {
	fake := newFakeInflux(t)

	client, err := influxdb.Connect(context.Background(), fake.config())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := client.Close(); err != nil {
			t.Fatalf("Close() #%d error = %v", i+1, err)
		}
	}
}
