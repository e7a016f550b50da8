package msgport

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func newTestAdminServer(t *testing.T) (*Environment, *AdminServer) {
	t.Helper()

	reg := prometheus.NewRegistry()
	env := NewEnvironment("test", WithRegisterer(reg))

	as, err := NewAdminServer(env, "127.0.0.1:0", reg)
	if err != nil {
		t.Fatalf("NewAdminServer: %v", err)
	}
	as.Start()

	return env, as
}

func TestAdmin_Status(t *testing.T) {
	env, as := newTestAdminServer(t)
	defer env.Stop()
	defer as.Stop()

	resp, err := http.Get("http://" + as.Addr() + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Metrics == nil {
		t.Error("metrics is nil")
	}
}

func TestAdmin_Ports(t *testing.T) {
	env, as := newTestAdminServer(t)
	defer env.Stop()
	defer as.Stop()

	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, func(any, error) {})
	env.Registry().Register("p1", ch.Port1)

	resp, err := http.Get("http://" + as.Addr() + "/ports")
	if err != nil {
		t.Fatalf("GET /ports: %v", err)
	}
	defer resp.Body.Close()

	var body portsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Ports) != 1 || body.Ports[0] != "p1" {
		t.Errorf("ports = %v, want [p1]", body.Ports)
	}
}

func TestAdmin_PortDetailNotFound(t *testing.T) {
	env, as := newTestAdminServer(t)
	defer env.Stop()
	defer as.Stop()

	resp, err := http.Get("http://" + as.Addr() + "/ports/missing")
	if err != nil {
		t.Fatalf("GET /ports/missing: %v", err)
	}
	defer resp.Body.Close()

	var body portDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Found {
		t.Error("expected Found=false")
	}
}

func TestAdmin_EventsEndpointReportsPortLifecycle(t *testing.T) {
	env, as := newTestAdminServer(t)
	defer env.Stop()
	defer as.Stop()

	ch := NewChannel(env, GobCodec{}, func(any, error) {}, env, GobCodec{}, func(any, error) {})
	ch.Port1.Close()

	resp, err := http.Get("http://" + as.Addr() + "/events")
	if err != nil {
		t.Fatalf("GET /events: %v", err)
	}
	defer resp.Body.Close()

	var body eventsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Events) == 0 {
		t.Error("expected at least one recorded lifecycle event")
	}
}

func TestAdmin_MetricsEndpoint(t *testing.T) {
	env, as := newTestAdminServer(t)
	defer env.Stop()
	defer as.Stop()

	resp, err := http.Get("http://" + as.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}
