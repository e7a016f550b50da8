package msgport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AdminServer exposes operational endpoints for an Environment over
// HTTP. All responses are JSON except /metrics, which is Prometheus
// exposition format, and the /debug/pprof/* routes. Intended for admin/internal networks only. Built
// on chi for routing and client_golang's promhttp for the metrics
// route, scoped to a single Environment's port registry rather than a
// whole cluster.
type AdminServer struct {
	env      *Environment
	server   *http.Server
	listener net.Listener
}

// NewAdminServer creates an AdminServer bound to addr. reg, if non-nil,
// is the registerer env's Metrics were registered against; it is the
// one scraped by /metrics. The server is not started until Start().
func NewAdminServer(env *Environment, addr string, reg *prometheus.Registry) (*AdminServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	as := &AdminServer{
		env:      env,
		listener: ln,
		server: &http.Server{
			Handler:      r,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
	}

	r.Get("/status", as.handleStatus)
	r.Get("/ports", as.handlePorts)
	r.Get("/ports/{name}", as.handlePortDetail)
	r.Get("/events", as.handleEvents)

	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	r.Get("/debug/pprof/*", pprof.Index)
	r.Get("/debug/pprof/cmdline", pprof.Cmdline)
	r.Get("/debug/pprof/profile", pprof.Profile)
	r.Get("/debug/pprof/symbol", pprof.Symbol)
	r.Get("/debug/pprof/trace", pprof.Trace)

	return as, nil
}

// Addr returns the listener's address (useful when binding to ":0").
func (as *AdminServer) Addr() string {
	return as.listener.Addr().String()
}

// Start begins serving HTTP requests. Non-blocking.
func (as *AdminServer) Start() {
	go func() {
		if err := as.server.Serve(as.listener); err != nil && err != http.ErrServerClosed {
			slog.Error("admin server error", "error", err)
		}
	}()
	slog.Info("admin server started", "addr", as.Addr())
}

// Stop gracefully shuts down the admin server.
func (as *AdminServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	as.server.Shutdown(ctx)
}

type statusResponse struct {
	Environment string           `json:"environment"`
	ActivePorts []string         `json:"active_ports"`
	Metrics     map[string]int64 `json:"metrics"`
}

func (as *AdminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, statusResponse{
		Environment: as.env.String(),
		ActivePorts: as.env.Registry().Names(),
		Metrics:     as.env.Metrics().Snapshot(),
	})
}

type portsResponse struct {
	Ports []string `json:"ports"`
}

func (as *AdminServer) handlePorts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, portsResponse{Ports: as.env.Registry().Names()})
}

type portDetailResponse struct {
	Name  string `json:"name"`
	Found bool   `json:"found"`
}

func (as *AdminServer) handlePortDetail(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p := as.env.Registry().Lookup(name)
	writeJSON(w, portDetailResponse{Name: name, Found: p != nil})
}

type eventsResponse struct {
	Events []string `json:"events"`
}

// handleEvents drains the Environment's recent lifecycle log. Each call
// consumes what it returns, so polling this endpoint tails the log rather
// than re-reading a snapshot.
func (as *AdminServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, eventsResponse{Events: as.env.RecentEvents(eventLogCapacity)})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("admin: json encode error", "error", err)
	}
}
