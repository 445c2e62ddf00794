// Package dashboard implements the optional live status server: JSON
// plugin/stats endpoints, a Prometheus /metrics exposition, and a
// Socket.IO push channel for loot/progress events -- generalized from
// cmd/probe/main.go's "Synapse Bridge" setupSocketServer +
// BroadcastToNamespace pattern, from eBPF traffic events to loot/progress
// events, and routed with the same gorilla/mux used by internal/api.
package dashboard

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	socketio "github.com/googollee/go-socket.io"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ocx/raider/internal/probe"
	"github.com/ocx/raider/internal/registry"
	"github.com/ocx/raider/internal/session"
	"github.com/ocx/raider/internal/unreachable"
)

// Dashboard is the embedded HTTP + Socket.IO status server.
type Dashboard struct {
	router *mux.Router
	io     *socketio.Server
	reg    *registry.Registry
	sess   *session.Session
	dead   *unreachable.Set

	lootTotal prometheus.Counter
}

// New builds a Dashboard wired to reg (for plugin listing), sess (for
// stats), and dead (for the unreachable-target gauge).
func New(reg *registry.Registry, sess *session.Session, dead *unreachable.Set) *Dashboard {
	io := socketio.NewServer(nil)
	io.OnConnect("/", func(s socketio.Conn) error { return nil })
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {})

	metrics := prometheus.NewRegistry()
	lootTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "raider_loot_total",
		Help: "Total verified credentials recorded so far.",
	})
	metrics.MustRegister(lootTotal)
	metrics.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "raider_done_total",
		Help: "Total credentials that have completed their retry envelope.",
	}, func() float64 { return float64(sess.Done()) }))
	metrics.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "raider_errors_total",
		Help: "Total credentials whose retry envelope was exhausted by transport errors.",
	}, func() float64 { return float64(sess.Errors()) }))
	metrics.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "raider_unreachable_targets",
		Help: "Number of targets marked unreachable so far.",
	}, func() float64 { return float64(dead.Len()) }))

	d := &Dashboard{
		router:    mux.NewRouter(),
		io:        io,
		reg:       reg,
		sess:      sess,
		dead:      dead,
		lootTotal: lootTotal,
	}

	d.router.HandleFunc("/plugins", d.handlePlugins).Methods(http.MethodGet)
	d.router.HandleFunc("/stats", d.handleStats).Methods(http.MethodGet)
	d.router.Handle("/metrics", promhttp.HandlerFor(metrics, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	d.router.PathPrefix("/socket.io/").Handler(io)

	return d
}

// Serve starts the Socket.IO event loop and the HTTP listener on addr. It
// blocks; callers should run it in its own goroutine.
func (d *Dashboard) Serve(addr string) error {
	go func() {
		if err := d.io.Serve(); err != nil {
			slog.Error("dashboard: socket.io server stopped", "error", err)
		}
	}()
	defer d.io.Close()

	slog.Info("dashboard listening", "addr", addr)
	return http.ListenAndServe(addr, d.router)
}

// NotifyLoot pushes a loot_found event to every connected dashboard client
// and bumps the Prometheus loot counter. Call this from loot.Sink.Add.
func (d *Dashboard) NotifyLoot(l probe.Loot) {
	d.lootTotal.Inc()
	d.io.BroadcastToNamespace("/", "loot_found", l)
}

// NotifyProgress pushes a progress event on every stats tick.
func (d *Dashboard) NotifyProgress(done, errors uint64, unreachableCount int) {
	d.io.BroadcastToNamespace("/", "progress", map[string]uint64{
		"done":                done,
		"errors":              errors,
		"unreachable_targets": uint64(unreachableCount),
	})
}

func (d *Dashboard) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(d.reg.List())
}

type statsResponse struct {
	Done               uint64 `json:"done"`
	Errors             uint64 `json:"errors"`
	UnreachableTargets int    `json:"unreachable_targets"`
}

func (d *Dashboard) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(statsResponse{
		Done:               d.sess.Done(),
		Errors:             d.sess.Errors(),
		UnreachableTargets: d.dead.Len(),
	})
}
