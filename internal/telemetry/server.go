package telemetry

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"apexgp/sim/internal/logging"
	"apexgp/sim/internal/physics"
	"apexgp/sim/internal/sim"
)

// RaceController is the slice of the world the HTTP API drives.
type RaceController interface {
	StartRace()
	ForceEnd()
	SetCarCount(n int) error
	SetHumanInput(id int, input physics.ControlInput) error
	Snapshot() sim.Snapshot
}

// Options configures the HandlerSet.
type Options struct {
	Logger     *logging.Logger
	Control    RaceController
	Hub        *Hub
	Monitor    *sim.TickMonitor
	TimeSource func() time.Time
}

// HandlerSet bundles the operational and race-control HTTP handlers.
type HandlerSet struct {
	logger  *logging.Logger
	control RaceController
	hub     *Hub
	monitor *sim.TickMonitor
	now     func() time.Time
	started time.Time
}

// NewHandlerSet constructs a HandlerSet using the provided options.
func NewHandlerSet(opts Options) *HandlerSet {
	logger := opts.Logger
	if logger == nil {
		logger = logging.L()
	}
	now := opts.TimeSource
	if now == nil {
		now = time.Now
	}
	return &HandlerSet{
		logger:  logger,
		control: opts.Control,
		hub:     opts.Hub,
		monitor: opts.Monitor,
		now:     now,
		started: now(),
	}
}

// Register attaches all handlers to the provided mux.
func (h *HandlerSet) Register(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/livez", h.LivenessHandler())
	mux.HandleFunc("/metrics", h.MetricsHandler())
	mux.HandleFunc("/race/state", h.StateHandler())
	mux.HandleFunc("/race/start", h.StartHandler())
	mux.HandleFunc("/race/end", h.EndHandler())
	mux.HandleFunc("/race/grid", h.GridHandler())
	mux.HandleFunc("/race/input", h.InputHandler())
	if h.hub != nil {
		mux.Handle("/ws", h.hub)
	}
}

// LivenessHandler reports that the HTTP server is reachable.
func (h *HandlerSet) LivenessHandler() http.HandlerFunc {
	type response struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, response{
			Status:    "alive",
			Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		})
	}
}

// MetricsHandler emits Prometheus compatible text metrics.
func (h *HandlerSet) MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		uptime := h.now().Sub(h.started).Seconds()
		fmt.Fprintf(w, "# HELP sim_uptime_seconds Simulation uptime in seconds.\n")
		fmt.Fprintf(w, "# TYPE sim_uptime_seconds gauge\n")
		fmt.Fprintf(w, "sim_uptime_seconds %.0f\n", uptime)

		if h.hub != nil {
			fmt.Fprintf(w, "# HELP sim_spectators Current connected WebSocket spectators.\n")
			fmt.Fprintf(w, "# TYPE sim_spectators gauge\n")
			fmt.Fprintf(w, "sim_spectators %d\n", h.hub.ClientCount())

			fmt.Fprintf(w, "# HELP sim_broadcasts_total Total telemetry frames fanned out.\n")
			fmt.Fprintf(w, "# TYPE sim_broadcasts_total counter\n")
			fmt.Fprintf(w, "sim_broadcasts_total %d\n", h.hub.Broadcasts())
		}
		if h.monitor != nil {
			stats := h.monitor.Snapshot()
			fmt.Fprintf(w, "# HELP sim_tick_duration_seconds Average physics tick duration.\n")
			fmt.Fprintf(w, "# TYPE sim_tick_duration_seconds gauge\n")
			fmt.Fprintf(w, "sim_tick_duration_seconds %.6f\n", stats.Average.Seconds())

			fmt.Fprintf(w, "# HELP sim_tick_duration_max_seconds Worst observed tick duration.\n")
			fmt.Fprintf(w, "# TYPE sim_tick_duration_max_seconds gauge\n")
			fmt.Fprintf(w, "sim_tick_duration_max_seconds %.6f\n", stats.Max.Seconds())

			fmt.Fprintf(w, "# HELP sim_ticks_total Total physics ticks sampled.\n")
			fmt.Fprintf(w, "# TYPE sim_ticks_total counter\n")
			fmt.Fprintf(w, "sim_ticks_total %d\n", stats.Samples)
		}
	}
}

// StateHandler serves the current world snapshot as JSON.
func (h *HandlerSet) StateHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.control == nil {
			http.Error(w, "race control unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, http.StatusOK, h.control.Snapshot())
	}
}

// StartHandler launches the race start countdown.
func (h *HandlerSet) StartHandler() http.HandlerFunc {
	type response struct {
		Status string `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.control == nil {
			http.Error(w, "race control unavailable", http.StatusServiceUnavailable)
			return
		}
		h.control.StartRace()
		h.logger.Info("race start requested", logging.String("remote_addr", r.RemoteAddr))
		writeJSON(w, http.StatusOK, response{Status: "countdown"})
	}
}

// EndHandler abandons the race in progress.
func (h *HandlerSet) EndHandler() http.HandlerFunc {
	type response struct {
		Status string `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.control == nil {
			http.Error(w, "race control unavailable", http.StatusServiceUnavailable)
			return
		}
		h.control.ForceEnd()
		h.logger.Info("race force-ended", logging.String("remote_addr", r.RemoteAddr))
		writeJSON(w, http.StatusOK, response{Status: "ended"})
	}
}

// GridHandler resizes the grid before the race starts.
func (h *HandlerSet) GridHandler() http.HandlerFunc {
	type request struct {
		Count int `json:"count"`
	}
	type response struct {
		Status string `json:"status"`
		Count  int    `json:"count"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.control == nil {
			http.Error(w, "race control unavailable", http.StatusServiceUnavailable)
			return
		}
		var req request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid grid payload", http.StatusBadRequest)
			return
		}
		if err := h.control.SetCarCount(req.Count); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		h.logger.Info("grid resized", logging.Int("count", req.Count), logging.String("remote_addr", r.RemoteAddr))
		writeJSON(w, http.StatusOK, response{Status: "ok", Count: req.Count})
	}
}

// inputRequest mirrors physics.ControlInput for the wire.
type inputRequest struct {
	CarID    int     `json:"car_id"`
	Throttle float64 `json:"throttle"`
	Brake    float64 `json:"brake"`
	Steering float64 `json:"steering"`
	GearUp   bool    `json:"gear_up"`
	GearDown bool    `json:"gear_down"`
}

// InputHandler applies control input to a human-driven car.
func (h *HandlerSet) InputHandler() http.HandlerFunc {
	type response struct {
		Status string `json:"status"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if h.control == nil {
			http.Error(w, "race control unavailable", http.StatusServiceUnavailable)
			return
		}
		var req inputRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid input payload", http.StatusBadRequest)
			return
		}
		input := physics.ControlInput{
			Throttle: req.Throttle,
			Brake:    req.Brake,
			Steering: req.Steering,
			GearUp:   req.GearUp,
			GearDown: req.GearDown,
		}
		if err := h.control.SetHumanInput(req.CarID, input); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, response{Status: "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
