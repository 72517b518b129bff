// Package web provides an HTTP status and control server for the
// mpb-switch daemon.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/sweeney/mpb-switch/internal/runner"
	"github.com/sweeney/mpb-switch/internal/status"
)

// Controller applies a control action to a button.
type Controller interface {
	Control(button, action string) error
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	ctl        Controller
}

// New creates a Server that reads state from the given tracker and sends
// control requests to ctl. A nil ctl disables the control endpoint.
func New(addr string, tracker *status.Tracker, ctl Controller) *Server {
	s := &Server{tracker: tracker, ctl: ctl}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /index.html", s.handleIndex)
	mux.HandleFunc("GET /index.json", s.handleJSON)
	if ctl != nil {
		mux.HandleFunc("POST /buttons/{name}/{action}", s.handleControl)
	}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.WithError(err).Warn("http: render index")
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// ControlResponse is returned by the control endpoint.
type ControlResponse struct {
	Button string `json:"button"`
	Action string `json:"action"`
	Queued bool   `json:"queued"`
	Error  string `json:"error,omitempty"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	resp := ControlResponse{Button: r.PathValue("name"), Action: r.PathValue("action")}

	code := http.StatusAccepted
	if err := s.ctl.Control(resp.Button, resp.Action); err != nil {
		resp.Error = err.Error()
		switch {
		case errors.Is(err, runner.ErrUnknownButton):
			code = http.StatusNotFound
		case errors.Is(err, runner.ErrUnknownAction):
			code = http.StatusBadRequest
		case errors.Is(err, runner.ErrQueueFull):
			code = http.StatusServiceUnavailable
		default:
			code = http.StatusInternalServerError
		}
		log.WithFields(log.Fields{"button": resp.Button, "action": resp.Action}).WithError(err).Warn("http: control rejected")
	} else {
		resp.Queued = true
		log.WithFields(log.Fields{"button": resp.Button, "action": resp.Action, "remote": r.RemoteAddr}).Info("http: control queued")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
