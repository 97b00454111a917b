// Package web serves the rotary-encoder status over HTTP: an HTML page at
// "/", the JSON status at "/index.json" and a health check at "/healthz".
package web

import (
	"context"
	"encoding/json"
	"net"
	"net/http"

	"github.com/sweeney/rotary-encoder/internal/status"
)

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, s.tracker.Snapshot())
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

// healthJSON is the /healthz body. MQTT state is informational: a daemon
// buffering through a broker outage is still healthy.
type healthJSON struct {
	Armed     bool   `json:"armed"`
	MQTT      bool   `json:"mqtt"`
	Buffered  int    `json:"buffered"`
	LastStep  string `json:"last_step"`
	ReadError uint64 `json:"read_errors"`
}

// handleHealth answers 503 while the decoder is not armed, since no steps
// can be decoded then.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	last := string(snap.LastStep)
	if last == "" {
		last = "NONE"
	}

	w.Header().Set("Content-Type", "application/json")
	if !snap.Encoder.Armed {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(healthJSON{
		Armed:     snap.Encoder.Armed,
		MQTT:      snap.MQTTConnected,
		Buffered:  snap.MQTTBuffered,
		LastStep:  last,
		ReadError: snap.Encoder.ReadErrors,
	})
}
