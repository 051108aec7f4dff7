package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/gyara/changeup/internal/logger"
	"github.com/gyara/changeup/internal/rules"
	"github.com/gyara/changeup/internal/state"
	"github.com/gyara/changeup/internal/station"
)

// Server represents the HTTP debug API server
type Server struct {
	router   *mux.Router
	svc      *station.Service
	state    *state.State
	upgrader websocket.Upgrader
}

// NewServer creates a new API server
func NewServer(svc *station.Service, st *state.State) *Server {
	s := &Server{
		router: mux.NewRouter(),
		svc:    svc,
		state:  st,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Focus state
	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/state/stream", s.handleStateStream)

	// Configuration
	api.HandleFunc("/ruleset", s.handleGetRuleset).Methods("GET")
	api.HandleFunc("/actions", s.handleGetActions).Methods("GET")

	// Focus actions
	api.HandleFunc("/jump", s.handleJump).Methods("POST")
	api.HandleFunc("/focus/{target}", s.handleFocus).Methods("POST")
	api.HandleFunc("/rule-focus/{name}", s.handleRuleFocus).Methods("POST")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the routed handler with CORS headers.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Run serves on 127.0.0.1:port until ctx is done.
func (s *Server) Run(ctx context.Context, port int) error {
	log := logger.WithComponent("api")
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", "http://"+srv.Addr).Msg("Starting HTTP API")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("HTTP API shutdown failed")
		}
		return ctx.Err()
	}
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, station.ErrNotFound) || errors.Is(err, rules.ErrNoSuchRule) {
		status = http.StatusNotFound
	}
	http.Error(w, err.Error(), status)
}

func writeTOML(w http.ResponseWriter, doc string, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/toml")
	w.Write([]byte(doc))
}

// HTTP Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.svc.Snapshot())
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("api")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	// Subscribe before the initial write so no change is missed.
	updates := s.state.Subscribe()
	defer s.state.Unsubscribe(updates)

	if err := conn.WriteJSON(s.svc.Snapshot()); err != nil {
		log.Debug().Err(err).Msg("WebSocket write failed")
		return
	}

	// The reader only notices the peer going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case snap := <-updates:
			if err := conn.WriteJSON(snap); err != nil {
				log.Debug().Err(err).Msg("WebSocket write failed")
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Server) handleGetRuleset(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Ruleset()
	writeTOML(w, doc, err)
}

func (s *Server) handleGetActions(w http.ResponseWriter, r *http.Request) {
	doc, err := s.svc.Actions()
	writeTOML(w, doc, err)
}

func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.JumpToLastViewed(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	target := mux.Vars(r)["target"]
	if err := s.svc.Focus(r.Context(), target); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

func (s *Server) handleRuleFocus(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if err := s.svc.RuleFocus(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, map[string]string{"status": "success"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status":  "healthy",
		"version": s.svc.Version(),
	})
}
