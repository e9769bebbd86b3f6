// Package web serves a small HTTP API over the PLC session.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"plclogger/config"
	"plclogger/export"
	"plclogger/plcman"
	"plclogger/publish"
)

// Server is the HTTP front end for one plcman.Session.
type Server struct {
	config  config.WebConfig
	plc     config.PLCConfig
	session *plcman.Session
	outDir  string
	server  *http.Server
	router  chi.Router
	running bool
	mu      sync.RWMutex
	logger  *zap.Logger
	log     *zap.SugaredLogger
}

// NewServer creates a server; exports triggered through the API are written to outDir.
// Connect requests that leave out rack or slot use the values from plc.
func NewServer(cfg config.WebConfig, plc config.PLCConfig, session *plcman.Session, outDir string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:  cfg,
		plc:     plc,
		session: session,
		outDir:  outDir,
		logger:  logger,
		log:     logger.Sugar().Named("web"),
	}
	s.setupRoutes()
	return s
}

// StatusResponse is the JSON body of GET /api/status.
type StatusResponse struct {
	State      string           `json:"state"`
	Connection string           `json:"connection"`
	Params     plcman.Params    `json:"params"`
	Publishers []publish.Status `json:"publishers,omitempty"`
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/connect", s.handleConnect)
		r.Post("/disconnect", s.handleDisconnect)
		r.Get("/info", s.handleInfo)
		r.Post("/db/{db}/export", s.handleExport)
		r.Get("/db/{db}.csv", s.handleCSV)
	})

	s.router = r
}

// Handler returns the router, for embedding or httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// corsMiddleware adds CORS headers for API access.
func corsMiddleware(next http.Handler) http.Handler {
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

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// StatusFor maps a session error to an HTTP status code.
func StatusFor(err error) int {
	var (
		connErr   *plcman.ConnectionError
		notConn   *plcman.NotConnectedError
		readErr   *plcman.BlockReadError
		exportErr *plcman.ExportError
	)
	switch {
	case errors.Is(err, plcman.ErrEmptyAddress), errors.Is(err, plcman.ErrInvalidRackSlot),
		errors.Is(err, plcman.ErrInvalidDB):
		return http.StatusBadRequest
	case errors.As(err, &notConn):
		return http.StatusConflict
	case errors.As(err, &connErr), errors.As(err, &readErr):
		return http.StatusBadGateway
	case errors.As(err, &exportErr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.log.Debugf("request failed: %v", err)
	s.writeError(w, StatusFor(err), err.Error())
}

func (s *Server) status() StatusResponse {
	return StatusResponse{
		State:      s.session.State().String(),
		Connection: s.session.ConnectionMode(),
		Params:     s.session.Params(),
		Publishers: s.session.PublisherStatus(),
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.status())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	p := plcman.Params{Rack: s.plc.Rack, Slot: s.plc.Slot}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := s.session.Connect(p); err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, s.status())
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Disconnect(); err != nil {
		s.log.Warnf("disconnect: %v", err)
	}
	s.writeJSON(w, s.status())
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.session.DeviceInfo()
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, info)
}

// dbParam parses the {db} URL parameter, writing a 400 when it is not a positive integer.
func (s *Server) dbParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "db")
	db, err := strconv.Atoi(raw)
	if err != nil || db <= 0 {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid DB number %q", raw))
		return 0, false
	}
	return db, true
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	db, ok := s.dbParam(w, r)
	if !ok {
		return
	}
	res, err := s.session.ReadAndExport(r.Context(), db, s.outDir)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, res)
}

// handleCSV reads the block and streams it as an attachment. Nothing is written
// to the output directory.
func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	db, ok := s.dbParam(w, r)
	if !ok {
		return
	}
	b, err := s.session.Read(db)
	if err != nil {
		s.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(b.DB, b.ReadAt)))
	if _, err := export.WriteCSV(w, b.Rows()); err != nil {
		// Headers are already sent; all we can do is log.
		s.log.Warnf("streaming DB%d: %v", db, err)
	}
}

// Start binds the listen address and serves in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	addr := s.config.Listen()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          zap.NewStdLog(s.logger.Named("http")),
	}
	s.server = srv

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Errorf("HTTP server stopped: %v", err)
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
		}
	}()

	s.running = true
	s.log.Infof("API listening on %s", s.Address())
	return nil
}

// Stop halts the HTTP server gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	s.running = false
	s.server = nil
	return err
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Address returns the server address.
func (s *Server) Address() string {
	return "http://" + s.config.Listen()
}
