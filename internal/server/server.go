// Package server exposes the recorder over a localhost-only HTTP API so
// local frontends can drive recording sessions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Amumug/epicenter/internal/capture"
	"github.com/Amumug/epicenter/internal/device"
	"github.com/Amumug/epicenter/internal/recorder"
)

// Controller is the slice of the recorder the HTTP surface needs.
type Controller interface {
	Start(ctx context.Context, opts recorder.StartOptions) (device.Outcome, error)
	Stop(ctx context.Context) ([]byte, error)
	Cancel(ctx context.Context) (recorder.CancelStatus, error)
	State() recorder.State
	RecordingID() string
}

// Config holds server configuration.
type Config struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() Config {
	return Config{
		Port:            18765,
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// Server serves the recording control API on the loopback interface.
type Server struct {
	controller Controller
	devices    capture.Enumerator
	cfg        Config
	log        zerolog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	port       int
	running    bool
}

func New(controller Controller, devices capture.Enumerator, cfg Config, log zerolog.Logger) *Server {
	return &Server{
		controller: controller,
		devices:    devices,
		cfg:        cfg,
		log:        log,
		port:       cfg.Port,
	}
}

// Start begins listening on 127.0.0.1. Port 0 picks a free port.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port

	s.httpServer = &http.Server{
		Handler:      corsMiddleware(s.mux()),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	go func() {
		s.log.Info().Str("url", s.URL()).Msg("Control server listening")
		if err := s.httpServer.Serve(s.listener); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("Control server error")
		}
	}()

	s.running = true
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.running = false
	return nil
}

// Port returns the bound port.
func (s *Server) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

// URL returns the base URL of the server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Port())
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/devices", s.handleDevices)
	mux.HandleFunc("/api/record/start", s.handleStart)
	mux.HandleFunc("/api/record/stop", s.handleStop)
	mux.HandleFunc("/api/record/cancel", s.handleCancel)
	return mux
}

type statusResponse struct {
	State       string `json:"state"`
	RecordingID string `json:"recording_id,omitempty"`
}

type deviceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Default bool   `json:"default"`
}

type devicesResponse struct {
	Devices []deviceInfo `json:"devices"`
}

type startRequest struct {
	RecordingID string `json:"recording_id"`
	DeviceID    string `json:"device_id,omitempty"`
	SampleRate  int    `json:"sample_rate,omitempty"`
}

type startResponse struct {
	DeviceID string `json:"device_id"`
	Fallback bool   `json:"fallback"`
	Reason   string `json:"reason,omitempty"`
}

type cancelResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		State:       s.controller.State().String(),
		RecordingID: s.controller.RecordingID(),
	})
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	devices, err := s.devices.ListDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := devicesResponse{Devices: make([]deviceInfo, len(devices))}
	for i, d := range devices {
		resp.Devices[i] = deviceInfo{ID: d.ID, Name: d.Name, Default: d.Default}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RecordingID == "" {
		writeError(w, http.StatusBadRequest, "recording_id is required")
		return
	}

	outcome, err := s.controller.Start(r.Context(), recorder.StartOptions{
		RecordingID: req.RecordingID,
		DeviceID:    req.DeviceID,
		SampleRate:  req.SampleRate,
	})
	if err != nil {
		var noDevices *device.NoDevicesError
		switch {
		case errors.Is(err, recorder.ErrAlreadyRecording):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &noDevices):
			writeError(w, http.StatusServiceUnavailable, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	resp := startResponse{DeviceID: outcome.DeviceID, Fallback: outcome.Fallback}
	if outcome.Fallback {
		resp.Reason = outcome.Reason.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	audio, err := s.controller.Stop(r.Context())
	if err != nil {
		if errors.Is(err, recorder.ErrNotRecording) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(audio)))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	result, err := s.controller.Cancel(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	status := "cancelled"
	if result == recorder.NoRecording {
		status = "no_recording"
	}
	writeJSON(w, http.StatusOK, cancelResponse{Status: status})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

// corsMiddleware allows browser frontends served from localhost to call
// the API. Non-localhost origins get no CORS headers.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://localhost") || strings.HasPrefix(origin, "http://127.0.0.1") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
