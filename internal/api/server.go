// Package api serves the HTTP introspection endpoints next to the websocket.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	"github.com/Kaushik-110000/eduapp/internal/catalog"
	"github.com/Kaushik-110000/eduapp/internal/room"
	"github.com/Kaushik-110000/eduapp/pkg/interfaces"
	"github.com/Kaushik-110000/eduapp/pkg/types"
)

// Rooms is the read-only view of the room registry the API needs.
type Rooms interface {
	Snapshot() []room.Info
	Room(sessionID string) (room.Info, bool)
	GetHistory(sessionID string) []*types.Message
	Stats() room.Stats
}

// ConnectionCounter reports live connections.
type ConnectionCounter interface {
	ConnectionCount() int
}

// breakerState is implemented by catalogs wrapped in a circuit breaker.
type breakerState interface {
	State() string
}

// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients and internal components
// Clean separation - no business logic, only HTTP handling and JSON serialization
type Server struct {
	catalog     interfaces.Catalog
	validate    *validator.Validate
	rooms       Rooms
	connections ConnectionCounter
	metrics     http.Handler
	logger      *zap.Logger
	started     time.Time
	router      *http.ServeMux
}

func NewServer(cat interfaces.Catalog, rooms Rooms, connections ConnectionCounter, metrics http.Handler, logger *zap.Logger) *Server {
	s := &Server{
		catalog:     cat,
		validate:    validator.New(),
		rooms:       rooms,
		connections: connections,
		metrics:     metrics,
		logger:      logger.Named("api"),
		started:     time.Now(),
		router:      http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Handle("/api/sessions", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleSessions))))
	s.router.Handle("/api/rooms", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRooms))))
	s.router.Handle("/api/rooms/", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.handleRoomByID))))
	s.router.Handle("/health", s.corsMiddleware(s.jsonMiddleware(http.HandlerFunc(s.healthCheck))))
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics)
	}
}

// Mount adds a handler outside the JSON middleware, e.g. the websocket endpoint.
func (s *Server) Mount(pattern string, handler http.Handler) {
	s.router.Handle(pattern, handler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type CreateSessionRequest struct {
	ID        string     `json:"id,omitempty" validate:"omitempty,max=128"`
	CourseID  string     `json:"course_id" validate:"required,max=128"`
	TutorID   string     `json:"tutor_id,omitempty" validate:"max=128"`
	URL       string     `json:"url" validate:"required,url"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

type CreateSessionResponse struct {
	Session *catalog.VideoSession `json:"session"`
}

type ListRoomsResponse struct {
	Rooms []room.Info `json:"rooms"`
}

type RoomResponse struct {
	Room     room.Info        `json:"room"`
	Messages []*types.Message `json:"messages"`
}

type HealthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Catalog     string         `json:"catalog"`
	Breaker     string         `json:"breaker,omitempty"`
	Connections int            `json:"connections"`
	Rooms       room.Stats     `json:"rooms"`
	System      map[string]any `json:"system"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// POST /api/sessions registers a video session so chat rooms can be joined for it.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.createSession(w, r)
	default:
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	writer, ok := s.catalog.(catalog.SessionWriter)
	if !ok {
		s.sendError(w, "Session catalog is read-only", http.StatusNotImplemented)
		return
	}

	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		s.sendError(w, "Invalid session: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.StartTime != nil && req.EndTime != nil && req.EndTime.Before(*req.StartTime) {
		s.sendError(w, "end_time is before start_time", http.StatusBadRequest)
		return
	}

	session := &catalog.VideoSession{
		ID:       req.ID,
		CourseID: req.CourseID,
		TutorID:  req.TutorID,
		URL:      req.URL,
		EndTime:  req.EndTime,
	}
	if req.StartTime != nil {
		session.StartTime = req.StartTime.UTC()
	}

	if err := writer.RegisterSession(r.Context(), session); err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidSession):
			s.sendError(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, catalog.ErrReadOnly):
			s.sendError(w, "Session catalog is read-only", http.StatusNotImplemented)
		default:
			s.logger.Error("failed to register session", zap.Error(err))
			s.sendError(w, "Failed to register session", http.StatusInternalServerError)
		}
		return
	}

	s.logger.Info("session registered", zap.String("session_id", session.ID), zap.String("course_id", session.CourseID))
	s.writeJSON(w, http.StatusCreated, CreateSessionResponse{Session: session})
}

// GET /api/rooms
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.writeJSON(w, http.StatusOK, ListRoomsResponse{Rooms: s.rooms.Snapshot()})
}

// GET /api/rooms/{id}
func (s *Server) handleRoomByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/rooms/"), "/")[0]
	if sessionID == "" {
		s.sendError(w, "Session ID required", http.StatusBadRequest)
		return
	}

	info, ok := s.rooms.Room(sessionID)
	if !ok {
		s.sendError(w, "Room not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, RoomResponse{Room: info, Messages: s.rooms.GetHistory(sessionID)})
}

// GET /health returns 503 when the catalog cannot be reached.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:      "healthy",
		Timestamp:   time.Now().UTC(),
		Catalog:     "healthy",
		Connections: s.connections.ConnectionCount(),
		Rooms:       s.rooms.Stats(),
		System:      s.systemInfo(),
	}

	if err := s.catalog.HealthCheck(ctx); err != nil {
		response.Status = "unhealthy"
		response.Catalog = "error: " + err.Error()
		s.logger.Warn("catalog health check failed", zap.Error(err))
	}
	if b, ok := s.catalog.(breakerState); ok {
		response.Breaker = b.State()
	}

	code := http.StatusOK
	if response.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	s.writeJSON(w, code, response)
}

func (s *Server) systemInfo() map[string]any {
	info := map[string]any{
		"goroutines":     runtime.NumGoroutine(),
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return info
	}
	if mem, err := p.MemoryInfo(); err == nil {
		info["rss_bytes"] = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		info["cpu_percent"] = cpu
	}
	return info
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("failed to write response", zap.Error(err))
	}
}

// FUNCTIONAL DISCOVERY: Consistent error response format
func (s *Server) sendError(w http.ResponseWriter, message string, code int) {
	s.writeJSON(w, code, ErrorResponse{
		Error:   http.StatusText(code),
		Code:    code,
		Message: message,
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}
