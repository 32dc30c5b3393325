// Package server exposes the chip tracker over HTTP. The server is the
// single authoritative writer for every room it hosts; spectators observe
// whole-state snapshots over WebSocket and never mutate anything.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chiptally/internal/engine"
	"chiptally/internal/room"
	"chiptally/internal/session"
	"chiptally/internal/store"
)

// Server hosts rooms and their spectator hubs.
type Server struct {
	logger   *log.Logger
	zlog     zerolog.Logger
	store    store.Store
	clock    quartz.Clock
	codes    *room.Generator
	defaults engine.Settings
	upgrader websocket.Upgrader
	router   chi.Router

	mu    sync.RWMutex
	rooms map[string]*Room
}

// Room pairs a session with its spectator hub.
type Room struct {
	Code    string
	Session *session.Session
	Hub     *Hub
}

// Option configures a Server.
type Option func(*Server)

// WithClock injects the clock used by sessions and spectator pings.
func WithClock(clock quartz.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

// WithCodeGenerator injects the room-code generator.
func WithCodeGenerator(g *room.Generator) Option {
	return func(s *Server) { s.codes = g }
}

// WithRequestLogger injects the structured logger for HTTP requests.
func WithRequestLogger(zlog zerolog.Logger) Option {
	return func(s *Server) { s.zlog = zlog }
}

// New creates a server over the given snapshot store. defaults supplies the
// table settings for rooms created without explicit ones.
func New(logger *log.Logger, st store.Store, defaults engine.Settings, opts ...Option) *Server {
	s := &Server{
		logger:   logger.WithPrefix("server"),
		zlog:     zerolog.Nop(),
		store:    st,
		clock:    quartz.NewReal(),
		defaults: defaults,
		rooms:    make(map[string]*Room),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Spectator sockets are read-only; any origin may watch.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.codes == nil {
		s.codes = room.NewGenerator(nil)
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP handler, mountable in tests via httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)

		s.mu.Lock()
		for _, rm := range s.rooms {
			rm.Hub.Close()
		}
		s.mu.Unlock()
	}()

	s.logger.Info("listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.zlog))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Post("/rooms", s.handleCreateRoom)
		r.Route("/rooms/{code}", func(r chi.Router) {
			r.Get("/", s.handleGetRoom)
			r.Delete("/", s.handleDeleteRoom)
			r.Post("/actions", s.handleAction)
			r.Post("/winners", s.handleWinners)
			r.Post("/next", s.handleNextGame)
			r.Post("/undo", s.handleUndo)
			r.Get("/ws", s.handleSpectate)
		})
	})
	return r
}

// requestLogger emits one structured log line per request.
func requestLogger(zlog zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			zlog.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

type roomResponse struct {
	Code             string              `json:"code"`
	State            *engine.GameState   `json:"state"`
	AvailableActions []engine.ActionType `json:"availableActions,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	settings := s.defaults
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid settings"})
			return
		}
	}
	if settings.PlayerCount < 2 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "at least 2 players required"})
		return
	}

	rm, err := s.createRoom(r.Context(), settings)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusCreated, roomResponse{
		Code:             rm.Code,
		State:            rm.Session.State(),
		AvailableActions: rm.Session.AvailableActions(),
	})
}

func (s *Server) createRoom(ctx context.Context, settings engine.Settings) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var code string
	for {
		code = s.codes.Generate()
		if _, taken := s.rooms[code]; !taken {
			break
		}
	}

	hub := NewHub(s.logger.With("room", code), s.clock)
	sess := session.New(code, s.logger,
		session.WithClock(s.clock),
		session.WithStore(s.store),
		session.WithBroadcaster(hub),
	)
	sess.Configure(settings)
	if err := sess.Start(ctx); err != nil {
		return nil, err
	}

	rm := &Room{Code: code, Session: sess, Hub: hub}
	s.rooms[code] = rm
	s.logger.Info("room created", "room", code, "players", settings.PlayerCount)
	return rm, nil
}

// lookup resolves a room code from the URL, or writes a 404.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *Room {
	code := room.Normalize(chi.URLParam(r, "code"))
	if err := room.Validate(code); err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown room"})
		return nil
	}

	s.mu.RLock()
	rm := s.rooms[code]
	s.mu.RUnlock()
	if rm == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown room"})
		return nil
	}
	return rm
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm := s.lookup(w, r)
	if rm == nil {
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{
		Code:             rm.Code,
		State:            rm.Session.State(),
		AvailableActions: rm.Session.AvailableActions(),
	})
}

func (s *Server) handleDeleteRoom(w http.ResponseWriter, r *http.Request) {
	rm := s.lookup(w, r)
	if rm == nil {
		return
	}

	s.mu.Lock()
	delete(s.rooms, rm.Code)
	s.mu.Unlock()

	rm.Hub.Close()
	rm.Session.Reset(r.Context())
	s.logger.Info("room closed", "room", rm.Code)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	rm := s.lookup(w, r)
	if rm == nil {
		return
	}

	var action engine.Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid action"})
		return
	}

	// Raises are pre-validated so the caller sees the reason; everything
	// else rides on the engine's silent no-op contract.
	if action.Type == engine.ActionRaise {
		state := rm.Session.State()
		if p := state.PlayerByID(action.PlayerID); p != nil {
			if err := engine.ValidateRaise(state, p, action.Amount); err != nil {
				writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
				return
			}
		}
	}

	if err := rm.Session.Act(r.Context(), action); err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{
		Code:             rm.Code,
		State:            rm.Session.State(),
		AvailableActions: rm.Session.AvailableActions(),
	})
}

func (s *Server) handleWinners(w http.ResponseWriter, r *http.Request) {
	rm := s.lookup(w, r)
	if rm == nil {
		return
	}

	var potWinners []engine.PotWinners
	if err := json.NewDecoder(r.Body).Decode(&potWinners); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid winners"})
		return
	}

	if err := rm.Session.SelectWinners(r.Context(), potWinners); err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{Code: rm.Code, State: rm.Session.State()})
}

func (s *Server) handleNextGame(w http.ResponseWriter, r *http.Request) {
	rm := s.lookup(w, r)
	if rm == nil {
		return
	}

	advanced, err := rm.Session.NextGame(r.Context())
	if err != nil {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}
	if !advanced {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "not enough funded players for another hand"})
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{
		Code:             rm.Code,
		State:            rm.Session.State(),
		AvailableActions: rm.Session.AvailableActions(),
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	rm := s.lookup(w, r)
	if rm == nil {
		return
	}

	if !rm.Session.Undo(r.Context()) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: "nothing to undo"})
		return
	}
	writeJSON(w, http.StatusOK, roomResponse{
		Code:             rm.Code,
		State:            rm.Session.State(),
		AvailableActions: rm.Session.AvailableActions(),
	})
}

func (s *Server) handleSpectate(w http.ResponseWriter, r *http.Request) {
	rm := s.lookup(w, r)
	if rm == nil {
		return
	}

	snapshot, err := store.EncodeState(rm.Session.State())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "snapshot failed"})
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	rm.Hub.Attach(ws, snapshot)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
