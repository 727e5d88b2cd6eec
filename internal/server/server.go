package server

import (
	"context"
	"encoding/json"
	"maps"
	"net"
	"net/http"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/tabletop/internal/config"
	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/game"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/internal/core/piece/traits"
	"github.com/zeusync/tabletop/internal/core/storage/interfaces"
)

const defaultRoom = "general"

var roomPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server relays piece commands between the players of each room over
// websockets and journals them.
type Server struct {
	cfg     config.Config
	journal interfaces.Journal
	catalog *piece.Catalog
	setup   []game.Entry
	auth    *TokenAuth
	logger  log.Log
	events  bus.EventBus

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	rooms map[string]*Room
	wg    sync.WaitGroup

	faults  atomic.Int64
	running atomic.Bool
	closed  atomic.Bool
	httpSrv *http.Server
}

// New builds a server. A nil module starts every room empty.
func New(cfg config.Config, journal interfaces.Journal, module *game.Module, logger log.Log, events bus.EventBus) (*Server, error) {
	catalog := traits.NewCatalog()
	var setup []game.Entry
	if module != nil {
		module.Apply(catalog)
		setup = module.Setup()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		journal: journal,
		catalog: catalog,
		setup:   setup,
		auth:    NewTokenAuth(cfg.Server.Token),
		logger:  logger.Named("server"),
		events:  events,
		ctx:     ctx,
		cancel:  cancel,
		rooms:   make(map[string]*Room),
	}
	if _, err := events.Subscribe(game.EventPieceFault, func(bus.Event) error {
		s.faults.Add(1)
		return nil
	}); err != nil {
		cancel()
		return nil, errors.Wrap(err, "subscribe to faults")
	}
	return s, nil
}

// Handler returns the HTTP handler serving the websocket and health endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return logRequests(mux, s.logger)
}

// Run serves until Shutdown is called.
func (s *Server) Run() error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.httpSrv = &http.Server{
		Addr:        s.cfg.Server.Addr(),
		Handler:     s.Handler(),
		BaseContext: func(net.Listener) context.Context { return s.ctx },
	}
	srv := s.httpSrv
	s.mu.Unlock()

	s.logger.Info("Server listening", log.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "listen")
	}
	return nil
}

// Shutdown stops accepting connections, stops every room and waits for
// them to write their final snapshots.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrServerClosed
	}

	s.mu.Lock()
	srv := s.httpSrv
	s.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Wrap(ctx.Err(), "waiting for rooms")
	}
	s.logger.Info("Server stopped", log.Error(err))
	return err
}

func (s *Server) room(id string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Load() {
		return nil, ErrServerClosed
	}
	if r, ok := s.rooms[id]; ok {
		return r, nil
	}

	session := game.NewSession(s.catalog,
		game.WithName(id),
		game.WithLogger(s.logger),
		game.WithEventBus(s.events),
		game.WithLanguage(s.cfg.Game.LanguageTag()),
		game.WithHistoryLimit(s.cfg.Game.HistoryLimit),
	)
	r, err := openRoom(s.ctx, id, session, s.journal, s.setup, s.cfg.Server.SnapshotEvery, s.logger)
	if err != nil {
		return nil, err
	}
	s.rooms[id] = r
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		r.Run(s.ctx)
	}()
	return r, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Authenticate(r); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	roomID := r.URL.Query().Get("room")
	if roomID == "" {
		roomID = defaultRoom
	}
	if !roomPattern.MatchString(roomID) {
		http.Error(w, ErrInvalidRoom.Error(), http.StatusBadRequest)
		return
	}

	room, err := s.room(roomID)
	if err != nil {
		s.logger.Error("Room unavailable", log.String("room", roomID), log.Error(err))
		http.Error(w, "room unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Info("Websocket upgrade failed", log.Error(err))
		return
	}

	c := newClient(uuid.NewString(), conn, room, s.cfg.Server.CommandRate, s.logger)
	if err := room.Join(c); err != nil {
		_ = conn.Close()
		return
	}
	go c.writePump()
	c.readPump(s.cfg.Server.ReadLimit)
}

type health struct {
	Status string   `json:"status"`
	Rooms  []string `json:"rooms"`
	Faults int64    `json:"faults"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := health{Status: "ok", Rooms: s.Rooms(), Faults: s.faults.Load()}
	if s.closed.Load() {
		h.Status = "stopping"
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h); err != nil {
		s.logger.Debug("Health response failed", log.Error(err))
	}
}

// Rooms lists the rooms opened since start, sorted.
func (s *Server) Rooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.rooms))
}
