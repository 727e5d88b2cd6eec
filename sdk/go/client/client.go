// Package client connects to a tabletop relay server and keeps a local
// replica of one room's game.
package client

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/game"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/internal/server"
)

// Config configures a Client.
type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL      string
	Room           string
	Token          string
	ConnectTimeout time.Duration
	LogLevel       log.Level
}

// DefaultClientConfig connects to a local server's general room.
func DefaultClientConfig() Config {
	return Config{
		ServerURL:      "ws://localhost:8080/ws",
		Room:           "general",
		ConnectTimeout: 30 * time.Second,
		LogLevel:       log.LevelInfo,
	}
}

// EventType names a client event.
type EventType string

const (
	EventTypeConnected    EventType = "connected"
	EventTypeDisconnected EventType = "disconnected"
	// EventTypeSynced follows every full game received from the server.
	EventTypeSynced EventType = "synced"
	// EventTypeRemoteCommand follows a command of another player.
	EventTypeRemoteCommand EventType = "remote_command"
	// EventTypeDesync reports a checksum mismatch; a resync is requested.
	EventTypeDesync EventType = "desync"
	EventTypeError  EventType = "error"
)

// Event is delivered to the handlers registered with OnEvent.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Seq       uint64
	Command   command.Command
	Error     error
}

// EventHandler receives client events.
type EventHandler func(event Event)

// Client mirrors the game of one room. Local commands are applied
// immediately and sent to the server; commands of other players are applied
// as they arrive. A checksum mismatch triggers a full resync.
type Client struct {
	config  Config
	catalog *piece.Catalog
	logger  log.Log

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu      sync.Mutex
	session *game.Session
	seq     uint64

	handlerMutex  sync.RWMutex
	eventHandlers map[EventType][]EventHandler

	connected atomic.Bool
	closed    atomic.Bool
	done      chan struct{}
}

// NewClient returns an unconnected client. The catalog must know every
// trait and prototype the room uses; nil means the built-in traits.
func NewClient(config Config, catalog *piece.Catalog) *Client {
	return &Client{
		config:        config,
		catalog:       catalog,
		logger:        log.New(config.LogLevel).With(log.String("component", "client"), log.String("room", config.Room)),
		session:       game.NewSession(catalog, game.WithName(config.Room)),
		eventHandlers: make(map[EventType][]EventHandler),
		done:          make(chan struct{}),
	}
}

// Connect dials the server and waits for the initial game.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	if c.connected.Load() {
		return ErrAlreadyConnected
	}

	u, err := url.Parse(c.config.ServerURL)
	if err != nil || c.config.Room == "" {
		return errors.Wrapf(ErrInvalidConfig, "server %q room %q", c.config.ServerURL, c.config.Room)
	}
	q := u.Query()
	q.Set("room", c.config.Room)
	u.RawQuery = q.Encode()
	header := http.Header{}
	if c.config.Token != "" {
		header.Set("Authorization", "Bearer "+c.config.Token)
	}

	if c.config.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ConnectTimeout)
		defer cancel()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return errors.Wrap(err, "dial")
	}

	var first server.Envelope
	if err := conn.ReadJSON(&first); err != nil {
		_ = conn.Close()
		return errors.Wrap(err, "read initial game")
	}
	if first.Kind != server.KindSync {
		_ = conn.Close()
		return errors.Wrapf(ErrUnexpectedFrame, "%q before sync", first.Kind)
	}
	if err := c.resync(first); err != nil {
		_ = conn.Close()
		return err
	}

	c.conn = conn
	c.connected.Store(true)
	go c.readLoop()

	c.logger.Info("Connected to server", log.String("url", u.Redacted()), log.Uint64("seq", first.Seq))
	c.emitEvent(Event{Type: EventTypeConnected, Seq: first.Seq})
	return nil
}

// Close disconnects and stops the client for good.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}
	if !c.connected.Load() {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

// Execute applies cmd locally, records it for undo and sends it.
func (c *Client) Execute(cmd command.Command) error {
	return c.Do(func(s *game.Session) (command.Command, error) {
		if err := s.Execute(cmd); err != nil {
			return nil, err
		}
		return cmd, nil
	})
}

// Do runs fn against the local game and sends the command it returns.
// Use it with the trait helpers, which change pieces directly:
//
//	c.Do(func(s *game.Session) (command.Command, error) {
//		p, _ := s.Lookup("counter")
//		cmd := traits.MoveTo(p, "main", 3, 4)
//		s.Record(cmd)
//		return cmd, nil
//	})
func (c *Client) Do(fn func(s *game.Session) (command.Command, error)) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.mu.Lock()
	cmd, err := fn(c.session)
	c.mu.Unlock()
	if err != nil || cmd == nil {
		return err
	}
	return c.send(cmd)
}

// Undo reverses the last local command and sends the reversal.
func (c *Client) Undo() error {
	return c.Do(func(s *game.Session) (command.Command, error) { return s.Undo() })
}

// Redo replays the last undone command and sends it.
func (c *Client) Redo() error {
	return c.Do(func(s *game.Session) (command.Command, error) { return s.Redo() })
}

// View gives fn read access to the local game.
func (c *Client) View(fn func(s *game.Session)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.session)
}

// Seq is the last journal position confirmed by the server.
func (c *Client) Seq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Sync asks the server for the full game.
func (c *Client) Sync() error {
	return c.write(server.Envelope{Kind: server.KindSync})
}

// OnEvent registers handler for eventType.
func (c *Client) OnEvent(eventType EventType, handler EventHandler) {
	c.handlerMutex.Lock()
	defer c.handlerMutex.Unlock()
	c.eventHandlers[eventType] = append(c.eventHandlers[eventType], handler)
}

func (c *Client) send(cmd command.Command) error {
	payload, err := command.Encode(cmd)
	if err != nil {
		return err
	}
	return c.write(server.Envelope{Kind: server.KindCommand, Payload: payload})
}

func (c *Client) write(env server.Envelope) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return errors.Wrap(c.conn.WriteJSON(env), "send")
}

func (c *Client) readLoop() {
	defer func() {
		c.connected.Store(false)
		close(c.done)
		c.emitEvent(Event{Type: EventTypeDisconnected})
	}()
	for {
		var env server.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if !c.closed.Load() {
				c.logger.Warn("Connection lost", log.Error(err))
			}
			return
		}
		c.handle(env)
	}
}

func (c *Client) handle(env server.Envelope) {
	switch env.Kind {
	case server.KindSync:
		if err := c.resync(env); err != nil {
			c.emitEvent(Event{Type: EventTypeError, Error: err})
			return
		}
		c.emitEvent(Event{Type: EventTypeSynced, Seq: env.Seq})
	case server.KindAck:
		c.confirm(env, nil)
	case server.KindCommand:
		cmd, err := command.Decode(env.Payload)
		if err == nil {
			c.mu.Lock()
			err = c.session.Apply(cmd)
			c.mu.Unlock()
		}
		if err != nil {
			c.logger.Warn("Remote command failed", log.Uint64("seq", env.Seq), log.Error(err))
		}
		c.confirm(env, cmd)
	case server.KindError:
		c.emitEvent(Event{Type: EventTypeError, Error: errors.Wrap(ErrRejected, env.Payload)})
		// The local replica already holds the rejected change.
		_ = c.Sync()
	default:
		c.emitEvent(Event{Type: EventTypeError, Error: errors.Wrapf(ErrUnexpectedFrame, "%q", env.Kind)})
	}
}

// confirm advances the sequence and requests a resync when the local game
// no longer matches the server's.
func (c *Client) confirm(env server.Envelope, remote command.Command) {
	c.mu.Lock()
	c.seq = env.Seq
	match := c.session.Checksum() == env.Checksum
	c.mu.Unlock()

	if remote != nil {
		c.emitEvent(Event{Type: EventTypeRemoteCommand, Seq: env.Seq, Command: remote})
	}
	if !match {
		c.logger.Info("Checksum mismatch, resyncing", log.Uint64("seq", env.Seq))
		c.emitEvent(Event{Type: EventTypeDesync, Seq: env.Seq})
		if err := c.Sync(); err != nil {
			c.logger.Warn("Resync request failed", log.Error(err))
		}
	}
}

func (c *Client) resync(env server.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.session.Restore(context.Background(), env.Payload); err != nil {
		return errors.Wrap(err, "restore game")
	}
	c.seq = env.Seq
	return nil
}

func (c *Client) emitEvent(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	c.handlerMutex.RLock()
	handlers := c.eventHandlers[event.Type]
	c.handlerMutex.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}
