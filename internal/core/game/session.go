package game

import (
	"iter"
	"maps"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/internal/core/piece/traits"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// Event types published by a session.
const (
	EventPieceFault   = "piece.fault"
	EventPieceChanged = "piece.changed"
)

// Session owns the pieces of one game. It is the registry pieces resolve
// each other through and the target commands are executed against.
//
// A Session is not safe for concurrent use; the owner confines it to a
// single goroutine.
type Session struct {
	name    string
	catalog *piece.Catalog
	pieces  map[string]*piece.Piece
	history *command.History
	// historyLimit survives Reset.
	historyLimit int
	printer      *message.Printer

	logger log.Log
	events bus.EventBus
	newID  func() string

	matSupport bool
}

// Option configures a Session.
type Option func(*Session)

// WithName names the session in logs and events.
func WithName(name string) Option {
	return func(s *Session) { s.name = name }
}

// WithLogger sets the session logger. The default discards everything.
func WithLogger(logger log.Log) Option {
	return func(s *Session) { s.logger = logger }
}

// WithEventBus sets the bus piece and fault events are published on.
func WithEventBus(events bus.EventBus) Option {
	return func(s *Session) { s.events = events }
}

// WithLanguage sets the language localized properties are formatted in.
func WithLanguage(tag language.Tag) Option {
	return func(s *Session) { s.printer = message.NewPrinter(tag) }
}

// WithHistoryLimit bounds the undo history; zero keeps everything.
func WithHistoryLimit(limit int) Option {
	return func(s *Session) { s.historyLimit = limit }
}

// WithIDGenerator replaces uuid.NewString for new piece identifiers.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) { s.newID = gen }
}

// NewSession returns an empty session. A nil catalog means the built-in
// trait catalog.
func NewSession(catalog *piece.Catalog, opts ...Option) *Session {
	if catalog == nil {
		catalog = traits.NewCatalog()
	}
	s := &Session{
		name:    "default",
		catalog: catalog,
		pieces:  make(map[string]*piece.Piece),
		printer: message.NewPrinter(language.English),
		logger:  log.NewNop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.history = command.NewHistory(s.historyLimit)
	s.logger = s.logger.With(log.String("session", s.name))
	return s
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// Catalog returns the trait catalog pieces are built from.
func (s *Session) Catalog() *piece.Catalog { return s.catalog }

// Len is the number of pieces in the game.
func (s *Session) Len() int { return len(s.pieces) }

// MatSupport reports whether any piece so far carried a mat trait.
func (s *Session) MatSupport() bool { return s.matSupport }

// Lookup implements piece.Env.
func (s *Session) Lookup(id string) (*piece.Piece, bool) {
	p, ok := s.pieces[id]
	return p, ok
}

// IDs returns every piece identifier in sorted order.
func (s *Session) IDs() []string {
	return slices.Sorted(maps.Keys(s.pieces))
}

// Pieces implements piece.Env. Pieces are yielded in identifier order.
func (s *Session) Pieces() iter.Seq[*piece.Piece] {
	return func(yield func(*piece.Piece) bool) {
		for _, id := range s.IDs() {
			if !yield(s.pieces[id]) {
				return
			}
		}
	}
}

// Printer formats localized properties.
func (s *Session) Printer() *message.Printer { return s.printer }

// NewPieceID implements piece.IDSource.
func (s *Session) NewPieceID() string {
	for {
		id := s.newID()
		if _, taken := s.pieces[id]; !taken {
			return id
		}
	}
}

// AddPiece implements command.Target. Decoding problems are reported and
// never prevent the piece from being added.
func (s *Session) AddPiece(id, pieceType, state string) error {
	if _, ok := s.pieces[id]; ok {
		return errors.Wrapf(ErrPieceExists, "add %q", id)
	}
	p, err := s.build(id, pieceType)
	if err != nil {
		return err
	}
	s.pieces[id] = p
	s.report(p.SetState(state))
	return nil
}

func (s *Session) build(id, pieceType string) (*piece.Piece, error) {
	if id == "" {
		return nil, errors.Wrap(command.ErrMalformedCommand, "empty piece id")
	}
	p, err := s.catalog.Build(id, pieceType, s)
	if p == nil {
		return nil, errors.Wrapf(err, "build %q", id)
	}
	s.report(err)
	if traits.IsMatRelated(p) {
		s.matSupport = true
	}
	return p, nil
}

// RemovePiece implements command.Target.
func (s *Session) RemovePiece(id string) error {
	p, ok := s.pieces[id]
	if !ok {
		return errors.Wrapf(ErrUnknownPiece, "remove %q", id)
	}
	p.Detach()
	delete(s.pieces, id)
	return nil
}

// SetPieceState implements command.Target.
func (s *Session) SetPieceState(id, state string) error {
	p, ok := s.pieces[id]
	if !ok {
		return errors.Wrapf(ErrUnknownPiece, "set state of %q", id)
	}
	s.report(p.SetState(state))
	return nil
}

// PieceState implements command.Target.
func (s *Session) PieceState(id string) (string, bool) {
	p, ok := s.pieces[id]
	if !ok {
		return "", false
	}
	return p.State(), true
}

// Execute applies cmd and records it for undo.
func (s *Session) Execute(cmd command.Command) error {
	if cmd == nil {
		return nil
	}
	if err := cmd.Execute(s); err != nil {
		return errors.Wrap(err, "execute")
	}
	s.history.Record(cmd)
	s.changed(cmd)
	return nil
}

// Apply applies cmd without recording it, for commands replayed from a
// journal or received from another player.
func (s *Session) Apply(cmd command.Command) error {
	if cmd == nil {
		return nil
	}
	if err := cmd.Execute(s); err != nil {
		return errors.Wrap(err, "apply")
	}
	s.changed(cmd)
	return nil
}

// Record stores a command whose effects were already applied to the pieces,
// such as the ones returned by the trait helpers.
func (s *Session) Record(cmd command.Command) {
	if cmd == nil {
		return
	}
	s.history.Record(cmd)
	s.changed(cmd)
}

// Undo reverses the last executed command and returns what it applied.
func (s *Session) Undo() (command.Command, error) {
	cmd, err := s.history.Undo()
	if err != nil {
		return nil, err
	}
	if err := cmd.Execute(s); err != nil {
		s.history.Rollback(true)
		return nil, errors.Wrap(err, "undo")
	}
	s.changed(cmd)
	return cmd, nil
}

// Redo re-applies the last undone command and returns it.
func (s *Session) Redo() (command.Command, error) {
	cmd, err := s.history.Redo()
	if err != nil {
		return nil, err
	}
	if err := cmd.Execute(s); err != nil {
		s.history.Rollback(false)
		return nil, errors.Wrap(err, "redo")
	}
	s.changed(cmd)
	return cmd, nil
}

// CanUndo reports whether Undo has anything to reverse.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo has anything to replay.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// KeyEvent offers stroke to piece id. Traits mutate the piece as they
// handle it; the command they return is recorded without re-applying
// the state changes, but piece additions and removals are carried out.
func (s *Session) KeyEvent(id string, stroke encoding.NamedKeyStroke) (command.Command, error) {
	p, ok := s.pieces[id]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownPiece, "key event on %q", id)
	}
	out := p.KeyEvent(stroke)
	if out == nil {
		return nil, nil
	}
	for _, sub := range command.Flatten(out) {
		if _, isChange := sub.(command.ChangePiece); isChange {
			continue
		}
		if err := sub.Execute(s); err != nil {
			return nil, errors.Wrap(err, "key event")
		}
	}
	s.Record(out)
	return out, nil
}

// Checksum hashes every piece's identifier, type and state in identifier
// order. Two sessions with the same checksum hold the same game.
func (s *Session) Checksum() uint64 {
	h := xxhash.New()
	for _, id := range s.IDs() {
		p := s.pieces[id]
		for _, part := range []string{id, p.Type(), p.State()} {
			_, _ = h.WriteString(part)
			_, _ = h.Write([]byte{0})
		}
	}
	return h.Sum64()
}

// Reset removes every piece and forgets the history.
func (s *Session) Reset() {
	s.pieces = make(map[string]*piece.Piece)
	s.history = command.NewHistory(s.historyLimit)
	s.matSupport = false
}
