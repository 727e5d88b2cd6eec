package game

import (
	"context"

	"github.com/pkg/errors"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/internal/core/piece/traits"
)

// Entry is one saved piece.
type Entry struct {
	ID    string `yaml:"id" json:"id"`
	Type  string `yaml:"type" json:"type"`
	State string `yaml:"state,omitempty" json:"state,omitempty"`
}

// Load adds a batch of pieces in two phases: every piece is built and
// registered first, then states are applied, so references between pieces
// of the batch resolve regardless of their order. It returns the number of
// faults reported along the way.
//
// A duplicate identifier or a context cancelled while building rolls the
// whole batch back. Cancellation while applying states keeps the pieces
// whose state was applied and removes the others.
func (s *Session) Load(ctx context.Context, entries []Entry) (int, error) {
	built := make([]*piece.Piece, 0, len(entries))
	rollback := func() {
		for _, p := range built {
			delete(s.pieces, p.ID())
		}
	}

	faults := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			rollback()
			return faults, errors.Wrap(err, "load")
		}
		if e.ID == "" {
			rollback()
			return faults, errors.Wrap(command.ErrMalformedCommand, "load: empty piece id")
		}
		if _, ok := s.pieces[e.ID]; ok {
			rollback()
			return faults, errors.Wrapf(ErrPieceExists, "load %q", e.ID)
		}
		p, err := s.catalog.Build(e.ID, e.Type, s)
		if p == nil {
			rollback()
			return faults, errors.Wrapf(err, "load %q", e.ID)
		}
		faults += s.report(err)
		s.pieces[e.ID] = p
		built = append(built, p)
	}

	for i, p := range built {
		if err := ctx.Err(); err != nil {
			for _, rest := range built[i:] {
				rest.Detach()
				delete(s.pieces, rest.ID())
			}
			return faults, errors.Wrap(err, "load states")
		}
		faults += s.report(p.SetState(entries[i].State))
	}
	for _, p := range built {
		if traits.IsMatRelated(p) {
			s.matSupport = true
			break
		}
	}

	s.logger.Info("Pieces loaded", log.Int("pieces", len(built)), log.Int("faults", faults))
	return faults, nil
}

// Save returns every piece in identifier order.
func (s *Session) Save() []Entry {
	out := make([]Entry, 0, len(s.pieces))
	for p := range s.Pieces() {
		out = append(out, Entry{ID: p.ID(), Type: p.Type(), State: p.State()})
	}
	return out
}

// SaveCommand returns a command that recreates the whole game, or nil for an
// empty session.
func (s *Session) SaveCommand() command.Command {
	var cmds []command.Command
	for _, e := range s.Save() {
		cmds = append(cmds, command.AddPiece{ID: e.ID, Type: e.Type, State: e.State})
	}
	return command.Merge(cmds...)
}

// Restore replaces the game with the one encoded by SaveCommand. A failed
// restore leaves the previous game and history in place.
func (s *Session) Restore(ctx context.Context, encoded string) (int, error) {
	cmd, err := command.Decode(encoded)
	if err != nil {
		return 0, errors.Wrap(err, "restore")
	}
	var entries []Entry
	for _, sub := range command.Flatten(cmd) {
		add, ok := sub.(command.AddPiece)
		if !ok {
			return 0, errors.Wrapf(ErrNotSetup, "restore: %T", sub)
		}
		entries = append(entries, Entry{ID: add.ID, Type: add.Type, State: add.State})
	}
	prevPieces, prevHistory, prevMat := s.pieces, s.history, s.matSupport
	s.Reset()
	faults, err := s.Load(ctx, entries)
	if err != nil {
		for _, p := range s.pieces {
			p.Detach()
		}
		s.pieces, s.history, s.matSupport = prevPieces, prevHistory, prevMat
		return faults, err
	}
	return faults, nil
}

// RefreshPrototypes rebuilds every piece that uses a prototype so it picks up
// the current definitions, keeping its state. It returns the number of
// faults reported.
func (s *Session) RefreshPrototypes(ctx context.Context) (int, error) {
	type rebuilt struct {
		old, fresh *piece.Piece
		state      string
	}
	var todo []rebuilt
	faults := 0
	for p := range s.Pieces() {
		if !usesPrototype(p) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return faults, errors.Wrap(err, "refresh prototypes")
		}
		fresh, err := s.catalog.Build(p.ID(), p.Type(), s)
		if fresh == nil {
			return faults, errors.Wrapf(err, "refresh %q", p.ID())
		}
		faults += s.report(err)
		todo = append(todo, rebuilt{old: p, fresh: fresh, state: p.State()})
	}

	for _, r := range todo {
		r.old.Detach()
		s.pieces[r.fresh.ID()] = r.fresh
	}
	for _, r := range todo {
		faults += s.report(r.fresh.SetState(r.state))
	}
	if len(todo) > 0 {
		s.logger.Info("Prototypes refreshed", log.Int("pieces", len(todo)), log.Int("faults", faults))
	}
	return faults, nil
}

func usesPrototype(p *piece.Piece) bool {
	_, _, ok := piece.Find[*piece.UsePrototype](p)
	return ok
}
