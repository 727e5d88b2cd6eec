package piece

import "github.com/zeusync/tabletop/internal/core/command"

// ChangeTracker snapshots a piece's state so a mutation can be turned into
// a ChangePiece command.
type ChangeTracker struct {
	piece  *Piece
	before string
}

// Track remembers the current state of p.
func Track(p *Piece) *ChangeTracker {
	return &ChangeTracker{piece: p, before: p.State()}
}

// Changed reports whether the state differs from the tracked one.
func (t *ChangeTracker) Changed() bool {
	return t.piece.State() != t.before
}

// Command returns the ChangePiece for everything that changed since Track,
// or nil when nothing did.
func (t *ChangeTracker) Command() command.Command {
	after := t.piece.State()
	if after == t.before {
		return nil
	}
	return command.ChangePiece{ID: t.piece.ID(), OldState: t.before, NewState: after}
}
