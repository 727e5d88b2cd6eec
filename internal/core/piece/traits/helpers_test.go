package traits

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// nest composes layers the way a piece encodes them, innermost last.
func nest(layers ...string) string {
	out := layers[len(layers)-1]
	for i := len(layers) - 2; i >= 0; i-- {
		out = encoding.NewSequenceEncoderWith(layers[i], '\t').Append(out).Value()
	}
	return out
}

func layer(t piece.Trait) string {
	return t.Tag() + ";" + t.EncodeType()
}

// world is a command target over a registry, enough to replay commands the
// way a game session does.
type world struct {
	t       *testing.T
	catalog *piece.Catalog
	reg     *piece.Registry
}

func newWorld(t *testing.T) *world {
	return &world{t: t, catalog: NewCatalog(), reg: piece.NewRegistry(language.English)}
}

func (w *world) add(id, pieceType string) *piece.Piece {
	w.t.Helper()
	require.NoError(w.t, w.AddPiece(id, pieceType, ""))
	p, _ := w.reg.Lookup(id)
	return p
}

func (w *world) AddPiece(id, pieceType, state string) error {
	if _, ok := w.reg.Lookup(id); ok {
		return fmt.Errorf("piece %q exists", id)
	}
	p, err := w.catalog.Build(id, pieceType, w.reg)
	if err != nil {
		return err
	}
	w.reg.Add(p)
	if state == "" {
		return p.Link()
	}
	return p.SetState(state)
}

func (w *world) RemovePiece(id string) error {
	p, ok := w.reg.Lookup(id)
	if !ok {
		return fmt.Errorf("piece %q missing", id)
	}
	p.Detach()
	w.reg.Remove(id)
	return nil
}

func (w *world) SetPieceState(id, state string) error {
	p, ok := w.reg.Lookup(id)
	if !ok {
		return fmt.Errorf("piece %q missing", id)
	}
	return p.SetState(state)
}

func (w *world) PieceState(id string) (string, bool) {
	p, ok := w.reg.Lookup(id)
	if !ok {
		return "", false
	}
	return p.State(), true
}
