package piece

import (
	"errors"
	"iter"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// Env is what a piece needs from the game it lives in.
type Env interface {
	// Lookup resolves a piece identifier. It is the only way traits reach
	// other pieces.
	Lookup(id string) (*Piece, bool)
	// Pieces enumerates every piece in the game.
	Pieces() iter.Seq[*Piece]
	// Printer formats localized property values.
	Printer() *message.Printer
}

// IDSource is implemented by environments that can mint piece identifiers.
type IDSource interface {
	NewPieceID() string
}

var fallbackPrinter = message.NewPrinter(language.English)

// Piece is a game piece: a stable identifier and a chain of trait layers.
type Piece struct {
	id    string
	outer *Node
	env   Env
}

// ID returns the piece identifier.
func (p *Piece) ID() string { return p.id }

// Outermost returns the first layer.
func (p *Piece) Outermost() *Node { return p.outer }

// Env returns the environment the piece resolves references in.
func (p *Piece) Env() Env { return p.env }

// Type encodes the type of every layer.
func (p *Piece) Type() string { return p.outer.Type() }

// State encodes the state of every layer.
func (p *Piece) State() string { return p.outer.State() }

// Nodes walks the layers from the outside in.
func (p *Piece) Nodes() iter.Seq[*Node] { return p.outer.Walk() }

// Lookup resolves another piece through the environment.
func (p *Piece) Lookup(id string) (*Piece, bool) {
	if p.env == nil || id == "" {
		return nil, false
	}
	return p.env.Lookup(id)
}

// Pieces enumerates the pieces of the environment.
func (p *Piece) Pieces() iter.Seq[*Piece] {
	if p.env == nil {
		return func(func(*Piece) bool) {}
	}
	return p.env.Pieces()
}

// Printer returns the environment's printer, or an English one when the
// piece has no environment.
func (p *Piece) Printer() *message.Printer {
	if p.env != nil {
		if pr := p.env.Printer(); pr != nil {
			return pr
		}
	}
	return fallbackPrinter
}

// SetState decodes state into every layer, outer to inner, then lets each
// layer restore its relationships. Problems come back as joined faults and
// never stop the remaining layers from decoding.
func (p *Piece) SetState(state string) error {
	err := p.outer.decodeState(state)
	return stamp(errors.Join(err, p.Link()), p.id)
}

// Link runs every Linker hook, outer to inner.
func (p *Piece) Link() error {
	var errs []error
	for n := range p.Nodes() {
		l, ok := n.trait.(Linker)
		if !ok {
			continue
		}
		if err := l.Link(n); err != nil {
			errs = append(errs, linkFault(n, err))
		}
	}
	return stamp(errors.Join(errs...), p.id)
}

func linkFault(n *Node, err error) error {
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	kind := DecodeFault
	if errors.Is(err, ErrDangling) {
		kind = DanglingReference
	}
	return newFault(kind, n.trait.Tag(), n.trait.EncodeState(), err)
}

// Detach runs every Unlinker hook, outer to inner.
func (p *Piece) Detach() {
	for n := range p.Nodes() {
		if u, ok := n.trait.(Unlinker); ok {
			u.Unlink(n)
		}
	}
}

// Property resolves name from the outermost layer inwards.
func (p *Piece) Property(name string) (string, bool) {
	return p.outer.Property(name)
}

// LocalizedProperty is Property formatted for the environment's language.
func (p *Piece) LocalizedProperty(name string) (string, bool) {
	return p.outer.LocalizedProperty(name)
}

// PropertyNames lists every property a layer exposes.
func (p *Piece) PropertyNames() []string {
	return p.outer.PropertyNames()
}

// KeyCommands collects the key commands of every layer, outer first.
func (p *Piece) KeyCommands() []KeyCommand {
	var out []KeyCommand
	for n := range p.Nodes() {
		if kc, ok := n.trait.(KeyCommander); ok {
			out = append(out, kc.KeyCommands(n)...)
		}
	}
	return out
}

// KeyEvent offers stroke to every layer, outer first, and merges whatever
// commands they produce in that order.
func (p *Piece) KeyEvent(stroke encoding.NamedKeyStroke) command.Command {
	if stroke.IsNull() {
		return nil
	}
	var cmd command.Command
	for n := range p.Nodes() {
		if kc, ok := n.trait.(KeyCommander); ok {
			cmd = command.Merge(cmd, kc.KeyEvent(n, stroke))
		}
	}
	return cmd
}

// Find returns the outermost trait of type T on p.
func Find[T Trait](p *Piece) (T, *Node, bool) {
	var zero T
	if p == nil {
		return zero, nil, false
	}
	for n := range p.Nodes() {
		if t, ok := n.trait.(T); ok {
			return t, n, true
		}
	}
	return zero, nil, false
}

// Resolve looks id up from n's environment and finds trait T on it.
func Resolve[T Trait](n *Node, id string) (T, *Node, bool) {
	var zero T
	if n == nil || n.piece == nil {
		return zero, nil, false
	}
	other, ok := n.piece.Lookup(id)
	if !ok {
		return zero, nil, false
	}
	return Find[T](other)
}

// Equal reports whether a and b have the same chain of trait types.
func Equal(a, b *Piece) bool {
	if a == nil || b == nil {
		return a == b
	}
	nextA, stopA := iter.Pull(a.Nodes())
	defer stopA()
	nextB, stopB := iter.Pull(b.Nodes())
	defer stopB()
	for {
		na, okA := nextA()
		nb, okB := nextB()
		if !okA || !okB {
			return okA == okB
		}
		if na.trait.Tag() != nb.trait.Tag() || !na.trait.Equal(nb.trait) {
			return false
		}
	}
}
