package piece

import (
	"errors"
	"iter"
	"strings"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/pkg/encoding"
)

const (
	typeDelim  = ';'
	layerDelim = '\t'
)

// Trait is one layer of piece behavior. A trait owns its type configuration
// and its state; everything else is reached through the Node it sits in.
type Trait interface {
	// Tag identifies the trait in a layer type string ("tag;tokens").
	Tag() string
	EncodeType() string
	DecodeType(encoded string) error
	EncodeState() string
	DecodeState(n *Node, encoded string) error
	// Equal compares type configuration only.
	Equal(other Trait) bool
}

// PropertySource answers named property queries. Returning false passes the
// query to the next layer inward.
type PropertySource interface {
	Property(n *Node, name string) (string, bool)
}

// LocalizedPropertySource answers property queries formatted for the
// environment's language.
type LocalizedPropertySource interface {
	LocalizedProperty(n *Node, name string) (string, bool)
}

// KeyCommander contributes key commands and reacts to key strokes.
type KeyCommander interface {
	KeyCommands(n *Node) []KeyCommand
	KeyEvent(n *Node, stroke encoding.NamedKeyStroke) command.Command
}

// Linker restores cross-piece relationships after a state application.
type Linker interface {
	Link(n *Node) error
}

// Unlinker tears cross-piece relationships down when the piece leaves the
// game.
type Unlinker interface {
	Unlink(n *Node)
}

// PropertyNamer lists the property names a trait exposes.
type PropertyNamer interface {
	PropertyNames() []string
}

// expander is implemented by traits that carry an embedded sub-chain.
type expander interface {
	Expansion() *Node
}

// rawTyper is implemented by traits that keep their layer type verbatim.
type rawTyper interface {
	RawType() string
}

// KeyCommand is a menu entry contributed by a trait.
type KeyCommand struct {
	Name   string
	Stroke encoding.NamedKeyStroke
	Trait  string
}

// Node is one layer of a piece's chain. It owns its inner node; outer is a
// back link only. Expansion nodes of a prototype also point at the host
// node that embeds them.
type Node struct {
	trait Trait
	inner *Node
	outer *Node
	host  *Node
	piece *Piece
}

// Trait returns the trait behind this layer.
func (n *Node) Trait() Trait { return n.trait }

// Inner returns the next layer inwards, or nil at the leaf.
func (n *Node) Inner() *Node { return n.inner }

// Outer returns the enclosing layer, or nil at the outermost one.
func (n *Node) Outer() *Node { return n.outer }

// Piece returns the piece the layer belongs to.
func (n *Node) Piece() *Piece { return n.piece }

// IsLeaf reports whether n is the innermost layer.
func (n *Node) IsLeaf() bool { return n.inner == nil && n.host == nil }

// Outermost climbs outer links up to the top of the piece.
func (n *Node) Outermost() *Node {
	cur := n
	for cur.outer != nil {
		cur = cur.outer
	}
	return cur
}

func (n *Node) layerType() string {
	if rt, ok := n.trait.(rawTyper); ok {
		return rt.RawType()
	}
	return n.trait.Tag() + string(typeDelim) + n.trait.EncodeType()
}

// Type encodes this layer and everything inside it.
func (n *Node) Type() string {
	if n.inner == nil {
		return n.layerType()
	}
	return encoding.NewSequenceEncoderWith(n.layerType(), layerDelim).Append(n.inner.Type()).Value()
}

// State encodes the state of this layer and everything inside it.
func (n *Node) State() string {
	mine := n.trait.EncodeState()
	if n.inner == nil {
		return mine
	}
	return encoding.NewSequenceEncoderWith(mine, layerDelim).Append(n.inner.State()).Value()
}

func (n *Node) decodeState(state string) error {
	if n.inner == nil {
		return n.wrapStateErr(n.trait.DecodeState(n, state), state)
	}
	d := encoding.NewSequenceDecoder(state, layerDelim)
	mine := d.NextTokenOr("")
	rest := d.NextTokenOr("")
	err := n.wrapStateErr(n.trait.DecodeState(n, mine), mine)
	if d.HasMoreTokens() {
		err = errors.Join(err, newFault(DecodeFault, n.trait.Tag(), d.Remaining(), ErrTrailingTokens))
	}
	return errors.Join(err, n.inner.decodeState(rest))
}

func (n *Node) wrapStateErr(err error, tokens string) error {
	if err == nil {
		return nil
	}
	var f *Fault
	if errors.As(err, &f) {
		return err
	}
	return newFault(DecodeFault, n.trait.Tag(), tokens, err)
}

// Walk yields n and every node inside it, outer to inner. Prototype
// expansions are visited before the node that follows their host.
func (n *Node) Walk() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		cur := n
		for cur != nil {
			last := cur
			for c := cur; c != nil; c = c.inner {
				if !visit(c, yield) {
					return
				}
				last = c
			}
			cur = nil
			for h := last.host; h != nil; h = h.host {
				if h.inner != nil {
					cur = h.inner
					break
				}
			}
		}
	}
}

func visit(n *Node, yield func(*Node) bool) bool {
	if !yield(n) {
		return false
	}
	if ex, ok := n.trait.(expander); ok {
		for c := ex.Expansion(); c != nil; c = c.inner {
			if !visit(c, yield) {
				return false
			}
		}
	}
	return true
}

// Property resolves name from n inward. The first layer that answers wins.
func (n *Node) Property(name string) (string, bool) {
	for cur := range n.Walk() {
		if ps, ok := cur.trait.(PropertySource); ok {
			if v, ok := ps.Property(cur, name); ok {
				return v, true
			}
		}
	}
	return "", false
}

// LocalizedProperty resolves name from n inward, preferring a layer's
// localized answer and falling back to its plain one.
func (n *Node) LocalizedProperty(name string) (string, bool) {
	for cur := range n.Walk() {
		if lp, ok := cur.trait.(LocalizedPropertySource); ok {
			if v, ok := lp.LocalizedProperty(cur, name); ok {
				return v, true
			}
			continue
		}
		if ps, ok := cur.trait.(PropertySource); ok {
			if v, ok := ps.Property(cur, name); ok {
				return v, true
			}
		}
	}
	return "", false
}

// PropertyNames lists every property name exposed from n inward, without
// duplicates.
func (n *Node) PropertyNames() []string {
	var names []string
	seen := make(map[string]struct{})
	for cur := range n.Walk() {
		pn, ok := cur.trait.(PropertyNamer)
		if !ok {
			continue
		}
		for _, name := range pn.PropertyNames() {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return names
}

// String lists the tags from n inwards, for debugging.
func (n *Node) String() string {
	var b strings.Builder
	for cur := range n.Walk() {
		if b.Len() > 0 {
			b.WriteString(" > ")
		}
		b.WriteString(cur.trait.Tag())
	}
	return b.String()
}
