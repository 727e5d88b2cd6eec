package traits

import (
	"maps"
	"slices"
	"strconv"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// BasicTag identifies the leaf layer.
const BasicTag = "piece"

const (
	PropBasicName  = "BasicName"
	PropPieceName  = "PieceName"
	PropPieceUID   = "PieceUID"
	PropCurrentMap = "CurrentMap"
	PropCurrentX   = "CurrentX"
	PropCurrentY   = "CurrentY"
)

// Basic is the leaf of every piece: its name, image, position and the
// persistent properties other layers or scripts attach to it.
type Basic struct {
	cloneKey  encoding.NamedKeyStroke
	deleteKey encoding.NamedKeyStroke
	image     string
	name      string

	mapID string
	x, y  int
	props map[string]string
}

// NewBasic returns an empty leaf.
func NewBasic() *Basic {
	return &Basic{props: make(map[string]string)}
}

// Tag returns BasicTag.
func (b *Basic) Tag() string { return BasicTag }

// EncodeType encodes the clone and delete strokes followed by image and name.
func (b *Basic) EncodeType() string {
	return encoding.NewSequenceEncoder(';').
		AppendKeyStroke(b.cloneKey).
		AppendKeyStroke(b.deleteKey).
		Append(b.image).
		Append(b.name).
		Value()
}

// DecodeType reads what EncodeType writes.
func (b *Basic) DecodeType(encoded string) error {
	d := encoding.NewSequenceDecoder(encoded, ';')
	b.cloneKey = d.NextKeyStroke(encoding.NullKeyStroke)
	b.deleteKey = d.NextKeyStroke(encoding.NullKeyStroke)
	b.image = d.NextTokenOr("")
	b.name = d.NextTokenOr("")
	return d.Err()
}

// EncodeState encodes the map and position followed by the persistent properties.
func (b *Basic) EncodeState() string {
	se := encoding.NewSequenceEncoder(';').
		Append(b.mapID).
		AppendInt(b.x).
		AppendInt(b.y).
		AppendInt(len(b.props))
	for _, k := range slices.Sorted(maps.Keys(b.props)) {
		se.Append(k).Append(b.props[k])
	}
	return se.Value()
}

// DecodeState reads what EncodeState writes. Missing tokens keep their defaults.
func (b *Basic) DecodeState(_ *piece.Node, encoded string) error {
	d := encoding.NewSequenceDecoder(encoded, ';')
	b.mapID = d.NextTokenOr("")
	b.x = d.NextInt(0)
	b.y = d.NextInt(0)
	b.props = make(map[string]string)
	for i, n := 0, d.NextInt(0); i < n && d.HasMoreTokens(); i++ {
		k := d.NextTokenOr("")
		v := d.NextTokenOr("")
		if k != "" {
			b.props[k] = v
		}
	}
	return d.Err()
}

// Equal compares the type only.
func (b *Basic) Equal(other piece.Trait) bool {
	o, ok := other.(*Basic)
	return ok &&
		o.cloneKey == b.cloneKey &&
		o.deleteKey == b.deleteKey &&
		o.image == b.image &&
		o.name == b.name
}

// Name returns the piece name.
func (b *Basic) Name() string { return b.name }

// Image returns the image name.
func (b *Basic) Image() string { return b.image }

// Map returns the map the piece is on.
func (b *Basic) Map() string { return b.mapID }

// Position returns the coordinates on the map.
func (b *Basic) Position() (x, y int) { return b.x, b.y }

// MoveTo places the piece on mapID at x, y.
func (b *Basic) MoveTo(mapID string, x, y int) {
	b.mapID, b.x, b.y = mapID, x, y
}

// SetPersistentProperty stores a property that survives save and load.
// An empty value removes it.
func (b *Basic) SetPersistentProperty(key, value string) {
	if value == "" {
		delete(b.props, key)
		return
	}
	b.props[key] = value
}

// PersistentProperty returns a value stored with SetPersistentProperty.
func (b *Basic) PersistentProperty(key string) (string, bool) {
	v, ok := b.props[key]
	return v, ok
}

// Property answers the built-in piece properties, then the persistent ones.
func (b *Basic) Property(n *piece.Node, name string) (string, bool) {
	switch name {
	case PropBasicName, PropPieceName:
		return b.name, true
	case PropPieceUID:
		return n.Piece().ID(), true
	case PropCurrentMap:
		return b.mapID, true
	case PropCurrentX:
		return strconv.Itoa(b.x), true
	case PropCurrentY:
		return strconv.Itoa(b.y), true
	}
	v, ok := b.props[name]
	return v, ok
}

// LocalizedProperty formats the coordinates for the environment's language.
func (b *Basic) LocalizedProperty(n *piece.Node, name string) (string, bool) {
	switch name {
	case PropCurrentX:
		return n.Piece().Printer().Sprintf("%d", b.x), true
	case PropCurrentY:
		return n.Piece().Printer().Sprintf("%d", b.y), true
	}
	return b.Property(n, name)
}

// PropertyNames lists the built-in properties and the persistent keys.
func (b *Basic) PropertyNames() []string {
	names := []string{PropBasicName, PropPieceName, PropPieceUID, PropCurrentMap, PropCurrentX, PropCurrentY}
	return append(names, slices.Sorted(maps.Keys(b.props))...)
}

// KeyCommands lists the clone and delete commands that have a stroke.
func (b *Basic) KeyCommands(*piece.Node) []piece.KeyCommand {
	var out []piece.KeyCommand
	if !b.cloneKey.IsNull() {
		out = append(out, piece.KeyCommand{Name: "Clone", Stroke: b.cloneKey, Trait: BasicTag})
	}
	if !b.deleteKey.IsNull() {
		out = append(out, piece.KeyCommand{Name: "Delete", Stroke: b.deleteKey, Trait: BasicTag})
	}
	return out
}

// KeyEvent answers the delete key with a RemovePiece and the clone key with
// an AddPiece of an identical piece, when the environment can mint ids.
func (b *Basic) KeyEvent(n *piece.Node, stroke encoding.NamedKeyStroke) command.Command {
	p := n.Piece()
	switch {
	case b.deleteKey.Matches(stroke):
		return command.RemovePiece{ID: p.ID(), Type: p.Type(), State: p.State()}
	case b.cloneKey.Matches(stroke):
		ids, ok := p.Env().(piece.IDSource)
		if !ok {
			return nil
		}
		return command.AddPiece{ID: ids.NewPieceID(), Type: p.Type(), State: p.State()}
	}
	return nil
}
