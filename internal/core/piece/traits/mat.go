package traits

import (
	"strconv"
	"strings"

	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// MatTag identifies Mat layers.
const MatTag = "mat"

const (
	PropMatName       = "MatName"
	PropIsMat         = "IsMat"
	PropMatPieceCount = "MatPieceCount"
	PropMatPieces     = "MatPieces"
)

// Mat is a piece other pieces can sit on. It keeps the identifiers of the
// pieces currently on it; the collection is never serialized and is rebuilt
// from the members' own MatPiece state.
type Mat struct {
	name    string
	desc    string
	members *piece.IDSet
}

// NewMat returns an empty mat.
func NewMat() *Mat {
	return &Mat{members: piece.NewIDSet()}
}

// Tag returns MatTag.
func (m *Mat) Tag() string { return MatTag }

// EncodeType encodes the mat name.
func (m *Mat) EncodeType() string {
	return encoding.NewSequenceEncoder(';').Append(m.name).Append(m.desc).Value()
}

// DecodeType reads the mat name.
func (m *Mat) DecodeType(encoded string) error {
	d := encoding.NewSequenceDecoder(encoded, ';')
	m.name = d.NextTokenOr("")
	m.desc = d.NextTokenOr("")
	return nil
}

// EncodeState is empty. Membership is stored by the MatPiece side.
func (m *Mat) EncodeState() string { return "" }

// DecodeState ignores encoded.
func (m *Mat) DecodeState(*piece.Node, string) error { return nil }

// Equal compares name and description.
func (m *Mat) Equal(other piece.Trait) bool {
	o, ok := other.(*Mat)
	return ok && o.name == m.name && o.desc == m.desc
}

// Name returns the mat name.
func (m *Mat) Name() string { return m.name }

// AddMatPiece records id as a member. It reports false when id was already
// there.
func (m *Mat) AddMatPiece(id string) bool { return m.members.Add(id) }

// RemoveMatPiece drops id and reports whether it was a member.
func (m *Mat) RemoveMatPiece(id string) bool { return m.members.Remove(id) }

// HasMatPiece reports whether id is a member.
func (m *Mat) HasMatPiece(id string) bool { return m.members.Contains(id) }

// MatPieces lists the members in the order they joined.
func (m *Mat) MatPieces() []string { return m.members.IDs() }

// Link rebuilds the member collection from every piece whose MatPiece
// points at this mat.
func (m *Mat) Link(n *piece.Node) error {
	p := n.Piece()
	if p.Env() == nil {
		return nil
	}
	m.members.Clear()
	for other := range p.Pieces() {
		mp, _, ok := piece.Find[*MatPiece](other)
		if !ok || mp.matID != p.ID() {
			continue
		}
		m.members.Add(other.ID())
		mp.registeredWith = p.ID()
	}
	return nil
}

// Unlink forgets every member. Members keep their reference, which dangles
// until the mat returns.
func (m *Mat) Unlink(n *piece.Node) {
	for _, id := range m.members.IDs() {
		if mp, _, ok := piece.Resolve[*MatPiece](n, id); ok {
			mp.registeredWith = ""
		}
	}
	m.members.Clear()
}

// Property exposes the mat name and its members.
func (m *Mat) Property(_ *piece.Node, name string) (string, bool) {
	switch name {
	case PropMatName:
		return m.name, true
	case PropIsMat:
		return "true", true
	case PropMatPieceCount:
		return strconv.Itoa(m.members.Len()), true
	case PropMatPieces:
		return strings.Join(m.members.IDs(), ","), true
	}
	return "", false
}

// LocalizedProperty formats the member count.
func (m *Mat) LocalizedProperty(n *piece.Node, name string) (string, bool) {
	if name == PropMatPieceCount {
		return n.Piece().Printer().Sprintf("%d", m.members.Len()), true
	}
	return m.Property(n, name)
}

// PropertyNames lists the mat properties.
func (m *Mat) PropertyNames() []string {
	return []string{PropMatName, PropIsMat, PropMatPieceCount, PropMatPieces}
}

// IsMatRelated reports whether p carries a Mat or a MatPiece.
func IsMatRelated(p *piece.Piece) bool {
	if _, _, ok := piece.Find[*Mat](p); ok {
		return true
	}
	_, _, ok := piece.Find[*MatPiece](p)
	return ok
}
