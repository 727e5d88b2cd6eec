package traits

import (
	"fmt"

	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// MatPieceTag identifies MatPiece layers.
const MatPieceTag = "matPiece"

const (
	NoMat = "noMat"

	PropCurrentMat = "CurrentMat"
	PropIsMatPiece = "IsMatPiece"
)

// MatPiece lets a piece sit on a Mat. Only the mat's identifier is stored;
// the mat is resolved through the environment whenever it is needed, and an
// identifier that resolves to nothing behaves as if no mat were set.
type MatPiece struct {
	desc  string
	matID string
	// registeredWith is the mat this piece last added itself to.
	registeredWith string
}

// NewMatPiece returns a mat piece that is on no mat.
func NewMatPiece() *MatPiece { return &MatPiece{} }

// Tag returns MatPieceTag.
func (m *MatPiece) Tag() string { return MatPieceTag }

// EncodeType encodes the description.
func (m *MatPiece) EncodeType() string {
	return encoding.NewSequenceEncoder(';').Append(m.desc).Value()
}

// DecodeType reads the description.
func (m *MatPiece) DecodeType(encoded string) error {
	m.desc = encoding.NewSequenceDecoder(encoded, ';').NextTokenOr("")
	return nil
}

// EncodeState writes the stored identifier even when it currently dangles,
// so a mat that shows up later is picked up again.
func (m *MatPiece) EncodeState() string {
	if m.matID == "" {
		return NoMat
	}
	return encoding.NewSequenceEncoder(';').Append(m.matID).Value()
}

// DecodeState stores the identifier only. Registration with the mat happens
// in Link, once every layer has its new state.
func (m *MatPiece) DecodeState(_ *piece.Node, encoded string) error {
	tok := encoding.NewSequenceDecoder(encoded, ';').NextTokenOr(NoMat)
	if tok == NoMat {
		tok = ""
	}
	m.matID = tok
	return nil
}

// Equal compares the description.
func (m *MatPiece) Equal(other piece.Trait) bool {
	o, ok := other.(*MatPiece)
	return ok && o.desc == m.desc
}

// MatID returns the stored identifier, dangling or not.
func (m *MatPiece) MatID() string { return m.matID }

// Mat resolves the current mat piece.
func (m *MatPiece) Mat(n *piece.Node) (*piece.Piece, bool) {
	if m.matID == "" {
		return nil, false
	}
	if _, matNode, ok := piece.Resolve[*Mat](n, m.matID); ok {
		return matNode.Piece(), true
	}
	return nil, false
}

// SetMat leaves the current mat and stores matID. The piece joins the mat
// when matID resolves to one; otherwise the identifier is kept and a
// DanglingReference fault is returned. An empty identifier clears the mat.
func (m *MatPiece) SetMat(n *piece.Node, matID string) error {
	m.ClearMat(n)
	if matID == "" {
		return nil
	}
	m.matID = matID
	if err := m.Link(n); err != nil {
		return &piece.Fault{
			Kind:    piece.DanglingReference,
			PieceID: n.Piece().ID(),
			Tag:     MatPieceTag,
			Tokens:  m.EncodeState(),
			Err:     err,
		}
	}
	return nil
}

// ClearMat removes the piece from its mat, if any.
func (m *MatPiece) ClearMat(n *piece.Node) {
	m.leave(n, m.registeredWith)
	m.leave(n, m.matID)
	m.matID = ""
	m.registeredWith = ""
}

func (m *MatPiece) leave(n *piece.Node, matID string) {
	if matID == "" {
		return
	}
	if mat, _, ok := piece.Resolve[*Mat](n, matID); ok {
		mat.RemoveMatPiece(n.Piece().ID())
	}
}

// Link makes the mat's collection agree with the stored identifier after
// any state application, undo included.
func (m *MatPiece) Link(n *piece.Node) error {
	if m.registeredWith != "" && m.registeredWith != m.matID {
		m.leave(n, m.registeredWith)
		m.registeredWith = ""
	}
	if m.matID == "" {
		return nil
	}
	mat, _, ok := piece.Resolve[*Mat](n, m.matID)
	if !ok {
		m.registeredWith = ""
		return fmt.Errorf("%w: mat %q", piece.ErrDangling, m.matID)
	}
	mat.AddMatPiece(n.Piece().ID())
	m.registeredWith = m.matID
	return nil
}

// Unlink takes the piece off its mat but keeps the identifier, so undoing
// the removal puts it back.
func (m *MatPiece) Unlink(n *piece.Node) {
	m.leave(n, m.registeredWith)
	m.registeredWith = ""
}

// Property answers CurrentMat with the name of the mat the piece is on.
func (m *MatPiece) Property(n *piece.Node, name string) (string, bool) {
	switch name {
	case PropCurrentMat:
		if mat, ok := m.Mat(n); ok {
			return mat.Property(PropMatName)
		}
	case PropIsMatPiece:
		return "true", true
	}
	return "", false
}

// LocalizedProperty answers CurrentMat with the mat's localized name.
func (m *MatPiece) LocalizedProperty(n *piece.Node, name string) (string, bool) {
	if name == PropCurrentMat {
		if mat, ok := m.Mat(n); ok {
			return mat.LocalizedProperty(PropMatName)
		}
		return "", false
	}
	return m.Property(n, name)
}

// PropertyNames lists the mat properties.
func (m *MatPiece) PropertyNames() []string {
	return []string{PropCurrentMat, PropIsMatPiece}
}
