package traits

import (
	"errors"
	"fmt"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/piece"
)

// ErrMissingTrait is returned when a helper needs a layer the piece lacks.
var ErrMissingTrait = errors.New("piece lacks the required trait")

// Register adds every trait of this package to c, with Basic as the leaf.
func Register(c *piece.Catalog) {
	c.SetLeaf(BasicTag, func() piece.Trait { return NewBasic() })
	c.Register(MarkerTag, func() piece.Trait { return NewMarker() })
	c.Register(DynamicPropertyTag, func() piece.Trait { return NewDynamicProperty() })
	c.Register(MatTag, func() piece.Trait { return NewMat() })
	c.Register(MatPieceTag, func() piece.Trait { return NewMatPiece() })
	c.Register(AttachmentTag, func() piece.Trait { return NewAttachment() })
}

// NewCatalog returns a catalog with every trait of this package registered.
func NewCatalog() *piece.Catalog {
	c := piece.NewCatalog()
	Register(c)
	return c
}

// SetMat puts p on mat and returns the command that replays it.
func SetMat(p, mat *piece.Piece) (command.Command, error) {
	return SetMatID(p, mat.ID())
}

// SetMatID stores matID on p. When matID is not a mat the command is still
// returned, together with the DanglingReference fault.
func SetMatID(p *piece.Piece, matID string) (command.Command, error) {
	mp, n, ok := piece.Find[*MatPiece](p)
	if !ok {
		return nil, fmt.Errorf("%w: %s on %q", ErrMissingTrait, MatPieceTag, p.ID())
	}
	tracker := piece.Track(p)
	err := mp.SetMat(n, matID)
	return tracker.Command(), err
}

// ClearMat takes p off its mat.
func ClearMat(p *piece.Piece) command.Command {
	mp, n, ok := piece.Find[*MatPiece](p)
	if !ok {
		return nil
	}
	tracker := piece.Track(p)
	mp.ClearMat(n)
	return tracker.Command()
}

// Attach links p and other through their attachments called name. The
// returned command changes both pieces.
func Attach(p, other *piece.Piece, name string) (command.Command, error) {
	a, n, err := findAttachment(p, name)
	if err != nil {
		return nil, err
	}
	trackP, trackO := piece.Track(p), piece.Track(other)
	if err := a.Attach(n, other.ID()); err != nil {
		return nil, err
	}
	return command.Merge(trackP.Command(), trackO.Command()), nil
}

// Detach unlinks p and other.
func Detach(p, other *piece.Piece, name string) (command.Command, error) {
	a, n, err := findAttachment(p, name)
	if err != nil {
		return nil, err
	}
	trackP, trackO := piece.Track(p), piece.Track(other)
	a.Detach(n, other.ID())
	return command.Merge(trackP.Command(), trackO.Command()), nil
}

func findAttachment(p *piece.Piece, name string) (*Attachment, *piece.Node, error) {
	for n := range p.Nodes() {
		if a, ok := n.Trait().(*Attachment); ok && a.name == name {
			return a, n, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: %s %q on %q", ErrMissingTrait, AttachmentTag, name, p.ID())
}

// MoveTo moves p through its Basic leaf.
func MoveTo(p *piece.Piece, mapID string, x, y int) command.Command {
	b, _, ok := piece.Find[*Basic](p)
	if !ok {
		return nil
	}
	tracker := piece.Track(p)
	b.MoveTo(mapID, x, y)
	return tracker.Command()
}

// SetProperty sets the dynamic property called name on p.
func SetProperty(p *piece.Piece, name, value string) (command.Command, error) {
	for n := range p.Nodes() {
		dp, ok := n.Trait().(*DynamicProperty)
		if !ok || dp.name != name {
			continue
		}
		tracker := piece.Track(p)
		if err := dp.SetValue(value); err != nil {
			return nil, err
		}
		return tracker.Command(), nil
	}
	return nil, fmt.Errorf("%w: %s %q on %q", ErrMissingTrait, DynamicPropertyTag, name, p.ID())
}
