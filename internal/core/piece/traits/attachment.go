package traits

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// AttachmentTag identifies Attachment layers.
const AttachmentTag = "attach"

// ErrSelfAttachment is returned by Attach when a piece targets itself.
var ErrSelfAttachment = errors.New("a piece cannot attach to itself")

// Attachment links pieces to each other under a shared attachment name.
// The relationship is symmetric: both sides list each other and both lists
// are part of the state.
type Attachment struct {
	name    string
	desc    string
	targets *piece.IDSet
}

// NewAttachment returns an unnamed attachment.
func NewAttachment() *Attachment {
	return &Attachment{targets: piece.NewIDSet()}
}

// NewNamedAttachment returns an attachment with the given name.
func NewNamedAttachment(name string) *Attachment {
	a := NewAttachment()
	a.name = name
	return a
}

// Tag returns AttachmentTag.
func (a *Attachment) Tag() string { return AttachmentTag }

// Name returns the attachment name.
func (a *Attachment) Name() string { return a.name }

// EncodeType encodes the name and description.
func (a *Attachment) EncodeType() string {
	return encoding.NewSequenceEncoder(';').Append(a.name).Append(a.desc).Value()
}

// DecodeType reads the name and description. The name is required.
func (a *Attachment) DecodeType(encoded string) error {
	d := encoding.NewSequenceDecoder(encoded, ';')
	a.name = d.NextTokenOr("")
	a.desc = d.NextTokenOr("")
	if a.name == "" {
		return fmt.Errorf("%w: attachment without a name", piece.ErrMalformed)
	}
	return nil
}

// EncodeState lists the target identifiers.
func (a *Attachment) EncodeState() string {
	ids := a.targets.IDs()
	se := encoding.NewSequenceEncoder(';').AppendInt(len(ids))
	for _, id := range ids {
		se.Append(id)
	}
	return se.Value()
}

// DecodeState replaces the targets. Link restores the counterparts.
func (a *Attachment) DecodeState(_ *piece.Node, encoded string) error {
	d := encoding.NewSequenceDecoder(encoded, ';')
	a.targets.Clear()
	for i, n := 0, d.NextInt(0); i < n && d.HasMoreTokens(); i++ {
		a.targets.Add(d.NextTokenOr(""))
	}
	return d.Err()
}

// Equal compares name and description.
func (a *Attachment) Equal(other piece.Trait) bool {
	o, ok := other.(*Attachment)
	return ok && o.name == a.name && o.desc == a.desc
}

// Targets returns every stored identifier, dangling ones included.
func (a *Attachment) Targets() []string { return a.targets.IDs() }

// counterpart finds the attachment with the same name on piece id.
func (a *Attachment) counterpart(n *piece.Node, id string) (*Attachment, bool) {
	other, ok := n.Piece().Lookup(id)
	if !ok {
		return nil, false
	}
	return a.on(other)
}

func (a *Attachment) on(p *piece.Piece) (*Attachment, bool) {
	for node := range p.Nodes() {
		if o, ok := node.Trait().(*Attachment); ok && o.name == a.name {
			return o, true
		}
	}
	return nil, false
}

// Attach links this piece and piece id in both directions.
func (a *Attachment) Attach(n *piece.Node, id string) error {
	own := n.Piece().ID()
	if id == own {
		return ErrSelfAttachment
	}
	other, ok := a.counterpart(n, id)
	if !ok {
		return fmt.Errorf("%w: attachment %q on %q", piece.ErrDangling, a.name, id)
	}
	a.targets.Add(id)
	other.targets.Add(own)
	return nil
}

// Detach unlinks this piece and piece id in both directions.
func (a *Attachment) Detach(n *piece.Node, id string) {
	a.targets.Remove(id)
	if other, ok := a.counterpart(n, id); ok {
		other.targets.Remove(n.Piece().ID())
	}
}

// DetachAll detaches every target.
func (a *Attachment) DetachAll(n *piece.Node) {
	for _, id := range a.targets.IDs() {
		a.Detach(n, id)
	}
}

// Link makes every counterpart agree with this side's list: listed pieces
// get a back-reference and pieces that list this one without being listed
// lose theirs.
func (a *Attachment) Link(n *piece.Node) error {
	p := n.Piece()
	var errs []error
	for _, id := range a.targets.IDs() {
		other, ok := a.counterpart(n, id)
		if !ok {
			errs = append(errs, fmt.Errorf("%w: attachment %q on %q", piece.ErrDangling, a.name, id))
			continue
		}
		other.targets.Add(p.ID())
	}
	for candidate := range p.Pieces() {
		if candidate.ID() == p.ID() || a.targets.Contains(candidate.ID()) {
			continue
		}
		if other, ok := a.on(candidate); ok {
			other.targets.Remove(p.ID())
		}
	}
	return errors.Join(errs...)
}

// Unlink removes this piece from every counterpart and keeps its own list.
func (a *Attachment) Unlink(n *piece.Node) {
	own := n.Piece().ID()
	for _, id := range a.targets.IDs() {
		if other, ok := a.counterpart(n, id); ok {
			other.targets.Remove(own)
		}
	}
}

// live returns the targets that currently resolve.
func (a *Attachment) live(n *piece.Node) []string {
	var out []string
	for _, id := range a.targets.IDs() {
		if _, ok := a.counterpart(n, id); ok {
			out = append(out, id)
		}
	}
	return out
}

func (a *Attachment) countProp() string { return a.name + "_Count" }
func (a *Attachment) idsProp() string   { return a.name + "_Ids" }

// Property exposes <name>_Count and <name>_Ids.
func (a *Attachment) Property(n *piece.Node, name string) (string, bool) {
	switch name {
	case a.countProp():
		return strconv.Itoa(len(a.live(n))), true
	case a.idsProp():
		return strings.Join(a.live(n), ","), true
	}
	return "", false
}

// LocalizedProperty formats the count for the environment's language.
func (a *Attachment) LocalizedProperty(n *piece.Node, name string) (string, bool) {
	if name == a.countProp() {
		return n.Piece().Printer().Sprintf("%d", len(a.live(n))), true
	}
	return a.Property(n, name)
}

// PropertyNames lists the two derived properties.
func (a *Attachment) PropertyNames() []string {
	return []string{a.countProp(), a.idsProp()}
}
