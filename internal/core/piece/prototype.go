package piece

import (
	"fmt"
	"strings"
)

// PrototypeTag is the layer tag of a prototype reference.
const PrototypeTag = "prototype"

// UsePrototype embeds the traits of a named prototype definition. The
// expansion is built once, when the piece is built; refreshing a piece
// after the definition changes means rebuilding it from its type.
type UsePrototype struct {
	name      string
	expansion *Node
	state     string
}

// Tag returns PrototypeTag.
func (u *UsePrototype) Tag() string { return PrototypeTag }

// EncodeType returns the prototype name.
func (u *UsePrototype) EncodeType() string { return u.name }

// Name returns the referenced prototype.
func (u *UsePrototype) Name() string { return u.name }

// DecodeType reads the prototype name.
func (u *UsePrototype) DecodeType(encoded string) error {
	u.name = strings.TrimSpace(encoded)
	if u.name == "" {
		return fmt.Errorf("%w: empty prototype name", ErrMalformed)
	}
	return nil
}

// Expansion returns the first node of the embedded chain, or nil when the
// prototype could not be expanded.
func (u *UsePrototype) Expansion() *Node { return u.expansion }

// EncodeState keeps the state of the spliced layers.
func (u *UsePrototype) EncodeState() string {
	if u.expansion == nil {
		return u.state
	}
	return u.expansion.State()
}

// DecodeState stores the spliced state for the next build.
func (u *UsePrototype) DecodeState(_ *Node, encoded string) error {
	if u.expansion == nil {
		u.state = encoded
		return nil
	}
	return u.expansion.decodeState(encoded)
}

// Equal compares prototype names.
func (u *UsePrototype) Equal(other Trait) bool {
	o, ok := other.(*UsePrototype)
	return ok && o.name == u.name
}
