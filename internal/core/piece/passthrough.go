package piece

import "strings"

// Passthrough stands in for a layer that could not be decoded. It keeps the
// raw layer type and the raw state so the piece still encodes to what it
// was loaded from.
type Passthrough struct {
	raw   string
	state string
}

// NewPassthrough wraps a raw layer type string.
func NewPassthrough(raw string) *Passthrough {
	return &Passthrough{raw: raw}
}

// Tag returns the unrecognized tag.
func (p *Passthrough) Tag() string {
	tag, _ := splitLayer(p.raw)
	return tag
}

// EncodeType returns the type tokens exactly as they were read.
func (p *Passthrough) EncodeType() string {
	_, tokens := splitLayer(p.raw)
	return tokens
}

// DecodeType replaces the tokens and keeps the tag.
func (p *Passthrough) DecodeType(encoded string) error {
	p.raw = p.Tag() + string(typeDelim) + encoded
	return nil
}

// RawType returns the whole layer, tag included.
func (p *Passthrough) RawType() string { return p.raw }

// EncodeState returns the preserved state tokens.
func (p *Passthrough) EncodeState() string { return p.state }

// DecodeState stores encoded untouched.
func (p *Passthrough) DecodeState(_ *Node, encoded string) error {
	p.state = encoded
	return nil
}

// Equal compares the raw type.
func (p *Passthrough) Equal(other Trait) bool {
	o, ok := other.(*Passthrough)
	return ok && o.raw == p.raw
}

func splitLayer(layer string) (tag, tokens string) {
	tag, tokens, _ = strings.Cut(layer, string(typeDelim))
	return tag, tokens
}
