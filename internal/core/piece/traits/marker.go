package traits

import (
	"slices"

	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// MarkerTag identifies Marker layers.
const MarkerTag = "mark"

// Marker exposes fixed key/value properties. It has no state.
type Marker struct {
	keys   []string
	values []string
}

// NewMarker returns a marker without keys.
func NewMarker() *Marker { return &Marker{} }

// NewMarkerWith builds a marker from parallel key and value lists.
func NewMarkerWith(keys, values []string) *Marker {
	m := &Marker{keys: slices.Clone(keys), values: slices.Clone(values)}
	m.pad()
	return m
}

// Tag returns MarkerTag.
func (m *Marker) Tag() string { return MarkerTag }

// EncodeType encodes the keys and values.
func (m *Marker) EncodeType() string {
	return encoding.NewSequenceEncoder(';').AppendStrings(m.keys).AppendStrings(m.values).Value()
}

// DecodeType reads the keys and values, padding or truncating the values to
// match the keys.
func (m *Marker) DecodeType(encoded string) error {
	d := encoding.NewSequenceDecoder(encoded, ';')
	m.keys = d.NextStrings(nil)
	m.values = d.NextStrings(nil)
	m.pad()
	return d.Err()
}

func (m *Marker) pad() {
	for len(m.values) < len(m.keys) {
		m.values = append(m.values, "")
	}
	m.values = m.values[:len(m.keys)]
}

// EncodeState is empty; markers are constant.
func (m *Marker) EncodeState() string { return "" }

// DecodeState ignores encoded.
func (m *Marker) DecodeState(*piece.Node, string) error { return nil }

// PropertyNames lists the marker keys.
func (m *Marker) PropertyNames() []string { return slices.Clone(m.keys) }

// Property returns the value marked under name.
func (m *Marker) Property(_ *piece.Node, name string) (string, bool) {
	i := slices.Index(m.keys, name)
	if i < 0 {
		return "", false
	}
	return m.values[i], true
}

// Equal compares keys and values.
func (m *Marker) Equal(other piece.Trait) bool {
	o, ok := other.(*Marker)
	return ok && slices.Equal(o.keys, m.keys) && slices.Equal(o.values, m.values)
}
