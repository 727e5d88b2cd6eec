package encoding

import (
	"strconv"
	"strings"
)

// NamedKeyStroke is a key code plus modifier mask, optionally carrying a name.
// A stroke with only a name (KeyCode 0) is a named command that has no
// physical key bound to it.
type NamedKeyStroke struct {
	KeyCode   int
	Modifiers int
	Name      string
}

// NullKeyStroke is the zero stroke; it never matches anything.
var NullKeyStroke = NamedKeyStroke{}

// NewNamedKeyStroke returns a stroke that is identified by name only.
func NewNamedKeyStroke(name string) NamedKeyStroke {
	return NamedKeyStroke{Name: name}
}

// IsNull reports whether the stroke designates nothing.
func (k NamedKeyStroke) IsNull() bool {
	return k.KeyCode == 0 && k.Name == ""
}

// IsNamed reports whether the stroke carries a command name.
func (k NamedKeyStroke) IsNamed() bool {
	return k.Name != ""
}

// Matches reports whether two strokes designate the same command. Named
// strokes match by name, unnamed ones by key code and modifiers.
func (k NamedKeyStroke) Matches(other NamedKeyStroke) bool {
	if k.IsNull() || other.IsNull() {
		return false
	}
	if k.IsNamed() || other.IsNamed() {
		return k.Name == other.Name
	}
	return k.KeyCode == other.KeyCode && k.Modifiers == other.Modifiers
}

// Encode renders the stroke as "code,modifiers[,name]"; the null stroke is "".
func (k NamedKeyStroke) Encode() string {
	if k.IsNull() {
		return ""
	}
	s := strconv.Itoa(k.KeyCode) + "," + strconv.Itoa(k.Modifiers)
	if k.IsNamed() {
		s += "," + k.Name
	}
	return s
}

// String returns the name of a named stroke and the encoding otherwise.
func (k NamedKeyStroke) String() string {
	if k.IsNamed() {
		return k.Name
	}
	return k.Encode()
}

// DecodeKeyStroke parses the output of Encode. Anything unparsable yields the
// null stroke.
func DecodeKeyStroke(s string) NamedKeyStroke {
	parts := strings.SplitN(s, ",", 3)
	if len(parts) < 2 {
		return NullKeyStroke
	}
	code, err := strconv.Atoi(parts[0])
	if err != nil {
		return NullKeyStroke
	}
	mods, err := strconv.Atoi(parts[1])
	if err != nil {
		return NullKeyStroke
	}
	k := NamedKeyStroke{KeyCode: code, Modifiers: mods}
	if len(parts) == 3 {
		k.Name = parts[2]
	}
	return k
}
