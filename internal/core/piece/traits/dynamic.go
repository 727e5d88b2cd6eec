package traits

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/pkg/encoding"
)

// DynamicPropertyTag identifies DynamicProperty layers.
const DynamicPropertyTag = "PROP"

// Dynamic property operations.
const (
	OpSet = "set"
	OpInc = "inc"
)

// ErrNotNumeric is returned for increments on values that are not integers.
var ErrNotNumeric = errors.New("value is not numeric")

// PropertyCommand changes a dynamic property when its key stroke arrives.
type PropertyCommand struct {
	Name   string
	Stroke encoding.NamedKeyStroke
	Op     string
	Value  string
}

func (c PropertyCommand) encode() string {
	return encoding.NewSequenceEncoder(':').
		Append(c.Name).
		AppendKeyStroke(c.Stroke).
		Append(c.Op).
		Append(c.Value).
		Value()
}

func decodePropertyCommand(s string) (PropertyCommand, error) {
	d := encoding.NewSequenceDecoder(s, ':')
	c := PropertyCommand{
		Name:   d.NextTokenOr(""),
		Stroke: d.NextKeyStroke(encoding.NullKeyStroke),
		Op:     d.NextTokenOr(OpSet),
		Value:  d.NextTokenOr(""),
	}
	if c.Op != OpSet && c.Op != OpInc {
		return c, fmt.Errorf("%w: unknown operation %q", piece.ErrMalformed, c.Op)
	}
	return c, nil
}

// DynamicProperty is a named value that key commands can set or step.
// Numeric properties are kept within [min, max], wrapping around when wrap
// is set.
type DynamicProperty struct {
	name     string
	numeric  bool
	min, max int
	wrap     bool
	commands []PropertyCommand

	value string
}

// NewDynamicProperty returns an unnamed property without commands.
func NewDynamicProperty() *DynamicProperty {
	return &DynamicProperty{max: 100}
}

// NewNumericProperty returns a numeric property bounded by [min, max].
func NewNumericProperty(name string, min, max int, wrap bool, commands ...PropertyCommand) *DynamicProperty {
	return &DynamicProperty{
		name:     name,
		numeric:  true,
		min:      min,
		max:      max,
		wrap:     wrap,
		commands: commands,
		value:    strconv.Itoa(min),
	}
}

// Tag returns DynamicPropertyTag.
func (p *DynamicProperty) Tag() string { return DynamicPropertyTag }

// Name returns the property name.
func (p *DynamicProperty) Name() string { return p.name }

// Value returns the current value.
func (p *DynamicProperty) Value() string { return p.value }

// EncodeType encodes the name, numeric constraints and commands.
func (p *DynamicProperty) EncodeType() string {
	cmds := make([]string, 0, len(p.commands))
	for _, c := range p.commands {
		cmds = append(cmds, c.encode())
	}
	return encoding.NewSequenceEncoder(';').
		Append(p.name).
		AppendBool(p.numeric).
		AppendInt(p.min).
		AppendInt(p.max).
		AppendBool(p.wrap).
		AppendStrings(cmds).
		Value()
}

// DecodeType reads what EncodeType writes and rejects commands whose value
// cannot be applied.
func (p *DynamicProperty) DecodeType(encoded string) error {
	d := encoding.NewSequenceDecoder(encoded, ';')
	p.name = d.NextTokenOr("")
	p.numeric = d.NextBool(false)
	p.min = d.NextInt(0)
	p.max = d.NextInt(100)
	p.wrap = d.NextBool(false)

	p.commands = nil
	var errs []error
	for _, s := range d.NextStrings(nil) {
		c, err := decodePropertyCommand(s)
		if err == nil {
			err = p.check(c)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		p.commands = append(p.commands, c)
	}
	if p.min > p.max {
		errs = append(errs, fmt.Errorf("%w: min %d above max %d", piece.ErrMalformed, p.min, p.max))
	}
	return errors.Join(append(errs, d.Err())...)
}

// check rejects a command whose value the property could never apply.
func (p *DynamicProperty) check(c PropertyCommand) error {
	if c.Op != OpInc && !p.numeric {
		return nil
	}
	if _, err := strconv.Atoi(c.Value); err != nil {
		return fmt.Errorf("%w: command %q value %q: %w", piece.ErrMalformed, c.Name, c.Value, ErrNotNumeric)
	}
	return nil
}

// EncodeState returns the value.
func (p *DynamicProperty) EncodeState() string { return p.value }

// DecodeState sets the value.
func (p *DynamicProperty) DecodeState(_ *piece.Node, encoded string) error {
	p.value = encoded
	return nil
}

// Equal compares type and value.
func (p *DynamicProperty) Equal(other piece.Trait) bool {
	o, ok := other.(*DynamicProperty)
	return ok &&
		o.name == p.name &&
		o.numeric == p.numeric &&
		o.min == p.min &&
		o.max == p.max &&
		o.wrap == p.wrap &&
		slices.Equal(o.commands, p.commands)
}

// SetValue replaces the value, bounding it when the property is numeric.
func (p *DynamicProperty) SetValue(v string) error {
	if !p.numeric {
		p.value = v
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%w: %q", ErrNotNumeric, v)
	}
	p.value = strconv.Itoa(p.bound(n))
	return nil
}

// Step adds delta to a numeric value.
func (p *DynamicProperty) Step(delta int) error {
	if !p.numeric {
		return fmt.Errorf("%w: property %q", ErrNotNumeric, p.name)
	}
	cur, err := strconv.Atoi(p.value)
	if err != nil {
		cur = p.min
	}
	p.value = strconv.Itoa(p.bound(cur + delta))
	return nil
}

func (p *DynamicProperty) bound(v int) int {
	if p.wrap {
		span := p.max - p.min + 1
		if span <= 0 {
			return p.min
		}
		off := (v - p.min) % span
		if off < 0 {
			off += span
		}
		return p.min + off
	}
	return min(max(v, p.min), p.max)
}

func (p *DynamicProperty) apply(c PropertyCommand) error {
	if c.Op == OpInc {
		delta, err := strconv.Atoi(c.Value)
		if err != nil {
			return fmt.Errorf("%w: increment %q", ErrNotNumeric, c.Value)
		}
		return p.Step(delta)
	}
	return p.SetValue(c.Value)
}

// Property answers the property's own name.
func (p *DynamicProperty) Property(_ *piece.Node, name string) (string, bool) {
	if name != p.name {
		return "", false
	}
	return p.value, true
}

// LocalizedProperty formats numeric values for the environment's language.
func (p *DynamicProperty) LocalizedProperty(n *piece.Node, name string) (string, bool) {
	if name != p.name {
		return "", false
	}
	if p.numeric {
		if v, err := strconv.Atoi(p.value); err == nil {
			return n.Piece().Printer().Sprintf("%d", v), true
		}
	}
	return p.value, true
}

// PropertyNames returns the property name.
func (p *DynamicProperty) PropertyNames() []string { return []string{p.name} }

// KeyCommands exposes one command per configured stroke.
func (p *DynamicProperty) KeyCommands(*piece.Node) []piece.KeyCommand {
	out := make([]piece.KeyCommand, 0, len(p.commands))
	for _, c := range p.commands {
		out = append(out, piece.KeyCommand{Name: c.Name, Stroke: c.Stroke, Trait: DynamicPropertyTag})
	}
	return out
}

// KeyEvent applies every command bound to stroke and reports the change as
// a single ChangePiece.
func (p *DynamicProperty) KeyEvent(n *piece.Node, stroke encoding.NamedKeyStroke) command.Command {
	if !slices.ContainsFunc(p.commands, func(c PropertyCommand) bool { return c.Stroke.Matches(stroke) }) {
		return nil
	}
	tracker := piece.Track(n.Piece())
	for _, c := range p.commands {
		if !c.Stroke.Matches(stroke) {
			continue
		}
		if err := p.apply(c); err != nil {
			piece.Report(n, piece.DecodeFault, c.encode(), err)
		}
	}
	return tracker.Command()
}
