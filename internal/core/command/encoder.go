package command

import (
	"fmt"

	"github.com/zeusync/tabletop/pkg/encoding"
)

const (
	fieldDelim   = '/'
	commandDelim = 0x1b

	prefixAdd    = "+"
	prefixRemove = "-"
	prefixChange = "D"
)

// Encode renders a command with the same escaping rules as piece type and
// state strings:
//
//	+/id/type/state   AddPiece
//	-/id/type/state   RemovePiece
//	D/id/new/old      ChangePiece
//
// Composites are their sub-commands joined with ESC. Nil encodes as "".
func Encode(cmd Command) (string, error) {
	if cmd == nil {
		return "", nil
	}
	if c, ok := cmd.(*Composite); ok {
		se := encoding.NewSequenceEncoder(commandDelim)
		for _, sub := range c.cmds {
			s, err := encodeSingle(sub)
			if err != nil {
				return "", err
			}
			se.Append(s)
		}
		return se.Value(), nil
	}
	return encodeSingle(cmd)
}

func encodeSingle(cmd Command) (string, error) {
	se := encoding.NewSequenceEncoder(fieldDelim)
	switch c := cmd.(type) {
	case AddPiece:
		se.Append(prefixAdd).Append(c.ID).Append(c.Type).Append(c.State)
	case RemovePiece:
		se.Append(prefixRemove).Append(c.ID).Append(c.Type).Append(c.State)
	case ChangePiece:
		se.Append(prefixChange).Append(c.ID).Append(c.NewState).Append(c.OldState)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnsupportedCommand, cmd)
	}
	return se.Value(), nil
}

// Decode parses the output of Encode. "" decodes to nil.
func Decode(s string) (Command, error) {
	if s == "" {
		return nil, nil
	}
	var out []Command
	for d := encoding.NewSequenceDecoder(s, commandDelim); d.HasMoreTokens(); {
		tok := d.NextTokenOr("")
		if tok == "" {
			continue
		}
		cmd, err := decodeSingle(tok)
		if err != nil {
			return nil, err
		}
		out = append(out, cmd)
	}
	return Merge(out...), nil
}

func decodeSingle(s string) (Command, error) {
	d := encoding.NewSequenceDecoder(s, fieldDelim)
	prefix := d.NextTokenOr("")
	id := d.NextTokenOr("")
	if id == "" {
		return nil, fmt.Errorf("%w: missing piece id in %q", ErrMalformedCommand, s)
	}

	switch prefix {
	case prefixAdd:
		return AddPiece{ID: id, Type: d.NextTokenOr(""), State: d.NextTokenOr("")}, nil
	case prefixRemove:
		return RemovePiece{ID: id, Type: d.NextTokenOr(""), State: d.NextTokenOr("")}, nil
	case prefixChange:
		newState := d.NextTokenOr("")
		return ChangePiece{ID: id, NewState: newState, OldState: d.NextTokenOr("")}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, prefix)
	}
}
