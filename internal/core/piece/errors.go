package piece

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownTag       = errors.New("unknown trait tag")
	ErrMalformed        = errors.New("malformed trait encoding")
	ErrMissingLeaf      = errors.New("piece type has no base leaf")
	ErrTrailingTokens   = errors.New("unexpected trailing tokens")
	ErrDangling         = errors.New("referenced piece does not exist")
	ErrUnknownPrototype = errors.New("unknown prototype")
	ErrPrototypeDepth   = errors.New("prototype nesting too deep")
)

// FaultKind classifies a recoverable problem found while decoding or
// resolving a piece.
type FaultKind uint8

const (
	// DecodeFault is a malformed or unparsable type or state token sequence.
	DecodeFault FaultKind = iota + 1
	// DanglingReference is a relationship whose target piece does not exist.
	DanglingReference
	// UnknownTraitTag is a layer whose tag no registered trait claims.
	UnknownTraitTag
)

// String names the kind for logs and events.
func (k FaultKind) String() string {
	switch k {
	case DecodeFault:
		return "decode_fault"
	case DanglingReference:
		return "dangling_reference"
	case UnknownTraitTag:
		return "unknown_trait_tag"
	default:
		return "unknown"
	}
}

// Fault is a structured diagnostic. Faults never abort a load; the piece
// degrades and the fault is handed to the caller for reporting.
type Fault struct {
	Kind    FaultKind
	PieceID string
	Tag     string
	Tokens  string
	Err     error
}

// Error implements error.
func (f *Fault) Error() string {
	return fmt.Sprintf("%s: piece %q trait %q tokens %q: %v", f.Kind, f.PieceID, f.Tag, f.Tokens, f.Err)
}

// Unwrap returns the underlying cause.
func (f *Fault) Unwrap() error { return f.Err }

// FaultReporter is implemented by environments that collect faults raised
// after decoding, such as a key command that cannot be applied.
type FaultReporter interface {
	ReportFault(err error)
}

// Report hands a fault of n's trait to the piece's environment when the
// environment collects faults.
func Report(n *Node, kind FaultKind, tokens string, err error) {
	if n == nil || n.piece == nil {
		return
	}
	r, ok := n.piece.env.(FaultReporter)
	if !ok {
		return
	}
	f := newFault(kind, n.trait.Tag(), tokens, err)
	f.PieceID = n.piece.id
	r.ReportFault(f)
}

func newFault(kind FaultKind, tag, tokens string, err error) *Fault {
	return &Fault{Kind: kind, Tag: tag, Tokens: tokens, Err: err}
}

// Faults flattens err, which may be a join of faults and plain errors, into
// the faults it carries. Plain errors are wrapped as decode faults.
func Faults(err error) []*Fault {
	if err == nil {
		return nil
	}
	var out []*Fault
	var walk func(error)
	walk = func(e error) {
		if e == nil {
			return
		}
		if f, ok := e.(*Fault); ok {
			out = append(out, f)
			return
		}
		if joined, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range joined.Unwrap() {
				walk(inner)
			}
			return
		}
		var f *Fault
		if errors.As(e, &f) {
			out = append(out, f)
			return
		}
		out = append(out, newFault(DecodeFault, "", "", e))
	}
	walk(err)
	return out
}

func stamp(err error, pieceID string) error {
	for _, f := range Faults(err) {
		if f.PieceID == "" {
			f.PieceID = pieceID
		}
	}
	return err
}
