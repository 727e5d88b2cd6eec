package encoding

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNoMoreTokens is returned by NextToken once the sequence is exhausted.
	ErrNoMoreTokens = errors.New("no more tokens")
	// ErrMalformedToken marks a token that could not be parsed as the requested kind.
	ErrMalformedToken = errors.New("malformed token")
)

const (
	escapeChar = '\\'
	quoteChar  = '\''
	listDelim  = ','
)

// SequenceEncoder joins tokens with a single delimiter byte. Delimiters inside a
// token are escaped with a backslash, so any string round-trips through
// SequenceDecoder unchanged.
type SequenceEncoder struct {
	delim   byte
	buf     strings.Builder
	started bool
}

// NewSequenceEncoder returns an empty encoder for the given delimiter.
func NewSequenceEncoder(delim byte) *SequenceEncoder {
	return &SequenceEncoder{delim: delim}
}

// NewSequenceEncoderWith returns an encoder whose first token is first.
func NewSequenceEncoderWith(first string, delim byte) *SequenceEncoder {
	return NewSequenceEncoder(delim).Append(first)
}

// Append adds one token.
func (e *SequenceEncoder) Append(token string) *SequenceEncoder {
	if e.started {
		e.buf.WriteByte(e.delim)
	}
	e.started = true

	if needsQuotes(token) {
		e.buf.WriteByte(quoteChar)
		e.writeEscaped(token)
		e.buf.WriteByte(quoteChar)
		return e
	}
	e.writeEscaped(token)
	return e
}

// AppendInt adds v in base 10.
func (e *SequenceEncoder) AppendInt(v int) *SequenceEncoder {
	return e.Append(strconv.Itoa(v))
}

// AppendInt64 adds v in base 10.
func (e *SequenceEncoder) AppendInt64(v int64) *SequenceEncoder {
	return e.Append(strconv.FormatInt(v, 10))
}

// AppendBool adds v as "true" or "false".
func (e *SequenceEncoder) AppendBool(v bool) *SequenceEncoder {
	return e.Append(strconv.FormatBool(v))
}

// AppendFloat adds v in the shortest form that round-trips.
func (e *SequenceEncoder) AppendFloat(v float64) *SequenceEncoder {
	return e.Append(strconv.FormatFloat(v, 'g', -1, 64))
}

// AppendKeyStroke adds the encoded stroke. The null stroke is an empty token.
func (e *SequenceEncoder) AppendKeyStroke(k NamedKeyStroke) *SequenceEncoder {
	return e.Append(k.Encode())
}

// AppendStrings adds a nested comma separated list as a single token.
func (e *SequenceEncoder) AppendStrings(values []string) *SequenceEncoder {
	nested := NewSequenceEncoder(listDelim)
	for _, v := range values {
		nested.Append(v)
	}
	return e.Append(nested.Value())
}

// Value returns the encoded sequence. An encoder without tokens yields "".
func (e *SequenceEncoder) Value() string {
	return e.buf.String()
}

// String implements fmt.Stringer.
func (e *SequenceEncoder) String() string {
	return e.Value()
}

func (e *SequenceEncoder) writeEscaped(s string) {
	for {
		i := strings.IndexByte(s, e.delim)
		if i < 0 {
			e.buf.WriteString(s)
			return
		}
		e.buf.WriteString(s[:i])
		e.buf.WriteByte(escapeChar)
		e.buf.WriteByte(e.delim)
		s = s[i+1:]
	}
}

func needsQuotes(s string) bool {
	if strings.HasSuffix(s, string(escapeChar)) {
		return true
	}
	return len(s) > 0 && s[0] == quoteChar && s[len(s)-1] == quoteChar
}

// SequenceDecoder reads tokens produced by SequenceEncoder.
//
// Missing tokens decode to the caller supplied default; tokens that fail to
// parse also fall back to the default but are remembered and reported by Err.
type SequenceDecoder struct {
	val       string
	pos       int
	delim     byte
	done      bool
	malformed []string
}

// NewSequenceDecoder returns a decoder over value. Decoding "" yields no tokens.
func NewSequenceDecoder(value string, delim byte) *SequenceDecoder {
	return &SequenceDecoder{val: value, delim: delim, done: value == ""}
}

// HasMoreTokens reports whether NextToken would return a token.
func (d *SequenceDecoder) HasMoreTokens() bool {
	return !d.done
}

// NextToken returns the next unescaped token or ErrNoMoreTokens.
func (d *SequenceDecoder) NextToken() (string, error) {
	if d.done {
		return "", ErrNoMoreTokens
	}

	var b strings.Builder
	i := d.pos
	for {
		j := strings.IndexByte(d.val[i:], d.delim)
		if j < 0 {
			b.WriteString(d.val[i:])
			d.done = true
			break
		}
		j += i
		if j > i && d.val[j-1] == escapeChar {
			b.WriteString(d.val[i : j-1])
			b.WriteByte(d.delim)
			i = j + 1
			continue
		}
		b.WriteString(d.val[i:j])
		d.pos = j + 1
		break
	}

	tok := b.String()
	if len(tok) > 1 && tok[0] == quoteChar && tok[len(tok)-1] == quoteChar {
		tok = tok[1 : len(tok)-1]
	}
	return tok, nil
}

// NextTokenOr returns the next token, or def once the sequence is exhausted.
func (d *SequenceDecoder) NextTokenOr(def string) string {
	tok, err := d.NextToken()
	if err != nil {
		return def
	}
	return tok
}

// NextInt parses the next token as an int. A missing token yields def; an
// unparsable one yields def and is recorded as malformed.
func (d *SequenceDecoder) NextInt(def int) int {
	tok, err := d.NextToken()
	if err != nil {
		return def
	}
	v, err := strconv.Atoi(strings.TrimSpace(tok))
	if err != nil {
		d.malformed = append(d.malformed, tok)
		return def
	}
	return v
}

// NextInt64 is NextInt for int64 values.
func (d *SequenceDecoder) NextInt64(def int64) int64 {
	tok, err := d.NextToken()
	if err != nil {
		return def
	}
	v, err := strconv.ParseInt(strings.TrimSpace(tok), 10, 64)
	if err != nil {
		d.malformed = append(d.malformed, tok)
		return def
	}
	return v
}

// NextBool parses the next token with strconv.ParseBool, falling back to def.
func (d *SequenceDecoder) NextBool(def bool) bool {
	tok, err := d.NextToken()
	if err != nil {
		return def
	}
	v, err := strconv.ParseBool(strings.TrimSpace(tok))
	if err != nil {
		d.malformed = append(d.malformed, tok)
		return def
	}
	return v
}

// NextFloat parses the next token as a float64, falling back to def.
func (d *SequenceDecoder) NextFloat(def float64) float64 {
	tok, err := d.NextToken()
	if err != nil {
		return def
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
	if err != nil {
		d.malformed = append(d.malformed, tok)
		return def
	}
	return v
}

// NextKeyStroke decodes the next token as a key stroke, or returns def when
// none is left.
func (d *SequenceDecoder) NextKeyStroke(def NamedKeyStroke) NamedKeyStroke {
	tok, err := d.NextToken()
	if err != nil {
		return def
	}
	return DecodeKeyStroke(tok)
}

// NextStrings reads a nested list written by AppendStrings.
func (d *SequenceDecoder) NextStrings(def []string) []string {
	tok, err := d.NextToken()
	if err != nil {
		return def
	}
	out := make([]string, 0)
	for nested := NewSequenceDecoder(tok, listDelim); nested.HasMoreTokens(); {
		out = append(out, nested.NextTokenOr(""))
	}
	return out
}

// Remaining returns the raw, still escaped, rest of the sequence.
func (d *SequenceDecoder) Remaining() string {
	if d.done {
		return ""
	}
	return d.val[d.pos:]
}

// Err reports tokens that could not be parsed since the decoder was created.
func (d *SequenceDecoder) Err() error {
	if len(d.malformed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %q", ErrMalformedToken, d.malformed)
}

// Split decodes every token of value.
func Split(value string, delim byte) []string {
	out := make([]string, 0)
	for d := NewSequenceDecoder(value, delim); d.HasMoreTokens(); {
		out = append(out, d.NextTokenOr(""))
	}
	return out
}

// Join encodes tokens into a single sequence.
func Join(tokens []string, delim byte) string {
	e := NewSequenceEncoder(delim)
	for _, t := range tokens {
		e.Append(t)
	}
	return e.Value()
}
