package command

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePiece struct {
	typ   string
	state string
}

// fakeTarget stores pieces as raw strings.
type fakeTarget struct {
	pieces  map[string]*fakePiece
	failOn  string
	changes int
}

func newFakeTarget() *fakeTarget {
	return &fakeTarget{pieces: make(map[string]*fakePiece)}
}

func (f *fakeTarget) AddPiece(id, pieceType, state string) error {
	if _, ok := f.pieces[id]; ok {
		return errors.New("duplicate")
	}
	f.pieces[id] = &fakePiece{typ: pieceType, state: state}
	return nil
}

func (f *fakeTarget) RemovePiece(id string) error {
	if _, ok := f.pieces[id]; !ok {
		return errors.New("missing")
	}
	delete(f.pieces, id)
	return nil
}

func (f *fakeTarget) SetPieceState(id, state string) error {
	if id == f.failOn {
		return errors.New("refused")
	}
	p, ok := f.pieces[id]
	if !ok {
		return errors.New("missing")
	}
	p.state = state
	f.changes++
	return nil
}

func (f *fakeTarget) PieceState(id string) (string, bool) {
	p, ok := f.pieces[id]
	if !ok {
		return "", false
	}
	return p.state, true
}

func (f *fakeTarget) snapshot() map[string]string {
	out := make(map[string]string, len(f.pieces))
	for id, p := range f.pieces {
		out[id] = p.typ + "|" + p.state
	}
	return out
}

func TestMergeFlattensAndDropsNil(t *testing.T) {
	a := ChangePiece{ID: "1", OldState: "a", NewState: "b"}
	b := ChangePiece{ID: "2", OldState: "c", NewState: "d"}
	c := AddPiece{ID: "3", Type: "t", State: "s"}

	assert.Nil(t, Merge())
	assert.Nil(t, Merge(nil, nil))
	assert.Equal(t, a, Merge(nil, a, nil))

	merged := Merge(Merge(a, b), nil, c)
	require.IsType(t, &Composite{}, merged)
	assert.Equal(t, []Command{a, b, c}, Flatten(merged))

	assert.Equal(t, []Command{a, b}, Flatten(a.Append(b)))
}

func TestCompositeUndoRestoresEveryPiece(t *testing.T) {
	target := newFakeTarget()
	require.NoError(t, target.AddPiece("1", "t1", "s0"))
	require.NoError(t, target.AddPiece("2", "t2", "x0"))
	before := target.snapshot()

	cmd := Merge(
		ChangePiece{ID: "1", OldState: "s0", NewState: "s1"},
		ChangePiece{ID: "1", OldState: "s1", NewState: "s2"},
		ChangePiece{ID: "2", OldState: "x0", NewState: "x1"},
		AddPiece{ID: "3", Type: "t3", State: "y"},
		RemovePiece{ID: "2", Type: "t2", State: "x1"},
	)
	require.NoError(t, cmd.Execute(target))

	state, _ := target.PieceState("1")
	assert.Equal(t, "s2", state)
	_, ok := target.PieceState("2")
	assert.False(t, ok)

	require.NoError(t, cmd.Undo().Execute(target))
	assert.Equal(t, before, target.snapshot())
}

func TestCompositeExecuteRollsBackOnFailure(t *testing.T) {
	target := newFakeTarget()
	require.NoError(t, target.AddPiece("1", "t", "a"))
	require.NoError(t, target.AddPiece("2", "t", "b"))
	target.failOn = "2"

	cmd := Merge(
		ChangePiece{ID: "1", OldState: "a", NewState: "a2"},
		ChangePiece{ID: "2", OldState: "b", NewState: "b2"},
	)
	require.Error(t, cmd.Execute(target))

	state, _ := target.PieceState("1")
	assert.Equal(t, "a", state)
}

func TestEncodeDecodeCommands(t *testing.T) {
	cmds := []Command{
		AddPiece{ID: "42", Type: "mat;Board;desc\tpiece;;;board.png;Board", State: "\tmap;1;2;0"},
		RemovePiece{ID: "7", Type: "piece;;;a/b.png;A", State: "m/1;2"},
		ChangePiece{ID: "9", OldState: "noMat\t", NewState: "42\t"},
	}

	for _, cmd := range cmds {
		s, err := Encode(cmd)
		require.NoError(t, err)
		back, err := Decode(s)
		require.NoError(t, err)
		assert.Equal(t, cmd, back)
	}

	composite := Merge(cmds...)
	s, err := Encode(composite)
	require.NoError(t, err)
	back, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, Flatten(composite), Flatten(back))
}

func TestEncodeWireFormat(t *testing.T) {
	s, err := Encode(ChangePiece{ID: "42", OldState: "old", NewState: "new"})
	require.NoError(t, err)
	assert.Equal(t, "D/42/new/old", s)

	s, err = Encode(AddPiece{ID: "1", Type: "a/b", State: ""})
	require.NoError(t, err)
	assert.Equal(t, `+/1/a\/b/`, s)
}

func TestDecodeErrors(t *testing.T) {
	cmd, err := Decode("")
	assert.NoError(t, err)
	assert.Nil(t, cmd)

	_, err = Decode("?/1/x")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Decode("D")
	assert.ErrorIs(t, err, ErrMalformedCommand)

	_, err = Encode(&unknownCommand{})
	assert.ErrorIs(t, err, ErrUnsupportedCommand)
}

type unknownCommand struct{}

func (*unknownCommand) Execute(Target) error          { return nil }
func (u *unknownCommand) Undo() Command               { return u }
func (u *unknownCommand) Append(next Command) Command { return Merge(u, next) }

func TestHistoryUndoRedo(t *testing.T) {
	target := newFakeTarget()
	require.NoError(t, target.AddPiece("1", "t", "a"))
	h := NewHistory(0)

	first := ChangePiece{ID: "1", OldState: "a", NewState: "b"}
	second := ChangePiece{ID: "1", OldState: "b", NewState: "c"}
	for _, c := range []Command{first, second} {
		require.NoError(t, c.Execute(target))
		h.Record(c)
	}

	undo, err := h.Undo()
	require.NoError(t, err)
	require.NoError(t, undo.Execute(target))
	state, _ := target.PieceState("1")
	assert.Equal(t, "b", state)
	assert.True(t, h.CanRedo())

	redo, err := h.Redo()
	require.NoError(t, err)
	require.NoError(t, redo.Execute(target))
	state, _ = target.PieceState("1")
	assert.Equal(t, "c", state)

	_, _ = h.Undo()
	_, _ = h.Undo()
	_, err = h.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)

	h.Record(first)
	_, err = h.Redo()
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestHistoryLimitAndRollback(t *testing.T) {
	h := NewHistory(2)
	for i := 0; i < 5; i++ {
		h.Record(ChangePiece{ID: "1", NewState: string(rune('a' + i))})
	}
	_, _ = h.Undo()
	_, _ = h.Undo()
	_, err := h.Undo()
	assert.ErrorIs(t, err, ErrNothingToUndo)

	h.Rollback(true)
	assert.True(t, h.CanUndo())
}
