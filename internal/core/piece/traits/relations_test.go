package traits

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/piece"
)

func matOf(t *testing.T, p *piece.Piece) *Mat {
	t.Helper()
	m, _, ok := piece.Find[*Mat](p)
	require.True(t, ok)
	return m
}

func matPieceOf(t *testing.T, p *piece.Piece) (*MatPiece, *piece.Node) {
	t.Helper()
	mp, n, ok := piece.Find[*MatPiece](p)
	require.True(t, ok)
	return mp, n
}

func TestSetMatIsSymmetricWithoutDuplicates(t *testing.T) {
	w := newWorld(t)
	p1 := w.add("1", boardType)
	p2 := w.add("2", counterType)

	_, err := SetMat(p2, p1)
	require.NoError(t, err)
	_, err = SetMat(p2, p1)
	require.NoError(t, err)

	assert.Equal(t, []string{"2"}, matOf(t, p1).MatPieces())
	v, ok := p2.Property(PropCurrentMat)
	assert.True(t, ok)
	assert.Equal(t, "Board", v)
	v, _ = p1.Property(PropMatPieceCount)
	assert.Equal(t, "1", v)

	ClearMat(p2)
	assert.Empty(t, matOf(t, p1).MatPieces())
	mp, _ := matPieceOf(t, p2)
	assert.Empty(t, mp.MatID())
	_, ok = p2.Property(PropCurrentMat)
	assert.False(t, ok)
}

func TestSetMatMovesBetweenMats(t *testing.T) {
	w := newWorld(t)
	a := w.add("a", boardType)
	b := w.add("b", "mat;Tray;\tpiece;;;;Tray")
	p := w.add("p", counterType)

	_, err := SetMat(p, a)
	require.NoError(t, err)
	_, err = SetMat(p, b)
	require.NoError(t, err)

	assert.Empty(t, matOf(t, a).MatPieces())
	assert.Equal(t, []string{"p"}, matOf(t, b).MatPieces())

	// A piece without a Mat is stored as a dangling mat: p leaves b and
	// behaves as if it had no mat.
	cmd, err := SetMat(p, w.add("plain", "piece;;;;"))
	faults := piece.Faults(err)
	require.Len(t, faults, 1)
	assert.Equal(t, piece.DanglingReference, faults[0].Kind)
	assert.Equal(t, "p", faults[0].PieceID)
	require.NotNil(t, cmd)
	assert.Empty(t, matOf(t, b).MatPieces())
	mp, n := matPieceOf(t, p)
	assert.Equal(t, "plain", mp.MatID())
	_, ok := mp.Mat(n)
	assert.False(t, ok)
}

func TestSetMatToMissingMatLeavesOldMat(t *testing.T) {
	w := newWorld(t)
	a := w.add("a", boardType)
	p := w.add("p", counterType)
	_, err := SetMat(p, a)
	require.NoError(t, err)

	cmd, err := SetMatID(p, "ghost")
	assert.ErrorIs(t, err, piece.ErrDangling)
	mp, _ := matPieceOf(t, p)
	assert.Equal(t, "ghost", mp.MatID())
	assert.Empty(t, matOf(t, a).MatPieces())

	// The mat showing up later picks the piece up.
	ghost := w.add("ghost", boardType)
	assert.Equal(t, []string{"p"}, matOf(t, ghost).MatPieces())

	// Undo puts p back on a.
	require.NoError(t, cmd.Undo().Execute(w))
	assert.Equal(t, []string{"p"}, matOf(t, a).MatPieces())
	assert.Empty(t, matOf(t, ghost).MatPieces())
}

func TestDanglingMatBehavesAsNoMat(t *testing.T) {
	w := newWorld(t)
	typ := nest("mark;side;red", "matPiece;desc", "piece;;;;Counter")
	dangling := w.add("d", typ)
	unset := w.add("u", typ)

	err := dangling.SetState(nest("", "42", ""))
	faults := piece.Faults(err)
	require.Len(t, faults, 1)
	assert.Equal(t, piece.DanglingReference, faults[0].Kind)
	assert.Equal(t, "d", faults[0].PieceID)
	assert.Equal(t, MatPieceTag, faults[0].Tag)

	require.NoError(t, unset.SetState(nest("", NoMat, "")))

	for _, p := range []*piece.Piece{dangling, unset} {
		mp, n := matPieceOf(t, p)
		_, ok := mp.Mat(n)
		assert.False(t, ok)
		_, ok = p.Property(PropCurrentMat)
		assert.False(t, ok)
		_, ok = p.LocalizedProperty(PropCurrentMat)
		assert.False(t, ok)
		v, _ := p.Property(PropIsMatPiece)
		assert.Equal(t, "true", v)
	}

	// The identifier survives, and resolves once the mat appears.
	mp, _ := matPieceOf(t, dangling)
	assert.Equal(t, "42", mp.EncodeState())
	mp, _ = matPieceOf(t, unset)
	assert.Equal(t, NoMat, mp.EncodeState())

	mat := w.add("42", boardType)
	assert.Equal(t, []string{"d"}, matOf(t, mat).MatPieces())
	v, _ := dangling.Property(PropCurrentMat)
	assert.Equal(t, "Board", v)
}

func TestMatMembershipFollowsUndoRedo(t *testing.T) {
	w := newWorld(t)
	p1 := w.add("1", boardType)
	p2 := w.add("2", counterType)

	cmd, err := SetMat(p2, p1)
	require.NoError(t, err)
	require.IsType(t, command.ChangePiece{}, cmd)

	require.NoError(t, cmd.Undo().Execute(w))
	assert.Empty(t, matOf(t, p1).MatPieces())

	require.NoError(t, cmd.Execute(w))
	assert.Equal(t, []string{"2"}, matOf(t, p1).MatPieces())

	// Replaying the same state twice never duplicates the member.
	require.NoError(t, cmd.Execute(w))
	assert.Equal(t, []string{"2"}, matOf(t, p1).MatPieces())
}

func TestMatMembershipSurvivesRemoval(t *testing.T) {
	w := newWorld(t)
	p1 := w.add("1", boardType)
	p2 := w.add("2", counterType)
	_, err := SetMat(p2, p1)
	require.NoError(t, err)

	removeMember := command.RemovePiece{ID: "2", Type: p2.Type(), State: p2.State()}
	require.NoError(t, removeMember.Execute(w))
	assert.Empty(t, matOf(t, p1).MatPieces())
	require.NoError(t, removeMember.Undo().Execute(w))
	assert.Equal(t, []string{"2"}, matOf(t, p1).MatPieces())

	removeMat := command.RemovePiece{ID: "1", Type: p1.Type(), State: p1.State()}
	require.NoError(t, removeMat.Execute(w))
	member, _ := w.reg.Lookup("2")
	_, ok := member.Property(PropCurrentMat)
	assert.False(t, ok)

	require.NoError(t, removeMat.Undo().Execute(w))
	restored, _ := w.reg.Lookup("1")
	assert.Equal(t, []string{"2"}, matOf(t, restored).MatPieces())
	v, _ := member.Property(PropCurrentMat)
	assert.Equal(t, "Board", v)
}

func TestMatRebuildsFromMembersOnLoad(t *testing.T) {
	w := newWorld(t)
	// Members are added before their mat, in the order a save file may
	// list them.
	for _, id := range []string{"m1", "m2"} {
		err := w.AddPiece(id, counterType, nest("board", ""))
		faults := piece.Faults(err)
		require.Len(t, faults, 1)
		assert.Equal(t, piece.DanglingReference, faults[0].Kind)
	}
	require.NoError(t, w.AddPiece("board", boardType, ""))

	board, _ := w.reg.Lookup("board")
	assert.Equal(t, []string{"m1", "m2"}, matOf(t, board).MatPieces())
	v, _ := board.LocalizedProperty(PropMatPieceCount)
	assert.Equal(t, "2", v)
	assert.True(t, IsMatRelated(board))
	assert.False(t, IsMatRelated(w.add("plain", "piece;;;;")))
}

const escortType = "attach;Escort;\tpiece;;;;"

func attachmentOf(t *testing.T, p *piece.Piece) *Attachment {
	t.Helper()
	a, _, ok := piece.Find[*Attachment](p)
	require.True(t, ok)
	return a
}

func TestAttachIsSymmetric(t *testing.T) {
	w := newWorld(t)
	a := w.add("a", escortType)
	b := w.add("b", escortType)
	c := w.add("c", escortType)

	cmd, err := Attach(a, b, "Escort")
	require.NoError(t, err)
	assert.Len(t, command.Flatten(cmd), 2)
	_, err = Attach(a, c, "Escort")
	require.NoError(t, err)
	_, err = Attach(b, a, "Escort")
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c"}, attachmentOf(t, a).Targets())
	assert.Equal(t, []string{"a"}, attachmentOf(t, b).Targets())
	assert.Equal(t, []string{"a"}, attachmentOf(t, c).Targets())

	v, _ := a.Property("Escort_Count")
	assert.Equal(t, "2", v)
	v, _ = a.Property("Escort_Ids")
	assert.Equal(t, "b,c", v)

	_, err = Detach(a, c, "Escort")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, attachmentOf(t, a).Targets())
	assert.Empty(t, attachmentOf(t, c).Targets())

	_, err = Attach(a, a, "Escort")
	assert.ErrorIs(t, err, ErrSelfAttachment)
	_, err = Attach(a, b, "Cargo")
	assert.ErrorIs(t, err, ErrMissingTrait)
}

func TestAttachUndo(t *testing.T) {
	w := newWorld(t)
	a := w.add("a", escortType)
	b := w.add("b", escortType)

	cmd, err := Attach(a, b, "Escort")
	require.NoError(t, err)
	require.NoError(t, cmd.Undo().Execute(w))
	assert.Empty(t, attachmentOf(t, a).Targets())
	assert.Empty(t, attachmentOf(t, b).Targets())

	require.NoError(t, cmd.Execute(w))
	assert.Equal(t, []string{"b"}, attachmentOf(t, a).Targets())
	assert.Equal(t, []string{"a"}, attachmentOf(t, b).Targets())
}

func TestAttachmentDanglingTargets(t *testing.T) {
	w := newWorld(t)
	a := w.add("a", escortType)
	b := w.add("b", escortType)

	err := a.SetState(nest("2;b;ghost", ""))
	faults := piece.Faults(err)
	require.Len(t, faults, 1)
	assert.Equal(t, piece.DanglingReference, faults[0].Kind)

	assert.Equal(t, []string{"a"}, attachmentOf(t, b).Targets())
	v, _ := a.Property("Escort_Count")
	assert.Equal(t, "1", v)
	v, _ = a.LocalizedProperty("Escort_Ids")
	assert.Equal(t, "b", v)
	assert.Equal(t, []string{"b", "ghost"}, attachmentOf(t, a).Targets())

	// Removing a piece detaches it from the other side only.
	require.NoError(t, w.RemovePiece("a"))
	assert.Empty(t, attachmentOf(t, b).Targets())
	assert.Equal(t, []string{"b", "ghost"}, attachmentOf(t, a).Targets())
}

// checkMatSymmetry asserts that every member's mat lists it exactly once
// and that no mat lists a piece that points elsewhere.
func checkMatSymmetry(t *testing.T, mats, members []*piece.Piece, step int) {
	t.Helper()
	for _, p := range members {
		mp, n := matPieceOf(t, p)
		mat, onMat := mp.Mat(n)
		for _, m := range mats {
			count := 0
			for _, id := range matOf(t, m).MatPieces() {
				if id == p.ID() {
					count++
				}
			}
			want := 0
			if onMat && mat.ID() == m.ID() {
				want = 1
			}
			require.Equal(t, want, count, "step %d: %s on %s", step, p.ID(), m.ID())
		}
	}
}

// lenient applies states the way a game session does: dangling references
// are tolerated instead of failing the command.
type lenient struct{ *world }

func (l lenient) SetPieceState(id, state string) error {
	err := l.world.SetPieceState(id, state)
	for _, f := range piece.Faults(err) {
		if f.Kind != piece.DanglingReference {
			return err
		}
	}
	return nil
}

func TestMatRelationsStaySymmetric(t *testing.T) {
	w := newWorld(t)
	mats := []*piece.Piece{w.add("m1", boardType), w.add("m2", boardType), w.add("m3", boardType)}
	members := []*piece.Piece{w.add("a", counterType), w.add("b", counterType), w.add("c", counterType), w.add("d", counterType)}
	targets := []string{"m1", "m2", "m3", "ghost"}

	rng := rand.New(rand.NewPCG(7, 11))
	var done []command.Command
	for step := range 500 {
		p := members[rng.IntN(len(members))]
		switch op := rng.IntN(4); {
		case op < 2:
			cmd, err := SetMatID(p, targets[rng.IntN(len(targets))])
			if err != nil {
				require.ErrorIs(t, err, piece.ErrDangling)
			}
			if cmd != nil {
				done = append(done, cmd)
			}
		case op == 2:
			if cmd := ClearMat(p); cmd != nil {
				done = append(done, cmd)
			}
		case len(done) > 0:
			last := done[len(done)-1]
			done = done[:len(done)-1]
			require.NoError(t, last.Undo().Execute(lenient{w}))
		}
		checkMatSymmetry(t, mats, members, step)
	}

	// Undoing everything as one composite returns every piece to no mat.
	if len(done) > 0 {
		require.NoError(t, command.Merge(done...).Undo().Execute(lenient{w}))
	}
	checkMatSymmetry(t, mats, members, -1)
	for _, p := range members {
		mp, _ := matPieceOf(t, p)
		assert.Empty(t, mp.MatID(), p.ID())
	}
	for _, m := range mats {
		assert.Empty(t, matOf(t, m).MatPieces())
	}
}
