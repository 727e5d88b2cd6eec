package traits

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/piece"
	"github.com/zeusync/tabletop/pkg/encoding"
)

const (
	boardType   = "mat;Board;the board\tpiece;;;board.png;Board"
	counterType = "matPiece;sits on mats\tpiece;;;c.png;Counter"
)

func TestTypesRoundTrip(t *testing.T) {
	basic := NewBasic()
	basic.cloneKey = encoding.NamedKeyStroke{KeyCode: 67, Modifiers: 2}
	basic.deleteKey = encoding.NewNamedKeyStroke("delete")
	basic.image = "a;b.png"
	basic.name = "Tank, heavy"

	hp := NewNumericProperty("HP", 0, 10, false,
		PropertyCommand{Name: "Hit", Stroke: encoding.NewNamedKeyStroke("hit:me"), Op: OpInc, Value: "-1"},
		PropertyCommand{Name: "Heal", Stroke: encoding.NamedKeyStroke{KeyCode: 72, Name: "heal,all"}, Op: OpSet, Value: "10"},
	)

	for _, tr := range []piece.Trait{
		NewMarkerWith([]string{"side", "kind"}, []string{"red", "unit, armored"}),
		hp,
		&Mat{name: "Board", desc: "desc;with;semis", members: piece.NewIDSet()},
		&MatPiece{desc: "on a mat"},
		&Attachment{name: "Escort", desc: "d", targets: piece.NewIDSet()},
	} {
		t.Run(tr.Tag(), func(t *testing.T) {
			c := NewCatalog()
			typ := nest(layer(tr), layer(basic))

			p, err := c.Build("1", typ, nil)
			require.NoError(t, err)
			assert.Equal(t, typ, p.Type())

			n := p.Outermost()
			assert.True(t, tr.Equal(n.Trait()))
			assert.True(t, basic.Equal(n.Inner().Trait()))
		})
	}
}

func TestBasicStateAndProperties(t *testing.T) {
	w := newWorld(t)
	p := w.add("7", "piece;;;tank.png;Tank")

	cmd := MoveTo(p, "Main Map", 120, 12345)
	require.NotNil(t, cmd)
	b, _, _ := piece.Find[*Basic](p)
	b.SetPersistentProperty("Owner", "Alice")
	b.SetPersistentProperty("Note", "a;b\tc")

	q := w.add("8", p.Type())
	require.NoError(t, q.SetState(p.State()))
	assert.Equal(t, p.State(), q.State())

	for name, want := range map[string]string{
		PropBasicName:  "Tank",
		PropCurrentMap: "Main Map",
		PropCurrentX:   "120",
		PropCurrentY:   "12345",
		PropPieceUID:   "8",
		"Owner":        "Alice",
		"Note":         "a;b\tc",
	} {
		got, ok := q.Property(name)
		assert.True(t, ok, name)
		assert.Equal(t, want, got, name)
	}

	got, _ := q.LocalizedProperty(PropCurrentY)
	assert.Equal(t, "12,345", got)
	got, _ = q.LocalizedProperty("Owner")
	assert.Equal(t, "Alice", got)

	b.SetPersistentProperty("Owner", "")
	_, ok := p.Property("Owner")
	assert.False(t, ok)
}

func TestBasicKeyCommands(t *testing.T) {
	w := newWorld(t)
	b := NewBasic()
	b.deleteKey = encoding.NewNamedKeyStroke("delete")
	b.cloneKey = encoding.NewNamedKeyStroke("clone")
	p := w.add("1", layer(b))

	assert.Len(t, p.KeyCommands(), 2)

	cmd := p.KeyEvent(encoding.NewNamedKeyStroke("delete"))
	assert.Equal(t, command.RemovePiece{ID: "1", Type: p.Type(), State: p.State()}, cmd)

	// The registry cannot mint identifiers, so cloning is unavailable.
	assert.Nil(t, p.KeyEvent(encoding.NewNamedKeyStroke("clone")))
}

func TestMarkerProperties(t *testing.T) {
	w := newWorld(t)
	m := NewMarkerWith([]string{"side", "kind"}, []string{"red"})
	p := w.add("1", nest(layer(m), "piece;;;;"))

	v, ok := p.Property("side")
	assert.True(t, ok)
	assert.Equal(t, "red", v)
	v, ok = p.Property("kind")
	assert.True(t, ok)
	assert.Empty(t, v)
	_, ok = p.Property("other")
	assert.False(t, ok)
	assert.Contains(t, p.PropertyNames(), "kind")
}

func TestDynamicPropertyKeyCommands(t *testing.T) {
	hit := encoding.NewNamedKeyStroke("hit")
	heal := encoding.NewNamedKeyStroke("heal")
	dp := NewNumericProperty("HP", 0, 3, false,
		PropertyCommand{Name: "Hit", Stroke: hit, Op: OpInc, Value: "-1"},
		PropertyCommand{Name: "Heal", Stroke: heal, Op: OpSet, Value: "99"},
	)
	w := newWorld(t)
	p := w.add("1", nest(layer(dp), "piece;;;;"))
	require.NoError(t, p.SetState(nest("1", "")))

	cmd := p.KeyEvent(hit)
	require.NotNil(t, cmd)
	v, _ := p.Property("HP")
	assert.Equal(t, "0", v)

	// Clamped at min.
	assert.Nil(t, p.KeyEvent(hit))

	require.NotNil(t, p.KeyEvent(heal))
	v, _ = p.Property("HP")
	assert.Equal(t, "3", v)

	require.NoError(t, cmd.Undo().Execute(w))
	v, _ = p.Property("HP")
	assert.Equal(t, "1", v)

	assert.Nil(t, p.KeyEvent(encoding.NewNamedKeyStroke("other")))
}

func TestDynamicPropertyWraps(t *testing.T) {
	dp := NewNumericProperty("Turn", 1, 4, true)
	require.NoError(t, dp.SetValue("4"))
	require.NoError(t, dp.Step(1))
	assert.Equal(t, "1", dp.Value())
	require.NoError(t, dp.Step(-2))
	assert.Equal(t, "3", dp.Value())
	require.NoError(t, dp.SetValue("11"))
	assert.Equal(t, "3", dp.Value())

	assert.ErrorIs(t, dp.SetValue("many"), ErrNotNumeric)

	text := NewDynamicProperty()
	assert.ErrorIs(t, text.Step(1), ErrNotNumeric)
	require.NoError(t, text.SetValue("anything"))
	assert.Equal(t, "anything", text.Value())
}

func TestDynamicPropertyLocalized(t *testing.T) {
	w := newWorld(t)
	dp := NewNumericProperty("Gold", 0, 1000000, false)
	p := w.add("1", nest(layer(dp), "piece;;;;"))

	cmd, err := SetProperty(p, "Gold", "12345")
	require.NoError(t, err)
	require.NotNil(t, cmd)

	v, _ := p.LocalizedProperty("Gold")
	assert.Equal(t, "12,345", v)
	v, _ = p.Property("Gold")
	assert.Equal(t, "12345", v)

	_, err = SetProperty(p, "Silver", "1")
	assert.ErrorIs(t, err, ErrMissingTrait)
}

func TestDynamicPropertyRejectsBadType(t *testing.T) {
	c := NewCatalog()
	p, err := c.Build("1", nest("PROP;HP;true;10;0;false;", "piece;;;;"), nil)
	assert.ErrorIs(t, err, piece.ErrMalformed)
	_, _, ok := piece.Find[*piece.Passthrough](p)
	assert.True(t, ok)
}

func TestDynamicPropertyRejectsUnusableCommandValues(t *testing.T) {
	hit := encoding.NewNamedKeyStroke("hit")
	for name, cmd := range map[string]PropertyCommand{
		"increment":   {Name: "Hit", Stroke: hit, Op: OpInc, Value: "lots"},
		"numeric set": {Name: "Reset", Stroke: hit, Op: OpSet, Value: "full"},
	} {
		t.Run(name, func(t *testing.T) {
			dp := NewNumericProperty("HP", 0, 3, false, cmd)
			_, err := NewCatalog().Build("1", nest(layer(dp), "piece;;;;"), nil)
			assert.ErrorIs(t, err, piece.ErrMalformed)
			assert.ErrorIs(t, err, ErrNotNumeric)
		})
	}
}

func TestDynamicPropertyReportsFailedKeyCommands(t *testing.T) {
	cheer := encoding.NewNamedKeyStroke("cheer")
	text := &DynamicProperty{
		name:     "Mood",
		commands: []PropertyCommand{{Name: "Cheer", Stroke: cheer, Op: OpInc, Value: "1"}},
	}
	w := newWorld(t)
	p := w.add("1", nest(layer(text), "piece;;;;"))
	require.NoError(t, p.SetState(nest("calm", "")))

	assert.Nil(t, p.KeyEvent(cheer))
	v, _ := p.Property("Mood")
	assert.Equal(t, "calm", v)

	faults := w.reg.Reported()
	require.Len(t, faults, 1)
	assert.Equal(t, piece.DecodeFault, faults[0].Kind)
	assert.Equal(t, "1", faults[0].PieceID)
	assert.Equal(t, DynamicPropertyTag, faults[0].Tag)
	assert.ErrorIs(t, faults[0], ErrNotNumeric)
}

func TestDecodeTypeKeepsConstructorCommands(t *testing.T) {
	cmds := []PropertyCommand{{Name: "Hit", Stroke: encoding.NewNamedKeyStroke("hit"), Op: OpInc, Value: "-1"}}
	dp := NewNumericProperty("HP", 0, 3, false, cmds...)

	other := NewNumericProperty("MP", 0, 9, false,
		PropertyCommand{Name: "Cast", Stroke: encoding.NewNamedKeyStroke("cast"), Op: OpInc, Value: "-2"})
	require.NoError(t, dp.DecodeType(other.EncodeType()))

	assert.True(t, dp.Equal(other))
	assert.Equal(t, "Hit", cmds[0].Name)
}
