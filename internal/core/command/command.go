package command

import "errors"

// Target is the game state a command is applied to. Implementations resolve
// piece ids and run the piece codecs; commands only carry strings.
type Target interface {
	AddPiece(id, pieceType, state string) error
	RemovePiece(id string) error
	SetPieceState(id, state string) error
	PieceState(id string) (string, bool)
}

// Command is a serializable, invertible change to the game state.
type Command interface {
	// Execute applies the command to the target.
	Execute(t Target) error
	// Undo returns the command that reverses this one.
	Undo() Command
	// Append merges next after this command. Either side may be nil.
	Append(next Command) Command
}

// AddPiece creates a piece from its type string and applies its state.
type AddPiece struct {
	ID    string
	Type  string
	State string
}

// Execute creates the piece on t.
func (c AddPiece) Execute(t Target) error {
	return t.AddPiece(c.ID, c.Type, c.State)
}

// Undo removes the piece again.
func (c AddPiece) Undo() Command {
	return RemovePiece{ID: c.ID, Type: c.Type, State: c.State}
}

// Append merges next after c.
func (c AddPiece) Append(next Command) Command { return Merge(c, next) }

// RemovePiece deletes a piece. Type and State describe the piece as it was
// removed so the command can be undone.
type RemovePiece struct {
	ID    string
	Type  string
	State string
}

// Execute removes the piece from t.
func (c RemovePiece) Execute(t Target) error {
	return t.RemovePiece(c.ID)
}

// Undo re-adds the piece with its last type and state.
func (c RemovePiece) Undo() Command {
	return AddPiece{ID: c.ID, Type: c.Type, State: c.State}
}

// Append merges next after c.
func (c RemovePiece) Append(next Command) Command { return Merge(c, next) }

// ChangePiece replaces the full state string of a piece.
type ChangePiece struct {
	ID       string
	OldState string
	NewState string
}

// Execute sets the piece to NewState.
func (c ChangePiece) Execute(t Target) error {
	return t.SetPieceState(c.ID, c.NewState)
}

// Undo swaps the old and new state.
func (c ChangePiece) Undo() Command {
	return ChangePiece{ID: c.ID, OldState: c.NewState, NewState: c.OldState}
}

// Append merges next after c.
func (c ChangePiece) Append(next Command) Command { return Merge(c, next) }

// Composite runs its commands in order. It never contains nil or nested
// composites; build it with Merge.
type Composite struct {
	cmds []Command
}

// Commands returns the flattened sub-commands in execution order.
func (c *Composite) Commands() []Command {
	out := make([]Command, len(c.cmds))
	copy(out, c.cmds)
	return out
}

// Len is the number of sub-commands.
func (c *Composite) Len() int { return len(c.cmds) }

// Execute runs every sub-command. On failure the sub-commands already applied
// are undone in reverse order so the target is left as it was.
func (c *Composite) Execute(t Target) error {
	for i, cmd := range c.cmds {
		if err := cmd.Execute(t); err != nil {
			var rollback error
			for j := i - 1; j >= 0; j-- {
				rollback = errors.Join(rollback, c.cmds[j].Undo().Execute(t))
			}
			return errors.Join(err, rollback)
		}
	}
	return nil
}

// Undo inverts every sub-command and reverses their order.
func (c *Composite) Undo() Command {
	inverse := make([]Command, len(c.cmds))
	for i, cmd := range c.cmds {
		inverse[len(c.cmds)-1-i] = cmd.Undo()
	}
	return &Composite{cmds: inverse}
}

// Append adds next to the end of the composite.
func (c *Composite) Append(next Command) Command { return Merge(c, next) }

// Merge concatenates commands in order, dropping nils and flattening
// composites. It returns nil when nothing is left and the bare command when
// only one is.
func Merge(cmds ...Command) Command {
	var flat []Command
	for _, cmd := range cmds {
		switch c := cmd.(type) {
		case nil:
		case *Composite:
			if c != nil {
				flat = append(flat, c.cmds...)
			}
		default:
			flat = append(flat, c)
		}
	}
	switch len(flat) {
	case 0:
		return nil
	case 1:
		return flat[0]
	default:
		return &Composite{cmds: flat}
	}
}

// Flatten returns the commands contained in cmd in execution order.
func Flatten(cmd Command) []Command {
	switch c := cmd.(type) {
	case nil:
		return nil
	case *Composite:
		return c.Commands()
	default:
		return []Command{c}
	}
}
