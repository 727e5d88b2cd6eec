package command

// History keeps executed commands for undo and redo. It does not execute
// anything itself; callers run the returned command against their target.
type History struct {
	done   []Command
	undone []Command
	limit  int
}

// NewHistory returns a history that keeps at most limit commands; zero keeps
// everything.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Record stores an executed command and clears the redo stack.
func (h *History) Record(cmd Command) {
	if cmd == nil {
		return
	}
	h.done = append(h.done, cmd)
	if h.limit > 0 && len(h.done) > h.limit {
		h.done = h.done[len(h.done)-h.limit:]
	}
	h.undone = h.undone[:0]
}

// Undo pops the last command and returns its inverse.
func (h *History) Undo() (Command, error) {
	if len(h.done) == 0 {
		return nil, ErrNothingToUndo
	}
	last := h.done[len(h.done)-1]
	h.done = h.done[:len(h.done)-1]
	h.undone = append(h.undone, last)
	return last.Undo(), nil
}

// Redo pops the last undone command and returns it for re-execution.
func (h *History) Redo() (Command, error) {
	if len(h.undone) == 0 {
		return nil, ErrNothingToRedo
	}
	last := h.undone[len(h.undone)-1]
	h.undone = h.undone[:len(h.undone)-1]
	h.done = append(h.done, last)
	return last, nil
}

// Rollback reverts the bookkeeping of the last Undo (wasUndo) or Redo call,
// for when executing the returned command failed.
func (h *History) Rollback(wasUndo bool) {
	if wasUndo {
		if n := len(h.undone); n > 0 {
			h.done = append(h.done, h.undone[n-1])
			h.undone = h.undone[:n-1]
		}
		return
	}
	if n := len(h.done); n > 0 {
		h.undone = append(h.undone, h.done[n-1])
		h.done = h.done[:n-1]
	}
}

// CanUndo reports whether a recorded command is waiting to be undone.
func (h *History) CanUndo() bool { return len(h.done) > 0 }

// CanRedo reports whether an undone command can be replayed.
func (h *History) CanRedo() bool { return len(h.undone) > 0 }
