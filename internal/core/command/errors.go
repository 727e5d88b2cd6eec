package command

import "errors"

var (
	ErrUnknownCommand     = errors.New("unknown command prefix")
	ErrMalformedCommand   = errors.New("malformed command")
	ErrUnsupportedCommand = errors.New("command cannot be encoded")
	ErrNothingToUndo      = errors.New("nothing to undo")
	ErrNothingToRedo      = errors.New("nothing to redo")
)
