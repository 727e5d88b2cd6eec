package game

import "errors"

var (
	ErrPieceExists  = errors.New("piece already exists")
	ErrUnknownPiece = errors.New("unknown piece")
	ErrNotSetup     = errors.New("saved game contains commands other than piece additions")
)
