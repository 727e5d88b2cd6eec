package server

import "errors"

var (
	ErrServerClosed         = errors.New("server is closed")
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrRoomClosed           = errors.New("room is closed")
	ErrInvalidRoom          = errors.New("invalid room id")
	ErrRateLimited          = errors.New("too many commands")
)
