package server

// Envelope kinds.
const (
	// KindSync carries the whole game as an encoded command of piece
	// additions. The server sends it on join; a client sends it with no
	// payload to ask for a fresh copy.
	KindSync = "sync"
	// KindCommand carries one encoded command.
	KindCommand = "command"
	// KindAck confirms a command of the receiving client.
	KindAck   = "ack"
	KindError = "error"
)

// Envelope is the JSON frame exchanged over the websocket. Seq is the
// journal position the frame reflects and Checksum the game checksum after
// it.
type Envelope struct {
	Kind     string `json:"kind"`
	Payload  string `json:"payload,omitempty"`
	Checksum uint64 `json:"checksum,omitempty,string"`
	Seq      uint64 `json:"seq,omitempty"`
}

func errorEnvelope(err error) Envelope {
	return Envelope{Kind: KindError, Payload: err.Error()}
}
