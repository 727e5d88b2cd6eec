package server

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/game"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/storage/interfaces"
)

type request struct {
	from *client
	env  Envelope
}

// Room relays the commands of one game. Its session is only touched by the
// goroutine running Run.
type Room struct {
	id      string
	session *game.Session
	journal interfaces.Journal
	logger  log.Log

	seq           uint64
	snapshotSeq   uint64
	snapshotEvery int

	clients map[*client]struct{}
	join    chan *client
	leave   chan *client
	inbox   chan request
	done    chan struct{}
}

// openRoom restores room id from its latest snapshot and the journal tail,
// or seeds it with setup when nothing was journaled yet.
func openRoom(ctx context.Context, id string, session *game.Session, journal interfaces.Journal,
	setup []game.Entry, snapshotEvery int, logger log.Log,
) (*Room, error) {
	r := &Room{
		id:            id,
		session:       session,
		journal:       journal,
		logger:        logger.With(log.String("room", id)),
		snapshotEvery: snapshotEvery,
		clients:       make(map[*client]struct{}),
		join:          make(chan *client),
		leave:         make(chan *client),
		inbox:         make(chan request, 64),
		done:          make(chan struct{}),
	}

	snap, err := journal.LoadSnapshot(ctx, id)
	switch {
	case err == nil:
		if _, err := session.Restore(ctx, snap.Game); err != nil {
			return nil, errors.Wrapf(err, "restore room %q", id)
		}
		r.seq, r.snapshotSeq = snap.Seq, snap.Seq
	case errors.Is(err, interfaces.ErrNotFound):
		if _, err := session.Load(ctx, setup); err != nil {
			return nil, errors.Wrapf(err, "set up room %q", id)
		}
	default:
		return nil, errors.Wrapf(err, "open room %q", id)
	}

	tail, err := journal.Since(ctx, id, r.seq)
	if err != nil {
		return nil, errors.Wrapf(err, "replay room %q", id)
	}
	for _, rec := range tail {
		cmd, err := command.Decode(rec.Command)
		if err != nil {
			return nil, errors.Wrapf(err, "replay room %q at %d", id, rec.Seq)
		}
		if err := session.Apply(cmd); err != nil {
			r.logger.Warn("Journaled command no longer applies", log.Uint64("seq", rec.Seq), log.Error(err))
		}
		r.seq = rec.Seq
	}

	r.logger.Info("Room opened",
		log.Int("pieces", session.Len()),
		log.Uint64("seq", r.seq),
		log.Int("replayed", len(tail)),
	)
	return r, nil
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Run processes joins, leaves and messages until ctx ends. Every client
// still connected then is disconnected.
func (r *Room) Run(ctx context.Context) {
	defer close(r.done)
	defer func() {
		for c := range r.clients {
			r.drop(c)
		}
		r.snapshot(context.WithoutCancel(ctx))
	}()

	for {
		select {
		case c := <-r.join:
			r.clients[c] = struct{}{}
			r.send(c, r.syncEnvelope())
			r.logger.Debug("Client joined", log.String("client", c.id), log.Int("clients", len(r.clients)))
		case c := <-r.leave:
			if _, ok := r.clients[c]; ok {
				r.drop(c)
				r.logger.Debug("Client left", log.String("client", c.id), log.Int("clients", len(r.clients)))
			}
		case req := <-r.inbox:
			r.handle(ctx, req)
		case <-ctx.Done():
			return
		}
	}
}

// Join registers c; it fails once the room stopped.
func (r *Room) Join(c *client) error {
	select {
	case r.join <- c:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

// Leave removes c from the room.
func (r *Room) Leave(c *client) {
	select {
	case r.leave <- c:
	case <-r.done:
	}
}

// Submit queues env from c for the room loop.
func (r *Room) Submit(c *client, env Envelope) error {
	select {
	case r.inbox <- request{from: c, env: env}:
		return nil
	case <-r.done:
		return ErrRoomClosed
	}
}

func (r *Room) handle(ctx context.Context, req request) {
	switch req.env.Kind {
	case KindSync:
		r.send(req.from, r.syncEnvelope())
	case KindCommand:
		if !req.from.limit.allow(time.Now()) {
			r.send(req.from, errorEnvelope(ErrRateLimited))
			return
		}
		env, err := r.execute(ctx, req.env.Payload)
		if err != nil {
			r.logger.Info("Command rejected", log.String("client", req.from.id), log.Error(err))
			r.send(req.from, errorEnvelope(err))
			return
		}
		r.send(req.from, Envelope{Kind: KindAck, Seq: env.Seq, Checksum: env.Checksum})
		for c := range r.clients {
			if c != req.from {
				r.send(c, env)
			}
		}
	default:
		r.send(req.from, errorEnvelope(errors.Wrapf(ErrInvalidMessage, "kind %q", req.env.Kind)))
	}
}

// execute applies and journals an encoded command. A command that cannot be
// journaled is reverted.
func (r *Room) execute(ctx context.Context, payload string) (Envelope, error) {
	cmd, err := command.Decode(payload)
	if err != nil {
		return Envelope{}, err
	}
	if cmd == nil {
		return Envelope{}, errors.Wrap(ErrInvalidMessage, "empty command")
	}
	if err := r.session.Apply(cmd); err != nil {
		return Envelope{}, err
	}
	seq, err := r.journal.Append(ctx, r.id, payload)
	if err != nil {
		if undoErr := r.session.Apply(cmd.Undo()); undoErr != nil {
			r.logger.Error("Revert after journal failure failed", log.Error(undoErr))
		}
		return Envelope{}, errors.Wrap(err, "journal")
	}
	r.seq = seq
	if r.snapshotEvery > 0 && r.seq-r.snapshotSeq >= uint64(r.snapshotEvery) {
		r.snapshot(ctx)
	}
	return Envelope{Kind: KindCommand, Payload: payload, Seq: seq, Checksum: r.session.Checksum()}, nil
}

func (r *Room) snapshot(ctx context.Context) {
	if r.seq == r.snapshotSeq {
		return
	}
	encoded, err := command.Encode(r.session.SaveCommand())
	if err != nil {
		r.logger.Error("Snapshot not encodable", log.Error(err))
		return
	}
	err = r.journal.SaveSnapshot(ctx, interfaces.Snapshot{
		Room:     r.id,
		Seq:      r.seq,
		Game:     encoded,
		Checksum: r.session.Checksum(),
	})
	if err != nil {
		r.logger.Warn("Snapshot failed", log.Uint64("seq", r.seq), log.Error(err))
		return
	}
	r.snapshotSeq = r.seq
	r.logger.Debug("Snapshot saved", log.Uint64("seq", r.seq))
}

func (r *Room) syncEnvelope() Envelope {
	encoded, err := command.Encode(r.session.SaveCommand())
	if err != nil {
		return errorEnvelope(err)
	}
	return Envelope{Kind: KindSync, Payload: encoded, Seq: r.seq, Checksum: r.session.Checksum()}
}

// send queues env for c, dropping clients that do not keep up.
func (r *Room) send(c *client, env Envelope) {
	if _, ok := r.clients[c]; !ok {
		return
	}
	select {
	case c.send <- env:
	default:
		r.logger.Warn("Client too slow, disconnecting", log.String("client", c.id))
		r.drop(c)
	}
}

func (r *Room) drop(c *client) {
	if _, ok := r.clients[c]; !ok {
		return
	}
	delete(r.clients, c)
	close(c.send)
}
