package game

import (
	"github.com/zeusync/tabletop/internal/core/command"
	"github.com/zeusync/tabletop/internal/core/events/bus"
	"github.com/zeusync/tabletop/internal/core/observability/log"
	"github.com/zeusync/tabletop/internal/core/piece"
)

// report logs every fault in err and publishes it on the event bus. It
// returns how many faults there were.
func (s *Session) report(err error) int {
	faults := piece.Faults(err)
	for _, f := range faults {
		s.logger.Warn("Piece fault",
			log.String("piece_id", f.PieceID),
			log.String("trait", f.Tag),
			log.String("tokens", f.Tokens),
			log.String("kind", f.Kind.String()),
			log.Error(f.Err),
		)
		s.publish(EventPieceFault, f, map[string]any{
			"piece_id": f.PieceID,
			"kind":     f.Kind.String(),
		})
	}
	return len(faults)
}

// ReportFault reports a fault raised by a trait outside decoding.
func (s *Session) ReportFault(err error) { s.report(err) }

func (s *Session) changed(cmd command.Command) {
	if s.events == nil {
		return
	}
	encoded, err := command.Encode(cmd)
	if err != nil {
		s.logger.Debug("Change not encodable", log.Error(err))
		return
	}
	s.publish(EventPieceChanged, encoded, nil)
}

func (s *Session) publish(typ string, data any, meta map[string]any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(bus.NewEvent(typ, s.name, data, meta)); err != nil {
		s.logger.Error("Event handler failed", log.String("event", typ), log.Error(err))
	}
}
