package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/metrics"
)

// awaitJoin consumes the first frame. A frame that decodes but is not a join
// still admits the client, anonymously and into the default room; the frame
// itself is discarded.
func (s *session) awaitJoin(ctx context.Context) error {
	f, err := s.conn.ReadFrame(ctx)
	if err != nil {
		return err
	}
	ev, err := core.DecodeEvent(f)
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	metrics.EventsReceived.WithLabelValues(eventLabel(ev.Type)).Inc()

	username, room := "", s.o.defaultRoom()
	if ev.Type == core.EventJoin {
		username = ev.Username
		if ev.Room != "" {
			room = ev.Room
		}
	} else {
		log.Debug().Str("module", "orch").Str("sid", string(s.sid)).Str("type", string(ev.Type)).Msg("handshake without join, admitting anonymously")
	}

	if err := s.o.Registry.Join(s.sid, s.conn, username, room); err != nil {
		s.rejected = errors.Is(err, core.ErrAlreadyJoined)
		return err
	}
	s.state = stateJoined
	return nil
}

func (s *session) switchRoom(ev core.Event) error {
	if err := s.o.Registry.SwitchRoom(s.sid, ev.Room); err != nil {
		log.Error().Err(err).Str("module", "orch").Str("sid", string(s.sid)).Msg("switch room")
		return err
	}
	return nil
}
