package orch

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
)

// dispatch handles one event of a joined session. The room is looked up for
// every event so a preceding switch is always honoured. Room broadcasts
// include the sender.
func (s *session) dispatch(ev core.Event) error {
	m, ok := s.o.Registry.RoomOf(s.sid)
	if !ok {
		return fmt.Errorf("dispatch %s: %w", ev.Type, core.ErrNotJoined)
	}

	switch ev.Type {
	case core.EventChat:
		s.handleChat(m, ev.Message)
	case core.EventTyping, core.EventStopTyping:
		s.o.Registry.BroadcastToRoom(m.Room, core.Event{Type: ev.Type, Username: m.Username()})
	case core.EventSwitchRoom:
		return s.switchRoom(ev)
	case core.EventPing:
		s.reply(core.Event{Type: core.EventPong})
	case core.EventWhoAmI:
		s.reply(core.Event{Type: core.EventWhoAmI, Username: m.Username(), Room: m.Room})
	default:
		log.Debug().Str("module", "orch").Str("sid", string(s.sid)).Str("type", string(ev.Type)).Msg("ignoring event")
	}
	return nil
}

func (s *session) handleChat(m domain.Member, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	s.o.Registry.BroadcastToRoom(m.Room, core.Event{
		Type:     core.EventChat,
		Username: m.Username(),
		Message:  text,
	})
}

func (s *session) reply(ev core.Event) {
	if err := s.o.Registry.SendTo(s.sid, ev); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(s.sid)).Str("type", string(ev.Type)).Msg("reply dropped")
	}
}
