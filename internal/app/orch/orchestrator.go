// Package orch drives one connection through the chat protocol:
// join handshake, event dispatch, and departure.
package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomChat/internal/app"
	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/dkeye/RoomChat/internal/metrics"
)

type Orchestrator struct {
	Registry *app.Registry
	// DefaultRoom receives handshakes that name no room.
	DefaultRoom domain.RoomName
}

type sessionState int

const (
	stateAwaitingJoin sessionState = iota
	stateJoined
	stateTerminated
)

func (s sessionState) String() string {
	switch s {
	case stateAwaitingJoin:
		return "awaiting_join"
	case stateJoined:
		return "joined"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

type session struct {
	o     *Orchestrator
	sid   core.SessionID
	conn  core.SignalStream
	state sessionState
	// rejected is set when the registry refused the join because sid was
	// already registered; that record belongs to someone else.
	rejected bool
}

// Serve runs the session for conn until the peer leaves, the stream fails or
// ctx is cancelled. It returns nil for a clean disconnect. The membership is
// always released before Serve returns. conn stays open; closing it is the
// caller's job.
func (o *Orchestrator) Serve(ctx context.Context, sid core.SessionID, conn core.SignalStream) error {
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	s := &session{o: o, sid: sid, conn: conn, state: stateAwaitingJoin}
	err := s.run(ctx)
	s.terminate()

	if err == nil || errors.Is(err, core.ErrDisconnected) {
		log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("session closed")
		return nil
	}
	log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("session aborted")
	return err
}

func (s *session) run(ctx context.Context) error {
	if err := s.awaitJoin(ctx); err != nil {
		return err
	}
	for {
		f, err := s.conn.ReadFrame(ctx)
		if err != nil {
			return err
		}
		ev, err := core.DecodeEvent(f)
		if err != nil {
			return err
		}
		metrics.EventsReceived.WithLabelValues(eventLabel(ev.Type)).Inc()
		if err := s.dispatch(ev); err != nil {
			return err
		}
	}
}

func (s *session) terminate() {
	prev := s.state
	s.state = stateTerminated
	if s.rejected {
		return
	}
	m, ok := s.o.Registry.Leave(s.sid)
	if !ok {
		log.Debug().Str("module", "orch").Str("sid", string(s.sid)).Str("state", prev.String()).Msg("closed before join")
		return
	}
	s.o.Registry.BroadcastToRoom(m.Room, core.LeftNotice(m.Username(), m.Room))
}

func (o *Orchestrator) defaultRoom() domain.RoomName {
	if o.DefaultRoom == "" {
		return domain.DefaultRoom
	}
	return o.DefaultRoom
}

func eventLabel(t core.EventType) string {
	switch t {
	case core.EventJoin, core.EventChat, core.EventTyping, core.EventStopTyping,
		core.EventSwitchRoom, core.EventPing, core.EventWhoAmI:
		return string(t)
	default:
		return "unknown"
	}
}
