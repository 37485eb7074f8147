package app

import (
	"cmp"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
	"github.com/dkeye/RoomChat/internal/metrics"
)

type sessionEntry struct {
	RoomName domain.RoomName
	Conn     core.SignalConnection
}

// Registry is the single source of truth for room membership. sessions and
// users always hold the same keys. Every mutation and the broadcast it
// triggers run under one lock; sends never block because connections only
// enqueue.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	users    map[core.SessionID]*domain.User
	policy   Policy
}

// PublishResult reports delivery stats/backpressure of one broadcast.
type PublishResult struct {
	SendTo  int
	Dropped []core.SessionID
}

type RoomInfo struct {
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"client_count"`
}

// NewRegistry returns an empty registry. A nil policy leaves dropped targets
// alone.
func NewRegistry(policy Policy) *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		users:    make(map[core.SessionID]*domain.User),
		policy:   policy,
	}
}

// Join records sid in room under username and announces it to the room,
// newcomer included.
func (r *Registry) Join(sid core.SessionID, conn core.SignalConnection, username string, room domain.RoomName) error {
	if room == "" {
		room = domain.DefaultRoom
	}
	user := domain.NewUser(username)

	r.mu.Lock()
	if _, ok := r.sessions[sid]; ok {
		r.mu.Unlock()
		log.Error().Str("module", "app.registry").Str("sid", string(sid)).Msg("join on registered session")
		return fmt.Errorf("join %s: %w", sid, core.ErrAlreadyJoined)
	}
	r.sessions[sid] = &sessionEntry{RoomName: room, Conn: conn}
	r.users[sid] = user
	res := r.broadcastLocked(room, core.JoinedNotice(user.Username, room), "")
	r.mu.Unlock()

	metrics.MembersJoined.Inc()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("user", user.Username).Str("room", string(room)).Msg("joined")
	r.applyPolicy(room, res)
	return nil
}

// SwitchRoom moves sid to newRoom. The old room hears the departure after the
// mover is gone; the new room hears the arrival, the mover does not.
// An empty or unchanged room is a no-op.
func (r *Registry) SwitchRoom(sid core.SessionID, newRoom domain.RoomName) error {
	r.mu.Lock()
	entry, ok := r.sessions[sid]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("switch %s: %w", sid, core.ErrNotJoined)
	}
	if newRoom == "" || newRoom == entry.RoomName {
		r.mu.Unlock()
		return nil
	}
	oldRoom := entry.RoomName
	entry.RoomName = newRoom
	name := r.users[sid].Username
	left := r.broadcastLocked(oldRoom, core.LeftNotice(name, oldRoom), "")
	joined := r.broadcastLocked(newRoom, core.JoinedNotice(name, newRoom), sid)
	r.mu.Unlock()

	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("from", string(oldRoom)).Str("to", string(newRoom)).Msg("switched room")
	r.applyPolicy(oldRoom, left)
	r.applyPolicy(newRoom, joined)
	return nil
}

// Leave drops the membership record of sid and returns what it was. The
// second result is false when sid was never registered.
func (r *Registry) Leave(sid core.SessionID) (domain.Member, bool) {
	r.mu.Lock()
	entry, ok := r.sessions[sid]
	if !ok {
		r.mu.Unlock()
		return domain.Member{}, false
	}
	user := r.users[sid]
	delete(r.sessions, sid)
	delete(r.users, sid)
	r.mu.Unlock()

	metrics.MembersJoined.Dec()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(entry.RoomName)).Msg("left")
	return domain.NewMember(user, entry.RoomName), true
}

// BroadcastToRoom delivers ev to everyone currently in room. A target that
// refuses the frame does not affect the others.
func (r *Registry) BroadcastToRoom(room domain.RoomName, ev core.Event) PublishResult {
	r.mu.RLock()
	res := r.broadcastLocked(room, ev, "")
	r.mu.RUnlock()

	r.applyPolicy(room, res)
	return res
}

// SendTo delivers ev to a single registered session.
func (r *Registry) SendTo(sid core.SessionID, ev core.Event) error {
	r.mu.RLock()
	entry, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("send %s: %w", sid, core.ErrNotJoined)
	}
	f, err := core.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return entry.Conn.TrySend(f)
}

// broadcastLocked must be called with r.mu held.
func (r *Registry) broadcastLocked(room domain.RoomName, ev core.Event, except core.SessionID) PublishResult {
	res := PublishResult{}
	f, err := core.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("broadcast encode")
		return res
	}
	for sid, e := range r.sessions {
		if e.RoomName != room || sid == except {
			continue
		}
		if err := e.Conn.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, sid)
			continue
		}
		res.SendTo++
	}
	metrics.Deliveries.WithLabelValues("sent").Add(float64(res.SendTo))
	metrics.Deliveries.WithLabelValues("dropped").Add(float64(len(res.Dropped)))
	log.Debug().Str("module", "app.registry").Str("room", string(room)).Str("type", string(ev.Type)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *Registry) applyPolicy(room domain.RoomName, res PublishResult) {
	if r.policy == nil {
		return
	}
	for _, sid := range res.Dropped {
		switch r.policy.OnBackPressure(room, sid) {
		case KickMember:
			r.Kick(sid)
		case DropFrame, NoAction:
		}
	}
}

// Kick closes the connection of sid. The membership itself is released by
// the session owning that connection.
func (r *Registry) Kick(sid core.SessionID) bool {
	r.mu.RLock()
	entry, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	entry.Conn.Close()
	log.Warn().Str("module", "app.registry").Str("sid", string(sid)).Msg("kicked slow member")
	return true
}

// SnapshotRoom returns the sessions recorded in room, sorted.
func (r *Registry) SnapshotRoom(room domain.RoomName) []core.SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.SessionID, 0)
	for sid, e := range r.sessions {
		if e.RoomName == room {
			out = append(out, sid)
		}
	}
	slices.Sort(out)
	return out
}

func (r *Registry) RoomOf(sid core.SessionID) (domain.Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return domain.Member{}, false
	}
	return domain.NewMember(r.users[sid], entry.RoomName), true
}

// Rooms lists every non-empty room by name.
func (r *Registry) Rooms() []RoomInfo {
	r.mu.RLock()
	counts := make(map[domain.RoomName]int)
	for _, e := range r.sessions {
		counts[e.RoomName]++
	}
	r.mu.RUnlock()

	out := make([]RoomInfo, 0, len(counts))
	for name, n := range counts {
		out = append(out, RoomInfo{Name: name, MemberCount: n})
	}
	slices.SortFunc(out, func(a, b RoomInfo) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
