package app

import (
	"fmt"

	"github.com/dkeye/RoomChat/internal/core"
	"github.com/dkeye/RoomChat/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a broadcast target whose outbound queue
// refused a frame.
type Policy interface {
	OnBackPressure(room domain.RoomName, sid core.SessionID) BackpressureAction
}

// SimplePolicy disconnects slow members; their own session then leaves the
// room the usual way.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomName, core.SessionID) BackpressureAction {
	return KickMember
}

// DropPolicy keeps slow members connected and only loses the frame.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomName, core.SessionID) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the config value to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return DropPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
