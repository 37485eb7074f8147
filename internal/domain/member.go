package domain

// Member is the membership record of one connection: who it announced itself
// as and which room it currently sits in.
// No transport or lifecycle logic here.
type Member struct {
	User *User
	Room RoomName
}

// NewMember avoids raw literals in adapters and keeps construction obvious.
func NewMember(user *User, room RoomName) Member {
	return Member{User: user, Room: room}
}

// Username is nil-safe; the zero Member reports an empty name.
func (m Member) Username() string {
	if m.User == nil {
		return ""
	}
	return m.User.Username
}
