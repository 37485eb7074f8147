package domain

// RoomName identifies a room. A room has no record of its own: it exists
// while at least one member is recorded against its name.
type RoomName string

const DefaultRoom RoomName = "general"
