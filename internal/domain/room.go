package domain

type (
	RoomCode  string
	GroupCode string
)

// GroupInfo describes a group to be batch-created on a room.
type GroupInfo struct {
	Name string `json:"name"`
}
