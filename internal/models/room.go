package models

import "time"

// RoomType distinguishes named group rooms from two-party DM rooms.
type RoomType string

const (
	RoomGroup RoomType = "group"
	RoomDM    RoomType = "dm"
)

// Room is a container for messages and calls with a membership set.
// A dm room has exactly two distinct members and is unique per unordered
// pair. A group room has a non-empty name and at least one member.
type Room struct {
	ID        string    `json:"id"`
	Type      RoomType  `json:"type"`
	Name      string    `json:"name,omitempty"`
	Members   []string  `json:"members"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// HasMember reports whether userID belongs to the room.
func (r *Room) HasMember(userID string) bool {
	for _, id := range r.Members {
		if id == userID {
			return true
		}
	}
	return false
}
