package models

// Message is one chat message. Messages are append-only and never
// mutated or deleted. CreatedAt is unix milliseconds and is
// non-decreasing within a room so it can serve as a polling cursor.
type Message struct {
	ID        string `json:"id"` // ULID
	RoomID    string `json:"room_id"`
	AuthorID  string `json:"author_id,omitempty"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"` // unix ms
}
