package models

// CallType is the media kind of a call.
type CallType string

const (
	CallVoice CallType = "voice"
	CallVideo CallType = "video"
)

// CallStatus is the lifecycle state of a call. Ended is terminal.
type CallStatus string

const (
	CallActive CallStatus = "active"
	CallEnded  CallStatus = "ended"
)

// Call is voice/video call metadata for a room. At most one call per
// room is active at any time. Participants are usernames in join order.
type Call struct {
	ID           string     `json:"id"`
	RoomID       string     `json:"room_id"`
	Type         CallType   `json:"type"`
	Status       CallStatus `json:"status"`
	Participants []string   `json:"participants"`
	StartedAt    int64      `json:"started_at"`         // unix ms
	EndedAt      *int64     `json:"ended_at,omitempty"` // unix ms, nil until ended
}

// HasParticipant reports whether username already joined the call.
func (c *Call) HasParticipant(username string) bool {
	for _, p := range c.Participants {
		if p == username {
			return true
		}
	}
	return false
}
