package agent

import "time"

// Session binds a caller-chosen name to a remote conversation thread.
type Session struct {
	Name      string    `json:"name"`
	RemoteID  string    `json:"remoteId"`
	CreatedAt time.Time `json:"createdAt"`
}
