package model

// MissedMessageEvent is the queue event asking for a mobile push for one
// message that a user did not see in real time.
//
// FailedTries is owned by the retry queue; it is absent on first delivery.
type MissedMessageEvent struct {
	UserProfileID int64  `json:"user_profile_id"`
	MessageID     int64  `json:"message_id"`
	Trigger       string `json:"trigger"`
	StreamName    string `json:"stream_name,omitempty"`
	FailedTries   *int   `json:"failed_tries,omitempty"`
}
