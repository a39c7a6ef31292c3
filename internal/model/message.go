package model

import (
	"time"
)

// RecipientType mirrors the kinds of conversation a message can belong to.
type RecipientType int

const (
	RecipientPersonal RecipientType = 1
	RecipientStream   RecipientType = 2
	RecipientHuddle   RecipientType = 3
)

// Triggers carried by missed-message events.
const (
	TriggerPrivateMessage   = "private_message"
	TriggerMentioned        = "mentioned"
	TriggerStreamPushNotify = "stream_push_notify"
)

// Message is a rendered message as handed over by the message store.
type Message struct {
	ID               int64         `db:"id"`
	Sender           UserProfile   `db:"sender"`
	RecipientType    RecipientType `db:"recipient_type"`
	DisplayRecipient string        `db:"display_recipient"` // stream name for stream messages
	Subject          string        `db:"subject"`
	RenderedContent  string        `db:"rendered_content"`
	PubDate          time.Time     `db:"pub_date"`
}

// UserMessage is the per-recipient view of a message.
type UserMessage struct {
	UserID  int64   `db:"user_id"`
	Read    bool    `db:"is_read"`
	Message Message `db:"message"`
}
