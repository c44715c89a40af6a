package models

import "time"

// Message types.
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
)

// Message represents a direct message between two users.
type Message struct {
	ID          int64     `db:"id" json:"id"`
	FromUserID  string    `db:"from_user_id" json:"from_user_id"`
	ToUserID    string    `db:"to_user_id" json:"to_user_id"`
	Text        string    `db:"text" json:"text,omitempty"`
	MessageType string    `db:"message_type" json:"message_type"`
	MediaURL    string    `db:"media_url" json:"media_url,omitempty"`
	Seen        bool      `db:"seen" json:"seen"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// RecentMessage is the latest inbound message from one counterpart,
// annotated with the number of unseen messages in that conversation.
type RecentMessage struct {
	Message
	UnreadCount int64 `json:"unread_count"`
}

// MessageEvent is emitted over live delivery channels.
type MessageEvent struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
}
