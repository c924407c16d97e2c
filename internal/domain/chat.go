package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message is an immutable chat record. CreatedAt is assigned by the database.
type Message struct {
	ID        int64     `json:"id"`
	ProjectID uuid.UUID `json:"projectId"`
	SenderID  uuid.UUID `json:"senderId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// MessageView is the resolved shape used both for history and live broadcast.
type MessageView struct {
	ID           int64     `json:"_id"`
	Content      string    `json:"content"`
	Sender       uuid.UUID `json:"sender"`
	SenderName   string    `json:"senderName"`
	SenderAvatar string    `json:"senderAvatar"`
	ProjectID    uuid.UUID `json:"projectId"`
	Timestamp    time.Time `json:"timestamp"`
}

type SendMessageInput struct {
	ProjectID uuid.UUID `json:"projectId" binding:"required"`
	Content   string    `json:"content"`
}

// PresenceUser is one entry of a room's online list.
type PresenceUser struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
