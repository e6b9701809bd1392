package message

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID        uuid.UUID `json:"id" db:"id"`
	MatchID   uuid.UUID `json:"matchId" db:"match_id"`
	SenderID  uuid.UUID `json:"senderId" db:"sender_id"`
	Content   string    `json:"content" db:"content"`
	Read      bool      `json:"read" db:"read"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
}
