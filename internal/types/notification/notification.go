package notification

import (
	"time"

	"github.com/google/uuid"
)

type FrameType string

const (
	TypeNewMatchRequest FrameType = "new_match_request"
	TypePendingMatches  FrameType = "pending_matches"
	TypeNewMessage      FrameType = "new_message"
	TypePartnerCheckIn  FrameType = "partner_check_in"
)

// PendingMatch is one entry of the snapshot pushed right after a client
// authenticates: match requests the user has not responded to yet.
type PendingMatch struct {
	MatchID       uuid.UUID `json:"matchId"`
	FromUserID    uuid.UUID `json:"fromUserId"`
	FromUsername  string    `json:"fromUsername"`
	FromImageURL  string    `json:"fromImageUrl,omitempty"`
	RequestedAt   time.Time `json:"requestedAt"`
}

// Frame is the tagged union sent to clients over the WebSocket. Fields carry
// enough denormalized data that the client can render a toast without a
// follow-up fetch. Frames are transient: never persisted, buffered in memory
// while the recipient is offline, dropped on process restart.
type Frame struct {
	Type          FrameType      `json:"type"`
	MatchID       *uuid.UUID     `json:"matchId,omitempty"`
	ChallengeID   *uuid.UUID     `json:"challengeId,omitempty"`
	FromUserID    *uuid.UUID     `json:"fromUserId,omitempty"`
	FromUsername  string         `json:"fromUsername,omitempty"`
	FromImageURL  string         `json:"fromImageUrl,omitempty"`
	Content       string         `json:"content,omitempty"`
	CurrentStreak int            `json:"currentStreak,omitempty"`
	Matches       []PendingMatch `json:"matches,omitempty"`
	SentAt        time.Time      `json:"sentAt"`
}

// AuthFrame is the only inbound message type the server handles.
type AuthFrame struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}
