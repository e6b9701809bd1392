package match

import (
	"time"

	"github.com/google/uuid"
)

type MatchStatus string

const (
	MatchPending  MatchStatus = "pending"
	MatchActive   MatchStatus = "active"
	MatchRejected MatchStatus = "rejected"
)

type Match struct {
	ID        uuid.UUID   `json:"id" db:"id"`
	UserID1   uuid.UUID   `json:"userId1" db:"user_id_1"`
	UserID2   uuid.UUID   `json:"userId2" db:"user_id_2"`
	Status    MatchStatus `json:"status" db:"status"`
	CreatedAt time.Time   `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time   `json:"updatedAt" db:"updated_at"`
}

// MatchWithPartner is what clients render in the match list: the match row
// plus the other participant's display fields.
type MatchWithPartner struct {
	Match
	PartnerID       uuid.UUID `json:"partnerId"`
	PartnerUsername string    `json:"partnerUsername"`
	PartnerImageURL string    `json:"partnerImageUrl,omitempty"`
}

type RequestMatchRequest struct {
	TargetUserID string `json:"targetUserId"`
}

type RespondMatchRequest struct {
	Accept bool `json:"accept"`
}
