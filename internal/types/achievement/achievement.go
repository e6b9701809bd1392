package achievement

import (
	"time"

	"github.com/google/uuid"
)

type Achievement struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	UserID      uuid.UUID  `json:"userId" db:"user_id"`
	ChallengeID *uuid.UUID `json:"challengeId,omitempty" db:"challenge_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Points      int        `json:"points" db:"points"`
	EarnedAt    time.Time  `json:"earnedAt" db:"earned_at"`
}
