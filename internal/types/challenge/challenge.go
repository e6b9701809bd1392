package challenge

import (
	"time"

	"github.com/google/uuid"
)

type ChallengeType string

const (
	TypeGeneric       ChallengeType = "generic"
	TypeDaysSober     ChallengeType = "days_sober"
	TypeCheckInStreak ChallengeType = "check_in_streak"
)

type ChallengeStatus string

const (
	StatusActive    ChallengeStatus = "active"
	StatusCompleted ChallengeStatus = "completed"
	StatusInactive  ChallengeStatus = "inactive"
)

type Challenge struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	MatchID       uuid.UUID       `json:"matchId" db:"match_id"`
	Title         string          `json:"title" db:"title"`
	Description   string          `json:"description" db:"description"`
	ChallengeType ChallengeType   `json:"challengeType" db:"challenge_type"`
	TotalSteps    int             `json:"totalSteps" db:"total_steps"`
	Status        ChallengeStatus `json:"status" db:"status"`
	CreatedAt     time.Time       `json:"createdAt" db:"created_at"`
}

// Progress is the per-(challenge, user) mutable record. StepsCompleted is
// only written by explicit progress logging (plus one per accepted check-in
// on streak challenges); MilestoneIndex records the highest milestone
// already credited and guards against double awards. The two are kept
// separate on purpose.
type Progress struct {
	ID             uuid.UUID  `json:"id" db:"id"`
	ChallengeID    uuid.UUID  `json:"challengeId" db:"challenge_id"`
	UserID         uuid.UUID  `json:"userId" db:"user_id"`
	StepsCompleted int        `json:"stepsCompleted" db:"steps_completed"`
	MilestoneIndex int        `json:"milestoneIndex" db:"milestone_index"`
	DaysSober      int        `json:"daysSober" db:"days_sober"`
	LastSoberDate  *time.Time `json:"lastSoberDate,omitempty" db:"last_sober_date"`
	CurrentStreak  int        `json:"currentStreak" db:"current_streak"`
	LongestStreak  int        `json:"longestStreak" db:"longest_streak"`
	LastCheckIn    *time.Time `json:"lastCheckIn,omitempty" db:"last_check_in"`
	LastUpdated    time.Time  `json:"lastUpdated" db:"last_updated"`
}

// ChallengeWithProgress enriches a challenge with both participants' records
// for the list endpoint so the client needs no follow-up fetches.
type ChallengeWithProgress struct {
	Challenge
	MyProgress      *Progress `json:"myProgress,omitempty"`
	PartnerProgress *Progress `json:"partnerProgress,omitempty"`
}

type CreateChallengeRequest struct {
	MatchID       string        `json:"matchId"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	ChallengeType ChallengeType `json:"challengeType"`
	TotalSteps    int           `json:"totalSteps"`
}

type LogProgressRequest struct {
	StepsCompleted int `json:"stepsCompleted"`
}

type UpdateSobrietyRequest struct {
	DaysSober int `json:"daysSober"`
}

// Suggestion is a server-templated challenge idea. The AI generator sits off
// the critical path; these are rendered from a fixed catalog.
type Suggestion struct {
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	ChallengeType ChallengeType `json:"challengeType"`
	TotalSteps    int           `json:"totalSteps"`
}

type StreakSnapshot struct {
	ChallengeID   uuid.UUID  `json:"challengeId"`
	CurrentStreak int        `json:"currentStreak"`
	LongestStreak int        `json:"longestStreak"`
	LastCheckIn   *time.Time `json:"lastCheckIn,omitempty"`
}
