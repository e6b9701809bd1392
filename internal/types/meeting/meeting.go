package meeting

import (
	"time"

	"github.com/google/uuid"
)

type RSVPStatus string

const (
	RSVPGoing    RSVPStatus = "going"
	RSVPNotGoing RSVPStatus = "not_going"
)

type Meeting struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Location    string    `json:"location" db:"location"`
	MeetingTime time.Time `json:"meetingTime" db:"meeting_time"`
	CreatedBy   uuid.UUID `json:"createdBy" db:"created_by"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

type MeetingWithRSVP struct {
	Meeting
	GoingCount int        `json:"goingCount"`
	MyRSVP     RSVPStatus `json:"myRsvp,omitempty"`
}

type CreateMeetingRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	MeetingTime time.Time `json:"meetingTime"`
}

type RSVPRequest struct {
	Status RSVPStatus `json:"status"`
}
