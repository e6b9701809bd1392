package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reConnectAPI/internal/types/meeting"
)

type MeetingService struct {
	db    *pgxpool.Pool
	users *UserService
}

func NewMeetingService(db *pgxpool.Pool, users *UserService) *MeetingService {
	return &MeetingService{db: db, users: users}
}

// ListUpcoming returns future meetings soonest first, with the going count
// and the caller's own RSVP joined in.
func (s *MeetingService) ListUpcoming(ctx context.Context, clerkID string) ([]*meeting.MeetingWithRSVP, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT m.id, m.title, m.description, m.location, m.meeting_time, m.created_by, m.created_at,
	       COUNT(r.user_id) FILTER (WHERE r.status = 'going'),
	       COALESCE(mine.status, '')
	FROM meetings m
	LEFT JOIN meeting_rsvps r ON r.meeting_id = m.id
	LEFT JOIN meeting_rsvps mine ON mine.meeting_id = m.id AND mine.user_id = $1
	WHERE m.meeting_time > NOW()
	GROUP BY m.id, mine.status
	ORDER BY m.meeting_time ASC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get meetings: %w", err)
	}
	defer rows.Close()

	meetings := []*meeting.MeetingWithRSVP{}
	for rows.Next() {
		m := &meeting.MeetingWithRSVP{}
		err := rows.Scan(
			&m.ID, &m.Title, &m.Description, &m.Location, &m.MeetingTime,
			&m.CreatedBy, &m.CreatedAt, &m.GoingCount, &m.MyRSVP,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan meeting: %w", err)
		}
		meetings = append(meetings, m)
	}

	return meetings, nil
}

func (s *MeetingService) CreateMeeting(ctx context.Context, clerkID string, req *meeting.CreateMeetingRequest) (*meeting.Meeting, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("meeting title is empty")
	}
	if req.MeetingTime.Before(time.Now()) {
		return nil, fmt.Errorf("meeting time is in the past")
	}

	m := &meeting.Meeting{
		ID:          uuid.New(),
		Title:       title,
		Description: req.Description,
		Location:    req.Location,
		MeetingTime: req.MeetingTime,
		CreatedBy:   userID,
		CreatedAt:   time.Now(),
	}

	query := `
	INSERT INTO meetings (id, title, description, location, meeting_time, created_by, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = s.db.Exec(ctx, query, m.ID, m.Title, m.Description, m.Location, m.MeetingTime, m.CreatedBy, m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create meeting: %w", err)
	}

	return m, nil
}

// RSVP records or replaces the caller's response to a meeting.
func (s *MeetingService) RSVP(ctx context.Context, clerkID string, meetingID uuid.UUID, status meeting.RSVPStatus) error {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	if status != meeting.RSVPGoing && status != meeting.RSVPNotGoing {
		return fmt.Errorf("invalid rsvp status")
	}

	var exists uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT id FROM meetings WHERE id = $1`, meetingID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("meeting not found")
		}
		return fmt.Errorf("failed to get meeting: %w", err)
	}

	query := `
	INSERT INTO meeting_rsvps (meeting_id, user_id, status, updated_at)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (meeting_id, user_id)
	DO UPDATE SET status = $3, updated_at = $4
	`

	_, err = s.db.Exec(ctx, query, meetingID, userID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save rsvp: %w", err)
	}
	return nil
}
