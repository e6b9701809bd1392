package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reConnectAPI/internal/types/match"
	"reConnectAPI/internal/types/notification"
)

type MatchService struct {
	db    *pgxpool.Pool
	users *UserService
	hub   *Hub
}

func NewMatchService(db *pgxpool.Pool, users *UserService, hub *Hub) *MatchService {
	return &MatchService{db: db, users: users, hub: hub}
}

// GetMatches returns every match the user participates in, newest first,
// with the partner's display fields joined in.
func (s *MatchService) GetMatches(ctx context.Context, clerkID string) ([]*match.MatchWithPartner, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT m.id, m.user_id_1, m.user_id_2, m.status, m.created_at, m.updated_at,
	       u.id, u.username, u.image_url
	FROM matches m
	JOIN users u ON u.id = CASE WHEN m.user_id_1 = $1 THEN m.user_id_2 ELSE m.user_id_1 END
	WHERE m.user_id_1 = $1 OR m.user_id_2 = $1
	ORDER BY m.updated_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	defer rows.Close()

	matches := []*match.MatchWithPartner{}
	for rows.Next() {
		m := &match.MatchWithPartner{}
		err := rows.Scan(
			&m.ID,
			&m.UserID1,
			&m.UserID2,
			&m.Status,
			&m.CreatedAt,
			&m.UpdatedAt,
			&m.PartnerID,
			&m.PartnerUsername,
			&m.PartnerImageURL,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, m)
	}

	return matches, nil
}

// RequestMatch creates a pending match from the caller to the target and
// notifies the target through the hub. Requesting a match that already
// exists in either direction is rejected.
func (s *MatchService) RequestMatch(ctx context.Context, clerkID string, req *match.RequestMatchRequest) (*match.Match, error) {
	requester, err := s.users.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	requesterID := requester.ID

	targetID, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		return nil, fmt.Errorf("invalid target user id")
	}
	if targetID == requesterID {
		return nil, fmt.Errorf("cannot match with yourself")
	}

	var exists bool
	err = s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE ((user_id_1 = $1 AND user_id_2 = $2) OR (user_id_1 = $2 AND user_id_2 = $1))
			  AND status IN ('pending', 'active')
		)`, requesterID, targetID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing match: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("match already exists")
	}

	m := &match.Match{
		ID:        uuid.New(),
		UserID1:   requesterID,
		UserID2:   targetID,
		Status:    match.MatchPending,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	query := `
	INSERT INTO matches (id, user_id_1, user_id_2, status, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = s.db.Exec(ctx, query, m.ID, m.UserID1, m.UserID2, m.Status, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create match: %w", err)
	}

	if s.hub != nil {
		matchID := m.ID
		fromID := requesterID
		s.hub.Send(targetID, notification.Frame{
			Type:         notification.TypeNewMatchRequest,
			MatchID:      &matchID,
			FromUserID:   &fromID,
			FromUsername: requester.Username,
			FromImageURL: requester.ImageURL,
			SentAt:       time.Now(),
		})
	}

	return m, nil
}

// RespondMatch accepts or rejects a pending match. Only the recipient
// (user_id_2) may respond, and only while the match is pending.
func (s *MatchService) RespondMatch(ctx context.Context, clerkID string, matchID uuid.UUID, accept bool) (*match.Match, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.UserID2 != userID {
		if m.UserID1 == userID {
			return nil, fmt.Errorf("not allowed to respond to this match")
		}
		return nil, fmt.Errorf("match not found")
	}
	if m.Status != match.MatchPending {
		return nil, fmt.Errorf("match is not pending")
	}

	status := match.MatchRejected
	if accept {
		status = match.MatchActive
	}

	query := `
	UPDATE matches SET status = $2, updated_at = $3
	WHERE id = $1 AND status = 'pending'
	RETURNING id, user_id_1, user_id_2, status, created_at, updated_at
	`

	updated := &match.Match{}
	err = s.db.QueryRow(ctx, query, matchID, status, time.Now()).Scan(
		&updated.ID,
		&updated.UserID1,
		&updated.UserID2,
		&updated.Status,
		&updated.CreatedAt,
		&updated.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("match is not pending")
		}
		return nil, fmt.Errorf("failed to respond to match: %w", err)
	}

	return updated, nil
}

func (s *MatchService) GetMatch(ctx context.Context, matchID uuid.UUID) (*match.Match, error) {
	query := `SELECT id, user_id_1, user_id_2, status, created_at, updated_at FROM matches WHERE id = $1`

	m := &match.Match{}
	err := s.db.QueryRow(ctx, query, matchID).Scan(
		&m.ID,
		&m.UserID1,
		&m.UserID2,
		&m.Status,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("match not found")
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return m, nil
}

// ActiveMatchForUser verifies the user participates in the match and that it
// is active. Challenge and message operations gate on this.
func (s *MatchService) ActiveMatchForUser(ctx context.Context, matchID, userID uuid.UUID) (*match.Match, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.UserID1 != userID && m.UserID2 != userID {
		return nil, fmt.Errorf("not a participant in this match")
	}
	if m.Status != match.MatchActive {
		return nil, fmt.Errorf("match is not active")
	}
	return m, nil
}

// MatchIDsForUser returns the ids of every match the user participates in,
// regardless of status.
func (s *MatchService) MatchIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.db.Query(ctx, `SELECT id FROM matches WHERE user_id_1 = $1 OR user_id_2 = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get matches: %w", err)
	}
	defer rows.Close()

	ids := []uuid.UUID{}
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan match id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, nil
}

// PendingMatchesForUser implements the hub's snapshot query: requests the
// user has received but not yet responded to.
func (s *MatchService) PendingMatchesForUser(ctx context.Context, userID uuid.UUID) ([]notification.PendingMatch, error) {
	query := `
	SELECT m.id, u.id, u.username, u.image_url, m.created_at
	FROM matches m
	JOIN users u ON u.id = m.user_id_1
	WHERE m.user_id_2 = $1 AND m.status = 'pending'
	ORDER BY m.created_at ASC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		log.Printf("PendingMatchesForUser: query failed: %v", err)
		return nil, fmt.Errorf("failed to get pending matches: %w", err)
	}
	defer rows.Close()

	pending := []notification.PendingMatch{}
	for rows.Next() {
		p := notification.PendingMatch{}
		if err := rows.Scan(&p.MatchID, &p.FromUserID, &p.FromUsername, &p.FromImageURL, &p.RequestedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending match: %w", err)
		}
		pending = append(pending, p)
	}

	return pending, nil
}
