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

	"reConnectAPI/internal/types/message"
	"reConnectAPI/internal/types/notification"
)

type MessageService struct {
	db      *pgxpool.Pool
	users   *UserService
	matches *MatchService
	hub     *Hub
}

func NewMessageService(db *pgxpool.Pool, users *UserService, matches *MatchService, hub *Hub) *MessageService {
	return &MessageService{db: db, users: users, matches: matches, hub: hub}
}

// GetMessages returns the match's messages oldest first. Only participants
// may read them.
func (s *MessageService) GetMessages(ctx context.Context, clerkID string, matchID uuid.UUID) ([]*message.Message, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	if _, err := s.matches.ActiveMatchForUser(ctx, matchID, userID); err != nil {
		return nil, err
	}

	query := `
	SELECT id, match_id, sender_id, content, read, created_at
	FROM messages
	WHERE match_id = $1
	ORDER BY created_at ASC
	`

	rows, err := s.db.Query(ctx, query, matchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	defer rows.Close()

	messages := []*message.Message{}
	for rows.Next() {
		m := &message.Message{}
		if err := rows.Scan(&m.ID, &m.MatchID, &m.SenderID, &m.Content, &m.Read, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}

	return messages, nil
}

func (s *MessageService) SendMessage(ctx context.Context, clerkID string, matchID uuid.UUID, req *message.SendMessageRequest) (*message.Message, error) {
	sender, err := s.users.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	senderID := sender.ID

	m, err := s.matches.ActiveMatchForUser(ctx, matchID, senderID)
	if err != nil {
		return nil, err
	}

	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, fmt.Errorf("message content is empty")
	}

	msg := &message.Message{
		ID:        uuid.New(),
		MatchID:   matchID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now(),
	}

	query := `
	INSERT INTO messages (id, match_id, sender_id, content, read, created_at)
	VALUES ($1, $2, $3, $4, false, $5)
	`

	_, err = s.db.Exec(ctx, query, msg.ID, msg.MatchID, msg.SenderID, msg.Content, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	partnerID := m.UserID1
	if partnerID == senderID {
		partnerID = m.UserID2
	}

	if s.hub != nil {
		mID := matchID
		fID := senderID
		s.hub.Send(partnerID, notification.Frame{
			Type:         notification.TypeNewMessage,
			MatchID:      &mID,
			FromUserID:   &fID,
			FromUsername: sender.Username,
			FromImageURL: sender.ImageURL,
			Content:      content,
			SentAt:       time.Now(),
		})
	}

	return msg, nil
}

// MarkRead flags a message as read. Only the recipient may do so; marking
// your own message is rejected.
func (s *MessageService) MarkRead(ctx context.Context, clerkID string, messageID uuid.UUID) error {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return err
	}

	var matchID, senderID uuid.UUID
	err = s.db.QueryRow(ctx, `SELECT match_id, sender_id FROM messages WHERE id = $1`, messageID).Scan(&matchID, &senderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("message not found")
		}
		return fmt.Errorf("failed to get message: %w", err)
	}

	if senderID == userID {
		return fmt.Errorf("cannot mark your own message as read")
	}

	m, err := s.matches.GetMatch(ctx, matchID)
	if err != nil {
		return err
	}
	if m.UserID1 != userID && m.UserID2 != userID {
		return fmt.Errorf("not a participant in this match")
	}

	_, err = s.db.Exec(ctx, `UPDATE messages SET read = true WHERE id = $1`, messageID)
	if err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}
