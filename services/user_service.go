package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reConnectAPI/internal/types/achievement"
	"reConnectAPI/internal/types/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

const userColumns = `id, clerk_id, email, username, first_name, last_name, image_url, email_verified, bio, interests, recovery_goals, points, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.ClerkID,
		&u.Email,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.ImageURL,
		&u.EmailVerified,
		&u.Bio,
		&u.Interests,
		&u.RecoveryGoals,
		&u.Points,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if u.Interests == nil {
		u.Interests = []string{}
	}
	return u, nil
}

func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	query := `
	INSERT INTO users (id, clerk_id, email, username, first_name, last_name, image_url, interests, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, '{}', $8, $8)
	ON CONFLICT (clerk_id) DO UPDATE SET
		email = EXCLUDED.email,
		username = EXCLUDED.username,
		first_name = EXCLUDED.first_name,
		last_name = EXCLUDED.last_name,
		image_url = EXCLUDED.image_url,
		updated_at = EXCLUDED.updated_at
	RETURNING ` + userColumns

	now := time.Now()
	u, err := scanUser(s.db.QueryRow(
		ctx,
		query,
		uuid.New(),
		req.ClerkID,
		req.Email,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
		now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE clerk_id = $1`

	u, err := scanUser(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return u, nil
}

// ResolveUserID maps the authenticated clerk_id to the internal uuid. Every
// service method that receives a clerk_id starts here.
func (s *UserService) ResolveUserID(ctx context.Context, clerkID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE clerk_id = $1`, clerkID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("user not found")
		}
		return uuid.Nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	return id, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	interests := req.Interests
	if interests == nil {
		interests = []string{}
	}

	query := `
	UPDATE users
	SET username = $2, first_name = $3, last_name = $4, image_url = $5,
	    bio = $6, interests = $7, recovery_goals = $8, updated_at = $9
	WHERE clerk_id = $1
	RETURNING ` + userColumns

	u, err := scanUser(s.db.QueryRow(
		ctx,
		query,
		clerkID,
		req.Username,
		req.FirstName,
		req.LastName,
		req.ImageURL,
		req.Bio,
		interests,
		req.RecoveryGoals,
		time.Now(),
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	return u, nil
}

func (s *UserService) UpdateUserFromClerk(ctx context.Context, req *user.CreateUserRequest) error {
	query := `
	UPDATE users
	SET email = $2, username = $3, first_name = $4, last_name = $5, image_url = $6, updated_at = $7
	WHERE clerk_id = $1
	`

	_, err := s.db.Exec(ctx, query, req.ClerkID, req.Email, req.Username, req.FirstName, req.LastName, req.ImageURL, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	_, err := s.db.Exec(ctx, `UPDATE users SET email_verified = $2, updated_at = $3 WHERE clerk_id = $1`, clerkID, verified, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update email verification: %w", err)
	}
	return nil
}

func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM users WHERE clerk_id = $1`, clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}

func (s *UserService) RegisterDevice(ctx context.Context, clerkID string, req *user.RegisterDeviceRequest) error {
	tag, err := s.db.Exec(ctx, `UPDATE users SET device_token = $2, device_platform = $3, updated_at = $4 WHERE clerk_id = $1`,
		clerkID, req.Token, req.Platform, time.Now())
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}
	return nil
}

func (s *UserService) GetAchievements(ctx context.Context, clerkID string) ([]*achievement.Achievement, error) {
	userID, err := s.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	query := `
	SELECT id, user_id, challenge_id, title, description, points, earned_at
	FROM achievements
	WHERE user_id = $1
	ORDER BY earned_at DESC
	`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get achievements: %w", err)
	}
	defer rows.Close()

	achievements := []*achievement.Achievement{}
	for rows.Next() {
		a := &achievement.Achievement{}
		if err := rows.Scan(&a.ID, &a.UserID, &a.ChallengeID, &a.Title, &a.Description, &a.Points, &a.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		achievements = append(achievements, a)
	}

	return achievements, nil
}

// SearchUsers finds potential partners by username prefix, excluding the
// caller and anyone the caller already has a match with.
func (s *UserService) SearchUsers(ctx context.Context, clerkID, search string) ([]*user.User, error) {
	userID, err := s.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	search = strings.TrimSpace(search)
	if search == "" {
		return []*user.User{}, nil
	}

	query := `
	SELECT ` + userColumns + `
	FROM users
	WHERE id != $1
	  AND username ILIKE $2 || '%'
	  AND id NOT IN (
		SELECT user_id_2 FROM matches WHERE user_id_1 = $1 AND status IN ('pending', 'active')
		UNION
		SELECT user_id_1 FROM matches WHERE user_id_2 = $1 AND status IN ('pending', 'active')
	  )
	ORDER BY username
	LIMIT 20
	`

	rows, err := s.db.Query(ctx, query, userID, search)
	if err != nil {
		log.Printf("SearchUsers: query failed: %v", err)
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users := []*user.User{}
	for rows.Next() {
		u := &user.User{}
		err := rows.Scan(
			&u.ID,
			&u.ClerkID,
			&u.Email,
			&u.Username,
			&u.FirstName,
			&u.LastName,
			&u.ImageURL,
			&u.EmailVerified,
			&u.Bio,
			&u.Interests,
			&u.RecoveryGoals,
			&u.Points,
			&u.CreatedAt,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if u.Interests == nil {
			u.Interests = []string{}
		}
		users = append(users, u)
	}

	return users, nil
}
