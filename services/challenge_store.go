package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"reConnectAPI/internal/streak"
	"reConnectAPI/internal/types/achievement"
	"reConnectAPI/internal/types/challenge"
)

var (
	ErrProgressNotFound  = errors.New("progress not found")
	ErrChallengeNotFound = errors.New("challenge not found")
)

// ChallengeStore holds the challenge rows themselves, separate from the
// per-user progress counters. Same two-backend split as ProgressStore.
type ChallengeStore interface {
	Create(ctx context.Context, c *challenge.Challenge) error
	Get(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	// ListByMatches returns the challenges of every named match, newest
	// first across the whole set.
	ListByMatches(ctx context.Context, matchIDs []uuid.UUID) ([]*challenge.Challenge, error)
	SetStatus(ctx context.Context, id uuid.UUID, status challenge.ChallengeStatus) error
}

// ProgressStore holds the per-(challenge, user) counters. Two backends with
// identical semantics: Postgres for production, memory for tests and local
// runs. Mutating calls lazily create the record when absent; no call ever
// deletes one. Existence and authorization checks belong to the callers.
type ProgressStore interface {
	Get(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Progress, error)
	Init(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Progress, error)
	SetSteps(ctx context.Context, challengeID, userID uuid.UUID, steps int, now time.Time) (*challenge.Progress, error)
	SetDaysSober(ctx context.Context, challengeID, userID uuid.UUID, days int, now time.Time) (*challenge.Progress, error)
	ResetDaysSober(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, error)
	RecordCheckIn(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, streak.Outcome, error)
	ExpireStaleStreak(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, error)
	// ApplyMilestone advances the milestone index, records the achievement
	// and adds its points to the user in one transaction: all three effects
	// happen or none do.
	ApplyMilestone(ctx context.Context, challengeID, userID uuid.UUID, m streak.Milestone, now time.Time) (*achievement.Achievement, error)
	ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]*challenge.Progress, error)
}

// ---------------------------------------------------------
// Postgres backends
// ---------------------------------------------------------

type PostgresChallengeStore struct {
	db *pgxpool.Pool
}

func NewPostgresChallengeStore(db *pgxpool.Pool) *PostgresChallengeStore {
	return &PostgresChallengeStore{db: db}
}

const challengeColumns = `id, match_id, title, description, challenge_type, total_steps, status, created_at`

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	c := &challenge.Challenge{}
	err := row.Scan(&c.ID, &c.MatchID, &c.Title, &c.Description, &c.ChallengeType, &c.TotalSteps, &c.Status, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to scan challenge: %w", err)
	}
	return c, nil
}

func (s *PostgresChallengeStore) Create(ctx context.Context, c *challenge.Challenge) error {
	query := fmt.Sprintf(`INSERT INTO challenges (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`, challengeColumns)

	_, err := s.db.Exec(ctx, query, c.ID, c.MatchID, c.Title, c.Description, c.ChallengeType, c.TotalSteps, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create challenge: %w", err)
	}
	return nil
}

func (s *PostgresChallengeStore) Get(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	query := fmt.Sprintf(`SELECT %s FROM challenges WHERE id = $1`, challengeColumns)
	return scanChallenge(s.db.QueryRow(ctx, query, id))
}

func (s *PostgresChallengeStore) ListByMatches(ctx context.Context, matchIDs []uuid.UUID) ([]*challenge.Challenge, error) {
	if len(matchIDs) == 0 {
		return []*challenge.Challenge{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM challenges WHERE match_id = ANY($1) ORDER BY created_at DESC`, challengeColumns)

	rows, err := s.db.Query(ctx, query, matchIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get challenges: %w", err)
	}
	defer rows.Close()

	challenges := []*challenge.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		challenges = append(challenges, c)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating challenges: %w", err)
	}
	return challenges, nil
}

func (s *PostgresChallengeStore) SetStatus(ctx context.Context, id uuid.UUID, status challenge.ChallengeStatus) error {
	tag, err := s.db.Exec(ctx, `UPDATE challenges SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update challenge status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrChallengeNotFound
	}
	return nil
}

type PostgresProgressStore struct {
	db *pgxpool.Pool
}

func NewPostgresProgressStore(db *pgxpool.Pool) *PostgresProgressStore {
	return &PostgresProgressStore{db: db}
}

const progressColumns = `id, challenge_id, user_id, steps_completed, milestone_index, days_sober, last_sober_date, current_streak, longest_streak, last_check_in, last_updated`

func scanProgress(row pgx.Row) (*challenge.Progress, error) {
	p := &challenge.Progress{}
	err := row.Scan(
		&p.ID, &p.ChallengeID, &p.UserID, &p.StepsCompleted, &p.MilestoneIndex,
		&p.DaysSober, &p.LastSoberDate, &p.CurrentStreak, &p.LongestStreak,
		&p.LastCheckIn, &p.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to scan progress: %w", err)
	}
	return p, nil
}

func (s *PostgresProgressStore) Get(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Progress, error) {
	query := fmt.Sprintf(`SELECT %s FROM challenge_progress WHERE challenge_id = $1 AND user_id = $2`, progressColumns)
	return scanProgress(s.db.QueryRow(ctx, query, challengeID, userID))
}

func (s *PostgresProgressStore) Init(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Progress, error) {
	query := fmt.Sprintf(`
	INSERT INTO challenge_progress (id, challenge_id, user_id, last_updated)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (challenge_id, user_id) DO UPDATE SET challenge_id = EXCLUDED.challenge_id
	RETURNING %s
	`, progressColumns)
	return scanProgress(s.db.QueryRow(ctx, query, uuid.New(), challengeID, userID))
}

func (s *PostgresProgressStore) SetSteps(ctx context.Context, challengeID, userID uuid.UUID, steps int, now time.Time) (*challenge.Progress, error) {
	query := fmt.Sprintf(`
	INSERT INTO challenge_progress (id, challenge_id, user_id, steps_completed, last_updated)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (challenge_id, user_id)
	DO UPDATE SET steps_completed = $4, last_updated = $5
	RETURNING %s
	`, progressColumns)
	return scanProgress(s.db.QueryRow(ctx, query, uuid.New(), challengeID, userID, steps, now))
}

func (s *PostgresProgressStore) SetDaysSober(ctx context.Context, challengeID, userID uuid.UUID, days int, now time.Time) (*challenge.Progress, error) {
	query := fmt.Sprintf(`
	INSERT INTO challenge_progress (id, challenge_id, user_id, days_sober, last_sober_date, last_updated)
	VALUES ($1, $2, $3, $4, $5, $5)
	ON CONFLICT (challenge_id, user_id)
	DO UPDATE SET days_sober = $4, last_sober_date = $5, last_updated = $5
	RETURNING %s
	`, progressColumns)
	return scanProgress(s.db.QueryRow(ctx, query, uuid.New(), challengeID, userID, days, now))
}

func (s *PostgresProgressStore) ResetDaysSober(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, error) {
	// Milestone steps already credited stay credited.
	query := fmt.Sprintf(`
	INSERT INTO challenge_progress (id, challenge_id, user_id, last_updated)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (challenge_id, user_id)
	DO UPDATE SET days_sober = 0, last_updated = $4
	RETURNING %s
	`, progressColumns)
	return scanProgress(s.db.QueryRow(ctx, query, uuid.New(), challengeID, userID, now))
}

func (s *PostgresProgressStore) RecordCheckIn(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, streak.Outcome, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("failed to begin check-in: %w", err)
	}
	defer tx.Rollback(ctx)

	initQuery := `
	INSERT INTO challenge_progress (id, challenge_id, user_id, last_updated)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (challenge_id, user_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, initQuery, uuid.New(), challengeID, userID, now); err != nil {
		return nil, "", fmt.Errorf("failed to init progress: %w", err)
	}

	lockQuery := fmt.Sprintf(`SELECT %s FROM challenge_progress WHERE challenge_id = $1 AND user_id = $2 FOR UPDATE`, progressColumns)
	p, err := scanProgress(tx.QueryRow(ctx, lockQuery, challengeID, userID))
	if err != nil {
		return nil, "", err
	}

	current, longest, outcome := streak.ApplyCheckIn(p.CurrentStreak, p.LongestStreak, p.LastCheckIn, now)
	if outcome == streak.OutcomeDeduped {
		// Too soon since the last check-in: accepted, nothing changes.
		if err := tx.Commit(ctx); err != nil {
			return nil, "", fmt.Errorf("failed to commit check-in: %w", err)
		}
		return p, outcome, nil
	}

	updateQuery := fmt.Sprintf(`
	UPDATE challenge_progress
	SET current_streak = $3, longest_streak = $4, steps_completed = steps_completed + 1,
	    last_check_in = $5, last_updated = $5
	WHERE challenge_id = $1 AND user_id = $2
	RETURNING %s
	`, progressColumns)
	p, err = scanProgress(tx.QueryRow(ctx, updateQuery, challengeID, userID, current, longest, now))
	if err != nil {
		return nil, "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to commit check-in: %w", err)
	}
	return p, outcome, nil
}

func (s *PostgresProgressStore) ExpireStaleStreak(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, error) {
	p, err := s.Get(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}

	if p.CurrentStreak > 0 && streak.Stale(p.LastCheckIn, now) {
		query := fmt.Sprintf(`
		UPDATE challenge_progress
		SET current_streak = 0, last_updated = $3
		WHERE challenge_id = $1 AND user_id = $2
		RETURNING %s
		`, progressColumns)
		return scanProgress(s.db.QueryRow(ctx, query, challengeID, userID, now))
	}

	return p, nil
}

func (s *PostgresProgressStore) ApplyMilestone(ctx context.Context, challengeID, userID uuid.UUID, m streak.Milestone, now time.Time) (*achievement.Achievement, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin milestone: %w", err)
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
	UPDATE challenge_progress
	SET milestone_index = $3, last_updated = $4
	WHERE challenge_id = $1 AND user_id = $2 AND milestone_index < $3
	`, challengeID, userID, m.Index, now)
	if err != nil {
		return nil, fmt.Errorf("failed to advance milestone index: %w", err)
	}
	if result.RowsAffected() == 0 {
		// Lost a race with a concurrent update that already credited it.
		return nil, nil
	}

	ach := &achievement.Achievement{
		ID:          uuid.New(),
		UserID:      userID,
		ChallengeID: &challengeID,
		Title:       m.Title,
		Description: fmt.Sprintf("Reached the %s milestone", m.Title),
		Points:      m.Points,
		EarnedAt:    now,
	}
	_, err = tx.Exec(ctx, `
	INSERT INTO achievements (id, user_id, challenge_id, title, description, points, earned_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ach.ID, ach.UserID, ach.ChallengeID, ach.Title, ach.Description, ach.Points, ach.EarnedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to record achievement: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE users SET points = points + $2, updated_at = NOW() WHERE id = $1`, userID, m.Points)
	if err != nil {
		return nil, fmt.Errorf("failed to add points: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit milestone: %w", err)
	}
	return ach, nil
}

func (s *PostgresProgressStore) ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]*challenge.Progress, error) {
	query := fmt.Sprintf(`SELECT %s FROM challenge_progress WHERE challenge_id = $1 ORDER BY user_id`, progressColumns)

	rows, err := s.db.Query(ctx, query, challengeID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch progress: %w", err)
	}
	defer rows.Close()

	var records []*challenge.Progress
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, p)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating progress: %w", err)
	}
	return records, nil
}

// ---------------------------------------------------------
// Memory backends
// ---------------------------------------------------------

type MemChallengeStore struct {
	mu         sync.Mutex
	challenges map[uuid.UUID]*challenge.Challenge
}

func NewMemChallengeStore() *MemChallengeStore {
	return &MemChallengeStore{challenges: make(map[uuid.UUID]*challenge.Challenge)}
}

func (s *MemChallengeStore) Create(ctx context.Context, c *challenge.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.challenges[c.ID] = &cp
	return nil
}

func (s *MemChallengeStore) Get(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemChallengeStore) ListByMatches(ctx context.Context, matchIDs []uuid.UUID) ([]*challenge.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wanted := make(map[uuid.UUID]bool, len(matchIDs))
	for _, id := range matchIDs {
		wanted[id] = true
	}

	challenges := []*challenge.Challenge{}
	for _, c := range s.challenges {
		if wanted[c.MatchID] {
			cp := *c
			challenges = append(challenges, &cp)
		}
	}

	sort.Slice(challenges, func(i, j int) bool {
		return challenges[i].CreatedAt.After(challenges[j].CreatedAt)
	})
	return challenges, nil
}

func (s *MemChallengeStore) SetStatus(ctx context.Context, id uuid.UUID, status challenge.ChallengeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[id]
	if !ok {
		return ErrChallengeNotFound
	}
	c.Status = status
	return nil
}

type progressKey struct {
	challengeID uuid.UUID
	userID      uuid.UUID
}

type MemProgressStore struct {
	mu           sync.Mutex
	records      map[progressKey]*challenge.Progress
	points       map[uuid.UUID]int
	achievements []*achievement.Achievement
}

func NewMemProgressStore() *MemProgressStore {
	return &MemProgressStore{
		records: make(map[progressKey]*challenge.Progress),
		points:  make(map[uuid.UUID]int),
	}
}

func (s *MemProgressStore) getOrCreate(challengeID, userID uuid.UUID, now time.Time) *challenge.Progress {
	key := progressKey{challengeID, userID}
	p, ok := s.records[key]
	if !ok {
		p = &challenge.Progress{
			ID:          uuid.New(),
			ChallengeID: challengeID,
			UserID:      userID,
			LastUpdated: now,
		}
		s.records[key] = p
	}
	return p
}

func copyProgress(p *challenge.Progress) *challenge.Progress {
	cp := *p
	if p.LastSoberDate != nil {
		t := *p.LastSoberDate
		cp.LastSoberDate = &t
	}
	if p.LastCheckIn != nil {
		t := *p.LastCheckIn
		cp.LastCheckIn = &t
	}
	return &cp
}

func (s *MemProgressStore) Get(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[progressKey{challengeID, userID}]
	if !ok {
		return nil, ErrProgressNotFound
	}
	return copyProgress(p), nil
}

func (s *MemProgressStore) Init(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyProgress(s.getOrCreate(challengeID, userID, time.Now())), nil
}

func (s *MemProgressStore) SetSteps(ctx context.Context, challengeID, userID uuid.UUID, steps int, now time.Time) (*challenge.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(challengeID, userID, now)
	p.StepsCompleted = steps
	p.LastUpdated = now
	return copyProgress(p), nil
}

func (s *MemProgressStore) SetDaysSober(ctx context.Context, challengeID, userID uuid.UUID, days int, now time.Time) (*challenge.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(challengeID, userID, now)
	p.DaysSober = days
	soberDate := now
	p.LastSoberDate = &soberDate
	p.LastUpdated = now
	return copyProgress(p), nil
}

func (s *MemProgressStore) ResetDaysSober(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(challengeID, userID, now)
	p.DaysSober = 0
	p.LastUpdated = now
	return copyProgress(p), nil
}

func (s *MemProgressStore) RecordCheckIn(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, streak.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(challengeID, userID, now)

	current, longest, outcome := streak.ApplyCheckIn(p.CurrentStreak, p.LongestStreak, p.LastCheckIn, now)
	if outcome == streak.OutcomeDeduped {
		return copyProgress(p), outcome, nil
	}

	p.CurrentStreak = current
	p.LongestStreak = longest
	p.StepsCompleted++
	checkIn := now
	p.LastCheckIn = &checkIn
	p.LastUpdated = now
	return copyProgress(p), outcome, nil
}

func (s *MemProgressStore) ExpireStaleStreak(ctx context.Context, challengeID, userID uuid.UUID, now time.Time) (*challenge.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.records[progressKey{challengeID, userID}]
	if !ok {
		return nil, ErrProgressNotFound
	}

	if p.CurrentStreak > 0 && streak.Stale(p.LastCheckIn, now) {
		p.CurrentStreak = 0
		p.LastUpdated = now
	}
	return copyProgress(p), nil
}

func (s *MemProgressStore) ApplyMilestone(ctx context.Context, challengeID, userID uuid.UUID, m streak.Milestone, now time.Time) (*achievement.Achievement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.getOrCreate(challengeID, userID, now)
	if p.MilestoneIndex >= m.Index {
		return nil, nil
	}

	p.MilestoneIndex = m.Index
	p.LastUpdated = now

	ach := &achievement.Achievement{
		ID:          uuid.New(),
		UserID:      userID,
		ChallengeID: &challengeID,
		Title:       m.Title,
		Description: fmt.Sprintf("Reached the %s milestone", m.Title),
		Points:      m.Points,
		EarnedAt:    now,
	}
	s.achievements = append(s.achievements, ach)
	s.points[userID] += m.Points
	return ach, nil
}

func (s *MemProgressStore) ListByChallenge(ctx context.Context, challengeID uuid.UUID) ([]*challenge.Progress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var records []*challenge.Progress
	for key, p := range s.records {
		if key.challengeID == challengeID {
			records = append(records, copyProgress(p))
		}
	}
	return records, nil
}

// Points and Achievements expose the award side effects for tests.
func (s *MemProgressStore) Points(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points[userID]
}

func (s *MemProgressStore) Achievements(userID uuid.UUID) []*achievement.Achievement {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*achievement.Achievement
	for _, a := range s.achievements {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out
}
