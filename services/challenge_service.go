package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reConnectAPI/internal/streak"
	"reConnectAPI/internal/types/achievement"
	"reConnectAPI/internal/types/challenge"
	"reConnectAPI/internal/types/match"
	"reConnectAPI/internal/types/notification"
)

// completionPoints is the flat award both partners receive when a generic
// challenge finishes.
const completionPoints = 100

type ChallengeService struct {
	users      *UserService
	matches    *MatchService
	challenges ChallengeStore
	progress   ProgressStore
	hub        *Hub
	now        func() time.Time
}

func NewChallengeService(users *UserService, matches *MatchService, challenges ChallengeStore, progress ProgressStore, hub *Hub) *ChallengeService {
	return &ChallengeService{
		users:      users,
		matches:    matches,
		challenges: challenges,
		progress:   progress,
		hub:        hub,
		now:        time.Now,
	}
}

// ProgressResult is returned by the progress-mutating operations. Achievement
// is non-nil only when this call crossed a milestone.
type ProgressResult struct {
	Challenge   *challenge.Challenge     `json:"challenge"`
	Progress    *challenge.Progress      `json:"progress"`
	Achievement *achievement.Achievement `json:"achievement,omitempty"`
}

// CheckInResult additionally reports what the check-in did to the streak.
type CheckInResult struct {
	Challenge   *challenge.Challenge     `json:"challenge"`
	Progress    *challenge.Progress      `json:"progress"`
	Outcome     streak.Outcome           `json:"outcome"`
	Achievement *achievement.Achievement `json:"achievement,omitempty"`
}

// ListChallenges returns the challenges of every match the caller
// participates in, with both participants' progress attached. A non-nil
// matchID narrows the result to that one match (participant-only).
func (s *ChallengeService) ListChallenges(ctx context.Context, clerkID string, matchID *uuid.UUID) ([]*challenge.ChallengeWithProgress, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	var matchIDs []uuid.UUID
	if matchID != nil {
		m, err := s.matches.GetMatch(ctx, *matchID)
		if err != nil {
			return nil, err
		}
		if m.UserID1 != userID && m.UserID2 != userID {
			return nil, fmt.Errorf("not a participant in this match")
		}
		matchIDs = []uuid.UUID{m.ID}
	} else {
		matchIDs, err = s.matches.MatchIDsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
	}

	list, err := s.challenges.ListByMatches(ctx, matchIDs)
	if err != nil {
		return nil, err
	}

	challenges := []*challenge.ChallengeWithProgress{}
	for _, c := range list {
		cw := &challenge.ChallengeWithProgress{Challenge: *c}
		records, err := s.progress.ListByChallenge(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range records {
			if p.UserID == userID {
				cw.MyProgress = p
			} else {
				cw.PartnerProgress = p
			}
		}
		challenges = append(challenges, cw)
	}

	return challenges, nil
}

// CreateChallenge creates a challenge on an active match and initializes a
// progress record for both participants.
func (s *ChallengeService) CreateChallenge(ctx context.Context, clerkID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return nil, err
	}

	matchID, err := uuid.Parse(req.MatchID)
	if err != nil {
		return nil, fmt.Errorf("invalid match id")
	}

	m, err := s.matches.ActiveMatchForUser(ctx, matchID, userID)
	if err != nil {
		return nil, err
	}

	switch req.ChallengeType {
	case challenge.TypeGeneric, challenge.TypeDaysSober, challenge.TypeCheckInStreak:
	default:
		return nil, fmt.Errorf("invalid challenge type")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, fmt.Errorf("challenge title is empty")
	}
	if req.TotalSteps <= 0 {
		return nil, fmt.Errorf("total steps must be positive")
	}

	c := &challenge.Challenge{
		ID:            uuid.New(),
		MatchID:       matchID,
		Title:         title,
		Description:   req.Description,
		ChallengeType: req.ChallengeType,
		TotalSteps:    req.TotalSteps,
		Status:        challenge.StatusActive,
		CreatedAt:     s.now(),
	}

	if err := s.challenges.Create(ctx, c); err != nil {
		return nil, err
	}

	for _, participant := range []uuid.UUID{m.UserID1, m.UserID2} {
		if _, err := s.progress.Init(ctx, c.ID, participant); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// LogProgress sets the caller's completed step count on a generic challenge.
// When both participants have reached total_steps the challenge completes and
// each of them is credited the completion award once.
func (s *ChallengeService) LogProgress(ctx context.Context, clerkID string, challengeID uuid.UUID, req *challenge.LogProgressRequest) (*ProgressResult, error) {
	userID, c, err := s.authorize(ctx, clerkID, challengeID)
	if err != nil {
		return nil, err
	}
	if c.ChallengeType != challenge.TypeGeneric {
		return nil, fmt.Errorf("progress logging applies to generic challenges only")
	}
	if c.Status != challenge.StatusActive {
		return nil, fmt.Errorf("challenge is not active")
	}
	if req.StepsCompleted < 0 || req.StepsCompleted > c.TotalSteps {
		return nil, fmt.Errorf("steps out of range")
	}

	now := s.now()
	p, err := s.progress.SetSteps(ctx, challengeID, userID, req.StepsCompleted, now)
	if err != nil {
		return nil, err
	}

	ach, err := s.maybeCompleteGeneric(ctx, c, userID, now)
	if err != nil {
		return nil, err
	}

	return &ProgressResult{Challenge: c, Progress: p, Achievement: ach}, nil
}

// maybeCompleteGeneric completes a generic challenge once both participants
// have logged every step, crediting the flat completion award to each. The
// award goes through the milestone machinery so a repeated final log cannot
// double-credit.
func (s *ChallengeService) maybeCompleteGeneric(ctx context.Context, c *challenge.Challenge, userID uuid.UUID, now time.Time) (*achievement.Achievement, error) {
	records, err := s.progress.ListByChallenge(ctx, c.ID)
	if err != nil {
		return nil, err
	}

	done := 0
	for _, p := range records {
		if p.StepsCompleted >= c.TotalSteps {
			done++
		}
	}
	if len(records) < 2 || done < 2 {
		return nil, nil
	}

	if err := s.setChallengeStatus(ctx, c, challenge.StatusCompleted); err != nil {
		return nil, err
	}

	award := streak.Milestone{
		Index:  1,
		Title:  "Challenge Complete: " + c.Title,
		Points: completionPoints,
	}

	var callerAch *achievement.Achievement
	for _, p := range records {
		ach, err := s.progress.ApplyMilestone(ctx, c.ID, p.UserID, award, now)
		if err != nil {
			return nil, err
		}
		if p.UserID == userID {
			callerAch = ach
		}
	}
	return callerAch, nil
}

// UpdateSobriety sets the absolute sober-day counter on a days_sober
// challenge and credits the highest newly crossed sobriety milestone.
func (s *ChallengeService) UpdateSobriety(ctx context.Context, clerkID string, challengeID uuid.UUID, req *challenge.UpdateSobrietyRequest) (*ProgressResult, error) {
	userID, c, err := s.authorize(ctx, clerkID, challengeID)
	if err != nil {
		return nil, err
	}
	if c.ChallengeType != challenge.TypeDaysSober {
		return nil, fmt.Errorf("sobriety tracking applies to days_sober challenges only")
	}
	if req.DaysSober < 0 {
		return nil, fmt.Errorf("days sober cannot be negative")
	}

	now := s.now()
	p, err := s.progress.SetDaysSober(ctx, challengeID, userID, req.DaysSober, now)
	if err != nil {
		return nil, err
	}

	var ach *achievement.Achievement
	if m := streak.CrossedMilestone(streak.SobrietyMilestones, p.DaysSober, p.MilestoneIndex); m != nil {
		ach, err = s.progress.ApplyMilestone(ctx, challengeID, userID, *m, now)
		if err != nil {
			return nil, err
		}
		if ach != nil {
			if p, err = s.progress.Get(ctx, challengeID, userID); err != nil {
				return nil, err
			}
		}
		if streak.SobrietyComplete(m, c.TotalSteps) && c.Status == challenge.StatusActive {
			if err := s.setChallengeStatus(ctx, c, challenge.StatusCompleted); err != nil {
				return nil, err
			}
		}
	}

	return &ProgressResult{Challenge: c, Progress: p, Achievement: ach}, nil
}

// ResetSobriety zeroes the sober-day counter after a relapse. Milestones
// already earned stay earned.
func (s *ChallengeService) ResetSobriety(ctx context.Context, clerkID string, challengeID uuid.UUID) (*ProgressResult, error) {
	userID, c, err := s.authorize(ctx, clerkID, challengeID)
	if err != nil {
		return nil, err
	}
	if c.ChallengeType != challenge.TypeDaysSober {
		return nil, fmt.Errorf("sobriety tracking applies to days_sober challenges only")
	}

	p, err := s.progress.ResetDaysSober(ctx, challengeID, userID, s.now())
	if err != nil {
		return nil, err
	}

	return &ProgressResult{Challenge: c, Progress: p}, nil
}

// CheckIn records a daily check-in on a check_in_streak challenge, credits
// any newly crossed streak milestone and notifies the partner.
func (s *ChallengeService) CheckIn(ctx context.Context, clerkID string, challengeID uuid.UUID) (*CheckInResult, error) {
	caller, err := s.users.GetUserByClerkID(ctx, clerkID)
	if err != nil {
		return nil, err
	}
	userID := caller.ID

	c, m, err := s.challengeForParticipant(ctx, challengeID, userID)
	if err != nil {
		return nil, err
	}
	if c.ChallengeType != challenge.TypeCheckInStreak {
		return nil, fmt.Errorf("check-ins apply to check_in_streak challenges only")
	}
	if c.Status != challenge.StatusActive {
		return nil, fmt.Errorf("challenge is not active")
	}

	now := s.now()
	p, outcome, err := s.progress.RecordCheckIn(ctx, challengeID, userID, now)
	if err != nil {
		return nil, err
	}

	var ach *achievement.Achievement
	if outcome != streak.OutcomeDeduped {
		if ms := streak.CrossedMilestone(streak.StreakMilestones, p.CurrentStreak, p.MilestoneIndex); ms != nil {
			ach, err = s.progress.ApplyMilestone(ctx, challengeID, userID, *ms, now)
			if err != nil {
				return nil, err
			}
			if ach != nil {
				if p, err = s.progress.Get(ctx, challengeID, userID); err != nil {
					return nil, err
				}
			}
			if streak.StreakComplete(ms, c.TotalSteps) {
				if err := s.setChallengeStatus(ctx, c, challenge.StatusCompleted); err != nil {
					return nil, err
				}
			}
		}

		partnerID := m.UserID1
		if partnerID == userID {
			partnerID = m.UserID2
		}
		if s.hub != nil {
			chID := challengeID
			fID := userID
			s.hub.Send(partnerID, notification.Frame{
				Type:          notification.TypePartnerCheckIn,
				ChallengeID:   &chID,
				FromUserID:    &fID,
				FromUsername:  caller.Username,
				FromImageURL:  caller.ImageURL,
				CurrentStreak: p.CurrentStreak,
				SentAt:        now,
			})
		}
	}

	return &CheckInResult{Challenge: c, Progress: p, Outcome: outcome, Achievement: ach}, nil
}

// GetStreak returns the caller's streak state, lazily zeroing a streak that
// lapsed more than 36 hours ago.
func (s *ChallengeService) GetStreak(ctx context.Context, clerkID string, challengeID uuid.UUID) (*challenge.StreakSnapshot, error) {
	userID, _, err := s.authorize(ctx, clerkID, challengeID)
	if err != nil {
		return nil, err
	}

	p, err := s.progress.ExpireStaleStreak(ctx, challengeID, userID, s.now())
	if err != nil {
		if errors.Is(err, ErrProgressNotFound) {
			return &challenge.StreakSnapshot{ChallengeID: challengeID}, nil
		}
		return nil, err
	}

	return &challenge.StreakSnapshot{
		ChallengeID:   challengeID,
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
		LastCheckIn:   p.LastCheckIn,
	}, nil
}

func (s *ChallengeService) GetChallenge(ctx context.Context, challengeID uuid.UUID) (*challenge.Challenge, error) {
	return s.challenges.Get(ctx, challengeID)
}

func (s *ChallengeService) authorize(ctx context.Context, clerkID string, challengeID uuid.UUID) (uuid.UUID, *challenge.Challenge, error) {
	userID, err := s.users.ResolveUserID(ctx, clerkID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	c, _, err := s.challengeForParticipant(ctx, challengeID, userID)
	if err != nil {
		return uuid.Nil, nil, err
	}
	return userID, c, nil
}

func (s *ChallengeService) challengeForParticipant(ctx context.Context, challengeID, userID uuid.UUID) (*challenge.Challenge, *match.Match, error) {
	c, err := s.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, nil, err
	}

	m, err := s.matches.GetMatch(ctx, c.MatchID)
	if err != nil {
		return nil, nil, err
	}
	if m.UserID1 != userID && m.UserID2 != userID {
		return nil, nil, fmt.Errorf("not a participant in this match")
	}
	return c, m, nil
}

func (s *ChallengeService) setChallengeStatus(ctx context.Context, c *challenge.Challenge, status challenge.ChallengeStatus) error {
	if err := s.challenges.SetStatus(ctx, c.ID, status); err != nil {
		return err
	}
	c.Status = status
	return nil
}
