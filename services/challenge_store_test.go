package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reConnectAPI/internal/streak"
)

var storeBase = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestMemProgressStore_FirstCheckIn(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID, userID := uuid.New(), uuid.New()

	p, outcome, err := store.RecordCheckIn(ctx, challengeID, userID, storeBase)
	require.NoError(t, err)

	assert.Equal(t, streak.OutcomeStarted, outcome)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 1, p.LongestStreak)
	assert.Equal(t, 1, p.StepsCompleted)
	require.NotNil(t, p.LastCheckIn)
	assert.True(t, p.LastCheckIn.Equal(storeBase))
}

func TestMemProgressStore_CheckInSequence(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID, userID := uuid.New(), uuid.New()

	_, _, err := store.RecordCheckIn(ctx, challengeID, userID, storeBase)
	require.NoError(t, err)

	// 25h later: inside the window, streak continues.
	p, outcome, err := store.RecordCheckIn(ctx, challengeID, userID, storeBase.Add(25*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeContinued, outcome)
	assert.Equal(t, 2, p.CurrentStreak)
	assert.Equal(t, 2, p.LongestStreak)
	assert.Equal(t, 2, p.StepsCompleted)

	// 40h after that: too late, streak restarts at 1 but longest survives.
	p, outcome, err = store.RecordCheckIn(ctx, challengeID, userID, storeBase.Add(65*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, streak.OutcomeReset, outcome)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 2, p.LongestStreak)
	assert.Equal(t, 3, p.StepsCompleted)
}

func TestMemProgressStore_DedupedCheckInChangesNothing(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID, userID := uuid.New(), uuid.New()

	first, _, err := store.RecordCheckIn(ctx, challengeID, userID, storeBase)
	require.NoError(t, err)

	p, outcome, err := store.RecordCheckIn(ctx, challengeID, userID, storeBase.Add(2*time.Hour))
	require.NoError(t, err)

	assert.Equal(t, streak.OutcomeDeduped, outcome)
	assert.Equal(t, first.CurrentStreak, p.CurrentStreak)
	assert.Equal(t, first.StepsCompleted, p.StepsCompleted)
	// Even the check-in timestamp stays put, so the window anchor does not
	// creep forward under rapid taps.
	require.NotNil(t, p.LastCheckIn)
	assert.True(t, p.LastCheckIn.Equal(storeBase))
}

func TestMemProgressStore_ExpireStaleStreak(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID, userID := uuid.New(), uuid.New()

	_, _, err := store.RecordCheckIn(ctx, challengeID, userID, storeBase)
	require.NoError(t, err)
	_, _, err = store.RecordCheckIn(ctx, challengeID, userID, storeBase.Add(24*time.Hour))
	require.NoError(t, err)

	// Within the window nothing expires.
	p, err := store.ExpireStaleStreak(ctx, challengeID, userID, storeBase.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, p.CurrentStreak)

	// Past it the current streak zeroes; longest stays as the record.
	p, err = store.ExpireStaleStreak(ctx, challengeID, userID, storeBase.Add(80*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentStreak)
	assert.Equal(t, 2, p.LongestStreak)

	// The zero persists: a later read does not resurrect the streak.
	p, err = store.Get(ctx, challengeID, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, p.CurrentStreak)
}

func TestMemProgressStore_ExpireUnknownRecord(t *testing.T) {
	store := NewMemProgressStore()

	_, err := store.ExpireStaleStreak(context.Background(), uuid.New(), uuid.New(), storeBase)
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestMemProgressStore_ApplyMilestone(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID, userID := uuid.New(), uuid.New()

	m := streak.SobrietyMilestones[0]

	ach, err := store.ApplyMilestone(ctx, challengeID, userID, m, storeBase)
	require.NoError(t, err)
	require.NotNil(t, ach)
	assert.Equal(t, "One Week Sober", ach.Title)
	assert.Equal(t, 50, ach.Points)
	assert.Equal(t, 50, store.Points(userID))

	// Applying the same milestone again is a no-op.
	ach, err = store.ApplyMilestone(ctx, challengeID, userID, m, storeBase)
	require.NoError(t, err)
	assert.Nil(t, ach)
	assert.Equal(t, 50, store.Points(userID))
	assert.Len(t, store.Achievements(userID), 1)

	p, err := store.Get(ctx, challengeID, userID)
	require.NoError(t, err)
	assert.Equal(t, m.Index, p.MilestoneIndex)
}

func TestMemProgressStore_MilestoneIndexNeverRegresses(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID, userID := uuid.New(), uuid.New()

	month := streak.SobrietyMilestones[1]
	_, err := store.ApplyMilestone(ctx, challengeID, userID, month, storeBase)
	require.NoError(t, err)

	// A lower milestone arriving afterwards is ignored.
	week := streak.SobrietyMilestones[0]
	ach, err := store.ApplyMilestone(ctx, challengeID, userID, week, storeBase)
	require.NoError(t, err)
	assert.Nil(t, ach)

	p, err := store.Get(ctx, challengeID, userID)
	require.NoError(t, err)
	assert.Equal(t, month.Index, p.MilestoneIndex)
	assert.Equal(t, 100, store.Points(userID))
}

func TestMemProgressStore_StepsAndSobrietyAreIndependent(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID, userID := uuid.New(), uuid.New()

	_, err := store.SetSteps(ctx, challengeID, userID, 3, storeBase)
	require.NoError(t, err)

	p, err := store.SetDaysSober(ctx, challengeID, userID, 12, storeBase.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, p.StepsCompleted)
	assert.Equal(t, 12, p.DaysSober)

	// Relapse reset zeroes the day counter only.
	p, err = store.ResetDaysSober(ctx, challengeID, userID, storeBase.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, p.DaysSober)
	assert.Equal(t, 3, p.StepsCompleted)
	assert.Equal(t, 0, p.MilestoneIndex)
}

func TestMemProgressStore_GetReturnsCopy(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID, userID := uuid.New(), uuid.New()

	_, err := store.Init(ctx, challengeID, userID)
	require.NoError(t, err)

	p1, err := store.Get(ctx, challengeID, userID)
	require.NoError(t, err)
	p1.StepsCompleted = 99

	p2, err := store.Get(ctx, challengeID, userID)
	require.NoError(t, err)
	assert.Equal(t, 0, p2.StepsCompleted)
}

func TestMemProgressStore_ListByChallenge(t *testing.T) {
	store := NewMemProgressStore()
	ctx := context.Background()
	challengeID := uuid.New()
	userA, userB := uuid.New(), uuid.New()

	_, err := store.Init(ctx, challengeID, userA)
	require.NoError(t, err)
	_, err = store.Init(ctx, challengeID, userB)
	require.NoError(t, err)
	_, err = store.Init(ctx, uuid.New(), uuid.New())
	require.NoError(t, err)

	records, err := store.ListByChallenge(ctx, challengeID)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
