package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reConnectAPI/internal/types/challenge"
)

func newGenericChallenge(t *testing.T, store *MemChallengeStore, totalSteps int) *challenge.Challenge {
	t.Helper()

	c := &challenge.Challenge{
		ID:            uuid.New(),
		MatchID:       uuid.New(),
		Title:         "Attend Three Meetings",
		ChallengeType: challenge.TypeGeneric,
		TotalSteps:    totalSteps,
		Status:        challenge.StatusActive,
		CreatedAt:     storeBase,
	}
	require.NoError(t, store.Create(context.Background(), c))
	return c
}

func TestGenericCompletion_BothPartnersRequired(t *testing.T) {
	challenges := NewMemChallengeStore()
	progress := NewMemProgressStore()
	svc := &ChallengeService{challenges: challenges, progress: progress, now: func() time.Time { return storeBase }}

	ctx := context.Background()
	c := newGenericChallenge(t, challenges, 3)
	userA, userB := uuid.New(), uuid.New()

	_, err := progress.Init(ctx, c.ID, userA)
	require.NoError(t, err)
	_, err = progress.Init(ctx, c.ID, userB)
	require.NoError(t, err)

	// Only one partner done: nothing completes, nothing is awarded.
	_, err = progress.SetSteps(ctx, c.ID, userA, 3, storeBase)
	require.NoError(t, err)

	ach, err := svc.maybeCompleteGeneric(ctx, c, userA, storeBase)
	require.NoError(t, err)
	assert.Nil(t, ach)
	assert.Equal(t, challenge.StatusActive, c.Status)
	assert.Equal(t, 0, progress.Points(userA))

	// The second partner finishing completes the challenge and credits
	// the flat award to both.
	_, err = progress.SetSteps(ctx, c.ID, userB, 3, storeBase)
	require.NoError(t, err)

	ach, err = svc.maybeCompleteGeneric(ctx, c, userB, storeBase)
	require.NoError(t, err)
	require.NotNil(t, ach)
	assert.Equal(t, "Challenge Complete: Attend Three Meetings", ach.Title)
	assert.Equal(t, completionPoints, ach.Points)

	assert.Equal(t, challenge.StatusCompleted, c.Status)
	stored, err := challenges.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, stored.Status)

	assert.Equal(t, completionPoints, progress.Points(userA))
	assert.Equal(t, completionPoints, progress.Points(userB))
}

func TestGenericCompletion_RepeatedFinalLogIsIdempotent(t *testing.T) {
	challenges := NewMemChallengeStore()
	progress := NewMemProgressStore()
	svc := &ChallengeService{challenges: challenges, progress: progress, now: func() time.Time { return storeBase }}

	ctx := context.Background()
	c := newGenericChallenge(t, challenges, 2)
	userA, userB := uuid.New(), uuid.New()

	_, err := progress.SetSteps(ctx, c.ID, userA, 2, storeBase)
	require.NoError(t, err)
	_, err = progress.SetSteps(ctx, c.ID, userB, 2, storeBase)
	require.NoError(t, err)

	ach, err := svc.maybeCompleteGeneric(ctx, c, userB, storeBase)
	require.NoError(t, err)
	require.NotNil(t, ach)

	// Running the completion check again awards nothing further.
	ach, err = svc.maybeCompleteGeneric(ctx, c, userB, storeBase)
	require.NoError(t, err)
	assert.Nil(t, ach)

	assert.Equal(t, completionPoints, progress.Points(userA))
	assert.Equal(t, completionPoints, progress.Points(userB))
	assert.Len(t, progress.Achievements(userA), 1)
	assert.Len(t, progress.Achievements(userB), 1)
}

func TestMemChallengeStore_ListByMatches(t *testing.T) {
	store := NewMemChallengeStore()
	ctx := context.Background()

	matchA, matchB, matchC := uuid.New(), uuid.New(), uuid.New()
	for i, matchID := range []uuid.UUID{matchA, matchB, matchC} {
		require.NoError(t, store.Create(ctx, &challenge.Challenge{
			ID:            uuid.New(),
			MatchID:       matchID,
			Title:         "Daily Check-In",
			ChallengeType: challenge.TypeCheckInStreak,
			TotalSteps:    3,
			Status:        challenge.StatusActive,
			CreatedAt:     storeBase.Add(time.Duration(i) * time.Hour),
		}))
	}

	// Listing across several matches returns all of their challenges,
	// newest first; matches outside the set are excluded.
	list, err := store.ListByMatches(ctx, []uuid.UUID{matchA, matchB})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, matchB, list[0].MatchID)
	assert.Equal(t, matchA, list[1].MatchID)

	list, err = store.ListByMatches(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemChallengeStore_SetStatus(t *testing.T) {
	store := NewMemChallengeStore()
	ctx := context.Background()

	c := newGenericChallenge(t, store, 3)

	require.NoError(t, store.SetStatus(ctx, c.ID, challenge.StatusCompleted))
	stored, err := store.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, stored.Status)

	assert.ErrorIs(t, store.SetStatus(ctx, uuid.New(), challenge.StatusInactive), ErrChallengeNotFound)
	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}
