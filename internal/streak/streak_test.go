package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestApplyCheckIn_FirstCheckIn(t *testing.T) {
	current, longest, outcome := ApplyCheckIn(0, 0, nil, base)

	assert.Equal(t, 1, current)
	assert.Equal(t, 1, longest)
	assert.Equal(t, OutcomeStarted, outcome)
}

func TestApplyCheckIn_ContinuesInsideWindow(t *testing.T) {
	last := base

	// Both window edges count as a continuation.
	for _, gap := range []time.Duration{20 * time.Hour, 25 * time.Hour, 36 * time.Hour} {
		current, longest, outcome := ApplyCheckIn(3, 5, &last, base.Add(gap))

		assert.Equal(t, 4, current, "gap %v", gap)
		assert.Equal(t, 5, longest, "gap %v", gap)
		assert.Equal(t, OutcomeContinued, outcome, "gap %v", gap)
	}
}

func TestApplyCheckIn_TooSoonIsDeduped(t *testing.T) {
	last := base

	for _, gap := range []time.Duration{time.Minute, 19*time.Hour + 59*time.Minute} {
		current, longest, outcome := ApplyCheckIn(3, 5, &last, base.Add(gap))

		assert.Equal(t, 3, current, "gap %v", gap)
		assert.Equal(t, 5, longest, "gap %v", gap)
		assert.Equal(t, OutcomeDeduped, outcome, "gap %v", gap)
	}
}

func TestApplyCheckIn_LateResetsToOne(t *testing.T) {
	last := base

	current, longest, outcome := ApplyCheckIn(9, 9, &last, base.Add(36*time.Hour+time.Minute))

	assert.Equal(t, 1, current)
	assert.Equal(t, 9, longest)
	assert.Equal(t, OutcomeReset, outcome)
}

func TestApplyCheckIn_LongestIsRunningMax(t *testing.T) {
	last := base

	_, longest, _ := ApplyCheckIn(5, 5, &last, base.Add(24*time.Hour))
	assert.Equal(t, 6, longest)

	_, longest, _ = ApplyCheckIn(2, 6, &last, base.Add(24*time.Hour))
	assert.Equal(t, 6, longest)
}

func TestStale(t *testing.T) {
	last := base

	assert.False(t, Stale(nil, base))
	assert.False(t, Stale(&last, base.Add(36*time.Hour)))
	assert.True(t, Stale(&last, base.Add(36*time.Hour+time.Second)))
}

func TestCrossedMilestone_ExactThreshold(t *testing.T) {
	m := CrossedMilestone(SobrietyMilestones, 7, 0)

	assert.NotNil(t, m)
	assert.Equal(t, "One Week Sober", m.Title)
	assert.Equal(t, 50, m.Points)
}

func TestCrossedMilestone_JumpFiresOnlyHighest(t *testing.T) {
	// 0 -> 100 days crosses 7, 30 and 90; only the 90-day milestone fires.
	m := CrossedMilestone(SobrietyMilestones, 100, 0)

	assert.NotNil(t, m)
	assert.Equal(t, 90, m.Threshold)
	assert.Equal(t, "Three Months Sober", m.Title)

	// The index moved past the skipped milestones, so nothing fires again.
	assert.Nil(t, CrossedMilestone(SobrietyMilestones, 100, m.Index))
}

func TestCrossedMilestone_IndexGuardsRepeats(t *testing.T) {
	first := CrossedMilestone(StreakMilestones, 7, 0)
	assert.NotNil(t, first)

	assert.Nil(t, CrossedMilestone(StreakMilestones, 7, first.Index))
	assert.Nil(t, CrossedMilestone(StreakMilestones, 8, first.Index))

	next := CrossedMilestone(StreakMilestones, 30, first.Index)
	assert.NotNil(t, next)
	assert.Equal(t, "One Month Streak", next.Title)
}

func TestCrossedMilestone_BelowFirstThreshold(t *testing.T) {
	assert.Nil(t, CrossedMilestone(SobrietyMilestones, 6, 0))
	assert.Nil(t, CrossedMilestone(SobrietyMilestones, 0, 0))
}

func TestCompletionHelpers(t *testing.T) {
	year := CrossedMilestone(SobrietyMilestones, 365, 0)
	assert.True(t, SobrietyComplete(year, 4))
	assert.False(t, SobrietyComplete(year, 10))

	week := CrossedMilestone(SobrietyMilestones, 7, 0)
	assert.False(t, SobrietyComplete(week, 4))
	assert.False(t, SobrietyComplete(nil, 4))

	hundred := CrossedMilestone(StreakMilestones, 100, 0)
	assert.True(t, StreakComplete(hundred, 3))
	assert.False(t, StreakComplete(hundred, 5))
}
