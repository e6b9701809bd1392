package streak

import "time"

// Check-ins are considered "daily" when they land between 20 and 36 hours
// after the previous one. The slack tolerates morning-vs-evening drift and
// time zone changes; past 36 hours the day counts as missed.
const (
	MinGap = 20 * time.Hour
	MaxGap = 36 * time.Hour
)

type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeContinued Outcome = "continued"
	OutcomeReset     Outcome = "reset"
	// OutcomeDeduped means the check-in arrived within the 20-hour window.
	// It is accepted (not an error) but changes no streak state.
	OutcomeDeduped Outcome = "deduped"
)

// ApplyCheckIn runs the streak policy for a check-in at now, given the
// previous state. It returns the new current/longest counters and what
// happened. LongestStreak is a running max and never decreases.
func ApplyCheckIn(current, longest int, lastCheckIn *time.Time, now time.Time) (int, int, Outcome) {
	if lastCheckIn == nil {
		current = 1
		if longest < 1 {
			longest = 1
		}
		return current, longest, OutcomeStarted
	}

	elapsed := now.Sub(*lastCheckIn)
	switch {
	case elapsed < MinGap:
		return current, longest, OutcomeDeduped
	case elapsed <= MaxGap:
		current++
		if current > longest {
			longest = current
		}
		return current, longest, OutcomeContinued
	default:
		// The late check-in starts a new streak rather than zeroing out.
		current = 1
		if longest < 1 {
			longest = 1
		}
		return current, longest, OutcomeReset
	}
}

// Stale reports whether a streak has lapsed without a new check-in: more
// than 36 hours since the last one. Readers zero the current streak when
// this is true (pull-based expiry, no background sweep).
func Stale(lastCheckIn *time.Time, now time.Time) bool {
	if lastCheckIn == nil {
		return false
	}
	return now.Sub(*lastCheckIn) > MaxGap
}

// Milestone is a one-time award crossed by a sobriety or streak counter.
// Index is the guard: a milestone fires only while the stored milestone
// index is still below it, so repeated updates never double-credit.
type Milestone struct {
	Index     int
	Threshold int
	Title     string
	Points    int
}

var SobrietyMilestones = []Milestone{
	{Index: 1, Threshold: 7, Title: "One Week Sober", Points: 50},
	{Index: 2, Threshold: 30, Title: "One Month Sober", Points: 100},
	{Index: 3, Threshold: 90, Title: "Three Months Sober", Points: 200},
	{Index: 4, Threshold: 365, Title: "One Year Sober", Points: 500},
}

var StreakMilestones = []Milestone{
	{Index: 1, Threshold: 7, Title: "One Week Streak", Points: 50},
	{Index: 2, Threshold: 30, Title: "One Month Streak", Points: 150},
	{Index: 3, Threshold: 100, Title: "100 Day Streak", Points: 300},
}

// CrossedMilestone returns the highest milestone newly crossed by value, or
// nil. Branches are mutually exclusive: a jump from 0 to 100 sober days
// fires only the 90-day milestone; the skipped ones never fire because the
// index advances straight past them.
func CrossedMilestone(table []Milestone, value, milestoneIndex int) *Milestone {
	for i := len(table) - 1; i >= 0; i-- {
		m := table[i]
		if value >= m.Threshold && milestoneIndex < m.Index {
			return &m
		}
	}
	return nil
}

// SobrietyComplete reports whether crossing m finishes a days_sober
// challenge, and similarly StreakComplete for check_in_streak. The final
// milestone completes the challenge unless the challenge asks for more
// steps than the milestone ladder provides.
func SobrietyComplete(m *Milestone, totalSteps int) bool {
	return m != nil && m.Threshold == 365 && totalSteps <= len(SobrietyMilestones)
}

func StreakComplete(m *Milestone, totalSteps int) bool {
	return m != nil && m.Threshold == 100 && totalSteps <= len(StreakMilestones)
}
