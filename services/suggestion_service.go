package services

import (
	"math/rand"

	"reConnectAPI/internal/types/challenge"
)

// SuggestionService serves challenge ideas from a fixed catalog. An LLM
// generator could slot in behind the same interface later; the canned list
// keeps the endpoint fast and offline-safe.
type SuggestionService struct {
	catalog []challenge.Suggestion
}

func NewSuggestionService() *SuggestionService {
	return &SuggestionService{catalog: defaultCatalog}
}

var defaultCatalog = []challenge.Suggestion{
	{
		Title:         "Daily Check-In",
		Description:   "Check in with your partner every day and keep the streak alive.",
		ChallengeType: challenge.TypeCheckInStreak,
		TotalSteps:    3,
	},
	{
		Title:         "Sobriety Tracker",
		Description:   "Track your sober days together and celebrate every milestone.",
		ChallengeType: challenge.TypeDaysSober,
		TotalSteps:    4,
	},
	{
		Title:         "Attend Three Meetings",
		Description:   "Each of you attends three support meetings this month.",
		ChallengeType: challenge.TypeGeneric,
		TotalSteps:    3,
	},
	{
		Title:         "Gratitude Journal",
		Description:   "Write down one thing you are grateful for, seven days in a row.",
		ChallengeType: challenge.TypeGeneric,
		TotalSteps:    7,
	},
	{
		Title:         "Replace the Habit",
		Description:   "Five workouts, walks or hobby sessions in the hours you used to drink.",
		ChallengeType: challenge.TypeGeneric,
		TotalSteps:    5,
	},
	{
		Title:         "Reach Out First",
		Description:   "Start the conversation with your partner four times this week.",
		ChallengeType: challenge.TypeGeneric,
		TotalSteps:    4,
	},
}

// Suggestions returns up to limit entries in random order so repeat visits
// see variety.
func (s *SuggestionService) Suggestions(limit int) []challenge.Suggestion {
	if limit <= 0 || limit > len(s.catalog) {
		limit = len(s.catalog)
	}

	out := make([]challenge.Suggestion, len(s.catalog))
	copy(out, s.catalog)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out[:limit]
}
