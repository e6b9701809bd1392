package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reConnectAPI/internal/types/challenge"
	"reConnectAPI/middleware"
	"reConnectAPI/services"
)

func authedRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	ctx := context.WithValue(req.Context(), middleware.ClerkIDKey, "user_test_123")
	return req.WithContext(ctx)
}

func TestGetSuggestions(t *testing.T) {
	h := NewChallengeHandler(nil, services.NewSuggestionService())

	rr := httptest.NewRecorder()
	h.GetSuggestions(rr, authedRequest(http.MethodGet, "/api/v1/challenges/suggestions?limit=3"))

	assert.Equal(t, http.StatusOK, rr.Code)

	var suggestions []challenge.Suggestion
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &suggestions))
	assert.Len(t, suggestions, 3)

	for _, s := range suggestions {
		assert.NotEmpty(t, s.Title)
		assert.Greater(t, s.TotalSteps, 0)
		switch s.ChallengeType {
		case challenge.TypeGeneric, challenge.TypeDaysSober, challenge.TypeCheckInStreak:
		default:
			t.Fatalf("unknown challenge type %q", s.ChallengeType)
		}
	}
}

func TestGetSuggestions_Unauthenticated(t *testing.T) {
	h := NewChallengeHandler(nil, services.NewSuggestionService())

	rr := httptest.NewRecorder()
	h.GetSuggestions(rr, httptest.NewRequest(http.MethodGet, "/api/v1/challenges/suggestions", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCheckIn_InvalidChallengeID(t *testing.T) {
	h := NewChallengeHandler(nil, nil)

	req := authedRequest(http.MethodPost, "/api/v1/challenges/not-a-uuid/check-in")
	rr := httptest.NewRecorder()
	h.CheckIn(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		msg  string
		code int
	}{
		{"not a participant in this match", http.StatusForbidden},
		{"not allowed to respond to this match", http.StatusForbidden},
		{"challenge not found", http.StatusNotFound},
		{"user not found", http.StatusNotFound},
		{"failed to get matches: connection refused", http.StatusInternalServerError},
		{`failed to get matches: relation "matches" not found`, http.StatusInternalServerError},
		{"match is not pending", http.StatusBadRequest},
	}

	for _, c := range cases {
		assert.Equal(t, c.code, statusForError(errors.New(c.msg)), c.msg)
	}
}
