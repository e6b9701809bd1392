package user

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDRoundTripsAsUUIDString(t *testing.T) {
	id := uuid.New()
	u := User{ID: id, ClerkID: "user_2abc", Username: "cait"}

	data, err := json.Marshal(u)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, id.String(), fields["id"])

	var back User
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back.ID)
}

func TestUserRejectsMalformedID(t *testing.T) {
	var u User
	err := json.Unmarshal([]byte(`{"id":"not-a-uuid"}`), &u)
	assert.Error(t, err)
}
