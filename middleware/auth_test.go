package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedEcho(t *testing.T) http.Handler {
	t.Helper()
	return ClerkAuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clerkID, ok := GetClerkID(r.Context())
		require.True(t, ok)
		w.Write([]byte(clerkID))
	}))
}

func TestClerkAuthMiddleware_MissingHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	protectedEcho(t).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/user", nil))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestClerkAuthMiddleware_NotBearer(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	rr := httptest.NewRecorder()
	protectedEcho(t).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestClerkAuthMiddleware_ForgedToken(t *testing.T) {
	// A token signed with a key Clerk never issued must not pass.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user_forged",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("not-clerks-key"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/user", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	rr := httptest.NewRecorder()
	protectedEcho(t).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetClerkID_EmptyContext(t *testing.T) {
	_, ok := GetClerkID(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
