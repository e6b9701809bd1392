package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reConnectAPI/internal/types/notification"
)

// stubMatchLister returns a fixed pending-match snapshot.
type stubMatchLister struct {
	matches []notification.PendingMatch
}

func (s *stubMatchLister) PendingMatchesForUser(ctx context.Context, userID uuid.UUID) ([]notification.PendingMatch, error) {
	return s.matches, nil
}

func newFrame(t notification.FrameType, content string) notification.Frame {
	return notification.Frame{Type: t, Content: content, SentAt: time.Now()}
}

// drainFrame reads one marshaled frame off the client's send channel.
func drainFrame(t *testing.T, c *Client) notification.Frame {
	t.Helper()

	select {
	case raw := <-c.Send:
		var f notification.Frame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	default:
		t.Fatal("expected a frame on the send channel")
		return notification.Frame{}
	}
}

func assertNoFrame(t *testing.T, c *Client) {
	t.Helper()

	select {
	case raw := <-c.Send:
		t.Fatalf("unexpected frame on the send channel: %s", raw)
	default:
	}
}

func TestHub_LiveDelivery(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	c := NewClient(hub, nil)
	hub.Authenticate(c, userID)
	assertNoFrame(t, c)

	delivered := hub.Send(userID, newFrame(notification.TypeNewMessage, "hey"))
	assert.True(t, delivered)

	f := drainFrame(t, c)
	assert.Equal(t, notification.TypeNewMessage, f.Type)
	assert.Equal(t, "hey", f.Content)
}

func TestHub_OfflineBufferFlushesInOrder(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()
	hub.SetMatchLister(&stubMatchLister{matches: []notification.PendingMatch{
		{MatchID: uuid.New(), FromUsername: "sam"},
	}})

	assert.False(t, hub.Send(userID, newFrame(notification.TypeNewMessage, "first")))
	assert.False(t, hub.Send(userID, newFrame(notification.TypeNewMessage, "second")))
	assert.False(t, hub.Connected(userID))

	c := NewClient(hub, nil)
	hub.Authenticate(c, userID)

	// Snapshot first, then the buffered frames oldest first.
	assert.Equal(t, notification.TypePendingMatches, drainFrame(t, c).Type)
	assert.Equal(t, "first", drainFrame(t, c).Content)
	assert.Equal(t, "second", drainFrame(t, c).Content)
	assert.True(t, hub.Connected(userID))
}

func TestHub_BufferDoesNotSurviveFlush(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	hub.Send(userID, newFrame(notification.TypeNewMessage, "once"))

	c1 := NewClient(hub, nil)
	hub.Authenticate(c1, userID)
	assert.Equal(t, "once", drainFrame(t, c1).Content)

	// A reconnect gets nothing; the buffer was consumed by the flush.
	c2 := NewClient(hub, nil)
	hub.Authenticate(c2, userID)
	assertNoFrame(t, c2)
}

func TestHub_SnapshotCarriesPendingMatches(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	hub.SetMatchLister(&stubMatchLister{matches: []notification.PendingMatch{
		{MatchID: uuid.New(), FromUsername: "sam"},
	}})

	c := NewClient(hub, nil)
	hub.Authenticate(c, userID)

	f := drainFrame(t, c)
	assert.Equal(t, notification.TypePendingMatches, f.Type)
	require.Len(t, f.Matches, 1)
	assert.Equal(t, "sam", f.Matches[0].FromUsername)
}

func TestHub_NoSnapshotWithoutPendingMatches(t *testing.T) {
	hub := NewHub()
	hub.SetMatchLister(&stubMatchLister{})

	c := NewClient(hub, nil)
	hub.Authenticate(c, uuid.New())
	assertNoFrame(t, c)
}

func TestHub_NewConnectionReplacesOld(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	c1 := NewClient(hub, nil)
	hub.Authenticate(c1, userID)

	c2 := NewClient(hub, nil)
	hub.Authenticate(c2, userID)

	hub.Send(userID, newFrame(notification.TypeNewMessage, "to the new conn"))
	assert.Equal(t, "to the new conn", drainFrame(t, c2).Content)
	assertNoFrame(t, c1)

	// Disconnecting the stale client must not unregister the new one.
	hub.Disconnect(c1)
	assert.True(t, hub.Connected(userID))
	assert.True(t, hub.Send(userID, newFrame(notification.TypeNewMessage, "still live")))
}

func TestHub_DisconnectBuffersLaterSends(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	c := NewClient(hub, nil)
	hub.Authenticate(c, userID)

	hub.Disconnect(c)
	assert.False(t, hub.Connected(userID))

	assert.False(t, hub.Send(userID, newFrame(notification.TypePartnerCheckIn, "")))

	c2 := NewClient(hub, nil)
	hub.Authenticate(c2, userID)
	assert.Equal(t, notification.TypePartnerCheckIn, drainFrame(t, c2).Type)
}

// gatedMatchLister blocks inside the snapshot query until released, opening
// a window to race sends against an in-flight Authenticate.
type gatedMatchLister struct {
	started chan struct{}
	release chan struct{}
}

func (g *gatedMatchLister) PendingMatchesForUser(ctx context.Context, userID uuid.UUID) ([]notification.PendingMatch, error) {
	close(g.started)
	<-g.release
	return nil, nil
}

func TestHub_SendDuringAuthenticateKeepsOrder(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	lister := &gatedMatchLister{started: make(chan struct{}), release: make(chan struct{})}
	hub.SetMatchLister(lister)

	assert.False(t, hub.Send(userID, newFrame(notification.TypeNewMessage, "earlier")))

	c := NewClient(hub, nil)
	done := make(chan struct{})
	go func() {
		hub.Authenticate(c, userID)
		close(done)
	}()

	// While the snapshot query is still in flight, another notification
	// arrives. It must come out after the one buffered before it.
	<-lister.started
	hub.Send(userID, newFrame(notification.TypeNewMessage, "later"))
	close(lister.release)
	<-done

	assert.Equal(t, "earlier", drainFrame(t, c).Content)
	assert.Equal(t, "later", drainFrame(t, c).Content)
	assertNoFrame(t, c)
}

func TestHub_FullChannelFallsBackToBuffer(t *testing.T) {
	hub := NewHub()
	userID := uuid.New()

	c := NewClient(hub, nil)
	hub.Authenticate(c, userID)

	// Saturate the send channel; the next frame lands in the buffer
	// instead of blocking or getting lost.
	for cap(c.Send) > len(c.Send) {
		require.True(t, hub.Send(userID, newFrame(notification.TypeNewMessage, "fill")))
	}

	assert.False(t, hub.Send(userID, newFrame(notification.TypeNewMessage, "overflow")))
}
