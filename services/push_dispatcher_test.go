package services

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"reConnectAPI/internal/types/notification"
)

func TestPushContent(t *testing.T) {
	title, body := pushContent(notification.Frame{
		Type:         notification.TypeNewMessage,
		FromUsername: "sam",
	})
	assert.Equal(t, "New message", title)
	assert.Equal(t, "sam sent you a message", body)

	title, _ = pushContent(notification.Frame{Type: notification.TypePartnerCheckIn})
	assert.Equal(t, "Partner check-in", title)

	title, _ = pushContent(notification.Frame{Type: notification.TypePendingMatches})
	assert.Equal(t, "reConnect", title)
}

func TestPushDispatcher_NoProviderDrainsQuietly(t *testing.T) {
	d := NewPushDispatcher(nil)

	// Without a provider the workers drop jobs before touching the
	// database, so a nil pool is safe here.
	for i := 0; i < 20; i++ {
		d.Dispatch(uuid.New(), notification.Frame{Type: notification.TypeNewMessage})
	}

	d.Stop()
}

func TestPushDispatcher_DispatchNeverBlocks(t *testing.T) {
	d := &PushDispatcher{
		jobQueue: make(chan *pushJob, 1),
		stopChan: make(chan struct{}),
	}
	// No workers running: the queue fills after one job and the rest
	// must be dropped rather than block the caller.
	for i := 0; i < 10; i++ {
		d.Dispatch(uuid.New(), notification.Frame{Type: notification.TypePartnerCheckIn})
	}

	assert.Len(t, d.jobQueue, 1)
}
