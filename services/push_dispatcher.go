package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"reConnectAPI/internal/types/notification"
)

// PushProvider sends a mobile push for a single device token. The real
// implementation lives in internal/push (FCM); tests use a mock.
type PushProvider interface {
	SendPush(ctx context.Context, token, title, body string, data map[string]string) error
}

// PushDispatcher forwards notifications buffered for offline users to their
// registered device as a best-effort push. It is fire-and-forget end to
// end: a full queue drops the job, a failed push is only logged.
type PushDispatcher struct {
	db       *pgxpool.Pool
	provider PushProvider
	workers  int
	jobQueue chan *pushJob
	stopChan chan struct{}
	wg       sync.WaitGroup
}

type pushJob struct {
	UserID uuid.UUID
	Frame  notification.Frame
}

func NewPushDispatcher(db *pgxpool.Pool) *PushDispatcher {
	d := &PushDispatcher{
		db:       db,
		workers:  5,
		jobQueue: make(chan *pushJob, 100),
		stopChan: make(chan struct{}),
	}

	d.startWorkers()
	return d
}

// SetPushProvider injects the real FCM provider from main.go. Without one
// the dispatcher drains jobs as no-ops.
func (d *PushDispatcher) SetPushProvider(provider PushProvider) {
	d.provider = provider
}

func (d *PushDispatcher) startWorkers() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

func (d *PushDispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case job := <-d.jobQueue:
			d.processJob(job)
		case <-d.stopChan:
			return
		}
	}
}

// Dispatch queues a job without blocking the caller.
func (d *PushDispatcher) Dispatch(userID uuid.UUID, frame notification.Frame) {
	select {
	case d.jobQueue <- &pushJob{UserID: userID, Frame: frame}:
	default:
		log.Printf("PushDispatcher: queue full, dropping %s push for %s", frame.Type, userID)
	}
}

func (d *PushDispatcher) processJob(job *pushJob) {
	if d.provider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var token *string
	err := d.db.QueryRow(ctx, `SELECT device_token FROM users WHERE id = $1`, job.UserID).Scan(&token)
	if err != nil || token == nil || *token == "" {
		return
	}

	title, body := pushContent(job.Frame)
	data := map[string]string{"type": string(job.Frame.Type)}
	if job.Frame.MatchID != nil {
		data["matchId"] = job.Frame.MatchID.String()
	}
	if job.Frame.ChallengeID != nil {
		data["challengeId"] = job.Frame.ChallengeID.String()
	}

	if err := d.provider.SendPush(ctx, *token, title, body, data); err != nil {
		log.Printf("PushDispatcher: push failed for user %s: %v", job.UserID, err)
	}
}

func pushContent(frame notification.Frame) (string, string) {
	switch frame.Type {
	case notification.TypeNewMatchRequest:
		return "New match request", frame.FromUsername + " wants to be your accountability partner"
	case notification.TypeNewMessage:
		return "New message", frame.FromUsername + " sent you a message"
	case notification.TypePartnerCheckIn:
		return "Partner check-in", frame.FromUsername + " just checked in"
	default:
		return "reConnect", "You have a new notification"
	}
}

// Stop shuts the worker pool down gracefully.
func (d *PushDispatcher) Stop() {
	close(d.stopChan)
	d.wg.Wait()
}
