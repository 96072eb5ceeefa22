package notification

import (
	"context"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"go.uber.org/zap"

	"blooddrive-queue-backend/internal/model"
	"blooddrive-queue-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job is one donor push request.
type Job struct {
	DonorToken string
	Message    string
}

// WorkerPool fans donor "your turn" pushes out over a fixed set of workers.
type WorkerPool struct {
	size    int
	jobs    chan Job
	store   store.Store
	webpush *webpush.Options
	sender  Sender
	log     *zap.Logger
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options, log *zap.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size*4),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	wp.log.Debug("notification worker started", zap.Int("worker", id))
	for {
		select {
		case job := <-wp.jobs:
			wp.sendForDonor(ctx, job)
		case <-ctx.Done():
			wp.log.Debug("notification worker shutting down", zap.Int("worker", id))
			return
		}
	}
}

// Notify enqueues a push for the donor. Best-effort: when the queue is full
// the job is dropped rather than blocking the transition path.
func (wp *WorkerPool) Notify(donorToken, message string) {
	select {
	case wp.jobs <- Job{DonorToken: donorToken, Message: message}:
	default:
		wp.log.Warn("notification queue full, dropping push",
			zap.String("donor_token", donorToken))
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Job {
	return wp.jobs
}

// sendForDonor fetches the donor's push subscriptions and sends the message
// to each.
func (wp *WorkerPool) sendForDonor(ctx context.Context, job Job) {
	subscriptions, err := wp.store.SubscriptionsByToken(ctx, job.DonorToken)
	if err != nil {
		wp.log.Error("fetching push subscriptions failed",
			zap.String("donor_token", job.DonorToken), zap.Error(err))
		return
	}
	for _, sub := range subscriptions {
		wp.send(ctx, sub, []byte(job.Message))
	}
}

// send delivers one web push and drops subscriptions the push service
// reports as expired.
func (wp *WorkerPool) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error("sending push failed",
			zap.String("endpoint", sub.Endpoint), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		wp.log.Info("push subscription expired, deleting",
			zap.String("endpoint", sub.Endpoint))
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.Error("deleting expired subscription failed",
				zap.String("endpoint", sub.Endpoint), zap.Error(err))
		}
	}
}
