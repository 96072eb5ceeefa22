package notification

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"blooddrive-queue-backend/internal/db"
	"blooddrive-queue-backend/internal/model"
	"blooddrive-queue-backend/internal/store"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []string
	status int
}

func (f *fakeSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	f.mu.Lock()
	f.sent = append(f.sent, sub.Endpoint)
	f.mu.Unlock()
	status := f.status
	if status == 0 {
		status = http.StatusCreated
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader("")),
	}, nil
}

func (f *fakeSender) endpoints() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))
	t.Cleanup(func() {
		sqlDB, _ := gormDB.DB()
		sqlDB.Close()
	})
	return store.NewGormStore(gormDB)
}

func TestWorkerSendsToDonorSubscriptions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/ep1", P256DH: "k", Auth: "a", DonorToken: "tok-a",
	}))
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/ep2", P256DH: "k", Auth: "a", DonorToken: "tok-a",
	}))
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/other", P256DH: "k", Auth: "a", DonorToken: "tok-b",
	}))

	sender := &fakeSender{}
	pool := NewWorkerPool(1, s, &webpush.Options{}, zap.NewNop())
	pool.sender = sender

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.Start(workerCtx)

	pool.Notify("tok-a", "You're up!")

	assert.Eventually(t, func() bool {
		return len(sender.endpoints()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.NotContains(t, sender.endpoints(), "https://push.example/other")
}

func TestWorkerDeletesExpiredSubscription(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.UpsertSubscription(ctx, &model.PushSubscription{
		Endpoint: "https://push.example/expired", P256DH: "k", Auth: "a", DonorToken: "tok-a",
	}))

	sender := &fakeSender{status: http.StatusGone}
	pool := NewWorkerPool(1, s, &webpush.Options{}, zap.NewNop())
	pool.sender = sender

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	pool.Start(workerCtx)

	pool.Notify("tok-a", "You're up!")

	assert.Eventually(t, func() bool {
		subs, err := s.SubscriptionsByToken(ctx, "tok-a")
		return err == nil && len(subs) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestNotifyDropsWhenQueueFull(t *testing.T) {
	s := newTestStore(t)
	pool := NewWorkerPool(1, s, &webpush.Options{}, zap.NewNop())
	// No workers started: fill the buffer and confirm overflow is dropped
	// rather than blocking.
	for i := 0; i < cap(pool.Jobs())+5; i++ {
		pool.Notify("tok-a", "message")
	}
	assert.Len(t, pool.Jobs(), cap(pool.Jobs()))
}
