package moderation

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/iamwavecut/hustlebot/internal/observability"
)

const (
	DefaultNotifyConcurrency = 16
	DefaultNotifyRate        = 20
)

// Notifier delivers a text to every admin without blocking the caller.
type Notifier interface {
	Notify(text string)
}

// Sender is the transport used to reach one admin.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type AdminSource interface {
	Admins() []int64
}

type NotifierOptions struct {
	Concurrency int
	// PerSecond paces deliveries across all recipients.
	PerSecond float64
}

// AdminNotifier fans a notice out to all admins. Each recipient gets its own goroutine
// once a semaphore slot is free, deliveries are paced by a token bucket. Notices that
// find no free slot are dropped, as are failed deliveries.
type AdminNotifier struct {
	sender  Sender
	admins  AdminSource
	sem     *semaphore.Weighted
	limiter *rate.Limiter

	runtimeCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	started    bool
}

func NewAdminNotifier(sender Sender, admins AdminSource, opts NotifierOptions) *AdminNotifier {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultNotifyConcurrency
	}
	if opts.PerSecond <= 0 {
		opts.PerSecond = DefaultNotifyRate
	}
	return &AdminNotifier{
		sender:  sender,
		admins:  admins,
		sem:     semaphore.NewWeighted(int64(opts.Concurrency)),
		limiter: rate.NewLimiter(rate.Limit(opts.PerSecond), opts.Concurrency),
	}
}

func (n *AdminNotifier) getLogEntry() *log.Entry {
	return log.WithField("object", "AdminNotifier")
}

func (n *AdminNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.started {
		return nil
	}
	n.runtimeCtx, n.cancel = context.WithCancel(ctx)
	n.started = true
	return nil
}

// Stop cancels pending deliveries and waits for in-flight ones.
func (n *AdminNotifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.started {
		n.mu.Unlock()
		return nil
	}
	n.started = false
	cancel := n.cancel
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		n.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (n *AdminNotifier) wait() {
	n.wg.Wait()
}

func (n *AdminNotifier) Notify(text string) {
	n.mu.Lock()
	ctx := n.runtimeCtx
	started := n.started
	n.mu.Unlock()
	if !started {
		n.getLogEntry().WithField("method", "Notify").Warn("notifier is not started, dropping notice")
		observability.RecordNotification("dropped")
		return
	}

	for _, adminID := range n.admins.Admins() {
		if !n.sem.TryAcquire(1) {
			n.getLogEntry().WithFields(log.Fields{
				"method":   "Notify",
				"admin_id": adminID,
			}).Warn("too many notifications in flight, dropping notice")
			observability.RecordNotification("dropped")
			continue
		}
		n.wg.Add(1)
		go func(adminID int64) {
			defer n.wg.Done()
			defer n.sem.Release(1)
			if err := n.deliver(ctx, adminID, text); err != nil {
				n.getLogEntry().WithFields(log.Fields{
					"method":   "Notify",
					"admin_id": adminID,
					"error":    err.Error(),
				}).Warn("admin notification failed")
				observability.RecordNotification("failed")
				return
			}
			observability.RecordNotification("sent")
		}(adminID)
	}
}

func (n *AdminNotifier) deliver(ctx context.Context, adminID int64, text string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: rate wait: %w", ErrNotificationDelivery, err)
	}
	if err := n.sender.SendText(ctx, adminID, text); err != nil {
		return fmt.Errorf("%w: %w", ErrNotificationDelivery, err)
	}
	return nil
}
