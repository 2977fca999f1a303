package bot

import (
	"context"
	"fmt"
	"sync"

	api "github.com/OvyFlash/telegram-bot-api"
	log "github.com/sirupsen/logrus"

	"github.com/iamwavecut/hustlebot/internal/infra"
)

const laneBuffer = 64

type processor interface {
	Process(ctx context.Context, u *api.Update) error
}

// Dispatcher spreads updates over a fixed set of lanes keyed by sender, so updates of
// one user stay ordered while different users are processed in parallel.
type Dispatcher struct {
	processor processor
	lanes     []chan api.Update

	runtimeCtx context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.RWMutex
	started    bool
}

func NewDispatcher(p processor, workers int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{processor: p, lanes: make([]chan api.Update, workers)}
}

func (d *Dispatcher) getLogEntry() *log.Entry {
	return log.WithField("object", "Dispatcher")
}

func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}
	d.runtimeCtx, d.cancel = context.WithCancel(ctx)
	for i := range d.lanes {
		lane := make(chan api.Update, laneBuffer)
		d.lanes[i] = lane
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			infra.GoRecoverable(-1, fmt.Sprintf("lane-%d", id), func() {
				d.run(lane)
			})
		}(i)
	}
	d.started = true
	return nil
}

func (d *Dispatcher) run(lane chan api.Update) {
	for update := range lane {
		if err := d.processor.Process(d.runtimeCtx, &update); err != nil {
			d.getLogEntry().WithFields(log.Fields{
				"method":    "run",
				"update_id": update.UpdateID,
				"error":     err.Error(),
			}).Error("update processing failed")
		}
	}
}

// Dispatch queues the update on its sender's lane, blocking while the lane is full.
func (d *Dispatcher) Dispatch(ctx context.Context, u api.Update) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.started {
		return fmt.Errorf("dispatcher is not started")
	}
	lane := d.lanes[laneIndex(&u, len(d.lanes))]

	select {
	case lane <- u:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes the lanes and waits until queued updates are drained.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return nil
	}
	d.started = false
	for _, lane := range d.lanes {
		close(lane)
	}
	cancel := d.cancel
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.wg.Wait()
	}()

	select {
	case <-ctx.Done():
		cancel()
		return ctx.Err()
	case <-done:
		cancel()
		return nil
	}
}

func laneIndex(u *api.Update, lanes int) int {
	var key int64
	if user := u.SentFrom(); user != nil {
		key = user.ID
	} else if chat := u.FromChat(); chat != nil {
		key = chat.ID
	}
	if key < 0 {
		key = -key
	}
	return int(key % int64(lanes))
}
