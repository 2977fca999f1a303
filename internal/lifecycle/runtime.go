package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Component is a long-running part of the bot (notifier, dispatcher, http server).
type Component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Runtime starts components in registration order and stops them in reverse.
type Runtime struct {
	mu         sync.Mutex
	components []Component
	started    []Component
}

func NewRuntime(components ...Component) *Runtime {
	r := &Runtime{}
	for _, c := range components {
		r.Register(c)
	}
	return r
}

func (r *Runtime) getLogEntry() *log.Entry {
	return log.WithField("object", "Runtime")
}

func (r *Runtime) Register(component Component) {
	if component == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = append(r.components, component)
}

// Start fails fast: components started before the failing one are stopped again.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := r.getLogEntry().WithField("method", "Start")
	for _, component := range r.components {
		name := componentName(component)
		if err := component.Start(ctx); err != nil {
			entry.WithFields(log.Fields{"component": name, "error": err.Error()}).Error("component failed to start")
			_ = stopComponents(ctx, r.started)
			r.started = nil
			return fmt.Errorf("start %s: %w", name, err)
		}
		entry.WithField("component", name).Debug("component started")
		r.started = append(r.started, component)
	}
	return nil
}

// Stop stops every started component, collecting all errors.
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	err := stopComponents(ctx, r.started)
	r.started = nil
	return err
}

func stopComponents(ctx context.Context, components []Component) error {
	entry := log.WithFields(log.Fields{"object": "Runtime", "method": "stopComponents"})
	var stopErr error
	for i := len(components) - 1; i >= 0; i-- {
		name := componentName(components[i])
		if err := components[i].Stop(ctx); err != nil {
			entry.WithFields(log.Fields{"component": name, "error": err.Error()}).Warn("component failed to stop")
			stopErr = errors.Join(stopErr, fmt.Errorf("stop %s: %w", name, err))
			continue
		}
		entry.WithField("component", name).Debug("component stopped")
	}
	return stopErr
}

func componentName(c Component) string {
	if named, ok := c.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", c)
}
