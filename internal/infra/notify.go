package infra

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// LogNotifier writes every notification to the daemon log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs at Info, or Warn for errors.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(n domain.Notification) {
	fields := []zap.Field{
		zap.String("id", n.ID),
		zap.String("event", n.Event),
		zap.String("status", n.Status),
	}
	if n.Process != "" {
		fields = append(fields, zap.String("process", n.Process))
	}
	if n.Resolution != "" {
		fields = append(fields, zap.String("resolution", n.Resolution))
	}
	if n.Error != "" {
		fields = append(fields, zap.String("error", n.Error))
		l.logger.Warn("notification", fields...)
		return
	}
	l.logger.Info("notification", fields...)
}

// Hub fans notifications out to fixed sinks and dynamic subscribers.
// Delivery to subscribers never blocks: a full subscriber misses the event.
type Hub struct {
	mu    sync.RWMutex
	sinks []domain.Notifier
	subs  map[string]*subscriber
}

type subscriber struct {
	ch      chan domain.Notification
	dropped atomic.Int64
}

// NewHub creates a hub delivering to sinks in order.
func NewHub(sinks ...domain.Notifier) *Hub {
	h := &Hub{subs: make(map[string]*subscriber)}
	for _, s := range sinks {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
	return h
}

// AddSink registers another fixed sink.
func (h *Hub) AddSink(n domain.Notifier) {
	if n == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sinks = append(h.sinks, n)
}

// Notify stamps n with an ID and delivers it.
func (h *Hub) Notify(n domain.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	h.mu.RLock()
	sinks := h.sinks
	for _, sub := range h.subs {
		select {
		case sub.ch <- n:
		default:
			sub.dropped.Add(1)
		}
	}
	h.mu.RUnlock()

	for _, s := range sinks {
		s.Notify(n)
	}
}

// Subscribe returns a channel receiving future notifications and a cancel
// function that closes it.
func (h *Hub) Subscribe(buffer int) (string, <-chan domain.Notification, func()) {
	if buffer < 1 {
		buffer = 1
	}
	id := uuid.NewString()
	sub := &subscriber{ch: make(chan domain.Notification, buffer)}

	h.mu.Lock()
	h.subs[id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
	return id, sub.ch, cancel
}

// Dropped returns how many events subscriber id has missed.
func (h *Hub) Dropped(id string) int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sub, ok := h.subs[id]; ok {
		return sub.dropped.Load()
	}
	return 0
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// desktopMessage renders the summary and body of a desktop notification.
func desktopMessage(n domain.Notification) (summary, body string) {
	switch n.Event {
	case domain.EventResolutionChanged:
		switch n.Status {
		case domain.StatusChanged:
			return "Resolution changed", fmt.Sprintf("%s: %s", n.Process, n.Resolution)
		case domain.StatusRevertPending:
			return "Resolution revert pending", fmt.Sprintf("%s lost focus", n.Process)
		case domain.StatusReverted:
			return "Resolution restored", ""
		case domain.StatusError:
			return "Resolution change failed", n.Error
		}
	case domain.EventConfigReloaded:
		return "Automation rules reloaded", ""
	case domain.EventMouseLockChanged:
		switch n.Status {
		case domain.StatusActive:
			return "Cursor locked", n.Process
		case domain.StatusInactive:
			return "Cursor released", ""
		}
	}
	return n.Event, n.Status
}

// Ensure notifiers implement domain.Notifier.
var (
	_ domain.Notifier = (*LogNotifier)(nil)
	_ domain.Notifier = (*Hub)(nil)
)
