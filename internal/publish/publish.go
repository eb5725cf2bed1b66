// Package publish delivers completion notifications after a record has
// been stored.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
)

// EventName identifies completion notifications to downstream consumers
const EventName = "session-learning:complete"

// Notification is emitted once per successfully stored record
type Notification struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id"`
	Outcome   insight.Outcome `json:"outcome"`
	Tags      []string        `json:"tags"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewNotification builds the notification for a stored record
func NewNotification(rec *insight.SessionInsight, now time.Time) Notification {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return Notification{
		Event:     EventName,
		SessionID: rec.SessionID,
		Outcome:   rec.Outcome,
		Tags:      tags,
		Timestamp: now.UTC(),
	}
}

// Listener receives notifications
type Listener interface {
	Notify(ctx context.Context, n Notification) error
}

// ListenerFunc adapts a function to Listener
type ListenerFunc func(ctx context.Context, n Notification) error

func (f ListenerFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Publisher fans a notification out to every subscribed listener. With no
// listeners Publish does nothing.
type Publisher struct {
	mu        sync.RWMutex
	listeners []Listener
}

func NewPublisher(listeners ...Listener) *Publisher {
	return &Publisher{listeners: listeners}
}

// Subscribe registers l for future notifications
func (p *Publisher) Subscribe(l Listener) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listeners = append(p.listeners, l)
}

// Len returns the number of subscribed listeners
func (p *Publisher) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.listeners)
}

// Publish delivers n to each listener in subscription order. A failing or
// panicking listener is logged and does not stop the others. It returns
// the number of listeners that accepted the notification.
func (p *Publisher) Publish(ctx context.Context, n Notification) int {
	p.mu.RLock()
	listeners := append([]Listener(nil), p.listeners...)
	p.mu.RUnlock()

	delivered := 0
	for i, l := range listeners {
		if err := deliver(ctx, l, n); err != nil {
			logger.Ctx(ctx).Warn("completion listener failed", "listener", i, "session_id", n.SessionID, "error", err)
			continue
		}
		delivered++
	}
	return delivered
}

func deliver(ctx context.Context, l Listener, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l.Notify(ctx, n)
}

// LogListener writes each notification to the structured log
func LogListener() Listener {
	return ListenerFunc(func(ctx context.Context, n Notification) error {
		logger.Ctx(ctx).Info(n.Event, "session_id", n.SessionID, "outcome", n.Outcome, "tags", n.Tags)
		return nil
	})
}

// JSONLListener appends notifications as JSON lines to a file, which other
// local tools can tail.
type JSONLListener struct {
	path string
	mu   sync.Mutex
}

func NewJSONLListener(path string) *JSONLListener {
	return &JSONLListener{path: path}
}

func (l *JSONLListener) Notify(_ context.Context, n Notification) error {
	line, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", l.path, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("failed to append notification: %w", err)
	}
	return f.Close()
}
