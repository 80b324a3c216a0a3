// Package notify announces job lifecycle events.
package notify

import (
	"context"
	"log"
	"time"
)

type EventType string

const (
	JobStarted  EventType = "started"
	JobFinished EventType = "finished"
	JobFailed   EventType = "failed"
)

type Event struct {
	Type  EventType `json:"type"`
	JobID string    `json:"jobId"`
	Name  string    `json:"name"`
	Error string    `json:"error,omitempty"`
	At    time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to a logger.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	logger := n.Logger
	if logger == nil {
		logger = log.Default()
	}
	if event.Error != "" {
		logger.Printf("job %s (%s) %s: %s", event.JobID, event.Name, event.Type, event.Error)
		return nil
	}
	logger.Printf("job %s (%s) %s", event.JobID, event.Name, event.Type)
	return nil
}

// Multi sends every event to all notifiers and returns the first error.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event Event) error {
	var first error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
