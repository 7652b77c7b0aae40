// Package notify delivers note lifecycle events to webhooks and the event
// stream. Delivery is best effort: callers never see a failure roll back the
// operation that produced the event.
package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"keepit/internal/models"

	"github.com/rs/zerolog"
)

// Event is the payload posted to webhooks and published on the stream.
type Event struct {
	Action    models.WebhookAction `json:"action"`
	NoteID    int64                `json:"noteId"`
	Note      *models.Note         `json:"note,omitempty"`
	UserID    int64                `json:"userId"`
	Timestamp time.Time            `json:"timestamp"`
}

func NewEvent(action models.WebhookAction, userID int64, note *models.Note) Event {
	ev := Event{Action: action, UserID: userID, Note: note, Timestamp: time.Now().UTC()}
	if note != nil {
		ev.NoteID = note.ID
	}
	return ev
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Notify(context.Context, Event) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Async hands events to next on a separate goroutine with its own timeout,
// detached from the request context. Errors are logged.
type Async struct {
	next    Notifier
	timeout time.Duration
	log     zerolog.Logger
	wg      sync.WaitGroup
}

func NewAsync(next Notifier, timeout time.Duration, log zerolog.Logger) *Async {
	return &Async{next: next, timeout: timeout, log: log.With().Str("component", "notify").Logger()}
}

func (a *Async) Notify(ctx context.Context, ev Event) error {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Notify(ctx, ev); err != nil {
			a.log.Warn().Err(err).Str("action", string(ev.Action)).Int64("note_id", ev.NoteID).
				Int64("user_id", ev.UserID).Msg("event delivery failed")
		}
	}()
	return nil
}

// Wait blocks until every dispatched event has been handled.
func (a *Async) Wait() {
	a.wg.Wait()
}
