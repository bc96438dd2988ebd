package syncclient

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/localstore"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncproto"
)

// DefaultRetryDelays is the backoff schedule; attempts past the end reuse the
// last delay.
var DefaultRetryDelays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	30 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
}

// Sender performs the actual delivery of an event.
type Sender interface {
	Send(ctx context.Context, evt syncproto.Event) error
}

// Entry is one queued event.
type Entry struct {
	ID            string          `json:"id"`
	Event         syncproto.Event `json:"event"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt time.Time       `json:"nextAttemptAt"`
	LastError     string          `json:"lastError,omitempty"`
}

// FlushResult summarises one Flush.
type FlushResult struct {
	Delivered []string
	Dropped   []string
	Remaining int
}

// OutboxOption configures an Outbox.
type OutboxOption func(*Outbox)

// WithRetryDelays replaces the backoff schedule.
func WithRetryDelays(d []time.Duration) OutboxOption {
	return func(o *Outbox) {
		if len(d) > 0 {
			o.delays = d
		}
	}
}

// WithOutboxClock overrides the time source.
func WithOutboxClock(now func() time.Time) OutboxOption {
	return func(o *Outbox) { o.now = now }
}

// Outbox is a persisted FIFO of sync events. Events are delivered strictly
// in enqueue order: a transient failure at the head blocks the queue until
// its backoff expires.
type Outbox struct {
	kv     localstore.KV
	sender Sender
	logger zerolog.Logger
	now    func() time.Time
	delays []time.Duration

	qmu      sync.Mutex // guards the persisted queue and outcomes
	flush    sync.Mutex // one flusher at a time
	wake     chan struct{}
	outcomes map[string]outcome
}

// outcome tracks entries enqueued by Publish, which may be delivered by a
// concurrent flusher before the publisher gets the flush lock.
type outcome int

const (
	outcomePending outcome = iota
	outcomeDelivered
	outcomeDropped
)

func NewOutbox(kv localstore.KV, sender Sender, logger zerolog.Logger, opts ...OutboxOption) *Outbox {
	o := &Outbox{
		kv:       kv,
		sender:   sender,
		logger:   logger.With().Str("component", "sync_outbox").Logger(),
		now:      time.Now,
		delays:   DefaultRetryDelays,
		wake:     make(chan struct{}, 1),
		outcomes: make(map[string]outcome),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Enqueue appends an event to the queue.
func (o *Outbox) Enqueue(ctx context.Context, t syncproto.EventType, data interface{}) (Entry, error) {
	return o.enqueue(ctx, t, data, false)
}

func (o *Outbox) enqueue(ctx context.Context, t syncproto.EventType, data interface{}, track bool) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	evt, err := syncproto.NewEvent(t, data, o.now())
	if err != nil {
		return Entry{}, fmt.Errorf("encode %s: %w", t, err)
	}
	e := Entry{ID: uuid.New().String(), Event: evt, NextAttemptAt: o.now().UTC()}

	o.qmu.Lock()
	defer o.qmu.Unlock()
	queue, err := o.load()
	if err != nil {
		return Entry{}, err
	}
	if err := o.save(append(queue, e)); err != nil {
		return Entry{}, err
	}
	if track {
		o.outcomes[e.ID] = outcomePending
	}

	select {
	case o.wake <- struct{}{}:
	default:
	}
	return e, nil
}

// Pending returns a snapshot of the queue, head first.
func (o *Outbox) Pending() ([]Entry, error) {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	return o.load()
}

// Flush delivers due entries from the head until the queue is empty, the
// head is backing off, or a delivery fails.
func (o *Outbox) Flush(ctx context.Context) (FlushResult, error) {
	o.flush.Lock()
	defer o.flush.Unlock()

	var res FlushResult
	for {
		head, remaining, err := o.head()
		if err != nil {
			return res, err
		}
		res.Remaining = remaining
		if head == nil || head.NextAttemptAt.After(o.now()) {
			return res, nil
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}

		sendErr := o.sender.Send(ctx, head.Event)
		if sendErr != nil && ctx.Err() != nil {
			// Cancelled mid-flight; leave the entry as it was.
			return res, ctx.Err()
		}

		var status *StatusError
		switch {
		case sendErr == nil:
			if err := o.remove(head.ID, outcomeDelivered); err != nil {
				return res, err
			}
			res.Delivered = append(res.Delivered, head.ID)
			res.Remaining--
			o.logger.Info().Str("id", head.ID).Str("type", string(head.Event.Type)).Msg("delivered")

		case errors.As(sendErr, &status) && status.Permanent():
			if err := o.remove(head.ID, outcomeDropped); err != nil {
				return res, err
			}
			res.Dropped = append(res.Dropped, head.ID)
			res.Remaining--
			o.logger.Error().Err(sendErr).Str("id", head.ID).Str("type", string(head.Event.Type)).
				Msg("server rejected event, dropping")

		default:
			attempts := head.Attempts + 1
			next := o.now().UTC().Add(o.delay(attempts))
			if err := o.reschedule(head.ID, attempts, next, sendErr.Error()); err != nil {
				return res, err
			}
			o.logger.Warn().Err(sendErr).Str("id", head.ID).Str("type", string(head.Event.Type)).
				Int("attempts", attempts).Time("next_attempt_at", next).Msg("delivery failed, backing off")
			return res, nil
		}
	}
}

// Retry clears every backoff and flushes immediately.
func (o *Outbox) Retry(ctx context.Context) (FlushResult, error) {
	o.qmu.Lock()
	queue, err := o.load()
	if err == nil {
		now := o.now().UTC()
		for i := range queue {
			queue[i].NextAttemptAt = now
		}
		err = o.save(queue)
	}
	o.qmu.Unlock()
	if err != nil {
		return FlushResult{}, err
	}
	return o.Flush(ctx)
}

// Publish enqueues the event and flushes. It reports whether this event was
// delivered, by this flush or a concurrent one; otherwise it stays queued
// for a later flush.
func (o *Outbox) Publish(ctx context.Context, t syncproto.EventType, data interface{}) bool {
	e, err := o.enqueue(ctx, t, data, true)
	if err != nil {
		o.logger.Error().Err(err).Str("type", string(t)).Msg("failed to enqueue sync event")
		return false
	}
	if _, err := o.Flush(ctx); err != nil {
		o.logger.Error().Err(err).Msg("flush failed")
	}
	return o.takeOutcome(e.ID)
}

// Run flushes on every tick and whenever an event is enqueued, until ctx is
// done.
func (o *Outbox) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-o.wake:
		}
		if _, err := o.Flush(ctx); err != nil && ctx.Err() == nil {
			o.logger.Error().Err(err).Msg("outbox flush error")
		}
	}
}

func (o *Outbox) delay(attempts int) time.Duration {
	i := attempts - 1
	if i >= len(o.delays) {
		i = len(o.delays) - 1
	}
	if i < 0 {
		i = 0
	}
	return o.delays[i]
}

func (o *Outbox) head() (*Entry, int, error) {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	queue, err := o.load()
	if err != nil || len(queue) == 0 {
		return nil, 0, err
	}
	h := queue[0]
	return &h, len(queue), nil
}

func (o *Outbox) remove(id string, result outcome) error {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	queue, err := o.load()
	if err != nil {
		return err
	}
	kept := queue[:0]
	for _, e := range queue {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	if err := o.save(kept); err != nil {
		return err
	}
	if _, ok := o.outcomes[id]; ok {
		o.outcomes[id] = result
	}
	return nil
}

// takeOutcome reports whether a tracked entry has been delivered and stops
// tracking it.
func (o *Outbox) takeOutcome(id string) bool {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	result := o.outcomes[id]
	delete(o.outcomes, id)
	return result == outcomeDelivered
}

func (o *Outbox) reschedule(id string, attempts int, next time.Time, lastErr string) error {
	o.qmu.Lock()
	defer o.qmu.Unlock()
	queue, err := o.load()
	if err != nil {
		return err
	}
	for i := range queue {
		if queue[i].ID == id {
			queue[i].Attempts = attempts
			queue[i].NextAttemptAt = next
			queue[i].LastError = lastErr
		}
	}
	return o.save(queue)
}

func (o *Outbox) load() ([]Entry, error) {
	var queue []Entry
	if _, err := o.kv.Get(localstore.KeyOutbox, &queue); err != nil {
		return nil, fmt.Errorf("load outbox: %w", err)
	}
	if queue == nil {
		queue = []Entry{}
	}
	return queue, nil
}

func (o *Outbox) save(queue []Entry) error {
	if err := o.kv.Set(localstore.KeyOutbox, queue); err != nil {
		return fmt.Errorf("save outbox: %w", err)
	}
	return nil
}
