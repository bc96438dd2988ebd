// Package reconcile merges the server's patient records into the device's
// local copy, recomputes presence status and republishes the result.
package reconcile

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/amnandan9/Parkinsons-Detection-System/internal/domain/patient"
	"github.com/amnandan9/Parkinsons-Detection-System/internal/platform/syncclient"
)

// DefaultPushConcurrency bounds simultaneous record pushes.
const DefaultPushConcurrency = 8

// RecordPublisher pushes one record to the server.
type RecordPublisher interface {
	SyncPatientRecord(ctx context.Context, r patient.Record) bool
}

// Result describes one pass.
type Result struct {
	Records    []patient.Record
	Pulled     int
	Pushed     int
	PushFailed int
	// Healed is the number of local records pushed because the server
	// reported none.
	Healed int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithClock overrides the time source used for status derivation.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

// WithPushConcurrency bounds simultaneous pushes; values below 1 are ignored.
func WithPushConcurrency(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

type Reconciler struct {
	puller      syncclient.Puller
	repo        patient.Repository
	pub         RecordPublisher
	logger      zerolog.Logger
	now         func() time.Time
	concurrency int

	cursor string
}

func New(puller syncclient.Puller, repo patient.Repository, pub RecordPublisher, logger zerolog.Logger, opts ...Option) *Reconciler {
	r := &Reconciler{
		puller:      puller,
		repo:        repo,
		pub:         pub,
		logger:      logger.With().Str("component", "reconciler").Logger(),
		now:         time.Now,
		concurrency: DefaultPushConcurrency,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run performs one pass. A failed pull is indistinguishable from an empty
// server, so local records are pushed back in that case. Local persistence
// errors are combined and returned after the pushes have been attempted.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	var res Result

	changes, err := r.puller.Pull(ctx, r.cursor)
	if err != nil {
		r.logger.Warn().Err(err).Msg("pull failed, treating server as empty")
	} else {
		r.cursor = changes.Cursor
	}
	remote := changes.Records

	local, err := r.repo.List(ctx)
	if err != nil {
		return res, err
	}

	var errs error
	records := local
	switch {
	case len(remote) > 0:
		res.Pulled = len(remote)
		records = patient.Merge(local, remote)
		errs = multierr.Append(errs, r.repo.SaveAll(ctx, records))
	case len(local) > 0:
		r.logger.Info().Int("count", len(local)).Msg("server has no records, pushing local records")
		ok, _ := r.pushAll(ctx, local)
		res.Healed = ok
	}

	records = patient.DeriveAll(records, r.now())
	errs = multierr.Append(errs, r.repo.SaveAll(ctx, records))
	res.Records = records

	res.Pushed, res.PushFailed = r.pushAll(ctx, records)
	if res.PushFailed > 0 {
		r.logger.Warn().Int("failed", res.PushFailed).Int("pushed", res.Pushed).Msg("some records failed to sync")
	}
	r.logger.Debug().
		Int("records", len(records)).
		Int("pulled", res.Pulled).
		Int("pushed", res.Pushed).
		Int("healed", res.Healed).
		Msg("reconciliation pass complete")
	return res, errs
}

// pushAll publishes every record concurrently; outcomes are independent.
func (r *Reconciler) pushAll(ctx context.Context, records []patient.Record) (ok, failed int) {
	var okCount, failCount int64
	p := pool.New().WithMaxGoroutines(r.concurrency)
	for _, rec := range records {
		rec := rec
		p.Go(func() {
			if r.pub.SyncPatientRecord(ctx, rec) {
				atomic.AddInt64(&okCount, 1)
			} else {
				atomic.AddInt64(&failCount, 1)
			}
		})
	}
	p.Wait()
	return int(okCount), int(failCount)
}
