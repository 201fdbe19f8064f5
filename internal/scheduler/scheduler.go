// Package scheduler drives poll cycles: fetch listings, match watch requests,
// decide new alerts, notify and persist.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ticketwatch/internal/alert"
	"ticketwatch/internal/matcher"
	"ticketwatch/internal/model"
	"ticketwatch/internal/normalize"
	"ticketwatch/internal/storage"
)

// ErrStore marks a state persistence failure. It aborts the cycle without
// saving anything.
var ErrStore = errors.New("state store")

// ListingSource fetches a provider's raw payload for one location.
type ListingSource interface {
	Name() string
	Supports(location string) bool
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// Notifier delivers one alert message.
type Notifier interface {
	Send(ctx context.Context, msg string) error
}

// StateStore loads and replaces the fired alert state.
type StateStore interface {
	Load(ctx context.Context) (model.AlertState, error)
	Save(ctx context.Context, state model.AlertState) error
}

// WatchSource lists the current watch requests in declaration order.
type WatchSource interface {
	ListWatches(ctx context.Context) ([]model.WatchRequest, error)
}

// Options tunes the orchestrator.
type Options struct {
	Interval      time.Duration
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
	SaveTimeout   time.Duration
	Workers       int
	// DispatchGap is the pause between two notifications.
	DispatchGap time.Duration
}

// DefaultOptions returns the settings used when a field is zero.
func DefaultOptions() Options {
	return Options{
		Interval:      5 * time.Minute,
		FetchTimeout:  15 * time.Second,
		NotifyTimeout: 10 * time.Second,
		SaveTimeout:   10 * time.Second,
		Workers:       4,
		DispatchGap:   50 * time.Millisecond,
	}
}

// Report summarizes one cycle.
type Report struct {
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration"`
	Requests          int           `json:"requests"`
	Fetches           int           `json:"fetches"`
	Listings          int           `json:"listings"`
	Matches           int           `json:"matches"`
	AlertsFired       int           `json:"alerts_fired"`
	DispatchFailures  int           `json:"dispatch_failures"`
	SourceFailures    int           `json:"source_failures"`
	NormalizeFailures int           `json:"normalize_failures"`
	Error             string        `json:"error,omitempty"`
}

// Orchestrator runs poll cycles. Cycles never overlap.
type Orchestrator struct {
	watches  WatchSource
	sources  []ListingSource
	notifier Notifier
	store    StateStore
	opts     Options
	log      *slog.Logger
	now      func() time.Time

	cycleMu sync.Mutex

	reportMu sync.RWMutex
	last     *Report
}

// New creates an Orchestrator. Zero option fields other than DispatchGap
// take DefaultOptions values.
func New(watches WatchSource, sources []ListingSource, notifier Notifier, store StateStore, opts Options, log *slog.Logger) *Orchestrator {
	def := DefaultOptions()
	if opts.Interval <= 0 {
		opts.Interval = def.Interval
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = def.FetchTimeout
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = def.NotifyTimeout
	}
	if opts.SaveTimeout <= 0 {
		opts.SaveTimeout = def.SaveTimeout
	}
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.DispatchGap < 0 {
		opts.DispatchGap = 0
	}
	return &Orchestrator{
		watches:  watches,
		sources:  sources,
		notifier: notifier,
		store:    store,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Run runs a cycle immediately and then on every tick, blocking until ctx
// is cancelled. Cycle errors are logged.
func (o *Orchestrator) Run(ctx context.Context) {
	o.runLogged(ctx)

	ticker := time.NewTicker(o.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.runLogged(ctx)
		}
	}
}

func (o *Orchestrator) runLogged(ctx context.Context) {
	if _, err := o.RunCycle(ctx); err != nil {
		o.log.Error("poll cycle failed", "error", err)
	}
}

// LastReport returns the report of the most recent cycle.
func (o *Orchestrator) LastReport() (Report, bool) {
	o.reportMu.RLock()
	defer o.reportMu.RUnlock()
	if o.last == nil {
		return Report{}, false
	}
	return *o.last, true
}

// RunCycle performs one full fetch, match, notify and persist pass.
// Only state store failures are returned; they wrap ErrStore.
func (o *Orchestrator) RunCycle(ctx context.Context) (Report, error) {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	report := Report{StartedAt: o.now().UTC()}
	err := o.cycle(ctx, &report)
	report.Duration = o.now().Sub(report.StartedAt)
	if err != nil {
		report.Error = err.Error()
	}

	o.reportMu.Lock()
	o.last = &report
	o.reportMu.Unlock()

	o.log.Info("poll cycle finished",
		"requests", report.Requests,
		"fetches", report.Fetches,
		"listings", report.Listings,
		"matches", report.Matches,
		"alerts", report.AlertsFired,
		"dispatch_failures", report.DispatchFailures,
		"source_failures", report.SourceFailures,
		"normalize_failures", report.NormalizeFailures,
		"duration", report.Duration,
	)
	return report, err
}

// Forget purges a fired key so it can alert again. It waits for a running
// cycle to finish so that cycle's save cannot restore the key. A key that
// never fired yields storage.ErrNotFound.
func (o *Orchestrator) Forget(ctx context.Context, key model.AlertKey) error {
	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	if p, ok := o.store.(storage.AlertPurger); ok {
		if err := p.DeleteAlert(ctx, key); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return err
			}
			return fmt.Errorf("%w: forget: %w", ErrStore, err)
		}
	} else {
		state, err := o.store.Load(ctx)
		if err != nil {
			return fmt.Errorf("%w: load: %w", ErrStore, err)
		}
		if !state.Has(key) {
			return fmt.Errorf("alert %q: %w", key, storage.ErrNotFound)
		}
		alert.Forget(state, key)
		if err := o.store.Save(ctx, state); err != nil {
			return fmt.Errorf("%w: save: %w", ErrStore, err)
		}
	}

	o.log.Info("alert forgotten", "key", key)
	return nil
}

func (o *Orchestrator) cycle(ctx context.Context, report *Report) error {
	requests, err := o.watches.ListWatches(ctx)
	if err != nil {
		return fmt.Errorf("%w: list watches: %w", ErrStore, err)
	}
	report.Requests = len(requests)

	state, err := o.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("%w: load: %w", ErrStore, err)
	}
	if state == nil {
		state = make(model.AlertState)
	}

	listings := o.fetchAll(ctx, requests, report)

	attempted := make(map[model.AlertKey]struct{})
	for i, req := range requests {
		matches := matcher.Match(req, listings[i])
		report.Matches += len(matches)
		o.log.Debug("matched watch", "watch_id", req.ID, "movie", req.MovieName,
			"listings", len(listings[i]), "matches", len(matches))

		fresh, updated := alert.Evaluate(req.MovieName, matches, state, o.now())
		state = updated

		for _, key := range fresh {
			if _, done := attempted[key]; done {
				// Dispatch already failed earlier in this cycle.
				alert.Forget(state, key)
				continue
			}
			attempted[key] = struct{}{}

			if err := o.dispatch(ctx, key); err != nil {
				o.log.Error("dispatch alert", "key", key, "error", err)
				report.DispatchFailures++
				alert.Forget(state, key)
				continue
			}
			report.AlertsFired++
			o.log.Info("alert sent", "key", key, "watch_id", req.ID)
		}
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.SaveTimeout)
	defer cancel()
	if err := o.store.Save(saveCtx, state); err != nil {
		return fmt.Errorf("%w: save: %w", ErrStore, err)
	}
	return nil
}

func (o *Orchestrator) dispatch(ctx context.Context, key model.AlertKey) error {
	if o.opts.DispatchGap > 0 {
		// Telegram allows roughly 20 messages per second.
		t := time.NewTimer(o.opts.DispatchGap)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
	nctx, cancel := context.WithTimeout(ctx, o.opts.NotifyTimeout)
	defer cancel()
	return o.notifier.Send(nctx, FormatAlertKey(key))
}

type fetchJob struct {
	request  int
	location string
	source   ListingSource

	listings []model.Listing
	fetchErr error
	normErr  error
}

// fetchAll fetches every (request, location, source) triple on a bounded
// worker pool and returns the listings per request index. Failures are
// counted and logged in job order after all fetches finish.
func (o *Orchestrator) fetchAll(ctx context.Context, requests []model.WatchRequest, report *Report) [][]model.Listing {
	var jobs []*fetchJob
	for i, req := range requests {
		for _, loc := range req.Locations {
			served := false
			for _, src := range o.sources {
				if !src.Supports(loc) {
					continue
				}
				served = true
				jobs = append(jobs, &fetchJob{request: i, location: loc, source: src})
			}
			if !served {
				o.log.Warn("no source serves location", "watch_id", req.ID, "location", loc)
			}
		}
	}
	report.Fetches = len(jobs)

	var g errgroup.Group
	g.SetLimit(o.opts.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, o.opts.FetchTimeout)
			defer cancel()

			raw, err := job.source.Fetch(fctx, job.location)
			if err != nil {
				job.fetchErr = err
				return nil
			}
			job.listings, job.normErr = normalize.Normalize(job.source.Name(), raw, job.location)
			return nil
		})
	}
	_ = g.Wait()

	out := make([][]model.Listing, len(requests))
	for _, job := range jobs {
		switch {
		case job.fetchErr != nil:
			report.SourceFailures++
			o.log.Warn("fetch listings", "provider", job.source.Name(), "location", job.location,
				"watch_id", requests[job.request].ID, "error", job.fetchErr)
		case job.normErr != nil:
			report.NormalizeFailures++
			o.log.Warn("normalize listings", "provider", job.source.Name(), "location", job.location,
				"watch_id", requests[job.request].ID, "error", job.normErr)
		default:
			report.Listings += len(job.listings)
			out[job.request] = append(out[job.request], job.listings...)
		}
	}
	return out
}
