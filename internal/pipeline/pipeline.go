// Package pipeline runs one fetch, normalize, detect and render pass over
// all configured keywords and sources.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shopwatch/internal/detect"
	"shopwatch/internal/filter"
	"shopwatch/internal/model"
	"shopwatch/internal/normalize"
	"shopwatch/internal/render"
	"shopwatch/internal/source"
	"shopwatch/internal/storage"
)

// Report is the outcome of one run.
type Report struct {
	StartedAt time.Time
	// Text is the rendered HTML-fragment report, never empty.
	Text    string
	Records []model.ChangeRecord
	// Logs holds one entry per source, in source order.
	Logs []model.RunLog
	// Silent is set when nothing in the report is worth a notification.
	Silent bool
}

// Counts summarizes the records of the report.
func (r *Report) Counts() detect.Counts {
	return detect.Summarize(r.Records)
}

// Runner executes runs against a fixed set of adapters and a store.
type Runner struct {
	adapters map[model.Source]source.Adapter
	store    storage.Storage
	log      *slog.Logger
	now      func() time.Time
	baseline bool
	dryRun   bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock overrides the clock used for ObservedAt and the report time.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithBaseline makes the first run of a keyword on a source record its
// items silently instead of reporting all of them as new.
func WithBaseline(on bool) Option {
	return func(r *Runner) { r.baseline = on }
}

// WithDryRun skips every write to the store.
func WithDryRun(on bool) Option {
	return func(r *Runner) { r.dryRun = on }
}

// New creates a Runner. Later adapters replace earlier ones with the same name.
func New(adapters []source.Adapter, store storage.Storage, log *slog.Logger, opts ...Option) *Runner {
	r := &Runner{
		adapters: make(map[model.Source]source.Adapter, len(adapters)),
		store:    store,
		log:      log,
		now:      time.Now,
	}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type staged struct {
	key  model.SnapshotKey
	snap model.Snapshot
}

// Run visits every keyword on every enabled source, keyword order first.
// A failing source is logged and skipped; the run carries on with the
// remaining pairs. Snapshots are written only after every pair is done.
// The only error returned is ctx's, in which case nothing is written;
// cancellation after writing has started does not interrupt it.
func (r *Runner) Run(ctx context.Context, keywords []model.Keyword) (*Report, error) {
	startedAt := r.now()

	var order []model.Source
	logs := make(map[model.Source]*model.RunLog)
	for _, src := range model.Sources {
		if _, ok := r.adapters[src]; ok {
			order = append(order, src)
			logs[src] = &model.RunLog{Source: src, StartedAt: startedAt}
		}
	}

	var records []model.ChangeRecord
	var pending []staged
	visited := make(map[model.SnapshotKey]bool)

	for _, kw := range keywords {
		for _, src := range order {
			if !kw.Enabled(src) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("run interrupted: %w", err)
			}
			key := model.SnapshotKey{Keyword: kw.Query, Source: src}
			if visited[key] {
				r.log.Debug("skipping duplicate keyword", "source", src, "keyword", kw.Query)
				continue
			}
			visited[key] = true

			recs, snap, ok := r.runPair(ctx, key, kw, logs[src])
			if !ok {
				continue
			}
			records = append(records, recs...)
			pending = append(pending, staged{key: key, snap: snap})
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run interrupted: %w", err)
	}

	// Once writing starts it is finished, so the store never holds part of a run.
	persistCtx := context.WithoutCancel(ctx)
	if !r.dryRun {
		for _, p := range pending {
			if err := r.store.PutSnapshot(persistCtx, p.key, p.snap); err != nil {
				r.log.Error("store snapshot", "source", p.key.Source, "keyword", p.key.Keyword, "error", err)
				logs[p.key.Source].Errors++
			}
		}
	}

	report := &Report{StartedAt: startedAt, Records: records}
	for _, src := range order {
		l := logs[src]
		if !r.dryRun {
			if err := r.store.RecordRun(persistCtx, l); err != nil {
				r.log.Error("record run", "source", src, "error", err)
			}
		}
		report.Logs = append(report.Logs, *l)
	}

	report.Silent = report.Counts().Reportable() == 0
	report.Text = render.Header(startedAt, report.Logs) + render.Render(records)

	r.log.Info("run finished",
		"count", len(records),
		"reportable", report.Counts().Reportable(),
		"dry_run", r.dryRun,
	)
	return report, nil
}

// runPair handles one keyword on one source. It reports false when the
// pair has to be skipped, leaving its snapshot as it was.
func (r *Runner) runPair(ctx context.Context, key model.SnapshotKey, kw model.Keyword, run *model.RunLog) ([]model.ChangeRecord, model.Snapshot, bool) {
	raws, err := r.adapters[key.Source].Fetch(ctx, kw.Query)
	if err != nil {
		r.log.Warn("fetch failed, skipping", "source", key.Source, "keyword", kw.Query, "error", err)
		run.Errors++
		return nil, nil, false
	}
	run.Pages++

	items, errs := normalize.All(key.Source, raws, r.now())
	for _, err := range errs {
		r.log.Warn("skipping listing", "source", key.Source, "keyword", kw.Query, "error", err)
	}
	items = filter.Items(items, kw.Rules)

	prior, found, err := r.store.GetSnapshot(ctx, key)
	if err != nil {
		r.log.Error("load snapshot", "source", key.Source, "keyword", kw.Query, "error", err)
		run.Errors++
		return nil, nil, false
	}

	var recs []model.ChangeRecord
	var snap model.Snapshot
	if r.baseline && !found {
		r.log.Info("recording baseline", "source", key.Source, "keyword", kw.Query, "count", len(items))
		recs, snap = detect.Baseline(key, items)
	} else {
		recs, snap = detect.Detect(key, items, prior)
	}

	c := detect.Summarize(recs)
	run.Items += len(recs)
	run.New += c.New
	run.Discounted += c.PriceDropped
	run.StatusChanged += c.StatusChanged

	r.log.Debug("pair done",
		"source", key.Source,
		"keyword", kw.Query,
		"count", len(recs),
		"new", c.New,
		"discounted", c.PriceDropped,
		"status_changed", c.StatusChanged,
	)
	return recs, snap, true
}

// Watch calls fn immediately and then every interval until ctx is done.
func Watch(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	fn(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
