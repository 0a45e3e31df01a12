package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openshelf/catkey/internal/model"
	"github.com/openshelf/catkey/internal/notify"
	"github.com/openshelf/catkey/internal/report"
)

// CandidateSource produces the candidates for one bestseller list.
type CandidateSource interface {
	Fetch(ctx context.Context, listName string) ([]model.Candidate, error)
}

// KeyResolver resolves one ISBN against the catalog.
type KeyResolver interface {
	Resolve(ctx context.Context, isbn string) model.Resolution
}

// KeyCache looks up record keys from previous runs. LastResolved
// returns an empty key when the ISBN has no cached resolution.
type KeyCache interface {
	LastResolved(ctx context.Context, isbn string) (string, error)
}

// ResolveStep fetches every configured list and resolves each candidate
// against the catalog, strictly in sequence over a single browser
// session. A list that fails to fetch is logged and skipped; the
// remaining lists still run. A paced delay between resolutions keeps
// the catalog from rate-limiting the session.
type ResolveStep struct {
	source   CandidateSource
	resolver KeyResolver
	cache    KeyCache
	delay    time.Duration
	logger   *slog.Logger
}

// ResolveStepOption configures a ResolveStep.
type ResolveStepOption func(*ResolveStep)

// WithKeyCache enables cache lookups before each catalog search.
func WithKeyCache(cache KeyCache) ResolveStepOption {
	return func(s *ResolveStep) {
		s.cache = cache
	}
}

// WithResolveDelay sets the pause between consecutive resolutions.
func WithResolveDelay(delay time.Duration) ResolveStepOption {
	return func(s *ResolveStep) {
		s.delay = delay
	}
}

// WithResolveLogger sets a custom logger for the resolve step.
func WithResolveLogger(logger *slog.Logger) ResolveStepOption {
	return func(s *ResolveStep) {
		s.logger = logger
	}
}

// NewResolveStep creates the resolution step.
func NewResolveStep(source CandidateSource, resolver KeyResolver, opts ...ResolveStepOption) *ResolveStep {
	s := &ResolveStep{
		source:   source,
		resolver: resolver,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ResolveStep) Name() string {
	return "resolve"
}

// Do fetches and resolves every candidate, recording each outcome on
// the run. FinishedAt is stamped even on early cancellation so partial
// results carry a valid end time.
func (s *ResolveStep) Do(ctx context.Context, run *model.Run) error {
	defer func() { run.FinishedAt = time.Now() }()

	for _, list := range run.Lists {
		if err := ctx.Err(); err != nil {
			return err
		}

		candidates, err := s.source.Fetch(ctx, list)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("failed to fetch list", "list", list, "error", err)
			continue
		}
		s.logger.Info("fetched list", "list", list, "candidates", len(candidates))

		for _, c := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}

			res := s.resolveOne(ctx, c)
			run.Record(c, res)

			if res.IsResolved() {
				s.logger.Info("resolved", "list", list, "isbn", c.ISBN, "key", res.Key)
			} else {
				s.logger.Warn("not resolved", "list", list, "isbn", c.ISBN,
					"title", c.Title, "reason", string(res.Reason))
			}

			if s.delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.delay):
				}
			}
		}
	}

	return nil
}

// resolveOne consults the cache before driving the browser.
func (s *ResolveStep) resolveOne(ctx context.Context, c model.Candidate) model.Resolution {
	if s.cache != nil {
		key, err := s.cache.LastResolved(ctx, c.ISBN)
		if err != nil {
			s.logger.Debug("cache lookup failed", "isbn", c.ISBN, "error", err)
		} else if key != "" {
			s.logger.Debug("cache hit", "isbn", c.ISBN, "key", key)
			return model.Resolved(key)
		}
	}
	return s.resolver.Resolve(ctx, c.ISBN)
}

// ArtifactExporter writes the run's artifacts to disk.
type ArtifactExporter interface {
	Export(run *model.Run) error
}

// ExportStep writes the found and not-found artifacts.
type ExportStep struct {
	exporter ArtifactExporter
}

// NewExportStep creates the export step.
func NewExportStep(exporter ArtifactExporter) *ExportStep {
	return &ExportStep{exporter: exporter}
}

// Name returns the step name.
func (s *ExportStep) Name() string {
	return "export"
}

// Do writes the artifacts and records their paths on the run.
func (s *ExportStep) Do(_ context.Context, run *model.Run) error {
	return s.exporter.Export(run)
}

// Notifier delivers a completion notification.
type Notifier interface {
	Send(msg notify.Message) error
}

// NotifyStep emails the run summary with the exported artifacts
// attached. The step is skipped when the run produced no artifacts;
// there is nothing to deliver.
type NotifyStep struct {
	notifier Notifier
	logger   *slog.Logger
}

// NotifyStepOption configures a NotifyStep.
type NotifyStepOption func(*NotifyStep)

// WithNotifyLogger sets a custom logger for the notify step.
func WithNotifyLogger(logger *slog.Logger) NotifyStepOption {
	return func(s *NotifyStep) {
		s.logger = logger
	}
}

// NewNotifyStep creates the notification step.
func NewNotifyStep(notifier Notifier, opts ...NotifyStepOption) *NotifyStep {
	s := &NotifyStep{
		notifier: notifier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *NotifyStep) Name() string {
	return "notify"
}

// Do sends the notification and marks the run notified on success.
func (s *NotifyStep) Do(_ context.Context, run *model.Run) error {
	if len(run.Artifacts) == 0 {
		s.logger.Info("no artifacts produced, skipping notification", "run", run.ID)
		return nil
	}

	msg := notify.Message{
		Subject:     fmt.Sprintf("Bestseller Record Keys - %s", run.FinishedAt.Format("2006-01-02")),
		Body:        report.Summary(run),
		Attachments: run.Artifacts,
	}
	if err := s.notifier.Send(msg); err != nil {
		return fmt.Errorf("deliver notification: %w", err)
	}

	run.Notified = true
	return nil
}

// RunStore persists a completed run.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
}

// PersistStep saves the run and its outcomes to the history database.
// It runs last so the stored row reflects the notification state.
type PersistStep struct {
	store RunStore
}

// NewPersistStep creates the persistence step.
func NewPersistStep(store RunStore) *PersistStep {
	return &PersistStep{store: store}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do stores the run.
func (s *PersistStep) Do(ctx context.Context, run *model.Run) error {
	return s.store.SaveRun(ctx, run)
}
