// Package pipeline runs listings through filters, enrichment, the financial
// models, strategy arbitration and scoring, and re-ranks the results.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/propeval/internal/cache"
	"github.com/kalambet/propeval/internal/filter"
	"github.com/kalambet/propeval/internal/finance"
	"github.com/kalambet/propeval/internal/listing"
	"github.com/kalambet/propeval/internal/metrics"
	"github.com/kalambet/propeval/internal/providers"
	"github.com/kalambet/propeval/internal/scoring"
	"github.com/kalambet/propeval/internal/storage"
	"github.com/kalambet/propeval/internal/strategy"
	"github.com/kalambet/propeval/internal/vision"
)

// ErrListingNotFound is returned for an unknown listing id. It matches
// storage.ErrNotFound with errors.Is.
var ErrListingNotFound = fmt.Errorf("listing %w", storage.ErrNotFound)

// ErrAnalysisNotFound is returned when a listing has not been analysed yet.
var ErrAnalysisNotFound = fmt.Errorf("analysis %w", storage.ErrNotFound)

const (
	ModeStandard   = "standard"
	ModeOpenAIDeep = "openai_deep"

	TaskAnalyze        = "analyze"
	TaskAnalyzeListing = "analyze_listing"
)

// Store is the persistence the pipeline needs. *storage.Store satisfies it.
type Store interface {
	GetListing(ctx context.Context, id int64) (*listing.Listing, error)
	ListingsForAnalysis(ctx context.Context) ([]listing.Listing, error)
	SetFilterResult(ctx context.Context, id int64, status listing.FilterStatus, reason string) error
	SetAnalysisStatus(ctx context.Context, id int64, status listing.AnalysisStatus) error
	GetAnalysis(ctx context.Context, listingID int64) (*listing.Analysis, error)
	SaveAnalysis(ctx context.Context, a *listing.Analysis) error
	DeleteAnalysis(ctx context.Context, listingID int64) error
	ClearScore(ctx context.Context, listingID int64) error
	Rerank(ctx context.Context) (int, error)
}

// Providers are the external collaborators. Vision is required; a nil
// provider otherwise means the estimator's own fallback is used.
type Providers struct {
	Vision    vision.Analyzer
	Zoning    providers.ZoningProvider
	Rates     providers.RatesProvider
	Tenancy   providers.TenancyProvider
	Insurance providers.InsuranceProvider
}

type Config struct {
	Filters      filter.Config
	AnalysisMode string
	Strategy     strategy.Options
	MaxPhotos    int

	// VisionDelay is slept between listings when the vision provider is
	// rate limited.
	VisionDelay time.Duration

	// Parallel runs the independent provider lookups concurrently.
	Parallel bool
}

// Outcome is the result of processing one listing.
type Outcome struct {
	ListingID  int64                `json:"listing_id"`
	ExternalID string               `json:"external_id"`
	Status     string               `json:"status"`
	Filter     listing.FilterStatus `json:"filter_status"`
	Reason     string               `json:"reason,omitempty"`
	Score      *float64             `json:"composite_score,omitempty"`
	Verdict    listing.Verdict      `json:"verdict,omitempty"`
	Strategy   string               `json:"strategy,omitempty"`
	Error      string               `json:"error,omitempty"`
}

const (
	OutcomeCompleted = "completed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// BatchSummary counts the outcomes of a run.
type BatchSummary struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Rejected  int `json:"rejected"`
	Failed    int `json:"failed"`
	Ranked    int `json:"ranked"`
}

func (b *BatchSummary) add(o Outcome) {
	b.Processed++
	switch o.Status {
	case OutcomeCompleted:
		b.Completed++
	case OutcomeRejected:
		b.Rejected++
	case OutcomeFailed:
		b.Failed++
	}
}

// StageError is an unexpected failure inside one stage of one listing.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Pipeline struct {
	store     Store
	chain     *filter.Chain
	providers Providers
	cfg       Config

	visionCache *cache.Cache[listing.ImageAnalysis]
	zoningCache *cache.Cache[providers.Zoning]

	status  *Status
	metrics *metrics.Metrics
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration)

	shared    cache.Backend
	sharedTTL time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records pipeline activity on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithSharedCache adds a shared backend behind the record-bound caches.
func WithSharedCache(b cache.Backend, ttl time.Duration) Option {
	return func(p *Pipeline) {
		p.shared = b
		p.sharedTTL = ttl
	}
}

// WithStatus reports progress on st instead of a private Status.
func WithStatus(st *Status) Option {
	return func(p *Pipeline) {
		if st != nil {
			p.status = st
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithSleep replaces the rate-limit sleep. Tests use it to avoid waiting.
func WithSleep(fn func(ctx context.Context, d time.Duration)) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.sleep = fn
		}
	}
}

func New(store Store, prov Providers, cfg Config, opts ...Option) *Pipeline {
	if prov.Vision == nil {
		prov.Vision = vision.Mock{}
	}
	if cfg.MaxPhotos <= 0 {
		cfg.MaxPhotos = vision.MaxPhotos
	}
	if cfg.AnalysisMode == "" {
		cfg.AnalysisMode = ModeStandard
	}
	p := &Pipeline{
		store:     store,
		chain:     filter.NewChain(cfg.Filters),
		providers: prov,
		cfg:       cfg,
		status:    NewStatus(),
		logger:    slog.Default(),
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(p)
	}
	var observer cache.Observer
	if p.metrics != nil {
		observer = p.metrics
	}
	p.visionCache = cache.New[listing.ImageAnalysis]("vision", p.shared, p.sharedTTL, observer).
		Keep(func(img *listing.ImageAnalysis) bool { return !vision.IsFallback(img) })
	p.zoningCache = cache.New[providers.Zoning]("zoning", p.shared, p.sharedTTL, observer)
	return p
}

// Status returns the run status the pipeline reports to.
func (p *Pipeline) Status() *Status {
	return p.status
}

func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// AnalyzeListing processes a single listing by id and re-ranks. A rejected
// or failed listing may have held a rank, so every outcome re-ranks. Failures inside the pipeline are reported in the Outcome; the
// error is only for an unknown listing or an unusable store.
func (p *Pipeline) AnalyzeListing(ctx context.Context, id int64) (Outcome, error) {
	l, err := p.store.GetListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return Outcome{}, fmt.Errorf("%w: %d", ErrListingNotFound, id)
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("loading listing %d: %w", id, err)
	}

	p.status.Start(TaskAnalyzeListing, "Analyzing: "+l.Label(), 1)
	out := p.process(ctx, l)
	p.status.Progress("Analyzing: "+l.Label(), 1, 1)

	var summary BatchSummary
	summary.add(out)
	n, err := p.store.Rerank(ctx)
	if err != nil {
		p.status.Fail(fmt.Errorf("re-ranking: %w", err))
		return out, nil
	}
	summary.Ranked = n
	p.status.Finish(summary)
	return out, nil
}

// AnalyzePending runs every pending or failed listing, one at a time, then
// re-ranks all scored listings. Per-listing failures only show up in the
// summary and on the listings themselves.
func (p *Pipeline) AnalyzePending(ctx context.Context) (BatchSummary, error) {
	start := time.Now()
	defer p.metrics.ObserveBatch(start)

	var summary BatchSummary
	pending, err := p.store.ListingsForAnalysis(ctx)
	if err != nil {
		err = fmt.Errorf("listing pending work: %w", err)
		p.status.Fail(err)
		return summary, err
	}

	total := len(pending)
	p.logger.Info("pipeline: analyzing pending listings", "count", total)
	p.status.Start(TaskAnalyze, fmt.Sprintf("Analyzing %d listing(s)...", total), total)

	for i := range pending {
		if err := ctx.Err(); err != nil {
			p.status.Fail(err)
			return summary, err
		}
		l := &pending[i]
		p.status.Progress("Analyzing: "+l.Label(), i+1, total)

		out := p.process(ctx, l)
		summary.add(out)

		if p.rateLimited() && out.Filter == listing.FilterPassed && i < total-1 && p.cfg.VisionDelay > 0 {
			p.logger.Info("pipeline: rate limit pause before next listing", "delay", p.cfg.VisionDelay)
			p.sleep(ctx, p.cfg.VisionDelay)
		}
	}

	p.status.Progress("Re-ranking listings...", total, total)
	n, err := p.store.Rerank(ctx)
	if err != nil {
		err = fmt.Errorf("re-ranking: %w", err)
		p.status.Fail(err)
		return summary, err
	}
	summary.Ranked = n
	p.logger.Info("pipeline: batch complete",
		"processed", summary.Processed,
		"completed", summary.Completed,
		"rejected", summary.Rejected,
		"failed", summary.Failed,
		"ranked", n,
	)
	p.status.Finish(summary)
	return summary, nil
}

func (p *Pipeline) rateLimited() bool {
	return p.providers.Vision.Name() == "openai"
}

// process runs one listing through every stage. It never panics and never
// returns an error: a failing stage leaves the listing marked failed.
func (p *Pipeline) process(ctx context.Context, l *listing.Listing) (out Outcome) {
	out = Outcome{ListingID: l.ID, ExternalID: l.ListingID}
	stage := "start"

	defer func() {
		if r := recover(); r != nil {
			p.fail(ctx, l, &out, &StageError{Stage: stage, Err: fmt.Errorf("panic: %v", r)})
		}
	}()

	p.logger.Info("pipeline: analyzing listing", "listing_id", l.ListingID, "address", l.Address)
	if err := p.store.SetAnalysisStatus(ctx, l.ID, listing.AnalysisInProgress); err != nil {
		p.fail(ctx, l, &out, &StageError{Stage: stage, Err: err})
		return out
	}

	stage = "filter"
	began := time.Now()
	verdict := p.chain.Run(l)
	p.metrics.ObserveStage(stage, began)
	if verdict.Rejected() {
		if err := p.reject(ctx, l, verdict.Reason); err != nil {
			p.fail(ctx, l, &out, &StageError{Stage: stage, Err: err})
			return out
		}
		out.Status = OutcomeRejected
		out.Filter = listing.FilterRejected
		out.Reason = verdict.Reason
		p.metrics.ListingProcessed(OutcomeRejected)
		p.logger.Info("pipeline: listing rejected", "listing_id", l.ListingID, "filter", verdict.Filter, "reason", verdict.Reason)
		return out
	}
	if err := p.store.SetFilterResult(ctx, l.ID, listing.FilterPassed, ""); err != nil {
		p.fail(ctx, l, &out, &StageError{Stage: stage, Err: err})
		return out
	}
	out.Filter = listing.FilterPassed

	prev, err := p.store.GetAnalysis(ctx, l.ID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		p.fail(ctx, l, &out, &StageError{Stage: stage, Err: fmt.Errorf("loading previous analysis: %w", err)})
		return out
	}

	a := &listing.Analysis{ListingID: l.ID}
	if prev != nil {
		a.ID = prev.ID
		a.CreatedAt = prev.CreatedAt
	}
	a.Population = verdict.Population
	a.DemandProfile = filter.DemandProfile(l)

	stage = "enrich"
	began = time.Now()
	if err := p.enrich(ctx, l, prev, a); err != nil {
		p.fail(ctx, l, &out, &StageError{Stage: stage, Err: err})
		return out
	}
	p.metrics.ObserveStage(stage, began)

	stage = "financials"
	began = time.Now()
	price, _ := l.EffectivePrice()
	in := finance.FromAnalysis(price, a)
	a.Flip = finance.Flip(in)
	a.Rental = finance.Rental(in)
	a.Strategy = strategy.Decide(a.Flip, a.Rental, a.Subdivision, p.cfg.Strategy)
	p.metrics.ObserveStage(stage, began)

	stage = "score"
	began = time.Now()
	res := scoring.Score(a)
	a.CompositeScore = &res.Composite
	a.ComponentScores = &res.Components
	a.Verdict = res.Verdict
	a.Flags = res.Flags
	a.NextSteps = res.NextSteps
	a.ConfidenceLevel = res.ConfidenceLevel
	p.metrics.ObserveStage(stage, began)

	stage = "store"
	if err := p.store.SaveAnalysis(ctx, a); err != nil {
		p.fail(ctx, l, &out, &StageError{Stage: stage, Err: err})
		return out
	}
	if err := p.store.SetAnalysisStatus(ctx, l.ID, listing.AnalysisCompleted); err != nil {
		p.fail(ctx, l, &out, &StageError{Stage: stage, Err: err})
		return out
	}

	out.Status = OutcomeCompleted
	out.Score = a.CompositeScore
	out.Verdict = a.Verdict
	out.Strategy = a.Strategy.RecommendedStrategy
	p.metrics.ListingProcessed(OutcomeCompleted)
	p.logger.Info("pipeline: listing scored",
		"listing_id", l.ListingID,
		"score", res.Composite,
		"verdict", res.Verdict,
		"strategy", out.Strategy,
	)
	return out
}

// reject records a filter rejection. A listing that was scored before and
// is now rejected loses its analysis so it drops out of the ranking.
func (p *Pipeline) reject(ctx context.Context, l *listing.Listing, reason string) error {
	if err := p.store.SetFilterResult(ctx, l.ID, listing.FilterRejected, reason); err != nil {
		return err
	}
	if err := p.store.DeleteAnalysis(ctx, l.ID); err != nil {
		return err
	}
	return p.store.SetAnalysisStatus(ctx, l.ID, listing.AnalysisCompleted)
}

func (p *Pipeline) fail(ctx context.Context, l *listing.Listing, out *Outcome, err error) {
	out.Status = OutcomeFailed
	out.Error = err.Error()
	p.metrics.ListingProcessed(OutcomeFailed)
	p.logger.Error("pipeline: listing failed", "listing_id", l.ListingID, "error", err)
	if serr := p.store.SetAnalysisStatus(ctx, l.ID, listing.AnalysisFailed); serr != nil {
		p.logger.Error("pipeline: recording failure", "listing_id", l.ListingID, "error", serr)
	}
	// A score from an earlier run must not keep a failed listing ranked.
	if serr := p.store.ClearScore(ctx, l.ID); serr != nil {
		p.logger.Error("pipeline: clearing stale score", "listing_id", l.ListingID, "error", serr)
	}
}
