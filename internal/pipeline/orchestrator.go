package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/portfolio-pipeline/internal/fallback"
	"github.com/jonathan/portfolio-pipeline/internal/fileval"
	"github.com/jonathan/portfolio-pipeline/internal/recovery"
	"github.com/jonathan/portfolio-pipeline/internal/sanitize"
	"github.com/jonathan/portfolio-pipeline/internal/selection"
	"github.com/jonathan/portfolio-pipeline/internal/types"
)

// Default per-call timeouts for upstream services
const (
	DefaultExtractionTimeout = 60 * time.Second
	DefaultAnalysisTimeout   = 90 * time.Second
)

// Config wires the orchestrator. Extractor and Analyzer are required; every other collaborator
// has a default or is optional.
type Config struct {
	Extractor   Extractor
	Analyzer    AnalysisEngine
	Checker     FileIntegrityChecker
	Content     ContentValidator
	Limiter     RateLimiter
	Selector    ComponentSelector
	Persistence PersistenceGateway
	Logger      *slog.Logger

	// ExtractionRetry and AnalysisRetry default to recovery.OCRConfig and recovery.AIConfig
	ExtractionRetry   *recovery.Config
	AnalysisRetry     *recovery.Config
	ExtractionTimeout time.Duration
	AnalysisTimeout   time.Duration

	// OnRetry observes every retried extraction or analysis attempt
	OnRetry func(recovery.RetryEvent)
	// OnResult observes every finished run, including failures
	OnResult func(*Result)
}

// Orchestrator runs uploads through the pipeline. It is safe for concurrent use; runs share no
// mutable state other than the observer list.
type Orchestrator struct {
	extractor   Extractor
	analyzer    AnalysisEngine
	checker     FileIntegrityChecker
	content     ContentValidator
	limiter     RateLimiter
	selector    ComponentSelector
	persistence PersistenceGateway
	logger      *slog.Logger
	onResult    func(*Result)

	extractRetry *recovery.Handler
	analyzeRetry *recovery.Handler

	mu        sync.RWMutex
	observers []ProgressSink

	now   func() time.Time
	newID func() string
}

// New creates an Orchestrator
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Extractor == nil {
		return nil, &Error{Message: "extractor is required"}
	}
	if cfg.Analyzer == nil {
		return nil, &Error{Message: "analysis engine is required"}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		extractor:   cfg.Extractor,
		analyzer:    cfg.Analyzer,
		checker:     cfg.Checker,
		content:     cfg.Content,
		limiter:     cfg.Limiter,
		selector:    cfg.Selector,
		persistence: cfg.Persistence,
		logger:      logger,
		onResult:    cfg.OnResult,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	if o.checker == nil {
		o.checker = fileval.NewChecker()
	}
	if o.content == nil {
		o.content = sanitize.New(nil, sanitize.DefaultDuplicateWindow, logger)
	}
	if o.selector == nil {
		o.selector = selection.SelectComponents
	}

	o.extractRetry = newRetryHandler("extraction", cfg.ExtractionRetry, recovery.OCRConfig(),
		cfg.ExtractionTimeout, DefaultExtractionTimeout, cfg.OnRetry, logger)
	o.analyzeRetry = newRetryHandler("analysis", cfg.AnalysisRetry, recovery.AIConfig(),
		cfg.AnalysisTimeout, DefaultAnalysisTimeout, cfg.OnRetry, logger)
	return o, nil
}

func newRetryHandler(name string, cfg *recovery.Config, preset recovery.Config, timeout, defaultTimeout time.Duration,
	onRetry func(recovery.RetryEvent), logger *slog.Logger) *recovery.Handler {
	c := preset
	if cfg != nil {
		c = *cfg
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = timeout
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = defaultTimeout
	}
	h := recovery.NewHandler(name, c, logger)
	h.OnRetry = onRetry
	return h
}

// AddObserver registers a sink for the events of every run. Sinks are called in registration order.
func (o *Orchestrator) AddObserver(sink ProgressSink) {
	if sink == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, sink)
}

// Process runs one upload through every stage. Validation failures end the run with a
// machine-readable code; upstream failures in extraction, analysis and selection are absorbed by
// retry and fallback so the run still succeeds.
func (o *Orchestrator) Process(ctx context.Context, req Request) (res *Result) {
	r := o.newRun(ctx, req)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("pipeline panic", "panic", rec, "stack", string(debug.Stack()))
			res = r.fail(CodeProcessingError, "An unexpected error occurred during processing")
		}
		if o.onResult != nil {
			r.safely("result observer", func() { o.onResult(res) })
		}
	}()
	return r.execute(req)
}

func (o *Orchestrator) newRun(ctx context.Context, req Request) *run {
	o.mu.RLock()
	sinks := make([]ProgressSink, 0, len(o.observers)+1)
	sinks = append(sinks, o.observers...)
	o.mu.RUnlock()
	if req.Progress != nil {
		sinks = append(sinks, req.Progress)
	}

	id := o.newID()
	return &run{
		o:        o,
		ctx:      ctx,
		id:       id,
		start:    o.now(),
		sinks:    sinks,
		logger:   o.logger.With("submission_id", id),
		options:  types.DefaultOptions(),
		warnings: []string{},
	}
}

// run holds the state of a single Process call
type run struct {
	o      *Orchestrator
	ctx    context.Context
	id     string
	start  time.Time
	sinks  []ProgressSink
	logger *slog.Logger

	persisted   bool
	lastPercent int
	current     Stage
	stageStart  time.Time
	timings     []StageTiming

	options     types.Options
	fingerprint string
	warnings    []string
	fallbacks   []Stage
}

func (r *run) execute(req Request) *Result {
	o := r.o

	if req.ClientID != "" && o.limiter != nil {
		decision := o.limiter.Check(r.ctx, req.ClientID)
		if !decision.Allowed {
			// denied before any stage starts: no progress event
			message := fmt.Sprintf("Rate limit exceeded. Please try again in %d seconds.",
				int(math.Ceil(decision.RetryAfter.Seconds())))
			r.logger.Info("pipeline run rejected", "code", CodeRateLimited, "client", req.ClientID)
			return &Result{
				Success:        false,
				ErrorCode:      CodeRateLimited,
				Error:          message,
				SubmissionID:   r.id,
				RetryAfter:     decision.RetryAfter,
				ProcessingTime: o.now().Sub(r.start),
			}
		}
	}

	name := sanitize.SanitizeFilename(req.Filename)
	if !name.IsSafe {
		return r.fail(name.Code.Upper(), name.Message)
	}
	r.warn(name.Warnings...)

	opts := sanitize.ValidateOptions(req.Options)
	r.options = opts.Options
	r.warn(opts.Warnings...)

	// Stage 1: validation
	r.emit(StageValidation, 5, "Validating file...")
	check := o.checker.Check(req.Content, name.Value, req.ContentType)
	if !check.Valid {
		return r.fail(check.Code.Upper(), check.Error)
	}
	content := o.content.ValidateContent(r.ctx, req.Content, name.Value, req.ContentType, req.ClientID)
	if !content.Valid {
		return r.fail(content.Code.Upper(), content.Message)
	}
	r.fingerprint = content.Fingerprint
	r.warn(content.Warnings...)
	r.emit(StageValidation, 10, "File validation complete")

	r.created(Submission{
		ID:          r.id,
		ClientID:    req.ClientID,
		Filename:    name.Value,
		FileType:    check.Type,
		Size:        check.Size,
		Fingerprint: content.Fingerprint,
		CreatedAt:   r.start,
	})

	// Stage 2: extraction
	r.emit(StageExtraction, 15, "Extracting text from resume...")
	extraction := recovery.Execute(r.ctx, o.extractRetry, func(ctx context.Context) (types.Extraction, error) {
		return o.extractor.Extract(ctx, req.Content, check.Type)
	}, &recovery.Fallback[types.Extraction]{Factory: fallback.EmptyExtraction})
	if extraction.UsedFallback {
		r.degraded(StageExtraction, extraction.Attempts, extraction.Category, extraction.LastError)
		r.emit(StageExtraction, 35, "Text extraction unavailable, using fallback")
	} else {
		r.emit(StageExtraction, 35, "Text extraction complete")
	}
	if r.ctx.Err() != nil {
		return r.fail(CodeProcessingError, "Processing was cancelled")
	}

	// Stage 3: analysis
	r.emit(StageAnalysis, 40, "Analyzing professional profile...")
	text := extraction.Value.Text
	profile := r.analyze(text)
	if r.ctx.Err() != nil {
		return r.fail(CodeProcessingError, "Processing was cancelled")
	}

	// Stage 4: component selection
	r.emit(StageComponentSelection, 70, "Selecting UI components...")
	components, err := r.selectComponents(profile)
	if err != nil {
		r.logger.Warn("component selection failed, using fallback components", "category", profile.Category, "error", err)
		r.markFallback(StageComponentSelection, "Component selection failed, using default layout")
		components = fallback.Components(profile.Category, profile)
	}
	r.emit(StageComponentSelection, 85, "Component selection complete")

	// Stage 5: layout
	r.emit(StageLayoutGeneration, 90, "Generating layout...")
	res := &Result{
		Success:      true,
		SubmissionID: r.id,
		Fingerprint:  r.fingerprint,
		Profile:      profile,
		Components:   components,
		Theme:        resolveTheme(r.options.ThemePreference, profile.Category),
		Options:      r.options,
		Warnings:     r.warnings,
		Fallbacks:    r.fallbacks,
	}
	res.ProcessingTime = r.o.now().Sub(r.start)
	if r.persisted {
		r.safely("persistence", func() {
			if err := o.persistence.Completed(r.persistCtx(), r.id, res); err != nil {
				r.logger.Warn("failed to persist completed run", "error", err)
			}
		})
	}
	r.emit(StageComplete, 100, "Portfolio generation complete")
	res.Timings = r.timings
	return res
}

func (r *run) analyze(text string) *types.CandidateProfile {
	defaultProfile := func() *types.CandidateProfile {
		p := fallback.DefaultProfile()
		p.ExtractedText = text
		return p
	}

	outcome := recovery.Execute(r.ctx, r.o.analyzeRetry, func(ctx context.Context) (*types.CandidateProfile, error) {
		p, err := r.o.analyzer.Analyze(ctx, text, r.options)
		if err == nil && p == nil {
			err = recovery.Permanent("analysis returned no profile", nil)
		}
		return p, err
	}, &recovery.Fallback[*types.CandidateProfile]{Factory: defaultProfile})

	profile := outcome.Value
	profile.Normalize()

	if outcome.UsedFallback {
		r.degraded(StageAnalysis, outcome.Attempts, outcome.Category, outcome.LastError)
		r.emit(StageAnalysis, 65, "Profile analysis unavailable, using default profile")
	} else {
		r.emit(StageAnalysis, 65, "Profile analysis complete")
	}
	return profile
}

// selectComponents runs the selector and validates its output. A panicking selector is an error.
func (r *run) selectComponents(profile *types.CandidateProfile) (list []types.ComponentConfig, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("component selector panicked: %v", rec)
		}
	}()
	list, err = r.o.selector(profile, r.options)
	if err != nil {
		return nil, err
	}
	if err := types.ValidateComponents(list); err != nil {
		return nil, err
	}
	return list, nil
}

// resolveTheme honors an explicit preference and otherwise maps the category. Non-enumerated
// preferences pass through unchanged; sanitized options never carry one.
func resolveTheme(preference string, category types.ProfessionalCategory) types.ThemePalette {
	if preference == "" || preference == types.ThemeAuto {
		return fallback.Theme(category)
	}
	return types.ThemePalette(preference)
}

func (r *run) emit(stage Stage, percent int, message string) {
	now := r.o.now()
	if stage != r.current {
		if r.current != "" && r.current != StageComplete && r.current != StageError {
			r.timings = append(r.timings, StageTiming{Stage: r.current, Duration: now.Sub(r.stageStart)})
		}
		r.current = stage
		r.stageStart = now
	}

	p := newProgress(r.id, stage, percent, message, now)
	r.lastPercent = p.Percent

	for _, sink := range r.sinks {
		r.safely("progress sink", func() { sink.OnEvent(p) })
	}

	if r.persisted {
		r.safely("persistence", func() {
			if err := r.o.persistence.StageUpdated(r.persistCtx(), r.id, p); err != nil {
				r.logger.Warn("failed to persist stage update", "stage", stage, "error", err)
			}
		})
	}
}

func (r *run) created(s Submission) {
	if r.o.persistence == nil {
		return
	}
	r.safely("persistence", func() {
		if err := r.o.persistence.Created(r.persistCtx(), s); err != nil {
			r.logger.Warn("failed to persist submission, continuing without persistence", "error", err)
			return
		}
		r.persisted = true
	})
}

func (r *run) fail(code, message string) *Result {
	r.logger.Info("pipeline run failed", "code", code, "message", message)
	r.emit(StageError, r.lastPercent, message)
	if r.persisted {
		r.safely("persistence", func() {
			if err := r.o.persistence.Failed(r.persistCtx(), r.id, code, message); err != nil {
				r.logger.Warn("failed to persist run failure", "error", err)
			}
		})
	}
	return &Result{
		Success:        false,
		ErrorCode:      code,
		Error:          message,
		SubmissionID:   r.id,
		Fingerprint:    r.fingerprint,
		Options:        r.options,
		ProcessingTime: r.o.now().Sub(r.start),
		Warnings:       r.warnings,
		Fallbacks:      r.fallbacks,
		Timings:        r.timings,
	}
}

func (r *run) degraded(stage Stage, attempts int, category recovery.Category, err error) {
	r.logger.Warn("stage failed after retries, using fallback",
		"stage", stage, "attempts", attempts, "category", category, "error", err)
	r.markFallback(stage, fmt.Sprintf("%s failed after %d attempt(s), using fallback", stage, attempts))
}

func (r *run) markFallback(stage Stage, warning string) {
	r.fallbacks = append(r.fallbacks, stage)
	r.warn(warning)
}

func (r *run) warn(warnings ...string) {
	r.warnings = append(r.warnings, warnings...)
}

// persistCtx keeps bookkeeping alive when the request is cancelled mid-run
func (r *run) persistCtx() context.Context {
	return context.WithoutCancel(r.ctx)
}

// safely runs fn, logging instead of propagating a panic
func (r *run) safely(what string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn(what+" panicked", "panic", rec)
		}
	}()
	fn()
}
