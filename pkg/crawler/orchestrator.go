// Package crawler implements the step-orchestration engine that drives a
// remote browser-automation backend through an adaptively adjustable
// sequence of operations to retrieve a web page's content.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wutongci/wxcrawl/pkg/content"
	"github.com/wutongci/wxcrawl/pkg/logging"
	"github.com/wutongci/wxcrawl/pkg/session"
)

// Saver persists a finished result. The crawler only hands the result off;
// what "persist" means belongs to the implementation.
type Saver interface {
	// Save writes the result (and the screenshot, when captured) in the
	// given output format and returns the output path.
	Save(res *Result, screenshot []byte, format string) (string, error)
}

// Config wires an Orchestrator.
type Config struct {
	// Driver produces one backend per session (required)
	Driver Driver

	// Store tracks session state (required)
	Store *session.Store

	// Extractor pulls article metadata from the final snapshot.
	// Defaults to the WeChat extractor.
	Extractor content.Extractor

	// Pipeline renders the final snapshot into the result body.
	// Defaults to a pipeline with the standard ad-keyword list.
	Pipeline *content.Pipeline

	// Saver optionally persists successful results
	Saver Saver

	// URLPatterns restrict accepted targets. Defaults to WeChat article
	// links.
	URLPatterns []string

	// ExpandMarkers override the expand-affordance markers
	ExpandMarkers []string
}

// Orchestrator plans and executes crawl sessions. One orchestrator serves
// many concurrent sessions; each session owns its backend and context
// end-to-end, and the session store is the only shared mutable state.
type Orchestrator struct {
	driver    Driver
	store     *session.Store
	extractor content.Extractor
	pipeline  *content.Pipeline
	saver     Saver
	matcher   *URLMatcher
	markers   []string
	rules     []pruneRule
	log       *logging.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Driver == nil {
		return nil, fmt.Errorf("driver is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}

	patterns := cfg.URLPatterns
	if patterns == nil {
		patterns = DefaultURLPatterns
	}
	matcher, err := NewURLMatcher(patterns)
	if err != nil {
		return nil, err
	}

	extractor := cfg.Extractor
	if extractor == nil {
		extractor = content.NewWeChatExtractor()
	}
	pipeline := cfg.Pipeline
	if pipeline == nil {
		pipeline = content.NewPipeline(nil)
	}

	log, _ := logging.NewLogger("orchestrator")

	return &Orchestrator{
		driver:    cfg.Driver,
		store:     cfg.Store,
		extractor: extractor,
		pipeline:  pipeline,
		saver:     cfg.Saver,
		matcher:   matcher,
		markers:   cfg.ExpandMarkers,
		rules:     defaultPruneRules(),
		log:       log,
		cancels:   make(map[string]context.CancelFunc),
	}, nil
}

// Run executes one crawl session for url. It always returns a Result —
// failures inside the session surface as Result.Error, never as a panic or
// a raw error — and the session is marked terminal in the store before Run
// returns.
func (o *Orchestrator) Run(ctx context.Context, url string, opts Options) *Result {
	opts = opts.withDefaults()

	id := o.store.CreateSession(url)
	cc := newContext(id, url, opts)
	o.log.Infof("session %s started for %s", id, hostOf(url))

	var runCtx context.Context
	var cancel context.CancelFunc
	if opts.SessionTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.SessionTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	o.registerCancel(id, cancel)
	defer o.releaseCancel(id, cancel)

	res := o.runSession(runCtx, cc)

	o.store.CompleteSession(id, res.Success)
	o.log.Infof("session %s finished: success=%v duration=%s", id, res.Success, res.Duration)
	return res
}

// Cancel interrupts an in-flight session at its next suspension point.
// Returns false if the session is unknown or already finished.
func (o *Orchestrator) Cancel(sessionID string) bool {
	o.mu.Lock()
	cancel, ok := o.cancels[sessionID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	return ok
}

// Status reports a session's derived status.
func (o *Orchestrator) Status(sessionID string) (session.Status, bool) {
	return o.store.Status(sessionID)
}

// ListStatuses reports all known sessions, most recently started first.
func (o *Orchestrator) ListStatuses() []session.Status {
	return o.store.ListStatuses()
}

func (o *Orchestrator) registerCancel(id string, cancel context.CancelFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancels[id] = cancel
}

func (o *Orchestrator) releaseCancel(id string, cancel context.CancelFunc) {
	cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.cancels, id)
}

// runSession opens a backend, walks the plan and aggregates the result. Any
// panic inside the sequence is recovered here, recorded in the store, and
// turned into a failed Result.
func (o *Orchestrator) runSession(ctx context.Context, cc *Context) (res *Result) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("internal error: %v", r)
			o.log.Errorf("session %s: %s", cc.SessionID, msg)
			o.store.AddError(cc.SessionID, session.Error{Message: msg, Step: cc.CurrentStep})
			res = failedResult(cc, msg)
		}
	}()

	backend, err := o.driver.Open(ctx)
	if err != nil {
		msg := fmt.Sprintf("failed to open backend: %v", err)
		o.store.AddError(cc.SessionID, session.Error{Message: msg})
		return failedResult(cc, msg)
	}
	defer backend.Close()

	plan := buildPlan(backend, o.matcher, o.markers, cc.Options)
	if err := o.executeSequence(ctx, cc, plan); err != nil {
		return failedResult(cc, err.Error())
	}

	res, doc := buildResult(cc, o.extractor, o.pipeline, time.Now())
	if doc != nil {
		o.store.UpdateMetadata(cc.SessionID, map[string]any{
			"title":       res.Title,
			"author":      res.Author,
			"word_count":  doc.WordCount,
			"image_count": doc.ImageCount,
		})
	}
	if !res.Success {
		o.store.AddError(cc.SessionID, session.Error{Message: res.Error, Step: cc.CurrentStep})
		return res
	}

	o.persist(cc, res)
	return res
}

// persist hands the finished result to the saver. Persistence failure is a
// downstream concern: it is recorded but does not fail the crawl.
func (o *Orchestrator) persist(cc *Context, res *Result) {
	if o.saver == nil {
		return
	}
	var screenshot []byte
	if r, ok := cc.Result(StepScreenshot); ok && r.Success {
		screenshot, _ = r.Data.([]byte)
	}
	path, err := o.saver.Save(res, screenshot, cc.Options.OutputFormat)
	if err != nil {
		o.log.Warnf("session %s: failed to persist result: %v", cc.SessionID, err)
		o.store.AddError(cc.SessionID, session.Error{Message: fmt.Sprintf("persist failed: %v", err)})
		return
	}
	res.OutputPath = path
}

// executeSequence walks the plan in order, applying per-step retry and
// adaptive pruning. It returns an error only for fatal conditions: a failed
// non-retryable step or cancellation — a retryable step that exhausts its
// attempts is recorded and skipped so a WaitFor/Click/Screenshot failure
// does not sink an otherwise successful content capture.
func (o *Orchestrator) executeSequence(ctx context.Context, cc *Context, plan []Step) error {
	for i := 0; i < len(plan); i++ {
		if err := ctx.Err(); err != nil {
			return o.cancelled(cc, err)
		}

		step := plan[i]
		cc.CurrentStep = step.Name()
		o.store.UpdateCurrentStep(cc.SessionID, step.Name())

		result := o.executeWithRetry(ctx, step, cc)
		cc.SetResult(step.Name(), result)
		o.store.UpdateStepResult(cc.SessionID, step.Name(), result)
		o.store.UpdateMetadata(cc.SessionID, cc.Meta())

		if !result.Success {
			o.store.AddError(cc.SessionID, session.Error{
				Message:   result.Error,
				Step:      step.Name(),
				Retryable: step.Retryable(),
			})
			if !step.Retryable() {
				return fmt.Errorf("step %s failed: %s", step.Name(), result.Error)
			}
			o.log.Warnf("session %s: step %s failed after retries, continuing", cc.SessionID, step.Name())
		}

		var applied []string
		plan, applied = replan(o.rules, cc, plan, i)
		for _, name := range applied {
			o.log.Infof("session %s: prune rule %s narrowed the plan", cc.SessionID, name)
		}

		if i < len(plan)-1 {
			if err := sleepCtx(ctx, cc.Options.DelayBetweenSteps); err != nil {
				return o.cancelled(cc, err)
			}
		}
	}
	return nil
}

func (o *Orchestrator) cancelled(cc *Context, err error) error {
	msg := fmt.Sprintf("session cancelled: %v", err)
	o.store.AddError(cc.SessionID, session.Error{Message: msg, Step: cc.CurrentStep})
	return fmt.Errorf("%s", msg)
}

// executeWithRetry attempts a step up to its retry budget: once for
// non-retryable steps, Options.RetryAttempts otherwise. Failed attempts are
// followed by a linearly increasing delay (attempt × backoff base), except
// after the final attempt. A precondition failure is never retried — the
// gate will not open without new page state.
func (o *Orchestrator) executeWithRetry(ctx context.Context, step Step, cc *Context) *StepResult {
	attempts := 1
	if step.Retryable() {
		attempts = cc.Options.RetryAttempts
	}

	var result *StepResult
	for attempt := 1; attempt <= attempts; attempt++ {
		result = o.executeOnce(ctx, step, cc)
		if result.Success {
			return result
		}
		if result.FailureReason() == FailurePrecondition {
			return result
		}
		o.log.Warnf("session %s: step %s attempt %d/%d failed: %s",
			cc.SessionID, step.Name(), attempt, attempts, result.Error)

		if attempt < attempts {
			delay := time.Duration(attempt) * cc.Options.RetryBackoff
			if err := sleepCtx(ctx, delay); err != nil {
				return failResult(step.Name(), FailureException, err.Error())
			}
		}
	}
	return result
}

// executeOnce runs one attempt: the PreExecute gate, the backend call under
// the step's own timeout, then the PostExecute observer. A panicking step is
// normalized into a failed result like any other unexpected error.
func (o *Orchestrator) executeOnce(ctx context.Context, step Step, cc *Context) (result *StepResult) {
	defer func() {
		if r := recover(); r != nil {
			result = failResult(step.Name(), FailureException, fmt.Sprintf("step panicked: %v", r))
		}
	}()

	if !step.PreExecute(cc) {
		result = failResult(step.Name(), FailurePrecondition,
			fmt.Sprintf("precondition failed for step %s", step.Name()))
		step.PostExecute(cc, result)
		return result
	}

	stepCtx, cancel := context.WithTimeout(ctx, step.Timeout())
	defer cancel()

	result = step.Execute(stepCtx, cc)
	if result == nil {
		result = failResult(step.Name(), FailureException, "step returned no result")
	}
	step.PostExecute(cc, result)
	return result
}

// sleepCtx sleeps for d unless the context is done first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
