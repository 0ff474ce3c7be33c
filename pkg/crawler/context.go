package crawler

import (
	"time"
)

// Output formats for the final document.
const (
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Default option values.
const (
	DefaultTimeout           = 30 * time.Second
	DefaultRetryAttempts     = 3
	DefaultDelayBetweenSteps = 1 * time.Second
	DefaultRetryBackoff      = 1 * time.Second
)

// Options configures a single crawl session.
type Options struct {
	// OutputFormat is "markdown" (default) or "json"
	OutputFormat string

	// SaveImages controls whether image URLs are collected into the result
	SaveImages bool

	// CleanContent strips ad-keyword blocks from the extracted content
	CleanContent bool

	// Timeout bounds a single step attempt (long steps like Navigate)
	Timeout time.Duration

	// RetryAttempts is the total attempt count for retryable steps
	RetryAttempts int

	// DelayBetweenSteps is slept after each step except the last
	DelayBetweenSteps time.Duration

	// RetryBackoff is the base of the linear inter-attempt delay
	// (attempt number × base)
	RetryBackoff time.Duration

	// SessionTimeout optionally bounds the whole session. Zero means the
	// session is only bounded by the per-step timeouts.
	SessionTimeout time.Duration
}

// withDefaults fills zero fields with the documented defaults.
func (o Options) withDefaults() Options {
	if o.OutputFormat == "" {
		o.OutputFormat = FormatMarkdown
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = DefaultRetryAttempts
	}
	if o.DelayBetweenSteps < 0 {
		o.DelayBetweenSteps = 0
	} else if o.DelayBetweenSteps == 0 {
		o.DelayBetweenSteps = DefaultDelayBetweenSteps
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = DefaultRetryBackoff
	}
	return o
}

// Context is the working record threaded through one session's execution.
// It is owned exclusively by the orchestrator for the session's duration and
// never shared across sessions.
type Context struct {
	// SessionID identifies the session in the state store
	SessionID string

	// URL is the crawl target
	URL string

	// Options are the resolved options for this session
	Options Options

	// StartedAt is when the session began
	StartedAt time.Time

	// CurrentStep names the step currently executing
	CurrentStep string

	// ExpandPresent is set by the initial snapshot when the page carries
	// an expandable-content affordance. It is the sole adaptive
	// re-planning trigger.
	ExpandPresent bool

	results map[string]*StepResult
	meta    map[string]any
}

func newContext(sessionID, url string, opts Options) *Context {
	return &Context{
		SessionID: sessionID,
		URL:       url,
		Options:   opts,
		StartedAt: time.Now(),
		results:   make(map[string]*StepResult),
		meta:      make(map[string]any),
	}
}

// SetResult records the latest result for a step, superseding any earlier
// attempt's result under the same name.
func (c *Context) SetResult(step string, r *StepResult) {
	c.results[step] = r
}

// Result returns the latest recorded result for a step.
func (c *Context) Result(step string) (*StepResult, bool) {
	r, ok := c.results[step]
	return r, ok
}

// ContentOf returns a step's string payload, or "" if the step is missing,
// failed, or produced non-string data.
func (c *Context) ContentOf(step string) (string, bool) {
	r, ok := c.results[step]
	if !ok || !r.Success {
		return "", false
	}
	s, ok := r.Data.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// SetMeta records derived session metadata. The orchestrator flushes it to
// the state store after each step.
func (c *Context) SetMeta(key string, value any) {
	c.meta[key] = value
}

// Meta returns a copy of the accumulated session metadata.
func (c *Context) Meta() map[string]any {
	out := make(map[string]any, len(c.meta))
	for k, v := range c.meta {
		out[k] = v
	}
	return out
}
