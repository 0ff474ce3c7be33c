package crawler

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultURLPatterns accepts WeChat official-account article links.
var DefaultURLPatterns = []string{
	"https://mp.weixin.qq.com/s/*",
	"https://mp.weixin.qq.com/s?*",
	"http://mp.weixin.qq.com/s/*",
}

// URLMatcher validates crawl targets against a set of glob patterns.
type URLMatcher struct {
	patterns []glob.Glob
}

// NewURLMatcher compiles the given patterns. With no patterns every
// well-formed http(s) URL is accepted.
func NewURLMatcher(patterns []string) (*URLMatcher, error) {
	m := &URLMatcher{}
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid URL pattern %q: %w", p, err)
		}
		m.patterns = append(m.patterns, g)
	}
	return m, nil
}

// Match reports whether raw is a well-formed http(s) URL accepted by the
// pattern set.
func (m *URLMatcher) Match(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	if len(m.patterns) == 0 {
		return true
	}
	for _, g := range m.patterns {
		if g.Match(raw) {
			return true
		}
	}
	return false
}

// navigateStep loads the target URL. Navigation is non-retryable: a failed
// navigation is fatal to the session.
type navigateStep struct {
	baseStep
	backend Backend
	matcher *URLMatcher
}

func newNavigateStep(backend Backend, matcher *URLMatcher, opts Options) *navigateStep {
	return &navigateStep{
		baseStep: baseStep{
			name:        StepNavigate,
			description: "Navigate to the article URL",
			retryable:   false,
			timeout:     opts.Timeout,
		},
		backend: backend,
		matcher: matcher,
	}
}

// PreExecute rejects URLs outside the accepted host/path patterns before any
// backend call is made.
func (s *navigateStep) PreExecute(cc *Context) bool {
	return s.matcher.Match(cc.URL)
}

func (s *navigateStep) Execute(ctx context.Context, cc *Context) *StepResult {
	tr := s.backend.Navigate(ctx, cc.URL)
	return resultFromTool(s.name, tr)
}

func (s *navigateStep) PostExecute(cc *Context, result *StepResult) {
	if result.Success {
		cc.SetMeta("navigated_url", cc.URL)
	}
}

// hostOf is a small helper for log lines.
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return strings.TrimPrefix(u.Host, "www.")
}
