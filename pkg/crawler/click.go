package crawler

import (
	"context"
	"fmt"
)

// DefaultExpandSelector targets WeChat's "展开全文" control.
const DefaultExpandSelector = "#js_expand"

// clickStep clicks an element. In optional mode the absence of the target is
// not an error: the step reports success with a skipped flag, since the
// expand control legitimately may not exist.
type clickStep struct {
	baseStep
	backend  Backend
	selector string
	optional bool
}

func newClickStep(name string, backend Backend, selector string, optional bool, opts Options) *clickStep {
	return &clickStep{
		baseStep: baseStep{
			name:        name,
			description: fmt.Sprintf("Click %q", selector),
			retryable:   true,
			timeout:     opts.Timeout,
		},
		backend:  backend,
		selector: selector,
		optional: optional,
	}
}

func (s *clickStep) Execute(ctx context.Context, cc *Context) *StepResult {
	tr := s.backend.Click(ctx, s.selector)
	if !tr.Success && s.optional {
		r := newResult(s.name, true, nil, "")
		r.Metadata["skipped"] = true
		r.Metadata["skip_reason"] = tr.Error
		return r
	}
	return resultFromTool(s.name, tr)
}
