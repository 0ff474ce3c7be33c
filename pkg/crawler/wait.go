package crawler

import (
	"context"
	"fmt"
	"time"
)

// waitStep waits for a named element to appear, or for a fixed delay when no
// selector is configured. Wait failures are reported but treated as non-fatal
// by the orchestrator's retry policy.
type waitStep struct {
	baseStep
	backend  Backend
	selector string
	delay    time.Duration
}

func newWaitStep(name string, backend Backend, selector string, timeout time.Duration) *waitStep {
	return &waitStep{
		baseStep: baseStep{
			name:        name,
			description: fmt.Sprintf("Wait for %q", selector),
			retryable:   true,
			timeout:     timeout,
		},
		backend:  backend,
		selector: selector,
	}
}

func newDelayStep(name string, delay time.Duration) *waitStep {
	return &waitStep{
		baseStep: baseStep{
			name:        name,
			description: fmt.Sprintf("Wait %s", delay),
			retryable:   true,
			timeout:     delay + time.Second,
		},
		delay: delay,
	}
}

func (s *waitStep) Execute(ctx context.Context, cc *Context) *StepResult {
	if s.selector == "" {
		select {
		case <-time.After(s.delay):
			return newResult(s.name, true, nil, "")
		case <-ctx.Done():
			return failResult(s.name, FailureException, ctx.Err().Error())
		}
	}
	tr := s.backend.WaitFor(ctx, s.selector, s.timeout)
	return resultFromTool(s.name, tr)
}
