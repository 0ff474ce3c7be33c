package crawler

import (
	"context"
)

// screenshotStep captures a full-page PNG. A failed screenshot never
// invalidates the session's text extraction.
type screenshotStep struct {
	baseStep
	backend Backend
}

func newScreenshotStep(backend Backend, opts Options) *screenshotStep {
	return &screenshotStep{
		baseStep: baseStep{
			name:        StepScreenshot,
			description: "Capture a full-page screenshot",
			retryable:   true,
			timeout:     opts.Timeout,
		},
		backend: backend,
	}
}

func (s *screenshotStep) Execute(ctx context.Context, cc *Context) *StepResult {
	tr := s.backend.Screenshot(ctx)
	return resultFromTool(s.name, tr)
}

func (s *screenshotStep) PostExecute(cc *Context, result *StepResult) {
	if !result.Success {
		return
	}
	if png, ok := result.Data.([]byte); ok {
		cc.SetMeta("screenshot_bytes", len(png))
	}
}
