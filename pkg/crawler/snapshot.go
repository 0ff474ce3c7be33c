package crawler

import (
	"context"
	"strings"
)

// DefaultExpandMarkers are the markers of WeChat's expandable-content
// affordance: the expand control's element id and its visible label.
var DefaultExpandMarkers = []string{"js_expand", "展开全文"}

// snapshotStep captures the page's serialized HTML. Two canonical instances
// run per session: snapshot_initial (post-load) and snapshot_final
// (post-interaction).
type snapshotStep struct {
	baseStep
	backend Backend

	// detectExpand makes PostExecute scan the content for expand-control
	// markers; only the initial snapshot does this.
	detectExpand bool
	markers      []string
}

func newSnapshotStep(name string, backend Backend, detectExpand bool, markers []string, opts Options) *snapshotStep {
	if len(markers) == 0 {
		markers = DefaultExpandMarkers
	}
	return &snapshotStep{
		baseStep: baseStep{
			name:        name,
			description: "Capture the page's serialized content",
			retryable:   true,
			timeout:     opts.Timeout,
		},
		backend:      backend,
		detectExpand: detectExpand,
		markers:      markers,
	}
}

func (s *snapshotStep) Execute(ctx context.Context, cc *Context) *StepResult {
	tr := s.backend.Snapshot(ctx)
	return resultFromTool(s.name, tr)
}

// PostExecute inspects the initial snapshot's own output for an
// expand-affordance marker and records the flag as session metadata. This
// flag is the sole driver of adaptive re-planning.
func (s *snapshotStep) PostExecute(cc *Context, result *StepResult) {
	if !s.detectExpand || !result.Success {
		return
	}
	content, _ := result.Data.(string)
	present := containsAny(content, s.markers)
	cc.ExpandPresent = present
	cc.SetMeta("has_expand_control", present)
	result.Metadata["has_expand_control"] = present
}

func containsAny(content string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(content, m) {
			return true
		}
	}
	return false
}
