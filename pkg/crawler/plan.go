package crawler

import (
	"strings"
	"time"
)

// Selectors for WeChat article pages.
const (
	// selectorContent is the article body container, present once the
	// page has loaded.
	selectorContent = "#js_content"
)

// buildPlan computes the full canonical plan for one session. This is a
// fixed pipeline, not a general scheduler; adaptive pruning may narrow it
// mid-run but never extends it.
func buildPlan(backend Backend, matcher *URLMatcher, markers []string, opts Options) []Step {
	return []Step{
		newNavigateStep(backend, matcher, opts),
		newWaitStep(StepWaitPageLoad, backend, selectorContent, 10*time.Second),
		newSnapshotStep(StepSnapshotInitial, backend, true, markers, opts),
		newClickStep(StepClickExpand, backend, DefaultExpandSelector, true, opts),
		newWaitStep(StepWaitContentLoad, backend, selectorContent, 10*time.Second),
		newSnapshotStep(StepSnapshotFinal, backend, false, nil, opts),
		newScreenshotStep(backend, opts),
	}
}

// pruneRule narrows the remaining plan after a completed step. Each rule is
// a named predicate over the context's accumulated results plus a pure
// filter producing a new remaining-step list; rules never mutate the list
// they are given.
type pruneRule struct {
	name    string
	applies func(cc *Context, completed Step) bool
	filter  func(remaining []Step) []Step
}

// defaultPruneRules returns the implemented adaptive triggers. There is
// exactly one: when the initial snapshot shows no expand affordance, the
// expand click and the content-load wait are dropped — there is nothing to
// expand and waiting for it would only burn the step's timeout.
func defaultPruneRules() []pruneRule {
	return []pruneRule{
		{
			name: "no_expand_affordance",
			applies: func(cc *Context, completed Step) bool {
				return completed.Name() == StepSnapshotInitial && !cc.ExpandPresent
			},
			filter: dropExpandSteps,
		},
	}
}

// dropExpandSteps filters out any step whose name references the expand
// interaction, plus the content-load wait that exists only to observe it.
func dropExpandSteps(remaining []Step) []Step {
	kept := make([]Step, 0, len(remaining))
	for _, s := range remaining {
		name := s.Name()
		if strings.Contains(name, "click") || strings.Contains(name, "expand") || name == StepWaitContentLoad {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}

// replan applies the prune rules after index i of plan has completed and
// returns the (possibly) new plan. The executed prefix is preserved and the
// tail is swapped atomically; the input slice is never mutated.
func replan(rules []pruneRule, cc *Context, plan []Step, i int) (next []Step, applied []string) {
	completed := plan[i]
	remaining := plan[i+1:]
	for _, rule := range rules {
		if !rule.applies(cc, completed) {
			continue
		}
		filtered := rule.filter(remaining)
		if len(filtered) == len(remaining) {
			continue
		}
		applied = append(applied, rule.name)
		remaining = filtered
	}
	if applied == nil {
		return plan, nil
	}
	next = make([]Step, 0, i+1+len(remaining))
	next = append(next, plan[:i+1]...)
	next = append(next, remaining...)
	return next, applied
}
