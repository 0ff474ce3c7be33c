package crawler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLMatcher(t *testing.T) {
	def, err := NewURLMatcher(DefaultURLPatterns)
	require.NoError(t, err)

	open, err := NewURLMatcher(nil)
	require.NoError(t, err)

	tests := []struct {
		name    string
		matcher *URLMatcher
		url     string
		want    bool
	}{
		{"wechat article path", def, "https://mp.weixin.qq.com/s/abc123", true},
		{"wechat article query", def, "https://mp.weixin.qq.com/s?__biz=MzA=&mid=1", true},
		{"plain http article", def, "http://mp.weixin.qq.com/s/abc123", true},
		{"foreign host", def, "https://example.com/s/abc123", false},
		{"wechat home page", def, "https://mp.weixin.qq.com/", false},
		{"ftp scheme", def, "ftp://mp.weixin.qq.com/s/abc", false},
		{"missing host", def, "https:///s/abc", false},
		{"not a url", def, "://nope", false},
		{"open matcher accepts any https", open, "https://example.com/x", true},
		{"open matcher still rejects bad scheme", open, "file:///etc/passwd", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.matcher.Match(tt.url))
		})
	}
}

func TestNewURLMatcherRejectsBadPattern(t *testing.T) {
	_, err := NewURLMatcher([]string{"https://[invalid"})
	assert.Error(t, err)
}

func TestSnapshotPostExecuteDetectsExpandMarkers(t *testing.T) {
	tests := []struct {
		name string
		html string
		want bool
	}{
		{"element id marker", `<div id="js_expand">more</div>`, true},
		{"label marker", `<span>展开全文</span>`, true},
		{"no marker", `<div id="js_content">plain</div>`, false},
		{"empty snapshot", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			step := newSnapshotStep(StepSnapshotInitial, newFakeBackend(tt.html), true, nil, Options{}.withDefaults())
			cc := newContext("s1", testURL, Options{}.withDefaults())

			result := step.Execute(context.Background(), cc)
			require.True(t, result.Success)
			step.PostExecute(cc, result)

			assert.Equal(t, tt.want, cc.ExpandPresent)
			assert.Equal(t, tt.want, cc.Meta()["has_expand_control"])
			assert.Equal(t, tt.want, result.Metadata["has_expand_control"])
		})
	}
}

func TestFinalSnapshotDoesNotDetectExpand(t *testing.T) {
	step := newSnapshotStep(StepSnapshotFinal, newFakeBackend(`<div id="js_expand"></div>`), false, nil, Options{}.withDefaults())
	cc := newContext("s1", testURL, Options{}.withDefaults())

	result := step.Execute(context.Background(), cc)
	step.PostExecute(cc, result)

	assert.False(t, cc.ExpandPresent)
	assert.NotContains(t, cc.Meta(), "has_expand_control")
}

func TestOptionalClickSkipsMissingTarget(t *testing.T) {
	backend := newFakeBackend("")
	backend.click = func(string) ToolResult { return failTool("node not found") }
	step := newClickStep(StepClickExpand, backend, DefaultExpandSelector, true, Options{}.withDefaults())

	result := step.Execute(context.Background(), newContext("s1", testURL, Options{}))
	assert.True(t, result.Success)
	assert.True(t, result.Skipped())
	assert.Equal(t, "node not found", result.Metadata["skip_reason"])
}

func TestRequiredClickFails(t *testing.T) {
	backend := newFakeBackend("")
	backend.click = func(string) ToolResult { return failTool("node not found") }
	step := newClickStep("click_required", backend, "#button", false, Options{}.withDefaults())

	result := step.Execute(context.Background(), newContext("s1", testURL, Options{}))
	assert.False(t, result.Success)
	assert.False(t, result.Skipped())
	assert.Equal(t, FailureBackend, result.FailureReason())
}

func TestDelayStepHonorsCancellation(t *testing.T) {
	step := newDelayStep("settle", time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := step.Execute(ctx, newContext("s1", testURL, Options{}))
	assert.False(t, result.Success)
	assert.Equal(t, FailureException, result.FailureReason())
}

func TestDelayStepCompletes(t *testing.T) {
	step := newDelayStep("settle", time.Millisecond)
	result := step.Execute(context.Background(), newContext("s1", testURL, Options{}))
	assert.True(t, result.Success)
}

func TestResultFromTool(t *testing.T) {
	t.Run("success carries data and metadata", func(t *testing.T) {
		r := resultFromTool("snapshot_final", ToolResult{
			Success:  true,
			Data:     "<html></html>",
			Metadata: map[string]any{"elapsed_ms": int64(12)},
		})
		assert.True(t, r.Success)
		assert.Equal(t, "<html></html>", r.Data)
		assert.Equal(t, "snapshot_final", r.Metadata["step"])
		assert.Equal(t, int64(12), r.Metadata["elapsed_ms"])
		assert.Empty(t, r.FailureReason())
	})

	t.Run("failure is tagged as backend", func(t *testing.T) {
		r := resultFromTool("navigate", ToolResult{Success: false, Error: "boom"})
		assert.False(t, r.Success)
		assert.Equal(t, "boom", r.Error)
		assert.Equal(t, FailureBackend, r.FailureReason())
	})
}

func TestStepResultNilSafety(t *testing.T) {
	var r *StepResult
	assert.Empty(t, r.FailureReason())
	assert.False(t, r.Skipped())
}

func TestOptionsWithDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, FormatMarkdown, o.OutputFormat)
	assert.Equal(t, DefaultTimeout, o.Timeout)
	assert.Equal(t, DefaultRetryAttempts, o.RetryAttempts)
	assert.Equal(t, DefaultDelayBetweenSteps, o.DelayBetweenSteps)
	assert.Equal(t, DefaultRetryBackoff, o.RetryBackoff)

	// Negative means "no delay", distinct from the zero-value default.
	o = Options{DelayBetweenSteps: -1}.withDefaults()
	assert.Equal(t, time.Duration(0), o.DelayBetweenSteps)
}

func TestBuildResultIsPure(t *testing.T) {
	cc := newContext("s1", testURL, Options{SaveImages: true, CleanContent: true}.withDefaults())
	cc.SetResult(StepSnapshotFinal, newResult(StepSnapshotFinal, true, plainArticle, ""))

	orch, _ := newTestOrchestrator(t, newFakeDriver(newFakeBackend("")), nil)
	now := time.Now()

	first, firstDoc := buildResult(cc, orch.extractor, orch.pipeline, now)
	second, secondDoc := buildResult(cc, orch.extractor, orch.pipeline, now)

	assert.Equal(t, first, second)
	assert.Equal(t, firstDoc, secondDoc)
	assert.True(t, first.Success)
	assert.Equal(t, "Hello", first.Title)
}

func TestBuildResultWithoutFinalSnapshot(t *testing.T) {
	cc := newContext("s1", testURL, Options{}.withDefaults())
	orch, _ := newTestOrchestrator(t, newFakeDriver(newFakeBackend("")), nil)

	res, doc := buildResult(cc, orch.extractor, orch.pipeline, time.Now())
	assert.False(t, res.Success)
	assert.Equal(t, ErrNoUsableContent, res.Error)
	assert.Nil(t, doc)
}
