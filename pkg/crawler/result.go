package crawler

import (
	"time"

	"github.com/wutongci/wxcrawl/pkg/content"
)

// ErrNoUsableContent is the aggregation failure message used when the final
// snapshot is missing or unsuccessful.
const ErrNoUsableContent = "no usable content"

// Result is the terminal artifact of one crawl session.
type Result struct {
	Success     bool          `json:"success"`
	URL         string        `json:"url"`
	Title       string        `json:"title,omitempty"`
	Author      string        `json:"author,omitempty"`
	PublishedAt string        `json:"published_at,omitempty"`
	Content     string        `json:"content,omitempty"`
	Images      []string      `json:"images,omitempty"`
	OutputPath  string        `json:"output_path,omitempty"`
	CrawledAt   time.Time     `json:"crawled_at"`
	Duration    time.Duration `json:"duration"`
	SessionID   string        `json:"session_id"`
	Error       string        `json:"error,omitempty"`
}

// buildResult folds the context's accumulated step results into a Result.
// Given a fixed set of step results (and a fixed now), this is a pure
// function: calling it twice yields identical output.
func buildResult(cc *Context, extractor content.Extractor, pipeline *content.Pipeline, now time.Time) (*Result, *content.Document) {
	res := &Result{
		URL:       cc.URL,
		SessionID: cc.SessionID,
		CrawledAt: cc.StartedAt,
		Duration:  now.Sub(cc.StartedAt),
	}

	raw, ok := cc.ContentOf(StepSnapshotFinal)
	if !ok {
		res.Error = ErrNoUsableContent
		return res, nil
	}

	meta := extractor.Extract(raw)
	res.Title = meta.Title
	res.Author = meta.Author
	res.PublishedAt = meta.PublishedAt

	doc, err := pipeline.Process(raw, cc.Options.CleanContent)
	if err != nil {
		res.Error = "failed to process content: " + err.Error()
		return res, nil
	}

	res.Content = doc.Body
	if cc.Options.SaveImages {
		res.Images = doc.Images
	}
	res.Success = true
	return res, doc
}

// failedResult builds the Result returned for fatal and unexpected errors.
func failedResult(cc *Context, msg string) *Result {
	return &Result{
		URL:       cc.URL,
		SessionID: cc.SessionID,
		CrawledAt: cc.StartedAt,
		Duration:  time.Since(cc.StartedAt),
		Error:     msg,
	}
}
