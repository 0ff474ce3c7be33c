// Package cdp implements the crawler backend on a locally driven Chrome
// instance via the DevTools protocol.
package cdp

import (
	"context"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/chromedp"

	"github.com/wutongci/wxcrawl/pkg/crawler"
	"github.com/wutongci/wxcrawl/pkg/logging"
)

// Config tunes the Chrome allocator.
type Config struct {
	Headless  bool
	UserAgent string
}

// Driver owns one Chrome exec allocator. Each Open creates a fresh tab so
// sessions never share page state.
type Driver struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	log         *logging.Logger
}

// NewDriver prepares the allocator. Chrome itself is launched lazily on the
// first Open.
func NewDriver(cfg Config) *Driver {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	log, _ := logging.NewLogger("backend-cdp")
	return &Driver{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		log:         log,
	}
}

// Open creates a new tab and waits for it to be ready.
func (d *Driver) Open(ctx context.Context) (crawler.Backend, error) {
	tab, cancel := chromedp.NewContext(d.allocCtx)
	if err := chromedp.Run(tab); err != nil {
		cancel()
		return nil, err
	}
	d.log.Debugf("opened new tab")
	return &backend{tab: tab, cancel: cancel}, nil
}

// Shutdown tears down the allocator and every tab it spawned.
func (d *Driver) Shutdown() error {
	d.allocCancel()
	return nil
}

type backend struct {
	tab    context.Context
	cancel context.CancelFunc
}

// run executes chromedp actions on the tab, honoring the caller's deadline
// and cancellation. chromedp actions must run on the tab's own context, so
// the caller's context is bridged onto it.
func (b *backend) run(ctx context.Context, actions ...chromedp.Action) error {
	var runCtx context.Context
	var cancel context.CancelFunc
	if dl, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(b.tab, dl)
	} else {
		runCtx, cancel = context.WithCancel(b.tab)
	}
	defer cancel()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()

	return chromedp.Run(runCtx, actions...)
}

func (b *backend) Navigate(ctx context.Context, url string) crawler.ToolResult {
	start := time.Now()
	err := b.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	return toolResult(nil, err, start)
}

func (b *backend) WaitFor(ctx context.Context, selector string, timeout time.Duration) crawler.ToolResult {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	err := b.run(waitCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	return toolResult(nil, err, start)
}

func (b *backend) Snapshot(ctx context.Context) crawler.ToolResult {
	start := time.Now()
	var html string
	err := b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		node, err := dom.GetDocument().Do(ctx)
		if err != nil {
			return err
		}
		html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
		return err
	}))
	if err != nil {
		return toolResult(nil, err, start)
	}
	return toolResult(html, nil, start)
}

func (b *backend) Click(ctx context.Context, selector string) crawler.ToolResult {
	start := time.Now()
	err := b.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
	return toolResult(nil, err, start)
}

func (b *backend) Screenshot(ctx context.Context) crawler.ToolResult {
	start := time.Now()
	var buf []byte
	err := b.run(ctx, chromedp.FullScreenshot(&buf, 90))
	if err != nil {
		return toolResult(nil, err, start)
	}
	return toolResult(buf, nil, start)
}

func (b *backend) Close() error {
	b.cancel()
	return nil
}

func toolResult(data any, err error, start time.Time) crawler.ToolResult {
	tr := crawler.ToolResult{
		Success: err == nil,
		Data:    data,
		Metadata: map[string]any{
			"elapsed_ms": time.Since(start).Milliseconds(),
		},
	}
	if err != nil {
		tr.Error = err.Error()
	}
	return tr
}
