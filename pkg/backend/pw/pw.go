// Package pw implements the crawler backend on Playwright-driven Chromium.
package pw

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/wutongci/wxcrawl/pkg/crawler"
	"github.com/wutongci/wxcrawl/pkg/logging"
)

// Config tunes the Playwright launch.
type Config struct {
	Headless bool
}

// Driver owns one Playwright runtime and one browser process. Each Open
// creates a fresh browser context and page, so sessions stay isolated.
type Driver struct {
	mu      sync.Mutex
	cfg     Config
	pw      *playwright.Playwright
	browser playwright.Browser
	log     *logging.Logger
}

func NewDriver(cfg Config) *Driver {
	log, _ := logging.NewLogger("backend-pw")
	return &Driver{cfg: cfg, log: log}
}

// init launches Playwright and the browser on first use. Driver output is
// discarded so it cannot interleave with the CLI's own output.
func (d *Driver) init() error {
	if d.pw != nil {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	d.pw = pw
	d.browser = browser
	return nil
}

// Open creates a fresh browser context and page.
func (d *Driver) Open(ctx context.Context) (crawler.Backend, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.init(); err != nil {
		return nil, err
	}

	browserCtx, err := d.browser.NewContext()
	if err != nil {
		return nil, fmt.Errorf("failed to create context: %w", err)
	}
	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	d.log.Debugf("opened new page")
	return &backend{ctx: browserCtx, page: page}, nil
}

// Shutdown closes the browser and stops Playwright.
func (d *Driver) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			return err
		}
		d.browser = nil
	}
	if d.pw != nil {
		if err := d.pw.Stop(); err != nil {
			return err
		}
		d.pw = nil
	}
	return nil
}

type backend struct {
	ctx  playwright.BrowserContext
	page playwright.Page
}

func (b *backend) Navigate(ctx context.Context, url string) crawler.ToolResult {
	start := time.Now()
	_, err := b.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   timeoutMillis(ctx),
	})
	return toolResult(nil, err, start)
}

func (b *backend) WaitFor(ctx context.Context, selector string, timeout time.Duration) crawler.ToolResult {
	start := time.Now()
	_, err := b.page.WaitForSelector(selector, playwright.PageWaitForSelectorOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	return toolResult(nil, err, start)
}

func (b *backend) Snapshot(ctx context.Context) crawler.ToolResult {
	start := time.Now()
	html, err := b.page.Content()
	if err != nil {
		return toolResult(nil, err, start)
	}
	return toolResult(html, nil, start)
}

func (b *backend) Click(ctx context.Context, selector string) crawler.ToolResult {
	start := time.Now()
	err := b.page.Click(selector, playwright.PageClickOptions{
		Timeout: timeoutMillis(ctx),
	})
	return toolResult(nil, err, start)
}

func (b *backend) Screenshot(ctx context.Context) crawler.ToolResult {
	start := time.Now()
	buf, err := b.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	if err != nil {
		return toolResult(nil, err, start)
	}
	return toolResult(buf, nil, start)
}

func (b *backend) Close() error {
	if err := b.page.Close(); err != nil {
		b.ctx.Close()
		return err
	}
	return b.ctx.Close()
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

// timeoutMillis converts the caller's context deadline into Playwright's
// millisecond timeout option. Nil means the library default.
func timeoutMillis(ctx context.Context) *float64 {
	dl, ok := ctx.Deadline()
	if !ok {
		return nil
	}
	remaining := time.Until(dl)
	if remaining <= 0 {
		return playwright.Float(1)
	}
	return playwright.Float(float64(remaining.Milliseconds()))
}
