package crawler

import (
	"context"
	"time"
)

// ToolResult is the normalized response from a single remote browser
// operation. A backend that returns an error from its transport layer and a
// backend that reports success=false are treated identically by the
// orchestrator.
type ToolResult struct {
	// Success indicates whether the operation completed
	Success bool

	// Data carries the operation payload: serialized HTML for Snapshot,
	// PNG bytes for Screenshot, nil for the rest
	Data any

	// Error holds the backend-reported failure message, empty on success
	Error string

	// Metadata carries optional backend diagnostics (timing, final URL, ...)
	Metadata map[string]any
}

// Backend is the remote browser-automation capability the crawler drives.
// Implementations wrap a single page: all operations act on the page state
// left behind by the previous operation, so a Backend must never be shared
// across concurrently running sessions.
type Backend interface {
	// Navigate loads the given URL and waits for the page to be ready.
	Navigate(ctx context.Context, url string) ToolResult

	// WaitFor blocks until the element matching selector is present, or
	// the timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) ToolResult

	// Snapshot returns the page's serialized HTML content.
	Snapshot(ctx context.Context) ToolResult

	// Click clicks the element matching selector.
	Click(ctx context.Context, selector string) ToolResult

	// Screenshot captures a full-page PNG.
	Screenshot(ctx context.Context) ToolResult

	// Close releases the page and its resources.
	Close() error
}

// Driver produces backends. The orchestrator opens one Backend per session
// so each session owns its page state end-to-end.
type Driver interface {
	// Open creates a fresh backend with its own isolated page.
	Open(ctx context.Context) (Backend, error)

	// Shutdown releases the underlying browser runtime.
	Shutdown() error
}
