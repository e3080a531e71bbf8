package repository

import (
	"context"
	"time"
)

// Renderer drives one headless browser session. Implementations are not safe
// for concurrent use; one Renderer serves one source.
type Renderer interface {
	// SetViewport resizes the layout viewport in CSS pixels.
	SetViewport(ctx context.Context, width, height int) error
	// Navigate loads url and returns once the main frame has loaded.
	Navigate(ctx context.Context, url string) error
	// WaitReady blocks until selector matches a node or timeout elapses.
	WaitReady(ctx context.Context, selector string, timeout time.Duration) error
	// Evaluate runs script in the page and decodes its JSON result into res.
	// res may be nil when the result is not needed.
	Evaluate(ctx context.Context, script string, res any) error
	Title(ctx context.Context) (string, error)
	OuterHTML(ctx context.Context) (string, error)
	// SetContent replaces the current document with html.
	SetContent(ctx context.Context, html string) error
	// FullScreenshot captures the whole scrollable page as PNG bytes.
	FullScreenshot(ctx context.Context) ([]byte, error)
	// ElementScreenshot captures the first node matching selector as PNG bytes.
	ElementScreenshot(ctx context.Context, selector string) ([]byte, error)
	// Close tears the session down. It is safe to call more than once.
	Close() error
}

// RendererFactory starts a fresh Renderer per source.
type RendererFactory interface {
	Acquire(ctx context.Context) (Renderer, error)
}
