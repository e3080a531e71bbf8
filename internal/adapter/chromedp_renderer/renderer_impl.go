package chromedp_renderer

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/repository"
)

const defaultUserAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`

// Options configures the headless browser started for each source.
type Options struct {
	ExecPath        string
	UserAgent       string
	WindowWidth     int
	WindowHeight    int
	NavigateTimeout time.Duration
}

// Factory starts one browser process per Acquire. Nothing is pooled, so a
// crashed or wedged page never leaks into the next source.
type Factory struct {
	opts   Options
	logger *zap.Logger
}

// NewFactory creates a renderer factory backed by chromedp.
func NewFactory(opts Options, logger *zap.Logger) *Factory {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.WindowWidth == 0 || opts.WindowHeight == 0 {
		opts.WindowWidth, opts.WindowHeight = 1920, 1080
	}
	return &Factory{opts: opts, logger: logger}
}

// browserNames are the executables chromedp looks for on PATH when no
// ExecPath is configured.
var browserNames = []string{
	"headless_shell",
	"headless-shell",
	"chromium",
	"chromium-browser",
	"google-chrome",
	"google-chrome-stable",
	"chrome",
}

// Available reports whether a browser can be started without launching one.
func (f *Factory) Available() error {
	if f.opts.ExecPath != "" {
		if _, err := exec.LookPath(f.opts.ExecPath); err != nil {
			return fmt.Errorf("%w: %w", repository.ErrRendererUnavailable, err)
		}
		return nil
	}
	for _, name := range browserNames {
		if _, err := exec.LookPath(name); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w: no chrome or chromium executable on PATH", repository.ErrRendererUnavailable)
}

func (f *Factory) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("force-device-scale-factor", "1"),
		chromedp.WindowSize(f.opts.WindowWidth, f.opts.WindowHeight),
		chromedp.UserAgent(f.opts.UserAgent),
	)
	if f.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(f.opts.ExecPath))
	}
	return opts
}

// Acquire starts a browser and opens a blank tab. The caller must Close it.
func (f *Factory) Acquire(ctx context.Context) (repository.Renderer, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, f.allocatorOptions()...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(f.logger.Sugar().Debugf))

	// The first Run launches the browser; it must not be bound to a timeout
	// context or the browser dies with it.
	if err := chromedp.Run(taskCtx); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", repository.ErrRendererUnavailable, err)
	}

	return &Renderer{
		ctx:             taskCtx,
		navigateTimeout: f.opts.NavigateTimeout,
		cancel: func() {
			taskCancel()
			allocCancel()
		},
	}, nil
}

// Renderer is one live browser tab.
type Renderer struct {
	ctx             context.Context
	navigateTimeout time.Duration
	cancel          context.CancelFunc
	closeOnce       sync.Once
}

// run executes actions in the tab, honouring cancellation of ctx and an
// optional timeout on top of the tab's own lifetime.
func (r *Renderer) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(r.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(r.ctx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", repository.ErrRenderTimeout, err)
	}
	return err
}

func (r *Renderer) SetViewport(ctx context.Context, width, height int) error {
	return r.run(ctx, 0, chromedp.EmulateViewport(int64(width), int64(height)))
}

func (r *Renderer) Navigate(ctx context.Context, url string) error {
	if err := r.run(ctx, r.navigateTimeout, chromedp.Navigate(url)); err != nil {
		if errors.Is(err, repository.ErrRenderTimeout) {
			return err
		}
		return fmt.Errorf("%w: %s: %w", repository.ErrNavigationFailed, url, err)
	}
	return nil
}

func (r *Renderer) WaitReady(ctx context.Context, selector string, timeout time.Duration) error {
	return r.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (r *Renderer) Evaluate(ctx context.Context, script string, res any) error {
	if res == nil {
		var discard any
		res = &discard
	}
	return r.run(ctx, 0, chromedp.Evaluate(script, res))
}

func (r *Renderer) Title(ctx context.Context) (string, error) {
	var title string
	err := r.run(ctx, 0, chromedp.Title(&title))
	return title, err
}

func (r *Renderer) OuterHTML(ctx context.Context) (string, error) {
	var html string
	err := r.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// SetContent swaps the document of the current frame for html.
func (r *Renderer) SetContent(ctx context.Context, html string) error {
	return r.run(ctx, r.navigateTimeout,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (r *Renderer) FullScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// quality 100 selects PNG
	err := r.run(ctx, 0, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}

func (r *Renderer) ElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := r.run(ctx, 0,
		chromedp.ScrollIntoView(selector, chromedp.ByQuery),
		chromedp.Screenshot(selector, &buf, chromedp.ByQuery),
	)
	return buf, err
}

// Close shuts the tab and its browser process down.
func (r *Renderer) Close() error {
	r.closeOnce.Do(r.cancel)
	return nil
}
