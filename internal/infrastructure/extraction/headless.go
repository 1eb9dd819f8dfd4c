package extraction

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/sourcing/backend/internal/domain/sourcing"
)

// HeadlessExtractor renders the page in a fresh headless Chrome per call,
// rotating the user agent and pausing for a random interval before reading
// the DOM.
type HeadlessExtractor struct {
	config HeadlessConfig
	logger *zap.Logger
}

// NewHeadlessExtractor creates a new HeadlessExtractor
func NewHeadlessExtractor(config HeadlessConfig, logger *zap.Logger) (*HeadlessExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HeadlessExtractor{
		config: config,
		logger: logger.Named("headless"),
	}, nil
}

// Name implements sourcing.Extractor
func (e *HeadlessExtractor) Name() string {
	return StageHeadlessRender
}

// allocatorOptions builds the exec allocator flags for one session
func (e *HeadlessExtractor) allocatorOptions(userAgent string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-extensions", true),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(userAgent),
	)
	if e.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// jitter returns a random pause within the configured bounds
func (e *HeadlessExtractor) jitter() time.Duration {
	span := e.config.MaxJitter - e.config.MinJitter
	if span <= 0 {
		return e.config.MinJitter
	}
	return e.config.MinJitter + rand.N(span)
}

// Extract implements sourcing.Extractor
func (e *HeadlessExtractor) Extract(ctx context.Context, target sourcing.Target) (*sourcing.RawExtraction, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	userAgent := pickUserAgent(e.config.UserAgents)

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if e.config.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, e.config.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, e.allocatorOptions(userAgent)...)
	}
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			e.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	var html string
	err := chromedp.Run(browserCtx, e.renderTasks(target.URL, userAgent, &html))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("extraction: headless render timed out after %v: %w", e.config.Timeout, err)
		}
		return nil, fmt.Errorf("extraction: headless render failed: %w", err)
	}

	raw, err := ParseWithSelectors(html, target.URL, SelectorsFor(target.Platform), sourcing.MaxDraftImages)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("Headless page parsed",
		zap.String("url", target.URL),
		zap.Bool("has_name", raw.Name != ""),
	)
	return raw, nil
}

// renderTasks loads url and captures the document into html. A local browser
// gets the user agent as a launch flag; a remote one is overridden per tab.
func (e *HeadlessExtractor) renderTasks(url, userAgent string, html *string) chromedp.Tasks {
	tasks := chromedp.Tasks{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": e.config.AcceptLanguage,
		}),
	}
	if e.config.RemoteURL != "" {
		tasks = append(tasks, emulation.SetUserAgentOverride(userAgent).
			WithAcceptLanguage(e.config.AcceptLanguage))
	}
	return append(tasks,
		chromedp.Sleep(e.jitter()),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(e.jitter()),
		chromedp.OuterHTML("html", html, chromedp.ByQuery),
	)
}

var _ sourcing.Extractor = (*HeadlessExtractor)(nil)
