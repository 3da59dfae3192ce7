package scraper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/config"
	"github.com/openintern/backend/internal/domain"
)

// Session is one browser tab owned by a single run
type Session interface {
	Navigate(ctx context.Context, url string) error
	Snapshot(ctx context.Context) (*Document, error)
	Scroll(ctx context.Context, steps int) error
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// SessionFactory hands out fresh sessions
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// BrowserPool owns the Chrome process; each session is a tab in it
type BrowserPool struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger
	cfg      config.BrowserConfig
}

// NewBrowserPool creates a new browser pool
func NewBrowserPool(logger *zap.Logger, cfg config.BrowserConfig) (*BrowserPool, error) {
	if len(cfg.UserAgents) == 0 {
		return nil, fmt.Errorf("%w: no user agents configured", domain.ErrSessionInit)
	}

	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}

	if cfg.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(cfg.ProxyURL))
	}

	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &BrowserPool{
		allocCtx: allocCtx,
		cancel:   cancel,
		logger:   logger,
		cfg:      cfg,
	}, nil
}

// Close shuts down the browser
func (p *BrowserPool) Close() {
	p.cancel()
}

// NewSession opens a tab with a randomly chosen user agent
func (p *BrowserPool) NewSession(ctx context.Context) (Session, error) {
	tabCtx, cancel := chromedp.NewContext(p.allocCtx)

	ua := p.cfg.UserAgents[rand.IntN(len(p.cfg.UserAgents))]

	// The first Run starts the browser if needed and attaches the tab
	if err := chromedp.Run(tabCtx, emulation.SetUserAgentOverride(ua)); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", domain.ErrSessionInit, err)
	}

	p.logger.Debug("Browser session opened", zap.String("user_agent", ua))

	return &chromeSession{
		tabCtx:  tabCtx,
		cancel:  cancel,
		timeout: p.cfg.PageTimeout,
		logger:  p.logger,
	}, nil
}

type chromeSession struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger
}

// run executes actions on the tab, bounded by the page timeout and ctx
func (s *chromeSession) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.tabCtx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(ctx context.Context, url string) error {
	s.logger.Debug("Navigating", zap.String("url", url))
	if err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	return nil
}

func (s *chromeSession) Snapshot(ctx context.Context) (*Document, error) {
	var html, location string

	err := s.run(ctx,
		chromedp.Location(&location),
		chromedp.ActionFunc(func(ctx context.Context) error {
			node, err := dom.GetDocument().Do(ctx)
			if err != nil {
				return err
			}
			html, err = dom.GetOuterHTML().WithNodeID(node.NodeID).Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}

	s.logger.Debug("Page captured", zap.String("url", location), zap.Int("length", len(html)))
	return NewDocument(html, location)
}

// Scroll moves to the bottom of the page steps times to trigger lazy content
func (s *chromeSession) Scroll(ctx context.Context, steps int) error {
	for i := 0; i < steps; i++ {
		if err := s.run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(700*time.Millisecond),
		); err != nil {
			return err
		}
	}
	return nil
}

func (s *chromeSession) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *chromeSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
}

func (s *chromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}
