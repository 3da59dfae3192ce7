package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

// Predicate decides whether a snapshot shows the content the caller waits for
type Predicate func(doc *Document) bool

// LoadPolicy bounds and paces the attempts of one Load call
type LoadPolicy struct {
	MaxAttempts    int
	Settle         DelayRange
	Backoff        DelayRange
	BlockedBackoff DelayRange
	MaxBackoff     time.Duration
	BlockMarkers   []string
	ScrollSteps    int
}

// Navigator loads pages into a session until they are ready
type Navigator struct {
	pacer    *Pacer
	logger   *zap.Logger
	debugDir string
	now      func() time.Time
}

// NewNavigator creates a navigator. When debugDir is set, pages that never
// became ready are dumped there as HTML and PNG.
func NewNavigator(pacer *Pacer, logger *zap.Logger, debugDir string) *Navigator {
	return &Navigator{
		pacer:    pacer,
		logger:   logger,
		debugDir: debugDir,
		now:      time.Now,
	}
}

type attemptError struct {
	reason domain.LoadReason
	err    error
}

func (e *attemptError) Error() string {
	if e.err != nil {
		return string(e.reason) + ": " + e.err.Error()
	}
	return string(e.reason)
}

func (e *attemptError) Unwrap() error { return e.err }

// Load navigates to pageURL and returns the first snapshot satisfying loaded.
// A snapshot showing a challenge marker never counts as loaded. After
// MaxAttempts failed navigations it returns a *domain.LoadError.
func (n *Navigator) Load(ctx context.Context, sess Session, pageURL string, loaded Predicate, policy LoadPolicy) (*Document, error) {
	maxAttempts := policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var (
		lastDoc *Document
		lastErr *attemptError
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := n.pacer.Throttle(ctx); err != nil {
			return nil, err
		}

		doc, aerr := n.attempt(ctx, sess, pageURL, loaded, policy)
		if aerr == nil {
			return n.settleScroll(ctx, sess, doc, policy), nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if doc != nil {
			lastDoc = doc
		}
		lastErr = aerr

		n.logger.Warn("Page not ready",
			zap.String("url", pageURL),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.String("reason", string(aerr.reason)),
			zap.Error(aerr.err),
		)

		if attempt == maxAttempts {
			break
		}

		backoff := policy.Backoff
		if aerr.reason == domain.LoadReasonBlocked {
			backoff = policy.BlockedBackoff
		}
		if err := n.pacer.Backoff(ctx, backoff, attempt, policy.MaxBackoff); err != nil {
			return nil, err
		}
	}

	n.dumpDebug(ctx, sess, pageURL, lastDoc)

	return nil, &domain.LoadError{
		URL:      pageURL,
		Reason:   lastErr.reason,
		Attempts: maxAttempts,
		Last:     lastErr.err,
	}
}

func (n *Navigator) attempt(ctx context.Context, sess Session, pageURL string, loaded Predicate, policy LoadPolicy) (*Document, *attemptError) {
	if err := sess.Navigate(ctx, pageURL); err != nil {
		return nil, &attemptError{reason: domain.LoadReasonNotLoaded, err: err}
	}

	if err := n.pacer.Wait(ctx, policy.Settle); err != nil {
		return nil, &attemptError{reason: domain.LoadReasonNotLoaded, err: err}
	}

	doc, err := sess.Snapshot(ctx)
	if err != nil {
		return nil, &attemptError{reason: domain.LoadReasonNotLoaded, err: err}
	}

	if marker, ok := BlockMarker(doc, policy.BlockMarkers); ok {
		return doc, &attemptError{
			reason: domain.LoadReasonBlocked,
			err:    fmt.Errorf("challenge marker %q", marker),
		}
	}

	if loaded != nil && !loaded(doc) {
		return doc, &attemptError{reason: domain.LoadReasonNotLoaded}
	}
	return doc, nil
}

// settleScroll scrolls for lazy content and re-captures. Failures keep the
// snapshot already taken.
func (n *Navigator) settleScroll(ctx context.Context, sess Session, doc *Document, policy LoadPolicy) *Document {
	if policy.ScrollSteps <= 0 {
		return doc
	}
	if err := sess.Scroll(ctx, policy.ScrollSteps); err != nil {
		n.logger.Debug("Scroll failed", zap.String("url", doc.URL()), zap.Error(err))
		return doc
	}
	again, err := sess.Snapshot(ctx)
	if err != nil {
		n.logger.Debug("Re-snapshot after scroll failed", zap.String("url", doc.URL()), zap.Error(err))
		return doc
	}
	return again
}

// BlockMarker reports the first challenge marker found in the page title or
// visible text. Markup is not scanned, so meta tags naming robots do not count.
func BlockMarker(doc *Document, markers []string) (string, bool) {
	if doc == nil || len(markers) == 0 {
		return "", false
	}
	haystack := strings.ToLower(doc.Title() + " " + doc.VisibleText())
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m != "" && strings.Contains(haystack, m) {
			return m, true
		}
	}
	return "", false
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func (n *Navigator) dumpDebug(ctx context.Context, sess Session, pageURL string, doc *Document) {
	if n.debugDir == "" {
		return
	}
	if err := os.MkdirAll(n.debugDir, 0o755); err != nil {
		n.logger.Warn("Failed to create debug dir", zap.String("dir", n.debugDir), zap.Error(err))
		return
	}

	base := filepath.Join(n.debugDir, debugName(pageURL, n.now()))

	if doc != nil {
		if err := os.WriteFile(base+".html", []byte(doc.HTML()), 0o644); err != nil {
			n.logger.Warn("Failed to write debug page", zap.Error(err))
		}
	}

	shot, err := sess.Screenshot(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			n.logger.Debug("Debug screenshot failed", zap.Error(err))
		}
		return
	}
	if err := os.WriteFile(base+".png", shot, 0o644); err != nil {
		n.logger.Warn("Failed to write debug screenshot", zap.Error(err))
		return
	}
	n.logger.Info("Saved debug artifacts", zap.String("path", base))
}

func debugName(pageURL string, at time.Time) string {
	host := "page"
	if u, err := url.Parse(pageURL); err == nil && u.Host != "" {
		host = u.Host + u.Path
	}
	name := unsafeName.ReplaceAllString(host, "_")
	if len(name) > 80 {
		name = name[:80]
	}
	return at.Format("20060102T150405") + "_" + strings.Trim(name, "_")
}
