package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

const (
	readyPage   = `<html><head><title>Jobs</title></head><body><div class="job_seen_beacon">Intern</div></body></html>`
	emptyPage   = `<html><head><title>Jobs</title></head><body><div class="spinner"></div></body></html>`
	captchaPage = `<html><head><title>Just a moment...</title><meta name="robots" content="noindex"></head><body><p>Checking your browser</p></body></html>`
	robotsPage  = `<html><head><title>Jobs</title><meta name="robots" content="noindex"></head><body><div class="job_seen_beacon">Intern</div></body></html>`
)

func testPolicy() LoadPolicy {
	return LoadPolicy{
		MaxAttempts:    3,
		Settle:         DelayRange{Min: time.Second, Max: time.Second},
		Backoff:        DelayRange{Min: 5 * time.Second, Max: 5 * time.Second},
		BlockedBackoff: DelayRange{Min: 10 * time.Second, Max: 10 * time.Second},
		MaxBackoff:     time.Minute,
		BlockMarkers:   []string{"captcha", "just a moment"},
	}
}

func hasBeacon(doc *Document) bool {
	return doc.Exists(CSSChain("div.job_seen_beacon"))
}

func TestLoad_ReadyFirstAttempt(t *testing.T) {
	pacer, rec := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(map[string][]string{"https://x.test/": {readyPage}})

	doc, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, "Jobs", doc.Title())
	assert.Equal(t, 1, sess.navigations("https://x.test/"))
	assert.Equal(t, []time.Duration{time.Second}, rec.sleeps)
}

func TestLoad_RetriesUntilReady(t *testing.T) {
	pacer, rec := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(map[string][]string{"https://x.test/": {emptyPage, readyPage}})

	_, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, testPolicy())
	require.NoError(t, err)
	assert.Equal(t, 2, sess.navigations("https://x.test/"))
	// settle, backoff, settle
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, time.Second}, rec.sleeps)
}

func TestLoad_RetryBound(t *testing.T) {
	for _, maxAttempts := range []int{1, 2, 3, 5} {
		pacer, _ := newTestPacer()
		nav := NewNavigator(pacer, zap.NewNop(), "")
		sess := newFakeSession(map[string][]string{"https://x.test/": {emptyPage}})

		policy := testPolicy()
		policy.MaxAttempts = maxAttempts

		_, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, policy)
		require.Error(t, err)
		assert.Equal(t, maxAttempts, sess.navigations("https://x.test/"))

		var loadErr *domain.LoadError
		require.True(t, errors.As(err, &loadErr))
		assert.Equal(t, domain.LoadReasonNotLoaded, loadErr.Reason)
		assert.Equal(t, maxAttempts, loadErr.Attempts)
		assert.ErrorIs(t, err, domain.ErrNotLoaded)
		assert.NotErrorIs(t, err, domain.ErrBlocked)
	}
}

func TestLoad_NoBackoffAfterFinalAttempt(t *testing.T) {
	pacer, rec := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(map[string][]string{"https://x.test/": {emptyPage}})

	policy := testPolicy()
	policy.MaxAttempts = 2
	_, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, policy)
	require.Error(t, err)

	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, time.Second}, rec.sleeps)
}

func TestLoad_Blocked(t *testing.T) {
	pacer, rec := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(map[string][]string{"https://x.test/": {captchaPage}})

	_, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, testPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBlocked)
	assert.ErrorIs(t, err, domain.ErrNotLoaded)
	assert.Equal(t, 3, sess.navigations("https://x.test/"))

	// blocked backoff grows: 10s, then 20s
	assert.Equal(t, []time.Duration{
		time.Second, 10 * time.Second,
		time.Second, 20 * time.Second,
		time.Second,
	}, rec.sleeps)
}

func TestLoad_BlockedThenReady(t *testing.T) {
	pacer, _ := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(map[string][]string{"https://x.test/": {captchaPage, readyPage}})

	doc, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, testPolicy())
	require.NoError(t, err)
	assert.True(t, hasBeacon(doc))
}

func TestLoad_MetaRobotsIsNotAChallenge(t *testing.T) {
	pacer, _ := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(map[string][]string{"https://x.test/": {robotsPage}})

	policy := testPolicy()
	policy.BlockMarkers = append(policy.BlockMarkers, "robot")

	_, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, policy)
	assert.NoError(t, err)
}

func TestLoad_NavigationErrorsCountAsAttempts(t *testing.T) {
	pacer, _ := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(nil)
	sess.navErr["https://x.test/"] = errBoom

	_, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, testPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, domain.ErrNotLoaded)
	assert.Len(t, sess.history, 3)
}

func TestLoad_ContextCancelled(t *testing.T) {
	pacer, _ := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(map[string][]string{"https://x.test/": {emptyPage}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := nav.Load(ctx, sess, "https://x.test/", hasBeacon, testPolicy())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, sess.history)
}

func TestLoad_ScrollsAfterReady(t *testing.T) {
	pacer, _ := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), "")
	sess := newFakeSession(map[string][]string{"https://x.test/": {readyPage}})

	policy := testPolicy()
	policy.ScrollSteps = 3

	_, err := nav.Load(context.Background(), sess, "https://x.test/", hasBeacon, policy)
	require.NoError(t, err)
	assert.Equal(t, 3, sess.scrolled)
}

func TestLoad_DumpsDebugArtifacts(t *testing.T) {
	dir := t.TempDir()
	pacer, _ := newTestPacer()
	nav := NewNavigator(pacer, zap.NewNop(), dir)
	nav.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	sess := newFakeSession(map[string][]string{"https://x.test/jobs": {emptyPage}})

	policy := testPolicy()
	policy.MaxAttempts = 1
	_, err := nav.Load(context.Background(), sess, "https://x.test/jobs", hasBeacon, policy)
	require.Error(t, err)

	html, err := os.ReadFile(filepath.Join(dir, "20240501T120000_x.test_jobs.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "spinner")

	_, err = os.Stat(filepath.Join(dir, "20240501T120000_x.test_jobs.png"))
	assert.NoError(t, err)
}

func TestBlockMarker(t *testing.T) {
	doc, err := NewDocument(captchaPage, "https://x.test/")
	require.NoError(t, err)

	m, ok := BlockMarker(doc, []string{"captcha", "Just a Moment"})
	assert.True(t, ok)
	assert.Equal(t, "just a moment", m)

	_, ok = BlockMarker(doc, nil)
	assert.False(t, ok)
}
