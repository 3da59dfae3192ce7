package scraper

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

const baytDetail = `<html><body>
	<a class="is-company" href="/c/1">Acme Egypt</a>
	<span class="is-location">Cairo, Egypt</span>
	<time class="is-posted-date" datetime="2024-04-30">2 days ago</time>
	<div class="job-description">
		<p>This is a paid remote Python internship for students.</p>
	</div>
</body></html>`

func detailPolicy() LoadPolicy {
	return LoadPolicy{
		MaxAttempts: 3,
		Settle:      DelayRange{Min: time.Second, Max: time.Second},
		Backoff:     DelayRange{Min: 2 * time.Second, Max: 2 * time.Second},
	}
}

func TestFetch_ResolvesFields(t *testing.T) {
	pacer, _ := newTestPacer()
	f := NewDetailFetcher(NewNavigator(pacer, zap.NewNop(), ""), zap.NewNop())
	sess := newFakeSession(map[string][]string{"https://www.bayt.com/job/1": {baytDetail}})

	rec, err := f.Fetch(context.Background(), sess, "https://www.bayt.com/job/1", baytSource().Detail, detailPolicy())
	require.NoError(t, err)

	assert.Equal(t, "This is a paid remote Python internship for students.", rec.Description)
	assert.Equal(t, domain.Found("Acme Egypt"), rec.Company)
	assert.Equal(t, domain.Found("Cairo, Egypt"), rec.Location)
	assert.Equal(t, domain.Found("2024-04-30"), rec.PostedDate)
	assert.False(t, rec.JobType.Present)
	assert.True(t, rec.IsPaid)
	assert.True(t, rec.IsRemote)
}

func TestFetch_RetriesUntilDescription(t *testing.T) {
	pacer, _ := newTestPacer()
	f := NewDetailFetcher(NewNavigator(pacer, zap.NewNop(), ""), zap.NewNop())
	sess := newFakeSession(map[string][]string{
		"https://www.bayt.com/job/1": {`<html><body><div class="loading"></div></body></html>`, baytDetail},
	})

	rec, err := f.Fetch(context.Background(), sess, "https://www.bayt.com/job/1", baytSource().Detail, detailPolicy())
	require.NoError(t, err)
	assert.NotEmpty(t, rec.Description)
	assert.Equal(t, 2, sess.navigations("https://www.bayt.com/job/1"))
}

func TestFetch_MissingDescriptionFails(t *testing.T) {
	pacer, _ := newTestPacer()
	f := NewDetailFetcher(NewNavigator(pacer, zap.NewNop(), ""), zap.NewNop())
	sess := newFakeSession(map[string][]string{
		"https://www.bayt.com/job/1": {`<html><body><a class="is-company">Acme</a></body></html>`},
	})

	_, err := f.Fetch(context.Background(), sess, "https://www.bayt.com/job/1", baytSource().Detail, detailPolicy())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDetailFetchFailed)
	assert.ErrorIs(t, err, domain.ErrNotLoaded)
	assert.Equal(t, 3, sess.navigations("https://www.bayt.com/job/1"))
}
