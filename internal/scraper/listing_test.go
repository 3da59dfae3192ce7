package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

const indeedResults = `<html><body>
<div class="job_seen_beacon">
	<h2 class="jobTitle"><a class="jcs-JobTitle" href="/viewjob?jk=a1&from=serp">Software Engineering Intern</a></h2>
	<span class="companyName">Acme</span>
	<div class="companyLocation">Remote</div>
	<div class="job-snippet">Python and SQL</div>
</div>
<div class="job_seen_beacon">
	<h2 class="jobTitle"><a class="jcs-JobTitle" href="/viewjob?jk=b2">Data Intern</a></h2>
	<div class="company">Globex</div>
</div>
<div class="job_seen_beacon">
	<div class="companyLocation">Nowhere</div>
</div>
</body></html>`

func TestExtract_Snapshot(t *testing.T) {
	doc, err := NewDocument(indeedResults, "https://www.indeed.com/jobs?q=intern")
	require.NoError(t, err)

	recs, stats := NewListingExtractor(zap.NewNop()).Extract(doc, doc.URL(), indeedSource())

	assert.Equal(t, ListingStats{Found: 3, Kept: 2, Dropped: 1}, stats)
	require.Len(t, recs, 2)

	assert.Equal(t, "Software Engineering Intern", recs[0].Title.Value)
	assert.Equal(t, "Acme", recs[0].Company.Value)
	assert.Equal(t, "Remote", recs[0].Location.Value)
	assert.Equal(t, "Python and SQL", recs[0].Snippet.Value)
	assert.Equal(t, "https://www.indeed.com/viewjob?jk=a1&from=serp", recs[0].URL.Value)
	assert.False(t, recs[0].Salary.Present)

	assert.Equal(t, "Globex", recs[1].Company.Value)
	assert.False(t, recs[1].Location.Present)
}

func TestExtract_FallsThroughListingLocators(t *testing.T) {
	doc, err := NewDocument(`<html><body>
		<div class="result"><h2 class="title">QA Intern</h2><span class="companyName">Initech</span></div>
	</body></html>`, "https://www.indeed.com/jobs")
	require.NoError(t, err)

	recs, stats := NewListingExtractor(zap.NewNop()).Extract(doc, doc.URL(), indeedSource())
	assert.Equal(t, 1, stats.Found)
	require.Len(t, recs, 1)
	assert.Equal(t, "QA Intern", recs[0].Title.Value)
}

func TestExtract_NoListings(t *testing.T) {
	doc, err := NewDocument(`<html><body><div class="no_results">Nothing</div></body></html>`, "https://www.indeed.com/jobs")
	require.NoError(t, err)

	recs, stats := NewListingExtractor(zap.NewNop()).Extract(doc, doc.URL(), indeedSource())
	assert.Empty(t, recs)
	assert.Zero(t, stats.Found)
}

func TestExtract_UnresolvedFieldBecomesNull(t *testing.T) {
	src := &Source{
		Listing: CSSChain(".card"),
		Card: CardChains{
			Title:    CSSChain(".title"),
			Company:  CSSChain(".company"),
			Location: CSSChain(".x", ".y", ".z"),
		},
	}
	page := &fakeElement{children: map[string][]*fakeElement{
		".card": {{children: map[string][]*fakeElement{
			".title":   {{text: "Backend Intern"}},
			".company": {{text: "Acme"}},
		}}},
	}}

	recs, stats := NewListingExtractor(zap.NewNop()).Extract(page, "https://x.test/", src)
	require.Len(t, recs, 1)
	assert.Equal(t, 1, stats.Kept)
	assert.False(t, recs[0].Location.Present)
	assert.Nil(t, recs[0].Location.Ptr())
}

func TestExtract_StaleListingSkipped(t *testing.T) {
	src := &Source{
		Listing: CSSChain(".card"),
		Card: CardChains{
			Title: CSSChain(".title"),
		},
	}
	card := func(title string) *fakeElement {
		return &fakeElement{children: map[string][]*fakeElement{".title": {{text: title}}}}
	}
	stale := &fakeElement{stale: true}
	page := &fakeElement{children: map[string][]*fakeElement{
		".card": {card("One"), stale, card("Three")},
	}}

	recs, stats := NewListingExtractor(zap.NewNop()).Extract(page, "https://x.test/", src)

	assert.Equal(t, 1, stats.Stale)
	require.Len(t, recs, 2)
	assert.Equal(t, "One", recs[0].Title.Value)
	assert.Equal(t, "Three", recs[1].Title.Value)
}

func TestExtract_StripsQueryWhenConfigured(t *testing.T) {
	doc, err := NewDocument(`<html><body>
		<div class="job-card-container">
			<a class="job-card-list__title" href="/jobs/view/42/?refId=abc&trackingId=xyz">Software Intern</a>
			<span class="job-card-container__company-name">Acme</span>
		</div>
	</body></html>`, "https://www.linkedin.com/jobs/search/?keywords=intern")
	require.NoError(t, err)

	recs, _ := NewListingExtractor(zap.NewNop()).Extract(doc, doc.URL(), linkedInSource())
	require.Len(t, recs, 1)
	assert.Equal(t, domain.Found("https://www.linkedin.com/jobs/view/42/"), recs[0].URL)
}
