package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openintern/backend/internal/domain"
)

func TestResolve_PriorityOrder(t *testing.T) {
	scope := &fakeElement{children: map[string][]*fakeElement{
		".a": {{text: "first"}},
		".b": {{text: "second"}},
	}}

	got, err := Resolve(scope, CSSChain(".a", ".b"))
	require.NoError(t, err)
	assert.Equal(t, domain.Found("first"), got)

	got, err = Resolve(scope, CSSChain(".missing", ".b", ".a"))
	require.NoError(t, err)
	assert.Equal(t, "second", got.Value)
}

func TestResolve_SkipsHiddenAndEmpty(t *testing.T) {
	scope := &fakeElement{children: map[string][]*fakeElement{
		".hidden": {{text: "ghost", hidden: true}},
		".blank":  {{text: "   "}},
		".real":   {{text: "Acme"}},
	}}

	got, err := Resolve(scope, CSSChain(".hidden", ".blank", ".real"))
	require.NoError(t, err)
	assert.Equal(t, "Acme", got.Value)
}

func TestResolve_LaterMatchOfSameLocator(t *testing.T) {
	scope := &fakeElement{children: map[string][]*fakeElement{
		".company":  {{text: "ghost", hidden: true}, {text: " "}, {text: "Initech"}},
		".fallback": {{text: "Fallback Co"}},
	}}

	got, err := Resolve(scope, CSSChain(".company", ".fallback"))
	require.NoError(t, err)
	assert.Equal(t, "Initech", got.Value, "a usable later match beats the next locator")

	scope.children[".company"] = []*fakeElement{{text: "ghost", hidden: true}}
	got, err = Resolve(scope, CSSChain(".company", ".fallback"))
	require.NoError(t, err)
	assert.Equal(t, "Fallback Co", got.Value)
}

func TestResolve_AbsentIsNotAnError(t *testing.T) {
	scope := &fakeElement{}

	got, err := Resolve(scope, CSSChain(".x", ".y", ".z"))
	require.NoError(t, err)
	assert.False(t, got.Present)
	assert.Nil(t, got.Ptr())
}

func TestResolve_Attribute(t *testing.T) {
	scope := &fakeElement{children: map[string][]*fakeElement{
		"a.nohref": {{text: "Apply"}},
		"a.job":    {{text: "Apply", attrs: map[string]string{"href": "/jobs/1"}}},
	}}

	got, err := Resolve(scope, CSSChain("a.nohref", "a.job").WithAttr("href"))
	require.NoError(t, err)
	assert.Equal(t, "/jobs/1", got.Value)
}

func TestResolve_StaleChildDisqualifiesLocator(t *testing.T) {
	scope := &fakeElement{children: map[string][]*fakeElement{
		".a": {{text: "gone", stale: true}},
		".b": {{text: "kept"}},
	}}

	got, err := Resolve(scope, CSSChain(".a", ".b"))
	require.NoError(t, err)
	assert.Equal(t, "kept", got.Value)
}

func TestResolve_StaleScope(t *testing.T) {
	scope := &fakeElement{stale: true}

	_, err := Resolve(scope, CSSChain(".a"))
	assert.ErrorIs(t, err, domain.ErrStaleReference)
}

func TestResolve_Snapshot(t *testing.T) {
	doc, err := NewDocument(`<html><body>
		<div class="card">
			<h2 class="title" style="display: none">Hidden Title</h2>
			<h2 class="jobTitle">  Backend&nbsp;Intern </h2>
			<span aria-hidden="true" class="company">Decoy</span>
			<div class="company-name">Acme <b>Labs</b></div>
			<a class="job-link" href="/viewjob?jk=1">Apply</a>
			<p id="loc">Cairo</p>
		</div>
	</body></html>`, "https://example.com/jobs?q=intern")
	require.NoError(t, err)

	title, err := Resolve(doc, CSSChain("h2.title", "h2.jobTitle"))
	require.NoError(t, err)
	assert.Equal(t, "Backend Intern", title.Value)

	company, err := Resolve(doc, CSSChain("span.company", ".company-name"))
	require.NoError(t, err)
	assert.Equal(t, "Acme Labs", company.Value)

	loc, err := Resolve(doc, Chain{ID("loc")})
	require.NoError(t, err)
	assert.Equal(t, "Cairo", loc.Value)

	byText, err := Resolve(doc, Chain{Text("labs")})
	require.NoError(t, err)
	assert.Equal(t, "Labs", byText.Value)

	link, err := Resolve(doc, Chain{Class("job-link").WithAttr("href")})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/viewjob?jk=1", AbsoluteURL(mustURL(t, doc.URL()), link.Value))
}
