package scraper

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/openintern/backend/internal/domain"
)

// fakeElement is an in-memory Element whose children are keyed by locator value
type fakeElement struct {
	text     string
	attrs    map[string]string
	hidden   bool
	stale    bool
	children map[string][]*fakeElement
}

func (f *fakeElement) Find(loc Locator) ([]Element, error) {
	if f.stale {
		return nil, domain.ErrStaleReference
	}
	kids := f.children[loc.Value]
	out := make([]Element, 0, len(kids))
	for _, k := range kids {
		out = append(out, k)
	}
	return out, nil
}

func (f *fakeElement) Text() (string, error) {
	if f.stale {
		return "", domain.ErrStaleReference
	}
	return f.text, nil
}

func (f *fakeElement) Attr(name string) (string, bool, error) {
	if f.stale {
		return "", false, domain.ErrStaleReference
	}
	v, ok := f.attrs[name]
	return v, ok, nil
}

func (f *fakeElement) Visible() (bool, error) {
	if f.stale {
		return false, domain.ErrStaleReference
	}
	return !f.hidden, nil
}

// fakeSession serves canned HTML per URL. Each visit to a URL consumes the
// next page in its list; the last one repeats.
type fakeSession struct {
	mu       sync.Mutex
	pages    map[string][]string
	navErr   map[string]error
	visits   map[string]int
	current  string
	history  []string
	fills    map[string]string
	clicks   []string
	onClick  map[string]string
	closed   bool
	scrolled int
}

func newFakeSession(pages map[string][]string) *fakeSession {
	return &fakeSession{
		pages:   pages,
		navErr:  make(map[string]error),
		visits:  make(map[string]int),
		fills:   make(map[string]string),
		onClick: make(map[string]string),
	}
}

func (s *fakeSession) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, url)
	if err := s.navErr[url]; err != nil {
		return err
	}
	s.current = url
	s.visits[url]++
	return nil
}

func (s *fakeSession) Snapshot(_ context.Context) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.pages[s.current]
	if !ok || len(seq) == 0 {
		return NewDocument("<html><body></body></html>", s.current)
	}
	i := s.visits[s.current] - 1
	if i >= len(seq) {
		i = len(seq) - 1
	}
	if i < 0 {
		i = 0
	}
	return NewDocument(seq[i], s.current)
}

func (s *fakeSession) Scroll(_ context.Context, steps int) error {
	s.scrolled += steps
	return nil
}

func (s *fakeSession) Fill(_ context.Context, selector, value string) error {
	s.fills[selector] = value
	return nil
}

func (s *fakeSession) Click(_ context.Context, selector string) error {
	s.clicks = append(s.clicks, selector)
	if next, ok := s.onClick[selector]; ok {
		s.current = next
		s.visits[next]++
	}
	return nil
}

func (s *fakeSession) Screenshot(context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func (s *fakeSession) navigations(url string) int {
	n := 0
	for _, h := range s.history {
		if h == url {
			n++
		}
	}
	return n
}

type fakeFactory struct {
	sess  *fakeSession
	err   error
	calls int
}

func (f *fakeFactory) NewSession(context.Context) (Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sess, nil
}

// memStore is a Store backed by a slice per source
type memStore struct {
	records map[domain.JobSource][]domain.JobRecord
	err     error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[domain.JobSource][]domain.JobRecord)}
}

func (m *memStore) URLs(source domain.JobSource) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range m.records[source] {
		out[r.URL] = struct{}{}
	}
	return out
}

func (m *memStore) Commit(_ context.Context, source domain.JobSource, incoming []domain.JobRecord) (int, int, error) {
	if m.err != nil {
		return 0, len(m.records[source]), m.err
	}
	seen := m.URLs(source)
	added := 0
	for _, r := range incoming {
		if _, ok := seen[r.URL]; ok {
			continue
		}
		seen[r.URL] = struct{}{}
		m.records[source] = append(m.records[source], r)
		added++
	}
	return added, len(m.records[source]), nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.sleeps = append(s.sleeps, d)
	s.mu.Unlock()
	return ctx.Err()
}

func newTestPacer() (*Pacer, *sleepRecorder) {
	rec := &sleepRecorder{}
	return newPacer(0, rand.New(rand.NewPCG(1, 2)), rec.sleep), rec
}

var errBoom = errors.New("boom")
