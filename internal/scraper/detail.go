package scraper

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/openintern/backend/internal/classifier"
	"github.com/openintern/backend/internal/domain"
)

// DetailFetcher loads a listing's own page and reads its long-form fields
type DetailFetcher struct {
	nav    *Navigator
	logger *zap.Logger
}

// NewDetailFetcher creates a detail fetcher on top of nav
func NewDetailFetcher(nav *Navigator, logger *zap.Logger) *DetailFetcher {
	return &DetailFetcher{nav: nav, logger: logger}
}

// Fetch loads listingURL until its description resolves. Any failure is
// reported as domain.ErrDetailFetchFailed and the listing should be discarded.
func (f *DetailFetcher) Fetch(ctx context.Context, sess Session, listingURL string, chains DetailChains, policy LoadPolicy) (*domain.DetailRecord, error) {
	hasDescription := func(doc *Document) bool {
		v, err := Resolve(doc, chains.Description)
		return err == nil && v.Present
	}

	doc, err := f.nav.Load(ctx, sess, listingURL, hasDescription, policy)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrDetailFetchFailed, listingURL, err)
	}

	rec, err := readDetail(doc, chains)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrDetailFetchFailed, listingURL, err)
	}

	f.logger.Debug("Fetched listing detail",
		zap.String("url", listingURL),
		zap.Int("description_length", len(rec.Description)),
	)
	return rec, nil
}

func readDetail(page Element, chains DetailChains) (*domain.DetailRecord, error) {
	desc, err := Resolve(page, chains.Description)
	if err != nil {
		return nil, err
	}
	if !desc.Present {
		return nil, fmt.Errorf("description not found")
	}

	rec := &domain.DetailRecord{
		Description: desc.Value,
		IsPaid:      classifier.IsPaid(desc.Value),
		IsRemote:    classifier.IsRemote(desc.Value),
	}

	fields := []struct {
		dst   *domain.Field
		chain Chain
	}{
		{&rec.Company, chains.Company},
		{&rec.Location, chains.Location},
		{&rec.PostedDate, chains.PostedDate},
		{&rec.JobType, chains.JobType},
		{&rec.Salary, chains.Salary},
	}
	for _, fl := range fields {
		v, err := Resolve(page, fl.chain)
		if err != nil {
			return nil, err
		}
		*fl.dst = v
	}
	return rec, nil
}
