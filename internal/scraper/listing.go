package scraper

import (
	"errors"
	"net/url"

	"go.uber.org/zap"

	"github.com/openintern/backend/internal/domain"
)

// ListingStats counts what happened to the cards of one results page
type ListingStats struct {
	Found   int
	Kept    int
	Dropped int
	Stale   int
}

// ListingExtractor turns a results page into partial records
type ListingExtractor struct {
	logger *zap.Logger
}

// NewListingExtractor creates a listing extractor
func NewListingExtractor(logger *zap.Logger) *ListingExtractor {
	return &ListingExtractor{logger: logger}
}

// Extract enumerates the cards of src on page and resolves their fields.
// pageURL is used to absolutize links. Cards without title and company
// are dropped; a card that goes stale is skipped and the collection is
// looked up again before moving on.
func (e *ListingExtractor) Extract(page Element, pageURL string, src *Source) ([]domain.PartialRecord, ListingStats) {
	var stats ListingStats

	cards, loc, err := FindFirst(page, src.Listing)
	if err != nil {
		e.logger.Warn("Listing collection unavailable", zap.String("url", pageURL), zap.Error(err))
		return nil, stats
	}
	stats.Found = len(cards)
	if len(cards) == 0 {
		e.logger.Info("No listings on page", zap.String("url", pageURL))
		return nil, stats
	}

	e.logger.Debug("Found listing cards",
		zap.String("url", pageURL),
		zap.String("locator", loc.String()),
		zap.Int("count", len(cards)),
	)

	base, _ := url.Parse(pageURL)
	records := make([]domain.PartialRecord, 0, len(cards))

	for i := 0; i < len(cards); i++ {
		rec, err := buildPartial(cards[i], src.Card)
		if err != nil {
			if errors.Is(err, domain.ErrStaleReference) {
				stats.Stale++
				e.logger.Warn("Listing went stale, skipping", zap.Int("index", i), zap.Error(err))
				if fresh, _, ferr := FindFirst(page, src.Listing); ferr == nil && len(fresh) > 0 {
					cards = fresh
				}
				continue
			}
			stats.Dropped++
			e.logger.Warn("Failed to read listing", zap.Int("index", i), zap.Error(err))
			continue
		}

		if !rec.HasIdentity() {
			stats.Dropped++
			e.logger.Warn("Listing has neither title nor company, dropping",
				zap.String("url", pageURL),
				zap.Int("index", i),
			)
			continue
		}

		if rec.URL.Present {
			rec.URL = domain.Found(normalizeListingURL(base, rec.URL.Value, src.StripURLQuery))
		}

		records = append(records, rec)
	}

	stats.Kept = len(records)
	return records, stats
}

func buildPartial(card Element, chains CardChains) (domain.PartialRecord, error) {
	var rec domain.PartialRecord

	fields := []struct {
		dst   *domain.Field
		chain Chain
	}{
		{&rec.Title, chains.Title},
		{&rec.Company, chains.Company},
		{&rec.Location, chains.Location},
		{&rec.Salary, chains.Salary},
		{&rec.Snippet, chains.Snippet},
		{&rec.URL, chains.URL},
		{&rec.PostedDate, chains.PostedDate},
		{&rec.JobType, chains.JobType},
	}

	for _, f := range fields {
		v, err := Resolve(card, f.chain)
		if err != nil {
			return domain.PartialRecord{}, err
		}
		*f.dst = v
	}
	return rec, nil
}

func normalizeListingURL(base *url.URL, ref string, stripQuery bool) string {
	abs := AbsoluteURL(base, ref)
	if !stripQuery {
		return abs
	}
	u, err := url.Parse(abs)
	if err != nil {
		return abs
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
