package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/openintern/backend/internal/classifier"
	"github.com/openintern/backend/internal/config"
	"github.com/openintern/backend/internal/domain"
)

// Store persists accepted records per source
type Store interface {
	URLs(source domain.JobSource) map[string]struct{}
	Commit(ctx context.Context, source domain.JobSource, incoming []domain.JobRecord) (added, total int, err error)
}

// Mirror receives a copy of newly accepted records
type Mirror interface {
	Mirror(ctx context.Context, source domain.JobSource, records []domain.JobRecord) (int, error)
}

// SeenCache remembers listing URLs already persisted by earlier runs
type SeenCache interface {
	Has(ctx context.Context, source domain.JobSource, url string) (bool, error)
	Add(ctx context.Context, source domain.JobSource, urls ...string) error
}

// RunOptions tunes one Runner
type RunOptions struct {
	Search    LoadPolicy
	Detail    LoadPolicy
	PageDelay DelayRange
	SkipKnown bool
}

// OptionsFromConfig maps the scrape config onto run options
func OptionsFromConfig(cfg config.ScrapeConfig) RunOptions {
	return RunOptions{
		Search: LoadPolicy{
			MaxAttempts:    cfg.MaxAttempts,
			Settle:         cfg.SettleDelay,
			Backoff:        cfg.Backoff,
			BlockedBackoff: cfg.BlockedBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BlockMarkers:   cfg.BlockMarkers,
			ScrollSteps:    cfg.ScrollSteps,
		},
		Detail: LoadPolicy{
			MaxAttempts:    cfg.DetailAttempts,
			Settle:         cfg.DetailSettle,
			Backoff:        cfg.DetailBackoff,
			BlockedBackoff: cfg.BlockedBackoff,
			MaxBackoff:     cfg.MaxBackoff,
			BlockMarkers:   cfg.BlockMarkers,
		},
		PageDelay: cfg.PageDelay,
		SkipKnown: cfg.SkipKnown,
	}
}

// RunnerDeps are the collaborators of a Runner. Mirror, Seen and
// Credentials are optional.
type RunnerDeps struct {
	Sessions    SessionFactory
	Store       Store
	Mirror      Mirror
	Seen        SeenCache
	Credentials CredentialLookup
	Pacer       *Pacer
	Logger      *zap.Logger
	DebugDir    string
}

// Runner drives the search, extract, enrich, classify, persist loop for one source
type Runner struct {
	sessions SessionFactory
	store    Store
	mirror   Mirror
	seen     SeenCache
	creds    CredentialLookup
	pacer    *Pacer
	nav      *Navigator
	listing  *ListingExtractor
	detail   *DetailFetcher
	logger   *zap.Logger
	opts     RunOptions
	now      func() time.Time
}

// NewRunner creates a runner
func NewRunner(deps RunnerDeps, opts RunOptions) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pacer := deps.Pacer
	if pacer == nil {
		pacer = NewPacer(0)
	}
	creds := deps.Credentials
	if creds == nil {
		creds = func(string) string { return "" }
	}

	nav := NewNavigator(pacer, logger, deps.DebugDir)
	return &Runner{
		sessions: deps.Sessions,
		store:    deps.Store,
		mirror:   deps.Mirror,
		seen:     deps.Seen,
		creds:    creds,
		pacer:    pacer,
		nav:      nav,
		listing:  NewListingExtractor(logger),
		detail:   NewDetailFetcher(nav, logger),
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// RunResult summarizes one run
type RunResult struct {
	RunID  string           `json:"run_id"`
	Source domain.JobSource `json:"source"`

	Pages        int `json:"pages"`
	PagesFailed  int `json:"pages_failed"`
	Blocked      int `json:"blocked"`
	Listings     int `json:"listings"`
	Dropped      int `json:"dropped"`
	Stale        int `json:"stale"`
	Known        int `json:"known"`
	Filtered     int `json:"filtered"`
	DetailFailed int `json:"detail_failed"`
	Rejected     int `json:"rejected"`
	Irrelevant   int `json:"irrelevant"`
	Accepted     int `json:"accepted"`
	Added        int `json:"added"`
	Total        int `json:"total"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// Duration returns the run duration
func (r *RunResult) Duration() time.Duration {
	return r.EndTime.Sub(r.StartTime)
}

// Run scrapes up to pages result pages per query variant of src and merges
// accepted records into the store. Only a missing credential or a session
// that cannot be prepared fails the run; everything else is logged, counted
// and skipped. On cancellation the records gathered so far are still committed.
func (r *Runner) Run(ctx context.Context, src *Source, pages int) (*RunResult, error) {
	result := &RunResult{
		RunID:     uuid.New().String(),
		Source:    src.ID,
		StartTime: r.now(),
	}
	log := r.logger.With(zap.String("run_id", result.RunID), zap.String("source", string(src.ID)))

	var creds Credentials
	if src.NeedsLogin() {
		c, err := src.Login.ResolveCredentials(src.ID, r.creds)
		if err != nil {
			log.Error("Missing credentials, aborting run", zap.Error(err))
			result.EndTime = r.now()
			return result, err
		}
		creds = c
	}

	sess, err := r.sessions.NewSession(ctx)
	if err != nil {
		result.EndTime = r.now()
		if !errors.Is(err, domain.ErrSessionInit) {
			err = errors.Join(domain.ErrSessionInit, err)
		}
		return result, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("Failed to close session", zap.Error(cerr))
		}
	}()

	if src.NeedsLogin() {
		if err := r.login(ctx, sess, src, creds, log); err != nil {
			log.Error("Login failed, aborting run", zap.Error(err))
			result.EndTime = r.now()
			return result, err
		}
	}

	log.Info("Starting scrape",
		zap.Int("pages", pages),
		zap.Int("queries", len(src.Queries)),
	)

	known := r.store.URLs(src.ID)
	accepted := r.collect(ctx, sess, src, pages, known, result, log)
	result.Accepted = len(accepted)

	// Persist whatever was gathered, even when the run was interrupted
	persistCtx := context.WithoutCancel(ctx)
	added, total, err := r.store.Commit(persistCtx, src.ID, accepted)
	if err != nil {
		log.Error("Failed to persist records", zap.Error(err))
	}
	result.Added = added
	result.Total = total

	r.mirrorRecords(persistCtx, src.ID, accepted, log)

	result.EndTime = r.now()
	log.Info("Scrape completed",
		zap.Int("pages", result.Pages),
		zap.Int("pages_failed", result.PagesFailed),
		zap.Int("listings", result.Listings),
		zap.Int("accepted", result.Accepted),
		zap.Int("added", result.Added),
		zap.Int("total", result.Total),
		zap.Duration("duration", result.Duration()),
	)

	if ctx.Err() != nil {
		return result, ctx.Err()
	}
	return result, err
}

func (r *Runner) collect(ctx context.Context, sess Session, src *Source, pages int, known map[string]struct{}, result *RunResult, log *zap.Logger) []domain.JobRecord {
	var accepted []domain.JobRecord
	visited := make(map[string]struct{})

	ready := func(doc *Document) bool {
		return doc.Exists(src.Ready) || doc.Exists(src.Listing)
	}

	for _, query := range src.Queries {
		before := len(accepted)

		for page := 0; page < pages; page++ {
			if ctx.Err() != nil {
				return accepted
			}

			pageURL := src.SearchURL(query, page)
			qlog := log.With(zap.String("query", query), zap.Int("page", page+1))
			result.Pages++

			doc, err := r.nav.Load(ctx, sess, pageURL, ready, r.opts.Search)
			if err != nil {
				if ctx.Err() != nil {
					return accepted
				}
				result.PagesFailed++
				if errors.Is(err, domain.ErrBlocked) {
					result.Blocked++
				}
				qlog.Warn("Skipping page", zap.String("url", pageURL), zap.Error(err))
				continue
			}

			partials, stats := r.listing.Extract(doc, doc.URL(), src)
			result.Listings += stats.Found
			result.Dropped += stats.Dropped
			result.Stale += stats.Stale

			if stats.Found == 0 {
				qlog.Info("No more listings for query")
				break
			}

			for _, p := range partials {
				if ctx.Err() != nil {
					return accepted
				}
				rec, ok := r.enrich(ctx, sess, src, p, known, visited, result, qlog)
				if ok {
					accepted = append(accepted, rec)
				}
			}

			qlog.Info("Page processed",
				zap.Int("cards", stats.Found),
				zap.Int("accepted_total", len(accepted)),
			)

			if page < pages-1 {
				if err := r.pacer.Wait(ctx, r.opts.PageDelay); err != nil {
					return accepted
				}
			}
		}

		if src.StopAfterFirstHit && len(accepted) > before {
			log.Info("Query produced results, skipping remaining variants",
				zap.String("query", query),
				zap.Int("accepted", len(accepted)-before),
			)
			break
		}
	}
	return accepted
}

// enrich runs one partial record through detail fetch, gating and classification
func (r *Runner) enrich(ctx context.Context, sess Session, src *Source, p domain.PartialRecord, known, visited map[string]struct{}, result *RunResult, log *zap.Logger) (domain.JobRecord, bool) {
	if !p.URL.Present {
		result.Dropped++
		log.Debug("Listing has no link", zap.String("title", p.Title.Value))
		return domain.JobRecord{}, false
	}
	link := p.URL.Value

	if _, dup := visited[link]; dup {
		return domain.JobRecord{}, false
	}
	visited[link] = struct{}{}

	if r.opts.SkipKnown && r.isKnown(ctx, src.ID, link, known) {
		result.Known++
		return domain.JobRecord{}, false
	}

	if p.Title.Present && !src.AcceptsTitle(p.Title.Value) {
		result.Filtered++
		log.Debug("Title outside source filter", zap.String("title", p.Title.Value))
		return domain.JobRecord{}, false
	}

	detail, err := r.detail.Fetch(ctx, sess, link, src.Detail, r.opts.Detail)
	if err != nil {
		if ctx.Err() == nil {
			result.DetailFailed++
			log.Warn("Discarding listing", zap.String("url", link), zap.Error(err))
		}
		return domain.JobRecord{}, false
	}

	rec := BuildRecord(src, p, detail, r.now())
	if !rec.Acceptable() {
		result.Rejected++
		log.Warn("Record missing title or company, rejecting", zap.String("url", link))
		return domain.JobRecord{}, false
	}

	verdict := classifier.Classify(rec.Title, rec.DetailedRequirements)
	if !verdict.Relevant {
		result.Irrelevant++
		log.Debug("Not a tech internship",
			zap.String("title", rec.Title),
			zap.Bool("internship", verdict.Internship),
			zap.Bool("tech", verdict.Tech),
		)
		return domain.JobRecord{}, false
	}

	log.Info("Accepted listing", zap.String("title", rec.Title), zap.String("company", rec.Company))
	return rec, true
}

func (r *Runner) isKnown(ctx context.Context, source domain.JobSource, link string, known map[string]struct{}) bool {
	if _, ok := known[link]; ok {
		return true
	}
	if r.seen == nil {
		return false
	}
	ok, err := r.seen.Has(ctx, source, link)
	if err != nil {
		r.logger.Debug("Seen cache lookup failed", zap.Error(err))
		return false
	}
	return ok
}

func (r *Runner) mirrorRecords(ctx context.Context, source domain.JobSource, records []domain.JobRecord, log *zap.Logger) {
	if len(records) == 0 {
		return
	}

	if r.mirror != nil {
		n, err := r.mirror.Mirror(ctx, source, records)
		if err != nil {
			log.Warn("Database mirror failed", zap.Error(err))
		} else {
			log.Debug("Mirrored records", zap.Int("inserted", n))
		}
	}

	if r.seen != nil {
		urls := make([]string, 0, len(records))
		for _, rec := range records {
			urls = append(urls, rec.URL)
		}
		if err := r.seen.Add(ctx, source, urls...); err != nil {
			log.Warn("Seen cache update failed", zap.Error(err))
		}
	}
}

// BuildRecord merges card and detail fields into the persisted shape.
// Detail values win over card values.
func BuildRecord(src *Source, p domain.PartialRecord, d *domain.DetailRecord, now time.Time) domain.JobRecord {
	location := d.Location.Prefer(p.Location)
	if !location.Present && src.DefaultLocation != "" {
		location = domain.Found(src.DefaultLocation)
	}

	return domain.JobRecord{
		URL:                  p.URL.Value,
		Title:                p.Title.Value,
		Company:              d.Company.Prefer(p.Company).Value,
		Location:             location.Ptr(),
		PostedDate:           d.PostedDate.Prefer(p.PostedDate).Or(now.Format(domain.DateLayout)),
		JobType:              d.JobType.Prefer(p.JobType).Or(src.DefaultJobType),
		Salary:               d.Salary.Prefer(p.Salary).Ptr(),
		DetailedRequirements: d.Description,
		Skills:               classifier.ExtractSkills(d.Description),
		IsPaid:               d.IsPaid,
		IsRemote:             d.IsRemote,
		Source:               src.Name,
		ExperienceRequired:   classifier.ExperienceRequired(d.Description),
		EducationRequired:    classifier.EducationRequired(d.Description),
		ScrapedAt:            now.UTC(),
	}
}
