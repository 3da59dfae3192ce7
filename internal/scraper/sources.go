package scraper

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/openintern/backend/internal/config"
	"github.com/openintern/backend/internal/domain"
)

// PaginationKind tells how a page index is encoded in the search URL
type PaginationKind string

const (
	// PaginateOffset encodes page i as i*PageSize
	PaginateOffset PaginationKind = "offset"
	// PaginatePage encodes page i as the 1-based number i+1
	PaginatePage PaginationKind = "page"
)

// Pagination describes one source's paging parameter
type Pagination struct {
	Kind     PaginationKind
	Param    string
	PageSize int
}

// Value returns the parameter value for the zero-based page index
func (p Pagination) Value(page int) string {
	if p.Kind == PaginateOffset {
		return strconv.Itoa(page * p.PageSize)
	}
	return strconv.Itoa(page + 1)
}

// CardChains locate the fields of one listing card
type CardChains struct {
	Title      Chain
	Company    Chain
	Location   Chain
	Salary     Chain
	Snippet    Chain
	URL        Chain
	PostedDate Chain
	JobType    Chain
}

// DetailChains locate the fields of a listing's own page
type DetailChains struct {
	Description Chain
	Company     Chain
	Location    Chain
	PostedDate  Chain
	JobType     Chain
	Salary      Chain
}

// LoginFlow signs a session in before searching
type LoginFlow struct {
	URL            string
	UserSelector   string
	PassSelector   string
	SubmitSelector string
	UserEnv        string
	PassEnv        string
}

// Source is the declarative description of one job site
type Source struct {
	ID   domain.JobSource
	Name string

	BaseURL    string
	Params     map[string]string
	QueryParam string
	Queries    []string
	Pagination Pagination

	// Ready matches either listings or an explicit no-results marker
	Ready   Chain
	Listing Chain
	Card    CardChains
	Detail  DetailChains

	DefaultJobType  string
	DefaultLocation string

	// TitleFilter, when set, drops cards whose title has none of the terms
	// before any detail page is fetched
	TitleFilter []string

	Login *LoginFlow

	// StopAfterFirstHit stops trying query variants once one accepted records
	StopAfterFirstHit bool
	StripURLQuery     bool
}

// SearchURL builds the results URL for query and zero-based page index
func (s *Source) SearchURL(query string, page int) string {
	u, err := url.Parse(s.BaseURL)
	if err != nil {
		return s.BaseURL
	}

	q := u.Query()
	for k, v := range s.Params {
		q.Set(k, v)
	}
	if s.QueryParam != "" {
		q.Set(s.QueryParam, query)
	}
	if s.Pagination.Param != "" {
		q.Set(s.Pagination.Param, s.Pagination.Value(page))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// NeedsLogin reports whether the source requires credentials
func (s *Source) NeedsLogin() bool {
	return s.Login != nil
}

// AcceptsTitle applies the optional title prefilter
func (s *Source) AcceptsTitle(title string) bool {
	if len(s.TitleFilter) == 0 {
		return true
	}
	title = strings.ToLower(title)
	for _, term := range s.TitleFilter {
		if strings.Contains(title, term) {
			return true
		}
	}
	return false
}

// WithOverrides returns a copy of s with the configured queries and params applied
func (s *Source) WithOverrides(o config.SourceConfig) *Source {
	cp := *s
	if len(o.Queries) > 0 {
		cp.Queries = append([]string(nil), o.Queries...)
	}
	if len(o.Params) > 0 {
		params := make(map[string]string, len(s.Params)+len(o.Params))
		for k, v := range s.Params {
			params[k] = v
		}
		for k, v := range o.Params {
			params[k] = v
		}
		cp.Params = params
	}
	return &cp
}

// Registry holds the known sources by ID
type Registry struct {
	sources map[domain.JobSource]*Source
}

// NewRegistry creates a registry holding the built-in sources, with
// per-source config overrides applied and disabled sources left out
func NewRegistry(overrides map[string]config.SourceConfig) *Registry {
	r := &Registry{sources: make(map[domain.JobSource]*Source)}
	for _, src := range builtinSources() {
		o, ok := overrides[string(src.ID)]
		if ok && o.Disabled {
			continue
		}
		if ok {
			src = src.WithOverrides(o)
		}
		r.Register(src)
	}
	return r
}

// Register adds a source to the registry
func (r *Registry) Register(s *Source) {
	r.sources[s.ID] = s
}

// Get retrieves a source by ID
func (r *Registry) Get(id domain.JobSource) (*Source, bool) {
	s, ok := r.sources[id]
	return s, ok
}

// All returns all registered sources ordered by ID
func (r *Registry) All() []*Source {
	out := make([]*Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func builtinSources() []*Source {
	return []*Source{
		indeedSource(),
		linkedInSource(),
		glassdoorSource(),
		wuzzufSource(),
		baytSource(),
		jobzellaSource(),
	}
}

func indeedSource() *Source {
	return &Source{
		ID:         domain.JobSourceIndeed,
		Name:       "Indeed",
		BaseURL:    "https://www.indeed.com/jobs",
		Params:     map[string]string{"l": "United States", "sort": "date", "fromage": "7", "radius": "50"},
		QueryParam: "q",
		Queries: []string{
			"internship",
			"internship entry level",
			"internship junior",
			"internship student",
			"internship graduate",
		},
		Pagination: Pagination{Kind: PaginateOffset, Param: "start", PageSize: 10},
		Ready:      CSSChain("div.job_seen_beacon", "div.no_results"),
		Listing:    CSSChain("div.job_seen_beacon", "div.jobsearch-SerpJobCard", "div.result"),
		Card: CardChains{
			Title:      CSSChain("h2.jobTitle", "h2.job-title", "h2.title"),
			Company:    CSSChain("span.companyName", ".company-name", "div.company", "[data-testid='company-name']"),
			Location:   CSSChain("div.companyLocation", "div.location", "span.location", "[data-testid='text-location']"),
			Salary:     CSSChain("div.salary-snippet", "div.salary", "span.salary"),
			Snippet:    CSSChain("div.job-snippet", "div.summary", "div.description"),
			URL:        CSSChain("a.jcs-JobTitle", "a.job-link", "a.title", "h2 a").WithAttr("href"),
			PostedDate: CSSChain("span.date", "span.posted-date", "div.date"),
			JobType:    CSSChain("div.metadata", "div.job-type", "span.job-type"),
		},
		Detail: DetailChains{
			Description: CSSChain("#jobDescriptionText", "div.jobsearch-jobDescriptionText", "div.job-description"),
			Company:     CSSChain("[data-company-name]", "div.jobsearch-CompanyInfoContainer a", ".jobsearch-InlineCompanyRating div"),
			Location:    CSSChain("[data-testid='inlineHeader-companyLocation']", "div.jobsearch-JobInfoHeader-subtitle div:last-child"),
			Salary:      CSSChain("#salaryInfoAndJobType span", "div.jobsearch-JobMetadataHeader-item"),
			JobType:     CSSChain("#salaryInfoAndJobType span:last-child"),
		},
		DefaultJobType:    "Internship",
		StopAfterFirstHit: true,
	}
}

func linkedInSource() *Source {
	return &Source{
		ID:      domain.JobSourceLinkedIn,
		Name:    "LinkedIn",
		BaseURL: "https://www.linkedin.com/jobs/search/",
		Params: map[string]string{
			"location": "Egypt",
			"f_E":      "1",
			"f_JT":     "I",
			"sortBy":   "DD",
		},
		QueryParam: "keywords",
		Queries:    []string{"tech intern OR technology internship OR software intern OR software engineer intern"},
		Pagination: Pagination{Kind: PaginateOffset, Param: "start", PageSize: 25},
		Ready:      CSSChain(".job-card-container", ".jobs-search-no-results-banner"),
		Listing:    CSSChain(".job-card-container", "li.jobs-search-results__list-item"),
		Card: CardChains{
			Title:      CSSChain(".job-card-list__title", ".job-card-container__link"),
			Company:    CSSChain(".job-card-container__company-name", ".job-card-container__primary-description", ".artdeco-entity-lockup__subtitle"),
			Location:   CSSChain(".job-card-container__metadata-item", ".artdeco-entity-lockup__caption"),
			URL:        CSSChain(".job-card-list__title", ".job-card-container__link").WithAttr("href"),
			PostedDate: Chain{CSS("time").WithAttr("datetime"), CSS("time")},
		},
		Detail: DetailChains{
			Description: CSSChain(".show-more-less-html__markup", ".jobs-description__content", "#job-details"),
			Company:     CSSChain(".jobs-unified-top-card__company-name", ".job-details-jobs-unified-top-card__company-name"),
			Location:    CSSChain(".jobs-unified-top-card__bullet"),
			JobType:     CSSChain(".jobs-unified-top-card__job-insight span"),
		},
		DefaultJobType: "Internship",
		Login: &LoginFlow{
			URL:            "https://www.linkedin.com/login",
			UserSelector:   "#username",
			PassSelector:   "#password",
			SubmitSelector: "button[type='submit']",
			UserEnv:        "LINKEDIN_EMAIL",
			PassEnv:        "LINKEDIN_PASSWORD",
		},
		StripURLQuery: true,
	}
}

func glassdoorSource() *Source {
	return &Source{
		ID:         domain.JobSourceGlassdoor,
		Name:       "Glassdoor",
		BaseURL:    "https://www.glassdoor.com/Job/egypt-software-intern-jobs-SRCH_IL.0,5_IN69_KO6,21.htm",
		Queries:    []string{""},
		Pagination: Pagination{Kind: PaginatePage, Param: "p"},
		Ready:      CSSChain("[data-test='jobsList']", "[data-test='job-link']", "[data-test='no-results']"),
		Listing:    CSSChain("[data-test='jobsList'] > li", "li.react-job-listing", "article"),
		Card: CardChains{
			Title:    CSSChain("a[data-test='job-link']", "a.jobLink", ".job-title", "h2.jobTitle", "[data-test='job-title']"),
			Company:  CSSChain("[data-test='employer-name']", ".employer-name", ".jobEmployer", ".companyName"),
			Location: CSSChain("[data-test='location']", ".location", ".job-location", ".loc"),
			Salary:   CSSChain("[data-test='detailSalary']", ".salary-estimate"),
			URL:      CSSChain("a[data-test='job-link']", "a.jobLink", "a[href*='/job-listing/']").WithAttr("href"),
		},
		Detail: DetailChains{
			Description: CSSChain(".jobDescriptionContent", "#JobDesc", ".job-description", "[data-test='job-description']"),
			Company:     CSSChain("[data-test='employer-name']", ".employerName"),
			Location:    CSSChain("[data-test='location']", ".location"),
			Salary:      CSSChain("[data-test='detailSalary']"),
		},
		DefaultJobType:  "Internship",
		DefaultLocation: "Egypt",
	}
}

func wuzzufSource() *Source {
	return &Source{
		ID:         domain.JobSourceWuzzuf,
		Name:       "Wuzzuf",
		BaseURL:    "https://wuzzuf.net/search/jobs/",
		Params:     map[string]string{"a": "navbg"},
		QueryParam: "q",
		Queries:    []string{"internship software developer engineer programming computer science"},
		Pagination: Pagination{Kind: PaginateOffset, Param: "start", PageSize: 15},
		Ready:      CSSChain(".css-1gatmva", ".css-1q7g5aa"),
		Listing:    CSSChain(".css-1gatmva", ".css-1q7g5aa"),
		Card: CardChains{
			Title: CSSChain("h2"),
			URL:   CSSChain("h2 a").WithAttr("href"),
		},
		Detail: DetailChains{
			Description: CSSChain(".css-1uobp1k", ".job-description", ".css-1t5f0fr"),
			Company:     CSSChain(".css-17s97q8", ".css-u1gwks a"),
			Location:    CSSChain(".css-9geu3q", ".css-md7z0h"),
			PostedDate:  CSSChain(".css-182mrdn", ".css-do6t5g"),
		},
		DefaultJobType:  "Tech Internship",
		DefaultLocation: "Egypt",
	}
}

func baytSource() *Source {
	return &Source{
		ID:         domain.JobSourceBayt,
		Name:       "Bayt",
		BaseURL:    "https://www.bayt.com/en/egypt/jobs/",
		Params:     map[string]string{"jobTypes": "2"},
		QueryParam: "q",
		Queries:    []string{"intern OR internship"},
		Pagination: Pagination{Kind: PaginatePage, Param: "page"},
		Ready:      CSSChain("li.has-pointer-d", "#results_inner_card", ".is-empty"),
		Listing:    CSSChain("li.has-pointer-d"),
		Card: CardChains{
			Title:    CSSChain("h2.m0", "h2"),
			Company:  CSSChain("a.is-company", ".job-company-location-wrapper a"),
			Location: CSSChain("span.is-location", ".job-company-location-wrapper span"),
			URL:      CSSChain("h2.m0 a", "h2 a").WithAttr("href"),
		},
		Detail: DetailChains{
			Description: CSSChain(".job-description", "#job_description", ".card-content.is-spaced"),
			Company:     CSSChain("a.is-company"),
			Location:    CSSChain("span.is-location"),
			PostedDate:  Chain{CSS("time.is-posted-date").WithAttr("datetime"), CSS("time.is-posted-date")},
		},
		DefaultJobType: "Internship",
		TitleFilter: []string{
			"software", "developer", "engineer", "tech", "it", "data", "web",
			"mobile", "frontend", "backend", "fullstack", "programming",
		},
	}
}

func jobzellaSource() *Source {
	return &Source{
		ID:         domain.JobSourceJobzella,
		Name:       "Jobzella",
		BaseURL:    "https://www.jobzella.com/en/jobs",
		Params:     map[string]string{"country": "Egypt"},
		QueryParam: "keywords",
		Queries:    []string{"internship software developer engineer"},
		Pagination: Pagination{Kind: PaginatePage, Param: "page"},
		Ready:      CSSChain(".job-card", ".no-jobs", ".empty-state"),
		Listing:    CSSChain(".job-card"),
		Card: CardChains{
			Title:    CSSChain(".job-title"),
			Company:  CSSChain(".company-name"),
			Location: CSSChain(".job-location"),
			URL:      Chain{CSS(".job-title").WithAttr("href"), CSS(".job-title a").WithAttr("href"), CSS("a").WithAttr("href")},
		},
		Detail: DetailChains{
			Description: CSSChain(".job-description"),
			Company:     CSSChain(".company-name"),
			Location:    CSSChain(".job-location"),
			PostedDate:  CSSChain(".job-date"),
			JobType:     CSSChain(".job-type"),
			Salary:      CSSChain(".job-salary"),
		},
		DefaultJobType: "Internship",
	}
}
