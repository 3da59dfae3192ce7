package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobSource identifies the site a record was scraped from
type JobSource string

const (
	JobSourceIndeed    JobSource = "indeed"
	JobSourceLinkedIn  JobSource = "linkedin"
	JobSourceGlassdoor JobSource = "glassdoor"
	JobSourceWuzzuf    JobSource = "wuzzuf"
	JobSourceBayt      JobSource = "bayt"
	JobSourceJobzella  JobSource = "jobzella"
)

// DateLayout is the layout used for postedDate when the site gives none
const DateLayout = "2006-01-02"

// NotSpecified is stored for derived free-text fields that found nothing
const NotSpecified = "Not specified"

// Field is the outcome of resolving one logical field on a page.
// A zero Field means the field is unknown, which is expected data.
type Field struct {
	Value   string
	Present bool
}

// Found builds a present field
func Found(v string) Field {
	return Field{Value: v, Present: true}
}

// Ptr returns nil for an absent field so it encodes as JSON null
func (f Field) Ptr() *string {
	if !f.Present {
		return nil
	}
	v := f.Value
	return &v
}

// Or returns the field value, or def when absent
func (f Field) Or(def string) string {
	if !f.Present {
		return def
	}
	return f.Value
}

// Prefer returns f when present, otherwise other
func (f Field) Prefer(other Field) Field {
	if f.Present {
		return f
	}
	return other
}

// PartialRecord is what a listing card yields before detail enrichment
type PartialRecord struct {
	Title      Field
	Company    Field
	Location   Field
	Salary     Field
	Snippet    Field
	URL        Field
	PostedDate Field
	JobType    Field
}

// HasIdentity reports whether the card carries a title or a company.
// Cards with neither are dropped at extraction time.
func (p PartialRecord) HasIdentity() bool {
	return p.Title.Present || p.Company.Present
}

// DetailRecord is what a listing's own page yields
type DetailRecord struct {
	Description string
	Company     Field
	Location    Field
	PostedDate  Field
	JobType     Field
	Salary      Field
	IsPaid      bool
	IsRemote    bool
}

// JobRecord is the persisted unit of output.
// JSON keys follow the files written by earlier versions of the scrapers.
type JobRecord struct {
	URL                  string    `json:"url"`
	Title                string    `json:"title"`
	Company              string    `json:"company"`
	Location             *string   `json:"location"`
	PostedDate           string    `json:"postedDate"`
	JobType              string    `json:"jobType"`
	Salary               *string   `json:"salary"`
	DetailedRequirements string    `json:"detailed_requirements"`
	Skills               []string  `json:"skills"`
	IsPaid               bool      `json:"isPaid"`
	IsRemote             bool      `json:"isRemote"`
	Source               string    `json:"source"`
	ExperienceRequired   string    `json:"experience_required,omitempty"`
	EducationRequired    string    `json:"education_required,omitempty"`
	ScrapedAt            time.Time `json:"scrapedAt,omitzero"`
}

// Acceptable reports whether the record passes the required-field gate
func (r *JobRecord) Acceptable() bool {
	return strings.TrimSpace(r.URL) != "" &&
		strings.TrimSpace(r.Title) != "" &&
		strings.TrimSpace(r.Company) != ""
}

// HasSkill reports whether skill is among the record's skills (case-insensitive)
func (r *JobRecord) HasSkill(skill string) bool {
	skill = strings.ToLower(strings.TrimSpace(skill))
	for _, s := range r.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// ScrapeStatus represents the status of a scraping task
type ScrapeStatus string

const (
	ScrapeStatusQueued     ScrapeStatus = "queued"
	ScrapeStatusInProgress ScrapeStatus = "in_progress"
	ScrapeStatusCompleted  ScrapeStatus = "completed"
	ScrapeStatusFailed     ScrapeStatus = "failed"
)

// ScrapeTask represents a background scraping task
type ScrapeTask struct {
	ID         uuid.UUID    `json:"id"`
	Source     JobSource    `json:"source"`
	Pages      int          `json:"pages"`
	Status     ScrapeStatus `json:"status"`
	JobsFound  int          `json:"jobs_found"`
	JobsAdded  int          `json:"jobs_added"`
	Error      *string      `json:"error,omitempty"`
	StartedAt  *time.Time   `json:"started_at,omitempty"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Done reports whether the task reached a terminal status
func (t *ScrapeTask) Done() bool {
	return t.Status == ScrapeStatusCompleted || t.Status == ScrapeStatusFailed
}
