// Package classifier decides whether a posting is a tech internship and
// derives skills and flags from its free text.
//
// All matching is case-insensitive substring containment. Postings are
// inconsistently formatted, so recall wins over precision: "java" also
// matches inside "javascript".
package classifier

import (
	"regexp"
	"strings"

	"github.com/openintern/backend/internal/domain"
)

var internshipTerms = []string{
	"intern", "internship", "trainee", "training program",
}

var techRoleTerms = []string{
	// development
	"software", "developer", "web", "frontend", "front end", "front-end",
	"backend", "back end", "back-end", "full stack", "fullstack",
	"mobile", "ios", "android", "flutter", "react native",
	// engineering
	"engineer", "engineering", "devops", "reliability", "systems",
	"cloud", "infrastructure", "platform", "security",
	// data
	"data", "machine learning", "ml", "ai", "artificial intelligence",
	"deep learning", "nlp", "data science", "analytics",
	// domains
	"computer science", "programming", "coding", "software development",
	"application development", "tech", "it", "information technology",
	// quality
	"qa engineer", "quality assurance", "test automation", "sdet",
}

var techSkillTerms = []string{
	"python", "java", "javascript", "typescript", "c++", "c#",
	"php", "ruby", "swift", "kotlin", "rust", "golang",
	"sql", "mysql", "postgresql", "mongodb", "database",
	"react", "angular", "vue", "node", "express", "django",
	"flask", "spring", "asp.net", ".net core",
	"aws", "azure", "gcp", "cloud computing",
	"docker", "kubernetes", "jenkins", "ci/cd",
	"git", "github", "gitlab", "bitbucket",
	"rest api", "graphql", "microservices",
	"html", "css", "sass", "less", "bootstrap",
	"junit", "pytest", "selenium", "cypress",
}

// skillVocabulary is the fixed set skills are drawn from. Result order
// follows this slice.
var skillVocabulary = []string{
	"python", "java", "javascript", "react", "angular", "vue", "node",
	"sql", "mysql", "postgresql", "mongodb", "aws", "azure", "git",
	"docker", "kubernetes", "html", "css", "php", "c++", "c#",
	"machine learning", "data science", "flutter", "swift",
	"kotlin", "android", "ios", "spring", "django", "flask",
	".net", "typescript", "ruby", "rust", "golang", "scala",
	"hadoop", "spark", "tableau", "power bi", "excel",
	"tensorflow", "pytorch", "opencv", "unity", "unreal",
}

var paidTerms = []string{"paid", "salary", "compensation", "stipend", "egp", "usd"}

var remoteTerms = []string{"remote", "work from home", "wfh", "virtual"}

var (
	experienceRe = regexp.MustCompile(`(\d+[-\s]?\d*\s*(?:year|yr)s?|no experience|fresh graduate|entry level)`)
	educationRe  = regexp.MustCompile(`(bachelor|master|phd|degree|student|undergraduate)`)
)

// Result is the outcome of classifying one posting
type Result struct {
	Relevant   bool
	Internship bool
	Tech       bool
	Skills     []string
}

// Classify evaluates the internship and tech signals over title and description.
// Relevant requires both. Skills are always extracted.
func Classify(title, description string) Result {
	text := strings.ToLower(title) + " " + strings.ToLower(description)

	internship := containsAny(text, internshipTerms)
	tech := containsAny(text, techRoleTerms) || containsAny(text, techSkillTerms)

	return Result{
		Relevant:   internship && tech,
		Internship: internship,
		Tech:       tech,
		Skills:     ExtractSkills(description),
	}
}

// ExtractSkills returns the vocabulary terms found in description, in vocabulary order
func ExtractSkills(description string) []string {
	desc := strings.ToLower(description)
	skills := make([]string, 0)
	for _, skill := range skillVocabulary {
		if strings.Contains(desc, skill) {
			skills = append(skills, skill)
		}
	}
	return skills
}

// IsPaid reports whether the description mentions payment
func IsPaid(description string) bool {
	return containsAny(strings.ToLower(description), paidTerms)
}

// IsRemote reports whether the description mentions remote work
func IsRemote(description string) bool {
	return containsAny(strings.ToLower(description), remoteTerms)
}

// ExperienceRequired returns the first experience phrase in the description
func ExperienceRequired(description string) string {
	if m := experienceRe.FindString(strings.ToLower(description)); m != "" {
		return m
	}
	return domain.NotSpecified
}

// EducationRequired returns the first education keyword in the description
func EducationRequired(description string) string {
	if m := educationRe.FindString(strings.ToLower(description)); m != "" {
		return m
	}
	return domain.NotSpecified
}

// Vocabulary returns a copy of the skill vocabulary
func Vocabulary() []string {
	out := make([]string, len(skillVocabulary))
	copy(out, skillVocabulary)
	return out
}

// InVocabulary reports whether skill is a vocabulary term
func InVocabulary(skill string) bool {
	skill = strings.ToLower(strings.TrimSpace(skill))
	for _, s := range skillVocabulary {
		if s == skill {
			return true
		}
	}
	return false
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
