package crawler

import (
	"strings"
	"time"
)

// Role names one of the five semantic parts of a review page
type Role string

const (
	RoleTitle      Role = "review_title_tag"
	RoleBody       Role = "review_tag"
	RoleAuthor     Role = "author_tag"
	RoleRating     Role = "rating_tag"
	RoleNextButton Role = "next_pagination_button_tag"
)

// Roles lists every role in prompt order
var Roles = []Role{RoleTitle, RoleBody, RoleAuthor, RoleRating, RoleNextButton}

// RatingFallback is used when a rating element lacks the rating attribute
const RatingFallback = "N/A"

// RoleAssignment maps each role to a CSS selector. A nil field means the
// classifier could not name a selector for that role.
type RoleAssignment struct {
	ReviewTitle *string `json:"review_title_tag"`
	Review      *string `json:"review_tag"`
	Author      *string `json:"author_tag"`
	Rating      *string `json:"rating_tag"`
	NextButton  *string `json:"next_pagination_button_tag"`
}

// AbsentRoles returns the assignment with every role absent
func AbsentRoles() RoleAssignment {
	return RoleAssignment{}
}

// NewRoleAssignment builds an assignment where empty strings mean absent
func NewRoleAssignment(title, body, author, rating, next string) RoleAssignment {
	return RoleAssignment{
		ReviewTitle: optional(title),
		Review:      optional(body),
		Author:      optional(author),
		Rating:      optional(rating),
		NextButton:  optional(next),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Selector returns the selector for role. ok is false when the role is absent or blank.
func (r RoleAssignment) Selector(role Role) (selector string, ok bool) {
	var p *string
	switch role {
	case RoleTitle:
		p = r.ReviewTitle
	case RoleBody:
		p = r.Review
	case RoleAuthor:
		p = r.Author
	case RoleRating:
		p = r.Rating
	case RoleNextButton:
		p = r.NextButton
	}
	if p == nil || strings.TrimSpace(*p) == "" {
		return "", false
	}
	return strings.TrimSpace(*p), true
}

// IsAbsent reports whether no role has a selector
func (r RoleAssignment) IsAbsent() bool {
	for _, role := range Roles {
		if _, ok := r.Selector(role); ok {
			return false
		}
	}
	return true
}

// ReviewRecord is a single review extracted from a page
type ReviewRecord struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Rating   string `json:"rating"`
	Reviewer string `json:"reviewer"`
}

// Result is the value handed to the persistence collaborator
type Result struct {
	ReviewsCount int            `json:"reviews_count"`
	Reviews      []ReviewRecord `json:"reviews"`
}

// NewResult wraps reviews, never producing a null reviews list
func NewResult(reviews []ReviewRecord) *Result {
	if reviews == nil {
		reviews = []ReviewRecord{}
	}
	return &Result{
		ReviewsCount: len(reviews),
		Reviews:      reviews,
	}
}

// CrawlState is a state of the paginated extractor
type CrawlState int

const (
	StateLoadingPage CrawlState = iota
	StateWaitingForContent
	StateExtracting
	StateAdvancing
	StateDone
	StateFailed
)

func (s CrawlState) String() string {
	switch s {
	case StateLoadingPage:
		return "LOADING_PAGE"
	case StateWaitingForContent:
		return "WAITING_FOR_CONTENT"
	case StateExtracting:
		return "EXTRACTING"
	case StateAdvancing:
		return "ADVANCING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the crawl stops in this state
func (s CrawlState) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// CrawlReport describes how a crawl ended. Reviews holds everything gathered
// before the terminal state, in page-then-position order.
type CrawlReport struct {
	URL      string
	Reviews  []ReviewRecord
	Pages    int
	State    CrawlState
	Cause    error
	Duration time.Duration
}
