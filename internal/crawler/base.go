package crawler

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// createDocument creates a goquery document from a reader
func createDocument(reader io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("HTML parsing error: %w", err)
	}
	return doc, nil
}

// find runs the selector for role, returning an empty selection when the role is absent
func find(doc *goquery.Document, roles RoleAssignment, role Role) *goquery.Selection {
	selector, ok := roles.Selector(role)
	if !ok {
		return doc.Selection.Slice(0, 0)
	}
	return doc.Find(selector)
}

// ExtractReviews queries the title, body, author and rating selectors
// independently and pairs their matches by position. Pairing stops at the
// shortest of the four sequences.
func ExtractReviews(doc *goquery.Document, roles RoleAssignment, ratingAttr string) []ReviewRecord {
	titles := find(doc, roles, RoleTitle)
	bodies := find(doc, roles, RoleBody)
	authors := find(doc, roles, RoleAuthor)
	ratings := find(doc, roles, RoleRating)

	n := min(titles.Length(), bodies.Length(), authors.Length(), ratings.Length())

	reviews := make([]ReviewRecord, 0, n)
	for i := 0; i < n; i++ {
		rating, exists := ratings.Eq(i).Attr(ratingAttr)
		if !exists {
			rating = RatingFallback
		}
		reviews = append(reviews, ReviewRecord{
			Title:    selectionText(titles.Eq(i)),
			Body:     selectionText(bodies.Eq(i)),
			Rating:   rating,
			Reviewer: selectionText(authors.Eq(i)),
		})
	}
	return reviews
}

// selectionText joins the trimmed text nodes of the first node in s
func selectionText(s *goquery.Selection) string {
	if s.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(strippedText(s.Get(0)))
}
