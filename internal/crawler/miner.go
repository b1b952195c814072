package crawler

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"sjsage522/reviewworker/helpers"
	"sjsage522/reviewworker/logger"
	apperrors "sjsage522/reviewworker/pkg/errors"
)

// SampleLength is how many runes of an element's text are kept as a hint
const SampleLength = 15

// Keyword groups a candidate selector must hit to be kept
const (
	reviewKeywords     = `(review|comment|feedback|text|body|content|post|entry|description|testimonial|rev(iew)?|customer|summary)`
	authorKeywords     = `(author|user|name|profile|by|writer|creator|reviewer|posted\sby|submitter)`
	ratingKeywords     = `(rating|stars|score|rank|grade|level|points|rate|review\-score|feedback\-rating)`
	paginationKeywords = `(next|pagination|nav|page|forward|load\-more|show\-more|continue|arrow\-right|scroll\-next)`
	titleKeywords      = `(title|heading|subject|review-title)`
	excludeKeywords    = `(widg|wrap)`
)

var (
	includePattern = regexp.MustCompile(`(?i)` + strings.Join([]string{
		reviewKeywords, authorKeywords, ratingKeywords, paginationKeywords, titleKeywords,
	}, "|"))
	excludePattern = regexp.MustCompile(`(?i)` + excludeKeywords)
)

// PageFetcher retrieves the raw HTML of a page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (io.Reader, error)
}

// MinePage fetches url and returns its filtered candidate selectors.
// A failed fetch or parse is fatal for the pipeline.
func MinePage(ctx context.Context, fetcher PageFetcher, url string) (map[string]string, error) {
	log := logger.ForMiner().WithField("url", url)

	body, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, apperrors.NewFetch(url, "failed to fetch page", err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, apperrors.NewParsing(url, "failed to parse page", err)
	}

	raw := RawSelectors(doc)
	selectors := FilterSelectors(raw)

	log.Info().
		Int("candidates", len(raw)).
		Int("kept", len(selectors)).
		Msg("Mined candidate selectors")

	return selectors, nil
}

// MineSelectors returns the candidate selectors of doc that pass the keyword filter
func MineSelectors(doc *goquery.Document) map[string]string {
	return FilterSelectors(RawSelectors(doc))
}

// RawSelectors walks every element of doc in document order and maps each
// class, id and tag selector to a short sample of the element's text.
// Later elements overwrite earlier samples for the same selector.
func RawSelectors(doc *goquery.Document) map[string]string {
	selectors := make(map[string]string)
	for _, root := range doc.Nodes {
		collectSelectors(root, selectors)
	}
	return selectors
}

// collectSelectors records n's selectors into acc and recurses into element children
func collectSelectors(n *html.Node, acc map[string]string) {
	if n.Type == html.ElementNode {
		sample := helpers.TruncateRunes(strippedText(n), SampleLength)

		for _, class := range strings.Fields(attr(n, "class")) {
			acc["."+cssEscape(class)] = sample
		}
		if id := attr(n, "id"); id != "" {
			acc["#"+cssEscape(id)] = sample
		}
		acc[cssEscape(n.Data)] = sample
	}

	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			collectSelectors(child, acc)
		}
	}
}

// FilterSelectors keeps the selectors that match a role keyword and no exclusion keyword
func FilterSelectors(selectors map[string]string) map[string]string {
	filtered := make(map[string]string, len(selectors))
	for selector, sample := range selectors {
		if includePattern.MatchString(selector) && !excludePattern.MatchString(selector) {
			filtered[selector] = sample
		}
	}
	return filtered
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val
		}
	}
	return ""
}

// strippedText concatenates n's descendant text nodes, each trimmed, skipping
// blanks, comments and script or style bodies.
func strippedText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		switch node.Type {
		case html.TextNode:
			sb.WriteString(strings.TrimSpace(node.Data))
			return
		case html.ElementNode:
			if node.Data == "script" || node.Data == "style" {
				return
			}
		case html.CommentNode:
			return
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(n)
	return sb.String()
}

// cssEscape serializes ident so it can be used as a CSS identifier
func cssEscape(ident string) string {
	if ident == "-" {
		return `\-`
	}

	var sb strings.Builder
	first := rune(-1)
	for i, r := range []rune(ident) {
		if i == 0 {
			first = r
		}
		switch {
		case r == 0:
			sb.WriteRune(utf8.RuneError)
		case (r >= 0x1 && r <= 0x1f) || r == 0x7f,
			i == 0 && r >= '0' && r <= '9',
			i == 1 && r >= '0' && r <= '9' && first == '-':
			sb.WriteString(`\` + strconv.FormatInt(int64(r), 16) + " ")
		case r >= 0x80, r == '-', r == '_',
			r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		default:
			sb.WriteString(fmt.Sprintf(`\%c`, r))
		}
	}
	return sb.String()
}
