package crawler

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// fakeBrowser serves a fixed list of HTML pages. Clicking an element carrying
// data-next moves to the following page; clicking a button inside a dialog
// hides that dialog.
type fakeBrowser struct {
	mu sync.Mutex

	pages   []string
	current int

	// intercepts is how many clicks on the next control report interception
	intercepts int
	// navigateErr fails Navigate when set
	navigateErr error
	// onFind runs before every element lookup
	onFind func(selector string)

	navigated        []string
	closeCalls       int
	clicks           int
	coordinateClicks int
	closedPopups     map[int]bool
}

func newFakeBrowser(pages ...string) *fakeBrowser {
	return &fakeBrowser{pages: pages, closedPopups: make(map[int]bool)}
}

func (b *fakeBrowser) factory() BrowserFactory {
	return func(context.Context) (Browser, error) {
		return b, nil
	}
}

func (b *fakeBrowser) document() (*goquery.Document, int) {
	b.mu.Lock()
	page := b.current
	source := b.pages[page]
	b.mu.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(source))
	if err != nil {
		panic(fmt.Sprintf("invalid fixture: %v", err))
	}
	return doc, page
}

func (b *fakeBrowser) Navigate(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigated = append(b.navigated, url)
	return b.navigateErr
}

func (b *fakeBrowser) FindElement(ctx context.Context, selector string) (Element, error) {
	elements, err := b.FindElements(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(elements) == 0 {
		return nil, ErrNoSuchElement
	}
	return elements[0], nil
}

func (b *fakeBrowser) FindElements(_ context.Context, selector string) ([]Element, error) {
	if b.onFind != nil {
		b.onFind(selector)
	}
	doc, page := b.document()
	return b.wrap(doc.Find(selector), page), nil
}

func (b *fakeBrowser) wrap(sel *goquery.Selection, page int) []Element {
	elements := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &fakeElement{browser: b, sel: s, page: page})
	})
	return elements
}

func (b *fakeBrowser) PageSource(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pages[b.current], nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closeCalls++
	return nil
}

func (b *fakeBrowser) advance() {
	if b.current+1 < len(b.pages) {
		b.current++
	}
}

type fakeElement struct {
	browser *fakeBrowser
	sel     *goquery.Selection
	page    int
}

func (e *fakeElement) Displayed(context.Context) (bool, error) {
	if _, hidden := e.sel.Attr("hidden"); hidden {
		return false, nil
	}
	if e.sel.Is("[role='dialog']") {
		e.browser.mu.Lock()
		defer e.browser.mu.Unlock()
		return !e.browser.closedPopups[e.page], nil
	}
	return true, nil
}

func (e *fakeElement) Enabled(context.Context) (bool, error) {
	_, disabled := e.sel.Attr("disabled")
	return !disabled, nil
}

func (e *fakeElement) FindElement(_ context.Context, selector string) (Element, error) {
	found := e.browser.wrap(e.sel.Find(selector), e.page)
	if len(found) == 0 {
		return nil, ErrNoSuchElement
	}
	return found[0], nil
}

func (e *fakeElement) ScrollIntoView(context.Context) error {
	return nil
}

func (e *fakeElement) Click(context.Context) error {
	b := e.browser
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clicks++
	if _, next := e.sel.Attr("data-next"); next && b.intercepts > 0 {
		b.intercepts--
		return ErrClickIntercepted
	}
	e.activate()
	return nil
}

func (e *fakeElement) ClickAtCenter(context.Context) error {
	b := e.browser
	b.mu.Lock()
	defer b.mu.Unlock()

	b.coordinateClicks++
	e.activate()
	return nil
}

// activate applies the effect of a click; callers hold the browser lock
func (e *fakeElement) activate() {
	b := e.browser
	if _, next := e.sel.Attr("data-next"); next {
		b.advance()
		return
	}
	if e.sel.Closest("[role='dialog']").Length() > 0 {
		b.closedPopups[e.page] = true
	}
}

// fakeRecorder counts telemetry calls
type fakeRecorder struct {
	mu         sync.Mutex
	pages      int
	reviews    int
	intercepts int
	finished   []string
}

func (r *fakeRecorder) PageCrawled() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages++
}

func (r *fakeRecorder) ReviewsExtracted(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reviews += n
}

func (r *fakeRecorder) ClickIntercepted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intercepts++
}

func (r *fakeRecorder) CrawlFinished(state string, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, state)
}

// fixtureRoles matches the markup produced by reviewPage
func fixtureRoles() RoleAssignment {
	return NewRoleAssignment(".review-title", ".review-body", ".author", ".stars", "a.next-page")
}

// reviewPage renders one page of reviews named by titles. next controls the
// pagination link: "" omits it, "enabled" or "disabled" renders it.
func reviewPage(next string, titles ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><body><div class=\"reviews\">")
	for i, title := range titles {
		fmt.Fprintf(&sb, `<div class="review">
			<h3 class="review-title">%s</h3>
			<p class="review-body">%s body</p>
			<span class="author">%s author</span>
			<span class="stars" data-score="%d"></span>
		</div>`, title, title, title, i%5+1)
	}
	sb.WriteString("</div>")
	switch next {
	case "enabled":
		sb.WriteString(`<a class="next-page" data-next href="#">Next</a>`)
	case "disabled":
		sb.WriteString(`<a class="next-page" data-next disabled href="#">Next</a>`)
	}
	sb.WriteString("</body></html>")
	return sb.String()
}

// withPopup inserts a dismissable dialog into page
func withPopup(page string) string {
	return strings.Replace(page, "<body>",
		`<body><div role="dialog" class="newsletter"><p>Subscribe!</p><button class="close">x</button></div>`, 1)
}
