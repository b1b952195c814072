package crawler

import (
	"context"
	"errors"
)

var (
	// ErrNoSuchElement is returned when a selector matches nothing
	ErrNoSuchElement = errors.New("no such element")
	// ErrClickIntercepted is returned when another element would receive the click
	ErrClickIntercepted = errors.New("element click intercepted")
	// ErrWaitTimeout is returned when a bounded wait runs out
	ErrWaitTimeout = errors.New("timed out waiting for condition")
)

// Browser is a remote-controlled browser session pointed at one page at a time
type Browser interface {
	// Navigate loads url in the session
	Navigate(ctx context.Context, url string) error

	// FindElement returns the first element matching selector or ErrNoSuchElement
	FindElement(ctx context.Context, selector string) (Element, error)

	// FindElements returns every element matching selector, possibly none
	FindElements(ctx context.Context, selector string) ([]Element, error)

	// PageSource returns the rendered document's HTML
	PageSource(ctx context.Context) (string, error)

	// Close tears the session down
	Close() error
}

// Element is a handle to a node in the live page
type Element interface {
	Displayed(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)

	// FindElement searches the element's subtree
	FindElement(ctx context.Context, selector string) (Element, error)

	ScrollIntoView(ctx context.Context) error

	// Click activates the element, returning ErrClickIntercepted when it is obscured
	Click(ctx context.Context) error

	// ClickAtCenter dispatches a synthetic pointer click at the element's on-screen centre
	ClickAtCenter(ctx context.Context) error
}

// BrowserFactory starts a new browser session
type BrowserFactory func(ctx context.Context) (Browser, error)
