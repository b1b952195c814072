package crawler

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"sjsage522/reviewworker/logger"
)

const defaultUserAgent = `Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36`

// Element scripts run with `this` bound to the node
const (
	displayedScript = `function() {
		const rect = this.getBoundingClientRect();
		const style = window.getComputedStyle(this);
		return rect.width > 0 && rect.height > 0 &&
			style.visibility !== 'hidden' && style.display !== 'none' && style.opacity !== '0';
	}`

	enabledScript = `function() { return !this.disabled; }`

	// clickScript refuses to click when the element's centre is covered by
	// something that is neither the element nor one of its descendants.
	clickScript = `function() {
		const rect = this.getBoundingClientRect();
		const hit = document.elementFromPoint(rect.left + rect.width / 2, rect.top + rect.height / 2);
		if (hit && hit !== this && !this.contains(hit)) {
			return false;
		}
		this.click();
		return true;
	}`
)

// ChromeOptions configures the local Chrome instance
type ChromeOptions struct {
	Headless     bool
	ExecPath     string
	UserAgent    string
	WindowWidth  int
	WindowHeight int
}

// NewChromeBrowserFactory returns a factory starting a fresh Chrome per crawl
func NewChromeBrowserFactory(opts ChromeOptions) BrowserFactory {
	return func(ctx context.Context) (Browser, error) {
		return NewChromeBrowser(ctx, opts)
	}
}

// ChromeBrowser drives a single Chrome tab through the DevTools protocol
type ChromeBrowser struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
}

// NewChromeBrowser launches Chrome and opens a blank tab
func NewChromeBrowser(ctx context.Context, opts ChromeOptions) (*ChromeBrowser, error) {
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	width, height := opts.WindowWidth, opts.WindowHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(width, height),
		chromedp.UserAgent(userAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	log := logger.ForExtractor()
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...interface{}) {
		log.Debug().Msgf(format, args...)
	}))

	// An empty Run starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &ChromeBrowser{
		tabCtx:      tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// run executes actions in the tab, aborting them when ctx ends
func (b *ChromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.tabCtx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

func (b *ChromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *ChromeBrowser) FindElement(ctx context.Context, selector string) (Element, error) {
	return b.query(ctx, selector, nil)
}

func (b *ChromeBrowser) FindElements(ctx context.Context, selector string) ([]Element, error) {
	var nodes []*cdp.Node
	if err := b.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}

	elements := make([]Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &chromeElement{browser: b, node: n})
	}
	return elements, nil
}

// query returns the first match of selector, searching under from when set
func (b *ChromeBrowser) query(ctx context.Context, selector string, from *cdp.Node) (Element, error) {
	opts := []chromedp.QueryOption{chromedp.ByQuery, chromedp.AtLeast(0)}
	if from != nil {
		opts = append(opts, chromedp.FromNode(from))
	}

	var nodes []*cdp.Node
	if err := b.run(ctx, chromedp.Nodes(selector, &nodes, opts...)); err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if len(nodes) == 0 {
		return nil, ErrNoSuchElement
	}
	return &chromeElement{browser: b, node: nodes[0]}, nil
}

func (b *ChromeBrowser) PageSource(ctx context.Context) (string, error) {
	var source string
	if err := b.run(ctx, chromedp.OuterHTML("html", &source, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return source, nil
}

// Close shuts the tab and the browser process. Safe to call more than once.
func (b *ChromeBrowser) Close() error {
	b.closeOnce.Do(func() {
		b.cancelTab()
		b.cancelAlloc()
	})
	return nil
}

type chromeElement struct {
	browser *ChromeBrowser
	node    *cdp.Node
}

// call runs script with `this` bound to the element and decodes its return
// value into res.
func (e *chromeElement) call(ctx context.Context, script string, res interface{}) error {
	return e.browser.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		obj, err := dom.ResolveNode().WithNodeID(e.node.NodeID).Do(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = runtime.ReleaseObject(obj.ObjectID).Do(ctx) }()

		return chromedp.CallFunctionOn(script, res, func(p *runtime.CallFunctionOnParams) *runtime.CallFunctionOnParams {
			return p.WithObjectID(obj.ObjectID)
		}).Do(ctx)
	}))
}

func (e *chromeElement) Displayed(ctx context.Context) (bool, error) {
	var displayed bool
	err := e.call(ctx, displayedScript, &displayed)
	return displayed, err
}

func (e *chromeElement) Enabled(ctx context.Context) (bool, error) {
	var enabled bool
	err := e.call(ctx, enabledScript, &enabled)
	return enabled, err
}

func (e *chromeElement) FindElement(ctx context.Context, selector string) (Element, error) {
	return e.browser.query(ctx, selector, e.node)
}

func (e *chromeElement) ScrollIntoView(ctx context.Context) error {
	return e.browser.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return dom.ScrollIntoViewIfNeeded().WithNodeID(e.node.NodeID).Do(ctx)
	}))
}

func (e *chromeElement) Click(ctx context.Context) error {
	var clicked bool
	if err := e.call(ctx, clickScript, &clicked); err != nil {
		return err
	}
	if !clicked {
		return ErrClickIntercepted
	}
	return nil
}

func (e *chromeElement) ClickAtCenter(ctx context.Context) error {
	return e.browser.run(ctx, chromedp.MouseClickNode(e.node))
}
