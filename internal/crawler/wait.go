package crawler

import (
	"context"
	"errors"
	"time"
)

// pollUntil evaluates cond every interval until it reports true, returns an
// error, or timeout elapses. Running out of time yields ErrWaitTimeout.
func pollUntil(ctx context.Context, timeout, interval time.Duration, cond func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return ErrWaitTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitPresent blocks until selector matches at least one element
func waitPresent(ctx context.Context, b Browser, selector string, timeout, interval time.Duration) error {
	return pollUntil(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		elements, err := b.FindElements(ctx, selector)
		if err != nil {
			return false, err
		}
		return len(elements) > 0, nil
	})
}

// waitClickable blocks until the first match of selector is displayed and enabled
func waitClickable(ctx context.Context, b Browser, selector string, timeout, interval time.Duration) (Element, error) {
	var clickable Element
	err := pollUntil(ctx, timeout, interval, func(ctx context.Context) (bool, error) {
		el, err := b.FindElement(ctx, selector)
		if errors.Is(err, ErrNoSuchElement) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if ok, err := isInteractable(ctx, el); err != nil || !ok {
			return false, err
		}
		clickable = el
		return true, nil
	})
	return clickable, err
}

func isInteractable(ctx context.Context, el Element) (bool, error) {
	displayed, err := el.Displayed(ctx)
	if err != nil || !displayed {
		return false, err
	}
	return el.Enabled(ctx)
}

// sleep pauses for d unless ctx ends first
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
