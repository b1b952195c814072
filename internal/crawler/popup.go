package crawler

import (
	"context"
	"errors"
	"time"

	"sjsage522/reviewworker/logger"
)

const (
	popupSelector   = `[role='dialog'], [class*='needsclick']`
	dismissSelector = `button, .close, .dismiss, [aria-label='Close']`
)

// dismissPopups clicks the dismiss control of the first visible dialog or
// overlay. It never fails the caller: every problem is logged and ignored.
// Reports whether a popup was dismissed.
func dismissPopups(ctx context.Context, b Browser, pause time.Duration, log *logger.Logger) bool {
	popups, err := b.FindElements(ctx, popupSelector)
	if err != nil {
		log.Debug().Err(err).Msg("Error while looking for pop-ups")
		return false
	}

	for _, popup := range popups {
		visible, err := popup.Displayed(ctx)
		if err != nil || !visible {
			continue
		}

		closeButton, err := popup.FindElement(ctx, dismissSelector)
		if errors.Is(err, ErrNoSuchElement) {
			log.Debug().Msg("No dismissable pop-ups found")
			return false
		}
		if err != nil {
			log.Debug().Err(err).Msg("Error while handling pop-ups")
			return false
		}

		ok, err := isInteractable(ctx, closeButton)
		if err != nil || !ok {
			return false
		}

		log.Info().Msg("Found and dismissing a popup")
		if err := closeButton.Click(ctx); err != nil {
			log.Debug().Err(err).Msg("Error while dismissing pop-up")
			return false
		}
		_ = sleep(ctx, pause)
		return true
	}
	return false
}
