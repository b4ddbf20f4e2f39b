// internal/engine/admission.go
package engine

import (
	"errors"
	"fmt"
)

// Admission rejections.
var (
	ErrCooldown          = errors.New("buy cooldown active")
	ErrTooManyPending    = errors.New("too many unconfirmed buys")
	ErrUnsoldPosition    = errors.New("unsold position exists")
	ErrAlreadyPositioned = errors.New("position already open for asset")
)

// admit decides synchronously whether a new buy may be dispatched. The
// first failing check is returned; nothing is retried.
func (e *Engine) admit() error {
	if err := e.deps.Breaker.Allow(); err != nil {
		return err
	}
	if !e.lastBuy.IsZero() {
		if since := e.clk.Now().Sub(e.lastBuy); since < e.cfg.Cooldown {
			return fmt.Errorf("%w: %s left", ErrCooldown, e.cfg.Cooldown-since)
		}
	}
	unconfirmed := 0
	for _, p := range e.positions {
		if !p.Confirmed {
			unconfirmed++
		}
	}
	if unconfirmed >= e.cfg.MaxUnconfirmed {
		return fmt.Errorf("%w: %d", ErrTooManyPending, unconfirmed)
	}
	if unsold := e.deps.Ledger.Unsold(); unsold > e.cfg.MaxUnsold {
		return fmt.Errorf("%w: %d", ErrUnsoldPosition, unsold)
	}
	return nil
}

func admissionLabel(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, ErrCooldown):
		return "cooldown"
	case errors.Is(err, ErrTooManyPending):
		return "max_unconfirmed"
	case errors.Is(err, ErrUnsoldPosition):
		return "max_unsold"
	case errors.Is(err, ErrAlreadyPositioned):
		return "duplicate"
	default:
		return "breaker_open"
	}
}
