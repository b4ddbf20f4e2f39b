// internal/engine/position.go
package engine

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/clock"
	"github.com/rovshanmuradov/pump-sniper/internal/execution"
)

// State of a position.
type State int

const (
	StatePending State = iota
	StateConfirmed
	StateActivityDetected
	StateTimedOut
	StateStopLossTriggered
	StateSellDispatched
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	case StateActivityDetected:
		return "activity_detected"
	case StateTimedOut:
		return "timed_out"
	case StateStopLossTriggered:
		return "stop_loss"
	case StateSellDispatched:
		return "sell_dispatched"
	default:
		return "unknown"
	}
}

// timerKind indexes the three timers of a position.
type timerKind int

const (
	timerSell timerKind = iota
	timerStopLoss
	timerNoActivity
	timerCount
)

func (k timerKind) String() string {
	switch k {
	case timerSell:
		return "sell"
	case timerStopLoss:
		return "stop_loss"
	default:
		return "no_activity"
	}
}

// Position is one traded asset from buy dispatch until sell dispatch.
type Position struct {
	Mint         solana.PublicKey
	Creator      solana.PublicKey
	BondingCurve solana.PublicKey
	Signature    solana.Signature
	BoughtAt     time.Time

	BuyLamports uint64
	// TokenAmount is the token amount requested by the buy.
	TokenAmount uint64
	Fee         execution.FeeInfo

	State     State
	Confirmed bool
	Activity  bool

	timers [timerCount]clock.Timer
	// due marks timers that fired before confirmation; they are evaluated
	// when the position confirms.
	due [timerCount]bool
}

// stopTimers cancels every timer of the position.
func (p *Position) stopTimers() {
	for i, t := range p.timers {
		if t != nil {
			t.Stop()
			p.timers[i] = nil
		}
	}
}

// PendingSubmission is a buy awaiting confirmation.
type PendingSubmission struct {
	Signature    solana.Signature
	Mint         solana.PublicKey
	Creator      solana.PublicKey
	DispatchedAt time.Time
	SellTimeout  time.Duration

	poll clock.Timer
}

// PositionView is a read-only copy of a position for reports.
type PositionView struct {
	Mint      string
	Signature string
	State     string
	Age       time.Duration
	Activity  bool
}

func (p *Position) view(now time.Time) PositionView {
	return PositionView{
		Mint:      p.Mint.String(),
		Signature: p.Signature.String(),
		State:     p.State.String(),
		Age:       now.Sub(p.BoughtAt),
		Activity:  p.Activity,
	}
}
