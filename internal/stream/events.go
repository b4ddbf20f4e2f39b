// internal/stream/events.go
package stream

import (
	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
)

// Event is one decoded stream payload. Implementations are
// *TransactionEvent, *CurveUpdate and *SlotEvent.
type Event interface {
	eventKind() string
}

// TransactionEvent is a transaction touching the Pump.fun program.
type TransactionEvent struct {
	Signature   solana.Signature
	Slot        uint64
	FeePayer    solana.PublicKey
	AccountKeys []solana.PublicKey
	// Instructions holds the decoded Pump.fun instructions (top level and inner).
	Instructions []pumpfun.DecodedInstruction
	// Err is the raw meta.err value; nil for successful transactions.
	Err    interface{}
	Failed bool
}

func (*TransactionEvent) eventKind() string { return "transaction" }

// References reports whether account appears anywhere in the transaction.
func (e *TransactionEvent) References(account solana.PublicKey) bool {
	for _, k := range e.AccountKeys {
		if k.Equals(account) {
			return true
		}
	}
	return false
}

// Creates returns the create instructions of the transaction.
func (e *TransactionEvent) Creates() []pumpfun.DecodedInstruction {
	var out []pumpfun.DecodedInstruction
	for _, ix := range e.Instructions {
		if ix.Kind == pumpfun.InstructionCreate {
			out = append(out, ix)
		}
	}
	return out
}

// CurveUpdate is a bonding-curve account update.
type CurveUpdate struct {
	Account solana.PublicKey
	Curve   *pumpfun.BondingCurve
	Slot    uint64
}

func (*CurveUpdate) eventKind() string { return "curve" }

// SlotEvent is block metadata.
type SlotEvent struct {
	Slot   uint64
	Parent uint64
	Root   uint64
}

func (*SlotEvent) eventKind() string { return "slot" }

// Kind returns the metric label of ev.
func Kind(ev Event) string { return ev.eventKind() }
