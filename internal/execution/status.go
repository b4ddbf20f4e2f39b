package execution

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/blockchain"
	"github.com/rovshanmuradov/pump-sniper/internal/blockchain/solbc"
	"go.uber.org/zap"
)

// Status is the resolved state of a submitted transaction.
type Status int

const (
	// StatusUnknown means there is no answer yet; the submission stays pending.
	StatusUnknown Status = iota
	StatusConfirmed
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusConfirmed:
		return "confirmed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// StatusSource queries signature statuses.
type StatusSource interface {
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (blockchain.SignatureStatus, error)
}

// StatusResult is the outcome of a status query.
type StatusResult struct {
	Status Status
	Slot   uint64
	// Err is set for StatusFailed.
	Err *OnChainError
}

// StatusChecker resolves signatures through the standard RPC.
type StatusChecker struct {
	src      StatusSource
	analyzer *solbc.ErrorAnalyzer
}

// NewStatusChecker creates a status checker.
func NewStatusChecker(src StatusSource, logger *zap.Logger) *StatusChecker {
	return &StatusChecker{src: src, analyzer: solbc.NewErrorAnalyzer(logger)}
}

// Check queries the status of sig. Processed-but-unconfirmed and unseen
// signatures both report StatusUnknown.
func (c *StatusChecker) Check(ctx context.Context, sig solana.Signature) (StatusResult, error) {
	st, err := c.src.GetSignatureStatus(ctx, sig)
	if err != nil {
		return StatusResult{}, err
	}
	return c.Classify(st), nil
}

// Classify maps a raw signature status onto a StatusResult.
func (c *StatusChecker) Classify(st blockchain.SignatureStatus) StatusResult {
	if !st.Found {
		return StatusResult{Status: StatusUnknown}
	}
	if pf, failed := c.analyzer.AnalyzeTransactionError(st.Err); failed {
		return StatusResult{Status: StatusFailed, Slot: st.Slot, Err: newOnChainError(pf)}
	}
	if !st.Confirmed {
		return StatusResult{Status: StatusUnknown, Slot: st.Slot}
	}
	return StatusResult{Status: StatusConfirmed, Slot: st.Slot}
}

// ClassifyTxError turns a transaction error seen on the stream into an
// *OnChainError; nil input yields nil.
func (c *StatusChecker) ClassifyTxError(txErr interface{}) *OnChainError {
	pf, failed := c.analyzer.AnalyzeTransactionError(txErr)
	if !failed {
		return nil
	}
	return newOnChainError(pf)
}
