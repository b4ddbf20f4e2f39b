package execution

import (
	"errors"
	"fmt"

	"github.com/rovshanmuradov/pump-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
)

var (
	// ErrSubmission means neither the fast relay nor the RPC fallback accepted
	// the transaction.
	ErrSubmission = errors.New("submission failed")
	// ErrConfirmationTimeout means no confirmation signal arrived in time.
	ErrConfirmationTimeout = errors.New("confirmation timeout")
	// ErrNothingToSell is returned when the wallet holds no tokens of the asset.
	ErrNothingToSell = errors.New("no token balance to sell")
)

// OnChainError is a transaction rejected by the program.
type OnChainError struct {
	Code      int
	Name      string
	Retryable bool
	Raw       string
}

func (e *OnChainError) Error() string {
	if e.Code >= 0 {
		return fmt.Sprintf("on-chain rejection %s (%d)", e.Name, e.Code)
	}
	return fmt.Sprintf("on-chain rejection: %s", e.Raw)
}

// newOnChainError classifies a decoded program failure.
func newOnChainError(pf solbc.ProgramFailure) *OnChainError {
	e := &OnChainError{Code: pf.Code, Raw: pf.Raw}
	if pf.Code >= 0 {
		e.Name = pumpfun.ProgramErrorName(pf.Code)
		e.Retryable = pumpfun.IsRetryableCode(pf.Code)
	}
	return e
}

// AsOnChain unwraps an *OnChainError from err.
func AsOnChain(err error) (*OnChainError, bool) {
	var oce *OnChainError
	if errors.As(err, &oce) {
		return oce, true
	}
	return nil, false
}

// submissionError joins the errors of both channels under ErrSubmission.
type submissionError struct {
	relay error
	rpc   error
}

func (e *submissionError) Error() string {
	return fmt.Sprintf("%v: relay: %v; rpc: %v", ErrSubmission, e.relay, e.rpc)
}

func (e *submissionError) Unwrap() []error {
	return []error{ErrSubmission, e.relay, e.rpc}
}
