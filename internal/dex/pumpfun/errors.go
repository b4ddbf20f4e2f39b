// =============================
// File: internal/dex/pumpfun/errors.go
// =============================
package pumpfun

import "fmt"

// Program error codes of the Pump.fun program (Anchor custom errors start at 6000).
const (
	ErrCodeNotAuthorized                = 6000
	ErrCodeAlreadyInitialized           = 6001
	ErrCodeTooMuchSolRequired           = 6002
	ErrCodeTooLittleSolReceived         = 6003
	ErrCodeMintDoesNotMatchBondingCurve = 6004
	ErrCodeBondingCurveComplete         = 6005
	ErrCodeBondingCurveNotComplete      = 6006
	ErrCodeNotInitialized               = 6007

	// Anchor framework: AccountNotInitialized
	ErrCodeAccountNotInitialized = 3012
)

var programErrorNames = map[int]string{
	ErrCodeNotAuthorized:                "NotAuthorized",
	ErrCodeAlreadyInitialized:           "AlreadyInitialized",
	ErrCodeTooMuchSolRequired:           "TooMuchSolRequired",
	ErrCodeTooLittleSolReceived:         "TooLittleSolReceived",
	ErrCodeMintDoesNotMatchBondingCurve: "MintDoesNotMatchBondingCurve",
	ErrCodeBondingCurveComplete:         "BondingCurveComplete",
	ErrCodeBondingCurveNotComplete:      "BondingCurveNotComplete",
	ErrCodeNotInitialized:               "NotInitialized",
	ErrCodeAccountNotInitialized:        "AccountNotInitialized",
}

// ProgramErrorName returns a readable name for a custom program error code.
func ProgramErrorName(code int) string {
	if name, ok := programErrorNames[code]; ok {
		return name
	}
	return fmt.Sprintf("Custom(%d)", code)
}

// IsRetryableCode reports whether a rejection is of the slippage class, i.e.
// a retry with a relaxed price limit may succeed.
func IsRetryableCode(code int) bool {
	switch code {
	case ErrCodeTooMuchSolRequired, ErrCodeTooLittleSolReceived:
		return true
	default:
		return false
	}
}
