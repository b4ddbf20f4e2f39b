package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code int    `json:"code"`
	Name string `json:"name"`
	Msg  string `json:"msg"`
}

// ProgramFailure is a decoded on-chain rejection.
type ProgramFailure struct {
	// Instruction is the index of the failing instruction, -1 if unknown.
	Instruction int
	// Code is the custom program error code, -1 for non-custom errors.
	Code int
	// Raw is the textual form of the original error.
	Raw string
}

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AnalyzeTransactionError decodes a transaction error value as returned in
// signature statuses, simulation results and stream metadata, e.g.
// {"InstructionError":[2,{"Custom":6003}]}. ok is false for nil input.
func (ea *ErrorAnalyzer) AnalyzeTransactionError(txErr interface{}) (ProgramFailure, bool) {
	if txErr == nil {
		return ProgramFailure{}, false
	}
	pf := ProgramFailure{Instruction: -1, Code: -1, Raw: formatRaw(txErr)}

	m, ok := normalize(txErr).(map[string]interface{})
	if !ok {
		return pf, true
	}
	ie, ok := m["InstructionError"].([]interface{})
	if !ok || len(ie) != 2 {
		return pf, true
	}
	if idx, ok := ie[0].(float64); ok {
		pf.Instruction = int(idx)
	}
	if detail, ok := ie[1].(map[string]interface{}); ok {
		if code, ok := detail["Custom"].(float64); ok {
			pf.Code = int(code)
		}
	}
	return pf, true
}

// AnalyzeRPCError extracts a program failure from a preflight/simulation
// JSON-RPC error. ok is false when err is not an on-chain rejection.
func (ea *ErrorAnalyzer) AnalyzeRPCError(err error) (ProgramFailure, bool) {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return ProgramFailure{}, false
	}

	data, ok := normalize(rpcErr.Data).(map[string]interface{})
	if !ok {
		return ProgramFailure{}, false
	}

	if txErr, ok := data["err"]; ok && txErr != nil {
		pf, _ := ea.AnalyzeTransactionError(txErr)
		if pf.Code < 0 {
			if logs, ok := data["logs"].([]interface{}); ok {
				if anchorErr, found := ea.anchorFromLogs(logs); found {
					pf.Code = anchorErr.Code
				}
			}
		}
		ea.logger.Debug("Program failure in RPC error",
			zap.Int("instruction", pf.Instruction),
			zap.Int("code", pf.Code),
			zap.String("raw", pf.Raw))
		return pf, true
	}
	return ProgramFailure{}, false
}

func (ea *ErrorAnalyzer) anchorFromLogs(logs []interface{}) (AnchorError, bool) {
	for _, entry := range logs {
		logStr, ok := entry.(string)
		if !ok || !strings.Contains(logStr, "AnchorError") {
			continue
		}
		anchorErr := parseAnchorErrorLog(logStr)
		if anchorErr.Code != 0 {
			ea.logger.Debug("Anchor error detected",
				zap.Int("code", anchorErr.Code),
				zap.String("name", anchorErr.Name))
			return anchorErr, true
		}
	}
	return AnchorError{}, false
}

// parseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: TooLittleSolReceived. Error Number: 6003. Error Message: Slippage."
func parseAnchorErrorLog(logStr string) AnchorError {
	result := AnchorError{}

	if parts := strings.SplitN(logStr, "Error Number:", 2); len(parts) == 2 {
		numParts := strings.SplitN(parts[1], ".", 2)
		_, _ = fmt.Sscanf(strings.TrimSpace(numParts[0]), "%d", &result.Code)
	}
	if parts := strings.SplitN(logStr, "Error Code:", 2); len(parts) == 2 {
		result.Name = strings.TrimSpace(strings.SplitN(parts[1], ".", 2)[0])
	}
	if parts := strings.SplitN(logStr, "Error Message:", 2); len(parts) == 2 {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(parts[1]), ".")
	}
	return result
}

// normalize round-trips typed values through JSON so that callers only deal
// with the generic map/slice/float64 shapes.
func normalize(v interface{}) interface{} {
	switch v.(type) {
	case map[string]interface{}, []interface{}, string, float64, nil:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func formatRaw(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
