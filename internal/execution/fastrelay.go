package execution

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// ErrRelayDisabled is returned when no relay endpoint is configured.
var ErrRelayDisabled = errors.New("fast relay disabled")

// FastRelay posts signed transactions to a low-latency sendTransaction
// endpoint (preflight disabled, zero relay retries).
type FastRelay struct {
	client *resty.Client
	url    string
	logger *zap.Logger
}

// RelayConfig holds the relay endpoint settings.
type RelayConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result string    `json:"result"`
	Error  *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NewFastRelay creates a relay client. An empty URL yields a relay that
// always returns ErrRelayDisabled.
func NewFastRelay(cfg RelayConfig, logger *zap.Logger) *FastRelay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("x-api-key", cfg.APIKey)
	}
	return &FastRelay{
		client: client,
		url:    strings.TrimRight(cfg.URL, "/"),
		logger: logger.Named("fast-relay"),
	}
}

// Send submits tx and returns the signature echoed by the relay.
func (r *FastRelay) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if r.url == "" {
		return solana.Signature{}, ErrRelayDisabled
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("serialize transaction: %w", err)
	}

	body := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "sendTransaction",
		Params: []interface{}{
			base64.StdEncoding.EncodeToString(raw),
			map[string]interface{}{
				"encoding":      "base64",
				"skipPreflight": true,
				"maxRetries":    0,
			},
		},
	}

	var out rpcResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		SetError(&out).
		Post(r.url)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("relay post: %w", err)
	}
	if resp.IsError() {
		return solana.Signature{}, fmt.Errorf("relay http %d: %s", resp.StatusCode(), strings.TrimSpace(string(resp.Body())))
	}
	if out.Error != nil {
		return solana.Signature{}, fmt.Errorf("relay rpc error %d: %s", out.Error.Code, out.Error.Message)
	}

	sig, err := solana.SignatureFromBase58(out.Result)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("relay returned bad signature %q: %w", out.Result, err)
	}
	if len(tx.Signatures) > 0 && sig != tx.Signatures[0] {
		r.logger.Warn("Relay echoed a different signature",
			zap.String("expected", tx.Signatures[0].String()),
			zap.String("got", sig.String()))
	}
	return sig, nil
}
