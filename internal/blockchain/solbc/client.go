// internal/blockchain/solbc/client.go
package solbc

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/rovshanmuradov/pump-sniper/internal/blockchain"
	"go.uber.org/zap"
)

// Client – тонкий адаптер для взаимодействия с блокчейном Solana через solana-go.
type Client struct {
	rpc    *rpc.Client
	logger *zap.Logger
}

// Определение ошибок
var (
	ErrAccountNotFound = errors.New("account not found")
)

// IsAccountNotFoundError проверяет, является ли ошибка "not found"
func IsAccountNotFoundError(err error) bool {
	return errors.Is(err, ErrAccountNotFound) || isMissingAccount(err)
}

// isMissingAccount распознаёт ответ RPC об отсутствующем аккаунте. Для
// токенных аккаунтов нода отвечает JSON-RPC ошибкой "could not find account",
// а не пустым значением.
func isMissingAccount(err error) bool {
	if errors.Is(err, rpc.ErrNotFound) {
		return true
	}
	var rpcErr *jsonrpc.RPCError
	return errors.As(err, &rpcErr) && strings.Contains(strings.ToLower(rpcErr.Message), "could not find account")
}

// NewClient создаёт новый клиент, принимая RPC URL и логгер через dependency injection.
func NewClient(rpcURL string, logger *zap.Logger) *Client {
	return &Client{
		rpc:    rpc.New(rpcURL),
		logger: logger.Named("solbc-client"),
	}
}

// GetRecentBlockhash получает последний blockhash.
func (c *Client) GetRecentBlockhash(ctx context.Context) (solana.Hash, error) {
	result, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		c.logger.Debug("GetRecentBlockhash error", zap.Error(err))
		return solana.Hash{}, err
	}
	return result.Value.Blockhash, nil
}

// GetAccountData возвращает сырые данные аккаунта и программу-владельца.
func (c *Client) GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, error) {
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: rpc.CommitmentConfirmed,
		Encoding:   solana.EncodingBase64,
	})
	if err != nil {
		if isMissingAccount(err) {
			return nil, solana.PublicKey{}, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
		}
		c.logger.Debug("GetAccountData error",
			zap.String("pubkey", account.String()),
			zap.Error(err))
		return nil, solana.PublicKey{}, err
	}
	if res == nil || res.Value == nil {
		return nil, solana.PublicKey{}, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
	}
	return res.Value.Data.GetBinary(), res.Value.Owner, nil
}

// GetTokenBalance получает баланс токенного аккаунта. Для несуществующего
// аккаунта возвращается ErrAccountNotFound.
func (c *Client) GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	res, err := c.rpc.GetTokenAccountBalance(ctx, account, rpc.CommitmentConfirmed)
	if err != nil {
		if isMissingAccount(err) {
			return 0, fmt.Errorf("%w: %s", ErrAccountNotFound, account)
		}
		return 0, fmt.Errorf("token balance %s: %w", account, err)
	}
	if res == nil || res.Value == nil {
		return 0, nil
	}
	amount, err := strconv.ParseUint(res.Value.Amount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token amount %q: %w", res.Value.Amount, err)
	}
	return amount, nil
}

// GetSignatureStatus получает статус одной транзакции.
func (c *Client) GetSignatureStatus(ctx context.Context, signature solana.Signature) (blockchain.SignatureStatus, error) {
	result, err := c.rpc.GetSignatureStatuses(ctx, false, signature)
	if err != nil {
		c.logger.Debug("GetSignatureStatuses error", zap.Error(err))
		return blockchain.SignatureStatus{}, err
	}
	if result == nil || len(result.Value) == 0 || result.Value[0] == nil {
		return blockchain.SignatureStatus{}, nil
	}
	st := result.Value[0]
	return blockchain.SignatureStatus{
		Found: true,
		Confirmed: st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
			st.ConfirmationStatus == rpc.ConfirmationStatusFinalized,
		Slot: st.Slot,
		Err:  st.Err,
	}, nil
}

// SendTransactionWithOpts отправляет транзакцию с заданными опциями.
func (c *Client) SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error) {
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       opts.SkipPreflight,
		PreflightCommitment: opts.PreflightCommitment,
		MaxRetries:          opts.MaxRetries,
	})
	if err != nil {
		c.logger.Debug("SendTransactionWithOpts error", zap.Error(err))
		return solana.Signature{}, err
	}
	return sig, nil
}

// SimulateTransaction симулирует транзакцию и возвращает результат симуляции.
func (c *Client) SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error) {
	result, err := c.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		c.logger.Debug("SimulateTransaction error", zap.Error(err))
		return nil, err
	}
	units := uint64(0)
	if result.Value.UnitsConsumed != nil {
		units = *result.Value.UnitsConsumed
	}
	return &blockchain.SimulationResult{
		Err:           result.Value.Err,
		Logs:          result.Value.Logs,
		UnitsConsumed: units,
	}, nil
}

// GetBalance получает баланс аккаунта.
func (c *Client) GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error) {
	result, err := c.rpc.GetBalance(ctx, pubkey, commitment)
	if err != nil {
		c.logger.Debug("GetBalance error", zap.Error(err))
		return 0, err
	}
	return result.Value, nil
}

// GetRecentPrioritizationFees получает приоритетные комиссии последних слотов,
// в которых писались указанные аккаунты.
func (c *Client) GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]blockchain.PrioritizationFee, error) {
	keys := make([]string, 0, len(accounts))
	for _, a := range accounts {
		keys = append(keys, a.String())
	}

	var out []blockchain.PrioritizationFee
	if err := c.rpc.RPCCallForInto(ctx, &out, "getRecentPrioritizationFees", []interface{}{keys}); err != nil {
		c.logger.Debug("getRecentPrioritizationFees error", zap.Error(err))
		return nil, err
	}
	return out, nil
}

// Гарантируем, что Client реализует интерфейс blockchain.Client.
var _ blockchain.Client = (*Client)(nil)
