// internal/blockchain/types.go
package blockchain

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// TransactionOptions определяет опции для отправки транзакций.
type TransactionOptions struct {
	SkipPreflight       bool
	PreflightCommitment rpc.CommitmentType
	MaxRetries          *uint
}

// SimulationResult представляет результат симуляции транзакции.
type SimulationResult struct {
	Err           interface{}
	Logs          []string
	UnitsConsumed uint64
}

// SignatureStatus is the reduced view of a getSignatureStatuses entry.
type SignatureStatus struct {
	// Found is false when the node has no record of the signature yet.
	Found bool
	// Confirmed is true at confirmed or finalized commitment.
	Confirmed bool
	Slot      uint64
	// Err is the raw transaction error, nil on success.
	Err interface{}
}

// PrioritizationFee is one sample of getRecentPrioritizationFees.
type PrioritizationFee struct {
	Slot              uint64 `json:"slot"`
	PrioritizationFee uint64 `json:"prioritizationFee"`
}

// Client определяет общий интерфейс для взаимодействия с блокчейном.
type Client interface {
	// Получить последний blockhash.
	GetRecentBlockhash(ctx context.Context) (solana.Hash, error)
	// Получить сырые данные аккаунта и его владельца.
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, error)
	// Получить баланс токенного аккаунта в базовых единицах.
	GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
	// Получить статус подписи транзакции.
	GetSignatureStatus(ctx context.Context, signature solana.Signature) (SignatureStatus, error)
	// Отправить транзакцию с опциями.
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts TransactionOptions) (solana.Signature, error)
	// Симулировать транзакцию.
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*SimulationResult, error)
	// Получить баланс аккаунта.
	GetBalance(ctx context.Context, pubkey solana.PublicKey, commitment rpc.CommitmentType) (uint64, error)
	// Получить последние приоритетные комиссии для аккаунтов.
	GetRecentPrioritizationFees(ctx context.Context, accounts []solana.PublicKey) ([]PrioritizationFee, error)
}
