package execution

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/pump-sniper/internal/blockchain/solbc"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"github.com/rovshanmuradov/pump-sniper/internal/wallet"
	"go.uber.org/zap"
)

// Side of a trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// ChainReader is the read side of the RPC used for sells and curve lookups.
type ChainReader interface {
	GetAccountData(ctx context.Context, account solana.PublicKey) ([]byte, solana.PublicKey, error)
	GetTokenBalance(ctx context.Context, account solana.PublicKey) (uint64, error)
}

// TraderConfig tunes instruction parameters.
type TraderConfig struct {
	BuySlippageBps   uint64
	BuyComputeUnits  uint32
	SellComputeUnits uint32
}

// DefaultTraderConfig returns default compute limits and 500 bps slippage.
func DefaultTraderConfig() TraderConfig {
	return TraderConfig{
		BuySlippageBps:   pumpfun.DefaultBuySlippageBps,
		BuyComputeUnits:  120_000,
		SellComputeUnits: 100_000,
	}
}

// BuyRequest describes a buy. Curve is optional.
type BuyRequest struct {
	Mint     solana.PublicKey
	Creator  solana.PublicKey
	Curve    *pumpfun.BondingCurve
	Lamports uint64
}

// SellRequest describes a sell of the full token balance.
type SellRequest struct {
	Mint        solana.PublicKey
	Creator     solana.PublicKey
	BuyLamports uint64
	// Multiplier applied to the expected SOL output (0.98, 0.95, ...).
	Multiplier float64
	// Curve, when present, is used instead of an RPC read.
	Curve *pumpfun.BondingCurve
}

// PreparedTx is a signed transaction ready for submission.
type PreparedTx struct {
	Side        Side
	Asset       solana.PublicKey
	Tx          *solana.Transaction
	Signature   solana.Signature
	Fee         FeeInfo
	TokenAmount uint64
	SolLimit    uint64
	FromCurve   bool
}

// Trader turns trade intents into signed Pump.fun transactions.
type Trader struct {
	protocol *pumpfun.Config
	wallet   *wallet.Wallet
	builder  *Builder
	reader   ChainReader
	cfg      TraderConfig
	logger   *zap.Logger
}

// NewTrader creates a trader.
func NewTrader(protocol *pumpfun.Config, w *wallet.Wallet, builder *Builder, reader ChainReader, cfg TraderConfig, logger *zap.Logger) *Trader {
	return &Trader{
		protocol: protocol,
		wallet:   w,
		builder:  builder,
		reader:   reader,
		cfg:      cfg,
		logger:   logger.Named("trader"),
	}
}

// Wallet returns the trading wallet address.
func (t *Trader) Wallet() solana.PublicKey { return t.wallet.PublicKey }

// BuildBuy builds and signs a buy without any network I/O, so the signature
// is known before anything is sent.
func (t *Trader) BuildBuy(req BuyRequest) (*PreparedTx, error) {
	accts := t.protocol.DeriveTradeAccounts(req.Mint, req.Creator, t.wallet.PublicKey)
	quote := pumpfun.QuoteBuy(req.Curve, req.Lamports, t.cfg.BuySlippageBps)

	ataIx, err := t.wallet.CreateATAIdempotentInstruction(req.Mint)
	if err != nil {
		return nil, fmt.Errorf("ata instruction: %w", err)
	}
	buyIx := pumpfun.BuildBuyInstruction(accts, quote.TokenAmount, quote.MaxSolCost)

	tx, fee, err := t.builder.Build(req.Mint.String(), t.cfg.BuyComputeUnits, req.Lamports, ataIx, buyIx)
	if err != nil {
		return nil, err
	}
	return &PreparedTx{
		Side:        SideBuy,
		Asset:       req.Mint,
		Tx:          tx,
		Signature:   tx.Signatures[0],
		Fee:         fee,
		TokenAmount: quote.TokenAmount,
		SolLimit:    quote.MaxSolCost,
		FromCurve:   quote.FromCurve,
	}, nil
}

// PrepareSell reads the token balance (and curve if not supplied) and builds
// a signed sell of the full balance.
func (t *Trader) PrepareSell(ctx context.Context, req SellRequest) (*PreparedTx, error) {
	ata, err := t.wallet.GetATA(req.Mint)
	if err != nil {
		return nil, fmt.Errorf("ata: %w", err)
	}
	balance, err := t.reader.GetTokenBalance(ctx, ata)
	if err != nil && !solbc.IsAccountNotFoundError(err) {
		return nil, fmt.Errorf("token balance: %w", err)
	}
	if balance == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNothingToSell, req.Mint)
	}

	curve := req.Curve
	if curve == nil {
		curve, _, err = t.FetchCurve(ctx, req.Mint)
		if err != nil {
			t.logger.Debug("Curve read failed, using fallback floor",
				zap.String("mint", req.Mint.String()),
				zap.Error(err))
		}
	}

	accts := t.protocol.DeriveTradeAccounts(req.Mint, req.Creator, t.wallet.PublicKey)
	quote := pumpfun.QuoteSell(curve, balance, req.Multiplier, req.BuyLamports)
	sellIx := pumpfun.BuildSellInstruction(accts, quote.TokenAmount, quote.MinSolOutput)

	tx, fee, err := t.builder.Build(req.Mint.String(), t.cfg.SellComputeUnits, quote.MinSolOutput, sellIx)
	if err != nil {
		return nil, err
	}
	return &PreparedTx{
		Side:        SideSell,
		Asset:       req.Mint,
		Tx:          tx,
		Signature:   tx.Signatures[0],
		Fee:         fee,
		TokenAmount: quote.TokenAmount,
		SolLimit:    quote.MinSolOutput,
		FromCurve:   quote.FromCurve,
	}, nil
}

// FetchCurve reads the bonding curve of mint. ok is false when the account
// data is too short to decode.
func (t *Trader) FetchCurve(ctx context.Context, mint solana.PublicKey) (*pumpfun.BondingCurve, bool, error) {
	data, _, err := t.reader.GetAccountData(ctx, pumpfun.DeriveBondingCurve(mint, t.protocol.ProgramID))
	if err != nil {
		return nil, false, err
	}
	curve, ok := pumpfun.ParseBondingCurve(data)
	return curve, ok, nil
}

// TokenBalance returns the wallet's balance of mint in base units. A missing
// token account holds nothing.
func (t *Trader) TokenBalance(ctx context.Context, mint solana.PublicKey) (uint64, error) {
	ata, err := t.wallet.GetATA(mint)
	if err != nil {
		return 0, err
	}
	balance, err := t.reader.GetTokenBalance(ctx, ata)
	if solbc.IsAccountNotFoundError(err) {
		return 0, nil
	}
	return balance, err
}

var _ ChainReader = (*solbc.Client)(nil)
