package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/rovshanmuradov/pump-sniper/internal/blockchain"
	"github.com/rovshanmuradov/pump-sniper/internal/blockchain/solbc"
	"go.uber.org/zap"
)

// Channel names the path a transaction went out on.
type Channel string

const (
	ChannelRelay    Channel = "relay"
	ChannelRPC      Channel = "rpc"
	ChannelSimulate Channel = "simulate"
)

// Relay is the primary low-latency submission path.
type Relay interface {
	Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Broadcaster is the standard RPC submission and simulation path.
type Broadcaster interface {
	SendTransactionWithOpts(ctx context.Context, tx *solana.Transaction, opts blockchain.TransactionOptions) (solana.Signature, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction) (*blockchain.SimulationResult, error)
}

// Submission is the outcome of a successful Submit.
type Submission struct {
	Signature solana.Signature
	Channel   Channel
	// UnitsConsumed is only known for simulated submissions.
	UnitsConsumed uint64
}

// SubmitterConfig configures the submitter.
type SubmitterConfig struct {
	// Simulate runs simulateTransaction instead of broadcasting.
	Simulate bool
	// SendTimeout bounds each channel attempt.
	SendTimeout time.Duration
}

// Submitter sends signed transactions through the relay with RPC fallback.
type Submitter struct {
	relay    Relay
	rpc      Broadcaster
	analyzer *solbc.ErrorAnalyzer
	cfg      SubmitterConfig
	logger   *zap.Logger
}

// NewSubmitter creates a submitter. relay may be nil to go straight to RPC.
func NewSubmitter(relay Relay, rpcClient Broadcaster, cfg SubmitterConfig, logger *zap.Logger) *Submitter {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 5 * time.Second
	}
	return &Submitter{
		relay:    relay,
		rpc:      rpcClient,
		analyzer: solbc.NewErrorAnalyzer(logger),
		cfg:      cfg,
		logger:   logger.Named("submitter"),
	}
}

// Simulating reports whether the submitter is in simulate mode.
func (s *Submitter) Simulating() bool { return s.cfg.Simulate }

// Submit dispatches a signed transaction. It returns an *OnChainError when
// the program rejected it (simulation or preflight) and an error wrapping
// ErrSubmission when both channels failed.
func (s *Submitter) Submit(ctx context.Context, tx *solana.Transaction) (Submission, error) {
	if len(tx.Signatures) == 0 {
		return Submission{}, errors.New("transaction is not signed")
	}
	if s.cfg.Simulate {
		return s.simulate(ctx, tx)
	}

	relayErr := ErrRelayDisabled
	if s.relay != nil {
		sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
		sig, err := s.relay.Send(sendCtx, tx)
		cancel()
		if err == nil {
			return Submission{Signature: sig, Channel: ChannelRelay}, nil
		}
		relayErr = err
		if !errors.Is(err, ErrRelayDisabled) {
			s.logger.Warn("Relay submission failed, falling back to RPC",
				zap.String("signature", tx.Signatures[0].String()),
				zap.Error(err))
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	sig, err := s.rpc.SendTransactionWithOpts(sendCtx, tx, blockchain.TransactionOptions{
		SkipPreflight:       true,
		PreflightCommitment: rpc.CommitmentProcessed,
	})
	if err == nil {
		return Submission{Signature: sig, Channel: ChannelRPC}, nil
	}
	if pf, ok := s.analyzer.AnalyzeRPCError(err); ok {
		return Submission{}, newOnChainError(pf)
	}
	return Submission{}, &submissionError{relay: relayErr, rpc: err}
}

func (s *Submitter) simulate(ctx context.Context, tx *solana.Transaction) (Submission, error) {
	res, err := s.rpc.SimulateTransaction(ctx, tx)
	if err != nil {
		if pf, ok := s.analyzer.AnalyzeRPCError(err); ok {
			return Submission{}, newOnChainError(pf)
		}
		return Submission{}, &submissionError{relay: ErrRelayDisabled, rpc: fmt.Errorf("simulate: %w", err)}
	}
	if pf, failed := s.analyzer.AnalyzeTransactionError(res.Err); failed {
		s.logger.Info("Simulation rejected",
			zap.String("signature", tx.Signatures[0].String()),
			zap.Int("code", pf.Code),
			zap.Strings("logs", res.Logs))
		return Submission{}, newOnChainError(pf)
	}
	s.logger.Info("Simulation succeeded",
		zap.String("signature", tx.Signatures[0].String()),
		zap.Uint64("units_consumed", res.UnitsConsumed))
	return Submission{Signature: tx.Signatures[0], Channel: ChannelSimulate, UnitsConsumed: res.UnitsConsumed}, nil
}
