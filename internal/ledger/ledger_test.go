package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func buyEntry(mint string, at time.Time) BuyEntry {
	return BuyEntry{
		Mint:      mint,
		Signature: "buy-" + mint,
		SolDelta:  LamportsToSol(10_000_000).Neg(),
		At:        at,
		Creator:   "creator",
		Fee:       FeeMetrics{FeeLamports: 5_000, CULimit: 120_000, CUPrice: 10_000, Ratio: 0.0005},
	}
}

// exerciseStore runs the same contract against every Store implementation.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	at := time.UnixMilli(1_700_000_000_000)

	_, err := s.OpenTrade(ctx, "mintA")
	require.ErrorIs(t, err, ErrNoOpenTrade)

	require.NoError(t, s.InsertBuy(ctx, NewTrade(buyEntry("mintA", at))))
	require.NoError(t, s.InsertBuy(ctx, NewTrade(buyEntry("mintB", at.Add(time.Second)))))

	open, err := s.OpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, "mintA", open[0].Mint)

	got, err := s.OpenTrade(ctx, "mintA")
	require.NoError(t, err)
	assert.Equal(t, "buy-mintA", got.BuySignature)
	assert.True(t, got.BuySol.Equal(decimal.RequireFromString("-0.01")))
	assert.Equal(t, uint64(5_000), got.BuyFee.FeeLamports)
	assert.True(t, got.BoughtAt.Equal(at))

	err = s.CloseTrade(ctx, SellEntry{
		Mint:      "mintA",
		Signature: "sell-mintA",
		SolDelta:  decimal.RequireFromString("0.012"),
		PnL:       decimal.RequireFromString("0.002"),
		At:        at.Add(time.Minute),
	})
	require.NoError(t, err)

	_, err = s.OpenTrade(ctx, "mintA")
	assert.ErrorIs(t, err, ErrNoOpenTrade)
	assert.ErrorIs(t, s.CloseTrade(ctx, SellEntry{Mint: "mintA"}), ErrNoOpenTrade)

	open, err = s.OpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "mintB", open[0].Mint)

	all, err := s.Trades(ctx, at)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, StatusSold, all[0].Status)
	assert.Equal(t, "sell-mintA", all[0].SellSignature)

	recent, err := s.Trades(ctx, at.Add(500*time.Millisecond))
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "mintB", recent[0].Mint)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)

	var sold *Trade
	for _, tr := range s.All() {
		if tr.Mint == "mintA" {
			sold = &tr
		}
	}
	require.NotNil(t, sold)
	assert.Equal(t, StatusSold, sold.Status)
	assert.True(t, sold.PnL.Equal(decimal.RequireFromString("0.002")))
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(context.Background(), ":memory:", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestLamportsToSol(t *testing.T) {
	assert.Equal(t, "1.5", LamportsToSol(1_500_000_000).String())
	assert.Equal(t, "0.000005", LamportsToSol(5_000).String())
}

// blockingStore records the order of store calls.
type blockingStore struct {
	*MemoryStore
	mu    sync.Mutex
	order []string
}

func (b *blockingStore) InsertBuy(ctx context.Context, t *Trade) error {
	b.mu.Lock()
	b.order = append(b.order, "buy:"+t.Mint)
	b.mu.Unlock()
	return b.MemoryStore.InsertBuy(ctx, t)
}

func (b *blockingStore) CloseTrade(ctx context.Context, e SellEntry) error {
	b.mu.Lock()
	b.order = append(b.order, "sell:"+e.Mint)
	b.mu.Unlock()
	return b.MemoryStore.CloseTrade(ctx, e)
}

func TestRecorderPreservesOrder(t *testing.T) {
	store := &blockingStore{MemoryStore: NewMemoryStore()}
	r := NewRecorder(store, 16, zaptest.NewLogger(t))
	go r.Run(context.Background())

	r.LogBuy(buyEntry("m1", time.Now()))
	assert.Equal(t, 1, r.Unsold())
	r.ClearUnsold("m1")
	assert.Equal(t, 0, r.Unsold())
	r.LogSell(SellEntry{Mint: "m1", Signature: "s1", At: time.Now()})
	r.LogBuy(buyEntry("m2", time.Now()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Close(ctx))

	assert.Equal(t, []string{"buy:m1", "sell:m1", "buy:m2"}, store.order)
	dropped, failed := r.Stats()
	assert.Zero(t, dropped)
	assert.Zero(t, failed)

	// Entries after close are counted, not panicking.
	r.LogBuy(buyEntry("m3", time.Now()))
	dropped, _ = r.Stats()
	assert.Equal(t, uint64(1), dropped)
}

type fakeBalances struct {
	mu       sync.Mutex
	balances map[solana.PublicKey]uint64
	failures int
}

func (f *fakeBalances) TokenBalance(_ context.Context, mint solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return 0, errors.New("rpc hiccup")
	}
	return f.balances[mint], nil
}

func TestSyncFromChain(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	r := NewRecorder(store, 16, zaptest.NewLogger(t))

	held := solana.NewWallet().PublicKey()
	gone := solana.NewWallet().PublicKey()
	require.NoError(t, store.InsertBuy(ctx, NewTrade(buyEntry(held.String(), time.Now()))))
	require.NoError(t, store.InsertBuy(ctx, NewTrade(buyEntry(gone.String(), time.Now()))))

	balances := &fakeBalances{balances: map[solana.PublicKey]uint64{held: 1_000}, failures: 1}
	res, err := r.SyncFromChain(ctx, balances)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Closed)
	assert.Equal(t, []string{held.String()}, res.Held)
	assert.Equal(t, 1, r.Unsold())

	trade, err := r.GetOpenTrade(ctx, held.String())
	require.NoError(t, err)
	assert.Equal(t, "creator", trade.Creator)

	open, err := r.OpenTrades(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, held.String(), open[0].Mint)

	_, err = r.GetOpenTrade(ctx, gone.String())
	assert.ErrorIs(t, err, ErrNoOpenTrade)

	// a sell of the held trade clears its marker
	r.ClearUnsold(held.String())
	assert.Zero(t, r.Unsold())
}
