package ledger

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps trades in process memory. Used in simulate mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	trades []*Trade
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertBuy(_ context.Context, t *Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.trades = append(s.trades, &cp)
	return nil
}

func (s *MemoryStore) CloseTrade(_ context.Context, e SellEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.openLocked(e.Mint)
	if t == nil {
		return ErrNoOpenTrade
	}
	applySell(t, e)
	return nil
}

func (s *MemoryStore) OpenTrade(_ context.Context, mint string) (*Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t := s.openLocked(mint)
	if t == nil {
		return nil, ErrNoOpenTrade
	}
	cp := *t
	return &cp, nil
}

func (s *MemoryStore) OpenTrades(_ context.Context) ([]*Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Trade
	for _, t := range s.trades {
		if t.Status == StatusOpen {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoughtAt.Before(out[j].BoughtAt) })
	return out, nil
}

func (s *MemoryStore) Trades(_ context.Context, since time.Time) ([]*Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Trade
	for _, t := range s.trades {
		if !t.BoughtAt.Before(since) {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BoughtAt.Before(out[j].BoughtAt) })
	return out, nil
}

// All returns a copy of every trade, open or closed.
func (s *MemoryStore) All() []Trade {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Trade, 0, len(s.trades))
	for _, t := range s.trades {
		out = append(out, *t)
	}
	return out
}

func (s *MemoryStore) Close() error { return nil }

// openLocked returns the latest open trade of mint.
func (s *MemoryStore) openLocked(mint string) *Trade {
	for i := len(s.trades) - 1; i >= 0; i-- {
		if t := s.trades[i]; t.Mint == mint && t.Status == StatusOpen {
			return t
		}
	}
	return nil
}

func applySell(t *Trade, e SellEntry) {
	status := e.Status
	if status == "" {
		status = StatusSold
	}
	t.Status = status
	t.SellSignature = e.Signature
	t.SellSol = e.SolDelta
	t.PnL = e.PnL
	t.SoldAt = e.At
	t.SellFee = e.Fee
}
