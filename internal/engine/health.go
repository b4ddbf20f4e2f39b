// internal/engine/health.go
package engine

import (
	"sort"
	"time"

	"github.com/rovshanmuradov/pump-sniper/internal/risk"
	"go.uber.org/zap"
)

// Counters are cumulative engine totals since start.
type Counters struct {
	Buys            int
	Confirmed       int
	FailedBuys      int
	Activity        int
	SellsDispatched int
	Sold            int
	SellFailures    int
}

// HealthSnapshot is the periodic view of the engine.
type HealthSnapshot struct {
	At         time.Time
	Positions  []PositionView
	Pending    int
	Breaker    risk.BreakerState
	CacheAges  map[string]time.Duration
	Counters   Counters
	LastSlot   uint64
	CurveCache int
}

func (e *Engine) snapshot() HealthSnapshot {
	now := e.clk.Now()
	s := HealthSnapshot{
		At:         now,
		Pending:    len(e.pending),
		Breaker:    e.deps.Breaker.State(),
		CacheAges:  make(map[string]time.Duration, len(e.deps.Caches)),
		Counters:   e.counters,
		LastSlot:   e.lastSlot,
		CurveCache: e.curves.len(),
	}
	for _, pos := range e.positions {
		s.Positions = append(s.Positions, pos.view(now))
	}
	sort.Slice(s.Positions, func(i, j int) bool { return s.Positions[i].Age > s.Positions[j].Age })
	for name, c := range e.deps.Caches {
		s.CacheAges[name] = c.Age()
	}
	return s
}

// Snapshot is only safe to call from the loop goroutine or when it is not
// running.
func (e *Engine) Snapshot() HealthSnapshot { return e.snapshot() }

func (e *Engine) reportHealth() {
	s := e.snapshot()
	e.updateGauges()
	if s.Breaker.Open {
		e.metrics.BreakerOpen.Set(1)
	} else {
		e.metrics.BreakerOpen.Set(0)
	}
	ages := make([]zap.Field, 0, len(s.CacheAges))
	for name, age := range s.CacheAges {
		e.metrics.CacheAge.WithLabelValues(name).Set(age.Seconds())
		ages = append(ages, zap.Duration("cache_age_"+name, age))
	}

	e.logger.Info("Health",
		append([]zap.Field{
			zap.Int("positions", len(s.Positions)),
			zap.Int("pending", s.Pending),
			zap.Bool("breaker_open", s.Breaker.Open),
			zap.Uint64("last_slot", s.LastSlot),
			zap.Int("curves", s.CurveCache),
			zap.Int("buys", s.Counters.Buys),
			zap.Int("sold", s.Counters.Sold),
			zap.Int("sell_failures", s.Counters.SellFailures),
		}, ages...)...)

	if e.OnHealth != nil {
		e.OnHealth(s)
	}
}

func (e *Engine) updateGauges() {
	e.metrics.Positions.Set(float64(len(e.positions)))
	e.metrics.Pending.Set(float64(len(e.pending)))
}
