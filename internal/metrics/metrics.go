// internal/metrics/metrics.go
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "pump_sniper"

// Metrics holds every collector of the bot on its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Failures counts every failure path by reason.
	Failures *prometheus.CounterVec
	// Submissions counts transactions sent, by side and channel.
	Submissions *prometheus.CounterVec
	// Confirmations counts buy resolutions by winning path and outcome.
	Confirmations *prometheus.CounterVec
	// Sells counts sell dispatches by trigger and final outcome.
	Sells *prometheus.CounterVec
	// Admission counts buy admission decisions.
	Admission *prometheus.CounterVec
	// StreamFrames counts decoded stream frames by kind ("dropped" for undecodable).
	StreamFrames *prometheus.CounterVec
	// ConfirmLatency observes dispatch-to-confirmation time of buys.
	ConfirmLatency prometheus.Histogram

	Positions   prometheus.Gauge
	Pending     prometheus.Gauge
	BreakerOpen prometheus.Gauge
	CacheAge    *prometheus.GaugeVec
	LastSlot    prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failures by reason",
		}, []string{"reason"}),
		Submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Transactions submitted by side and channel",
		}, []string{"side", "channel"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmations_total",
			Help:      "Buy resolutions by path and outcome",
		}, []string{"path", "outcome"}),
		Sells: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sells_total",
			Help:      "Sell results by trigger and outcome",
		}, []string{"trigger", "outcome"}),
		Admission: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_total",
			Help:      "Buy admission decisions",
		}, []string{"decision"}),
		StreamFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_frames_total",
			Help:      "Stream frames by kind",
		}, []string{"kind"}),
		ConfirmLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "buy_confirm_seconds",
			Help:      "Time from buy dispatch to confirmation",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		Positions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "positions",
			Help:      "Open positions",
		}),
		Pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_submissions",
			Help:      "Buys awaiting confirmation",
		}),
		BreakerOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 while the circuit breaker is open",
		}),
		CacheAge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cache_age_seconds",
			Help:      "Age of cached values",
		}, []string{"cache"}),
		LastSlot: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_slot",
			Help:      "Last slot seen on the stream",
		}),
	}

	m.Registry.MustRegister(
		m.Failures, m.Submissions, m.Confirmations, m.Sells, m.Admission, m.StreamFrames, m.ConfirmLatency,
		m.Positions, m.Pending, m.BreakerOpen, m.CacheAge, m.LastSlot,
	)
	return m
}

// Failure increments the failure counter for reason.
func (m *Metrics) Failure(reason string) {
	m.Failures.WithLabelValues(reason).Inc()
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics endpoint listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
