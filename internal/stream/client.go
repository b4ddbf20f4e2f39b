// internal/stream/client.go
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/mr-tron/base58"
	"github.com/rovshanmuradov/pump-sniper/internal/dex/pumpfun"
	"go.uber.org/zap"
)

// Config configures the stream subscription.
type Config struct {
	URL    string
	Header http.Header

	ProgramID  solana.PublicKey
	Commitment string
	// IncludeFailed keeps failed transactions in the feed; needed to resolve
	// our own failed buys from the stream.
	IncludeFailed bool
	// CurveUpdates adds a programSubscribe for bonding-curve accounts.
	CurveUpdates bool
	// CurveDataSize is the dataSize filter for curve accounts; 0 disables it.
	CurveDataSize uint64
	Slots         bool

	PingInterval      time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HandshakeTimeout  time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
}

// DefaultConfig returns the default subscription for the Pump.fun program.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		ProgramID:         pumpfun.PumpFunProgramID,
		Commitment:        "confirmed",
		IncludeFailed:     true,
		CurveUpdates:      true,
		Slots:             true,
		PingInterval:      15 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
		ReconnectDelay:    500 * time.Millisecond,
		MaxReconnectDelay: 30 * time.Second,
	}
}

// Client is a reconnecting WebSocket subscriber that decodes notifications
// into events.
type Client struct {
	cfg     Config
	decoder *Decoder
	logger  *zap.Logger

	// OnFrame, when set, is called with the kind of every frame
	// ("transaction", "curve", "slot" or "dropped").
	OnFrame func(kind string)

	requestID atomic.Uint64
	connected atomic.Bool
	dropped   atomic.Uint64
}

// NewClient creates a stream client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	return &Client{
		cfg:     cfg,
		decoder: NewDecoder(cfg.ProgramID),
		logger:  logger.Named("stream"),
	}
}

// Connected reports whether a session is currently live.
func (c *Client) Connected() bool { return c.connected.Load() }

// Dropped returns the number of frames that could not be decoded.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Run keeps a subscription alive and delivers events to out until ctx is
// cancelled. Connection failures are retried with exponential backoff.
func (c *Client) Run(ctx context.Context, out chan<- Event) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.ReconnectDelay
	bo.MaxInterval = c.cfg.MaxReconnectDelay

	for {
		established, err := c.session(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if established {
			bo.Reset()
		}
		delay := bo.NextBackOff()
		c.logger.Warn("Stream session ended, reconnecting",
			zap.Error(err),
			zap.Duration("delay", delay))

		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// session runs one connection. established is true once every
// subscription was acknowledged.
func (c *Client) session(ctx context.Context, out chan<- Event) (established bool, err error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return false, fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	awaiting := make(map[uint64]string)
	for _, req := range c.subscriptions() {
		_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
		if err := conn.WriteJSON(req); err != nil {
			return false, fmt.Errorf("write %s: %w", req.Method, err)
		}
		awaiting[req.ID] = req.Method
	}

	_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	})
	go c.pingLoop(conn, done)
	defer c.connected.Store(false)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return established, fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		var frame wsFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.drop("malformed frame", err)
			continue
		}

		if frame.ID != nil {
			method, ok := awaiting[*frame.ID]
			if !ok {
				continue
			}
			delete(awaiting, *frame.ID)
			if frame.Error != nil {
				return established, fmt.Errorf("%s rejected: %w", method, frame.Error)
			}
			c.logger.Info("Subscribed", zap.String("method", method), zap.ByteString("subscription", frame.Result))
			if len(awaiting) == 0 {
				established = true
				c.connected.Store(true)
			}
			continue
		}

		if frame.Method == "" || frame.Params == nil {
			c.drop("frame without payload", nil)
			continue
		}

		ev, err := c.decoder.Decode(frame.Method, frame.Params.Result)
		if err != nil {
			if errors.Is(err, ErrIgnored) {
				continue
			}
			c.drop(frame.Method, err)
			continue
		}
		if c.OnFrame != nil {
			c.OnFrame(Kind(ev))
		}

		select {
		case out <- ev:
		case <-ctx.Done():
			return established, ctx.Err()
		}
	}
}

func (c *Client) drop(what string, err error) {
	c.dropped.Add(1)
	if c.OnFrame != nil {
		c.OnFrame("dropped")
	}
	c.logger.Debug("Dropping stream frame", zap.String("frame", what), zap.Error(err))
}

func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	if c.cfg.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Debug("Ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) subscriptions() []wsRequest {
	program := c.cfg.ProgramID.String()
	reqs := []wsRequest{{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "transactionSubscribe",
		Params: []interface{}{
			map[string]interface{}{
				"accountInclude": []string{program},
				"failed":         c.cfg.IncludeFailed,
				"vote":           false,
			},
			map[string]interface{}{
				"commitment":                     c.cfg.Commitment,
				"encoding":                       "base64",
				"transactionDetails":             "full",
				"maxSupportedTransactionVersion": 0,
			},
		},
	}}

	if c.cfg.CurveUpdates {
		filters := []interface{}{
			map[string]interface{}{
				"memcmp": map[string]interface{}{
					"offset": 0,
					"bytes":  base58.Encode(pumpfun.BondingCurveAccountDiscriminator[:]),
				},
			},
		}
		if c.cfg.CurveDataSize > 0 {
			filters = append(filters, map[string]interface{}{"dataSize": c.cfg.CurveDataSize})
		}
		reqs = append(reqs, wsRequest{
			JSONRPC: "2.0",
			ID:      c.requestID.Add(1),
			Method:  "programSubscribe",
			Params: []interface{}{
				program,
				map[string]interface{}{
					"commitment": c.cfg.Commitment,
					"encoding":   "base64",
					"filters":    filters,
				},
			},
		})
	}

	if c.cfg.Slots {
		reqs = append(reqs, wsRequest{
			JSONRPC: "2.0",
			ID:      c.requestID.Add(1),
			Method:  "slotSubscribe",
			Params:  []interface{}{},
		})
	}
	return reqs
}
