// Package ingest receives trade signals over a WebSocket feed and
// delivers them as domain signals. Malformed frames are dropped with a
// log line; the feed reconnects with exponential backoff.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"trade-sentinel/internal/domain"
)

// Config configures WebSocket feed behavior.
type Config struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the signal channel capacity; sends block when full so
	// no signal is ever dropped under burst.
	Buffer int
}

// DefaultConfig returns default feed configuration.
func DefaultConfig() Config {
	return Config{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            1024,
	}
}

// signalFrame is the wire form of one signal.
type signalFrame struct {
	Wallet     string  `json:"wallet"`
	Token      string  `json:"token"`
	AssetClass string  `json:"asset_class"`
	Action     string  `json:"action"`
	AmountUSD  float64 `json:"amount_usd"`
	Price      float64 `json:"price"`
	CreatedAt  int64   `json:"created_at"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Feed is a reconnecting WebSocket signal source.
type Feed struct {
	endpoint string
	config   Config
	log      *logrus.Entry

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	out  chan *domain.Signal
	done chan struct{}
	wg   sync.WaitGroup

	reconnecting atomic.Bool
}

// NewFeed connects to the endpoint and starts reading signals.
func NewFeed(ctx context.Context, endpoint string, config Config, log *logrus.Logger) (*Feed, error) {
	if log == nil {
		log = logrus.New()
	}
	if config.Buffer <= 0 {
		config.Buffer = DefaultConfig().Buffer
	}

	f := &Feed{
		endpoint: endpoint,
		config:   config,
		log:      log.WithField("component", "ingest"),
		out:      make(chan *domain.Signal, config.Buffer),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// Signals returns the channel of parsed signals. Closed on Close.
func (f *Feed) Signals() <-chan *domain.Signal {
	return f.out
}

// connect establishes the WebSocket connection.
func (f *Feed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// Close closes the connection and the signal channel.
func (f *Feed) Close() error {
	if f.closed.Swap(true) {
		return nil // Already closed
	}

	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.out)
	return nil
}

// readLoop reads frames and dispatches parsed signals.
func (f *Feed) readLoop() {
	defer f.wg.Done()

	reconnectDelay := f.config.ReconnectDelay

	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}

			if !f.reconnecting.Swap(true) {
				go f.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > f.config.MaxReconnectDelay {
				reconnectDelay = f.config.MaxReconnectDelay
			}

			select {
			case <-f.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = f.config.ReconnectDelay

		f.handleMessage(message)
	}
}

// reconnect waits out the backoff and re-establishes the connection.
func (f *Feed) reconnect(delay time.Duration) {
	defer f.reconnecting.Store(false)

	if f.closed.Load() {
		return
	}

	select {
	case <-f.done:
		return
	case <-time.After(delay):
	}

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
		f.conn = nil
	}
	f.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := f.connect(ctx); err != nil {
		f.log.WithError(err).Warn("reconnect failed, will retry")
		return
	}

	f.log.Info("reconnected to signal feed")
}

// handleMessage parses one frame and forwards the signal. Invalid
// frames are logged and dropped; the feed never admits a signal it
// cannot fully validate.
func (f *Feed) handleMessage(message []byte) {
	var frame signalFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		f.log.WithError(err).Warn("dropping unparseable signal frame")
		return
	}

	sig, err := frame.toSignal()
	if err != nil {
		f.log.WithError(err).WithField("wallet", frame.Wallet).Warn("dropping invalid signal")
		return
	}

	// Block until we can send - never drop validated signals
	select {
	case f.out <- sig:
	case <-f.done:
	}
}

func (fr *signalFrame) toSignal() (*domain.Signal, error) {
	if fr.Wallet == "" {
		return nil, fmt.Errorf("missing wallet")
	}
	if fr.Token == "" {
		return nil, fmt.Errorf("missing token")
	}

	class := domain.AssetClass(fr.AssetClass)
	if !class.Valid() {
		return nil, fmt.Errorf("unknown asset class %q", fr.AssetClass)
	}

	action := domain.SignalAction(fr.Action)
	if action != domain.SignalActionBuy && action != domain.SignalActionSell {
		return nil, fmt.Errorf("unknown action %q", fr.Action)
	}

	source := domain.SignalSource(fr.Source)
	if source != domain.SignalSourceWallet && source != domain.SignalSourceGraph {
		return nil, fmt.Errorf("unknown source %q", fr.Source)
	}

	if fr.Price <= 0 {
		return nil, fmt.Errorf("non-positive price %v", fr.Price)
	}
	if fr.AmountUSD < 0 {
		return nil, fmt.Errorf("negative amount %v", fr.AmountUSD)
	}
	if fr.CreatedAt <= 0 {
		return nil, fmt.Errorf("missing created_at")
	}
	if fr.Confidence < 0 || fr.Confidence > 1 {
		return nil, fmt.Errorf("confidence %v out of [0,1]", fr.Confidence)
	}

	return &domain.Signal{
		Wallet:     fr.Wallet,
		Token:      fr.Token,
		AssetClass: class,
		Action:     action,
		AmountUSD:  fr.AmountUSD,
		Price:      fr.Price,
		CreatedAt:  fr.CreatedAt,
		Source:     source,
		Confidence: fr.Confidence,
	}, nil
}

// pingLoop sends periodic ping frames to keep the connection alive.
func (f *Feed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				if err := f.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					// Connection might be dead, reader will handle reconnect
				}
			}
			f.connMu.Unlock()
		}
	}
}
