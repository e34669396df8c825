package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultUpbitStreamURL = "wss://api.upbit.com/websocket/v1"

	streamInitialBackoff = time.Second
	streamMaxBackoff     = 60 * time.Second
	streamReadTimeout    = 90 * time.Second
	streamWriteTimeout   = 10 * time.Second
	defaultStaleAfter    = 2 * time.Minute
)

type priceReader interface {
	Price(ctx context.Context) (float64, error)
}

// UpbitStream keeps the latest trade price of one market from the Upbit ticker
// websocket. Price serves the cached value while it is fresh and asks Fallback
// otherwise.
type UpbitStream struct {
	URL        string
	Market     string
	Fallback   priceReader
	StaleAfter time.Duration

	dialer  websocket.Dialer
	now     func() time.Time
	backoff time.Duration

	mu    sync.RWMutex
	price float64
	at    time.Time
}

func NewUpbitStream(url, market string, fallback priceReader) *UpbitStream {
	if url == "" {
		url = DefaultUpbitStreamURL
	}
	return &UpbitStream{
		URL:        url,
		Market:     market,
		Fallback:   fallback,
		StaleAfter: defaultStaleAfter,
		dialer:     websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		now:        time.Now,
		backoff:    streamInitialBackoff,
	}
}

// Run connects and reads ticker frames until ctx is done, reconnecting with
// exponential backoff.
func (s *UpbitStream) Run(ctx context.Context) {
	for ctx.Err() == nil {
		conn, err := s.connect(ctx)
		if err != nil {
			log.Printf("upbit stream connect failed: %v (retry in %s)", err, s.backoff)
			s.wait(ctx)
			continue
		}
		s.backoff = streamInitialBackoff

		stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
		if err := s.readLoop(conn); err != nil && ctx.Err() == nil {
			log.Printf("upbit stream read error: %v", err)
		}
		stop()
		_ = conn.Close()

		if ctx.Err() == nil {
			s.wait(ctx)
		}
	}
}

func (s *UpbitStream) Price(ctx context.Context) (float64, error) {
	s.mu.RLock()
	price, at := s.price, s.at
	s.mu.RUnlock()

	if price > 0 && s.now().Sub(at) <= s.StaleAfter {
		return price, nil
	}
	if s.Fallback == nil {
		return 0, fmt.Errorf("upbit stream: no fresh price for %s", s.Market)
	}
	return s.Fallback.Price(ctx)
}

func (s *UpbitStream) connect(ctx context.Context) (*websocket.Conn, error) {
	conn, resp, err := s.dialer.DialContext(ctx, s.URL, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	subscribe := []map[string]any{
		{"ticket": uuid.NewString()},
		{"type": "ticker", "codes": []string{s.Market}},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(subscribe); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}
	log.Printf("upbit stream subscribed to %s", s.Market)
	return conn, nil
}

func (s *UpbitStream) readLoop(conn *websocket.Conn) error {
	for {
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handle(message)
	}
}

// handle records the trade price of a ticker frame for our market. Other frames
// are ignored.
func (s *UpbitStream) handle(data []byte) {
	var frame struct {
		Type       string  `json:"type"`
		Code       string  `json:"code"`
		TradePrice float64 `json:"trade_price"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return
	}
	if frame.Type != "ticker" || frame.Code != s.Market || frame.TradePrice <= 0 {
		return
	}
	s.mu.Lock()
	s.price = frame.TradePrice
	s.at = s.now()
	s.mu.Unlock()
}

func (s *UpbitStream) wait(ctx context.Context) {
	t := time.NewTimer(s.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
	s.backoff *= 2
	if s.backoff > streamMaxBackoff {
		s.backoff = streamMaxBackoff
	}
}
