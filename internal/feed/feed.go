package feed

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// LIVE QUOTE STREAM
// ═══════════════════════════════════════════════════════════════════════════════
//
// Optional websocket feed of last-trade prices for the instrument. Exit
// checks prefer a fresh quote over the last bar close; when the stream is
// down or stale the engine silently falls back to bar data.
//
// ═══════════════════════════════════════════════════════════════════════════════

const reconnectDelay = 5 * time.Second

type quoteMsg struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	TS     int64   `json:"ts"` // unix millis
}

// Stream holds the most recent traded price seen on the socket.
type Stream struct {
	mu sync.RWMutex

	url     string
	symbol  string
	running bool
	stopCh  chan struct{}
	conn    *websocket.Conn

	price   float64
	priceAt time.Time
}

// NewStream creates a quote stream for one symbol. Start must be called.
func NewStream(url, symbol string) *Stream {
	return &Stream{url: url, symbol: symbol, stopCh: make(chan struct{})}
}

// Start begins the connect/read loop in the background.
func (s *Stream) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	go s.connectionLoop()
	log.Info().Str("url", s.url).Str("symbol", s.symbol).Msg("📡 Quote stream started")
}

// Stop closes the socket and halts reconnection.
func (s *Stream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	if s.conn != nil {
		s.conn.Close()
	}
}

// LastPrice returns the latest quote and its receive time. ok is false
// until the first quote arrives.
func (s *Stream) LastPrice() (price float64, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.priceAt.IsZero() {
		return 0, time.Time{}, false
	}
	return s.price, s.priceAt, true
}

func (s *Stream) connectionLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
		if err != nil {
			log.Warn().Err(err).Msg("Quote stream dial failed, retrying")
			select {
			case <-s.stopCh:
				return
			case <-time.After(reconnectDelay):
				continue
			}
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		s.readLoop(conn)
		conn.Close()
	}
}

func (s *Stream) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("Quote stream read error, reconnecting")
			return
		}

		var msg quoteMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Symbol != "" && msg.Symbol != s.symbol {
			continue
		}

		s.mu.Lock()
		s.price = msg.Price
		if msg.TS > 0 {
			s.priceAt = time.UnixMilli(msg.TS)
		} else {
			s.priceAt = time.Now()
		}
		s.mu.Unlock()
	}
}
