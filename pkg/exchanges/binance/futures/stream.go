package futures

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// Kline is a single candle delivered by the websocket stream.
type Kline struct {
	Symbol    string
	Interval  string
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Final     bool // true when the candle has closed
}

// StreamClient consumes public futures websocket streams.
type StreamClient struct {
	streamURL string
	dialer    *websocket.Dialer
}

// NewStreamClient builds a websocket client; testnet toggles the host.
func NewStreamClient(testnet bool) *StreamClient {
	host := "fstream.binance.com"
	if testnet {
		host = "stream.binancefuture.com"
	}
	return &StreamClient{
		streamURL: (&url.URL{Scheme: "wss", Host: host, Path: "/ws"}).String(),
		dialer:    websocket.DefaultDialer,
	}
}

// SubscribeKlines listens to a kline stream and pushes parsed candles into a
// channel. It returns the channel and a stop function.
func (c *StreamClient) SubscribeKlines(ctx context.Context, symbol, interval string) (<-chan Kline, func(), error) {
	// Binance requires lowercase symbols for websocket streams.
	stream := fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval)
	conn, _, err := c.dialer.DialContext(ctx, c.streamURL+"/"+stream, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial futures ws: %w", err)
	}

	out := make(chan Kline, 100)
	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() {
			close(done)
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		})
	}

	// The reader is the only sender on out, so it alone closes the channel.
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				stop()
				return
			case <-done:
				return
			default:
			}

			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
					strings.Contains(err.Error(), "use of closed network connection") {
					return
				}
				log.Printf("futures ws read error: %v", err)
				return
			}

			k, err := parseKlineMessage(msg)
			if err != nil {
				log.Printf("futures ws parse error: %v", err)
				continue
			}
			select {
			case out <- k:
			case <-done:
				return
			}
		}
	}()

	return out, stop, nil
}

func parseKlineMessage(msg []byte) (Kline, error) {
	var raw struct {
		Symbol string `json:"s"`
		Kline  struct {
			OpenTime  int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Interval  string `json:"i"`
			Open      string `json:"o"`
			High      string `json:"h"`
			Low       string `json:"l"`
			Close     string `json:"c"`
			Volume    string `json:"v"`
			Final     bool   `json:"x"`
		} `json:"k"`
	}
	if err := json.Unmarshal(msg, &raw); err != nil {
		return Kline{}, err
	}
	if raw.Symbol == "" {
		return Kline{}, fmt.Errorf("kline message missing symbol")
	}
	return Kline{
		Symbol:    raw.Symbol,
		Interval:  raw.Kline.Interval,
		OpenTime:  raw.Kline.OpenTime,
		CloseTime: raw.Kline.CloseTime,
		Open:      parseFloat(raw.Kline.Open),
		High:      parseFloat(raw.Kline.High),
		Low:       parseFloat(raw.Kline.Low),
		Close:     parseFloat(raw.Kline.Close),
		Volume:    parseFloat(raw.Kline.Volume),
		Final:     raw.Kline.Final,
	}, nil
}
