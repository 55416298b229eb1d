// Package futures implements the Binance USDT-M futures REST API surface the
// engine consumes: orders, protective stops, leverage/margin configuration,
// account state, fills, and public market data.
package futures

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"futures-engine/pkg/exchanges/common"
)

// Config holds Binance USDT-M futures credentials.
type Config struct {
	APIKey     string
	APISecret  string
	Testnet    bool
	RecvWindow int64 // ms
}

// Client talks to the Binance USDT-M futures REST API.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	clock      *common.Clock
	weight     *common.WeightTracker
}

// NewClient creates a futures client pointed at production or testnet.
func NewClient(cfg Config) *Client {
	base := "https://fapi.binance.com"
	if cfg.Testnet {
		base = "https://testnet.binancefuture.com"
	}
	if cfg.RecvWindow == 0 {
		cfg.RecvWindow = 5000
	}
	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		weight:     common.NewWeightTracker(2400, time.Minute),
	}
	c.clock = common.NewClock(func(ctx context.Context) (int64, error) {
		return c.ServerTime(ctx)
	})
	return c
}

// StartClockSync begins periodic server-time synchronization.
func (c *Client) StartClockSync(ctx context.Context) { c.clock.Start(ctx) }

// PlaceMarketOrder submits a market order and returns the exchange ack.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side common.Side, qty float64, clientID string) (common.OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", formatFloat(qty))
	if clientID != "" {
		params.Set("newClientOrderId", clientID)
	}

	body, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return common.OrderAck{}, err
	}
	var resp orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderAck{}, fmt.Errorf("decode order: %w", err)
	}
	return common.OrderAck{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		ClientID: resp.ClientOrderID,
		Status:   mapStatus(resp.Status),
	}, nil
}

// PlaceStopOrder submits a close-position protective order (TP or SL).
// closePosition=true makes the exchange close whatever quantity is open when
// the stop triggers, so the order needs no quantity of its own.
func (c *Client) PlaceStopOrder(ctx context.Context, symbol string, side common.Side, kind common.StopKind, stopPrice float64) (common.OrderAck, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", string(kind))
	params.Set("stopPrice", formatFloat(stopPrice))
	params.Set("closePosition", "true")
	params.Set("workingType", "MARK_PRICE")

	body, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return common.OrderAck{}, err
	}
	var resp orderResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return common.OrderAck{}, fmt.Errorf("decode stop order: %w", err)
	}
	return common.OrderAck{
		OrderID:  strconv.FormatInt(resp.OrderID, 10),
		ClientID: resp.ClientOrderID,
		Status:   mapStatus(resp.Status),
	}, nil
}

// CancelAllOpenOrders cancels every working order for a symbol.
func (c *Client) CancelAllOpenOrders(ctx context.Context, symbol string) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	_, err := c.doSigned(ctx, http.MethodDelete, "/fapi/v1/allOpenOrders", params)
	return err
}

// SetLeverage sets initial leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))
	_, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/leverage", params)
	return err
}

// SetMarginMode sets the margin mode for a symbol. The exchange rejects a
// no-op change with code -4046, which callers may ignore.
func (c *Client) SetMarginMode(ctx context.Context, symbol string, mode common.MarginMode) error {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("marginType", string(mode))
	_, err := c.doSigned(ctx, http.MethodPost, "/fapi/v1/marginType", params)
	return err
}

// Positions returns the position-risk view; symbol may be empty for all.
func (c *Client) Positions(ctx context.Context) ([]common.Position, error) {
	params := url.Values{}
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, err
	}
	var raw []positionRisk
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode positions: %w", err)
	}
	out := make([]common.Position, 0, len(raw))
	for _, p := range raw {
		out = append(out, common.Position{
			Symbol:        p.Symbol,
			Quantity:      parseFloat(p.PositionAmt),
			EntryPrice:    parseFloat(p.EntryPrice),
			MarkPrice:     parseFloat(p.MarkPrice),
			UnrealizedPnL: parseFloat(p.UnRealizedProfit),
			Leverage:      int(parseFloat(p.Leverage)),
		})
	}
	return out, nil
}

// OpenOrders returns working orders for a symbol.
func (c *Client) OpenOrders(ctx context.Context, symbol string) ([]common.OpenOrder, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v1/openOrders", params)
	if err != nil {
		return nil, err
	}
	var raw []openOrder
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode open orders: %w", err)
	}
	out := make([]common.OpenOrder, 0, len(raw))
	for _, o := range raw {
		out = append(out, common.OpenOrder{
			OrderID:   strconv.FormatInt(o.OrderID, 10),
			Symbol:    o.Symbol,
			Side:      common.Side(o.Side),
			Type:      o.OrigType,
			StopPrice: parseFloat(o.StopPrice),
			Quantity:  parseFloat(o.OrigQty),
		})
	}
	return out, nil
}

// RecentFills returns the newest account trades for a symbol, newest last.
func (c *Client) RecentFills(ctx context.Context, symbol string, limit int) ([]common.Fill, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.doSigned(ctx, http.MethodGet, "/fapi/v1/userTrades", params)
	if err != nil {
		return nil, err
	}
	var raw []userTrade
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode fills: %w", err)
	}
	out := make([]common.Fill, 0, len(raw))
	for _, t := range raw {
		side := common.SideBuy
		if !t.Buyer {
			side = common.SideSell
		}
		out = append(out, common.Fill{
			TradeID:     strconv.FormatInt(t.ID, 10),
			OrderID:     strconv.FormatInt(t.OrderID, 10),
			Symbol:      t.Symbol,
			Side:        side,
			Price:       parseFloat(t.Price),
			Quantity:    parseFloat(t.Qty),
			RealizedPnL: parseFloat(t.RealizedPnl),
			Commission:  parseFloat(t.Commission),
			Time:        t.Time,
		})
	}
	return out, nil
}

// SymbolFilters fetches lot-size and price filters for a symbol from
// exchangeInfo.
func (c *Client) SymbolFilters(ctx context.Context, symbol string) (common.SymbolFilters, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/exchangeInfo", url.Values{"symbol": {symbol}})
	if err != nil {
		return common.SymbolFilters{}, err
	}
	var info exchangeInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return common.SymbolFilters{}, fmt.Errorf("decode exchange info: %w", err)
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		f := common.SymbolFilters{
			Symbol:            s.Symbol,
			PricePrecision:    s.PricePrecision,
			QuantityPrecision: s.QuantityPrecision,
		}
		for _, flt := range s.Filters {
			switch flt.FilterType {
			case "LOT_SIZE":
				f.StepSize = parseFloat(flt.StepSize)
				f.MinQty = parseFloat(flt.MinQty)
			case "PRICE_FILTER":
				f.TickSize = parseFloat(flt.TickSize)
			case "MIN_NOTIONAL":
				f.MinNotional = parseFloat(flt.Notional)
			}
		}
		return f, nil
	}
	return common.SymbolFilters{}, &common.APIError{
		HTTPStatus: http.StatusNotFound,
		Code:       common.CodeInvalidSymbol,
		Message:    "symbol not in exchange info: " + symbol,
	}
}

// MarkPrice returns the current mark price for a symbol.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/premiumIndex", url.Values{"symbol": {symbol}})
	if err != nil {
		return 0, err
	}
	var resp struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decode mark price: %w", err)
	}
	return parseFloat(resp.MarkPrice), nil
}

// Klines fetches candles for a symbol and interval.
func (c *Client) Klines(ctx context.Context, symbol, interval string, limit int) ([][]any, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	body, err := c.doPublic(ctx, "/fapi/v1/klines", params)
	if err != nil {
		return nil, err
	}
	var raw [][]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	return raw, nil
}

// Tickers returns 24h statistics for every symbol.
func (c *Client) Tickers(ctx context.Context) ([]common.Ticker, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/ticker/24hr", url.Values{})
	if err != nil {
		return nil, err
	}
	var raw []ticker24h
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("decode tickers: %w", err)
	}
	out := make([]common.Ticker, 0, len(raw))
	for _, t := range raw {
		out = append(out, common.Ticker{
			Symbol:             t.Symbol,
			LastPrice:          parseFloat(t.LastPrice),
			PriceChangePercent: parseFloat(t.PriceChangePercent),
			QuoteVolume:        parseFloat(t.QuoteVolume),
		})
	}
	return out, nil
}

// ServerTime fetches the futures server time in epoch milliseconds.
func (c *Client) ServerTime(ctx context.Context) (int64, error) {
	body, err := c.doPublic(ctx, "/fapi/v1/time", url.Values{})
	if err != nil {
		return 0, err
	}
	var resp struct {
		ServerTime int64 `json:"serverTime"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, err
	}
	return resp.ServerTime, nil
}

// doSigned sends an authenticated request with timestamp, recvWindow and
// HMAC-SHA256 signature.
func (c *Client) doSigned(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
		return nil, errors.New("binance futures: API key/secret required")
	}
	params.Set("timestamp", strconv.FormatInt(c.clock.Now(), 10))
	params.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))

	// signature goes last, computed over the payload exactly as sent
	encoded := params.Encode()
	encoded += "&signature=" + sign(encoded, c.cfg.APISecret)
	var (
		req *http.Request
		err error
	)
	switch method {
	case http.MethodGet, http.MethodDelete:
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+encoded, nil)
	default:
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(encoded))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	return c.do(req)
}

// doPublic sends an unauthenticated request.
func (c *Client) doPublic(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance futures %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	c.weight.Observe(res.Header.Get("X-MBX-USED-WEIGHT-1M"))

	body, _ := io.ReadAll(res.Body)
	if res.StatusCode >= 300 {
		apiErr := &common.APIError{HTTPStatus: res.StatusCode}
		var parsed struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if json.Unmarshal(body, &parsed) == nil && parsed.Code != 0 {
			apiErr.Code = parsed.Code
			apiErr.Message = parsed.Msg
		} else {
			apiErr.Message = string(body)
		}
		return nil, apiErr
	}
	return body, nil
}

func sign(data, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parseFloat(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func mapStatus(s string) common.OrderStatus {
	switch s {
	case "NEW":
		return common.StatusNew
	case "PARTIALLY_FILLED":
		return common.StatusPartial
	case "FILLED":
		return common.StatusFilled
	case "CANCELED":
		return common.StatusCanceled
	case "REJECTED":
		return common.StatusRejected
	case "EXPIRED":
		return common.StatusExpired
	default:
		return common.StatusUnknown
	}
}
