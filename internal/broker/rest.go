package broker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/qxcapital/drbot/internal/market"
	"github.com/qxcapital/drbot/internal/session"
)

// ═══════════════════════════════════════════════════════════════════════════════
// FUTURES GATEWAY CLIENT
// ═══════════════════════════════════════════════════════════════════════════════
//
// Thin JSON client for a ProjectX-style futures gateway. Implements both
// the order-submission contract and the bar source. The caller supplies a
// valid bearer token; token refresh and retry policy live outside the core.
//
// ═══════════════════════════════════════════════════════════════════════════════

const (
	orderTypeMarket = 2

	sideCodeBuy  = 0
	sideCodeSell = 1

	barUnitMinute = 2
)

// RESTConfig identifies the gateway, account and instrument.
type RESTConfig struct {
	BaseURL      string
	Token        string
	AccountName  string
	ContractName string

	BarMinutes int // bar interval, default 5
	BarLimit   int // bars per fetch, default 350
}

// RESTClient talks to the gateway. Account and contract IDs are resolved
// once at construction; an unresolvable name is a setup failure with no
// degraded mode.
type RESTClient struct {
	cfg        RESTConfig
	httpClient *http.Client
	accountID  int64
	contractID string
}

// NewRESTClient resolves the configured account and contract and returns a
// ready client.
func NewRESTClient(ctx context.Context, cfg RESTConfig) (*RESTClient, error) {
	if cfg.BarMinutes == 0 {
		cfg.BarMinutes = 5
	}
	if cfg.BarLimit == 0 {
		cfg.BarLimit = 350
	}
	c := &RESTClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	// Bars only need the contract; paper mode runs without an account.
	if cfg.AccountName != "" {
		if err := c.resolveAccount(ctx); err != nil {
			return nil, fmt.Errorf("resolve account %q: %w", cfg.AccountName, err)
		}
	}
	if err := c.resolveContract(ctx); err != nil {
		return nil, fmt.Errorf("resolve contract %q: %w", cfg.ContractName, err)
	}
	log.Info().
		Int64("account_id", c.accountID).
		Str("contract_id", c.contractID).
		Msg("💳 Gateway client ready")
	return c, nil
}

func (c *RESTClient) resolveAccount(ctx context.Context) error {
	var resp struct {
		Accounts []struct {
			ID   int64  `json:"id"`
			Name string `json:"name"`
		} `json:"accounts"`
	}
	if err := c.post(ctx, "/api/Account/search", map[string]any{"onlyActiveAccounts": true}, &resp); err != nil {
		return err
	}
	for _, a := range resp.Accounts {
		if a.Name == c.cfg.AccountName {
			c.accountID = a.ID
			return nil
		}
	}
	return fmt.Errorf("account not found")
}

func (c *RESTClient) resolveContract(ctx context.Context) error {
	var resp struct {
		Contracts []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"contracts"`
	}
	payload := map[string]any{"searchText": c.cfg.ContractName, "live": false}
	if err := c.post(ctx, "/api/Contract/search", payload, &resp); err != nil {
		return err
	}
	for _, ct := range resp.Contracts {
		if ct.Name == c.cfg.ContractName || strings.Contains(ct.Description, c.cfg.ContractName) {
			c.contractID = ct.ID
			return nil
		}
	}
	return fmt.Errorf("contract not found")
}

// SubmitOrder places a market order on the resolved account and contract.
func (c *RESTClient) SubmitOrder(ctx context.Context, side Side, size int) (string, error) {
	code := sideCodeBuy
	if side == Sell {
		code = sideCodeSell
	}
	payload := map[string]any{
		"accountId":  c.accountID,
		"contractId": c.contractID,
		"type":       orderTypeMarket,
		"side":       code,
		"size":       size,
	}
	var resp struct {
		OrderID      json.Number `json:"orderId"`
		Success      bool        `json:"success"`
		ErrorMessage string      `json:"errorMessage"`
	}
	if err := c.post(ctx, "/api/Order/place", payload, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.OrderID.String() == "" {
		return "", fmt.Errorf("order rejected: %s", resp.ErrorMessage)
	}
	return resp.OrderID.String(), nil
}

// FetchRecentBars pulls the latest closed bars and returns them ascending
// in exchange time.
func (c *RESTClient) FetchRecentBars(ctx context.Context) ([]market.Bar, error) {
	end := time.Now().UTC().Truncate(time.Minute)
	start := end.Add(-time.Duration(c.cfg.BarMinutes*c.cfg.BarLimit) * time.Minute)

	payload := map[string]any{
		"contractId":        c.contractID,
		"live":              false,
		"startTime":         start.Format("2006-01-02T15:04:05") + "Z",
		"endTime":           end.Format("2006-01-02T15:04:05") + "Z",
		"unit":              barUnitMinute,
		"unitNumber":        c.cfg.BarMinutes,
		"limit":             c.cfg.BarLimit,
		"includePartialBar": false,
	}
	var resp struct {
		Bars []struct {
			T time.Time `json:"t"`
			O float64   `json:"o"`
			H float64   `json:"h"`
			L float64   `json:"l"`
			C float64   `json:"c"`
			V int64     `json:"v"`
		} `json:"bars"`
	}
	if err := c.post(ctx, "/api/History/retrieveBars", payload, &resp); err != nil {
		return nil, err
	}

	bars := make([]market.Bar, 0, len(resp.Bars))
	for _, rb := range resp.Bars {
		bars = append(bars, market.Bar{
			Start:  rb.T.In(session.Eastern),
			Open:   rb.O,
			High:   rb.H,
			Low:    rb.L,
			Close:  rb.C,
			Volume: rb.V,
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Start.Before(bars[j].Start) })
	return market.Clean(bars), nil
}

func (c *RESTClient) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(data))
	}
	return json.Unmarshal(data, out)
}
