// Package account talks to the portfolio backend's REST API: user
// authentication, balances, bank accounts and fund transfers that ride
// alongside the voice session.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors mapped from backend status codes.
var (
	ErrNotFound        = errors.New("account: not found")
	ErrInvalidPassword = errors.New("account: invalid password")
	ErrBadRequest      = errors.New("account: bad request")
)

const defaultTimeout = 15 * time.Second

// Client is a thin client for the backend REST API. The zero value is not
// usable; construct with [NewClient].
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the API rooted at baseURL, e.g.
// "http://localhost:8000". A nil httpClient gets a default with a 15s
// timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

// User is the authenticated user record.
type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phonenumber"`
}

// BankAccount is one linked funding account.
type BankAccount struct {
	ID               int     `json:"bank_account_id"`
	BankName         string  `json:"bank_name"`
	AccountNumber    string  `json:"account_number"`
	AccountType      string  `json:"account_type"`
	AvailableBalance float64 `json:"available_balance"`
}

// TransferResult reports a completed bank-to-brokerage transfer.
type TransferResult struct {
	Success              bool    `json:"success"`
	Message              string  `json:"message"`
	NewCashBalance       float64 `json:"new_cash_balance"`
	BankBalanceRemaining float64 `json:"bank_balance_remaining"`
}

// StockQuote is a point-in-time market quote.
type StockQuote struct {
	Symbol        string  `json:"symbol"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	Open          float64 `json:"open"`
	DayHigh       float64 `json:"day_high"`
	DayLow        float64 `json:"day_low"`
	Volume        int64   `json:"volume"`
	MarketCap     int64   `json:"market_cap"`
	Name          string  `json:"name"`
	Timestamp     string  `json:"timestamp"`
}

// Authenticate verifies the user's credentials and returns their record.
func (c *Client) Authenticate(ctx context.Context, email, password string) (User, error) {
	q := url.Values{"email_id": {email}, "password": {password}}
	var out struct {
		Data    User   `json:"data"`
		Message string `json:"message"`
	}
	if err := c.get(ctx, "/api/users", q, &out); err != nil {
		return User{}, err
	}
	return out.Data, nil
}

// CashBalance returns the user's available cash, net of pending buy orders.
func (c *Client) CashBalance(ctx context.Context, userID int) (float64, error) {
	q := url.Values{"user_id": {strconv.Itoa(userID)}}
	var out struct {
		CashBalance float64 `json:"cash_balance"`
	}
	if err := c.get(ctx, "/api/cash_balance", q, &out); err != nil {
		return 0, err
	}
	return out.CashBalance, nil
}

// PortfolioSummary returns the user's holdings with current prices. The
// payload shape is owned by the backend, so it stays raw JSON.
func (c *Client) PortfolioSummary(ctx context.Context, userID int, realtime bool) (json.RawMessage, error) {
	q := url.Values{
		"user_id":  {strconv.Itoa(userID)},
		"realtime": {strconv.FormatBool(realtime)},
	}
	var out json.RawMessage
	if err := c.get(ctx, "/api/portfolio_summary", q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// BankAccounts lists the user's active funding accounts.
func (c *Client) BankAccounts(ctx context.Context, userID int) ([]BankAccount, error) {
	q := url.Values{"user_id": {strconv.Itoa(userID)}}
	var out struct {
		BankAccounts []BankAccount `json:"bank_accounts"`
	}
	if err := c.get(ctx, "/api/bank_accounts", q, &out); err != nil {
		return nil, err
	}
	return out.BankAccounts, nil
}

// TransferFunds moves amount from the given bank account into the user's
// brokerage cash balance.
func (c *Client) TransferFunds(ctx context.Context, userID, bankAccountID int, amount float64) (TransferResult, error) {
	q := url.Values{
		"user_id":         {strconv.Itoa(userID)},
		"bank_account_id": {strconv.Itoa(bankAccountID)},
		"amount":          {strconv.FormatFloat(amount, 'f', -1, 64)},
	}
	var out TransferResult
	if err := c.do(ctx, http.MethodPost, "/api/transfer_funds", q, &out); err != nil {
		return TransferResult{}, err
	}
	return out, nil
}

// StockQuote fetches a live quote for one ticker symbol.
func (c *Client) StockQuote(ctx context.Context, symbol string) (StockQuote, error) {
	var out StockQuote
	if err := c.get(ctx, "/api/stock_quote/"+url.PathEscape(symbol), nil, &out); err != nil {
		return StockQuote{}, err
	}
	return out, nil
}

// ResetDB restores the demo database to its seed state.
func (c *Client) ResetDB(ctx context.Context, userID int) error {
	q := url.Values{"user_id": {strconv.Itoa(userID)}}
	var out struct {
		Message string `json:"message"`
	}
	return c.get(ctx, "/api/reset_db", q, &out)
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("account: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("account: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp, path)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("account: read response: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("account: decode %s response: %w", path, err)
	}
	return nil
}

// statusError maps an error response onto a sentinel, keeping the backend's
// detail message.
func (c *Client) statusError(resp *http.Response, path string) error {
	var detail struct {
		Detail string `json:"detail"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(body, &detail)
	msg := detail.Detail
	if msg == "" {
		msg = resp.Status
	}

	var sentinel error
	switch resp.StatusCode {
	case http.StatusNotFound:
		sentinel = ErrNotFound
	case http.StatusUnauthorized:
		sentinel = ErrInvalidPassword
	case http.StatusBadRequest:
		sentinel = ErrBadRequest
	default:
		return fmt.Errorf("account: %s: %s", path, msg)
	}
	return fmt.Errorf("account: %s: %s: %w", path, msg, sentinel)
}
