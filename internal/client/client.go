// Package client is a Go client for the txgate HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/txgate/txgate/internal/auth"
	"github.com/txgate/txgate/internal/transactions"
)

// Client calls the gateway API on behalf of one Session.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New builds a client for baseURL, e.g. "http://localhost:3001/api".
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = NewSession(nil)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		session: session,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Session returns the session used by the client.
func (c *Client) Session() *Session { return c.session }

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates and stores the returned token in the session.
func (c *Client) Login(ctx context.Context, email, password string) (auth.AuthResult, error) {
	var out auth.AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", credentials{email, password}, nil, &out); err != nil {
		return auth.AuthResult{}, err
	}
	return out, c.session.SetToken(out.AccessToken)
}

// Register creates an account and stores the returned token in the session.
func (c *Client) Register(ctx context.Context, email, password string) (auth.AuthResult, error) {
	var out auth.AuthResult
	if err := c.do(ctx, http.MethodPost, "/auth/register", credentials{email, password}, nil, &out); err != nil {
		return auth.AuthResult{}, err
	}
	return out, c.session.SetToken(out.AccessToken)
}

// Logout forgets the session token. Tokens are not revoked server side.
func (c *Client) Logout() error {
	return c.session.Clear()
}

// Me returns the current user and permissions.
func (c *Client) Me(ctx context.Context) (auth.UserSummary, error) {
	var out auth.UserSummary
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out)
	return out, err
}

// ListTransactions returns every transaction, newest first.
func (c *Client) ListTransactions(ctx context.Context) ([]transactions.Transaction, error) {
	var out []transactions.Transaction
	err := c.do(ctx, http.MethodGet, "/transactions", nil, nil, &out)
	return out, err
}

// CreateTransaction records a transaction. idempotencyKey may be empty.
func (c *Client) CreateTransaction(ctx context.Context, title string, price transactions.Money, idempotencyKey string) (transactions.Transaction, error) {
	body := struct {
		Title    string             `json:"title"`
		PriceGBP transactions.Money `json:"priceGBP"`
	}{title, price}
	var headers http.Header
	if idempotencyKey != "" {
		headers = http.Header{transactions.IdempotencyHeader: []string{idempotencyKey}}
	}
	var out transactions.Transaction
	err := c.do(ctx, http.MethodPost, "/transactions", body, headers, &out)
	return out, err
}

// ApproveTransaction approves a pending transaction.
func (c *Client) ApproveTransaction(ctx context.Context, id uuid.UUID) (transactions.Transaction, error) {
	var out transactions.Transaction
	err := c.do(ctx, http.MethodPost, "/transactions/"+id.String()+"/approve", nil, nil, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in any, headers http.Header, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	token, err := c.session.Token()
	if err != nil {
		return fmt.Errorf("client: load token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("client: decode %s %s: %w", method, path, err)
	}
	return nil
}
