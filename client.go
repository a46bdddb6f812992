// Package flowauth is a Go client for the flowauth HTTP API.
package flowauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/layer-3/flowauth/core"
	transport "github.com/layer-3/flowauth/transport/http"
)

// Nonce is a challenge returned by GenerateNonce
type Nonce struct {
	Nonce string `json:"nonce"`
	AppID string `json:"appID"`
}

// AccountProof is the signed proof submitted to GenerateAuthToken
type AccountProof struct {
	Address    string   `json:"address"`
	Nonce      string   `json:"nonce"`
	Message    string   `json:"message,omitempty"`
	KeyIDs     []int    `json:"keyIds"`
	Signatures []string `json:"signatures"`
}

// Client calls the flowauth endpoints
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customises a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the service at baseURL
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateNonce requests a fresh challenge
func (c *Client) GenerateNonce(ctx context.Context) (*Nonce, error) {
	var nonce Nonce
	if err := c.call(ctx, "/v1/generateNonce", "", struct{}{}, &nonce); err != nil {
		return nil, err
	}
	return &nonce, nil
}

// GenerateAuthToken exchanges an account proof for a session token
func (c *Client) GenerateAuthToken(ctx context.Context, proof AccountProof) (string, error) {
	var env transport.Envelope
	if err := c.call(ctx, "/v1/generateAuthToken", "", proof, &env); err != nil {
		return "", err
	}
	if err := envelopeError(http.StatusOK, env); err != nil {
		return "", err
	}
	return env.Token, nil
}

// CreateDAO creates a DAO as the holder of token and returns its id
func (c *Client) CreateDAO(ctx context.Context, token, name string, members []core.Member) (string, error) {
	req := struct {
		Name    string        `json:"name"`
		Members []core.Member `json:"members"`
	}{name, members}

	var env transport.Envelope
	if err := c.call(ctx, "/v1/daos", token, req, &env); err != nil {
		return "", err
	}
	if err := envelopeError(http.StatusOK, env); err != nil {
		return "", err
	}
	return env.ID, nil
}

// Logout revokes token
func (c *Client) Logout(ctx context.Context, token string) error {
	var env transport.Envelope
	return c.call(ctx, "/v1/logout", token, struct{}{}, &env)
}

func (c *Client) call(ctx context.Context, path, token string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var env transport.Envelope
		_ = json.Unmarshal(raw, &env)
		return envelopeError(resp.StatusCode, env)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// envelopeError maps an error envelope back to the package errors
func envelopeError(statusCode int, env transport.Envelope) error {
	if statusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if statusCode == http.StatusOK && env.Status != transport.StatusError {
		return nil
	}

	switch env.Msg {
	case transport.MsgInvalidNonce:
		return ErrInvalidNonce
	case transport.MsgExpiredNonce:
		return ErrExpiredNonce
	case transport.MsgInvalidAccountProof:
		return ErrInvalidAccountProof
	case transport.MsgCreatorNotMember:
		return ErrCreatorNotMember
	}
	return &APIError{StatusCode: statusCode, Msg: env.Msg}
}
