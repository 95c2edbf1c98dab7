// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api provides the HTTP client for communicating with the Ironbad
// backend: contract resources over plain JSON and chat/agent streams over
// server-sent events.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/etlundquist/ironbad-tui/internal/chat"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the Ironbad client.
type ClientConfig struct {
	// BaseURL is the backend API base URL (default: http://127.0.0.1:8000)
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// Timeout for non-streaming requests (default: 30s)
	Timeout time.Duration

	// StreamTimeout for establishing a streaming connection. Once the
	// stream is established the connection lives until the server closes
	// it or the context is cancelled. (default: 10s)
	StreamTimeout time.Duration

	// RequestsPerSecond throttles outgoing requests so list refreshes
	// cannot hammer the backend (default: 10)
	RequestsPerSecond float64

	// BurstSize for the request throttle (default: 20)
	BurstSize int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:8000",
		Timeout:           30 * time.Second,
		StreamTimeout:     10 * time.Second,
		RequestsPerSecond: 10,
		BurstSize:         20,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ironbad backend API.
//
// The Client is thread-safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	// streamClient carries no overall timeout: a chat stream is open for
	// as long as the model is generating.
	streamClient *http.Client
	limiter      *rate.Limiter
}

// NewClient creates a new Ironbad client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new Ironbad client with custom
// configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.StreamTimeout == 0 {
		config.StreamTimeout = 10 * time.Second
	}
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 10
	}
	if config.BurstSize == 0 {
		config.BurstSize = 20
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		// The header timeout bounds stream establishment without putting a
		// deadline on the body, which stays open while tokens arrive.
		streamClient: &http.Client{
			Transport: &http.Transport{
				ResponseHeaderTimeout: config.StreamTimeout,
			},
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.BurstSize),
	}
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// newRequest builds a request with the standard headers. Every request
// carries a fresh request id so backend logs can be correlated with client
// ones.
func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}
	return req, nil
}

// do throttles, executes, and maps transport errors to client errors.
func (c *Client) do(client *http.Client, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, &ClientError{Type: ErrTypeTimeout, Message: "request throttled past deadline", Cause: err}
	}
	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		var ne net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, ErrTimeout
		}
		return nil, &ClientError{Type: ErrTypeUnreachable, Message: "Ironbad API is not reachable", Cause: err}
	}
	return resp, nil
}

// getJSON issues a GET and decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return nil
}

// statusError maps a non-2xx response to a typed client error, draining a
// short error body for the message when present.
func statusError(resp *http.Response) error {
	var detail struct {
		Detail string `json:"detail"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(body, &detail)

	message := fmt.Sprintf("request failed: %s", resp.Status)
	if detail.Detail != "" {
		message = detail.Detail
	}

	errType := ErrTypeUnknown
	switch {
	case resp.StatusCode == http.StatusNotFound:
		errType = ErrTypeNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		errType = ErrTypeBadRequest
	case resp.StatusCode >= 500:
		errType = ErrTypeServer
	}
	return &ClientError{Type: errType, StatusCode: resp.StatusCode, Message: message}
}

// =============================================================================
// CONTRACT OPERATIONS
// =============================================================================

// ListContracts retrieves all contracts.
func (c *Client) ListContracts(ctx context.Context) ([]Contract, error) {
	var out []Contract
	if err := c.getJSON(ctx, "/contracts", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContract retrieves a single contract by id.
func (c *Client) GetContract(ctx context.Context, contractID string) (*Contract, error) {
	var out Contract
	if err := c.getJSON(ctx, "/contracts/"+contractID, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetContractSections retrieves the parsed sections of a contract in
// document order.
func (c *Client) GetContractSections(ctx context.Context, contractID string) ([]Section, error) {
	var out []Section
	if err := c.getJSON(ctx, "/contracts/"+contractID+"/sections", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContractClauses retrieves the matched clauses of a contract.
func (c *Client) GetContractClauses(ctx context.Context, contractID string) ([]Clause, error) {
	var out []Clause
	if err := c.getJSON(ctx, "/contracts/"+contractID+"/clauses", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContractIssues retrieves the detected issues of a contract.
func (c *Client) GetContractIssues(ctx context.Context, contractID string) ([]Issue, error) {
	var out []Issue
	if err := c.getJSON(ctx, "/contracts/"+contractID+"/issues", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// =============================================================================
// THREAD OPERATIONS
// =============================================================================

// GetCurrentThread retrieves the single non-archived chat thread for a
// contract. Returns ErrNoCurrentThread when no conversation exists yet.
func (c *Client) GetCurrentThread(ctx context.Context, contractID string) (*chat.Thread, error) {
	var out chat.Thread
	err := c.getJSON(ctx, "/contracts/"+contractID+"/chat/threads/current", &out)
	if err != nil {
		var ce *ClientError
		if errors.As(err, &ce) && ce.StatusCode == http.StatusNotFound {
			return nil, ErrNoCurrentThread
		}
		return nil, err
	}
	return &out, nil
}

// GetThreadMessages retrieves the full message history of a thread. The
// caller re-sorts client-side; server order is not trusted.
func (c *Client) GetThreadMessages(ctx context.Context, contractID, threadID string) ([]chat.Message, error) {
	var out []chat.Message
	path := "/contracts/" + contractID + "/chat/threads/" + threadID + "/messages"
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ArchiveThread archives a thread server-side, making room for a new
// conversation on the contract. Returns the archived thread.
func (c *Client) ArchiveThread(ctx context.Context, contractID, threadID string) (*chat.Thread, error) {
	path := "/contracts/" + contractID + "/chat/threads/" + threadID
	req, err := c.newRequest(ctx, http.MethodPut, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(c.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}
	var out chat.Thread
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode response", Cause: err}
	}
	return &out, nil
}

// =============================================================================
// STREAMING OPERATIONS
// =============================================================================

// SendChatMessage posts a user message to the contract chat endpoint and
// returns the event stream of the response. The caller owns the stream and
// must Close it.
func (c *Client) SendChatMessage(ctx context.Context, req ChatMessageCreate) (*Stream, error) {
	path := "/contracts/" + req.ContractID + "/chat/messages"
	return c.openStream(ctx, path, req)
}

// StartAgentRun posts a user message to the agent run endpoint and returns
// the event stream of the run. The caller owns the stream and must Close
// it.
func (c *Client) StartAgentRun(ctx context.Context, req AgentRunRequest) (*Stream, error) {
	return c.openStream(ctx, "/agent/runs", req)
}

// openStream performs the streaming POST. Establishment (connect, headers,
// status) is bounded by the stream client's header timeout; the body is
// then read without a deadline under the caller's context.
func (c *Client) openStream(ctx context.Context, path string, payload any) (*Stream, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &ClientError{Type: ErrTypeUnknown, Message: "failed to marshal request", Cause: err}
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.do(c.streamClient, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	return newStream(resp.Body), nil
}
