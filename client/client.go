// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielhkuo/factcheck-votes/auth"
	"github.com/danielhkuo/factcheck-votes/models"
)

// ErrNetworkTimeout means a request ran past its deadline
var ErrNetworkTimeout = errors.New("network timeout")

// APIError is a non-2xx answer from the server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("vote API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("vote API returned status %d: %s", e.StatusCode, e.Message)
}

// Client talks to the vote API on behalf of one voter
type Client struct {
	baseURL    string
	voterToken string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL, voterToken string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		voterToken: voterToken,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitVote posts value for itemID. The server applies toggle rules, so
// sending the value already held removes it.
func (c *Client) SubmitVote(ctx context.Context, itemID string, value models.Vote) (models.VoteResponse, error) {
	var resp models.VoteResponse
	err := c.do(ctx, http.MethodPost, itemPath(itemID, "votes"), models.SubmitVoteRequest{Value: string(value)}, &resp)
	return resp, err
}

func (c *Client) DeleteVote(ctx context.Context, itemID string) (models.VoteResponse, error) {
	var resp models.VoteResponse
	err := c.do(ctx, http.MethodDelete, itemPath(itemID, "votes"), nil, &resp)
	return resp, err
}

func (c *Client) GetStats(ctx context.Context, itemID string) (models.VoteStats, error) {
	var stats models.VoteStats
	err := c.do(ctx, http.MethodGet, itemPath(itemID, "stats"), nil, &stats)
	return stats, err
}

// GetUserVote returns VoteNone when the voter holds no vote
func (c *Client) GetUserVote(ctx context.Context, itemID string) (models.Vote, error) {
	var resp models.UserVoteResponse
	if err := c.do(ctx, http.MethodGet, itemPath(itemID, "votes/me"), nil, &resp); err != nil {
		return models.VoteNone, err
	}
	if resp.Value == nil {
		return models.VoteNone, nil
	}
	return *resp.Value, nil
}

func itemPath(itemID, suffix string) string {
	return "/items/" + url.PathEscape(itemID) + "/" + suffix
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.voterToken != "" {
		req.Header.Set(auth.VoterTokenHeader, c.voterToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%s %s: %w", method, path, ErrNetworkTimeout)
		}
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e models.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			apiErr.Message = e.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if isTimeout(err) {
			return fmt.Errorf("%s %s: %w", method, path, ErrNetworkTimeout)
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
