// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tiktok is a client for the TikTok Research API: client-credentials
// authentication and the video query endpoint.
package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/tiktok-metadata/internal/httputil"
	"github.com/pdiddy/tiktok-metadata/pkg/types"
)

const (
	defaultBaseURL = "https://open.tiktokapis.com"
	tokenPath      = "/v2/oauth/token/"
	videoQueryPath = "/v2/research/video/query/"

	// tokenSlack renews a token this long before it expires.
	tokenSlack = 60 * time.Second
)

// Token is a client-credentials access token.
type Token struct {
	AccessToken string `json:"access_token"` // #nosec G117 -- JSON field name, not a credential
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`

	expiresAt time.Time
}

// Valid reports whether the token can still be used at t.
func (t *Token) Valid(at time.Time) bool {
	return t != nil && t.AccessToken != "" && at.Add(tokenSlack).Before(t.expiresAt)
}

// Client talks to the Research API. A Client uses its credential serially;
// it is safe for concurrent use but never issues concurrent token requests.
type Client struct {
	baseURL      string
	clientKey    string
	clientSecret string
	userAgent    string
	fields       []string
	maxRetries   int
	httpClient   *http.Client
	pacer        *httputil.Pacer
	now          func() time.Time

	mu    sync.Mutex
	token *Token
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for every request.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

// WithBaseURL points the client at another host (used by tests).
func WithBaseURL(u string) Option {
	return func(cl *Client) { cl.baseURL = strings.TrimRight(u, "/") }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(cl *Client) { cl.userAgent = ua }
}

// WithFields selects the video fields requested from the query endpoint.
func WithFields(fields []string) Option {
	return func(cl *Client) {
		if len(fields) > 0 {
			cl.fields = fields
		}
	}
}

// WithMaxRetries sets the retry budget for 429 and 5xx responses.
func WithMaxRetries(n int) Option {
	return func(cl *Client) { cl.maxRetries = n }
}

// WithRateLimit paces queries to perSecond requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(cl *Client) { cl.pacer = httputil.NewPacer(perSecond) }
}

// NewClient returns a Client for the given client-credentials pair.
func NewClient(clientKey, clientSecret string, opts ...Option) *Client {
	c := &Client{
		baseURL:      defaultBaseURL,
		clientKey:    clientKey,
		clientSecret: clientSecret,
		fields:       types.DefaultFields,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns a cached access token, requesting a new one when the cached
// token is missing or about to expire.
func (c *Client) Token(ctx context.Context) (*Token, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token.Valid(c.now()) {
		return c.token, nil
	}
	tok, err := c.fetchToken(ctx)
	if err != nil {
		return nil, err
	}
	c.token = tok
	return tok, nil
}

// invalidate drops the cached token so the next call re-authenticates.
func (c *Client) invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

type tokenError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	LogID       string `json:"log_id"`
}

func (c *Client) fetchToken(ctx context.Context) (*Token, error) {
	if c.clientKey == "" || c.clientSecret == "" {
		return nil, fmt.Errorf("%w: client key and secret are required", ErrAuth)
	}

	form := url.Values{}
	form.Set("client_key", c.clientKey)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.setUserAgent(req)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	var tok Token
	if resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(body, &tok); err != nil {
			return nil, fmt.Errorf("parsing token response: %w", err)
		}
	}
	if tok.AccessToken == "" {
		var te tokenError
		_ = json.Unmarshal(body, &te)
		apiErr := &APIError{Status: resp.StatusCode, Code: te.Error, Message: te.Description, LogID: te.LogID}
		if apiErr.Unwrap() == nil {
			return nil, fmt.Errorf("%w: %v", ErrAuth, apiErr)
		}
		return nil, apiErr
	}

	tok.expiresAt = c.now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	log.WithFields(log.Fields{
		"token_type": tok.TokenType,
		"expires_in": tok.ExpiresIn,
	}).Debug("obtained research API access token")
	return &tok, nil
}

func (c *Client) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
