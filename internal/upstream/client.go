// Package upstream is the HTTP client for OpenRouter's REST API. It is
// stateless and safe for concurrent use; every operation returns an
// entity.ApiResult so callers never branch on a bare Go error for a
// network condition.
package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/DimazzzZ/openrouter-proxy-core/internal/domain/entity"
)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

// Client wraps HTTP calls to OpenRouter.
type Client struct {
	baseURL     string
	httpReferer string
	xTitle      string
	http        *http.Client
	logger      *zap.Logger
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	HTTPReferer string
	XTitle      string
	Timeout     time.Duration
}

// New builds a Client with a hardened transport: bounded dial/TLS/idle
// timeouts so a hung upstream never exhausts the connection pool.
func New(cfg Config, logger *zap.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
	}

	return &Client{
		baseURL:     baseURL,
		httpReferer: cfg.HTTPReferer,
		xTitle:      cfg.XTitle,
		http: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		logger: logger,
	}
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body []byte) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if c.httpReferer != "" {
		req.Header.Set("HTTP-Referer", c.httpReferer)
	}
	if c.xTitle != "" {
		req.Header.Set("X-Title", c.xTitle)
	}
	return req, nil
}

// do executes req and decodes a successful (2xx) JSON body into out. Any
// network failure, non-2xx status, or decode failure is folded into a
// Failure ApiResult so callers never need a second error channel.
func do[T any](c *Client, req *http.Request, out *T) entity.ApiResult[T] {
	resp, err := c.http.Do(req)
	if err != nil {
		return entity.Failure[T]("upstream request failed: "+err.Error(), 0, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return entity.Failure[T]("reading upstream response: "+err.Error(), resp.StatusCode, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return entity.Failure[T](string(respBody), resp.StatusCode, nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return entity.Failure[T]("decoding upstream response: "+err.Error(), resp.StatusCode, err)
		}
		return entity.Success(*out, resp.StatusCode)
	}
	var zero T
	return entity.Success(zero, resp.StatusCode)
}

// KeyInfo is the body of GET /key.
type KeyInfo struct {
	Data struct {
		Label      string  `json:"label"`
		Usage      float64 `json:"usage"`
		Limit      *float64 `json:"limit"`
		IsFreeTier bool    `json:"is_free_tier"`
	} `json:"data"`
}

// CurrentKeyInfo calls GET /key with the given API key.
func (c *Client) CurrentKeyInfo(ctx context.Context, apiKey string) entity.ApiResult[KeyInfo] {
	req, err := c.newRequest(ctx, http.MethodGet, "/key", apiKey, nil)
	if err != nil {
		return entity.Failure[KeyInfo](err.Error(), 0, err)
	}
	var out KeyInfo
	return do(c, req, &out)
}

type listKeysResponse struct {
	Data []entity.ApiKeyRecord `json:"data"`
}

// ListKeys calls GET /keys with the provisioning key.
func (c *Client) ListKeys(ctx context.Context, provisioningKey string) entity.ApiResult[[]entity.ApiKeyRecord] {
	req, err := c.newRequest(ctx, http.MethodGet, "/keys", provisioningKey, nil)
	if err != nil {
		return entity.Failure[[]entity.ApiKeyRecord](err.Error(), 0, err)
	}
	var out listKeysResponse
	result := do(c, req, &out)
	if !result.Ok {
		return entity.Failure[[]entity.ApiKeyRecord](result.Message, result.StatusCode, result.Cause)
	}
	return entity.Success(result.Data.Data, result.StatusCode)
}

// CreatedKey is the response to POST /keys: the record plus the raw key,
// which OpenRouter only ever returns at creation time.
type CreatedKey struct {
	Data entity.ApiKeyRecord `json:"data"`
	Key  string              `json:"key"`
}

// CreateKey calls POST /keys with the provisioning key.
func (c *Client) CreateKey(ctx context.Context, provisioningKey, name string, limit *float64) entity.ApiResult[CreatedKey] {
	payload := map[string]any{"name": name}
	if limit != nil {
		payload["limit"] = *limit
	}
	body, _ := json.Marshal(payload)
	req, err := c.newRequest(ctx, http.MethodPost, "/keys", provisioningKey, body)
	if err != nil {
		return entity.Failure[CreatedKey](err.Error(), 0, err)
	}
	var out CreatedKey
	return do(c, req, &out)
}

// DeleteKey calls DELETE /keys/{hash} with the provisioning key.
func (c *Client) DeleteKey(ctx context.Context, provisioningKey, hash string) entity.ApiResult[bool] {
	req, err := c.newRequest(ctx, http.MethodDelete, "/keys/"+hash, provisioningKey, nil)
	if err != nil {
		return entity.Failure[bool](err.Error(), 0, err)
	}
	result := do[struct{}](c, req, nil)
	if !result.Ok {
		return entity.Failure[bool](result.Message, result.StatusCode, result.Cause)
	}
	return entity.Success(true, result.StatusCode)
}

// Credits is the body of GET /credits.
type Credits struct {
	Data struct {
		TotalCredits float64 `json:"total_credits"`
		TotalUsage   float64 `json:"total_usage"`
	} `json:"data"`
}

// GetCredits calls GET /credits with the API key.
func (c *Client) GetCredits(ctx context.Context, apiKey string) entity.ApiResult[Credits] {
	req, err := c.newRequest(ctx, http.MethodGet, "/credits", apiKey, nil)
	if err != nil {
		return entity.Failure[Credits](err.Error(), 0, err)
	}
	var out Credits
	return do(c, req, &out)
}

type modelsResponse struct {
	Data []entity.ModelInfo `json:"data"`
}

// ListModels calls GET /models. No auth is required.
func (c *Client) ListModels(ctx context.Context) entity.ApiResult[[]entity.ModelInfo] {
	req, err := c.newRequest(ctx, http.MethodGet, "/models", "", nil)
	if err != nil {
		return entity.Failure[[]entity.ModelInfo](err.Error(), 0, err)
	}
	var out modelsResponse
	result := do(c, req, &out)
	if !result.Ok {
		return entity.Failure[[]entity.ModelInfo](result.Message, result.StatusCode, result.Cause)
	}
	return entity.Success(result.Data.Data, result.StatusCode)
}

// ProviderInfo is one entry of GET /providers.
type ProviderInfo struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type providersResponse struct {
	Data []ProviderInfo `json:"data"`
}

// ListProviders calls GET /providers. No auth is required.
func (c *Client) ListProviders(ctx context.Context) entity.ApiResult[[]ProviderInfo] {
	req, err := c.newRequest(ctx, http.MethodGet, "/providers", "", nil)
	if err != nil {
		return entity.Failure[[]ProviderInfo](err.Error(), 0, err)
	}
	var out providersResponse
	result := do(c, req, &out)
	if !result.Ok {
		return entity.Failure[[]ProviderInfo](result.Message, result.StatusCode, result.Cause)
	}
	return entity.Success(result.Data.Data, result.StatusCode)
}

// ActivityEntry is one daily per-model rollup from GET /activity.
type ActivityEntry struct {
	Date             string  `json:"date"`
	Model            string  `json:"model"`
	Requests         int     `json:"requests"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Cost             float64 `json:"cost"`
}

type activityResponse struct {
	Data []ActivityEntry `json:"data"`
}

// GetActivity calls GET /activity with the provisioning key.
func (c *Client) GetActivity(ctx context.Context, provisioningKey string) entity.ApiResult[[]ActivityEntry] {
	req, err := c.newRequest(ctx, http.MethodGet, "/activity", provisioningKey, nil)
	if err != nil {
		return entity.Failure[[]ActivityEntry](err.Error(), 0, err)
	}
	var out activityResponse
	result := do(c, req, &out)
	if !result.Ok {
		return entity.Failure[[]ActivityEntry](result.Message, result.StatusCode, result.Cause)
	}
	return entity.Success(result.Data.Data, result.StatusCode)
}

// ChatCompletion performs POST /chat/completions and returns the raw
// response for the caller to read, so it serves both streaming and
// non-streaming requests. body is the already-translated OpenRouter-shaped
// JSON request.
func (c *Client) ChatCompletion(ctx context.Context, apiKey string, body []byte) (*http.Response, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/chat/completions", apiKey, body)
	if err != nil {
		return nil, fmt.Errorf("upstream: build chat completion request: %w", err)
	}
	return c.http.Do(req)
}
