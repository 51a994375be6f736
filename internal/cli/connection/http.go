package connection

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mtaadao/mtaa-realtime/internal/infra/buildinfo"
)

// DefaultTimeout bounds a single request.
const DefaultTimeout = 30 * time.Second

// APIError is a failed API call.
type APIError struct {
	Status     int
	Code       string
	Message    string
	Details    any
	RetryAfter int
}

func (e *APIError) Error() string {
	switch {
	case e.RetryAfter > 0:
		return fmt.Sprintf("%s (retry after %ds)", e.Message, e.RetryAfter)
	case e.Code != "":
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	default:
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
}

// IsNotFound reports whether err is a 404 API error.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// HTTPClient provides HTTP communication with the server.
type HTTPClient struct {
	baseURL    string
	adminKey   string
	serviceKey string
	client     *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithTLSConfig sets the client TLS settings, e.g. a private CA.
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *HTTPClient) {
		if cfg != nil {
			c.client.Transport = &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: cfg,
			}
		}
	}
}

// WithServiceKey sets the key sent to the business API. Without it the
// admin key is used there too.
func WithServiceKey(key string) Option {
	return func(c *HTTPClient) {
		c.serviceKey = key
	}
}

// NewHTTPClient creates a new HTTP client. server may omit the scheme.
func NewHTTPClient(server, adminKey string, opts ...Option) *HTTPClient {
	baseURL := strings.TrimRight(server, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}

	c := &HTTPClient{
		baseURL:  baseURL,
		adminKey: adminKey,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request and decodes the envelope data into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post performs a POST request with a JSON body and decodes the envelope
// data into out. body and out may be nil.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key := c.credential(path); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	req.Header.Set("User-Agent", "mtaa-cli/"+buildinfo.Version)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return ParseResponse(resp, out)
}

// credential picks the key for path. Health checks get none; the admin key
// never leaves /admin unless no service key is configured.
func (c *HTTPClient) credential(path string) string {
	switch {
	case strings.HasPrefix(path, "/admin/"):
		return c.adminKey
	case path == "/health" || path == "/ready":
		return ""
	case c.serviceKey != "":
		return c.serviceKey
	default:
		return c.adminKey
	}
}

// Delete performs a DELETE request and decodes the envelope data into out.
func (c *HTTPClient) Delete(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodDelete, path, nil, out)
}

// ParseResponse decodes an API response. On success the envelope's data
// field is decoded into target.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseError(resp, raw)
	}

	if target == nil {
		return nil
	}
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

func parseError(resp *http.Response, raw []byte) error {
	apiErr := &APIError{Status: resp.StatusCode}

	if resp.StatusCode == http.StatusTooManyRequests {
		var body struct {
			Error      string `json:"error"`
			RetryAfter int    `json:"retryAfter"`
		}
		if json.Unmarshal(raw, &body) == nil && body.Error != "" {
			apiErr.Message = body.Error
			apiErr.RetryAfter = body.RetryAfter
		}
		if apiErr.RetryAfter == 0 {
			apiErr.RetryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
		}
		if apiErr.Message == "" {
			apiErr.Message = "too many requests"
		}
		return apiErr
	}

	var env struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Details any    `json:"details"`
	}
	if json.Unmarshal(raw, &env) == nil {
		apiErr.Code = env.Code
		apiErr.Message = env.Message
		apiErr.Details = env.Details
	}
	return apiErr
}
