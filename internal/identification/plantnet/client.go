package plantnet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"verdant/internal/identification"
	"verdant/internal/language"
	"verdant/internal/logging"
)

// ProviderID is the stable identifier for this provider in configuration,
// cache keys, and results.
const ProviderID = "plantnet"

// defaultProject is the Pl@ntNet flora project queried when none is chosen.
const defaultProject = "all"

// Client provides access to the Pl@ntNet identification API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	project    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ identification.Provider = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithProject selects a Pl@ntNet flora project (e.g. "k-world-flora").
func WithProject(project string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(project); trimmed != "" {
			c.project = trimmed
		}
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, ProviderID)
	}
}

// New creates a Pl@ntNet client.
func New(apiKey, baseURL, lang string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("plantnet api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("plantnet base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(lang),
		project:    defaultProject,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// ID returns the provider identifier.
func (c *Client) ID() string { return ProviderID }

// Identify uploads image content for classification and returns normalized
// suggestions. Pl@ntNet pairs organ hints with images one to one; a single
// image is uploaded, so only the first hint is sent and the rest are dropped.
func (c *Client) Identify(ctx context.Context, content []byte, opts identification.Options) ([]identification.Suggestion, error) {
	if len(content) == 0 {
		return nil, errors.New("image content must not be empty")
	}

	body, contentType, err := encodeUpload(content, organHint(opts.Organs))
	if err != nil {
		return nil, fmt.Errorf("encode upload: %w", err)
	}

	endpoint, err := url.Parse(c.baseURL + "/identify/" + url.PathEscape(c.project))
	if err != nil {
		return nil, fmt.Errorf("parse plantnet url: %w", err)
	}
	params := url.Values{}
	params.Set("api-key", c.apiKey)
	if lang := c.requestLanguage(opts); lang != "" {
		params.Set("lang", lang)
	}
	endpoint.RawQuery = params.Encode()

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}

	requestStart := time.Now()
	resp, err := c.doWithRetry(ctx, build)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	// Pl@ntNet signals "no species matched" with a 404.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plantnet identification returned %d (latency=%v)", resp.StatusCode, latency)
	}

	suggestions, err := decodeResponse(resp.Body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("identification complete",
		logging.Int("suggestions", len(suggestions)),
		logging.Duration("latency", latency),
	)
	return suggestions, nil
}

func (c *Client) requestLanguage(opts identification.Options) string {
	if lang := language.Canonical(opts.Language); lang != "" {
		return lang
	}
	return language.Canonical(c.language)
}

func organHint(organs []string) string {
	for _, organ := range organs {
		if trimmed := strings.ToLower(strings.TrimSpace(organ)); trimmed != "" {
			return trimmed
		}
	}
	return "auto"
}

// encodeUpload builds the multipart body once; retries reuse the same bytes.
func encodeUpload(content []byte, organ string) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("images", "image.jpg")
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}
	if err := writer.WriteField("organs", organ); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

// doWithRetry executes the request with a single retry on 5xx or network
// errors. The request is rebuilt for the second attempt so the body reader is
// fresh.
func (c *Client) doWithRetry(ctx context.Context, build func() (*http.Request, error)) (*http.Response, error) {
	req, err := build()
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)

	shouldRetry := err != nil || (resp != nil && resp.StatusCode >= 500)
	if !shouldRetry {
		return resp, err
	}
	if ctx.Err() != nil {
		return resp, err
	}

	reason := "network error"
	if err == nil && resp != nil {
		reason = fmt.Sprintf("status %d", resp.StatusCode)
	}
	c.logger.Warn("retrying plantnet call", logging.String("reason", reason))

	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	time.Sleep(500 * time.Millisecond)

	req, err = build()
	if err != nil {
		return nil, err
	}
	return c.httpClient.Do(req)
}
