package plantid

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
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
const ProviderID = "plantid"

// detailsParam lists the supplementary fields requested with every call.
const detailsParam = "common_names,taxonomy,description,gbif_id,image,edible_parts"

// request is the plant.id v3 identification payload.
type request struct {
	Images        []string `json:"images"`
	Health        string   `json:"health,omitempty"`
	SimilarImages bool     `json:"similar_images"`
}

// response models the subset of the plant.id v3 payload we consume.
type response struct {
	AccessToken string `json:"access_token"`
	Result      result `json:"result"`
}

type result struct {
	IsHealthy      *binaryProbability   `json:"is_healthy"`
	Disease        *diseaseResult       `json:"disease"`
	Classification classificationResult `json:"classification"`
}

type binaryProbability struct {
	Probability float64 `json:"probability"`
	Binary      bool    `json:"binary"`
}

type diseaseResult struct {
	Suggestions []diseaseSuggestion `json:"suggestions"`
}

type diseaseSuggestion struct {
	Name        string          `json:"name"`
	Probability float64         `json:"probability"`
	Details     *localizedValue `json:"details"`
}

type classificationResult struct {
	Suggestions []speciesSuggestion `json:"suggestions"`
}

type speciesSuggestion struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Probability float64         `json:"probability"`
	Details     *speciesDetails `json:"details"`
}

type speciesDetails struct {
	CommonNames []string        `json:"common_names"`
	Taxonomy    *taxonomy       `json:"taxonomy"`
	Description *localizedValue `json:"description"`
	GBIFID      int64           `json:"gbif_id"`
	Image       *localizedValue `json:"image"`
	EdibleParts []string        `json:"edible_parts"`
}

type taxonomy struct {
	Kingdom string `json:"kingdom"`
	Phylum  string `json:"phylum"`
	Class   string `json:"class"`
	Order   string `json:"order"`
	Family  string `json:"family"`
	Genus   string `json:"genus"`
}

type localizedValue struct {
	Value string `json:"value"`
}

// Client provides access to the plant.id identification API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
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

// WithLogger attaches a logger for retry and decode diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, ProviderID)
	}
}

// New creates a plant.id client.
func New(apiKey, baseURL, lang string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("plant.id api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("plant.id base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(lang),
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

// Identify submits image content for classification and returns normalized
// suggestions. Organ hints are ignored; plant.id does not accept them.
func (c *Client) Identify(ctx context.Context, content []byte, opts identification.Options) ([]identification.Suggestion, error) {
	if len(content) == 0 {
		return nil, errors.New("image content must not be empty")
	}

	payload := request{
		Images: []string{base64.StdEncoding.EncodeToString(content)},
	}
	if opts.IncludeHealth {
		payload.Health = "all"
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	endpoint, err := url.Parse(c.baseURL + "/identification")
	if err != nil {
		return nil, fmt.Errorf("parse plant.id url: %w", err)
	}
	params := url.Values{}
	params.Set("details", detailsParam)
	if lang := c.requestLanguage(opts); lang != "" {
		params.Set("language", lang)
	}
	endpoint.RawQuery = params.Encode()

	build := func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Api-Key", c.apiKey)
		return req, nil
	}

	requestStart := time.Now()
	resp, err := c.doWithRetry(ctx, build)
	latency := time.Since(requestStart)
	if err != nil {
		return nil, fmt.Errorf("execute request (latency=%v): %w", latency, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("plant.id identification returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var decoded response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode plant.id response: %w", err)
	}

	suggestions := normalizeResponse(&decoded, opts.IncludeHealth)
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
	c.logger.Warn("retrying plant.id call", logging.String("reason", reason))

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
