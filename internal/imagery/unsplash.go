// Package imagery looks up a background photograph for a city. A lookup
// always yields a usable URL: any provider problem turns into FallbackURL.
package imagery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"opposite-clock/config"
	"opposite-clock/internal/metrics"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// FallbackURL is the generic cityscape used whenever the provider cannot be.
const FallbackURL = "https://images.unsplash.com/photo-1514565131-fce0801e5785?w=1920&q=80"

const (
	defaultBaseURL     = "https://api.unsplash.com"
	defaultTimeout     = 10 * time.Second
	defaultMaxFailures = 5
	defaultOpenTimeout = 60 * time.Second
	queryKeywords      = "skyline cityscape buildings"
	userAgent          = "OppositeClock/1.0"
)

var errNoAccessKey = errors.New("unsplash access key is not configured")

// Source tells whether a Result came from the provider or the fallback.
type Source string

const (
	SourceProvider Source = "provider"
	SourceFallback Source = "fallback"
)

// Result is a resolved image. URL is never empty. Err explains a fallback
// and is informational only.
type Result struct {
	URL    string `json:"url"`
	Source Source `json:"source"`
	Query  string `json:"query"`
	Credit string `json:"credit,omitempty"`
	Err    error  `json:"-"`
}

// Fallback reports whether the provider was bypassed or failed.
func (r Result) Fallback() bool {
	return r.Source == SourceFallback
}

// Fetcher resolves a city image.
type Fetcher interface {
	FetchCityImage(ctx context.Context, city string, isDay bool) Result
}

type unsplashResponse struct {
	Urls struct {
		Regular string `json:"regular"`
	} `json:"urls"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

type ClientConfig struct {
	AccessKey   string
	BaseURL     string
	FallbackURL string
	// Timeout bounds one provider request, 10s when unset. It is ignored
	// when HTTPClient is given.
	Timeout time.Duration
	// MaxFailures is how many consecutive provider failures open the breaker.
	MaxFailures uint32
	// OpenTimeout is how long the breaker stays open before probing again.
	OpenTimeout time.Duration
	HTTPClient  *http.Client
	Metrics     *metrics.Metrics
}

// Client looks up city photos on Unsplash.
type Client struct {
	mu        sync.RWMutex
	accessKey string

	baseURL     string
	fallbackURL string
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker
	metrics     *metrics.Metrics
	warnOnce    sync.Once
}

func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	fallbackURL := strings.TrimSpace(cfg.FallbackURL)
	if fallbackURL == "" {
		fallbackURL = FallbackURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultMaxFailures
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOpenTimeout
	}

	c := &Client{
		accessKey:   strings.TrimSpace(cfg.AccessKey),
		baseURL:     baseURL,
		fallbackURL: fallbackURL,
		client:      httpClient,
		metrics:     cfg.Metrics,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "unsplash",
		MaxRequests: 1,
		Timeout:     openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("circuit", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	return c
}

// SetAccessKey swaps the credential at runtime. An empty key disables the
// provider.
func (c *Client) SetAccessKey(key string) {
	c.mu.Lock()
	c.accessKey = strings.TrimSpace(key)
	c.mu.Unlock()
}

// HasAccessKey reports whether a real (non-placeholder) key is configured.
func (c *Client) HasAccessKey() bool {
	return usableKey(c.key())
}

// Provider names where lookups will go: "unsplash" or "fallback".
func (c *Client) Provider() string {
	if c.HasAccessKey() {
		return "unsplash"
	}
	return "fallback"
}

// FallbackURL returns the URL used when the provider is unavailable.
func (c *Client) FallbackURL() string {
	return c.fallbackURL
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessKey
}

func usableKey(key string) bool {
	return key != "" && key != config.PlaceholderAccessKey
}

// Query builds the search text for a city at a time of day.
func Query(city string, isDay bool) string {
	timeOfDay := "night"
	if isDay {
		timeOfDay = "day"
	}
	return fmt.Sprintf("%s %s %s", strings.TrimSpace(city), queryKeywords, timeOfDay)
}

// FetchCityImage asks Unsplash for one random landscape photo of city. It
// never fails: without a key, or on any provider error, it returns the
// fallback URL.
func (c *Client) FetchCityImage(ctx context.Context, city string, isDay bool) Result {
	query := Query(city, isDay)

	key := c.key()
	if !usableKey(key) {
		c.warnOnce.Do(func() {
			log.Warn().Msg("No Unsplash access key set; using the fallback image. Get a free key at https://unsplash.com/developers")
		})
		return c.fallback(query, errNoAccessKey)
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetch(ctx, key, query)
	})
	if err != nil {
		log.Warn().Err(err).Str("city", city).Msg("unsplash lookup failed, using fallback image")
		return c.fallback(query, err)
	}

	result := out.(Result)
	c.metrics.RecordImageLookup(string(SourceProvider))
	return result
}

func (c *Client) fallback(query string, reason error) Result {
	c.metrics.RecordImageLookup(string(SourceFallback))
	return Result{
		URL:    c.fallbackURL,
		Source: SourceFallback,
		Query:  query,
		Err:    reason,
	}
}

func (c *Client) fetch(ctx context.Context, accessKey, query string) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unsplash panic: %v", r)
		}
	}()

	params := url.Values{}
	params.Set("query", query)
	params.Set("orientation", "landscape")
	params.Set("client_id", accessKey)

	endpoint := c.baseURL + "/photos/random?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{}, fmt.Errorf("unsplash request: %w", err)
	}
	req.Header.Set("Accept-Version", "v1")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("unsplash request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("unsplash bad status: %s", resp.Status)
	}

	var payload unsplashResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Result{}, fmt.Errorf("unsplash decode: %w", err)
	}

	imageURL := strings.TrimSpace(payload.Urls.Regular)
	if imageURL == "" {
		return Result{}, fmt.Errorf("unsplash image URL is missing")
	}

	credit := ""
	if author := strings.TrimSpace(payload.User.Name); author != "" {
		credit = fmt.Sprintf("Photo by %s / Unsplash", author)
	}

	return Result{
		URL:    imageURL,
		Source: SourceProvider,
		Query:  query,
		Credit: credit,
	}, nil
}
