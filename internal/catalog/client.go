// Package catalog is the client of the external recommendation API.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/reelsync/backend/internal/domain"
	"github.com/reelsync/backend/internal/metrics"
)

// Config configures the catalog client.
type Config struct {
	BaseURL          string
	Timeout          time.Duration
	CacheSizeMB      int
	CacheTTL         time.Duration
	FailureThreshold uint32
	OpenTimeout      time.Duration
}

// DefaultConfig returns production defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Timeout:          8 * time.Second,
		CacheSizeMB:      16,
		CacheTTL:         5 * time.Minute,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

var errUpstream = errors.New("catalog upstream error")

// Client calls the recommendation API through a circuit breaker and caches
// successful GET responses.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *freecache.Cache
	ttl     int
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *zap.Logger
}

// NewClient builds a Client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	ttl := int(cfg.CacheTTL.Seconds())
	if ttl < 1 {
		ttl = 1
	}
	c := &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: cfg.Timeout},
		cache:   freecache.NewCache(max(cfg.CacheSizeMB, 1) * 1024 * 1024),
		ttl:     ttl,
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "catalog",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		// Client errors say nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrMovieNotFound) || errors.Is(err, domain.ErrInvalidInput)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("catalog circuit breaker state change",
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	if method == http.MethodGet {
		if cached, err := c.cache.Get([]byte(u)); err == nil {
			metrics.CatalogCacheHits.Inc()
			return cached, nil
		}
		metrics.CatalogCacheMisses.Inc()
	}

	data, err := c.breaker.Execute(func() ([]byte, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, u, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s %s", domain.ErrMovieNotFound, method, path)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return nil, fmt.Errorf("%w: %s %s: status %d", domain.ErrInvalidInput, method, path, resp.StatusCode)
		case resp.StatusCode >= 300:
			return nil, fmt.Errorf("%w: %s %s: status %d", errUpstream, method, path, resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if errors.Is(err, domain.ErrMovieNotFound) || errors.Is(err, domain.ErrInvalidInput) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteUnavailable, err)
	}

	if method == http.MethodGet {
		_ = c.cache.Set([]byte(u), data, c.ttl)
	}
	return data, nil
}

// Movies browses or searches the catalog. Failures and empty results are
// answered from the built-in catalog.
func (c *Client) Movies(ctx context.Context, q domain.MovieQuery) []domain.Movie {
	params := url.Values{}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Genre != "" {
		params.Set("genre", q.Genre)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var resp struct {
		Movies []domain.Movie `json:"movies"`
	}
	data, err := c.do(ctx, http.MethodGet, "/api/movies", params, nil)
	if err == nil {
		err = json.Unmarshal(data, &resp)
	}
	if err != nil || len(resp.Movies) == 0 {
		if err != nil {
			c.logger.Warn("catalog movies unavailable, serving fallback", zap.Error(err))
		}
		metrics.CatalogFallbacks.WithLabelValues("movies").Inc()
		return Fallback(q)
	}
	return resp.Movies
}

// Movie fetches one title. When the API fails, titles from the built-in
// catalog are still served. An unknown id is ErrMovieNotFound; an outage
// for a title outside the built-in catalog is ErrRemoteUnavailable.
func (c *Client) Movie(ctx context.Context, id int) (domain.Movie, error) {
	var m domain.Movie
	data, err := c.do(ctx, http.MethodGet, "/api/movie/"+strconv.Itoa(id), nil, nil)
	if err == nil {
		if jerr := json.Unmarshal(data, &m); jerr != nil {
			err = fmt.Errorf("%w: decode movie %d: %v", domain.ErrRemoteUnavailable, id, jerr)
		} else if m.ID == 0 {
			err = fmt.Errorf("%w: %d", domain.ErrMovieNotFound, id)
		}
	}
	if err == nil {
		return m, nil
	}

	if fb, ok := fallbackByID(id); ok {
		metrics.CatalogFallbacks.WithLabelValues("movie").Inc()
		return fb, nil
	}
	return domain.Movie{}, err
}

// Suggestions returns search suggestions, or none on failure.
func (c *Client) Suggestions(ctx context.Context) []string {
	var resp struct {
		Suggestions []string `json:"suggestions"`
	}
	data, err := c.do(ctx, http.MethodGet, "/api/suggestions", nil, nil)
	if err == nil {
		err = json.Unmarshal(data, &resp)
	}
	if err != nil || resp.Suggestions == nil {
		metrics.CatalogFallbacks.WithLabelValues("suggestions").Inc()
		return []string{}
	}
	return resp.Suggestions
}

// Recommend asks the recommender for titles similar to title.
func (c *Client) Recommend(ctx context.Context, title string) (domain.Recommendation, error) {
	var rec domain.Recommendation
	data, err := c.do(ctx, http.MethodPost, "/recommend", nil, map[string]string{"movie_title": title})
	if err != nil {
		return rec, err
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: decode recommendation: %v", domain.ErrRemoteUnavailable, err)
	}
	return rec, nil
}

// SearchByTitle returns the best match for title. While the API is
// unreachable the built-in catalog is searched instead.
func (c *Client) SearchByTitle(ctx context.Context, title string) (domain.Movie, error) {
	var resp struct {
		Movies []domain.Movie `json:"movies"`
	}
	params := url.Values{"search": {title}, "limit": {"1"}}
	data, err := c.do(ctx, http.MethodGet, "/api/movies", params, nil)
	if err == nil {
		if jerr := json.Unmarshal(data, &resp); jerr != nil {
			err = fmt.Errorf("%w: decode search: %v", domain.ErrRemoteUnavailable, jerr)
		}
	}
	if err == nil {
		if len(resp.Movies) == 0 {
			return domain.Movie{}, fmt.Errorf("%w: %q", domain.ErrMovieNotFound, title)
		}
		return resp.Movies[0], nil
	}
	if !errors.Is(err, domain.ErrRemoteUnavailable) {
		return domain.Movie{}, err
	}

	if fb, ok := fallbackByTitle(title); ok {
		metrics.CatalogFallbacks.WithLabelValues("lookup").Inc()
		return fb, nil
	}
	return domain.Movie{}, err
}
