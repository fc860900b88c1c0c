// Package nominatim implements geocoding providers: an HTTP client for
// Nominatim-compatible search APIs, a static in-memory table and a chain
// that tries several providers in order.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/samirrijal/flightmap/internal/core/domain"
)

// ErrMalformedResponse is returned when the search response cannot be decoded.
var ErrMalformedResponse = errors.New("malformed geocoder response")

// StatusError reports a non-retryable HTTP status from the search API.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("geocoder returned status %d", e.Code)
}

// Config holds client settings.
type Config struct {
	BaseURL        string
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	RetryInterval  time.Duration
	RequestsPerSec float64
}

// Client implements ports.GeocodingProvider against a Nominatim search API.
type Client struct {
	cfg     Config
	http    *fasthttp.Client
	limiter *rate.Limiter
}

// New creates a new Client. RequestsPerSec <= 0 disables client-side rate
// limiting.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 500 * time.Millisecond
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1)
	}

	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                cfg.UserAgent,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
		limiter: limiter,
	}
}

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Lookup searches for name and returns the candidates best first.
// Transport errors, 429 and 5xx responses are retried with exponential
// backoff; other statuses and decode failures are returned at once.
func (c *Client) Lookup(ctx context.Context, name string) ([]domain.GeoPoint, error) {
	q := url.Values{}
	q.Set("q", name)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")
	uri := c.cfg.BaseURL + "/search?" + q.Encode()

	var body []byte
	op := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		timeout := c.cfg.Timeout
		if deadline, ok := ctx.Deadline(); ok {
			if left := time.Until(deadline); left < timeout {
				timeout = left
			}
		}
		if timeout <= 0 {
			return backoff.Permanent(context.DeadlineExceeded)
		}

		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(uri)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.SetUserAgent(c.cfg.UserAgent)
		req.Header.Set(fasthttp.HeaderAccept, "application/json")

		if err := c.http.DoTimeout(req, resp, timeout); err != nil {
			return fmt.Errorf("geocoder request: %w", err)
		}

		status := resp.StatusCode()
		switch {
		case status == fasthttp.StatusTooManyRequests || status >= 500:
			return &StatusError{Code: status}
		case status != fasthttp.StatusOK:
			return backoff.Permanent(&StatusError{Code: status})
		}
		body = append(body[:0], resp.Body()...)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInterval
	policy.MaxElapsedTime = 0
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries)), ctx))
	if err != nil {
		return nil, err
	}

	return decodePlaces(body)
}

func decodePlaces(body []byte) ([]domain.GeoPoint, error) {
	var places []place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	points := make([]domain.GeoPoint, 0, len(places))
	for _, p := range places {
		lat, err := strconv.ParseFloat(p.Lat, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: lat %q", ErrMalformedResponse, p.Lat)
		}
		lon, err := strconv.ParseFloat(p.Lon, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: lon %q", ErrMalformedResponse, p.Lon)
		}
		points = append(points, domain.GeoPoint{Lat: lat, Lon: lon})
	}
	return points, nil
}
