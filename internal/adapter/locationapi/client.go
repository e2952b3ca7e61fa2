// Package locationapi is the HTTP client of the location API used by the
// client session and the command-line tool.
package locationapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"

	"github.com/augurworld/augur/internal/domain"
)

const (
	defaultAttempts       = 3
	defaultInitialBackoff = 200 * time.Millisecond
	defaultMaxBackoff     = 2 * time.Second
)

// Client calls the location API.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	attempts       int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
}

// New creates a client for the API at baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: timeout},
		attempts:       defaultAttempts,
		initialBackoff: defaultInitialBackoff,
		maxBackoff:     defaultMaxBackoff,
		logger:         logger,
	}
}

// ServerConfig mirrors the enumerations served at /config.
type ServerConfig struct {
	Years                []int    `json:"years"`
	Periods              []int    `json:"periods"`
	OverlayPeriods       []int    `json:"overlay_periods"`
	DefaultYear          int      `json:"default_year"`
	DefaultOverlayPeriod int      `json:"default_overlay_period"`
	Languages            []string `json:"languages"`
	TileURLTemplate      string   `json:"tile_url_template"`
	PublicBaseURL        string   `json:"public_base_url"`
	SearchEnabled        bool     `json:"search_enabled"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch returns the report for coord. Failures wrap domain.ErrNotFound,
// domain.ErrBadRequest, domain.ErrMissingField or domain.ErrNetworkFailure.
func (c *Client) Fetch(ctx context.Context, coord domain.Coordinate) (*domain.PrecipitationReport, error) {
	var report domain.PrecipitationReport
	if err := c.getJSON(ctx, "/location", coordParams(coord, ""), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Label returns the reverse-geocoded place name for coord.
func (c *Client) Label(ctx context.Context, coord domain.Coordinate, lang string) (string, error) {
	var place domain.Place
	if err := c.getJSON(ctx, "/place", coordParams(coord, lang), &place); err != nil {
		return "", err
	}
	return place.Label, nil
}

// Config returns the server's year, period and language enumerations.
func (c *Client) Config(ctx context.Context) (ServerConfig, error) {
	var cfg ServerConfig
	err := c.getJSON(ctx, "/config", nil, &cfg)
	return cfg, err
}

// Download returns the plain-text report for coord.
func (c *Client) Download(ctx context.Context, coord domain.Coordinate) ([]byte, error) {
	var body []byte
	err := c.do(ctx, "/location/download", coordParams(coord, ""), func(r io.Reader) error {
		var err error
		body, err = io.ReadAll(r)
		return err
	})
	return body, err
}

func coordParams(coord domain.Coordinate, lang string) url.Values {
	v := url.Values{
		"lat": {strconv.FormatFloat(coord.Lat, 'f', -1, 64)},
		"lng": {strconv.FormatFloat(coord.Lng, 'f', -1, 64)},
	}
	if lang != "" {
		v.Set("lang", lang)
	}
	return v
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, path, params, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(out)
	})
}

// do issues a GET, retrying transport failures and 5xx responses other than
// data-integrity errors with exponential backoff.
func (c *Client) do(ctx context.Context, path string, params url.Values, read func(io.Reader) error) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	backoff := c.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		retryable, err := c.once(ctx, u, read)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable || attempt == c.attempts {
			break
		}
		c.logger.Debug("location api request failed, retrying", "path", path, "attempt", attempt, "error", err)
		if !retry.SleepWithContext(ctx, backoff) {
			return fmt.Errorf("%w: %w", domain.ErrNetworkFailure, ctx.Err())
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, u string, read func(io.Reader) error) (retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("%w: %w", domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		if err := read(resp.Body); err != nil {
			return false, fmt.Errorf("%w: read response: %w", domain.ErrNetworkFailure, err)
		}
		return false, nil
	}
	return statusError(resp)
}

func statusError(resp *http.Response) (retryable bool, err error) {
	var body apiError
	_ = json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&body)
	msg := body.Error.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return false, fmt.Errorf("%w: %s", domain.ErrBadRequest, msg)
	case resp.StatusCode == http.StatusNotFound:
		return false, fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case body.Error.Code == "data_integrity":
		return false, fmt.Errorf("%w: %s", domain.ErrMissingField, msg)
	case resp.StatusCode >= http.StatusInternalServerError:
		return true, fmt.Errorf("%w: status %d: %s", domain.ErrNetworkFailure, resp.StatusCode, msg)
	default:
		return false, fmt.Errorf("%w: status %d: %s", domain.ErrNetworkFailure, resp.StatusCode, msg)
	}
}
