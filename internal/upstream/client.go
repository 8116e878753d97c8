// Package upstream talks to the BDSGP directory API and the Bedrock MOTD
// query API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bdsgp/internal/utils"
	"bdsgp/internal/version"

	"golang.org/x/time/rate"
)

var (
	// ErrNotFound is returned when the directory has no entry for a UUID.
	ErrNotFound = errors.New("upstream: server not found")
	// ErrUnavailable wraps failures after all retries were spent.
	ErrUnavailable = errors.New("upstream: api unavailable")
)

// Config holds endpoint and retry settings for both APIs.
type Config struct {
	BaseURL           string  `json:"base_url"`
	TimeoutMS         int     `json:"timeout_ms"`
	Retries           int     `json:"retries"`
	RetryDelayMS      int     `json:"retry_delay_ms"`
	MOTDURL           string  `json:"motd_url"`
	MOTDTimeoutMS     int     `json:"motd_timeout_ms"`
	MOTDRetries       int     `json:"motd_retries"`
	MOTDRetryDelayMS  int     `json:"motd_retry_delay_ms"`
	RequestsPerSecond float64 `json:"requests_per_second"`
	Timezone          string  `json:"timezone"`
}

// DefaultConfig matches the public BDSGP deployment.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.bdsgp.cn/get",
		TimeoutMS:         5000,
		Retries:           2,
		RetryDelayMS:      1000,
		MOTDURL:           "https://motdbe.blackbe.work/api",
		MOTDTimeoutMS:     10000,
		MOTDRetries:       1,
		MOTDRetryDelayMS:  1500,
		RequestsPerSecond: 10,
		Timezone:          "Asia/Shanghai",
	}
}

// Location resolves Timezone, falling back to local time.
func (c Config) Location() *time.Location {
	if strings.TrimSpace(c.Timezone) == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type endpoint struct {
	timeout time.Duration
	retries int
	delay   time.Duration
}

// Client is safe for concurrent use.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	loc     *time.Location
	logger  *utils.Logger
	api     endpoint
	motd    endpoint
}

// NewClient builds a client; zero config fields take their defaults.
func NewClient(cfg Config, logger *utils.Logger) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.MOTDURL == "" {
		cfg.MOTDURL = def.MOTDURL
	}
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = def.TimeoutMS
	}
	if cfg.MOTDTimeoutMS <= 0 {
		cfg.MOTDTimeoutMS = def.MOTDTimeoutMS
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.MOTDRetries < 0 {
		cfg.MOTDRetries = 0
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{},
		limiter: rate.NewLimiter(limit, 5),
		loc:     cfg.Location(),
		logger:  logger,
		api: endpoint{
			timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
			retries: cfg.Retries,
			delay:   time.Duration(cfg.RetryDelayMS) * time.Millisecond,
		},
		motd: endpoint{
			timeout: time.Duration(cfg.MOTDTimeoutMS) * time.Millisecond,
			retries: cfg.MOTDRetries,
			delay:   time.Duration(cfg.MOTDRetryDelayMS) * time.Millisecond,
		},
	}
}

// Location is the zone used for zone-less status_history timestamps.
func (c *Client) Location() *time.Location { return c.loc }

type envelope struct {
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	Data          json.RawMessage `json:"data"`
	StatusHistory []StatusRecord  `json:"status_history"`
}

func (e envelope) ok() bool { return strings.EqualFold(e.Status, "success") }

// ListServers returns every directory entry.
func (c *Client) ListServers(ctx context.Context) ([]Server, error) {
	var env envelope
	if err := c.getJSON(ctx, c.cfg.BaseURL, c.api, &env); err != nil {
		return nil, err
	}
	if !env.ok() {
		return nil, fmt.Errorf("%w: status %q %s", ErrUnavailable, env.Status, env.Message)
	}
	var servers []Server
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &servers); err != nil {
			return nil, fmt.Errorf("decode server list: %w", err)
		}
	}
	if servers == nil {
		servers = []Server{}
	}
	return servers, nil
}

// GetServer returns one entry, including its status_history when present.
func (c *Client) GetServer(ctx context.Context, uuid string) (*Server, error) {
	env, err := c.fetchByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	srv, err := firstServer(env.Data)
	if err != nil {
		return nil, err
	}
	if len(srv.StatusHistory) == 0 && len(env.StatusHistory) > 0 {
		srv.StatusHistory = env.StatusHistory
	}
	return srv, nil
}

// GetHistory returns the raw status_history of a server. A server without
// history yields an empty slice.
func (c *Client) GetHistory(ctx context.Context, uuid string) ([]StatusRecord, error) {
	env, err := c.fetchByUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if srv, err := firstServer(env.Data); err == nil && len(srv.StatusHistory) > 0 {
		return srv.StatusHistory, nil
	}
	if env.StatusHistory != nil {
		return env.StatusHistory, nil
	}
	return []StatusRecord{}, nil
}

// GetMOTD queries live status for address (host:port).
func (c *Client) GetMOTD(ctx context.Context, address string) (*MOTDInfo, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("motd query: empty address")
	}
	u, err := withQuery(c.cfg.MOTDURL, "host", address)
	if err != nil {
		return nil, err
	}
	var info MOTDInfo
	if err := c.getJSON(ctx, u, c.motd, &info); err != nil {
		return nil, err
	}
	if strings.TrimSpace(info.Status) == "" {
		return nil, fmt.Errorf("%w: motd response without status", ErrUnavailable)
	}
	info.clean()
	return &info, nil
}

func (c *Client) fetchByUUID(ctx context.Context, uuid string) (envelope, error) {
	var env envelope
	u, err := withQuery(c.cfg.BaseURL, "uuid", uuid)
	if err != nil {
		return env, err
	}
	if err := c.getJSON(ctx, u, c.api, &env); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusNotFound {
			return env, ErrNotFound
		}
		return env, err
	}
	if !env.ok() {
		return env, ErrNotFound
	}
	return env, nil
}

// firstServer accepts data as either an object or a non-empty array.
func firstServer(data json.RawMessage) (*Server, error) {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		return nil, ErrNotFound
	}
	if strings.HasPrefix(trimmed, "[") {
		var list []Server
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("decode server: %w", err)
		}
		if len(list) == 0 {
			return nil, ErrNotFound
		}
		return &list[0], nil
	}
	var srv Server
	if err := json.Unmarshal(data, &srv); err != nil {
		return nil, fmt.Errorf("decode server: %w", err)
	}
	return &srv, nil
}

func withQuery(base, key, value string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", base, err)
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

type statusError struct {
	code int
	url  string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d", e.url, e.code)
}

func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	return true
}

// getJSON performs a GET with per-attempt timeout and retries transport
// errors, 5xx and 429 responses.
func (c *Client) getJSON(ctx context.Context, rawURL string, ep endpoint, out any) error {
	var lastErr error
	for attempt := 0; attempt <= ep.retries; attempt++ {
		if attempt > 0 {
			c.logger.Printf("upstream: retry %d/%d for %s after: %v", attempt, ep.retries, rawURL, lastErr)
			if ep.delay > 0 {
				timer := time.NewTimer(ep.delay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = c.getOnce(ctx, rawURL, ep.timeout, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !retryable(lastErr) {
			return lastErr
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Client) getOnce(ctx context.Context, rawURL string, timeout time.Duration, out any) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return &statusError{code: resp.StatusCode, url: rawURL}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 8<<20)).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
