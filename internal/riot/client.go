package riot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"summoner-insights/internal/fault"
	"summoner-insights/internal/metrics"
)

const (
	// MaxMatchIDsPerPage is the largest count match-v5 accepts on the ids endpoint.
	MaxMatchIDsPerPage = 100

	// Rate limits for dev key (using conservative values to be safe)
	DefaultRequestsPerSecond = 15 // Actual: 20
	DefaultRequestsPer2Min   = 90 // Actual: 100

	defaultHTTPTimeout = 30 * time.Second
	defaultMaxRetries  = 3
	defaultRetryAfter  = 10 * time.Second
)

// Client is a rate-limited Riot API client bound to one platform region.
type Client struct {
	apiKey      string
	platform    string
	baseURL     string // overrides both regional and platform hosts when set
	queueID     int
	maxRetries  int
	httpClient  *http.Client
	shortWindow *rate.Limiter
	longWindow  *rate.Limiter
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithAPIBaseURL sends every request to url instead of the Riot hosts (useful for testing)
func WithAPIBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = url }
}

// WithRateLimits replaces the per-second and per-two-minute budgets.
func WithRateLimits(perSecond, per2Min int) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.shortWindow = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
		if per2Min > 0 {
			c.longWindow = rate.NewLimiter(rate.Every(2*time.Minute/time.Duration(per2Min)), per2Min)
		}
	}
}

// WithQueue restricts match listings to one queue id (420 = ranked solo).
func WithQueue(queueID int) ClientOption {
	return func(c *Client) { c.queueID = queueID }
}

func WithMaxRetries(n int) ClientOption {
	return func(c *Client) { c.maxRetries = n }
}

func WithMetrics(m *metrics.Metrics) ClientOption {
	return func(c *Client) { c.metrics = m }
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a new Riot API client for a platform region such as "na1".
func NewClient(apiKey, platform string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("riot api key is not set")
	}
	if _, err := RegionalRoute(platform); err != nil {
		return nil, err
	}

	c := &Client{
		apiKey:     apiKey,
		platform:   platform,
		maxRetries: defaultMaxRetries,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		logger:     slog.Default(),
	}
	WithRateLimits(DefaultRequestsPerSecond, DefaultRequestsPer2Min)(c)

	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "riot")

	return c, nil
}

// MaxPageSize is the largest match listing the API will return in one call.
func (c *Client) MaxPageSize() int { return MaxMatchIDsPerPage }

func (c *Client) regionalURL(region string) (string, error) {
	if c.baseURL != "" {
		return c.baseURL, nil
	}
	return regionalBaseURL(region)
}

// waitForRateLimit blocks until both windows allow another request
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if err := c.shortWindow.Wait(ctx); err != nil {
		return err
	}
	return c.longWindow.Wait(ctx)
}

// riotStatus is the error body Riot returns on non-2xx responses.
type riotStatus struct {
	Status struct {
		Message    string `json:"message"`
		StatusCode int    `json:"status_code"`
	} `json:"status"`
}

// doRequest makes a rate-limited GET and decodes the JSON body into result.
// 429 responses are retried after Retry-After, up to maxRetries times.
func (c *Client) doRequest(ctx context.Context, endpoint, url string, result any) error {
	for attempt := 0; ; attempt++ {
		if err := c.waitForRateLimit(ctx); err != nil {
			return fault.UpstreamWrap(err, "rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("X-Riot-Token", c.apiKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fault.UpstreamWrap(err, endpoint+" request failed")
		}
		c.metrics.RiotRequest(endpoint, resp.StatusCode)

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			resp.Body.Close()
			wait := retryAfter(resp.Header.Get("Retry-After"))
			c.logger.Warn("rate limited", "endpoint", endpoint, "wait", wait, "attempt", attempt+1)
			select {
			case <-ctx.Done():
				return fault.UpstreamWrap(ctx.Err(), "cancelled while rate limited")
			case <-time.After(wait):
				continue
			}
		}

		err = c.decodeResponse(resp, endpoint, result)
		resp.Body.Close()
		return err
	}
}

func (c *Client) decodeResponse(resp *http.Response, endpoint string, result any) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fault.NotFound("%s: %s", endpoint, statusMessage(resp.Body, "not found"))
	case resp.StatusCode == http.StatusForbidden:
		return fault.Upstream(resp.StatusCode, "forbidden, check that the API key is valid")
	case resp.StatusCode != http.StatusOK:
		return fault.Upstream(resp.StatusCode, statusMessage(resp.Body, http.StatusText(resp.StatusCode)))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fault.Malformed("%s: decode response: %v", endpoint, err)
	}
	return nil
}

func statusMessage(body io.Reader, fallback string) string {
	var s riotStatus
	data, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || json.Unmarshal(data, &s) != nil || s.Status.Message == "" {
		return fallback
	}
	return s.Status.Message
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return defaultRetryAfter
	}
	return time.Duration(seconds) * time.Second
}

// GetAccountByRiotID fetches account info by Riot ID (gameName#tagLine) in
// the routing cluster serving region.
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine, region string) (*AccountResponse, error) {
	base, err := c.regionalURL(region)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		base, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account AccountResponse
	if err := c.doRequest(ctx, "account", u, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

// ResolvePlayer turns a Riot ID into the stable player identifier (PUUID).
func (c *Client) ResolvePlayer(ctx context.Context, gameName, tagLine, region string) (string, error) {
	if gameName == "" || tagLine == "" {
		return "", fault.Validation("game name and tag line are required")
	}
	if region == "" {
		region = c.platform
	}
	account, err := c.GetAccountByRiotID(ctx, gameName, tagLine, region)
	if err != nil {
		if fault.Is(err, fault.KindNotFound) {
			return "", fault.NotFound("player %s#%s not found in %s", gameName, tagLine, region)
		}
		return "", err
	}
	if account.PUUID == "" {
		return "", fault.Malformed("account response for %s#%s has no puuid", gameName, tagLine)
	}
	return account.PUUID, nil
}

// ListRecentMatchIDs returns up to limit match ids, most recent first.
func (c *Client) ListRecentMatchIDs(ctx context.Context, puuid string, limit int) ([]string, error) {
	if limit > MaxMatchIDsPerPage {
		limit = MaxMatchIDsPerPage
	}
	base, err := c.regionalURL(c.platform)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids?start=0&count=%d",
		base, url.PathEscape(puuid), limit)
	if c.queueID > 0 {
		u += fmt.Sprintf("&queue=%d", c.queueID)
	}

	var matchIDs []string
	if err := c.doRequest(ctx, "match_ids", u, &matchIDs); err != nil {
		return nil, err
	}
	return matchIDs, nil
}

// GetMatchDetail fetches match details
func (c *Client) GetMatchDetail(ctx context.Context, matchID string) (*MatchResponse, error) {
	base, err := c.regionalURL(c.platform)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s", base, url.PathEscape(matchID))

	var match MatchResponse
	if err := c.doRequest(ctx, "match", u, &match); err != nil {
		return nil, err
	}
	return &match, nil
}

// GetTimelineDetail fetches the per-minute timeline of a match
func (c *Client) GetTimelineDetail(ctx context.Context, matchID string) (*TimelineResponse, error) {
	base, err := c.regionalURL(c.platform)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/lol/match/v5/matches/%s/timeline", base, url.PathEscape(matchID))

	var timeline TimelineResponse
	if err := c.doRequest(ctx, "timeline", u, &timeline); err != nil {
		return nil, err
	}
	return &timeline, nil
}
