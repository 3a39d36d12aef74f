package riot

import (
	"context"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"summoner-insights/internal/fault"
)

const (
	// platform-data is cheap and served by every platform host
	statusEndpoint = "/lol/status/v4/platform-data"

	defaultValidationTimeout = 10 * time.Second
)

// KeyCheck is the outcome of probing a key against one platform.
type KeyCheck struct {
	Valid        bool          `json:"valid"`
	Status       int           `json:"status"`
	Platform     string        `json:"platform"`
	PlatformName string        `json:"platform_name,omitempty"`
	Latency      time.Duration `json:"latency"`
}

// KeyValidator checks API keys without going through the rate-limited
// Client, so a check never waits behind a sync.
type KeyValidator struct {
	httpClient *http.Client
	baseURL    string
	platform   string
}

type KeyValidatorOption func(*KeyValidator)

// WithBaseURL points the validator at a test server.
func WithBaseURL(url string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.baseURL = url
	}
}

// WithPlatform validates against the status host of a platform region.
func WithPlatform(platform string) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.platform = strings.ToLower(platform)
		v.baseURL = platformBaseURL(platform)
	}
}

func WithTimeout(timeout time.Duration) KeyValidatorOption {
	return func(v *KeyValidator) {
		v.httpClient.Timeout = timeout
	}
}

func NewKeyValidator(opts ...KeyValidatorOption) *KeyValidator {
	v := &KeyValidator{
		httpClient: &http.Client{Timeout: defaultValidationTimeout},
		baseURL:    platformBaseURL("na1"),
		platform:   "na1",
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Check reports whether Riot accepts apiKey. A 401 or 403 is a definite
// answer (Valid false, nil error); any other failure leaves validity unknown
// and is returned as an upstream error.
func (v *KeyValidator) Check(ctx context.Context, apiKey string) (*KeyCheck, error) {
	if apiKey == "" {
		return nil, fault.Validation("API key cannot be empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+statusEndpoint, nil)
	if err != nil {
		return nil, fault.UpstreamWrap(err, "create status request")
	}
	req.Header.Set("X-Riot-Token", apiKey)

	start := time.Now()
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fault.UpstreamWrap(err, "status request failed")
	}
	defer resp.Body.Close()

	check := &KeyCheck{Status: resp.StatusCode, Platform: v.platform, Latency: time.Since(start)}
	switch resp.StatusCode {
	case http.StatusOK:
		check.Valid = true
		var ps PlatformStatus
		if json.NewDecoder(resp.Body).Decode(&ps) == nil {
			check.PlatformName = ps.Name
		}
		return check, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return check, nil
	default:
		return nil, fault.Upstream(resp.StatusCode, statusMessage(resp.Body, http.StatusText(resp.StatusCode)))
	}
}

// MaskAPIKey keeps the prefix and the last four characters,
// e.g. "RGAPI-xxxx-abcd" -> "RGAPI...abcd".
func MaskAPIKey(key string) string {
	if len(key) <= 10 {
		return "****"
	}
	return key[:5] + "..." + key[len(key)-4:]
}
