// Package discord posts sync results to a Discord webhook.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"

	"summoner-insights/internal/collector"
	"summoner-insights/internal/fault"
)

const (
	// Colors for Discord embeds
	colorRed    = 15158332 // 0xE74C3C
	colorGreen  = 5763719  // 0x57F287
	colorYellow = 16705372 // 0xFEE75C

	defaultWebhookTimeout = 10 * time.Second

	// Max attempts when Discord rate limits us
	maxRetries = 3

	// Discord rejects field values over 1024 characters.
	maxFieldLen = 1024
)

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedFooter struct {
	Text string `json:"text"`
}

// NewSyncSummaryPayload describes a finished sync run. Runs with failures
// are yellow, clean runs green.
func NewSyncSummaryPayload(report *collector.SyncReport) WebhookPayload {
	color := colorGreen
	title := "✅ Matches Synced"
	if len(report.Failed) > 0 {
		color = colorYellow
		title = "⚠️ Sync Finished With Failures"
	}

	fields := []EmbedField{
		{Name: "New Matches", Value: formatNumber(len(report.Ingested)), Inline: true},
		{Name: "Already Stored", Value: formatNumber(len(report.Skipped)), Inline: true},
		{Name: "Failed", Value: formatNumber(len(report.Failed)), Inline: true},
		{Name: "Duration", Value: formatDuration(report.Duration), Inline: true},
	}
	if len(report.Failed) > 0 {
		lines := make([]string, 0, len(report.Failed))
		for _, f := range report.Failed {
			lines = append(lines, fmt.Sprintf("`%s` %s", f.MatchID, f.Kind))
		}
		fields = append(fields, EmbedField{Name: "Failures", Value: truncate(strings.Join(lines, "\n"), maxFieldLen)})
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:     title,
				Color:     color,
				Fields:    fields,
				Footer:    &EmbedFooter{Text: "Run " + report.RunID},
				Timestamp: report.StartedAt.UTC().Format(time.RFC3339),
			},
		},
	}
}

// NewSyncErrorPayload describes a run that aborted. A rejected API key
// mentions @here since nothing will sync until it is replaced.
func NewSyncErrorPayload(playerID string, err error) WebhookPayload {
	var fe *fault.Error
	if errors.As(err, &fe) && fe.Kind == fault.KindUpstream &&
		(fe.Status == http.StatusUnauthorized || fe.Status == http.StatusForbidden) {
		return WebhookPayload{
			Content: "@here API Key Expired!",
			Embeds: []Embed{
				{
					Title: "🔑 API Key Rejected",
					Color: colorRed,
					Fields: []EmbedField{
						{Name: "Player", Value: playerID, Inline: true},
						{Name: "Status", Value: strconv.Itoa(fe.Status), Inline: true},
					},
					Footer: &EmbedFooter{Text: "Set a new RIOT_API_KEY and restart the watcher"},
				},
			},
		}
	}

	return WebhookPayload{
		Embeds: []Embed{
			{
				Title:       "❌ Sync Failed",
				Description: truncate(err.Error(), 2048),
				Color:       colorRed,
				Fields: []EmbedField{
					{Name: "Player", Value: playerID, Inline: true},
					{Name: "Kind", Value: string(fault.KindOf(err)), Inline: true},
				},
			},
		},
	}
}

// WebhookClient sends notifications to a Discord webhook. It implements
// collector.Notifier.
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWebhookClient(webhookURL string, logger *slog.Logger) *WebhookClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
		logger: logger.With("component", "discord"),
	}
}

func (c *WebhookClient) NotifySync(ctx context.Context, report *collector.SyncReport) error {
	return c.sendPayload(ctx, NewSyncSummaryPayload(report))
}

func (c *WebhookClient) NotifySyncError(ctx context.Context, playerID string, err error) error {
	return c.sendPayload(ctx, NewSyncErrorPayload(playerID, err))
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if seconds, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
				waitDuration = time.Duration(seconds) * time.Second
			}
			c.logger.Debug("webhook rate limited", "attempt", attempt+1, "wait", waitDuration)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}

// formatNumber formats a number with commas (e.g., 47832 -> "47,832")
func formatNumber(n int) string {
	if n < 1000 {
		return strconv.Itoa(n)
	}

	s := strconv.Itoa(n)
	var result bytes.Buffer
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(c)
	}
	return result.String()
}

// formatDuration formats a duration as "Xm Ys", or "X.Ys" under a minute.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
}

// truncate caps s at n bytes, backing up to a rune boundary before the
// ellipsis.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
