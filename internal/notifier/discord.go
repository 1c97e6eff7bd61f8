// Package notifier posts moderation events to a Discord webhook.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/pauljones0/mindmerge-forum/internal/models"
)

const (
	colorCreated = 3066993  // #2ECC71
	colorDeleted = 15158332 // #E74C3C

	maxDescriptionRunes = 300
	maxAttempts         = 3
)

type Client struct {
	webhookURL  string
	client      *http.Client
	rateLimiter *rate.Limiter
	backoffBase time.Duration
}

// New builds a client. An empty webhookURL turns every call into a no-op.
func New(webhookURL string) *Client {
	return &Client{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		// Discord allows about 5 webhook requests per 2 seconds.
		rateLimiter: rate.NewLimiter(rate.Every(400*time.Millisecond), 1),
		backoffBase: time.Second,
	}
}

// PostCreated announces a new post and returns the webhook message id.
func (c *Client) PostCreated(ctx context.Context, post models.Post, authorHandle string) (string, error) {
	if c.webhookURL == "" {
		return "", nil
	}
	return c.send(ctx, formatPostEmbed(post, authorHandle, "New post", colorCreated))
}

// PostDeleted records that a post was removed and by whom.
func (c *Client) PostDeleted(ctx context.Context, post models.Post, deletedBy string) error {
	if c.webhookURL == "" {
		return nil
	}
	_, err := c.send(ctx, formatPostEmbed(post, deletedBy, "Post deleted", colorDeleted))
	return err
}

type discordWebhookPayload struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

type discordEmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text,omitempty"`
}

type discordEmbed struct {
	Title       string              `json:"title,omitempty"`
	Description string              `json:"description,omitempty"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Color       int                 `json:"color,omitempty"`
	Fields      []discordEmbedField `json:"fields,omitempty"`
	Footer      discordEmbedFooter  `json:"footer,omitempty"`
}

type discordMessageResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

func formatPostEmbed(post models.Post, who, action string, color int) discordEmbed {
	var ts string
	if !post.CreatedOn.IsZero() {
		ts = post.CreatedOn.UTC().Format(time.RFC3339)
	}
	if who == "" {
		who = models.UnknownUserHandle
	}
	byline := "Posted By"
	if color == colorDeleted {
		byline = "Deleted By"
	}
	return discordEmbed{
		Title:       post.Title,
		Description: truncate(post.Content, maxDescriptionRunes),
		Timestamp:   ts,
		Color:       color,
		Fields: []discordEmbedField{
			{Name: byline, Value: who, Inline: true},
			{Name: "Answers", Value: strconv.Itoa(post.EffectiveCommentCount()), Inline: true},
		},
		Footer: discordEmbedFooter{Text: action + " · " + post.ID},
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func (c *Client) send(ctx context.Context, embed discordEmbed) (string, error) {
	payloadBytes, err := json.Marshal(discordWebhookPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		return "", err
	}

	parsedURL, err := url.Parse(c.webhookURL)
	if err != nil {
		return "", err
	}
	q := parsedURL.Query()
	q.Set("wait", "true")
	parsedURL.RawQuery = q.Encode()

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return "", err
		}

		id, resp, err := c.post(ctx, parsedURL.String(), payloadBytes)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if resp == nil {
			return "", err
		}

		wait := c.retryBackoff(resp, attempt)
		if wait == 0 || attempt == maxAttempts-1 {
			break
		}
		slog.Warn("Discord webhook failed, retrying", "status", resp.StatusCode, "attempt", attempt+1, "wait", wait)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", lastErr
}

// post returns the response alongside any status error so the caller can
// decide on a retry.
func (c *Client) post(ctx context.Context, target string, body []byte) (string, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var msg discordMessageResponse
		if err := json.Unmarshal(bodyBytes, &msg); err != nil {
			return "", nil, err
		}
		return msg.ID, resp, nil
	}
	return "", resp, fmt.Errorf("discord status: %s, body: %s", resp.Status, string(bodyBytes))
}

// retryBackoff returns how long to wait before retrying resp, or zero when
// the request should not be retried.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
			return time.Duration(secs * float64(time.Second))
		}
		return c.backoffBase
	case resp.StatusCode >= 500:
		return c.backoffBase * time.Duration(1<<attempt)
	default:
		return 0
	}
}
