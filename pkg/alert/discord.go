package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Discord sends notifications via Discord webhook.
type Discord struct {
	client     *http.Client
	webhookURL string
}

// NewDiscord creates a new Discord notifier.
func NewDiscord(webhookURL string) *Discord {
	return &Discord{
		client:     &http.Client{Timeout: 10 * time.Second},
		webhookURL: webhookURL,
	}
}

func (d *Discord) Name() string { return "discord" }

func (d *Discord) Send(ctx context.Context, n *Notification) error {
	var lines []string
	for _, p := range n.TopPosts() {
		lines = append(lines, fmt.Sprintf("• #%d %s (quality %.0f)", p.ID, postTitle(p), p.QualityScore))
	}

	at := n.At
	if at.IsZero() {
		at = time.Now()
	}
	embed := map[string]any{
		"title":       fmt.Sprintf("%s %s", icon(n.Kind), n.Title),
		"description": fmt.Sprintf("**Magnitude:** %.1f\n\n%s\n\n%s", n.Magnitude, n.Body, strings.Join(lines, "\n")),
		"color":       color(n.Kind),
		"timestamp":   at.UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(map[string]any{"embeds": []map[string]any{embed}})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send discord webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("discord webhook status %d", resp.StatusCode)
	}

	return nil
}

func color(k Kind) int {
	switch k {
	case KindMarketTrend:
		return 0x1E90FF
	case KindVerifiedUser:
		return 0x2ECC71
	default:
		return 0xFF6600
	}
}
