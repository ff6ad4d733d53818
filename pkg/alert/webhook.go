package alert

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Headers set on every webhook delivery.
const (
	EventHeader     = "X-Feedrank-Event"
	DeliveryHeader  = "X-Feedrank-Delivery"
	TimestampHeader = "X-Feedrank-Timestamp"
	SignatureHeader = "X-Feedrank-Signature"
)

// Event is the JSON body of a webhook delivery.
type Event struct {
	ID     string        `json:"id"`
	Kind   Kind          `json:"kind"`
	SentAt time.Time     `json:"sent_at"`
	Data   *Notification `json:"data"`
}

// Webhook posts trend and verification events to an HTTP endpoint. With a
// secret, each delivery is signed over "<timestamp>.<body>".
type Webhook struct {
	client *http.Client
	url    string
	secret string
	now    func() time.Time
}

// NewWebhook creates a webhook notifier.
func NewWebhook(url, secret string) *Webhook {
	return &Webhook{
		client: &http.Client{Timeout: 10 * time.Second},
		url:    url,
		secret: secret,
		now:    time.Now,
	}
}

func (w *Webhook) Name() string { return "webhook" }

func (w *Webhook) Send(ctx context.Context, n *Notification) error {
	data := *n
	data.Posts = n.TopPosts()
	ev := Event{
		ID:     uuid.NewString(),
		Kind:   n.Kind,
		SentAt: w.now().UTC(),
		Data:   &data,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", n.Kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "feedrank/1.0")
	req.Header.Set(EventHeader, string(n.Kind))
	req.Header.Set(DeliveryHeader, ev.ID)

	if w.secret != "" {
		ts := strconv.FormatInt(ev.SentAt.Unix(), 10)
		req.Header.Set(TimestampHeader, ts)
		req.Header.Set(SignatureHeader, "sha256="+Sign(w.secret, ts, body))
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver %s event %s: %w", n.Kind, ev.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("deliver %s event %s: status %d: %s",
			n.Kind, ev.ID, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of "<timestamp>.<body>" under secret.
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches body and timestamp under secret.
func Verify(secret, timestamp, signature string, body []byte) bool {
	want := "sha256=" + Sign(secret, timestamp, body)
	return hmac.Equal([]byte(want), []byte(signature))
}
