package alert

import (
	"context"
	"fmt"
	"html"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/elonfeng/feedrank/pkg/insight"
)

// MessageSender is the part of the bot API the notifier needs.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts notifications to a chat through a bot.
type Telegram struct {
	api    MessageSender
	chatID int64
}

// NewTelegram authenticates the bot token and targets chatID.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id not configured")
	}
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}
	return NewTelegramWithAPI(api, chatID), nil
}

// NewTelegramWithAPI wraps an existing bot API client.
func NewTelegramWithAPI(api MessageSender, chatID int64) *Telegram {
	return &Telegram{api: api, chatID: chatID}
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Send(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, FormatHTML(n))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}
	return nil
}

// FormatHTML renders a notification with Telegram's HTML subset.
func FormatHTML(n *Notification) string {
	var b strings.Builder
	b.WriteString(icon(n.Kind))
	b.WriteString(" <b>")
	b.WriteString(html.EscapeString(n.Title))
	b.WriteString("</b>\n")
	if n.Body != "" {
		b.WriteString("<i>")
		b.WriteString(html.EscapeString(n.Body))
		b.WriteString("</i>\n")
	}
	for _, p := range n.TopPosts() {
		fmt.Fprintf(&b, "\n• #%d %s (quality %.0f)", p.ID, html.EscapeString(postTitle(p)), p.QualityScore)
	}
	return b.String()
}

func icon(k Kind) string {
	switch k {
	case KindMarketTrend:
		return "📈"
	case KindVerifiedUser:
		return "✅"
	default:
		return "🔥"
	}
}

func postTitle(p insight.Post) string {
	if p.Title != "" {
		return p.Title
	}
	if p.Ticker != "" {
		return "$" + p.Ticker + " " + string(p.InsightType)
	}
	return string(p.InsightType)
}
