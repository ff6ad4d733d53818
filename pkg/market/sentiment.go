package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const (
	DefaultStockTwitsURL = "https://api.stocktwits.com/api/2"
	DefaultRapidAPIURL   = "https://stocktwits-api.p.rapidapi.com"
	rapidAPIHost         = "stocktwits-api.p.rapidapi.com"
)

// StockTwits reads social sentiment. With an API key it queries the RapidAPI
// aggregate endpoint; otherwise it tallies the public symbol stream.
type StockTwits struct {
	baseURL string
	apiKey  string
	guard   *guard
}

// NewStockTwits creates a sentiment provider. An empty baseURL picks the
// endpoint matching whether apiKey is set.
func NewStockTwits(baseURL, apiKey string, cfg GuardConfig) *StockTwits {
	if baseURL == "" {
		baseURL = DefaultStockTwitsURL
		if apiKey != "" {
			baseURL = DefaultRapidAPIURL
		}
	}
	return &StockTwits{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		guard:   newGuard(ProviderSentiment, cfg),
	}
}

type streamResponse struct {
	Messages []struct {
		Entities struct {
			Sentiment *struct {
				Basic string `json:"basic"`
			} `json:"sentiment"`
		} `json:"entities"`
		Sentiment *struct {
			Class string `json:"class"`
		} `json:"sentiment"`
	} `json:"messages"`
}

type aggregateResponse struct {
	Bullish int `json:"bullish"`
	Bearish int `json:"bearish"`
	Total   int `json:"total"`
}

func (s *StockTwits) Sentiment(ctx context.Context, ticker string) (Sentiment, error) {
	if s.apiKey != "" {
		return s.aggregate(ctx, ticker)
	}
	return s.stream(ctx, ticker)
}

func (s *StockTwits) aggregate(ctx context.Context, ticker string) (Sentiment, error) {
	header := http.Header{}
	header.Set("X-RapidAPI-Key", s.apiKey)
	header.Set("X-RapidAPI-Host", rapidAPIHost)

	var resp aggregateResponse
	u := fmt.Sprintf("%s/sentiment/%s", s.baseURL, url.PathEscape(ticker))
	if err := s.guard.getJSON(ctx, u, header, &resp); err != nil {
		return Sentiment{}, err
	}

	out := newSentiment(ticker, resp.Bullish, resp.Bearish)
	out.Messages = resp.Total
	if out.Messages == 0 {
		out.Messages = out.Bullish + out.Bearish
	}
	return out, nil
}

func (s *StockTwits) stream(ctx context.Context, ticker string) (Sentiment, error) {
	var resp streamResponse
	u := fmt.Sprintf("%s/streams/symbol/%s.json", s.baseURL, url.PathEscape(ticker))
	if err := s.guard.getJSON(ctx, u, nil, &resp); err != nil {
		return Sentiment{}, err
	}

	var bullish, bearish int
	for _, m := range resp.Messages {
		label := ""
		switch {
		case m.Entities.Sentiment != nil:
			label = m.Entities.Sentiment.Basic
		case m.Sentiment != nil:
			label = m.Sentiment.Class
		}
		switch strings.ToLower(label) {
		case "bullish":
			bullish++
		case "bearish":
			bearish++
		}
	}

	out := newSentiment(ticker, bullish, bearish)
	out.Messages = len(resp.Messages)
	return out, nil
}

// newSentiment scores (bullish-bearish)/(bullish+bearish), zero when no
// message carries a label.
func newSentiment(ticker string, bullish, bearish int) Sentiment {
	if bullish < 0 {
		bullish = 0
	}
	if bearish < 0 {
		bearish = 0
	}
	s := Sentiment{Ticker: ticker, Bullish: bullish, Bearish: bearish}
	if total := bullish + bearish; total > 0 {
		s.Score = float64(bullish-bearish) / float64(total)
	}
	return s
}
