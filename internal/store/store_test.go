package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/feedrank/pkg/insight"
	"github.com/elonfeng/feedrank/pkg/trend"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "feedrank.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := &User{Username: "alice", ReputationScore: 12.5}
	require.NoError(t, s.UpsertUser(ctx, u))
	require.NotZero(t, u.ID)

	require.NoError(t, s.SetReputation(ctx, u.ID, 64, true))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, 64.0, got.ReputationScore)
	assert.True(t, got.IsVerified)

	_, err = s.GetUser(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetReputation(ctx, 999, 1, false), ErrNotFound)

	require.NoError(t, s.UpsertUser(ctx, &User{ID: 50, Username: "bob"}))
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, int64(50), users[1].ID)
}

func TestPosts(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	author := &User{Username: "carol", ReputationScore: 140}
	require.NoError(t, s.UpsertUser(ctx, author))

	old := &insight.Post{AuthorID: author.ID, Ticker: "AAPL", QualityScore: 70, CreatedAt: now.Add(-72 * time.Hour)}
	fresh := &insight.Post{AuthorID: author.ID, Ticker: "TSLA", Sector: "Automotive", InsightType: insight.InsightTechnical,
		QualityScore: 80, LikeCount: 3, CreatedAt: now.Add(-time.Hour)}
	undated := &insight.Post{AuthorID: author.ID, Ticker: "AAPL", QualityScore: 40}
	for _, p := range []*insight.Post{old, fresh, undated} {
		require.NoError(t, s.UpsertPost(ctx, p))
		require.NotZero(t, p.ID)
	}

	got, err := s.GetPost(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, "TSLA", got.Ticker)
	assert.Equal(t, insight.InsightTechnical, got.InsightType)
	assert.Equal(t, 3, got.LikeCount)
	assert.True(t, got.CreatedAt.Equal(fresh.CreatedAt))
	assert.Equal(t, 100.0, got.AuthorReputationScore, "author reputation is read from users and clamped")

	all, err := s.ListPosts(ctx, PostListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{fresh.ID, old.ID, undated.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})
	assert.False(t, all[2].HasTimestamp())

	recent, err := s.ListPosts(ctx, PostListOpts{Since: now.Add(-24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, fresh.ID, recent[0].ID)

	aapl, err := s.ListPosts(ctx, PostListOpts{Ticker: "AAPL", Limit: 1})
	require.NoError(t, err)
	require.Len(t, aapl, 1)
	assert.Equal(t, old.ID, aapl[0].ID)

	fresh.QualityScore = 95
	require.NoError(t, s.UpsertPost(ctx, fresh))
	got, err = s.GetPost(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, 95.0, got.QualityScore)

	_, err = s.GetPost(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)

	qualities, err := s.AuthorPostQualities(ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, qualities, 3)
	assert.Equal(t, 70.0, qualities[0].QualityScore)
	assert.True(t, qualities[2].CreatedAt.IsZero())
}

func TestReactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	author := &User{Username: "dave"}
	require.NoError(t, s.UpsertUser(ctx, author))
	p := &insight.Post{AuthorID: author.ID, Ticker: "NVDA", HelpfulCount: 2}
	require.NoError(t, s.UpsertPost(ctx, p))

	added, err := s.AddReaction(ctx, p.ID, 7, insight.ReactionHelpful)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.AddReaction(ctx, p.ID, 7, insight.ReactionHelpful)
	require.NoError(t, err)
	assert.False(t, added, "same user, same kind is a no-op")

	added, err = s.AddReaction(ctx, p.ID, 8, insight.ReactionBullish)
	require.NoError(t, err)
	assert.True(t, added)

	_, err = s.AddReaction(ctx, 404, 7, insight.ReactionLike)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddReaction(ctx, p.ID, 7, "shrug")
	assert.Error(t, err)

	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.HelpfulCount)
	assert.Equal(t, 1, got.BullishCount)

	received, err := s.ReactionsReceived(ctx, author.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, received[insight.ReactionHelpful])
	assert.Equal(t, 1, received[insight.ReactionBullish])
	assert.Equal(t, 0, received[insight.ReactionLike])

	none, err := s.ReactionsReceived(ctx, 999)
	require.NoError(t, err)
	assert.Equal(t, 0, none[insight.ReactionHelpful])
}

func TestConcurrentReactions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	author := &User{Username: "erin"}
	require.NoError(t, s.UpsertUser(ctx, author))
	p := &insight.Post{AuthorID: author.ID, Ticker: "AMD"}
	require.NoError(t, s.UpsertPost(ctx, p))

	const readers = 40
	var wg sync.WaitGroup
	errs := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if _, err := s.AddReaction(ctx, p.ID, userID, insight.ReactionHelpful); err != nil {
				errs <- err
			}
		}(int64(100 + i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}

	got, err := s.GetPost(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, readers, got.HelpfulCount)
}

func TestUpdateReputation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	u := &User{Username: "frank", ReputationScore: 10}
	require.NoError(t, s.UpsertUser(ctx, u))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpdateReputation(ctx, u.ID, func(score float64) (float64, bool) {
				return score + 1, score+1 >= 25
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 30.0, got.ReputationScore)
	assert.True(t, got.IsVerified)

	change, err := s.UpdateReputation(ctx, u.ID, func(score float64) (float64, bool) {
		return score - 10, false
	})
	require.NoError(t, err)
	assert.True(t, change.WasVerified)
	assert.Equal(t, 30.0, change.Previous)
	assert.Equal(t, 20.0, change.User.ReputationScore)
	assert.False(t, change.User.IsVerified)

	_, err = s.UpdateReputation(ctx, 999, func(score float64) (float64, bool) { return score, false })
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPreferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetPreferences(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.SavePreferences(ctx, 1, &insight.Preferences{
		PreferredSectors: []string{" Energy "},
		FollowedTickers:  []string{"$xom"},
	}))

	prefs, err := s.GetPreferences(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Energy"}, prefs.PreferredSectors)
	assert.Equal(t, []string{"XOM"}, prefs.FollowedTickers)
	assert.Empty(t, prefs.PreferredInsightTypes)
	assert.Equal(t, insight.DefaultRiskTolerance, prefs.RiskTolerance)

	assert.Error(t, s.SavePreferences(ctx, 1, nil))
}

func TestTrends(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	first := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	second := first.Add(30 * time.Minute)

	sentiment := -0.1
	tsla, err := s.UpsertTrend(ctx, trend.Record{Kind: trend.KindTicker, Key: "TSLA", PostCount: 2, Sentiment: &sentiment, Magnitude: 2}, first)
	require.NoError(t, err)
	_, err = s.UpsertTrend(ctx, trend.Record{Kind: trend.KindSector, Key: "Energy", PostCount: 4, Magnitude: 4}, first)
	require.NoError(t, err)
	require.NoError(t, s.MarkAlerted(ctx, tsla.ID))

	refreshed, err := s.UpsertTrend(ctx, trend.Record{Kind: trend.KindTicker, Key: "TSLA", PostCount: 6, Magnitude: 6}, second)
	require.NoError(t, err)
	assert.Equal(t, tsla.ID, refreshed.ID)
	assert.True(t, refreshed.Alerted, "alerted survives refresh")
	assert.Nil(t, refreshed.Sentiment)
	assert.True(t, refreshed.FirstSeen.Equal(first))

	require.NoError(t, s.ClearStaleTrends(ctx, second))

	trends, err := s.ListTrends(ctx, TrendListOpts{})
	require.NoError(t, err)
	require.Len(t, trends, 1)
	assert.Equal(t, "TSLA", trends[0].Key)
	assert.Equal(t, 6, trends[0].Record().PostCount)

	unalerted, err := s.ListTrends(ctx, TrendListOpts{Kind: trend.KindTicker, Unalerted: true})
	require.NoError(t, err)
	assert.Empty(t, unalerted)
}

func TestMarketTrends(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceMarketTrends(ctx, []trend.MarketTrend{
		{Ticker: "ZM", Type: trend.MarketVolumeSpike, Magnitude: 80, DetectedAt: at, Metadata: map[string]float64{"volume_change": 80}},
		{Ticker: "AAPL", Type: trend.MarketPriceMovement, Magnitude: 6.5, DetectedAt: at},
	}))
	require.NoError(t, s.ReplaceMarketTrends(ctx, []trend.MarketTrend{
		{Ticker: "ZM", Type: trend.MarketVolumeSpike, Magnitude: 90, DetectedAt: at, Metadata: map[string]float64{"volume_change": 90}},
	}))

	got, err := s.ListMarketTrends(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "ZM", got[0].Ticker)
	assert.Equal(t, 90.0, got[0].Metadata["volume_change"])
	assert.True(t, got[0].DetectedAt.Equal(at))
}
