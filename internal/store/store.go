package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/elonfeng/feedrank/pkg/insight"
	"github.com/elonfeng/feedrank/pkg/reputation"
	"github.com/elonfeng/feedrank/pkg/trend"
)

// ErrNotFound is returned when a row does not exist.
var ErrNotFound = errors.New("not found")

// User is an author and reader account.
type User struct {
	ID              int64     `db:"id" json:"id"`
	Username        string    `db:"username" json:"username"`
	ReputationScore float64   `db:"reputation_score" json:"reputation_score"`
	IsVerified      bool      `db:"is_verified" json:"is_verified"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// Trend is a persisted community trend.
type Trend struct {
	ID          int64      `db:"id" json:"id"`
	Kind        trend.Kind `db:"kind" json:"kind"`
	Key         string     `db:"trend_key" json:"key"`
	PostCount   int        `db:"post_count" json:"post_count"`
	Sentiment   *float64   `db:"sentiment" json:"aggregate_sentiment,omitempty"`
	Magnitude   float64    `db:"magnitude" json:"magnitude"`
	FirstSeen   time.Time  `db:"first_seen" json:"first_seen"`
	LastUpdated time.Time  `db:"last_updated" json:"last_updated"`
	Alerted     bool       `db:"alerted" json:"alerted"`
}

// Record converts a persisted trend back to a detector record.
func (t Trend) Record() trend.Record {
	return trend.Record{
		Kind:      t.Kind,
		Key:       t.Key,
		PostCount: t.PostCount,
		Sentiment: t.Sentiment,
		Magnitude: t.Magnitude,
	}
}

// ReputationFunc maps a stored score to the new score and verified flag.
type ReputationFunc func(score float64) (float64, bool)

// ReputationChange is the before and after of one reputation update.
type ReputationChange struct {
	User        User
	WasVerified bool
	Previous    float64
}

// PostListOpts controls post listing.
type PostListOpts struct {
	Since    time.Time
	AuthorID int64
	Ticker   string
	Limit    int
}

// TrendListOpts controls trend listing.
type TrendListOpts struct {
	Kind      trend.Kind
	MinPosts  int
	Limit     int
	Unalerted bool
}

// Store is the persistence interface.
type Store interface {
	UpsertUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SetReputation(ctx context.Context, userID int64, score float64, verified bool) error
	UpdateReputation(ctx context.Context, userID int64, fn ReputationFunc) (*ReputationChange, error)

	UpsertPost(ctx context.Context, p *insight.Post) error
	GetPost(ctx context.Context, id int64) (*insight.Post, error)
	ListPosts(ctx context.Context, opts PostListOpts) ([]insight.Post, error)
	AuthorPostQualities(ctx context.Context, userID int64) ([]reputation.PostQuality, error)
	ReactionsReceived(ctx context.Context, userID int64) (map[insight.ReactionKind]int, error)
	AddReaction(ctx context.Context, postID, userID int64, kind insight.ReactionKind) (bool, error)

	GetPreferences(ctx context.Context, userID int64) (*insight.Preferences, error)
	SavePreferences(ctx context.Context, userID int64, prefs *insight.Preferences) error

	UpsertTrend(ctx context.Context, r trend.Record, at time.Time) (*Trend, error)
	ClearStaleTrends(ctx context.Context, before time.Time) error
	ListTrends(ctx context.Context, opts TrendListOpts) ([]Trend, error)
	MarkAlerted(ctx context.Context, trendID int64) error

	ReplaceMarketTrends(ctx context.Context, trends []trend.MarketTrend) error
	ListMarketTrends(ctx context.Context, limit int) ([]trend.MarketTrend, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	// Immediate transactions take the write lock at BEGIN, where the busy
	// timeout applies, instead of failing on a later lock upgrade.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_txlock=immediate&_time_format=sqlite"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Times are stored in UTC so that text comparison in SQL orders them.
func utc(t time.Time) time.Time {
	return t.UTC()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *SQLiteStore) UpsertUser(ctx context.Context, u *User) error {
	now := utc(time.Now())
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	if u.ID > 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO users (id, username, reputation_score, is_verified, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				username = excluded.username,
				reputation_score = excluded.reputation_score,
				is_verified = excluded.is_verified,
				updated_at = excluded.updated_at
		`, u.ID, u.Username, u.ReputationScore, u.IsVerified, utc(u.CreatedAt), u.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert user %d: %w", u.ID, err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, reputation_score, is_verified, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, u.Username, u.ReputationScore, u.IsVerified, utc(u.CreatedAt), u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.Username, err)
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id int64) (*User, error) {
	var u User
	if err := s.db.GetContext(ctx, &u, "SELECT * FROM users WHERE id = ?", id); err != nil {
		return nil, notFound(err, fmt.Sprintf("get user %d", id))
	}
	return &u, nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := s.db.SelectContext(ctx, &users, "SELECT * FROM users ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *SQLiteStore) SetReputation(ctx context.Context, userID int64, score float64, verified bool) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET reputation_score = ?, is_verified = ?, updated_at = ? WHERE id = ?",
		score, verified, utc(time.Now()), userID)
	if err != nil {
		return fmt.Errorf("set reputation %d: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("set reputation %d: %w", userID, ErrNotFound)
	}
	return nil
}

// postRow is a posts row joined with its author's reputation.
// UpdateReputation applies fn to the user's stored score inside one
// transaction so concurrent updates are serialized.
func (s *SQLiteStore) UpdateReputation(ctx context.Context, userID int64, fn ReputationFunc) (*ReputationChange, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin reputation update: %w", err)
	}
	defer tx.Rollback()

	var u User
	if err := tx.GetContext(ctx, &u, "SELECT * FROM users WHERE id = ?", userID); err != nil {
		return nil, notFound(err, fmt.Sprintf("get user %d", userID))
	}
	change := &ReputationChange{WasVerified: u.IsVerified, Previous: u.ReputationScore}

	u.ReputationScore, u.IsVerified = fn(u.ReputationScore)
	u.UpdatedAt = utc(time.Now())
	if _, err := tx.ExecContext(ctx,
		"UPDATE users SET reputation_score = ?, is_verified = ?, updated_at = ? WHERE id = ?",
		u.ReputationScore, u.IsVerified, u.UpdatedAt, userID); err != nil {
		return nil, fmt.Errorf("update reputation %d: %w", userID, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reputation %d: %w", userID, err)
	}
	change.User = u
	return change, nil
}

type postRow struct {
	ID                    int64      `db:"id"`
	AuthorID              int64      `db:"author_id"`
	Title                 string     `db:"title"`
	Ticker                string     `db:"ticker"`
	Sector                string     `db:"sector"`
	InsightType           string     `db:"insight_type"`
	QualityScore          float64    `db:"quality_score"`
	LikeCount             int        `db:"like_count"`
	DislikeCount          int        `db:"dislike_count"`
	BullishCount          int        `db:"bullish_count"`
	BearishCount          int        `db:"bearish_count"`
	HelpfulCount          int        `db:"helpful_count"`
	CreatedAt             *time.Time `db:"created_at"`
	AuthorReputationScore float64    `db:"author_reputation_score"`
}

func (r postRow) post() insight.Post {
	p := insight.Post{
		ID:                    r.ID,
		AuthorID:              r.AuthorID,
		Title:                 r.Title,
		Ticker:                r.Ticker,
		Sector:                r.Sector,
		InsightType:           insight.InsightType(r.InsightType),
		QualityScore:          r.QualityScore,
		LikeCount:             r.LikeCount,
		DislikeCount:          r.DislikeCount,
		BullishCount:          r.BullishCount,
		BearishCount:          r.BearishCount,
		HelpfulCount:          r.HelpfulCount,
		AuthorReputationScore: insight.Clamp(r.AuthorReputationScore, 0, 100),
	}
	if r.CreatedAt != nil {
		p.CreatedAt = r.CreatedAt.UTC()
	}
	return p
}

const selectPosts = `
	SELECT p.id, p.author_id, p.title, p.ticker, p.sector, p.insight_type, p.quality_score,
	       p.like_count, p.dislike_count, p.bullish_count, p.bearish_count, p.helpful_count,
	       p.created_at, COALESCE(u.reputation_score, 0) AS author_reputation_score
	FROM posts p LEFT JOIN users u ON u.id = p.author_id`

// UpsertPost stores a post's content and counters. The author reputation on
// the post is ignored; it is always read from users.
func (s *SQLiteStore) UpsertPost(ctx context.Context, p *insight.Post) error {
	args := []any{p.AuthorID, p.Title, p.Ticker, p.Sector, string(p.InsightType), p.QualityScore,
		p.LikeCount, p.DislikeCount, p.BullishCount, p.BearishCount, p.HelpfulCount,
		nullableTime(p.CreatedAt)}

	if p.ID > 0 {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO posts (author_id, title, ticker, sector, insight_type, quality_score,
				like_count, dislike_count, bullish_count, bearish_count, helpful_count, created_at, id)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				author_id = excluded.author_id,
				title = excluded.title,
				ticker = excluded.ticker,
				sector = excluded.sector,
				insight_type = excluded.insight_type,
				quality_score = excluded.quality_score,
				like_count = excluded.like_count,
				dislike_count = excluded.dislike_count,
				bullish_count = excluded.bullish_count,
				bearish_count = excluded.bearish_count,
				helpful_count = excluded.helpful_count,
				created_at = excluded.created_at
		`, append(args, p.ID)...)
		if err != nil {
			return fmt.Errorf("upsert post %d: %w", p.ID, err)
		}
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (author_id, title, ticker, sector, insight_type, quality_score,
			like_count, dislike_count, bullish_count, bearish_count, helpful_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) GetPost(ctx context.Context, id int64) (*insight.Post, error) {
	var row postRow
	if err := s.db.GetContext(ctx, &row, selectPosts+" WHERE p.id = ?", id); err != nil {
		return nil, notFound(err, fmt.Sprintf("get post %d", id))
	}
	p := row.post()
	return &p, nil
}

// ListPosts returns posts newest first; posts without a timestamp come last.
func (s *SQLiteStore) ListPosts(ctx context.Context, opts PostListOpts) ([]insight.Post, error) {
	query := selectPosts + " WHERE 1=1"
	var args []any

	if !opts.Since.IsZero() {
		query += " AND p.created_at >= ?"
		args = append(args, utc(opts.Since))
	}
	if opts.AuthorID > 0 {
		query += " AND p.author_id = ?"
		args = append(args, opts.AuthorID)
	}
	if opts.Ticker != "" {
		query += " AND p.ticker = ?"
		args = append(args, opts.Ticker)
	}

	query += " ORDER BY p.created_at IS NULL, p.created_at DESC, p.id DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var rows []postRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]insight.Post, len(rows))
	for i, r := range rows {
		posts[i] = r.post()
	}
	return posts, nil
}

func (s *SQLiteStore) AuthorPostQualities(ctx context.Context, userID int64) ([]reputation.PostQuality, error) {
	var rows []struct {
		QualityScore float64    `db:"quality_score"`
		CreatedAt    *time.Time `db:"created_at"`
	}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT quality_score, created_at FROM posts WHERE author_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, fmt.Errorf("author posts %d: %w", userID, err)
	}

	out := make([]reputation.PostQuality, len(rows))
	for i, r := range rows {
		out[i].QualityScore = r.QualityScore
		if r.CreatedAt != nil {
			out[i].CreatedAt = r.CreatedAt.UTC()
		}
	}
	return out, nil
}

// ReactionsReceived sums the reaction counters over an author's posts.
func (s *SQLiteStore) ReactionsReceived(ctx context.Context, userID int64) (map[insight.ReactionKind]int, error) {
	var sums struct {
		Like    int `db:"likes"`
		Dislike int `db:"dislikes"`
		Bullish int `db:"bullish"`
		Bearish int `db:"bearish"`
		Helpful int `db:"helpful"`
	}
	err := s.db.GetContext(ctx, &sums, `
		SELECT COALESCE(SUM(like_count), 0) AS likes,
		       COALESCE(SUM(dislike_count), 0) AS dislikes,
		       COALESCE(SUM(bullish_count), 0) AS bullish,
		       COALESCE(SUM(bearish_count), 0) AS bearish,
		       COALESCE(SUM(helpful_count), 0) AS helpful
		FROM posts WHERE author_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("reactions received %d: %w", userID, err)
	}
	return map[insight.ReactionKind]int{
		insight.ReactionLike:    sums.Like,
		insight.ReactionDislike: sums.Dislike,
		insight.ReactionBullish: sums.Bullish,
		insight.ReactionBearish: sums.Bearish,
		insight.ReactionHelpful: sums.Helpful,
	}, nil
}

var counterColumns = map[insight.ReactionKind]string{
	insight.ReactionLike:    "like_count",
	insight.ReactionDislike: "dislike_count",
	insight.ReactionBullish: "bullish_count",
	insight.ReactionBearish: "bearish_count",
	insight.ReactionHelpful: "helpful_count",
}

// AddReaction records a reaction and bumps the post counter. A repeated
// reaction by the same user is ignored and reports false.
func (s *SQLiteStore) AddReaction(ctx context.Context, postID, userID int64, kind insight.ReactionKind) (bool, error) {
	column, ok := counterColumns[kind]
	if !ok {
		return false, fmt.Errorf("unknown reaction kind %q", kind)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin reaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.GetContext(ctx, &exists, "SELECT COUNT(*) FROM posts WHERE id = ?", postID); err != nil {
		return false, fmt.Errorf("check post %d: %w", postID, err)
	}
	if exists == 0 {
		return false, fmt.Errorf("add reaction to post %d: %w", postID, ErrNotFound)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO reactions (post_id, user_id, kind, created_at)
		VALUES (?, ?, ?, ?)
	`, postID, userID, string(kind), utc(time.Now()))
	if err != nil {
		return false, fmt.Errorf("insert reaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE posts SET "+column+" = "+column+" + 1 WHERE id = ?", postID); err != nil {
		return false, fmt.Errorf("bump %s: %w", column, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit reaction: %w", err)
	}
	return true, nil
}

type preferencesRow struct {
	UserID        int64     `db:"user_id"`
	Sectors       string    `db:"sectors"`
	InsightTypes  string    `db:"insight_types"`
	Tickers       string    `db:"tickers"`
	RiskTolerance string    `db:"risk_tolerance"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (s *SQLiteStore) GetPreferences(ctx context.Context, userID int64) (*insight.Preferences, error) {
	var row preferencesRow
	if err := s.db.GetContext(ctx, &row, "SELECT * FROM preferences WHERE user_id = ?", userID); err != nil {
		return nil, notFound(err, fmt.Sprintf("get preferences %d", userID))
	}

	prefs := &insight.Preferences{RiskTolerance: row.RiskTolerance}
	json.Unmarshal([]byte(row.Sectors), &prefs.PreferredSectors)
	json.Unmarshal([]byte(row.InsightTypes), &prefs.PreferredInsightTypes)
	json.Unmarshal([]byte(row.Tickers), &prefs.FollowedTickers)
	return prefs.Normalize(), nil
}

func (s *SQLiteStore) SavePreferences(ctx context.Context, userID int64, prefs *insight.Preferences) error {
	if prefs == nil {
		return fmt.Errorf("save preferences %d: nil record", userID)
	}
	prefs = prefs.Normalize()
	sectors, _ := json.Marshal(nonNil(prefs.PreferredSectors))
	types, _ := json.Marshal(nonNil(prefs.PreferredInsightTypes))
	tickers, _ := json.Marshal(nonNil(prefs.FollowedTickers))

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, sectors, insight_types, tickers, risk_tolerance, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			sectors = excluded.sectors,
			insight_types = excluded.insight_types,
			tickers = excluded.tickers,
			risk_tolerance = excluded.risk_tolerance,
			updated_at = excluded.updated_at
	`, userID, string(sectors), string(types), string(tickers), prefs.RiskTolerance, utc(time.Now()))
	if err != nil {
		return fmt.Errorf("save preferences %d: %w", userID, err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// UpsertTrend inserts or refreshes a trend keyed by kind and key. The alerted
// flag and first-seen time survive refreshes.
func (s *SQLiteStore) UpsertTrend(ctx context.Context, r trend.Record, at time.Time) (*Trend, error) {
	at = utc(at)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trends (kind, trend_key, post_count, sentiment, magnitude, first_seen, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, trend_key) DO UPDATE SET
			post_count = excluded.post_count,
			sentiment = excluded.sentiment,
			magnitude = excluded.magnitude,
			last_updated = excluded.last_updated
	`, string(r.Kind), r.Key, r.PostCount, r.Sentiment, r.Magnitude, at, at)
	if err != nil {
		return nil, fmt.Errorf("upsert trend %s/%s: %w", r.Kind, r.Key, err)
	}

	var t Trend
	err = s.db.GetContext(ctx, &t, "SELECT * FROM trends WHERE kind = ? AND trend_key = ?", string(r.Kind), r.Key)
	if err != nil {
		return nil, fmt.Errorf("reload trend %s/%s: %w", r.Kind, r.Key, err)
	}
	return &t, nil
}

// ClearStaleTrends drops trends not refreshed since before.
func (s *SQLiteStore) ClearStaleTrends(ctx context.Context, before time.Time) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM trends WHERE last_updated < ?", utc(before)); err != nil {
		return fmt.Errorf("clear stale trends: %w", err)
	}
	return nil
}

// ListTrends returns trends by post count, ties in insertion order.
func (s *SQLiteStore) ListTrends(ctx context.Context, opts TrendListOpts) ([]Trend, error) {
	query := "SELECT * FROM trends WHERE 1=1"
	var args []any

	if opts.Kind != "" {
		query += " AND kind = ?"
		args = append(args, string(opts.Kind))
	}
	if opts.MinPosts > 0 {
		query += " AND post_count >= ?"
		args = append(args, opts.MinPosts)
	}
	if opts.Unalerted {
		query += " AND alerted = 0"
	}

	query += " ORDER BY post_count DESC, id ASC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " LIMIT ?"
	args = append(args, limit)

	var trends []Trend
	if err := s.db.SelectContext(ctx, &trends, query, args...); err != nil {
		return nil, fmt.Errorf("list trends: %w", err)
	}
	return trends, nil
}

func (s *SQLiteStore) MarkAlerted(ctx context.Context, trendID int64) error {
	_, err := s.db.ExecContext(ctx, "UPDATE trends SET alerted = 1 WHERE id = ?", trendID)
	if err != nil {
		return fmt.Errorf("mark alerted %d: %w", trendID, err)
	}
	return nil
}

type marketTrendRow struct {
	ID         int64     `db:"id"`
	Ticker     string    `db:"ticker"`
	TrendType  string    `db:"trend_type"`
	Magnitude  float64   `db:"magnitude"`
	Metadata   string    `db:"metadata"`
	DetectedAt time.Time `db:"detected_at"`
}

// ReplaceMarketTrends swaps the stored market trends for a new set.
func (s *SQLiteStore) ReplaceMarketTrends(ctx context.Context, trends []trend.MarketTrend) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin market trends: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM market_trends"); err != nil {
		return fmt.Errorf("clear market trends: %w", err)
	}
	for _, mt := range trends {
		meta, _ := json.Marshal(mt.Metadata)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO market_trends (ticker, trend_type, magnitude, metadata, detected_at)
			VALUES (?, ?, ?, ?, ?)
		`, mt.Ticker, string(mt.Type), mt.Magnitude, string(meta), utc(mt.DetectedAt))
		if err != nil {
			return fmt.Errorf("insert market trend %s: %w", mt.Ticker, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit market trends: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListMarketTrends(ctx context.Context, limit int) ([]trend.MarketTrend, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []marketTrendRow
	err := s.db.SelectContext(ctx, &rows, "SELECT * FROM market_trends ORDER BY ticker LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list market trends: %w", err)
	}

	out := make([]trend.MarketTrend, len(rows))
	for i, r := range rows {
		out[i] = trend.MarketTrend{
			Ticker:     r.Ticker,
			Type:       trend.MarketTrendType(r.TrendType),
			Magnitude:  r.Magnitude,
			DetectedAt: r.DetectedAt.UTC(),
		}
		json.Unmarshal([]byte(r.Metadata), &out[i].Metadata)
	}
	return out, nil
}
