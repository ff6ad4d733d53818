package store

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    username         TEXT NOT NULL UNIQUE,
    reputation_score REAL NOT NULL DEFAULT 0,
    is_verified      BOOLEAN NOT NULL DEFAULT 0,
    created_at       DATETIME NOT NULL,
    updated_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS posts (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    author_id      INTEGER NOT NULL DEFAULT 0,
    title          TEXT NOT NULL DEFAULT '',
    ticker         TEXT NOT NULL DEFAULT '',
    sector         TEXT NOT NULL DEFAULT '',
    insight_type   TEXT NOT NULL DEFAULT '',
    quality_score  REAL NOT NULL DEFAULT 0,
    like_count     INTEGER NOT NULL DEFAULT 0,
    dislike_count  INTEGER NOT NULL DEFAULT 0,
    bullish_count  INTEGER NOT NULL DEFAULT 0,
    bearish_count  INTEGER NOT NULL DEFAULT 0,
    helpful_count  INTEGER NOT NULL DEFAULT 0,
    created_at     DATETIME
);

CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(author_id);
CREATE INDEX IF NOT EXISTS idx_posts_ticker ON posts(ticker);
CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);

CREATE TABLE IF NOT EXISTS reactions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    post_id    INTEGER NOT NULL REFERENCES posts(id),
    user_id    INTEGER NOT NULL,
    kind       TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    UNIQUE(post_id, user_id, kind)
);

CREATE INDEX IF NOT EXISTS idx_reactions_post ON reactions(post_id);

CREATE TABLE IF NOT EXISTS preferences (
    user_id        INTEGER PRIMARY KEY,
    sectors        TEXT NOT NULL DEFAULT '[]',
    insight_types  TEXT NOT NULL DEFAULT '[]',
    tickers        TEXT NOT NULL DEFAULT '[]',
    risk_tolerance TEXT NOT NULL DEFAULT 'moderate',
    updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS trends (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    kind         TEXT NOT NULL,
    trend_key    TEXT NOT NULL,
    post_count   INTEGER NOT NULL DEFAULT 0,
    sentiment    REAL,
    magnitude    REAL NOT NULL DEFAULT 0,
    first_seen   DATETIME NOT NULL,
    last_updated DATETIME NOT NULL,
    alerted      BOOLEAN NOT NULL DEFAULT 0,
    UNIQUE(kind, trend_key)
);

CREATE INDEX IF NOT EXISTS idx_trends_updated ON trends(last_updated);

CREATE TABLE IF NOT EXISTS market_trends (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    ticker      TEXT NOT NULL,
    trend_type  TEXT NOT NULL,
    magnitude   REAL NOT NULL DEFAULT 0,
    metadata    TEXT NOT NULL DEFAULT '{}',
    detected_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_market_trends_detected ON market_trends(detected_at);
`
