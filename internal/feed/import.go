package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elonfeng/feedrank/internal/store"
	"github.com/elonfeng/feedrank/pkg/insight"
)

// UserPreferences is one preference record in an import batch.
type UserPreferences struct {
	UserID int64 `json:"user_id"`
	insight.Preferences
}

// Batch is a bulk load of users, posts and preferences.
type Batch struct {
	Users       []store.User         `json:"users"`
	Posts       []insight.PostRecord `json:"posts"`
	Preferences []UserPreferences    `json:"preferences"`
}

// DecodeBatch reads a JSON batch.
func DecodeBatch(r io.Reader) (*Batch, error) {
	var b Batch
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return nil, fmt.Errorf("decode import batch: %w", err)
	}
	return &b, nil
}

// ImportStats counts what an import wrote.
type ImportStats struct {
	Users       int `json:"users"`
	Posts       int `json:"posts"`
	Preferences int `json:"preferences"`
}

// Import writes a batch. Users go first so post authors resolve. Post
// records are normalized on the way in.
func (s *Service) Import(ctx context.Context, b *Batch) (*ImportStats, error) {
	stats := &ImportStats{}
	for i := range b.Users {
		if err := s.store.UpsertUser(ctx, &b.Users[i]); err != nil {
			return stats, err
		}
		stats.Users++
	}
	for _, rec := range b.Posts {
		if rec.ID <= 0 {
			return stats, fmt.Errorf("import post: missing id")
		}
		p := rec.Normalize()
		if err := s.store.UpsertPost(ctx, &p); err != nil {
			return stats, err
		}
		stats.Posts++
	}
	for _, up := range b.Preferences {
		prefs := up.Preferences
		if err := s.store.SavePreferences(ctx, up.UserID, &prefs); err != nil {
			return stats, err
		}
		stats.Preferences++
	}

	s.log.Info().
		Int("users", stats.Users).
		Int("posts", stats.Posts).
		Int("preferences", stats.Preferences).
		Msg("import complete")
	return stats, nil
}
