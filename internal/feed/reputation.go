package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/elonfeng/feedrank/internal/store"
	"github.com/elonfeng/feedrank/pkg/alert"
	"github.com/elonfeng/feedrank/pkg/insight"
	"github.com/elonfeng/feedrank/pkg/reputation"
)

// ReactionResult reports the effect of one reaction.
type ReactionResult struct {
	PostID     int64                `json:"post_id"`
	Kind       insight.ReactionKind `json:"kind"`
	Recorded   bool                 `json:"recorded"`
	AuthorID   int64                `json:"author_id,omitempty"`
	Reputation float64              `json:"author_reputation,omitempty"`
	Verified   bool                 `json:"author_verified,omitempty"`
}

// RecordReaction stores a reaction, bumps the post counter and nudges the
// author's reputation by the incremental delta. A repeated reaction by the
// same user changes nothing and reports Recorded=false.
func (s *Service) RecordReaction(ctx context.Context, postID, userID int64, kind insight.ReactionKind) (*ReactionResult, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReaction, kind)
	}

	res := &ReactionResult{PostID: postID, Kind: kind}
	added, err := s.store.AddReaction(ctx, postID, userID, kind)
	if err != nil {
		return nil, err
	}
	if !added {
		return res, nil
	}
	res.Recorded = true
	s.metrics.Reactions.WithLabelValues(string(kind)).Inc()

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.AuthorID == 0 {
		return res, nil
	}
	change, err := s.store.UpdateReputation(ctx, post.AuthorID, func(score float64) (float64, bool) {
		score = reputation.ApplyReactionDelta(score, kind, kind.Positive())
		score = insight.Clamp(score, 0, reputation.MaxScore)
		return score, s.calc.ShouldBeVerified(score)
	})
	if errors.Is(err, store.ErrNotFound) {
		return res, nil
	}
	if err != nil {
		return nil, err
	}

	res.AuthorID = change.User.ID
	res.Reputation = change.User.ReputationScore
	res.Verified = change.User.IsVerified
	if res.Verified && !change.WasVerified {
		s.announceVerified(ctx, change.User.Username, res.Reputation)
	}
	return res, nil
}

// ReputationReport compares a user's stored reputation with a full
// recompute.
type ReputationReport struct {
	UserID     int64   `json:"user_id"`
	Username   string  `json:"username"`
	Stored     float64 `json:"stored_score"`
	Computed   float64 `json:"computed_score"`
	IsVerified bool    `json:"is_verified"`
	Verifiable bool    `json:"meets_verification"`
	Posts      int     `json:"posts"`
}

// Reputation recomputes a user's score without storing it.
func (s *Service) Reputation(ctx context.Context, userID int64) (*ReputationReport, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	score, posts, err := s.compute(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &ReputationReport{
		UserID:     u.ID,
		Username:   u.Username,
		Stored:     u.ReputationScore,
		Computed:   score,
		IsVerified: u.IsVerified,
		Verifiable: s.calc.ShouldBeVerified(score),
		Posts:      posts,
	}, nil
}

// ReconcileResult summarizes one full reputation recompute.
type ReconcileResult struct {
	Users         int      `json:"users"`
	Changed       int      `json:"changed"`
	NewlyVerified []string `json:"newly_verified"`
}

// Reconcile recomputes every user's reputation from their posts and the
// reactions those posts received, overwriting the incremental values.
func (s *Service) Reconcile(ctx context.Context) (*ReconcileResult, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	res := &ReconcileResult{NewlyVerified: []string{}}
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		score, _, err := s.compute(ctx, u.ID)
		if err != nil {
			return nil, err
		}
		verified := s.calc.ShouldBeVerified(score)
		if err := s.store.SetReputation(ctx, u.ID, score, verified); err != nil {
			return nil, err
		}
		s.metrics.ReputationRecomputes.Inc()

		res.Users++
		if score != u.ReputationScore || verified != u.IsVerified {
			res.Changed++
		}
		if verified && !u.IsVerified {
			res.NewlyVerified = append(res.NewlyVerified, u.Username)
			s.announceVerified(ctx, u.Username, score)
		}
	}

	s.log.Info().
		Int("users", res.Users).
		Int("changed", res.Changed).
		Int("newly_verified", len(res.NewlyVerified)).
		Msg("reputation reconciled")
	return res, nil
}

func (s *Service) compute(ctx context.Context, userID int64) (float64, int, error) {
	posts, err := s.store.AuthorPostQualities(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	reactions, err := s.store.ReactionsReceived(ctx, userID)
	if err != nil {
		return 0, 0, err
	}
	return s.calc.Calculate(posts, reactions), len(posts), nil
}

func (s *Service) announceVerified(ctx context.Context, username string, score float64) {
	if !s.alerts.HasNotifiers() {
		return
	}
	s.broadcast(ctx, alert.VerifiedUser(username, score, s.now()))
}
