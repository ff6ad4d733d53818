package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/elonfeng/feedrank/internal/feed"
	"github.com/elonfeng/feedrank/internal/store"
	"github.com/elonfeng/feedrank/pkg/insight"
	"github.com/elonfeng/feedrank/pkg/trend"
)

const maxBodyBytes = 4 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStrategies(w http.ResponseWriter, r *http.Request) {
	strategies := s.svc.Strategies()
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  strategies,
		"count": len(strategies),
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := intParam(q.Get("user_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid user_id")
		return
	}
	page, err := intParam(q.Get("page"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page")
		return
	}
	size, err := intParam(q.Get("page_size"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid page_size")
		return
	}

	result, err := s.svc.Feed(r.Context(), feed.FeedRequest{
		UserID:   int64(userID),
		Strategy: q.Get("strategy"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rankRequest struct {
	Posts       []insight.PostRecord `json:"posts"`
	Preferences *insight.Preferences `json:"preferences"`
	Strategy    string               `json:"strategy"`
}

func (s *Server) handleRank(w http.ResponseWriter, r *http.Request) {
	var req rankRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ranked := s.svc.Rank(r.Context(), insight.NormalizeRecords(req.Posts), req.Preferences.Normalize(), req.Strategy)
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  ranked,
		"count": len(ranked),
	})
}

func (s *Server) handleTrends(w http.ResponseWriter, r *http.Request) {
	records, err := s.svc.Trending(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}

	if kind := trend.Kind(r.URL.Query().Get("kind")); kind != "" {
		filtered := records[:0]
		for _, rec := range records {
			if rec.Kind == kind {
				filtered = append(filtered, rec)
			}
		}
		records = filtered
	}
	if records == nil {
		records = []trend.Record{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  records,
		"count": len(records),
	})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.DetectTrends(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleMarketTrends(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	trends, err := s.svc.MarketTrends(r.Context(), limit)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  trends,
		"count": len(trends),
	})
}

func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	report, err := s.svc.Reputation(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	result, err := s.svc.Reconcile(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type reactionRequest struct {
	UserID int64                `json:"user_id"`
	Kind   insight.ReactionKind `json:"kind"`
}

func (s *Server) handleReaction(w http.ResponseWriter, r *http.Request) {
	postID, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)

	var req reactionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := s.svc.RecordReaction(r.Context(), postID, req.UserID, req.Kind)
	switch {
	case errors.Is(err, feed.ErrInvalidReaction):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "post not found")
		return
	case err != nil:
		s.internalError(w, r, err)
		return
	}

	status := http.StatusCreated
	if !result.Recorded {
		status = http.StatusOK
	}
	writeJSON(w, status, result)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid integer")
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
