package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/feedback"
	"github.com/rushteam/reclite/logging"
	"github.com/rushteam/reclite/recommend"
	"github.com/rushteam/reclite/tracker"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type recommendResponse struct {
	Success         bool         `json:"success"`
	Type            string       `json:"type"`
	Recommendations core.Results `json:"recommendations"`
	Count           int          `json:"count"`
}

type behaviorRequest struct {
	UserID       string         `json:"userId"`
	ItemID       string         `json:"itemId"`
	BehaviorType string         `json:"behaviorType"`
	Timestamp    int64          `json:"timestamp,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type behaviorResponse struct {
	Success  bool              `json:"success"`
	Message  string            `json:"message"`
	Behavior core.UserBehavior `json:"behavior"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type statsResponse struct {
	Success bool       `json:"success"`
	Stats   core.Stats `json:"stats"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Success: false, Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, messageResponse{Success: true, Message: "ok"})
}

// parseOptions 解析 limit / excludeItemIds / minScore。limit 缺省为 10，<= 0 由引擎归一化。
func parseOptions(r *http.Request) (core.Options, error) {
	q := r.URL.Query()
	opts := core.Options{Limit: core.DefaultLimit}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid limit: %q", raw)
		}
		opts.Limit = n
	}
	if raw := q.Get("minScore"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return opts, fmt.Errorf("invalid minScore: %q", raw)
		}
		opts.MinScore = f
	}
	for _, id := range strings.Split(q.Get("excludeItemIds"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			opts.ExcludeItemIDs = append(opts.ExcludeItemIDs, id)
		}
	}
	return opts, nil
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID := strings.TrimSpace(q.Get("userId"))
	typ := q.Get("type")
	if typ == "" {
		typ = string(recommend.StrategyHybrid)
	}

	strategy, err := recommend.ParseStrategy(typ)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unsupported recommendation type: %s", typ))
		return
	}
	if userID == "" && (strategy == recommend.StrategyUser || strategy == recommend.StrategyItem) {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("userId is required when type=%s", strategy))
		return
	}

	opts, err := parseOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.engine.Recommend(r.Context(), strategy, userID, opts)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if results == nil {
		results = core.Results{}
	}
	respondJSON(w, http.StatusOK, recommendResponse{
		Success:         true,
		Type:            string(strategy),
		Recommendations: results,
		Count:           len(results),
	})
}

func (s *Server) handleAddBehavior(w http.ResponseWriter, r *http.Request) {
	var req behaviorRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.ItemID == "" || req.BehaviorType == "" {
		respondError(w, http.StatusBadRequest, "missing required fields: userId, itemId, behaviorType")
		return
	}
	typ, err := core.ParseBehaviorType(req.BehaviorType)
	if err != nil {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid behavior type: %s", req.BehaviorType))
		return
	}

	stored, err := s.engine.AddBehavior(tracker.ContextWithSource(r.Context(), "api"), core.UserBehavior{
		UserID:    req.UserID,
		ItemID:    req.ItemID,
		Type:      typ,
		Timestamp: req.Timestamp,
		Metadata:  req.Metadata,
	})
	if err != nil {
		if core.IsValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, behaviorResponse{
		Success:  true,
		Message:  "behavior recorded",
		Behavior: stored,
	})
}

type publishResponse struct {
	Success   bool `json:"success"`
	Published int  `json:"published"`
}

// handlePublishEvents 只检查请求体格式，事件的校验在消费端进行。
// 202 表示事件已交给消息流，不保证已写入：消费者未就绪时返回 503，
// 消费者处理途中退出时缓冲中的事件可能丢失。需要确认写入请用 POST /api/recommendation。
func (s *Server) handlePublishEvents(w http.ResponseWriter, r *http.Request) {
	if s.collector == nil {
		respondError(w, http.StatusNotFound, "event stream is disabled")
		return
	}
	var events []feedback.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&events); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(events) == 0 {
		respondError(w, http.StatusBadRequest, "no events")
		return
	}
	if err := s.collector.Record(r.Context(), events...); err != nil {
		if core.IsUnavailable(err) {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusAccepted, publishResponse{Success: true, Published: len(events)})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear()
	l := logging.Ctx(r.Context(), s.logger)
	l.Info().Msg("behavior store cleared")
	respondJSON(w, http.StatusOK, messageResponse{Success: true, Message: "all behaviors cleared"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, statsResponse{Success: true, Stats: s.engine.Stats()})
}

type blacklistResponse struct {
	Success bool     `json:"success"`
	Items   []string `json:"items"`
}

func (s *Server) handleListBlacklist(w http.ResponseWriter, r *http.Request) {
	items, err := s.engine.BlockedItems(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, blacklistResponse{Success: true, Items: items})
}

func (s *Server) handleBlockItem(w http.ResponseWriter, r *http.Request) {
	s.updateBlacklist(w, r, s.engine.BlockItems, "item blacklisted")
}

func (s *Server) handleUnblockItem(w http.ResponseWriter, r *http.Request) {
	s.updateBlacklist(w, r, s.engine.UnblockItems, "item removed from blacklist")
}

func (s *Server) updateBlacklist(
	w http.ResponseWriter,
	r *http.Request,
	update func(ctx context.Context, itemIDs ...string) error,
	message string,
) {
	if err := update(r.Context(), chi.URLParam(r, "itemId")); err != nil {
		if core.IsValidationError(err) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.internalError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Success: true, Message: message})
}

func (s *Server) handlePipeline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	p, ok := s.pipelines[name]
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("pipeline not found: %s", name))
		return
	}
	opts, err := parseOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	results, err := s.engine.RunPipeline(r.Context(), p, strings.TrimSpace(r.URL.Query().Get("userId")), opts)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	if results == nil {
		results = core.Results{}
	}
	respondJSON(w, http.StatusOK, recommendResponse{
		Success:         true,
		Type:            name,
		Recommendations: results,
		Count:           len(results),
	})
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	l := logging.Ctx(r.Context(), s.logger)
	l.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")

	switch {
	case core.IsUnavailable(err):
		respondError(w, http.StatusServiceUnavailable, "service unavailable")
	case core.IsNotSupported(err):
		respondError(w, http.StatusNotImplemented, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
