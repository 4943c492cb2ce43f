package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"

	"github.com/rushteam/reclite/config"
	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/feedback"
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/recommend"
	"github.com/rushteam/reclite/store"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, *recommend.Engine) {
	t.Helper()
	engine, err := recommend.New()
	if err != nil {
		t.Fatalf("recommend.New: %v", err)
	}
	return New(engine, opts...), engine
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func seed(t *testing.T, h http.Handler) {
	t.Helper()
	for _, body := range []string{
		`{"userId":"user1","itemId":"item1","behaviorType":"view"}`,
		`{"userId":"user1","itemId":"item1","behaviorType":"view"}`,
		`{"userId":"user1","itemId":"item2","behaviorType":"purchase"}`,
		`{"userId":"user2","itemId":"item1","behaviorType":"view"}`,
		`{"userId":"user2","itemId":"item3","behaviorType":"like"}`,
	} {
		if rec := do(t, h, http.MethodPost, "/api/recommendation", body); rec.Code != http.StatusOK {
			t.Fatalf("POST %s = %d %s", body, rec.Code, rec.Body.String())
		}
	}
}

func TestAddBehavior(t *testing.T) {
	s, engine := newTestServer(t)
	h := s.Handler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ok", `{"userId":"u1","itemId":"i1","behaviorType":"LIKE","metadata":{"page":"home"}}`, http.StatusOK},
		{"missing user", `{"itemId":"i1","behaviorType":"view"}`, http.StatusBadRequest},
		{"missing type", `{"userId":"u1","itemId":"i1"}`, http.StatusBadRequest},
		{"bad type", `{"userId":"u1","itemId":"i1","behaviorType":"dislike"}`, http.StatusBadRequest},
		{"blank ids", `{"userId":"  ","itemId":"i1","behaviorType":"view"}`, http.StatusBadRequest},
		{"bad json", `{"userId":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/recommendation", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				if resp := decode[errorResponse](t, rec); resp.Success || resp.Error == "" {
					t.Errorf("error body = %+v", resp)
				}
			}
		})
	}

	if got := engine.Stats().TotalBehaviors; got != 1 {
		t.Errorf("TotalBehaviors = %d, want 1", got)
	}
	rec := do(t, h, http.MethodPost, "/api/recommendation", `{"userId":"u2","itemId":"i2","behaviorType":"share"}`)
	resp := decode[behaviorResponse](t, rec)
	if !resp.Success || resp.Behavior.Type != core.BehaviorShare || resp.Behavior.Timestamp == 0 {
		t.Errorf("response = %+v", resp)
	}
}

func TestRecommend(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	seed(t, h)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantType   string
		wantIDs    []string
	}{
		{"default hybrid", "/api/recommendation?userId=user1&limit=3", http.StatusOK, "hybrid", []string{"item2", "item1", "item3"}},
		{"popular", "/api/recommendation?type=popular&limit=2", http.StatusOK, "popular", []string{"item2", "item1"}},
		{"hybrid without user", "/api/recommendation?type=hybrid&limit=3", http.StatusOK, "hybrid", []string{"item2", "item1", "item3"}},
		{"exclude", "/api/recommendation?type=popular&excludeItemIds=item2,%20item3,", http.StatusOK, "popular", []string{"item1"}},
		{"user", "/api/recommendation?type=user&userId=user1&limit=1", http.StatusOK, "user", []string{"item3"}},
		{"item", "/api/recommendation?type=item&userId=user2&limit=1", http.StatusOK, "item", []string{"item2"}},
		{"min score", "/api/recommendation?type=popular&minScore=4", http.StatusOK, "popular", []string{"item2"}},
		{"user without id", "/api/recommendation?type=user", http.StatusBadRequest, "", nil},
		{"unknown type", "/api/recommendation?type=random", http.StatusBadRequest, "", nil},
		{"bad limit", "/api/recommendation?type=popular&limit=ten", http.StatusBadRequest, "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			resp := decode[recommendResponse](t, rec)
			if !resp.Success || resp.Type != tt.wantType || resp.Count != len(resp.Recommendations) {
				t.Errorf("response = %+v", resp)
			}
			if got := resp.Recommendations.ItemIDs(); strings.Join(got, ",") != strings.Join(tt.wantIDs, ",") {
				t.Errorf("items = %v, want %v", got, tt.wantIDs)
			}
		})
	}
}

func TestRecommend_EmptyListNotNull(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/recommendation?type=popular", "")
	if !strings.Contains(rec.Body.String(), `"recommendations":[]`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestStatsAndClear(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	seed(t, h)

	stats := decode[statsResponse](t, do(t, h, http.MethodGet, "/api/recommendation/stats", ""))
	if stats.Stats != (core.Stats{TotalBehaviors: 5, TotalUsers: 2, TotalItems: 3}) {
		t.Errorf("stats = %+v", stats.Stats)
	}

	if rec := do(t, h, http.MethodDelete, "/api/recommendation", ""); rec.Code != http.StatusOK {
		t.Fatalf("DELETE = %d", rec.Code)
	}
	stats = decode[statsResponse](t, do(t, h, http.MethodGet, "/api/recommendation/stats", ""))
	if stats.Stats != (core.Stats{}) {
		t.Errorf("stats after clear = %+v", stats.Stats)
	}
}

func TestPipelineEndpoint(t *testing.T) {
	engine, err := recommend.New()
	if err != nil {
		t.Fatalf("recommend.New: %v", err)
	}
	cfg, err := pipeline.ParseYAML([]byte(`
pipeline:
  name: top
  nodes:
    - type: recall.popular
    - type: filter
      config:
        filters:
          - type: exclude
    - type: rerank.sort
`))
	if err != nil {
		t.Fatalf("ParseYAML: %v", err)
	}
	p, err := cfg.BuildPipeline(config.DefaultFactory(config.Deps{Behaviors: engine.Tracker()}))
	if err != nil {
		t.Fatalf("BuildPipeline: %v", err)
	}
	h := New(engine, WithPipelines(map[string]*pipeline.Pipeline{"top": p})).Handler()
	seed(t, h)

	rec := do(t, h, http.MethodGet, "/api/pipelines/top?limit=2&excludeItemIds=item1", "")
	resp := decode[recommendResponse](t, rec)
	if got := strings.Join(resp.Recommendations.ItemIDs(), ","); got != "item2,item3" {
		t.Errorf("items = %s", got)
	}
	if rec := do(t, h, http.MethodGet, "/api/pipelines/missing", ""); rec.Code != http.StatusNotFound {
		t.Errorf("missing pipeline status = %d", rec.Code)
	}
}

func TestHealthMetricsAndRequestID(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Header().Get(RequestIDHeader) == "" {
		t.Errorf("healthz = %d, request id %q", rec.Code, rec.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want passthrough", got)
	}

	do(t, h, http.MethodGet, "/api/recommendation?type=popular", "")
	rec = do(t, h, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "reclite_api_requests_total") {
		t.Errorf("metrics missing api counter")
	}
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, WithConfig(Config{RateLimitRequests: 2, RateLimitWindow: time.Minute}))
	h := s.Handler()

	var codes []int
	for i := 0; i < 3; i++ {
		codes = append(codes, do(t, h, http.MethodGet, "/api/recommendation/stats", "").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
	if rec := do(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Errorf("healthz rate limited: %d", rec.Code)
	}
}

func TestPublishEvents(t *testing.T) {
	t.Run("stream disabled", func(t *testing.T) {
		srv, _ := newTestServer(t)
		rec := do(t, srv.Handler(), http.MethodPost, "/api/recommendation/events",
			`[{"userId":"u1","itemId":"i1","behaviorType":"view"}]`)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("consumer not running", func(t *testing.T) {
		pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
		defer pubSub.Close()
		collector := feedback.NewCollector(pubSub, "behaviors", feedback.WithReadyCheck(func() bool { return false }))
		srv, engine := newTestServer(t, WithCollector(collector))
		rec := do(t, srv.Handler(), http.MethodPost, "/api/recommendation/events",
			`[{"userId":"u1","itemId":"i1","behaviorType":"view"}]`)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
		if got := engine.Stats().TotalBehaviors; got != 0 {
			t.Errorf("TotalBehaviors = %d", got)
		}
	})

	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 8}, watermill.NopLogger{})
	defer pubSub.Close()
	msgs, err := pubSub.Subscribe(context.Background(), "behaviors")
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	srv, _ := newTestServer(t, WithCollector(feedback.NewCollector(pubSub, "behaviors")))

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"invalid json", `{"userId":`, http.StatusBadRequest},
		{"not an array", `{"userId":"u1"}`, http.StatusBadRequest},
		{"empty batch", `[]`, http.StatusBadRequest},
		{"accepted", `[{"userId":"u1","itemId":"i1","behaviorType":"view"},{"userId":"u2","itemId":"i1","behaviorType":"like"}]`, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv.Handler(), http.MethodPost, "/api/recommendation/events", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	for i := 0; i < 2; i++ {
		select {
		case msg := <-msgs:
			msg.Ack()
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not published", i)
		}
	}
}

func TestBlacklistEndpoints(t *testing.T) {
	engine, err := recommend.New(recommend.WithBlacklistStore(store.NewMemoryStore()))
	if err != nil {
		t.Fatalf("recommend.New: %v", err)
	}
	h := New(engine).Handler()
	seed(t, h)

	popular := func() string {
		t.Helper()
		resp := decode[recommendResponse](t, do(t, h, http.MethodGet, "/api/recommendation?type=popular", ""))
		return strings.Join(resp.Recommendations.ItemIDs(), ",")
	}
	if got := popular(); !strings.Contains(got, "item2") {
		t.Fatalf("popular before block = %s", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/blacklist/item2", ""); rec.Code != http.StatusOK {
		t.Fatalf("block status = %d %s", rec.Code, rec.Body.String())
	}
	if got := popular(); strings.Contains(got, "item2") {
		t.Errorf("popular after block = %s", got)
	}
	list := decode[blacklistResponse](t, do(t, h, http.MethodGet, "/api/blacklist", ""))
	if got := strings.Join(list.Items, ","); got != "item2" {
		t.Errorf("blacklist = %s", got)
	}

	if rec := do(t, h, http.MethodDelete, "/api/blacklist/item2", ""); rec.Code != http.StatusOK {
		t.Fatalf("unblock status = %d %s", rec.Code, rec.Body.String())
	}
	if got := popular(); !strings.Contains(got, "item2") {
		t.Errorf("popular after unblock = %s", got)
	}

	if rec := do(t, h, http.MethodPost, "/api/blacklist/%20", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("blank id status = %d, want 400", rec.Code)
	}

	t.Run("no store", func(t *testing.T) {
		srv, _ := newTestServer(t)
		if rec := do(t, srv.Handler(), http.MethodPost, "/api/blacklist/item2", ""); rec.Code != http.StatusNotImplemented {
			t.Errorf("status = %d, want 501", rec.Code)
		}
		list := decode[blacklistResponse](t, do(t, srv.Handler(), http.MethodGet, "/api/blacklist", ""))
		if len(list.Items) != 0 {
			t.Errorf("blacklist = %v", list.Items)
		}
	})
}
