// Package metrics 定义进程内 Prometheus 指标。
//
// 指标通过 promauto 注册到默认 Registry，由 server 的 /metrics 暴露。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 行为写入
	BehaviorsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclite_behaviors_ingested_total",
			Help: "Total number of behaviors accepted into the store",
		},
		[]string{"behavior_type"},
	)

	BehaviorsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclite_behaviors_rejected_total",
			Help: "Total number of behaviors rejected at ingestion",
		},
		[]string{"source", "reason"}, // source: api / stream / direct
	)

	// 行为存储规模
	StoreBehaviors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reclite_store_behaviors",
			Help: "Current number of behaviors in the store",
		},
	)

	StoreUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reclite_store_users",
			Help: "Current number of distinct users in the store",
		},
	)

	StoreItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reclite_store_items",
			Help: "Current number of distinct items in the store",
		},
	)

	// 推荐
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclite_recommendations_total",
			Help: "Total number of recommendation requests by strategy",
		},
		[]string{"strategy"},
	)

	RecommendationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reclite_recommendation_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	RecommendationResults = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reclite_recommendation_results",
			Help:    "Number of results returned per recommendation request",
			Buckets: []float64{0, 1, 5, 10, 20, 50, 100},
		},
		[]string{"strategy"},
	)

	RecommendationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclite_recommendation_fallbacks_total",
			Help: "Total number of personalized requests that fell back to popularity",
		},
		[]string{"strategy"},
	)

	// HTTP
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclite_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reclite_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// 事件流
	StreamMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reclite_stream_messages_total",
			Help: "Total number of behavior messages consumed from the stream",
		},
		[]string{"result"}, // accepted / rejected / malformed
	)
)

// RecordIngest 记录一次成功写入的行为。
func RecordIngest(behaviorType string) {
	BehaviorsIngested.WithLabelValues(behaviorType).Inc()
}

// RecordReject 记录一次被拒绝的行为。
func RecordReject(source, reason string) {
	BehaviorsRejected.WithLabelValues(source, reason).Inc()
}

// UpdateStoreGauges 刷新存储规模指标。
func UpdateStoreGauges(behaviors, users, items int) {
	StoreBehaviors.Set(float64(behaviors))
	StoreUsers.Set(float64(users))
	StoreItems.Set(float64(items))
}

// RecordRecommendation 记录一次推荐请求。
func RecordRecommendation(strategy string, results int, duration time.Duration) {
	RecommendationsTotal.WithLabelValues(strategy).Inc()
	RecommendationDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	RecommendationResults.WithLabelValues(strategy).Observe(float64(results))
}

// RecordFallback 记录个性化策略回退到热门。
func RecordFallback(strategy string) {
	RecommendationFallbacks.WithLabelValues(strategy).Inc()
}

// RecordAPIRequest 记录一次 HTTP 请求。
func RecordAPIRequest(method, endpoint, status string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStreamMessage 记录一条事件流消息的处理结果。
func RecordStreamMessage(result string) {
	StreamMessagesTotal.WithLabelValues(result).Inc()
}
