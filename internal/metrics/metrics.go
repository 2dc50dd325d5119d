// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層とHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordSessionStarted()
	RecordSessionStopped(durationSeconds int64)
	RecordStopConflict()
	RecordInviteCodeAttempts(attempts int)
	RecordInviteCodeExhausted()
	RecordCompanyJoined()
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionsStarted    prometheus.Counter
	sessionsStopped    prometheus.Counter
	sessionDuration    prometheus.Histogram
	stopConflicts      prometheus.Counter
	inviteCodeAttempts prometheus.Histogram
	inviteCodeExhaust  prometheus.Counter
	companyJoins       prometheus.Counter
	httpStatus         *prometheus.CounterVec
	requestLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamtrack_sessions_started_total",
			Help: "開始された作業セッションの合計数",
		}),
		sessionsStopped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamtrack_sessions_stopped_total",
			Help: "終了した作業セッションの合計数",
		}),
		sessionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name: "teamtrack_session_duration_seconds",
			Help: "終了した作業セッションの作業時間（秒）",
			// 1分から12時間
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800, 43200},
		}),
		stopConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamtrack_session_stop_conflicts_total",
			Help: "終了済みセッションへの終了要求の合計数",
		}),
		inviteCodeAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "teamtrack_invite_code_attempts",
			Help:    "企業作成時に招待コード生成に要した試行回数",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		}),
		inviteCodeExhaust: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamtrack_invite_code_exhausted_total",
			Help: "招待コード生成が上限回数に達して失敗した合計数",
		}),
		companyJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamtrack_company_joins_total",
			Help: "企業への参加の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamtrack_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "teamtrack_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.sessionsStopped,
		c.sessionDuration,
		c.stopConflicts,
		c.inviteCodeAttempts,
		c.inviteCodeExhaust,
		c.companyJoins,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordSessionStarted はセッション開始を記録する。
func (c *Collector) RecordSessionStarted() {
	c.sessionsStarted.Inc()
}

// RecordSessionStopped はセッション終了と作業時間を記録する。
func (c *Collector) RecordSessionStopped(durationSeconds int64) {
	c.sessionsStopped.Inc()
	c.sessionDuration.Observe(float64(durationSeconds))
}

// RecordStopConflict は終了済みセッションへの終了要求を記録する。
func (c *Collector) RecordStopConflict() {
	c.stopConflicts.Inc()
}

// RecordInviteCodeAttempts は招待コード生成の試行回数を記録する。
func (c *Collector) RecordInviteCodeAttempts(attempts int) {
	c.inviteCodeAttempts.Observe(float64(attempts))
}

// RecordInviteCodeExhausted は招待コード生成の失敗を記録する。
func (c *Collector) RecordInviteCodeExhausted() {
	c.inviteCodeExhaust.Inc()
}

// RecordCompanyJoined は企業への参加を記録する。
func (c *Collector) RecordCompanyJoined() {
	c.companyJoins.Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。テストで使用する。
type Nop struct{}

func (Nop) RecordSessionStarted() {}
func (Nop) RecordSessionStopped(int64) {}
func (Nop) RecordStopConflict() {}
func (Nop) RecordInviteCodeAttempts(int) {}
func (Nop) RecordInviteCodeExhausted() {}
func (Nop) RecordCompanyJoined() {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordRequestLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
