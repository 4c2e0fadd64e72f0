// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// セッション操作の種別ラベル。
const (
	SessionCreated = "created"
	SessionRenewed = "renewed"
	SessionEnded   = "ended"
)

// 予定の差分適用の種別ラベル。
const (
	ReconcileCreated  = "created"
	ReconcileUpdated  = "updated"
	ReconcileUnlinked = "unlinked"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordLogin(success bool)
	RecordSession(action string)
	RecordInviteRedeem(result string)
	RecordReconcile(op string, count int)
	RecordCalendarSubmitLatency(duration time.Duration)
	RecordOrphansDeleted(count int)
	RecordCleanupDeleted(kind string, count int64)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins         *prometheus.CounterVec
	sessions       *prometheus.CounterVec
	inviteRedeems  *prometheus.CounterVec
	reconciled     *prometheus.CounterVec
	submitLatency  prometheus.Histogram
	orphansDeleted prometheus.Counter
	cleanupDeleted *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamcal_logins_total",
			Help: "ログイン試行の合計数（結果別）",
		}, []string{"result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamcal_sessions_total",
			Help: "セッション操作の合計数（作成・延長・終了）",
		}, []string{"action"}),
		inviteRedeems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamcal_invite_redemptions_total",
			Help: "招待の償還試行の合計数（結果別）",
		}, []string{"result"}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamcal_events_reconciled_total",
			Help: "カレンダー更新で作成・更新・割り当て解除された予定の合計数",
		}, []string{"op"}),
		submitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "teamcal_calendar_submit_latency_seconds",
			Help:    "カレンダー更新のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		orphansDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamcal_orphan_events_deleted_total",
			Help: "割り当てのなくなった予定の削除数",
		}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamcal_cleanup_deleted_total",
			Help: "クリーンアップジョブで削除された行数（種別）",
		}, []string{"kind"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamcal_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.logins,
		c.sessions,
		c.inviteRedeems,
		c.reconciled,
		c.submitLatency,
		c.orphansDeleted,
		c.cleanupDeleted,
		c.httpStatus,
	)

	return c
}

// RecordLogin はログイン試行を記録する。
func (c *Collector) RecordLogin(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordSession はセッション操作を記録する。
func (c *Collector) RecordSession(action string) {
	c.sessions.WithLabelValues(action).Inc()
}

// RecordInviteRedeem は招待の償還結果を記録する。
func (c *Collector) RecordInviteRedeem(result string) {
	c.inviteRedeems.WithLabelValues(result).Inc()
}

// RecordReconcile は差分適用された予定数を記録する。
func (c *Collector) RecordReconcile(op string, count int) {
	if count <= 0 {
		return
	}
	c.reconciled.WithLabelValues(op).Add(float64(count))
}

// RecordCalendarSubmitLatency はカレンダー更新のレイテンシを記録する。
func (c *Collector) RecordCalendarSubmitLatency(duration time.Duration) {
	c.submitLatency.Observe(duration.Seconds())
}

// RecordOrphansDeleted は削除された孤立予定の数を記録する。
func (c *Collector) RecordOrphansDeleted(count int) {
	c.orphansDeleted.Add(float64(count))
}

// RecordCleanupDeleted はクリーンアップで削除された行数を記録する。
func (c *Collector) RecordCleanupDeleted(kind string, count int64) {
	c.cleanupDeleted.WithLabelValues(kind).Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// nopCollector は何も記録しないMetricsCollector。
type nopCollector struct{}

// Nop は何も記録しないMetricsCollectorを返す。
func Nop() MetricsCollector { return nopCollector{} }

func (nopCollector) RecordLogin(bool)                          {}
func (nopCollector) RecordSession(string)                      {}
func (nopCollector) RecordInviteRedeem(string)                 {}
func (nopCollector) RecordReconcile(string, int)               {}
func (nopCollector) RecordCalendarSubmitLatency(time.Duration) {}
func (nopCollector) RecordOrphansDeleted(int)                  {}
func (nopCollector) RecordCleanupDeleted(string, int64)        {}
func (nopCollector) RecordHTTPStatus(int)                      {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集中のエラーは500にせず、取得できたメトリクスだけを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = nopCollector{}
