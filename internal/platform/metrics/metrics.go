package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chronos"

// Metrics はアプリケーションの Prometheus メトリクスを保持します。
// nil の *Metrics に対する記録は何もしません。
type Metrics struct {
	gatherer prometheus.Gatherer

	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	TimeRecordsCreated *prometheus.CounterVec
	CardsCreated       prometheus.Counter
	CardConflicts      prometheus.Counter
}

// New は reg にメトリクスを登録します。reg が nil の場合は新しいレジストリを使います。
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		gatherer: reg,
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route pattern and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		TimeRecordsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "time_records_created_total",
			Help:      "Total number of time records created by type",
		}, []string{"type"}),
		CardsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cards_created_total",
			Help:      "Total number of cards registered",
		}),
		CardConflicts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "card_conflicts_total",
			Help:      "Total number of card registrations rejected by assignment rules",
		}),
	}
}

// Handler は /metrics 用のハンドラを返します。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// ObserveRequest は HTTP リクエストの件数と所要時間を記録します。
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// IncTimeRecordCreated は種別ごとの打刻件数を加算します。
func (m *Metrics) IncTimeRecordCreated(recordType string) {
	if m == nil {
		return
	}
	m.TimeRecordsCreated.WithLabelValues(recordType).Inc()
}

// IncCardCreated はカード登録件数を加算します。
func (m *Metrics) IncCardCreated() {
	if m == nil {
		return
	}
	m.CardsCreated.Inc()
}

// IncCardConflict は割り当て規則で拒否されたカード登録件数を加算します。
func (m *Metrics) IncCardConflict() {
	if m == nil {
		return
	}
	m.CardConflicts.Inc()
}
