package metrics

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector 指标收集器
// 所有方法对 nil 接收者安全，测试中可直接传 nil
type MetricsCollector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 数据库指标
	dbConnectionsActive prometheus.Gauge
	dbConnectionsIdle   prometheus.Gauge

	// 订单指标
	ordersCreatedTotal  *prometheus.CounterVec
	orderFailuresTotal  *prometheus.CounterVec
	orderTransitions    *prometheus.CounterVec
	reservationsCreated prometheus.Counter
	reservationsReaped  prometheus.Counter

	// 支付核验指标
	verificationsTotal      *prometheus.CounterVec
	duplicateReferenceTotal *prometheus.CounterVec
	autoApprovalsTotal      *prometheus.CounterVec
	bankCallDuration        *prometheus.HistogramVec

	// 通知指标
	notificationsTotal *prometheus.CounterVec
}

// NewMetricsCollector 创建指标收集器并注册到 reg
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	f := promauto.With(reg)
	return &MetricsCollector{
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),

		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		dbConnectionsActive: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_active",
				Help: "Number of active database connections",
			},
		),

		dbConnectionsIdle: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "db_connections_idle",
				Help: "Number of idle database connections",
			},
		),

		ordersCreatedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orders_created_total",
				Help: "Orders created, by payment method",
			},
			[]string{"payment_method"},
		),

		orderFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_create_failures_total",
				Help: "Rejected or failed order creations, by reason",
			},
			[]string{"reason"},
		),

		orderTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "order_status_transitions_total",
				Help: "Order status transitions",
			},
			[]string{"from", "to"},
		),

		reservationsCreated: f.NewCounter(
			prometheus.CounterOpts{
				Name: "stock_reservations_created_total",
				Help: "Stock reservations created for deferred payments",
			},
		),

		reservationsReaped: f.NewCounter(
			prometheus.CounterOpts{
				Name: "stock_reservations_reaped_total",
				Help: "Expired stock reservations removed by the reaper",
			},
		),

		verificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pago_movil_verifications_total",
				Help: "Pago Movil verification attempts, by result",
			},
			[]string{"result"},
		),

		duplicateReferenceTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pago_movil_duplicate_reference_total",
				Help: "Duplicate reference rejections, by defense layer",
			},
			[]string{"layer"},
		),

		autoApprovalsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_auto_approvals_total",
				Help: "Recharge auto-approval decisions, by outcome",
			},
			[]string{"outcome"},
		),

		bankCallDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bank_verification_call_duration_seconds",
				Help:    "Latency of the bank verification API",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 20},
			},
			[]string{"outcome"},
		),

		notificationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_dispatched_total",
				Help: "Notifications handed to the dispatcher, by kind and status",
			},
			[]string{"kind", "status"},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *MetricsCollector) RecordHTTPRequest(method, endpoint string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// UpdateDBConnections 更新连接池指标
func (m *MetricsCollector) UpdateDBConnections(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.dbConnectionsActive.Set(float64(stats.InUse))
	m.dbConnectionsIdle.Set(float64(stats.Idle))
}

func (m *MetricsCollector) OrderCreated(paymentMethod string) {
	if m == nil {
		return
	}
	m.ordersCreatedTotal.WithLabelValues(paymentMethod).Inc()
}

func (m *MetricsCollector) OrderFailed(reason string) {
	if m == nil {
		return
	}
	m.orderFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *MetricsCollector) OrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *MetricsCollector) ReservationsCreated(n int) {
	if m == nil {
		return
	}
	m.reservationsCreated.Add(float64(n))
}

func (m *MetricsCollector) ReservationsReaped(n int64) {
	if m == nil {
		return
	}
	m.reservationsReaped.Add(float64(n))
}

func (m *MetricsCollector) Verification(result string) {
	if m == nil {
		return
	}
	m.verificationsTotal.WithLabelValues(result).Inc()
}

// DuplicateReference layer 为 precheck 或 constraint，仅内部可见
func (m *MetricsCollector) DuplicateReference(layer string) {
	if m == nil {
		return
	}
	m.duplicateReferenceTotal.WithLabelValues(layer).Inc()
}

func (m *MetricsCollector) AutoApproval(outcome string) {
	if m == nil {
		return
	}
	m.autoApprovalsTotal.WithLabelValues(outcome).Inc()
}

func (m *MetricsCollector) BankCall(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.bankCallDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *MetricsCollector) Notification(kind, status string) {
	if m == nil {
		return
	}
	m.notificationsTotal.WithLabelValues(kind, status).Inc()
}

// Middleware 记录每个请求的次数与耗时，endpoint 使用路由模板避免高基数
func (m *MetricsCollector) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}
