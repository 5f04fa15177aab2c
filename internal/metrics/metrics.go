// Package metrics expone los collectors Prometheus del servicio.
package metrics

import (
	"net/http"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec

	// Ingesta
	ingestItemsTotal   *prometheus.CounterVec
	authFailuresTotal  *prometheus.CounterVec
	rateLimitedTotal   *prometheus.CounterVec
	rateBackendErrors  prometheus.Counter
	usageRecordTotal   *prometheus.CounterVec
	batchSizeHistogram prometheus.Histogram
)

// Config agrupa dependencias para exponer /metrics.
type Config struct {
	Registry prometheus.Registerer
	// PgPool es opcional: si está, se exponen gauges del pool.
	PgPool func() *pgxpool.Pool
}

// Register inicializa las métricas y devuelve el handler para /metrics.
// Es seguro llamarlo más de una vez.
func Register(cfg Config) (http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		ingestItemsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caixa_ingest_items_total",
			Help: "Items de inbox procesados por endpoint y resultado",
		}, []string{"endpoint", "result"}) // result: stored|invalid|failed

		authFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caixa_auth_failures_total",
			Help: "Fallas de autenticación por tipo",
		}, []string{"kind"})

		rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caixa_rate_limited_total",
			Help: "Requests rechazadas por rate limit",
		}, []string{"class"})

		rateBackendErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "caixa_rate_backend_errors_total",
			Help: "Errores del backend del rate limiter (fail open)",
		})

		usageRecordTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "caixa_usage_record_total",
			Help: "Registros de último uso por resultado",
		}, []string{"result"}) // ok|error|dropped

		batchSizeHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "caixa_batch_size",
			Help:    "Cantidad de items por request batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		})

		for _, c := range []prometheus.Collector{
			httpRequestsTotal, httpRequestDuration, httpInflight,
			ingestItemsTotal, authFailuresTotal, rateLimitedTotal, rateBackendErrors,
			usageRecordTotal, batchSizeHistogram,
		} {
			if err := registerCollector(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	if cfg.PgPool != nil {
		if err := registerCollector(registry, newPoolCollector(cfg.PgPool)); err != nil {
			return nil, err
		}
	}

	// Usamos el gatherer global por compatibilidad, ya que las métricas se registran allí.
	return promhttp.Handler(), nil
}

// registerCollector registra el collector en el registry indicado, ignorando duplicados.
func registerCollector(reg prometheus.Registerer, collector prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}

// Resultados de ingesta por item.
const (
	ItemStored  = "stored"
	ItemInvalid = "invalid"
	ItemFailed  = "failed"
)

func RecordIngestItem(endpoint, result string) {
	if ingestItemsTotal != nil {
		ingestItemsTotal.WithLabelValues(endpoint, result).Inc()
	}
}

func RecordAuthFailure(kind string) {
	if authFailuresTotal != nil {
		authFailuresTotal.WithLabelValues(kind).Inc()
	}
}

func RecordRateLimited(class string) {
	if rateLimitedTotal != nil {
		rateLimitedTotal.WithLabelValues(class).Inc()
	}
}

func RecordRateBackendError() {
	if rateBackendErrors != nil {
		rateBackendErrors.Inc()
	}
}

// RecordUsage tiene la firma de usage.Observer.
func RecordUsage(result string) {
	if usageRecordTotal != nil {
		usageRecordTotal.WithLabelValues(result).Inc()
	}
}

func ObserveBatchSize(n int) {
	if batchSizeHistogram != nil {
		batchSizeHistogram.Observe(float64(n))
	}
}

// poolCollector expone gauges del pool de PostgreSQL.
type poolCollector struct {
	pool func() *pgxpool.Pool

	acquiredDesc *prometheus.Desc
	idleDesc     *prometheus.Desc
	totalDesc    *prometheus.Desc
}

func newPoolCollector(pool func() *pgxpool.Pool) *poolCollector {
	return &poolCollector{
		pool:         pool,
		acquiredDesc: prometheus.NewDesc("pg_pool_acquired", "Conexiones adquiridas", nil, nil),
		idleDesc:     prometheus.NewDesc("pg_pool_idle", "Conexiones inactivas", nil, nil),
		totalDesc:    prometheus.NewDesc("pg_pool_total", "Conexiones totales", nil, nil),
	}
}

func (c *poolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.acquiredDesc
	ch <- c.idleDesc
	ch <- c.totalDesc
}

func (c *poolCollector) Collect(ch chan<- prometheus.Metric) {
	p := c.pool()
	if p == nil {
		return
	}
	stat := p.Stat()
	ch <- prometheus.MustNewConstMetric(c.acquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.idleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.totalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
}
