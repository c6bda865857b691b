package database

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// poolMetric describes one exported pgxpool statistic.
type poolMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	value     func(*pgxpool.Stat) float64
}

// PoolStatsCollector exports pgxpool statistics as Prometheus metrics.
type PoolStatsCollector struct {
	stat    func() *pgxpool.Stat
	service string
	metrics []poolMetric
}

func newPoolMetric(name, help string, vt prometheus.ValueType, fn func(*pgxpool.Stat) float64) poolMetric {
	return poolMetric{
		desc:      prometheus.NewDesc(name, help, []string{"service"}, nil),
		valueType: vt,
		value:     fn,
	}
}

// NewPoolStatsCollector builds a collector reading pool.Stat() on each scrape.
func NewPoolStatsCollector(pool *pgxpool.Pool, service string) *PoolStatsCollector {
	c := &PoolStatsCollector{service: service}
	if pool != nil {
		c.stat = pool.Stat
	}

	gauge, counter := prometheus.GaugeValue, prometheus.CounterValue
	c.metrics = []poolMetric{
		newPoolMetric("db_pool_acquired_connections", "Connections currently checked out of the pool", gauge,
			func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }),
		newPoolMetric("db_pool_idle_connections", "Idle connections in the pool", gauge,
			func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }),
		newPoolMetric("db_pool_total_connections", "Total connections in the pool", gauge,
			func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }),
		newPoolMetric("db_pool_max_connections", "Configured pool size limit", gauge,
			func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }),
		newPoolMetric("db_pool_acquire_count_total", "Successful connection acquires", counter,
			func(s *pgxpool.Stat) float64 { return float64(s.AcquireCount()) }),
		newPoolMetric("db_pool_acquire_duration_seconds_total", "Time spent waiting for connections", counter,
			func(s *pgxpool.Stat) float64 { return s.AcquireDuration().Seconds() }),
		newPoolMetric("db_pool_empty_acquire_count_total", "Acquires that waited because the pool was empty", counter,
			func(s *pgxpool.Stat) float64 { return float64(s.EmptyAcquireCount()) }),
		newPoolMetric("db_pool_canceled_acquire_count_total", "Acquires canceled by their context", counter,
			func(s *pgxpool.Stat) float64 { return float64(s.CanceledAcquireCount()) }),
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *PoolStatsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.metrics {
		ch <- m.desc
	}
}

// Collect implements prometheus.Collector.
func (c *PoolStatsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.stat == nil {
		return
	}
	s := c.stat()
	for _, m := range c.metrics {
		ch <- prometheus.MustNewConstMetric(m.desc, m.valueType, m.value(s), c.service)
	}
}

// RegisterPoolMetrics registers a PoolStatsCollector on reg.
func RegisterPoolMetrics(reg prometheus.Registerer, pool *pgxpool.Pool, service string) error {
	return reg.Register(NewPoolStatsCollector(pool, service))
}
