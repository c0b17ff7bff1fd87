package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "jmx"

// MetricFactory 统一创建并注册自监控指标
type MetricFactory struct {
	reg Registers
}

// NewMetricFactory 创建指标工厂
func NewMetricFactory(reg Registers) *MetricFactory {
	return &MetricFactory{reg: reg}
}

// NewPollDurationSeconds 每个端点一次轮询（连接+查询+发布）的耗时分布
func (m *MetricFactory) NewPollDurationSeconds() *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Duration of one poll cycle per server",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 0.01s ~ 20s
	}, []string{"server"})
	m.reg.MustRegister(h)
	return h
}

// NewPollErrorsTotal 轮询失败次数
// stage: connect / query / encode / publish
func (m *MetricFactory) NewPollErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_errors_total",
		Help:      "Total failed poll cycles by stage",
	}, []string{"server", "stage"})
	m.reg.MustRegister(c)
	return c
}

// NewEventsPublishedTotal 成功发布的事件数
func (m *MetricFactory) NewEventsPublishedTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Total events handed to the sink",
	}, []string{"server"})
	m.reg.MustRegister(c)
	return c
}

// NewResultsTotal 展平后的结果条数
func (m *MetricFactory) NewResultsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "flattened_results_total",
		Help:      "Total flattened attribute values collected",
	}, []string{"server"})
	m.reg.MustRegister(c)
	return c
}

// NewConnectionsCreatedTotal 新建连接数（含探测失败后的重建）
func (m *MetricFactory) NewConnectionsCreatedTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_created_total",
		Help:      "Total connections opened per protocol provider",
	}, []string{"provider"})
	m.reg.MustRegister(c)
	return c
}

// NewConnectionsEvictedTotal 探测失败被丢弃的连接数
func (m *MetricFactory) NewConnectionsEvictedTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "connections_evicted_total",
		Help:      "Total cached connections dropped after a failed probe",
	}, []string{"provider"})
	m.reg.MustRegister(c)
	return c
}

// NewScheduledServers 当前调度中的端点数
func (m *MetricFactory) NewScheduledServers() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scheduled_servers",
		Help:      "Number of servers with an active poll task",
	})
	m.reg.MustRegister(g)
	return g
}
