package collector

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jmx-collector/pkg/metrics"
)

// 轮询阶段（poll_errors_total 的 stage 标签）
const (
	StageConnect = "connect"
	StageQuery   = "query"
	StageEncode  = "encode"
	StagePublish = "publish"
)

// PollMetrics 所有端点共享的轮询指标，只能创建一次
type PollMetrics struct {
	Duration  *prometheus.HistogramVec // 单次轮询耗时
	Errors    *prometheus.CounterVec   // 失败次数（按阶段）
	Published *prometheus.CounterVec   // 已发布事件
	Results   *prometheus.CounterVec   // 展平结果条数
}

// NewPollMetrics 通过工厂注册轮询指标
func NewPollMetrics(f *metrics.MetricFactory) PollMetrics {
	return PollMetrics{
		Duration:  f.NewPollDurationSeconds(),
		Errors:    f.NewPollErrorsTotal(),
		Published: f.NewEventsPublishedTotal(),
		Results:   f.NewResultsTotal(),
	}
}
