package registers

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jmx-collector/pkg/collector"
	"github.com/jmx-collector/pkg/config"
	"github.com/jmx-collector/pkg/connpool"
	"github.com/jmx-collector/pkg/event"
	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/jmx/jolokia"
	"github.com/jmx-collector/pkg/jmx/local"
	"github.com/jmx-collector/pkg/metrics"
	"github.com/jmx-collector/pkg/queryconfig"
	"github.com/jmx-collector/pkg/sink"
)

type Module struct {
	Enabled bool
	Name    string
	NewFunc func() Collector
}

// InitPromRegistry 返回值
// promReg	*prometheus.Registry	Prometheus 指标注册器，供 /metrics 暴露
// agent	Agent	                调度器，每个端点一个周期任务
// error	                        查询文件、端点或输出配置非法时返回，此时不会启动任何任务
func InitPromRegistry(ctx context.Context, cfg *config.Config, log *zap.Logger) (*prometheus.Registry, Agent, error) {
	if log == nil {
		log = zap.NewNop()
	}

	// 1. 查询定义只读取一次，失败则整体不启动
	qc, err := queryconfig.Load(cfg.Monitor.Type, cfg.Monitor.CustomFilePath)
	if err != nil {
		return nil, nil, err
	}
	servers, err := BuildServers(&cfg.Monitor, qc)
	if err != nil {
		return nil, nil, err
	}

	// 2. 自监控指标
	promReg := metrics.NewRegistry(cfg.Server.EnableProcess)
	metricFactory := metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))
	pollMetrics := collector.NewPollMetrics(metricFactory)

	// 3. 连接缓存与协议提供者
	cache, err := NewConnectionCache(cfg.Monitor.Provider, metricFactory, log)
	if err != nil {
		return nil, nil, err
	}

	// 4. 事件输出（所有端点共用，串行发布）
	out, err := OpenSink(cfg.Sink, log)
	if err != nil {
		_ = cache.Close()
		return nil, nil, err
	}

	agent := NewScheduler(cfg.Monitor.Period(),
		WithMaxJitter(cfg.Monitor.MaxJitter),
		WithMaxConcurrent(cfg.Monitor.MaxConcurrentPolls),
		WithLogger(log.Named("scheduler")),
		WithScheduledGauge(metricFactory.NewScheduledServers()),
		OnShutdown(cache.Close),
		OnShutdown(out.Close),
	)

	builder := event.NewBuilder()
	modules := make([]Module, 0, len(servers))
	for _, server := range servers {
		modules = append(modules, Module{
			Enabled: true,
			Name:    server.String(),
			NewFunc: func() Collector {
				return collector.NewPollCollector(collector.Options{
					Server:      server,
					QueryConfig: qc,
					Label:       cfg.Monitor.Label,
					Conns:       cache,
					Sink:        out,
					Builder:     builder,
					Metrics:     &pollMetrics,
					Logger:      log,
				})
			},
		})
	}

	registered, err := RegisterCollectors(agent, modules, log)
	if err == nil {
		err = agent.Start(ctx)
	}
	if err != nil {
		_ = cache.Close()
		_ = out.Close()
		return nil, nil, err
	}

	log.Info("jmx collector started",
		zap.String("type", qc.Type),
		zap.Int("servers", len(registered)),
		zap.Duration("interval", cfg.Monitor.Period()))
	return promReg, agent, nil
}

// RegisterCollectors 采集器注册统一入口，返回所有已注册采集器
func RegisterCollectors(agent Agent, modules []Module, log *zap.Logger) ([]Collector, error) {
	var registered []Collector
	for _, m := range modules {
		if !m.Enabled {
			log.Debug("collector disabled", zap.String("name", m.Name))
			continue
		}
		c := m.NewFunc()
		agent.Register(c)
		registered = append(registered, c)
		log.Debug("registered collector", zap.String("name", m.Name))
	}
	if len(registered) == 0 {
		return nil, fmt.Errorf("no collectors enabled; check monitor.hosts")
	}

	names := make([]string, 0, len(registered))
	for _, c := range registered {
		names = append(names, c.Name())
	}
	log.Debug("all enabled collectors registered", zap.Strings("enabled_collectors", names))
	return registered, nil
}

// BuildServers 每个 host 一个端点，共享端口、凭据与查询
func BuildServers(m *config.MonitorConfig, qc *queryconfig.GLQueryConfig) ([]*jmx.Server, error) {
	hosts := m.Hosts
	if len(hosts) == 0 && m.Provider == jmx.ProviderLocal {
		h, err := os.Hostname()
		if err != nil {
			h = "localhost"
		}
		hosts = []string{h}
	}
	if len(hosts) == 0 && m.URL != "" {
		hosts = []string{""}
	}
	if m.URL != "" && len(hosts) > 1 {
		return nil, fmt.Errorf("monitor.url can only be used with a single host, got %d hosts", len(hosts))
	}

	port := m.Port
	if port == "" && m.Provider == jmx.ProviderLocal {
		port = "0"
	}

	servers := make([]*jmx.Server, 0, len(hosts))
	for _, h := range hosts {
		server := jmx.NewServerBuilder().
			Host(strings.TrimSpace(h)).
			Port(port).
			URL(m.URL).
			Username(m.Username).
			Password(m.Password).
			ProtocolProvider(m.Provider).
			ProxyURL(m.ProxyURL).
			TrustStore(m.TrustStorePath, m.TrustStorePass).
			NumQueryThreads(m.NumQueryThreads).
			Schedule(m.Schedule).
			AddQuery(qc.JMXQueries()...).
			Build()
		if _, err := server.URL(); err != nil {
			return nil, fmt.Errorf("server %q: %w", h, err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

// NewConnectionCache 注册协议提供者；local 提供者按需创建进程内注册表
func NewConnectionCache(provider string, f *metrics.MetricFactory, log *zap.Logger) (*connpool.Cache, error) {
	created := f.NewConnectionsCreatedTotal()
	evicted := f.NewConnectionsEvictedTotal()

	jolokiaDialer := jolokia.NewDialer(jolokia.WithLogger(log.Named("jolokia")))
	opts := []connpool.Option{
		connpool.WithLogger(log.Named("connpool")),
		connpool.WithHooks(connpool.Hooks{
			OnCreate: func(p string) { created.WithLabelValues(p).Inc() },
			OnEvict:  func(p string) { evicted.WithLabelValues(p).Inc() },
		}),
		connpool.WithProvider(jmx.ProviderJolokia, jolokiaDialer),
		connpool.WithProvider(jmx.ProviderJolokiaProxy, jolokiaDialer),
	}

	if provider == jmx.ProviderLocal {
		mbeans := local.NewServer()
		if err := local.RegisterPlatform(mbeans); err != nil {
			return nil, fmt.Errorf("register platform mbeans: %w", err)
		}
		opts = append(opts, connpool.WithProvider(jmx.ProviderLocal, mbeans.Dialer()))
	}
	return connpool.New(opts...), nil
}

// OpenSink 按 sink.type 打开事件输出
func OpenSink(cfg config.SinkConfig, log *zap.Logger) (sink.Sink, error) {
	var (
		s   sink.Sink
		err error
	)
	switch cfg.Type {
	case "", "stdout":
		s = sink.Stdout()
	case "file":
		s, err = sink.OpenFile(cfg.Path)
	case "nats":
		s, err = sink.ConnectNATS(sink.NATSConfig{
			URL:          cfg.NATS.URL,
			Subject:      cfg.NATS.Subject,
			Name:         cfg.NATS.Name,
			Token:        cfg.NATS.Token,
			User:         cfg.NATS.User,
			Password:     cfg.NATS.Password,
			FlushTimeout: cfg.NATS.FlushTimeout,
		}, log.Named("sink"))
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return sink.Serialize(s), nil
}
