package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jmx-collector/pkg/event"
	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/queryconfig"
	"github.com/jmx-collector/pkg/sink"
)

// ConnectionSource 按端点取得存活连接（connpool.Cache 实现）
type ConnectionSource interface {
	Get(ctx context.Context, server *jmx.Server) (jmx.Connection, error)
}

// Options PollCollector 依赖
type Options struct {
	Server      *jmx.Server
	QueryConfig *queryconfig.GLQueryConfig
	Label       string
	Conns       ConnectionSource
	Sink        sink.Sink
	Builder     *event.Builder
	Metrics     *PollMetrics
	Logger      *zap.Logger
}

// PollCollector 一个端点的轮询任务（实现 registers.Collector）。
// 每次 Collect：取连接 → 依次执行查询 → 组装事件 → 发布。
type PollCollector struct {
	name      string
	server    *jmx.Server
	queries   []jmx.Query
	decls     []*queryconfig.GLQuery
	queryType string
	label     string
	host      string

	conns     ConnectionSource
	sink      sink.Sink
	builder   *event.Builder
	processor *jmx.QueryProcessor
	metrics   *PollMetrics
	log       *zap.Logger
}

// NewPollCollector 创建端点采集器
func NewPollCollector(opts Options) *PollCollector {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	builder := opts.Builder
	if builder == nil {
		builder = event.NewBuilder()
	}

	name := opts.Server.Alias()
	if name == "" {
		if u, err := opts.Server.URL(); err == nil {
			name = u
		} else {
			name = opts.Server.String()
		}
	}

	c := &PollCollector{
		name:      "jmx-" + name,
		server:    opts.Server,
		queries:   opts.Server.Queries(),
		label:     opts.Label,
		conns:     opts.Conns,
		sink:      opts.Sink,
		builder:   builder,
		processor: jmx.NewQueryProcessor(log),
		metrics:   opts.Metrics,
		log:       log.With(zap.String("collector", "jmx-"+name)),
	}
	if opts.QueryConfig != nil {
		c.decls = opts.QueryConfig.Queries
		c.queryType = opts.QueryConfig.Type
	}
	return c
}

// Name 返回采集器名称
func (c *PollCollector) Name() string { return c.name }

// Schedule 端点自定义 cron 表达式（为空时使用固定间隔）
func (c *PollCollector) Schedule() string { return c.server.Schedule() }

// Init 解析事件中的 host，并检查查询与声明一一对应
func (c *PollCollector) Init() error {
	host, err := c.server.Host()
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	c.host = host
	if _, err := c.server.URL(); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}
	if len(c.queries) != len(c.decls) {
		return fmt.Errorf("%s: %d queries but %d query declarations", c.name, len(c.queries), len(c.decls))
	}
	if c.conns == nil || c.sink == nil {
		return errors.New(c.name + ": connection source and sink are required")
	}
	return nil
}

// Collect 执行一次轮询；ctx 取消后不会发布本轮事件
func (c *PollCollector) Collect(ctx context.Context) error {
	start := time.Now()
	defer func() {
		if c.metrics != nil {
			c.metrics.Duration.WithLabelValues(c.name).Observe(time.Since(start).Seconds())
		}
	}()

	// 1. 获取连接
	conn, err := c.conns.Get(ctx, c.server)
	if err != nil {
		c.fail(StageConnect)
		return fmt.Errorf("get connection: %w", err)
	}

	// 2. 执行全部查询（顺序合并）
	results, err := c.runQueries(ctx, conn)
	if err != nil {
		c.fail(StageQuery)
		return err
	}

	// 3. 组装事件
	ev := c.builder.Build(event.Envelope{Host: c.host, Label: c.label, Type: c.queryType}, results)
	payload, err := ev.Marshal()
	if err != nil {
		c.fail(StageEncode)
		return fmt.Errorf("encode event: %w", err)
	}

	// 4. 发布（被取消的轮询不发布）
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.sink.Publish(ctx, payload); err != nil {
		c.fail(StagePublish)
		return fmt.Errorf("publish event: %w", err)
	}

	if c.metrics != nil {
		c.metrics.Published.WithLabelValues(c.name).Inc()
		c.metrics.Results.WithLabelValues(c.name).Add(float64(countValues(results)))
	}
	c.log.Debug("event published", zap.Int("fields", len(ev)), zap.Duration("took", time.Since(start)))
	return nil
}

func (c *PollCollector) runQueries(ctx context.Context, conn jmx.Connection) ([]event.QueryResults, error) {
	out := make([]event.QueryResults, len(c.queries))
	run := func(ctx context.Context, i int) error {
		objs, err := c.processor.ProcessQuery(ctx, conn, c.queries[i])
		if err != nil {
			return fmt.Errorf("query %s: %w", c.queries[i].Object(), err)
		}
		out[i] = event.QueryResults{Query: c.decls[i], Objects: objs}
		return nil
	}

	if !c.server.IsQueriesMultiThreaded() {
		for i := range c.queries {
			if err := run(ctx, i); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.server.NumQueryThreads())
	for i := range c.queries {
		g.Go(func() error { return run(gctx, i) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *PollCollector) fail(stage string) {
	if c.metrics != nil {
		c.metrics.Errors.WithLabelValues(c.name, stage).Inc()
	}
}

func countValues(results []event.QueryResults) int {
	n := 0
	for _, qr := range results {
		for _, obj := range qr.Objects {
			for _, r := range obj.Results {
				n += len(r.Values)
			}
		}
	}
	return n
}

// Close 连接归连接缓存所有，这里无需释放
func (c *PollCollector) Close() error {
	return nil
}
