package registers

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultMaxJitter 首次采集的最大随机延迟
const DefaultMaxJitter = 60 * time.Second

var (
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrNoCollectors   = errors.New("no collectors registered")
)

// 支持可选秒字段与 @every/@hourly 等描述符
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule 解析端点 cron 表达式
func ParseSchedule(expr string) (cron.Schedule, error) {
	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return s, nil
}

// SchedulerOption 调度器选项
type SchedulerOption func(*Scheduler)

// WithMaxJitter 首次采集随机延迟上限（0 表示立即开始）
func WithMaxJitter(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.maxJitter = d }
}

// WithJitter 替换随机延迟函数（测试用）
func WithJitter(f func(max time.Duration) time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.jitter = f }
}

// WithMaxConcurrent 同时进行的轮询数上限（0 表示每个采集器一个名额）
func WithMaxConcurrent(n int) SchedulerOption {
	return func(s *Scheduler) { s.maxConcurrent = n }
}

func WithLogger(l *zap.Logger) SchedulerOption {
	return func(s *Scheduler) { s.log = l }
}

// WithScheduledGauge 当前运行的周期任务数
func WithScheduledGauge(g prometheus.Gauge) SchedulerOption {
	return func(s *Scheduler) { s.scheduled = g }
}

// OnShutdown 采集器关闭之后执行（如关闭连接缓存、事件输出）
func OnShutdown(f func() error) SchedulerOption {
	return func(s *Scheduler) { s.hooks = append(s.hooks, f) }
}

// Scheduler 实现 Agent：每个采集器一个周期任务，任务之间互不影响
type Scheduler struct {
	interval      time.Duration
	maxJitter     time.Duration
	maxConcurrent int
	jitter        func(max time.Duration) time.Duration
	log           *zap.Logger
	scheduled     prometheus.Gauge
	hooks         []func() error

	mu         sync.Mutex
	collectors []Collector
	started    bool
	stopped    bool
	cancel     context.CancelFunc
	slots      chan struct{}
	wg         sync.WaitGroup
}

// NewScheduler 创建调度器，interval 为固定采集周期
func NewScheduler(interval time.Duration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		interval:  interval,
		maxJitter: DefaultMaxJitter,
		jitter:    randomJitter,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}

// Register 注册采集器
func (s *Scheduler) Register(c Collector) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collectors = append(s.collectors, c)
}

// Collectors 返回已注册采集器的副本
func (s *Scheduler) Collectors() []Collector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Collector(nil), s.collectors...)
}

// Running 调度中的采集器名称（未启动或已关闭时为空）
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopped {
		return nil
	}
	names := make([]string, 0, len(s.collectors))
	for _, c := range s.collectors {
		names = append(names, c.Name())
	}
	return names
}

// InitAll 任一采集器初始化失败即返回
func (s *Scheduler) InitAll() error {
	for _, c := range s.collectors {
		if err := c.Init(); err != nil {
			return fmt.Errorf("collector init failed: %w", err)
		}
		s.log.Debug("collector initialized successfully", zap.String("name", c.Name()))
	}
	return nil
}

// Start 初始化所有采集器并启动周期任务。
// 初始化或 cron 解析失败时不会启动任何任务。
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if len(s.collectors) == 0 {
		return ErrNoCollectors
	}
	if err := s.InitAll(); err != nil {
		return err
	}

	schedules := make([]cron.Schedule, len(s.collectors))
	for i, c := range s.collectors {
		sc, ok := c.(Scheduled)
		if !ok || sc.Schedule() == "" {
			continue
		}
		parsed, err := ParseSchedule(sc.Schedule())
		if err != nil {
			return fmt.Errorf("%s: %w", c.Name(), err)
		}
		schedules[i] = parsed
	}
	if s.interval <= 0 {
		for i, c := range s.collectors {
			if schedules[i] == nil {
				return fmt.Errorf("%s: interval must be positive, got %s", c.Name(), s.interval)
			}
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	slots := len(s.collectors)
	if s.maxConcurrent > 0 && s.maxConcurrent < slots {
		slots = s.maxConcurrent
	}
	s.slots = make(chan struct{}, slots)
	s.started = true

	// 所有端点共用同一个随机延迟
	delay := s.jitter(s.maxJitter)
	for i, c := range s.collectors {
		s.wg.Add(1)
		go s.run(runCtx, c, schedules[i], delay)
	}
	if s.scheduled != nil {
		s.scheduled.Set(float64(len(s.collectors)))
	}

	s.log.Info("collector scheduler started",
		zap.Int("collectors", len(s.collectors)),
		zap.Int("slots", cap(s.slots)),
		zap.Duration("interval", s.interval),
		zap.Duration("initial_delay", delay))
	return nil
}

func (s *Scheduler) run(ctx context.Context, c Collector, sched cron.Schedule, delay time.Duration) {
	defer s.wg.Done()

	if !sleep(ctx, delay) {
		return
	}

	// cron 调度：每次计算下一次触发时间
	if sched != nil {
		for {
			s.tick(ctx, c)
			if !sleep(ctx, time.Until(sched.Next(time.Now()))) {
				return
			}
		}
	}

	// 固定周期：上一轮超时的触发会被合并
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.tick(ctx, c)
	for {
		select {
		case <-ticker.C:
			s.tick(ctx, c)
		case <-ctx.Done():
			s.log.Debug("collector task stopped", zap.String("server", c.Name()))
			return
		}
	}
}

// tick 单次轮询：错误与 panic 只记录，不影响后续轮询
func (s *Scheduler) tick(ctx context.Context, c Collector) {
	select {
	case s.slots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-s.slots }()

	defer func() {
		if r := recover(); r != nil {
			s.log.Error("collector panicked",
				zap.String("server", c.Name()),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
		}
	}()

	if err := c.Collect(ctx); err != nil {
		if ctx.Err() != nil {
			s.log.Debug("poll cancelled", zap.String("server", c.Name()), zap.Error(err))
			return
		}
		s.log.Error("poll failed", zap.String("server", c.Name()), zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// Shutdown 取消所有任务，在 ctx 期限内等待进行中的轮询结束，
// 然后关闭采集器并执行 OnShutdown 钩子
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.stopped = true
	s.mu.Unlock()

	s.log.Info("starting to shutdown collector scheduler")
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("wait for in-flight polls: %w", ctx.Err()))
	}
	if s.scheduled != nil {
		s.scheduled.Set(0)
	}

	if err := s.CloseAll(); err != nil {
		errs = append(errs, err)
	}
	for _, h := range s.hooks {
		if err := h(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CloseAll 关闭全部采集器，单个失败不阻断整体
func (s *Scheduler) CloseAll() error {
	var errs []error
	for _, c := range s.Collectors() {
		if err := c.Close(); err != nil {
			s.log.Error("failed to close collector", zap.String("name", c.Name()), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
