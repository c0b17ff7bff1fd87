package connpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/jmx-collector/pkg/jmx"
)

// ErrClosed 缓存已关闭
var ErrClosed = errors.New("connection cache closed")

// Hooks 连接生命周期回调（用于自监控指标），均可为 nil
type Hooks struct {
	OnCreate func(provider string)
	OnEvict  func(provider string)
}

// Cache 按端点 URL 缓存存活连接。
// 同一个 key 的"探测-创建"是原子的：并发调用者不会为同一端点各自建立连接。
type Cache struct {
	providers map[string]jmx.Dialer
	log       *zap.Logger
	hooks     Hooks

	entries sync.Map // url -> *entry
	closed  atomic.Bool
}

type entry struct {
	mu   sync.Mutex
	conn jmx.Connection
}

// Option Cache 配置项
type Option func(*Cache)

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithHooks 指定生命周期回调
func WithHooks(h Hooks) Option {
	return func(c *Cache) { c.hooks = h }
}

// WithProvider 注册一个协议提供者
func WithProvider(name string, d jmx.Dialer) Option {
	return func(c *Cache) { c.providers[name] = d }
}

// New 创建连接缓存
func New(opts ...Option) *Cache {
	c := &Cache{
		providers: make(map[string]jmx.Dialer),
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 返回 server 的存活连接：缓存命中且探测成功则复用，否则关闭旧连接并重新建立。
// 网络调用期间只持有该 key 的锁，不阻塞 Close。
func (c *Cache) Get(ctx context.Context, server *jmx.Server) (jmx.Connection, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	key, err := server.URL()
	if err != nil {
		return nil, err
	}
	provider := server.ProtocolProvider()
	dialer, ok := c.providers[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", jmx.ErrUnknownProvider, provider)
	}

	v, _ := c.entries.LoadOrStore(key, &entry{})
	e := v.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	conn, err := c.acquire(ctx, e, dialer, server, provider, key)
	if err != nil {
		return nil, err
	}
	// 网络调用期间缓存被关闭：释放连接
	if c.closed.Load() {
		c.release(e, key)
		return nil, ErrClosed
	}
	return conn, nil
}

func (c *Cache) acquire(ctx context.Context, e *entry, dialer jmx.Dialer, server *jmx.Server, provider, key string) (jmx.Connection, error) {
	if e.conn != nil {
		perr := e.conn.Ping(ctx)
		if perr == nil {
			return e.conn, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.log.Warn("cached connection failed probe, recreating",
			zap.String("url", key), zap.Error(perr))
		c.evict(e, provider, key)
	}

	conn, err := dialer.Dial(ctx, server)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", key, err)
	}
	e.conn = conn
	c.log.Debug("connection created", zap.String("url", key), zap.String("provider", provider))
	if c.hooks.OnCreate != nil {
		c.hooks.OnCreate(provider)
	}
	return conn, nil
}

// release 关闭并清空 entry 中的连接，调用方持有 e.mu
func (c *Cache) release(e *entry, key string) error {
	if e.conn == nil {
		return nil
	}
	err := e.conn.Close()
	e.conn = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", key, err)
	}
	return nil
}

func (c *Cache) evict(e *entry, provider, key string) {
	if err := e.conn.Close(); err != nil {
		c.log.Debug("close stale connection", zap.String("url", key), zap.Error(err))
	}
	e.conn = nil
	if c.hooks.OnEvict != nil {
		c.hooks.OnEvict(provider)
	}
}

// Len 当前持有的连接数
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if e.conn != nil {
			n++
		}
		e.mu.Unlock()
		return true
	})
	return n
}

// releaseLater 等待进行中的探测或建连结束后释放连接
func (c *Cache) releaseLater(e *entry, key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := c.release(e, key); err != nil {
		c.log.Debug("close connection after shutdown", zap.String("url", key), zap.Error(err))
	}
}

// Close 关闭全部连接，之后的 Get 返回 ErrClosed。
// 正在建立或探测的连接由持有者在网络调用结束后释放，Close 不等待。
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	var errs []error
	c.entries.Range(func(k, v any) bool {
		e := v.(*entry)
		key := k.(string)
		if !e.mu.TryLock() {
			go c.releaseLater(e, key)
			return true
		}
		if err := c.release(e, key); err != nil {
			errs = append(errs, err)
		}
		e.mu.Unlock()
		c.entries.Delete(k)
		return true
	})
	return errors.Join(errs...)
}
