package local

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/objectname"
)

var (
	// ErrAlreadyRegistered 同名对象已注册
	ErrAlreadyRegistered = errors.New("instance already exists")
	// ErrClosed 连接已关闭
	ErrClosed = errors.New("connection closed")
)

// MBean 进程内托管对象
type MBean interface {
	Info() jmx.MBeanInfo
	Attribute(name string) (jmx.Value, error)
}

type entry struct {
	name objectname.ObjectName
	bean MBean
}

// Server 进程内 MBean 注册表（相当于平台 MBeanServer）
type Server struct {
	mu    sync.RWMutex
	beans map[string]entry
}

// NewServer 创建空注册表
func NewServer() *Server {
	return &Server{beans: make(map[string]entry)}
}

// Register 注册托管对象，name 不能是模式
func (s *Server) Register(name string, bean MBean) error {
	on, err := objectname.Parse(name)
	if err != nil {
		return err
	}
	if on.IsPattern() {
		return fmt.Errorf("%w: cannot register pattern %s", objectname.ErrMalformed, name)
	}
	key := on.CanonicalName()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.beans[key]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, key)
	}
	s.beans[key] = entry{name: on, bean: bean}
	return nil
}

// Unregister 注销托管对象
func (s *Server) Unregister(name string) bool {
	on, err := objectname.Parse(name)
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := on.CanonicalName()
	_, ok := s.beans[key]
	delete(s.beans, key)
	return ok
}

// Count 已注册对象数
func (s *Server) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.beans)
}

func (s *Server) lookup(name objectname.ObjectName) (entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.beans[name.CanonicalName()]
	if !ok {
		return entry{}, fmt.Errorf("%w: %s", jmx.ErrInstanceNotFound, name.CanonicalName())
	}
	return e, nil
}

// Connect 返回一个访问本注册表的连接
func (s *Server) Connect() jmx.Connection {
	return &conn{srv: s}
}

// Dialer 供连接缓存使用的 local 协议提供者
func (s *Server) Dialer() jmx.Dialer {
	return jmx.DialerFunc(func(context.Context, *jmx.Server) (jmx.Connection, error) {
		return s.Connect(), nil
	})
}

type conn struct {
	srv    *Server
	closed atomic.Bool
}

func (c *conn) check(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

func (c *conn) Ping(ctx context.Context) error {
	return c.check(ctx)
}

func (c *conn) QueryNames(ctx context.Context, pattern objectname.ObjectName) ([]objectname.ObjectName, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	c.srv.mu.RLock()
	defer c.srv.mu.RUnlock()

	var out []objectname.ObjectName
	for _, e := range c.srv.beans {
		if pattern.Match(e.name) {
			out = append(out, e.name)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CanonicalName() < out[j].CanonicalName() })
	return out, nil
}

func (c *conn) MBeanInfo(ctx context.Context, name objectname.ObjectName) (jmx.MBeanInfo, error) {
	if err := c.check(ctx); err != nil {
		return jmx.MBeanInfo{}, err
	}
	e, err := c.srv.lookup(name)
	if err != nil {
		return jmx.MBeanInfo{}, err
	}
	return e.bean.Info(), nil
}

// GetAttributes 与 JMX getAttributes 一致：读取失败或不存在的属性被忽略
func (c *conn) GetAttributes(ctx context.Context, name objectname.ObjectName, attrs []string) ([]jmx.Attribute, error) {
	if err := c.check(ctx); err != nil {
		return nil, err
	}
	e, err := c.srv.lookup(name)
	if err != nil {
		return nil, err
	}
	out := make([]jmx.Attribute, 0, len(attrs))
	for _, a := range attrs {
		v, err := e.bean.Attribute(a)
		if err != nil {
			if errors.Is(err, jmx.ErrClassNotFound) {
				return nil, err
			}
			continue
		}
		out = append(out, jmx.Attribute{Name: a, Value: v})
	}
	return out, nil
}

func (c *conn) Close() error {
	c.closed.Store(true)
	return nil
}
