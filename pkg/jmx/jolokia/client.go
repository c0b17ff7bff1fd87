package jolokia

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/objectname"
	"github.com/jmx-collector/pkg/trust"
)

// 数字解码为 json.Number，避免 long 精度丢失
var wire = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

// Client 一个 Jolokia 端点连接（实现 jmx.Connection）
type Client struct {
	endpoint string
	target   *Target
	user     string
	password string
	http     *http.Client
	log      *zap.Logger

	// list 请求结果缓存：对象元数据在连接生命周期内视为不变
	mu    sync.Mutex
	infos map[string]jmx.MBeanInfo
}

// Option Client/Dialer 配置项
type Option func(*options)

type options struct {
	transport *http.Transport
	log       *zap.Logger
}

// WithTransport 指定基础 Transport（会被克隆）
func WithTransport(t *http.Transport) Option {
	return func(o *options) { o.transport = t }
}

// WithLogger 指定日志
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// NewDialer 返回 jolokia / jolokia-proxy 协议提供者
func NewDialer(opts ...Option) jmx.Dialer {
	return jmx.DialerFunc(func(ctx context.Context, server *jmx.Server) (jmx.Connection, error) {
		return Dial(ctx, server, opts...)
	})
}

// Dial 建立连接并做一次 version 探测
func Dial(ctx context.Context, server *jmx.Server, opts ...Option) (*Client, error) {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	serverURL, err := server.URL()
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint: serverURL,
		log:      o.log,
		infos:    make(map[string]jmx.MBeanInfo),
	}
	if server.ProtocolProvider() == jmx.ProviderJolokiaProxy {
		if server.ProxyURL() == "" {
			return nil, fmt.Errorf("jolokia proxy for %s: proxy url is empty", serverURL)
		}
		c.endpoint = server.ProxyURL()
		c.target = &Target{URL: serverURL}
		if server.HasCredentials() {
			c.target.User = server.Username()
			c.target.Password = server.Password()
		}
	} else if server.HasCredentials() {
		c.user = server.Username()
		c.password = server.Password()
	}

	var base *http.Transport
	if o.transport != nil {
		base = o.transport.Clone()
	} else {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}
	if server.TrustStorePath() != "" {
		v, err := trust.FromStore(server.TrustStorePath(), server.TrustStorePass())
		if err != nil {
			return nil, err
		}
		base.TLSClientConfig = trust.TLSConfig(v)
	}
	c.http = &http.Client{Transport: base}

	if err := c.Ping(ctx); err != nil {
		c.http.CloseIdleConnections()
		return nil, err
	}
	return c, nil
}

// Endpoint 实际请求的 URL
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) do(ctx context.Context, req request) (any, error) {
	req.Target = c.target
	body, err := wire.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", req.Type, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.Type, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		httpReq.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("jolokia %s %s: %w", req.Type, c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("jolokia %s %s: http status %d", req.Type, c.endpoint, resp.StatusCode)
	}

	var r response
	if err := wire.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", req.Type, err)
	}
	if r.Status != http.StatusOK {
		return nil, &Error{Status: r.Status, Type: r.ErrorType, Message: r.Error}
	}
	return r.Value, nil
}

// Ping version 请求作为存活探测
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, request{Type: typeVersion})
	return err
}

func (c *Client) QueryNames(ctx context.Context, pattern objectname.ObjectName) ([]objectname.ObjectName, error) {
	v, err := c.do(ctx, request{Type: typeSearch, MBean: pattern.String()})
	if err != nil {
		return nil, err
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: search returned %T", ErrUnexpectedValue, v)
	}
	out := make([]objectname.ObjectName, 0, len(list))
	for _, e := range list {
		s, ok := e.(string)
		if !ok {
			continue
		}
		on, err := objectname.Parse(s)
		if err != nil {
			c.log.Debug("skipping unparsable object name", zap.String("name", s), zap.Error(err))
			continue
		}
		out = append(out, on)
	}
	return out, nil
}

func (c *Client) MBeanInfo(ctx context.Context, name objectname.ObjectName) (jmx.MBeanInfo, error) {
	key := name.CanonicalName()
	c.mu.Lock()
	info, ok := c.infos[key]
	c.mu.Unlock()
	if ok {
		return info, nil
	}

	v, err := c.do(ctx, request{Type: typeList, Path: listPath(name), Config: map[string]any{"maxDepth": 3}})
	if err != nil {
		return jmx.MBeanInfo{}, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return jmx.MBeanInfo{}, fmt.Errorf("%w: %w: list returned %T", jmx.ErrIntrospection, ErrUnexpectedValue, v)
	}

	info = jmx.MBeanInfo{}
	if cls, ok := m["class"].(string); ok {
		info.ClassName = cls
	}
	if attrs, ok := m["attr"].(map[string]any); ok {
		names := make([]string, 0, len(attrs))
		for n := range attrs {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			ai := jmx.AttributeInfo{Name: n, Readable: true}
			if meta, ok := attrs[n].(map[string]any); ok {
				if typ, ok := meta["type"].(string); ok {
					ai.Type = typ
				}
			}
			info.Attributes = append(info.Attributes, ai)
		}
	}

	c.mu.Lock()
	c.infos[key] = info
	c.mu.Unlock()
	return info, nil
}

// GetAttributes 与 JMX getAttributes 一致：不存在或读取失败的属性被忽略。
// 批量 read 因单个属性失败时，逐个属性重读。
func (c *Client) GetAttributes(ctx context.Context, name objectname.ObjectName, attrs []string) ([]jmx.Attribute, error) {
	info, err := c.MBeanInfo(ctx, name)
	if err != nil {
		return nil, err
	}
	types := make(map[string]string, len(info.Attributes))
	for _, a := range info.Attributes {
		types[a.Name] = a.Type
	}

	known := attrs
	if len(types) > 0 {
		known = make([]string, 0, len(attrs))
		for _, a := range attrs {
			if _, ok := types[a]; !ok {
				c.log.Debug("skipping unknown attribute", zap.String("mbean", name.String()), zap.String("attribute", a))
				continue
			}
			known = append(known, a)
		}
	}
	if len(known) == 0 {
		return nil, nil
	}

	values, err := c.read(ctx, name, known)
	if err != nil {
		if !isAttributeFailure(err) {
			return nil, err
		}
		c.log.Debug("bulk read failed, reading attributes one by one",
			zap.String("mbean", name.String()), zap.Error(err))
		values = make(map[string]any, len(known))
		for _, a := range known {
			one, err := c.read(ctx, name, []string{a})
			if err != nil {
				if !isAttributeFailure(err) {
					return nil, err
				}
				c.log.Debug("skipping unreadable attribute",
					zap.String("mbean", name.String()), zap.String("attribute", a), zap.Error(err))
				continue
			}
			if raw, ok := one[a]; ok {
				values[a] = raw
			}
		}
	}

	out := make([]jmx.Attribute, 0, len(known))
	for _, a := range known {
		raw, ok := values[a]
		if !ok {
			continue
		}
		out = append(out, jmx.Attribute{Name: a, Value: decodeValue(raw, types[a])})
	}
	return out, nil
}

func (c *Client) read(ctx context.Context, name objectname.ObjectName, attrs []string) (map[string]any, error) {
	v, err := c.do(ctx, request{Type: typeRead, MBean: name.String(), Attribute: attrs})
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: read returned %T", ErrUnexpectedValue, v)
	}
	return m, nil
}

// isAttributeFailure 远端对单个属性的报错；对象不存在、类缺失、名称非法与传输错误除外
func isAttributeFailure(err error) bool {
	var je *Error
	if !errors.As(err, &je) {
		return false
	}
	return !errors.Is(err, jmx.ErrInstanceNotFound) &&
		!errors.Is(err, jmx.ErrClassNotFound) &&
		!errors.Is(err, objectname.ErrMalformed)
}

// Close 释放空闲连接
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}
