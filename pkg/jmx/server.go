package jmx

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// 协议提供者名称
const (
	ProviderJolokia      = "jolokia"
	ProviderJolokiaProxy = "jolokia-proxy"
	ProviderLocal        = "local"
)

const (
	serviceURLFront = "service:jmx:rmi:///jndi/rmi://"
	serviceURLBack  = "/jmxrmi"
	jolokiaPath     = "/jolokia/"
	localURLPrefix  = "local://"
)

var (
	// ErrNoHostOrURL host/port 与 url 均未配置，无法推导
	ErrNoHostOrURL = errors.New("url is empty and host or port is empty")
)

// Server 一个远端管理端点的不可变描述，通过 ServerBuilder 构建。
// host/port/url 的一致性只在调用 URL/Host/Port 时检查。
type Server struct {
	alias            string
	host             string
	port             string
	url              string
	username         string
	password         string
	protocolProvider string
	proxyURL         string
	trustStorePath   string
	trustStorePass   string
	numQueryThreads  int
	schedule         string
	queries          []Query
}

// ServerBuilder Server 构建器
type ServerBuilder struct {
	s Server
}

// NewServerBuilder 创建构建器
func NewServerBuilder() *ServerBuilder {
	return &ServerBuilder{}
}

// BuilderFrom 以已有 Server 为模板
func BuilderFrom(s *Server) *ServerBuilder {
	b := &ServerBuilder{s: *s}
	b.s.queries = append([]Query(nil), s.queries...)
	return b
}

func (b *ServerBuilder) Alias(v string) *ServerBuilder    { b.s.alias = v; return b }
func (b *ServerBuilder) Host(v string) *ServerBuilder     { b.s.host = strings.TrimSpace(v); return b }
func (b *ServerBuilder) Port(v string) *ServerBuilder     { b.s.port = strings.TrimSpace(v); return b }
func (b *ServerBuilder) URL(v string) *ServerBuilder      { b.s.url = strings.TrimSpace(v); return b }
func (b *ServerBuilder) Username(v string) *ServerBuilder { b.s.username = v; return b }
func (b *ServerBuilder) Password(v string) *ServerBuilder { b.s.password = v; return b }
func (b *ServerBuilder) ProtocolProvider(v string) *ServerBuilder {
	b.s.protocolProvider = v
	return b
}
func (b *ServerBuilder) ProxyURL(v string) *ServerBuilder { b.s.proxyURL = v; return b }
func (b *ServerBuilder) TrustStore(path, pass string) *ServerBuilder {
	b.s.trustStorePath = path
	b.s.trustStorePass = pass
	return b
}
func (b *ServerBuilder) NumQueryThreads(n int) *ServerBuilder { b.s.numQueryThreads = n; return b }
func (b *ServerBuilder) Schedule(expr string) *ServerBuilder  { b.s.schedule = expr; return b }

// AddQuery 追加查询，保持顺序
func (b *ServerBuilder) AddQuery(q ...Query) *ServerBuilder {
	b.s.queries = append(b.s.queries, q...)
	return b
}

// Build 生成不可变 Server（不做校验）
func (b *ServerBuilder) Build() *Server {
	s := b.s
	s.queries = append([]Query(nil), b.s.queries...)
	return &s
}

func (s *Server) Alias() string          { return s.alias }
func (s *Server) Username() string       { return s.username }
func (s *Server) Password() string       { return s.password }
func (s *Server) ProxyURL() string       { return s.proxyURL }
func (s *Server) TrustStorePath() string { return s.trustStorePath }
func (s *Server) TrustStorePass() string { return s.trustStorePass }
func (s *Server) NumQueryThreads() int   { return s.numQueryThreads }
func (s *Server) Schedule() string       { return s.schedule }

// Queries 返回查询副本
func (s *Server) Queries() []Query {
	return append([]Query(nil), s.queries...)
}

// ProtocolProvider 未配置时默认为 jolokia
func (s *Server) ProtocolProvider() string {
	if s.protocolProvider == "" {
		return ProviderJolokia
	}
	return s.protocolProvider
}

// IsQueriesMultiThreaded 是否并行执行本端点的查询
func (s *Server) IsQueriesMultiThreaded() bool {
	return s.numQueryThreads > 0
}

// HasCredentials 用户名与密码都存在时才发送凭据
func (s *Server) HasCredentials() bool {
	return s.username != "" && s.password != ""
}

// URL 显式 url 优先，否则按协议提供者由 host/port 推导
func (s *Server) URL() (string, error) {
	if s.url != "" {
		return s.url, nil
	}
	if s.host == "" || s.port == "" {
		return "", fmt.Errorf("%w: cannot construct url dynamically", ErrNoHostOrURL)
	}
	switch s.ProtocolProvider() {
	case ProviderJolokiaProxy:
		return serviceURLFront + s.host + ":" + s.port + serviceURLBack, nil
	case ProviderLocal:
		return localURLPrefix + s.host + ":" + s.port, nil
	default:
		scheme := "http"
		if s.trustStorePath != "" {
			scheme = "https"
		}
		return scheme + "://" + s.host + ":" + s.port + jolokiaPath, nil
	}
}

// Host 未设置 host 时从 url 中提取
func (s *Server) Host() (string, error) {
	if s.host != "" {
		return s.host, nil
	}
	if s.url == "" {
		return "", fmt.Errorf("%w: cannot construct host dynamically", ErrNoHostOrURL)
	}
	if u, err := url.Parse(s.url); err == nil && u.Host != "" {
		return u.Hostname(), nil
	}
	// service:jmx:rmi:///jndi/rmi://host:port/jmxrmi
	start := strings.LastIndex(s.url, "//")
	end := strings.LastIndex(s.url, ":")
	if start < 0 || end <= start+2 {
		return "", fmt.Errorf("%w: cannot extract host from %q", ErrNoHostOrURL, s.url)
	}
	return s.url[start+2 : end], nil
}

// Port 未设置 port 时从 url 中提取
func (s *Server) Port() (string, error) {
	if s.port != "" {
		return s.port, nil
	}
	if s.url == "" {
		return "", fmt.Errorf("%w: cannot construct port dynamically", ErrNoHostOrURL)
	}
	if u, err := url.Parse(s.url); err == nil && u.Host != "" {
		if p := u.Port(); p != "" {
			return p, nil
		}
	}
	idx := strings.LastIndex(s.url, ":")
	if idx < 0 {
		return "", fmt.Errorf("%w: cannot extract port from %q", ErrNoHostOrURL, s.url)
	}
	port := s.url[idx+1:]
	if slash := strings.IndexByte(port, '/'); slash >= 0 {
		port = port[:slash]
	}
	if port == "" {
		return "", fmt.Errorf("%w: cannot extract port from %q", ErrNoHostOrURL, s.url)
	}
	return port, nil
}

// String 不包含凭据
func (s *Server) String() string {
	return fmt.Sprintf("Server [host=%s, port=%s, url=%s, provider=%s, schedule=%s, numQueryThreads=%d]",
		s.host, s.port, s.url, s.ProtocolProvider(), s.schedule, s.numQueryThreads)
}
