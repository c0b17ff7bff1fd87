package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate HTTP服务配置校验
func (h *ServerConfig) Validate() error {
	if err := valid.Struct(h); err != nil {
		return err
	}
	if h.Addr == "" {
		return errors.New("server.addr cannot be empty")
	}
	// 用net包解析地址，验证格式合法性
	if _, err := net.ResolveTCPAddr("tcp", h.Addr); err != nil {
		return fmt.Errorf("server.addr format invalid (expected: :port or ip:port), got %s: %w", h.Addr, err)
	}
	return nil
}

// Validate 采集配置校验
// hosts 不能含空项或重复项
// url 只允许配合单个 host（或没有 host）
// 没有 url 时 hosts 与 port 都必须存在（local 提供者除外）
// type=custom 必须给出文件路径；jolokia-proxy 必须给出 proxy_url
func (m *MonitorConfig) Validate() error {
	m.IntervalUnit = strings.ToUpper(strings.TrimSpace(m.IntervalUnit))
	if err := valid.Struct(m); err != nil {
		return err
	}
	if m.Period() <= 0 {
		return fmt.Errorf("monitor.interval must be positive, got %d %s", m.Interval, m.IntervalUnit)
	}

	seen := map[string]bool{}
	hosts := m.Hosts[:0]
	for _, h := range m.Hosts {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if seen[h] {
			return fmt.Errorf("monitor.hosts duplicated entry: %q", h)
		}
		seen[h] = true
		hosts = append(hosts, h)
	}
	m.Hosts = hosts

	switch {
	case m.URL != "" && len(m.Hosts) > 1:
		return fmt.Errorf("monitor.url can only be used with a single host, got %d hosts", len(m.Hosts))
	case m.URL == "" && m.Provider != "local" && (len(m.Hosts) == 0 || strings.TrimSpace(m.Port) == ""):
		return errors.New("monitor.hosts and monitor.port are required when monitor.url is not set")
	}

	if strings.EqualFold(m.Type, "custom") && strings.TrimSpace(m.CustomFilePath) == "" {
		return errors.New("monitor.custom_file_path is required when monitor.type is custom")
	}
	if m.Provider == "jolokia-proxy" && m.ProxyURL == "" {
		return errors.New("monitor.proxy_url is required for the jolokia-proxy provider")
	}
	if m.TrustStorePass != "" && m.TrustStorePath == "" {
		return errors.New("monitor.trust_store_pass set without monitor.trust_store_path")
	}
	return nil
}

// Validate 输出配置校验
func (s *SinkConfig) Validate() error {
	if err := valid.Struct(s); err != nil {
		return err
	}
	switch s.Type {
	case "file":
		if strings.TrimSpace(s.Path) == "" {
			return errors.New("sink.path is required for the file sink")
		}
	case "nats":
		if s.NATS.URL == "" || s.NATS.Subject == "" {
			return errors.New("sink.nats.url and sink.nats.subject are required for the nats sink")
		}
		if strings.ContainsAny(s.NATS.Subject, " \t\r\n") {
			return fmt.Errorf("sink.nats.subject %q must not contain whitespace", s.NATS.Subject)
		}
	}
	return nil
}
