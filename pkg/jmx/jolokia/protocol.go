package jolokia

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/objectname"
)

// Jolokia 请求类型
const (
	typeVersion = "version"
	typeSearch  = "search"
	typeList    = "list"
	typeRead    = "read"
)

// Target 代理模式下的 JMX 目标
type Target struct {
	URL      string `json:"url"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
}

type request struct {
	Type      string         `json:"type"`
	MBean     string         `json:"mbean,omitempty"`
	Attribute []string       `json:"attribute,omitempty"`
	Path      string         `json:"path,omitempty"`
	Target    *Target        `json:"target,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

type response struct {
	Status    int    `json:"status"`
	Value     any    `json:"value"`
	Error     string `json:"error"`
	ErrorType string `json:"error_type"`
	Timestamp int64  `json:"timestamp"`
}

// Error Jolokia 返回的非 200 状态
type Error struct {
	Status  int
	Type    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("jolokia status %d: %s: %s", e.Status, e.Type, e.Message)
}

// Unwrap 把远端异常类型映射到哨兵错误，方便 errors.Is 判断
func (e *Error) Unwrap() error {
	switch {
	case strings.Contains(e.Type, "ClassNotFoundException"),
		strings.Contains(e.Type, "UnmarshalException") && strings.Contains(e.Message, "ClassNotFoundException"):
		return jmx.ErrClassNotFound
	case strings.Contains(e.Type, "InstanceNotFoundException"):
		return jmx.ErrInstanceNotFound
	case strings.Contains(e.Type, "AttributeNotFoundException"):
		return jmx.ErrAttributeNotFound
	case strings.Contains(e.Type, "MalformedObjectNameException"):
		return objectname.ErrMalformed
	case strings.Contains(e.Type, "IntrospectionException"):
		return jmx.ErrIntrospection
	}
	return nil
}

// ErrUnexpectedValue 响应 value 结构不符合预期
var ErrUnexpectedValue = errors.New("unexpected jolokia value")

// escapePath 按 Jolokia 路径规则转义：'!' -> "!!", '/' -> "!/"
func escapePath(s string) string {
	s = strings.ReplaceAll(s, "!", "!!")
	return strings.ReplaceAll(s, "/", "!/")
}

// listPath list 请求使用 domain/规范属性列表
func listPath(name objectname.ObjectName) string {
	canonical := name.CanonicalName()
	idx := strings.IndexByte(canonical, ':')
	return escapePath(canonical[:idx]) + "/" + escapePath(canonical[idx+1:])
}
