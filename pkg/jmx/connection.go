package jmx

import (
	"context"
	"errors"

	"github.com/jmx-collector/pkg/objectname"
)

var (
	// ErrClassNotFound 远端返回的值在本地无法反序列化（类定义缺失），属于已知的互操作问题
	ErrClassNotFound = errors.New("remote class not available locally")
	// ErrInstanceNotFound 对象在查询与读取之间消失
	ErrInstanceNotFound = errors.New("managed object not found")
	// ErrAttributeNotFound 请求了不存在的属性
	ErrAttributeNotFound = errors.New("attribute not found")
	// ErrIntrospection 获取对象元数据失败
	ErrIntrospection = errors.New("introspection failed")
	// ErrUnknownProvider 未注册的协议提供者
	ErrUnknownProvider = errors.New("unknown protocol provider")
)

// AttributeInfo 属性元数据
type AttributeInfo struct {
	Name     string
	Type     string
	Readable bool
}

// MBeanInfo 托管对象元数据
type MBeanInfo struct {
	ClassName  string
	Attributes []AttributeInfo
}

// Attribute 读取到的单个属性值
type Attribute struct {
	Name  string
	Value Value
}

// Connection is a live session to one management endpoint.
type Connection interface {
	// Ping is the cheap liveness probe used by the connection cache.
	Ping(ctx context.Context) error
	QueryNames(ctx context.Context, pattern objectname.ObjectName) ([]objectname.ObjectName, error)
	MBeanInfo(ctx context.Context, name objectname.ObjectName) (MBeanInfo, error)
	GetAttributes(ctx context.Context, name objectname.ObjectName, attrs []string) ([]Attribute, error)
	Close() error
}

// Dialer opens connections for one protocol provider.
type Dialer interface {
	Dial(ctx context.Context, server *Server) (Connection, error)
}

// DialerFunc 函数适配器
type DialerFunc func(ctx context.Context, server *Server) (Connection, error)

func (f DialerFunc) Dial(ctx context.Context, server *Server) (Connection, error) {
	return f(ctx, server)
}
