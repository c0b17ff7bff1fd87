package event

import (
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/queryconfig"
)

// 固定信封字段
const (
	FieldVersion      = "version"
	FieldObject       = "_object"
	FieldHost         = "host"
	FieldLabel        = "_label"
	FieldShortMessage = "short_message"
	FieldTimestamp    = "timestamp"

	SchemaVersion = "1.1"
	ShortMessage  = "JMX"
)

var wire = jsoniter.Config{
	EscapeHTML:  false,
	SortMapKeys: true,
}.Froze()

// Event 一个端点一次采集产生的扁平事件
type Event map[string]any

// Marshal 序列化为 JSON（键有序）
func (e Event) Marshal() ([]byte, error) {
	return wire.Marshal(map[string]any(e))
}

// Envelope 信封信息
type Envelope struct {
	Host  string
	Label string
	Type  string
}

// QueryResults 一个查询声明及其本轮结果
type QueryResults struct {
	Query   *queryconfig.GLQuery
	Objects []jmx.ObjectResults
}

// Builder 组装事件
type Builder struct {
	now func() time.Time
}

// Option Builder 配置项
type Option func(*Builder)

// WithClock 替换时间源
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder 创建 Builder
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build 合并本轮所有查询结果。只有在查询中声明过的 (属性, 子键) 才会输出，
// 字段名为 "_" + 解析后的标签。
func (b *Builder) Build(env Envelope, results []QueryResults) Event {
	ev := Event{
		FieldVersion:      SchemaVersion,
		FieldObject:       env.Type,
		FieldHost:         env.Host,
		FieldLabel:        env.Label,
		FieldShortMessage: ShortMessage,
		FieldTimestamp:    float64(b.now().UnixMilli()) / 1000,
	}

	for _, qr := range results {
		if qr.Query == nil {
			continue
		}
		for _, obj := range qr.Objects {
			for _, r := range obj.Results {
				for _, entry := range r.Values {
					attr, ok := qr.Query.Attribute(queryconfig.LookupKey(r.AttributeName, entry.Key))
					if !ok {
						continue
					}
					ev["_"+ResolveLabel(attr.Template(), obj.Ref)] = entry.Value
				}
			}
		}
	}
	return ev
}
