package jmx

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jmx-collector/pkg/objectname"
)

// Query 对象名模式 + 有序属性列表（为空表示读取全部属性）。构建后不可变。
type Query struct {
	obj   string
	attrs []string
}

// NewQuery 创建查询，重复属性只保留第一次出现
func NewQuery(obj string, attrs ...string) Query {
	q := Query{obj: obj}
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		q.attrs = append(q.attrs, a)
	}
	return q
}

func (q Query) Object() string { return q.obj }

// Attributes 返回属性副本
func (q Query) Attributes() []string {
	return append([]string(nil), q.attrs...)
}

func (q Query) String() string {
	return fmt.Sprintf("Query [obj=%s, attr=%v]", q.obj, q.attrs)
}

// ManagedObjectRef 查询匹配到的一个托管对象
type ManagedObjectRef struct {
	Name       objectname.ObjectName
	Canonical  string
	Properties []objectname.Property
}

// Property 查找属性值（带引号的值会去掉引号）
func (r ManagedObjectRef) Property(key string) (string, bool) {
	for _, p := range r.Properties {
		if p.Key == key {
			return objectname.Unquote(p.Value), true
		}
	}
	return "", false
}

// NewRef 由具体对象名生成引用
func NewRef(name objectname.ObjectName) ManagedObjectRef {
	return ManagedObjectRef{
		Name:       name,
		Canonical:  name.CanonicalName(),
		Properties: name.Properties(),
	}
}

// Result 一个属性展平后的结果
type Result struct {
	AttributeName string
	ClassName     string
	Domain        string
	Values        []Entry
}

// ObjectResults 一个托管对象及其全部结果
type ObjectResults struct {
	Ref     ManagedObjectRef
	Results []Result
}

// QueryProcessor 执行查询并展平结果
type QueryProcessor struct {
	log *zap.Logger
}

// NewQueryProcessor nil logger 使用 Nop
func NewQueryProcessor(log *zap.Logger) *QueryProcessor {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueryProcessor{log: log}
}

// ProcessQuery resolves the query pattern and returns results per matched object,
// ordered by canonical name. Only ErrClassNotFound is swallowed; every other error
// is returned to the caller.
func (p *QueryProcessor) ProcessQuery(ctx context.Context, conn Connection, q Query) ([]ObjectResults, error) {
	pattern, err := objectname.Parse(q.obj)
	if err != nil {
		return nil, err
	}

	names, err := conn.QueryNames(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("query names %s: %w", q.obj, err)
	}
	sort.Slice(names, func(i, j int) bool {
		return names[i].CanonicalName() < names[j].CanonicalName()
	})

	out := make([]ObjectResults, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results, err := p.fetchResults(ctx, conn, q, name)
		if err != nil {
			return nil, err
		}
		out = append(out, ObjectResults{Ref: NewRef(name), Results: results})
	}
	return out, nil
}

func (p *QueryProcessor) fetchResults(ctx context.Context, conn Connection, q Query, name objectname.ObjectName) ([]Result, error) {
	info, err := conn.MBeanInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("mbean info %s: %w", name.CanonicalName(), err)
	}

	attrs := q.attrs
	if len(attrs) == 0 {
		for _, a := range info.Attributes {
			if a.Readable {
				attrs = append(attrs, a.Name)
			}
		}
	}
	if len(attrs) == 0 {
		return nil, nil
	}

	p.log.Debug("executing query",
		zap.String("object", name.CanonicalName()),
		zap.String("query", q.String()))

	values, err := conn.GetAttributes(ctx, name, attrs)
	if err != nil {
		if errors.Is(err, ErrClassNotFound) {
			p.log.Debug("bad unmarshall, continuing",
				zap.String("object", name.CanonicalName()),
				zap.Error(err))
			return nil, nil
		}
		return nil, fmt.Errorf("get attributes %s: %w", name.CanonicalName(), err)
	}

	results := make([]Result, 0, len(values))
	for _, v := range values {
		results = append(results, Result{
			AttributeName: v.Name,
			ClassName:     info.ClassName,
			Domain:        name.Domain(),
			Values:        Flatten(v.Value),
		})
	}
	return results, nil
}
