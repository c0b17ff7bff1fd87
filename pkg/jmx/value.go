package jmx

import (
	"fmt"
	"sort"
)

// Kind 属性值的类型标签
type Kind int

const (
	KindScalar Kind = iota
	KindComposite
	KindTabular
	KindArray
	KindOpaque
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindComposite:
		return "composite"
	case KindTabular:
		return "tabular"
	case KindArray:
		return "array"
	case KindOpaque:
		return "opaque"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value 远端返回的原始属性值。
// 只有下面五种实现：Scalar / Composite / Tabular / Array / Opaque。
type Value interface {
	Kind() Kind
	isValue()
}

// Scalar 数值、字符串、布尔或 nil
type Scalar struct {
	V any
}

// Field 复合值中的一个命名字段
type Field struct {
	Name  string
	Value Value
}

// Composite 命名字段记录（CompositeData）
type Composite struct {
	Fields []Field
}

// Row 表格数据的一行：Index 为行标识（索引列取值），Columns 为该行全部列
type Row struct {
	Index   []string
	Columns []Field
}

// Tabular 按行组织、带命名列的记录（TabularData）
type Tabular struct {
	IndexNames []string
	Rows       []Row
}

// Array 同构数组 / 集合
type Array struct {
	Elems []Value
}

// Opaque 无法识别的值类型，展平时退化为字符串
type Opaque struct {
	TypeName string
	V        any
}

func (Scalar) Kind() Kind    { return KindScalar }
func (Composite) Kind() Kind { return KindComposite }
func (Tabular) Kind() Kind   { return KindTabular }
func (Array) Kind() Kind     { return KindArray }
func (Opaque) Kind() Kind    { return KindOpaque }

func (Scalar) isValue()    {}
func (Composite) isValue() {}
func (Tabular) isValue()   {}
func (Array) isValue()     {}
func (Opaque) isValue()    {}

// Field 按名称查找字段
func (c Composite) Field(name string) (Value, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// NewComposite 从 map 构建复合值，字段按名称排序以保证输出稳定
func NewComposite(m map[string]Value) Composite {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	c := Composite{Fields: make([]Field, 0, len(names))}
	for _, n := range names {
		c.Fields = append(c.Fields, Field{Name: n, Value: m[n]})
	}
	return c
}

// ValueOf converts plain Go data into a Value. Maps become composites, slices become
// arrays, and anything that is neither a supported scalar nor a Value becomes Opaque.
func ValueOf(v any) Value {
	switch t := v.(type) {
	case nil:
		return Scalar{}
	case Value:
		return t
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return Scalar{V: t}
	case fmt.Stringer:
		return Opaque{TypeName: fmt.Sprintf("%T", v), V: t}
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			m[k] = ValueOf(e)
		}
		return NewComposite(m)
	case []any:
		a := Array{Elems: make([]Value, 0, len(t))}
		for _, e := range t {
			a.Elems = append(a.Elems, ValueOf(e))
		}
		return a
	case []string:
		a := Array{Elems: make([]Value, 0, len(t))}
		for _, e := range t {
			a.Elems = append(a.Elems, Scalar{V: e})
		}
		return a
	case []int64:
		a := Array{Elems: make([]Value, 0, len(t))}
		for _, e := range t {
			a.Elems = append(a.Elems, Scalar{V: e})
		}
		return a
	case []float64:
		a := Array{Elems: make([]Value, 0, len(t))}
		for _, e := range t {
			a.Elems = append(a.Elems, Scalar{V: e})
		}
		return a
	default:
		return Opaque{TypeName: fmt.Sprintf("%T", v), V: v}
	}
}
