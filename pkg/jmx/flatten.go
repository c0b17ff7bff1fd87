package jmx

import (
	"fmt"
)

// Entry 展平后的一个 (子键, 标量值) 对。标量属性的子键为空串。
type Entry struct {
	Key   string
	Value any
}

// Flatten 把原始属性值展平为子键唯一的标量对，顺序稳定
func Flatten(raw Value) []Entry {
	f := flattener{seen: make(map[string]struct{})}
	f.walk(nil, raw)
	return f.out
}

type flattener struct {
	out  []Entry
	seen map[string]struct{}
}

func (f *flattener) emit(p Path, v any) {
	key := p.String()
	if _, dup := f.seen[key]; dup {
		return
	}
	f.seen[key] = struct{}{}
	f.out = append(f.out, Entry{Key: key, Value: v})
}

func (f *flattener) walk(p Path, v Value) {
	switch t := v.(type) {
	case nil:
		f.emit(p, nil)
	case Scalar:
		f.scalar(p, t)
	case Composite:
		f.composite(p, t)
	case Tabular:
		f.tabular(p, t)
	case Array:
		f.array(p, t)
	case Opaque:
		f.opaque(p, t)
	}
}

func (f *flattener) scalar(p Path, s Scalar) {
	f.emit(p, s.V)
}

func (f *flattener) composite(p Path, c Composite) {
	for _, field := range c.Fields {
		f.walk(p.withField(field.Name), field.Value)
	}
}

func (f *flattener) tabular(p Path, t Tabular) {
	for _, row := range t.Rows {
		rp := p.withRow(row.Index)
		for _, col := range row.Columns {
			f.walk(rp.withField(col.Name), col.Value)
		}
	}
}

func (f *flattener) array(p Path, a Array) {
	for i, e := range a.Elems {
		f.walk(p.withIndex(i), e)
	}
}

func (f *flattener) opaque(p Path, o Opaque) {
	if o.V == nil {
		f.emit(p, nil)
		return
	}
	f.emit(p, fmt.Sprint(o.V))
}
