package local

import (
	"fmt"
	"sort"

	"github.com/jmx-collector/pkg/jmx"
)

// Getter 读取单个属性；返回普通 Go 值或 jmx.Value
type Getter func() (any, error)

// FuncBean 由一组 Getter 组成的托管对象
type FuncBean struct {
	className string
	names     []string
	types     map[string]string
	getters   map[string]Getter
}

// NewFuncBean 创建空对象
func NewFuncBean(className string) *FuncBean {
	return &FuncBean{
		className: className,
		types:     make(map[string]string),
		getters:   make(map[string]Getter),
	}
}

// Attr 添加只读属性，typ 仅用于元数据展示
func (b *FuncBean) Attr(name, typ string, get Getter) *FuncBean {
	if _, ok := b.getters[name]; !ok {
		b.names = append(b.names, name)
	}
	b.types[name] = typ
	b.getters[name] = get
	return b
}

// Static 添加固定值属性
func (b *FuncBean) Static(name string, v any) *FuncBean {
	return b.Attr(name, fmt.Sprintf("%T", v), func() (any, error) { return v, nil })
}

func (b *FuncBean) Info() jmx.MBeanInfo {
	names := append([]string(nil), b.names...)
	sort.Strings(names)
	info := jmx.MBeanInfo{ClassName: b.className}
	for _, n := range names {
		info.Attributes = append(info.Attributes, jmx.AttributeInfo{Name: n, Type: b.types[n], Readable: true})
	}
	return info
}

func (b *FuncBean) Attribute(name string) (jmx.Value, error) {
	get, ok := b.getters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jmx.ErrAttributeNotFound, name)
	}
	v, err := get()
	if err != nil {
		return nil, err
	}
	return jmx.ValueOf(v), nil
}
