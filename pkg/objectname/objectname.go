package objectname

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformed 对象名格式非法
var ErrMalformed = errors.New("malformed object name")

// Property 对象名中的一个 key=value 属性（保持声明顺序）
type Property struct {
	Key   string
	Value string
}

// ObjectName 托管对象的结构化名称：domain + 有序属性列表
type ObjectName struct {
	domain     string
	props      []Property
	propsWild  bool // 属性列表以 ",*" 结尾
	domainWild bool
	valueWild  bool
}

// Parse 解析 "domain:key=value,key2=value2" 格式的对象名
func Parse(s string) (ObjectName, error) {
	var on ObjectName
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return on, fmt.Errorf("%w: %q has no domain separator", ErrMalformed, s)
	}
	on.domain = s[:idx]
	if strings.ContainsAny(on.domain, "\n") {
		return on, fmt.Errorf("%w: invalid character in domain of %q", ErrMalformed, s)
	}
	on.domainWild = strings.ContainsAny(on.domain, "*?")

	rest := s[idx+1:]
	if rest == "" {
		return on, fmt.Errorf("%w: %q has no key properties", ErrMalformed, s)
	}

	parts, err := splitProps(rest)
	if err != nil {
		return on, fmt.Errorf("%w: %q: %v", ErrMalformed, s, err)
	}

	seen := make(map[string]struct{}, len(parts))
	for i, p := range parts {
		if p == "*" {
			if on.propsWild {
				return on, fmt.Errorf("%w: %q repeats property wildcard", ErrMalformed, s)
			}
			on.propsWild = true
			continue
		}
		eq := strings.IndexByte(p, '=')
		if eq <= 0 {
			return on, fmt.Errorf("%w: property %d of %q is not key=value", ErrMalformed, i, s)
		}
		key, value := p[:eq], p[eq+1:]
		if strings.ContainsAny(key, ":,=*?\"") {
			return on, fmt.Errorf("%w: invalid key %q in %q", ErrMalformed, key, s)
		}
		if value == "" {
			return on, fmt.Errorf("%w: empty value for key %q in %q", ErrMalformed, key, s)
		}
		if _, dup := seen[key]; dup {
			return on, fmt.Errorf("%w: duplicate key %q in %q", ErrMalformed, key, s)
		}
		seen[key] = struct{}{}
		if !isQuoted(value) && strings.ContainsAny(value, "*?") {
			on.valueWild = true
		}
		on.props = append(on.props, Property{Key: key, Value: value})
	}

	if len(on.props) == 0 && !on.propsWild {
		return on, fmt.Errorf("%w: %q has no key properties", ErrMalformed, s)
	}
	return on, nil
}

// MustParse 用于常量对象名，解析失败直接 panic
func MustParse(s string) ObjectName {
	on, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return on
}

// splitProps 按逗号切分属性，引号内的逗号不切分
func splitProps(s string) ([]string, error) {
	var (
		parts   []string
		b       strings.Builder
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case inQuote && c == '\\' && i+1 < len(s):
			b.WriteByte(c)
			i++
			b.WriteByte(s[i])
		case c == '"':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == ',' && !inQuote:
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quoted value")
	}
	parts = append(parts, b.String())
	for _, p := range parts {
		if p == "" {
			return nil, errors.New("empty property")
		}
	}
	return parts, nil
}

func isQuoted(v string) bool {
	return len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"'
}

// Unquote 去掉带引号属性值的引号与转义
func Unquote(v string) string {
	if !isQuoted(v) {
		return v
	}
	inner := v[1 : len(v)-1]
	var b strings.Builder
	for i := 0; i < len(inner); i++ {
		if inner[i] == '\\' && i+1 < len(inner) {
			i++
			switch inner[i] {
			case 'n':
				b.WriteByte('\n')
			default:
				b.WriteByte(inner[i])
			}
			continue
		}
		b.WriteByte(inner[i])
	}
	return b.String()
}

// Domain 返回命名空间
func (o ObjectName) Domain() string { return o.domain }

// Properties 返回按声明顺序排列的属性副本
func (o ObjectName) Properties() []Property {
	out := make([]Property, len(o.props))
	copy(out, o.props)
	return out
}

// Property 查找属性值
func (o ObjectName) Property(key string) (string, bool) {
	for _, p := range o.props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// IsPattern 是否包含任何通配符
func (o ObjectName) IsPattern() bool {
	return o.domainWild || o.propsWild || o.valueWild
}

// IsZero 未初始化的对象名
func (o ObjectName) IsZero() bool {
	return o.domain == "" && len(o.props) == 0 && !o.propsWild
}

// CanonicalName 属性按 key 字典序排列的规范名称
func (o ObjectName) CanonicalName() string {
	props := o.Properties()
	sort.Slice(props, func(i, j int) bool { return props[i].Key < props[j].Key })
	return o.format(props)
}

// String 保持属性声明顺序
func (o ObjectName) String() string {
	return o.format(o.props)
}

func (o ObjectName) format(props []Property) string {
	var b strings.Builder
	b.WriteString(o.domain)
	b.WriteByte(':')
	for i, p := range props {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	if o.propsWild {
		if len(props) > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('*')
	}
	return b.String()
}
