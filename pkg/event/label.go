package event

import (
	"strings"
)

// PropertyLookup 按属性键取托管对象属性值
type PropertyLookup interface {
	Property(key string) (string, bool)
}

// ResolveLabel 把模板中的 {key} 占位符替换为对象属性值。
// 替换值先清洗（仅保留字母、数字、'_'、'-'，其余替换为 '_'）再转小写；
// 找不到对应属性的占位符原样保留。
func ResolveLabel(template string, props PropertyLookup) string {
	if !strings.Contains(template, "{") {
		return template
	}

	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); {
		open := strings.IndexByte(template[i:], '{')
		if open < 0 {
			b.WriteString(template[i:])
			break
		}
		open += i
		end := strings.IndexByte(template[open+1:], '}')
		if end < 0 {
			b.WriteString(template[i:])
			break
		}
		end += open + 1

		b.WriteString(template[i:open])
		key := template[open+1 : end]
		if v, ok := props.Property(key); ok && key != "" {
			b.WriteString(sanitize(v))
		} else {
			b.WriteString(template[open : end+1])
		}
		i = end + 1
	}
	return b.String()
}

func sanitize(v string) string {
	out := []byte(strings.ToLower(v))
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}
