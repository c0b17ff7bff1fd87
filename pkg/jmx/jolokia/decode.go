package jolokia

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jmx-collector/pkg/jmx"
)

const tabularType = "TabularData"

// decodeValue converts a JSON value into the jmx tagged union. typeHint is the
// attribute type reported by a list request and may be empty.
func decodeValue(raw any, typeHint string) jmx.Value {
	if strings.Contains(typeHint, tabularType) {
		if m, ok := raw.(map[string]any); ok {
			return decodeTabular(m)
		}
	}
	return decodeGeneric(raw)
}

func decodeGeneric(raw any) jmx.Value {
	switch t := raw.(type) {
	case nil:
		return jmx.Scalar{}
	case bool, string:
		return jmx.Scalar{V: t}
	case json.Number:
		return jmx.Scalar{V: number(t)}
	case float64:
		return jmx.Scalar{V: t}
	case map[string]any:
		fields := make(map[string]jmx.Value, len(t))
		for k, v := range t {
			fields[k] = decodeGeneric(v)
		}
		return jmx.NewComposite(fields)
	case []any:
		a := jmx.Array{Elems: make([]jmx.Value, 0, len(t))}
		for _, e := range t {
			a.Elems = append(a.Elems, decodeGeneric(e))
		}
		return a
	default:
		return jmx.Opaque{TypeName: fmt.Sprintf("%T", raw), V: raw}
	}
}

// number 整数保持 int64，其余按 float64
func number(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// decodeTabular handles the three shapes Jolokia uses for TabularData:
// {"indexNames":[...],"values":[...]} for complex indexes, nested maps keyed by
// index values, and plain key->value maps for MXBean maps.
func decodeTabular(m map[string]any) jmx.Value {
	if names, ok := m["indexNames"].([]any); ok {
		if values, ok := m["values"].([]any); ok {
			return tabularFromRows(names, values)
		}
	}
	t := jmx.Tabular{}
	collectRows(&t, nil, m)
	return t
}

func tabularFromRows(names, values []any) jmx.Tabular {
	t := jmx.Tabular{}
	for _, n := range names {
		t.IndexNames = append(t.IndexNames, fmt.Sprint(n))
	}
	for _, v := range values {
		row, ok := v.(map[string]any)
		if !ok {
			continue
		}
		r := jmx.Row{Columns: compositeFields(row)}
		for _, idx := range t.IndexNames {
			r.Index = append(r.Index, scalarString(row[idx]))
		}
		t.Rows = append(t.Rows, r)
	}
	return t
}

func collectRows(t *jmx.Tabular, prefix []string, m map[string]any) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		index := append(prefix[:len(prefix):len(prefix)], k)
		child, isMap := m[k].(map[string]any)
		switch {
		case !isMap:
			// MXBean map: key -> value
			t.Rows = append(t.Rows, jmx.Row{
				Index: index,
				Columns: []jmx.Field{
					{Name: "key", Value: jmx.Scalar{V: k}},
					{Name: "value", Value: decodeGeneric(m[k])},
				},
			})
		case looksLikeRow(child):
			t.Rows = append(t.Rows, jmx.Row{Index: index, Columns: compositeFields(child)})
		default:
			collectRows(t, index, child)
		}
	}
}

// looksLikeRow 至少有一个非 map 的列即视为一行
func looksLikeRow(m map[string]any) bool {
	if len(m) == 0 {
		return true
	}
	for _, v := range m {
		if _, ok := v.(map[string]any); !ok {
			return true
		}
	}
	return false
}

func compositeFields(m map[string]any) []jmx.Field {
	fields := make(map[string]jmx.Value, len(m))
	for k, v := range m {
		fields[k] = decodeGeneric(v)
	}
	return jmx.NewComposite(fields).Fields
}

func scalarString(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
