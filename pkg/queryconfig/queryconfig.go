package queryconfig

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/jmx-collector/pkg/jmx"
)

// TypeCustom 使用用户提供的文件而不是内置预设
const TypeCustom = "custom"

// ErrQueryConfig 查询定义文件缺失、不可读或格式错误
var ErrQueryConfig = errors.New("invalid query configuration")

//go:embed presets/*.json
var presets embed.FS

// GLAttribute 一个需要输出的属性（可选子键与输出标签模板）
type GLAttribute struct {
	Name  string `json:"name"`
	Key   string `json:"key,omitempty"`
	Label string `json:"label,omitempty"`
	// Alias 旧版本字段名，Label 为空时使用
	Alias string `json:"alias,omitempty"`
}

// LookupKey 属性在查询内的查找键：name 或 name.key
func (a GLAttribute) LookupKey() string {
	return LookupKey(a.Name, a.Key)
}

// Template 输出标签模板，未配置时退化为查找键
func (a GLAttribute) Template() string {
	switch {
	case a.Label != "":
		return a.Label
	case a.Alias != "":
		return a.Alias
	}
	return a.LookupKey()
}

// LookupKey 由属性名与展平子键组成查找键
func LookupKey(attribute, subKey string) string {
	if subKey == "" {
		return attribute
	}
	return attribute + "." + subKey
}

// GLQuery 一个对象名模式及其属性声明
type GLQuery struct {
	Object     string        `json:"object"`
	Attributes []GLAttribute `json:"attributes"`

	index map[string]GLAttribute
}

// Attribute 按查找键找到属性声明；重复声明时后者覆盖前者
func (q *GLQuery) Attribute(lookupKey string) (GLAttribute, bool) {
	if q.index != nil {
		a, ok := q.index[lookupKey]
		return a, ok
	}
	var (
		found GLAttribute
		ok    bool
	)
	for _, a := range q.Attributes {
		if a.LookupKey() == lookupKey {
			found, ok = a, true
		}
	}
	return found, ok
}

func (q *GLQuery) buildIndex() {
	q.index = make(map[string]GLAttribute, len(q.Attributes))
	for _, a := range q.Attributes {
		q.index[a.LookupKey()] = a
	}
}

// Query 转换为查询引擎使用的 jmx.Query（属性按声明顺序去重）
func (q *GLQuery) Query() jmx.Query {
	names := make([]string, 0, len(q.Attributes))
	for _, a := range q.Attributes {
		names = append(names, a.Name)
	}
	return jmx.NewQuery(q.Object, names...)
}

// GLQueryConfig 静态查询定义
type GLQueryConfig struct {
	Type    string     `json:"type"`
	Queries []*GLQuery `json:"queries"`
}

// JMXQueries 按文件顺序返回 jmx.Query
func (c *GLQueryConfig) JMXQueries() []jmx.Query {
	out := make([]jmx.Query, 0, len(c.Queries))
	for _, q := range c.Queries {
		out = append(out, q.Query())
	}
	return out
}

// Parse 解析并校验查询定义
func Parse(data []byte) (*GLQueryConfig, error) {
	var c GLQueryConfig
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryConfig, err)
	}
	if len(c.Queries) == 0 {
		return nil, fmt.Errorf("%w: no queries defined", ErrQueryConfig)
	}
	for i, q := range c.Queries {
		if q == nil || strings.TrimSpace(q.Object) == "" {
			return nil, fmt.Errorf("%w: query %d has an empty object pattern", ErrQueryConfig, i)
		}
		for j, a := range q.Attributes {
			if a.Name == "" {
				return nil, fmt.Errorf("%w: query %d attribute %d has no name", ErrQueryConfig, i, j)
			}
		}
		q.buildIndex()
	}
	return &c, nil
}

// Load 读取内置预设（typ 为预设名）或自定义文件（typ 为 custom）
func Load(typ, customPath string) (*GLQueryConfig, error) {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(typ, TypeCustom) {
		if customPath == "" {
			return nil, fmt.Errorf("%w: custom type requires a file path", ErrQueryConfig)
		}
		data, err = os.ReadFile(customPath)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrQueryConfig, err)
		}
	} else {
		data, err = presets.ReadFile(path.Join("presets", strings.ToLower(typ)+".json"))
		if err != nil {
			return nil, fmt.Errorf("%w: unknown preset %q (available: %s)",
				ErrQueryConfig, typ, strings.Join(Presets(), ", "))
		}
	}

	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if c.Type == "" {
		c.Type = strings.ToLower(typ)
	}
	return c, nil
}

// Presets 内置预设名称
func Presets() []string {
	entries, err := presets.ReadDir("presets")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	return names
}
