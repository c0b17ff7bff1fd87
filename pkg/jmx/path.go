package jmx

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrBadPath 子键无法解析回路径
var ErrBadPath = errors.New("malformed sub-key path")

// SegmentKind 路径段类型
type SegmentKind int

const (
	SegField SegmentKind = iota // 复合字段 / 表格列
	SegIndex                    // 数组下标
	SegRow                      // 表格行标识
)

// Segment 子键路径中的一段
type Segment struct {
	Kind  SegmentKind
	Name  string
	Index int
	Row   []string
}

// Path 从属性值根到标量的路径
type Path []Segment

// escaped characters never appear unescaped inside a segment
const pathSpecials = `\.[]{},`

func escapeSegment(s string) string {
	if !strings.ContainsAny(s, pathSpecials) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(pathSpecials, s[i]) >= 0 {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// String 编码规则：字段用 '.' 连接，下标为 "[n]"，表格行为 "{v1,v2}"
func (p Path) String() string {
	var b strings.Builder
	for i, seg := range p {
		switch seg.Kind {
		case SegField:
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(escapeSegment(seg.Name))
		case SegIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		case SegRow:
			b.WriteByte('{')
			for j, v := range seg.Row {
				if j > 0 {
					b.WriteByte(',')
				}
				b.WriteString(escapeSegment(v))
			}
			b.WriteByte('}')
		}
	}
	return b.String()
}

func (p Path) withField(name string) Path {
	return append(p[:len(p):len(p)], Segment{Kind: SegField, Name: name})
}

func (p Path) withIndex(i int) Path {
	return append(p[:len(p):len(p)], Segment{Kind: SegIndex, Index: i})
}

func (p Path) withRow(index []string) Path {
	return append(p[:len(p):len(p)], Segment{Kind: SegRow, Row: index})
}

// ParsePath 把 Path.String 的输出还原为路径
func ParsePath(s string) (Path, error) {
	var (
		p   Path
		pos int
	)
	readName := func(stops string) (string, error) {
		var b strings.Builder
		for pos < len(s) {
			c := s[pos]
			if c == '\\' {
				if pos+1 >= len(s) {
					return "", fmt.Errorf("%w: dangling escape in %q", ErrBadPath, s)
				}
				b.WriteByte(s[pos+1])
				pos += 2
				continue
			}
			if strings.IndexByte(stops, c) >= 0 {
				break
			}
			if strings.IndexByte(pathSpecials, c) >= 0 {
				return "", fmt.Errorf("%w: unexpected %q at %d in %q", ErrBadPath, c, pos, s)
			}
			b.WriteByte(c)
			pos++
		}
		return b.String(), nil
	}

	first := true
	for pos < len(s) {
		switch s[pos] {
		case '[':
			end := strings.IndexByte(s[pos:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated index in %q", ErrBadPath, s)
			}
			n, err := strconv.Atoi(s[pos+1 : pos+end])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: bad index in %q", ErrBadPath, s)
			}
			p = append(p, Segment{Kind: SegIndex, Index: n})
			pos += end + 1
		case '{':
			pos++
			var row []string
			for {
				v, err := readName(",}")
				if err != nil {
					return nil, err
				}
				row = append(row, v)
				if pos >= len(s) {
					return nil, fmt.Errorf("%w: unterminated row in %q", ErrBadPath, s)
				}
				if s[pos] == '}' {
					pos++
					break
				}
				pos++ // ','
			}
			p = append(p, Segment{Kind: SegRow, Row: row})
		case '.':
			if first {
				return nil, fmt.Errorf("%w: leading '.' in %q", ErrBadPath, s)
			}
			pos++
			name, err := readName(".[{")
			if err != nil {
				return nil, err
			}
			p = append(p, Segment{Kind: SegField, Name: name})
		default:
			if !first {
				return nil, fmt.Errorf("%w: missing separator at %d in %q", ErrBadPath, pos, s)
			}
			name, err := readName(".[{")
			if err != nil {
				return nil, err
			}
			p = append(p, Segment{Kind: SegField, Name: name})
		}
		first = false
	}
	return p, nil
}
