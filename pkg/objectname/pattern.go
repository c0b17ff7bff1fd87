package objectname

// Match 判断具体对象名 name 是否匹配模式 o。
// o 不是模式时退化为规范名称相等比较。
func (o ObjectName) Match(name ObjectName) bool {
	if name.IsPattern() {
		return false
	}
	if !wildcardMatch(o.domain, name.domain) {
		return false
	}

	// 模式中的每个属性都必须出现在 name 中
	for _, p := range o.props {
		v, ok := name.Property(p.Key)
		if !ok {
			return false
		}
		if isQuoted(p.Value) {
			if p.Value != v {
				return false
			}
			continue
		}
		if !wildcardMatch(p.Value, v) {
			return false
		}
	}

	// 没有 ",*" 时属性个数必须一致
	if !o.propsWild && len(o.props) != len(name.props) {
		return false
	}
	return true
}

// wildcardMatch 支持 '*'（任意长度）与 '?'（单字符）
func wildcardMatch(pattern, s string) bool {
	p, n := 0, 0
	star, mark := -1, 0
	for n < len(s) {
		switch {
		case p < len(pattern) && (pattern[p] == '?' || pattern[p] == s[n]):
			p++
			n++
		case p < len(pattern) && pattern[p] == '*':
			star = p
			mark = n
			p++
		case star >= 0:
			p = star + 1
			mark++
			n = mark
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
