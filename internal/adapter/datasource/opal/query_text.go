// file: internal/adapter/datasource/opal/query_text.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"fmt"
	"regexp"
	"strings"
)

// 查询文本形如: select <变量过滤或 *> from '<datasource>.<table>' where <实体过滤>
var queryTextPattern = regexp.MustCompile(`(?is)^\s*select\s+(.+?)\s+from\s+'([^']+)'(?:\s+where\s+(.+?))?\s*$`)

// BuildQueryText 由描述符生成查询文本，过滤表达式原样放入双引号中
func BuildQueryText(desc domain.QueryDescriptor) string {
	var b strings.Builder
	b.WriteString("select ")
	if strings.TrimSpace(desc.Select) != "" {
		b.WriteString(`"` + desc.Select + `"`)
	} else {
		b.WriteString("*")
	}
	b.WriteString(" from '" + desc.Datasource + "." + desc.Table + "'")
	if strings.TrimSpace(desc.Where) != "" {
		b.WriteString(` where "` + desc.Where + `"`)
	}
	return b.String()
}

// ParseQueryText 从查询文本还原描述符，过滤表达式不在本地解析
func ParseQueryText(text string) (domain.QueryDescriptor, error) {
	m := queryTextPattern.FindStringSubmatch(text)
	if m == nil {
		return domain.QueryDescriptor{}, fmt.Errorf("%w: 无法识别的查询文本 '%s'", port.ErrInvalidArgument, text)
	}
	ds, table, ok := strings.Cut(m[2], ".")
	if !ok || ds == "" || table == "" {
		return domain.QueryDescriptor{}, fmt.Errorf("%w: 表引用 '%s' 应为 '<datasource>.<table>'", port.ErrInvalidArgument, m[2])
	}
	desc := domain.QueryDescriptor{Datasource: ds, Table: table}
	if sel := unquote(m[1]); sel != "*" {
		desc.Select = sel
	}
	desc.Where = unquote(m[3])
	return desc, nil
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
