// file: internal/adapter/catalog/opalrest/uri.go
package opalrest

import (
	"net/url"
	"strings"
)

// uriBuilder 以路径段和非空查询参数的方式构造 Opal 资源 URI
type uriBuilder struct {
	base     *url.URL
	segments []string
	query    url.Values
}

func newURIBuilder(base *url.URL) *uriBuilder {
	return &uriBuilder{base: base, query: url.Values{}}
}

func (b *uriBuilder) segment(segments ...string) *uriBuilder {
	b.segments = append(b.segments, segments...)
	return b
}

// queryNonEmpty 仅在值非空时添加查询参数，空过滤条件从不以空字符串发送
func (b *uriBuilder) queryNonEmpty(pairs ...string) *uriBuilder {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] != "" {
			b.query.Add(pairs[i], pairs[i+1])
		}
	}
	return b
}

func (b *uriBuilder) build() *url.URL {
	u := *b.base
	escaped := make([]string, len(b.segments))
	for i, s := range b.segments {
		escaped[i] = url.PathEscape(s)
	}
	raw := strings.TrimSuffix(u.EscapedPath(), "/") + "/" + strings.Join(escaped, "/")
	if p, err := url.PathUnescape(raw); err == nil {
		u.Path = p
		u.RawPath = raw
	}
	u.RawQuery = b.query.Encode()
	return &u
}
