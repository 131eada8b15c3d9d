// file: internal/adapter/datasource/opal/query.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var _ port.SchemaProvider = (*Query)(nil)

var validate = validator.New()

// Query 持有查询属性并负责 schema 解析与执行。
// 属性变化会丢弃已派生的元数据并关闭由它打开的游标。
type Query struct {
	conn         *Connection
	props        map[string]string
	preparedText string
	maxRows      int

	metadata *ResultSetMetadata
	cursors  []*ResultSet
}

func newQuery(conn *Connection) *Query {
	return &Query{conn: conn, props: make(map[string]string)}
}

// Prepare 记录查询文本；属性中缺少 DATASOURCE/TABLE 时从文本中补全
func (q *Query) Prepare(queryText string) error {
	if strings.TrimSpace(queryText) != "" && (q.props[domain.PropDatasource] == "" || q.props[domain.PropTable] == "") {
		desc, err := ParseQueryText(queryText)
		if err != nil {
			return err
		}
		for k, v := range desc.Properties() {
			if q.props[k] == "" {
				q.props[k] = v
			}
		}
	}
	q.preparedText = queryText
	q.invalidate()
	return nil
}

// SetProperty 设置查询属性 (DATASOURCE/TABLE/SELECT/WHERE)
func (q *Query) SetProperty(name, value string) {
	if q.props[name] == value {
		return
	}
	q.props[name] = value
	q.invalidate()
}

// SetProperties 批量设置查询属性
func (q *Query) SetProperties(props map[string]string) {
	for k, v := range props {
		q.SetProperty(k, v)
	}
}

// Properties 返回属性的拷贝
func (q *Query) Properties() map[string]string {
	return maps.Clone(q.props)
}

// Descriptor 返回当前属性对应的描述符
func (q *Query) Descriptor() domain.QueryDescriptor {
	return domain.DescriptorFromProperties(q.props)
}

func (q *Query) invalidate() {
	q.metadata = nil
	for _, rs := range q.cursors {
		_ = rs.Close()
	}
	q.cursors = nil
}

func validateDescriptor(desc domain.QueryDescriptor) error {
	if err := validate.Struct(desc); err != nil {
		return fmt.Errorf("%w: 查询需要 %s 与 %s: %v", port.ErrInvalidArgument, domain.PropDatasource, domain.PropTable, err)
	}
	return nil
}

// ResolveColumns 获取经 SELECT 过滤的变量并派生列元数据
func (q *Query) ResolveColumns(ctx context.Context, desc domain.QueryDescriptor) (port.ColumnMetadata, error) {
	return q.resolve(ctx, desc)
}

func (q *Query) resolve(ctx context.Context, desc domain.QueryDescriptor) (*ResultSetMetadata, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}
	catalog, err := q.conn.catalogClient()
	if err != nil {
		return nil, err
	}
	variables, err := catalog.Variables(ctx, desc.Ref(), desc.Select)
	if err != nil {
		return nil, fmt.Errorf("%w: 表 '%s': %w", port.ErrSchemaFetch, desc.Ref(), err)
	}
	return NewResultSetMetadata(variables), nil
}

// Metadata 返回当前描述符的列元数据。获取失败时清空先前派生的元数据再返回错误。
func (q *Query) Metadata(ctx context.Context) (*ResultSetMetadata, error) {
	if q.metadata != nil {
		return q.metadata, nil
	}
	md, err := q.resolve(ctx, q.Descriptor())
	if err != nil {
		q.metadata = nil
		return nil, err
	}
	q.metadata = md
	return md, nil
}

func (q *Query) SetMaxRows(max int) error {
	if max < 0 {
		return fmt.Errorf("%w: maxRows 不能为负 (%d)", port.ErrInvalidArgument, max)
	}
	q.maxRows = max
	return nil
}

func (q *Query) MaxRows() int {
	return q.maxRows
}

// Execute 打开一个新游标。元数据与实体列表在此处获取，值集按需分页获取。
func (q *Query) Execute(ctx context.Context) (*ResultSet, error) {
	desc := q.Descriptor()
	md, err := q.Metadata(ctx)
	if err != nil {
		return nil, err
	}
	catalog, err := q.conn.catalogClient()
	if err != nil {
		return nil, err
	}
	rs := NewResultSet(md, newPageCache(catalog, desc, q.conn.pageSize))
	if err := rs.SetMaxRows(ctx, q.maxRows); err != nil {
		return nil, err
	}
	q.cursors = append(slices.DeleteFunc(q.cursors, func(c *ResultSet) bool {
		return c.state == stateClosed
	}), rs)
	slog.Debug("查询已执行", "table", desc.Ref().String(), "columns", md.ColumnCount(), "max_rows", rs.MaxRows())
	return rs, nil
}

// EntityCount 返回 WHERE 过滤后的实体数量
func (q *Query) EntityCount(ctx context.Context) (int, error) {
	desc := q.Descriptor()
	if err := validateDescriptor(desc); err != nil {
		return 0, err
	}
	catalog, err := q.conn.catalogClient()
	if err != nil {
		return 0, err
	}
	list, err := catalog.Entities(ctx, desc.Ref(), desc.Where)
	if err != nil {
		return 0, fmt.Errorf("%w: 获取 '%s' 的实体列表: %w", port.ErrPageFetch, desc.Ref(), err)
	}
	return len(list), nil
}

// ValueSet 获取单个实体在 SELECT 过滤下的值集
func (q *Query) ValueSet(ctx context.Context, identifier string) (*domain.ValueSetPage, error) {
	desc := q.Descriptor()
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}
	catalog, err := q.conn.catalogClient()
	if err != nil {
		return nil, err
	}
	page, err := catalog.ValueSet(ctx, desc.Ref(), identifier, desc.Select)
	if err != nil {
		return nil, fmt.Errorf("%w: 实体 '%s': %w", port.ErrPageFetch, identifier, err)
	}
	return page, nil
}

// EffectiveQueryText 返回准备好的查询文本，未准备时由属性生成
func (q *Query) EffectiveQueryText() string {
	if q.preparedText != "" {
		return q.preparedText
	}
	return BuildQueryText(q.Descriptor())
}

// Cancel 不支持：请求一旦发出便无法取消
func (q *Query) Cancel() error {
	return fmt.Errorf("%w: cancel", port.ErrNotSupported)
}

// SetSortSpec 不支持排序下推
func (q *Query) SetSortSpec(any) error {
	return fmt.Errorf("%w: sort spec", port.ErrNotSupported)
}

// SetSpecification 不支持查询规格下推
func (q *Query) SetSpecification(any) error {
	return fmt.Errorf("%w: query specification", port.ErrNotSupported)
}

// Close 清除准备好的文本并关闭打开的游标
func (q *Query) Close() error {
	q.preparedText = ""
	q.invalidate()
	return nil
}
