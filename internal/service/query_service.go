// file: internal/service/query_service.go
package service

import (
	"OpalBridge/internal/adapter/datasource/opal"
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// 静态断言，确保 QueryService 实现了 port.QueryService 接口
var _ port.QueryService = (*QueryService)(nil)

// QueryService 在一个 Opal 连接之上提供数据源浏览、schema 解析、查询执行与设计管理。
// 每个请求使用独立的 Query，因此可被并发调用。
type QueryService struct {
	conn     *opal.Connection
	designs  port.DesignStore
	rowLimit int
}

// NewQueryService 创建查询服务。rowLimit > 0 时限制单次查询返回的行数。
func NewQueryService(conn *opal.Connection, designs port.DesignStore, rowLimit int) (*QueryService, error) {
	if conn == nil {
		return nil, errors.New("QueryService 初始化失败: 连接不能为 nil")
	}
	if designs == nil {
		return nil, errors.New("QueryService 初始化失败: 设计库不能为 nil")
	}
	return &QueryService{conn: conn, designs: designs, rowLimit: rowLimit}, nil
}

// Ready 报告底层连接是否可用
func (s *QueryService) Ready() bool {
	return s.conn.IsOpen()
}

func (s *QueryService) Datasources(ctx context.Context) ([]domain.Datasource, error) {
	return s.conn.Datasources(ctx)
}

func (s *QueryService) newQuery(desc domain.QueryDescriptor) (*opal.Query, error) {
	q, err := s.conn.NewQuery()
	if err != nil {
		return nil, err
	}
	q.SetProperties(desc.Properties())
	return q, nil
}

// Schema 并行解析列元数据与过滤后的实体数量
func (s *QueryService) Schema(ctx context.Context, desc domain.QueryDescriptor) (*domain.TableSchema, error) {
	var (
		md    *opal.ResultSetMetadata
		count int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		q, err := s.newQuery(desc)
		if err != nil {
			return err
		}
		defer q.Close()
		md, err = q.Metadata(gctx)
		return err
	})
	g.Go(func() error {
		q, err := s.newQuery(desc)
		if err != nil {
			return err
		}
		defer q.Close()
		count, err = q.EntityCount(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	columns, err := describeColumns(md)
	if err != nil {
		return nil, err
	}
	return &domain.TableSchema{
		Table:            desc.Ref(),
		EntityType:       md.EntityType(),
		IdentifierColumn: md.EntityIdentifierColumnName(),
		Columns:          columns,
		EntityCount:      count,
	}, nil
}

func describeColumns(md *opal.ResultSetMetadata) ([]domain.ColumnInfo, error) {
	variables := md.Variables()
	columns := make([]domain.ColumnInfo, 0, md.ColumnCount())
	for i := 1; i <= md.ColumnCount(); i++ {
		name, _ := md.ColumnName(i)
		label, _ := md.ColumnLabel(i)
		nt, err := md.ColumnType(i)
		if err != nil {
			return nil, err
		}
		col := domain.ColumnInfo{Index: i, Name: name, Label: label, NativeType: nt, TypeName: nt.String()}
		if i > 1 {
			v := variables[i-2]
			col.ValueType, col.Repeatable = v.ValueType, v.IsRepeatable
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// effectiveMaxRows 合并调用方与服务端的行数上限，0 表示不限制
func (s *QueryService) effectiveMaxRows(maxRows int) (int, bool) {
	if s.rowLimit > 0 && (maxRows == 0 || maxRows > s.rowLimit) {
		return s.rowLimit, true
	}
	return maxRows, false
}

// Stream 执行查询，先以列定义调用 header，再按实体顺序对每一行调用 visit
func (s *QueryService) Stream(ctx context.Context, desc domain.QueryDescriptor, maxRows int,
	header func([]domain.ColumnInfo), visit func(row []any) error) error {
	_, err := s.stream(ctx, desc, maxRows, header, visit)
	return err
}

// stream 与 Stream 相同，另外报告服务端上限是否截断了结果：
// 上限生效、返回行数等于上限且实体总数多于上限时为 true
func (s *QueryService) stream(ctx context.Context, desc domain.QueryDescriptor, maxRows int,
	header func([]domain.ColumnInfo), visit func(row []any) error) (bool, error) {
	if maxRows < 0 {
		return false, fmt.Errorf("%w: maxRows 不能为负 (%d)", port.ErrInvalidArgument, maxRows)
	}
	limit, capped := s.effectiveMaxRows(maxRows)

	q, err := s.newQuery(desc)
	if err != nil {
		return false, err
	}
	defer q.Close()
	if err := q.SetMaxRows(limit); err != nil {
		return false, err
	}
	rs, err := q.Execute(ctx)
	if err != nil {
		return false, err
	}
	defer rs.Close()

	columns, err := describeColumns(rs.ResultSetMetadata())
	if err != nil {
		return false, err
	}
	if header != nil {
		header(columns)
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := rs.Next(ctx)
		if err != nil {
			return false, err
		}
		if !ok {
			break
		}
		row := make([]any, len(columns))
		for i := range columns {
			if row[i], err = rs.Object(i + 1); err != nil {
				return false, fmt.Errorf("读取第 %d 行第 %d 列失败: %w", rs.Row(), i+1, err)
			}
		}
		if err := visit(row); err != nil {
			return false, err
		}
	}
	slog.Debug("查询完成", "table", desc.Ref().String(), "rows", rs.Row())

	if !capped || rs.Row() < limit {
		return false, nil
	}
	total, err := rs.EntityCount(ctx)
	if err != nil {
		return false, err
	}
	return total > limit, nil
}

// Query 执行查询并收集全部行
func (s *QueryService) Query(ctx context.Context, desc domain.QueryDescriptor, maxRows int) (*domain.QueryResult, error) {
	res := &domain.QueryResult{Rows: make([][]any, 0)}
	limited, err := s.stream(ctx, desc, maxRows,
		func(cols []domain.ColumnInfo) { res.Columns = cols },
		func(row []any) error {
			res.Rows = append(res.Rows, row)
			return nil
		})
	if err != nil {
		return nil, err
	}
	res.Limited = limited
	return res, nil
}

// QueryByText 解析查询文本后执行
func (s *QueryService) QueryByText(ctx context.Context, queryText string, maxRows int) (*domain.QueryResult, error) {
	desc, err := opal.ParseQueryText(queryText)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, desc, maxRows)
}

// EntityValues 获取单个实体在 SELECT 过滤下的值，按变量名索引
func (s *QueryService) EntityValues(ctx context.Context, desc domain.QueryDescriptor, identifier string) (*domain.EntityValues, error) {
	q, err := s.newQuery(desc)
	if err != nil {
		return nil, err
	}
	defer q.Close()
	page, err := q.ValueSet(ctx, identifier)
	if err != nil {
		return nil, err
	}

	out := &domain.EntityValues{Identifier: identifier, EntityType: page.EntityType, Values: make(map[string]*string, len(page.Variables))}
	if len(page.ValueSets) == 0 {
		return nil, fmt.Errorf("%w: 实体 '%s' 没有值集", port.ErrPageFetch, identifier)
	}
	row := page.ValueSets[0]
	for i, name := range page.Variables {
		if i < len(row.Values) {
			out.Values[name] = row.Values[i].Value
		} else {
			out.Values[name] = nil
		}
	}
	return out, nil
}

// SaveDesign 补全查询文本或描述符后持久化设计
func (s *QueryService) SaveDesign(ctx context.Context, design *domain.DataSetDesign) error {
	if design == nil {
		return fmt.Errorf("%w: 设计不能为空", port.ErrInvalidArgument)
	}
	if design.Descriptor.Table == "" && strings.TrimSpace(design.QueryText) != "" {
		desc, err := opal.ParseQueryText(design.QueryText)
		if err != nil {
			return err
		}
		design.Descriptor = desc
	}
	if strings.TrimSpace(design.QueryText) == "" {
		design.QueryText = opal.BuildQueryText(design.Descriptor)
	}
	return s.designs.Save(ctx, design)
}

func (s *QueryService) Design(ctx context.Context, id string) (*domain.DataSetDesign, error) {
	return s.designs.Get(ctx, id)
}

func (s *QueryService) Designs(ctx context.Context) ([]*domain.DataSetDesign, error) {
	return s.designs.List(ctx)
}

func (s *QueryService) DeleteDesign(ctx context.Context, id string) error {
	return s.designs.Delete(ctx, id)
}

// ExecuteDesign 按已保存设计的描述符执行查询
func (s *QueryService) ExecuteDesign(ctx context.Context, id string, maxRows int) (*domain.QueryResult, error) {
	design, err := s.designs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Query(ctx, design.Descriptor, maxRows)
}
