// Package port file: internal/core/port/datasource.go
package port

import (
	"OpalBridge/internal/core/domain"
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Standard errors
var (
	ErrConnection         = errors.New("Opal 连接失败")
	ErrSchemaFetch        = errors.New("获取变量 schema 失败")
	ErrPageFetch          = errors.New("获取值集分页失败")
	ErrUnknownValueType   = errors.New("无法识别的变量值类型")
	ErrMalformedTimestamp = errors.New("时间戳格式错误")
	ErrMalformedDate      = errors.New("日期格式错误")
	ErrNumericParse       = errors.New("数值解析失败")
	ErrIndexOutOfRange    = errors.New("列索引越界")
	ErrNotSupported       = errors.New("不支持的操作")
	ErrSchemaMismatch     = errors.New("值集变量顺序与列元数据不一致")
	ErrInvalidState       = errors.New("游标状态无效")
	ErrInvalidArgument    = errors.New("参数无效")
	// ErrNotFound 表示 Opal 中不存在请求的数据源、表或实体
	ErrNotFound = errors.New("Opal 资源不存在")
)

// Catalog 是 Opal REST 目录客户端的能力边界：按 URI 取资源并反序列化为 DTO
type Catalog interface {
	Datasources(ctx context.Context) ([]domain.Datasource, error)
	Variables(ctx context.Context, ref domain.TableRef, script string) ([]domain.Variable, error)
	Entities(ctx context.Context, ref domain.TableRef, script string) ([]domain.VariableEntity, error)
	ValueSets(ctx context.Context, ref domain.TableRef, req domain.ValueSetsRequest) (*domain.ValueSetPage, error)
	ValueSet(ctx context.Context, ref domain.TableRef, identifier, script string) (*domain.ValueSetPage, error)
}

// ColumnMetadata 描述结果集的列，位置从 1 开始，第 1 列恒为实体标识列
type ColumnMetadata interface {
	ColumnCount() int
	ColumnName(index int) (string, error)
	ColumnLabel(index int) (string, error)
	ColumnType(index int) (domain.NativeType, error)
	ColumnTypeName(index int) (string, error)
	EntityIdentifierColumnName() string
}

// SchemaProvider 根据查询描述符解析列元数据
type SchemaProvider interface {
	ResolveColumns(ctx context.Context, desc domain.QueryDescriptor) (ColumnMetadata, error)
}

// RowSource 按偏移量向前提供值集行
type RowSource interface {
	Entities(ctx context.Context) ([]domain.EntityID, error)
	ValueSetAt(ctx context.Context, offset int) (domain.ValueSetRow, error)
	Variables() []string
	Reset()
}

// Cursor 是面向报表引擎的只进结果集
type Cursor interface {
	Metadata() ColumnMetadata
	SetMaxRows(ctx context.Context, max int) error
	Next(ctx context.Context) (bool, error)
	Row() int
	Value(index int) (*string, error)
	String(index int) (string, error)
	Int(index int) (int64, error)
	Double(index int) (float64, error)
	BigDecimal(index int) (decimal.NullDecimal, error)
	Boolean(index int) (bool, error)
	Date(index int) (time.Time, error)
	Timestamp(index int) (time.Time, error)
	Object(index int) (any, error)
	WasNull() bool
	FindColumn(name string) int
	Close() error
}
