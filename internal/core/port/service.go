// Package port file: internal/core/port/service.go
package port

import (
	"OpalBridge/internal/core/domain"
	"context"
	"errors"
)

var ErrDesignNotFound = errors.New("数据集设计不存在")

// DesignStore 持久化命名的数据集设计（DATASOURCE/TABLE/SELECT/WHERE）
type DesignStore interface {
	Save(ctx context.Context, design *domain.DataSetDesign) error
	Get(ctx context.Context, id string) (*domain.DataSetDesign, error)
	List(ctx context.Context) ([]*domain.DataSetDesign, error)
	Delete(ctx context.Context, id string) error
}

// QueryService 是 HTTP 网关与命令行使用的查询门面
type QueryService interface {
	Ready() bool
	Datasources(ctx context.Context) ([]domain.Datasource, error)
	Schema(ctx context.Context, desc domain.QueryDescriptor) (*domain.TableSchema, error)
	Query(ctx context.Context, desc domain.QueryDescriptor, maxRows int) (*domain.QueryResult, error)
	QueryByText(ctx context.Context, queryText string, maxRows int) (*domain.QueryResult, error)
	EntityValues(ctx context.Context, desc domain.QueryDescriptor, identifier string) (*domain.EntityValues, error)

	SaveDesign(ctx context.Context, design *domain.DataSetDesign) error
	Design(ctx context.Context, id string) (*domain.DataSetDesign, error)
	Designs(ctx context.Context) ([]*domain.DataSetDesign, error)
	DeleteDesign(ctx context.Context, id string) error
	ExecuteDesign(ctx context.Context, id string, maxRows int) (*domain.QueryResult, error)
}
