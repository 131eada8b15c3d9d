// file: internal/adapter/datasource/opal/connection.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"context"
	"fmt"
	"sync"
)

// DataSetMetadata 描述连接的能力
type DataSetMetadata struct {
	DataSourceProductName string `json:"data_source_product_name"`
	DataSetType           string `json:"data_set_type"`
	MaxQueries            int    `json:"max_queries"` // 0 表示不限制
	SupportsTransactions  bool   `json:"supports_transactions"`
	SupportsSortSpec      bool   `json:"supports_sort_spec"`
}

// Connection 是一次设计或执行会话与 Opal 的连接。关闭后重新打开需经 Driver.Connect 重新认证。
type Connection struct {
	mu       sync.RWMutex
	catalog  port.Catalog
	pageSize int
	open     bool
}

// NewConnection 基于已认证的目录客户端创建一个打开的连接
func NewConnection(catalog port.Catalog, pageSize int) *Connection {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Connection{catalog: catalog, pageSize: pageSize, open: catalog != nil}
}

func (c *Connection) catalogClient() (port.Catalog, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.open {
		return nil, fmt.Errorf("%w: 连接已关闭", port.ErrConnection)
	}
	return c.catalog, nil
}

func (c *Connection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.open
}

// PageSize 返回该连接上游标使用的分页窗口长度
func (c *Connection) PageSize() int {
	return c.pageSize
}

// NewQuery 创建一个查询；连接只支持一种数据集类型，dataSetType 被忽略
func (c *Connection) NewQuery() (*Query, error) {
	if _, err := c.catalogClient(); err != nil {
		return nil, err
	}
	return newQuery(c), nil
}

// Datasources 列出 Opal 中的数据源及其表
func (c *Connection) Datasources(ctx context.Context) ([]domain.Datasource, error) {
	catalog, err := c.catalogClient()
	if err != nil {
		return nil, err
	}
	list, err := catalog.Datasources(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: 获取数据源列表: %w", port.ErrSchemaFetch, err)
	}
	return list, nil
}

func (c *Connection) Metadata() DataSetMetadata {
	return DataSetMetadata{
		DataSourceProductName: "Opal",
		DataSetType:           DataSetType,
		MaxQueries:            0,
	}
}

// Close 可重复调用
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}
