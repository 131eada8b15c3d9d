// Package opal 将 Opal 的变量/值集服务以行列游标的形式暴露给报表引擎
// file: internal/adapter/datasource/opal/driver.go
package opal

import (
	"OpalBridge/internal/adapter/catalog/opalrest"
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"fmt"
	"strings"
	"time"
)

// DefaultPageSize 是值集分页窗口的默认长度
const DefaultPageSize = 100

// DataSetType 是驱动支持的唯一数据集类型
const DataSetType = "org.obiba.opal.oda.dataSet"

var valueTypeToNative = map[domain.ValueType]domain.NativeType{
	domain.ValueTypeText:     domain.NativeVarchar,
	domain.ValueTypeInteger:  domain.NativeInteger,
	domain.ValueTypeDecimal:  domain.NativeDecimal,
	domain.ValueTypeBoolean:  domain.NativeBoolean,
	domain.ValueTypeDate:     domain.NativeDate,
	domain.ValueTypeDateTime: domain.NativeTimestamp,
	domain.ValueTypeBinary:   domain.NativeBinary,
	domain.ValueTypeLocale:   domain.NativeVarchar,
}

// NativeTypeFor 将变量值类型映射为原生类型码，未知类型返回 ErrUnknownValueType
func NativeTypeFor(vt domain.ValueType) (domain.NativeType, error) {
	t, ok := valueTypeToNative[vt]
	if !ok {
		return 0, fmt.Errorf("%w: '%s'", port.ErrUnknownValueType, string(vt))
	}
	return t, nil
}

// NativeTypeName 返回原生类型码的名称
func NativeTypeName(t domain.NativeType) (string, error) {
	name := t.String()
	if name == "" {
		return "", fmt.Errorf("%w: 未知的原生类型码 %d", port.ErrInvalidArgument, int(t))
	}
	return name, nil
}

// CatalogFactory 根据连接属性创建目录客户端，每次调用都会重新认证
type CatalogFactory func(url, user, password string) (port.Catalog, error)

// Driver 负责创建连接
type Driver struct {
	NewCatalog CatalogFactory
	PageSize   int
}

// NewDriver 返回一个使用 opalrest 客户端的驱动
func NewDriver(pageSize int, template opalrest.Options) *Driver {
	return &Driver{
		PageSize: pageSize,
		NewCatalog: func(url, user, password string) (port.Catalog, error) {
			opts := template
			opts.BaseURL, opts.User, opts.Password = url, user, password
			if opts.Timeout <= 0 {
				opts.Timeout = 30 * time.Second
			}
			return opalrest.New(opts)
		},
	}
}

// Connect 按连接属性 (URL/USER/PASSWORD) 打开一个连接
func (d *Driver) Connect(props map[string]string) (*Connection, error) {
	if props == nil {
		return nil, fmt.Errorf("%w: 未提供连接属性", port.ErrConnection)
	}
	url := strings.TrimSpace(props[domain.ConnURL])
	if url == "" {
		return nil, fmt.Errorf("%w: 缺少 %s 属性", port.ErrConnection, domain.ConnURL)
	}
	if d.NewCatalog == nil {
		return nil, fmt.Errorf("%w: 驱动未配置目录客户端", port.ErrConnection)
	}
	catalog, err := d.NewCatalog(url, props[domain.ConnUser], props[domain.ConnPassword])
	if err != nil {
		return nil, err
	}
	return NewConnection(catalog, d.PageSize), nil
}
