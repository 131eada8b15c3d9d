// Package domain file: internal/core/domain/design_models.go
package domain

import "time"

// 查询属性键，与设计会话交换
const (
	PropDatasource = "DATASOURCE"
	PropTable      = "TABLE"
	PropSelect     = "SELECT"
	PropWhere      = "WHERE"
)

// 连接属性键
const (
	ConnURL      = "URL"
	ConnUser     = "USER"
	ConnPassword = "PASSWORD"
)

// QueryDescriptor 参数化 schema 解析与行获取。准备完成后视为不可变。
type QueryDescriptor struct {
	Datasource string `json:"datasource" validate:"required"`
	Table      string `json:"table" validate:"required"`
	Select     string `json:"select,omitempty"`
	Where      string `json:"where,omitempty"`
}

// Ref 返回描述符所指向的表
func (d QueryDescriptor) Ref() TableRef {
	return TableRef{Datasource: d.Datasource, Table: d.Table}
}

// Properties 以属性键的形式导出描述符，空值省略
func (d QueryDescriptor) Properties() map[string]string {
	props := map[string]string{
		PropDatasource: d.Datasource,
		PropTable:      d.Table,
	}
	if d.Select != "" {
		props[PropSelect] = d.Select
	}
	if d.Where != "" {
		props[PropWhere] = d.Where
	}
	return props
}

// DescriptorFromProperties 从属性键还原描述符
func DescriptorFromProperties(props map[string]string) QueryDescriptor {
	return QueryDescriptor{
		Datasource: props[PropDatasource],
		Table:      props[PropTable],
		Select:     props[PropSelect],
		Where:      props[PropWhere],
	}
}

// DataSetDesign 是一个持久化的命名数据集设计
type DataSetDesign struct {
	ID         string          `json:"id"`
	Name       string          `json:"name" validate:"required"`
	QueryText  string          `json:"query_text"`
	Descriptor QueryDescriptor `json:"descriptor"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
