// Package domain file: internal/core/domain/result_models.go
package domain

// ColumnInfo 描述结果集中的一列，Index 从 1 开始，第 1 列为实体标识
type ColumnInfo struct {
	Index      int        `json:"index"`
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	NativeType NativeType `json:"native_type"`
	TypeName   string     `json:"type_name"`
	ValueType  ValueType  `json:"value_type,omitempty"`
	Repeatable bool       `json:"repeatable,omitempty"`
}

// TableSchema 是一张表在给定过滤条件下的列定义与实体数量
type TableSchema struct {
	Table            TableRef     `json:"table"`
	EntityType       string       `json:"entity_type"`
	IdentifierColumn string       `json:"identifier_column"`
	Columns          []ColumnInfo `json:"columns"`
	EntityCount      int          `json:"entity_count"`
}

// QueryResult 是一次查询收集到的全部行，行内值按列顺序排列
type QueryResult struct {
	Columns []ColumnInfo `json:"columns"`
	Rows    [][]any      `json:"rows"`
	// Limited 表示服务端行数上限截断了结果，仍有实体未返回
	Limited bool `json:"limited"`
}

// EntityValues 是单个实体按变量名索引的值
type EntityValues struct {
	Identifier string             `json:"identifier"`
	EntityType string             `json:"entity_type"`
	Values     map[string]*string `json:"values"`
}
