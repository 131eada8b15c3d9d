// Package domain file: internal/core/domain/catalog_models.go
package domain

import "strings"

// ValueType 是 Opal 变量声明的值类型
type ValueType string

const (
	ValueTypeText     ValueType = "text"
	ValueTypeInteger  ValueType = "integer"
	ValueTypeDecimal  ValueType = "decimal"
	ValueTypeBoolean  ValueType = "boolean"
	ValueTypeDate     ValueType = "date"
	ValueTypeDateTime ValueType = "datetime"
	ValueTypeBinary   ValueType = "binary"
	ValueTypeLocale   ValueType = "locale"
)

// AliasAttribute 是用作列显示标签的变量属性名
const AliasAttribute = "alias"

// DefaultEntityType 在变量列表为空时使用
const DefaultEntityType = "Participant"

// TableRef 定位 Opal 中的一张表
type TableRef struct {
	Datasource string `json:"datasource"`
	Table      string `json:"table"`
}

// String 返回 "<datasource>.<table>" 形式
func (r TableRef) String() string {
	return r.Datasource + "." + r.Table
}

// Datasource 对应 Opal 的 DatasourceDto
type Datasource struct {
	Name   string   `json:"name"`
	Type   string   `json:"type,omitempty"`
	Tables []string `json:"table"`
	Views  []string `json:"view,omitempty"`
}

// Attribute 是变量上的一个命名属性
type Attribute struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Locale    string `json:"locale,omitempty"`
	Namespace string `json:"namespace,omitempty"`
}

// Variable 对应 Opal 的 VariableDto，即远端表中的一列
type Variable struct {
	Name         string      `json:"name"`
	ValueType    ValueType   `json:"valueType"`
	EntityType   string      `json:"entityType"`
	IsRepeatable bool        `json:"isRepeatable,omitempty"`
	Attributes   []Attribute `json:"attributes,omitempty"`
}

// Alias 返回 alias 属性值；不存在或为空白时返回 ""
func (v Variable) Alias() string {
	for _, attr := range v.Attributes {
		if attr.Name == AliasAttribute {
			if strings.TrimSpace(attr.Value) == "" {
				return ""
			}
			return attr.Value
		}
	}
	return ""
}

// EntityID 标识一行（一个观测单元）
type EntityID string

// VariableEntity 对应 Opal 的 VariableEntityDto
type VariableEntity struct {
	Identifier string `json:"identifier"`
	EntityType string `json:"entityType,omitempty"`
}

// Value 是值集中的一个可选标量
type Value struct {
	Value *string `json:"value,omitempty"`
}

// ValueSetRow 是一个实体的值集，Values 的顺序与所在页的 Variables 一致
type ValueSetRow struct {
	Identifier string  `json:"identifier"`
	Values     []Value `json:"values"`
}

// Clone 返回一份不共享底层切片的快照
func (r ValueSetRow) Clone() ValueSetRow {
	values := make([]Value, len(r.Values))
	for i, v := range r.Values {
		if v.Value != nil {
			s := *v.Value
			values[i] = Value{Value: &s}
		}
	}
	return ValueSetRow{Identifier: r.Identifier, Values: values}
}

// ValueSetPage 对应 Opal 的 ValueSetsDto，覆盖一段连续的实体偏移窗口。
// Variables 的顺序不保证与列元数据的顺序一致。
type ValueSetPage struct {
	EntityType string        `json:"entityType,omitempty"`
	Variables  []string      `json:"variables"`
	ValueSets  []ValueSetRow `json:"valueSets"`
}

// ValueSetsRequest 描述一次分页值集请求
type ValueSetsRequest struct {
	Select string
	Where  string
	Offset int
	Limit  int
}
