// file: internal/adapter/datasource/opal/metadata.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"fmt"
	"slices"
)

var _ port.ColumnMetadata = (*ResultSetMetadata)(nil)

// Nullability 描述列是否可空
type Nullability int

const (
	NoNulls Nullability = iota
	Nullable
	NullableUnknown
)

const defaultDisplayLength = 8

// ResultSetMetadata 由变量列表派生：第 1 列为实体标识列，其后每个变量一列
type ResultSetMetadata struct {
	variables []domain.Variable
}

// NewResultSetMetadata 以变量列表的一份拷贝构造元数据
func NewResultSetMetadata(variables []domain.Variable) *ResultSetMetadata {
	return &ResultSetMetadata{variables: slices.Clone(variables)}
}

// Variables 返回变量列表的拷贝
func (m *ResultSetMetadata) Variables() []domain.Variable {
	return slices.Clone(m.variables)
}

// EntityType 取第一个变量的实体类型，列表为空或实体类型缺失时为 Participant
func (m *ResultSetMetadata) EntityType() string {
	if m == nil || len(m.variables) == 0 || m.variables[0].EntityType == "" {
		return domain.DefaultEntityType
	}
	return m.variables[0].EntityType
}

func (m *ResultSetMetadata) EntityIdentifierColumnName() string {
	return m.EntityType() + " ID"
}

func (m *ResultSetMetadata) ColumnCount() int {
	return len(m.variables) + 1
}

func (m *ResultSetMetadata) checkIndex(index int) error {
	if index < 1 || index > m.ColumnCount() {
		return fmt.Errorf("%w: %d 不在 [1, %d] 内", port.ErrIndexOutOfRange, index, m.ColumnCount())
	}
	return nil
}

func (m *ResultSetMetadata) variable(index int) (domain.Variable, error) {
	if err := m.checkIndex(index); err != nil {
		return domain.Variable{}, err
	}
	if index == 1 {
		return domain.Variable{}, fmt.Errorf("%w: 第 1 列是实体标识列", port.ErrInvalidArgument)
	}
	return m.variables[index-2], nil
}

func (m *ResultSetMetadata) ColumnName(index int) (string, error) {
	if err := m.checkIndex(index); err != nil {
		return "", err
	}
	if index == 1 {
		return m.EntityIdentifierColumnName(), nil
	}
	return m.variables[index-2].Name, nil
}

// ColumnLabel 优先返回变量的 alias 属性，为空白时回退到列名
func (m *ResultSetMetadata) ColumnLabel(index int) (string, error) {
	if err := m.checkIndex(index); err != nil {
		return "", err
	}
	if index == 1 {
		return m.EntityIdentifierColumnName(), nil
	}
	v := m.variables[index-2]
	if alias := v.Alias(); alias != "" {
		return alias, nil
	}
	return v.Name, nil
}

func (m *ResultSetMetadata) ColumnType(index int) (domain.NativeType, error) {
	if err := m.checkIndex(index); err != nil {
		return 0, err
	}
	if index == 1 {
		return domain.NativeVarchar, nil
	}
	v, err := m.variable(index)
	if err != nil {
		return 0, err
	}
	t, err := NativeTypeFor(v.ValueType)
	if err != nil {
		return 0, fmt.Errorf("列 '%s': %w", v.Name, err)
	}
	return t, nil
}

func (m *ResultSetMetadata) ColumnTypeName(index int) (string, error) {
	t, err := m.ColumnType(index)
	if err != nil {
		return "", err
	}
	return NativeTypeName(t)
}

func (m *ResultSetMetadata) ColumnDisplayLength(index int) (int, error) {
	if err := m.checkIndex(index); err != nil {
		return 0, err
	}
	return defaultDisplayLength, nil
}

// Precision 与 Scale 对 Opal 变量未知，固定为 -1
func (m *ResultSetMetadata) Precision(index int) (int, error) {
	if err := m.checkIndex(index); err != nil {
		return 0, err
	}
	return -1, nil
}

func (m *ResultSetMetadata) Scale(index int) (int, error) {
	if err := m.checkIndex(index); err != nil {
		return 0, err
	}
	return -1, nil
}

func (m *ResultSetMetadata) IsNullable(index int) (Nullability, error) {
	if err := m.checkIndex(index); err != nil {
		return NullableUnknown, err
	}
	return NullableUnknown, nil
}

// ColumnNames 返回全部列名，按位置排列
func (m *ResultSetMetadata) ColumnNames() []string {
	names := make([]string, 0, m.ColumnCount())
	names = append(names, m.EntityIdentifierColumnName())
	for _, v := range m.variables {
		names = append(names, v.Name)
	}
	return names
}

// FindColumn 区分大小写线性查找列名，不存在时返回 -1
func (m *ResultSetMetadata) FindColumn(name string) int {
	if m == nil {
		return -1
	}
	for i := 1; i <= m.ColumnCount(); i++ {
		if n, _ := m.ColumnName(i); n == name {
			return i
		}
	}
	return -1
}
