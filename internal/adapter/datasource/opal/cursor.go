// file: internal/adapter/datasource/opal/cursor.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"OpalBridge/internal/observe"
	"context"
	"fmt"
	"slices"
)

var _ port.Cursor = (*ResultSet)(nil)

type cursorState int

const (
	stateUnopened cursorState = iota
	stateIterating
	stateExhausted
	stateClosed
)

func (s cursorState) String() string {
	switch s {
	case stateUnopened:
		return "UNOPENED"
	case stateIterating:
		return "ITERATING"
	case stateExhausted:
		return "EXHAUSTED"
	case stateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// ResultSet 是只进游标：实体列表取一次，值集按窗口按需获取。
// 单个 ResultSet 不支持并发访问。
type ResultSet struct {
	metadata *ResultSetMetadata
	source   port.RowSource

	state   cursorState
	maxRows int
	offset  int
	current *domain.ValueSetRow

	// columnToValue[i] 为第 i 列在值集向量中的位置，首次取行时计算
	columnToValue []int
	wasNull       bool
}

// NewResultSet 在给定元数据与行源之上创建游标
func NewResultSet(metadata *ResultSetMetadata, source port.RowSource) *ResultSet {
	return &ResultSet{metadata: metadata, source: source}
}

func (rs *ResultSet) Metadata() port.ColumnMetadata {
	return rs.metadata
}

// ResultSetMetadata 返回具体的元数据类型
func (rs *ResultSet) ResultSetMetadata() *ResultSetMetadata {
	return rs.metadata
}

// SetMaxRows 将行数上限限制为 min(max, 实体总数)，0 表示不限制。
// 只能在第一次 Next 之前调用。
func (rs *ResultSet) SetMaxRows(ctx context.Context, max int) error {
	if max < 0 {
		return fmt.Errorf("%w: maxRows 不能为负 (%d)", port.ErrInvalidArgument, max)
	}
	if rs.state != stateUnopened {
		return fmt.Errorf("%w: 游标处于 %s 状态，无法设置 maxRows", port.ErrInvalidState, rs.state)
	}
	entities, err := rs.source.Entities(ctx)
	if err != nil {
		return err
	}
	rs.maxRows = min(max, len(entities))
	return nil
}

// MaxRows 返回生效的行数上限
func (rs *ResultSet) MaxRows() int {
	return rs.maxRows
}

// Next 前进一行。耗尽或关闭后总是返回 false，且没有副作用。
func (rs *ResultSet) Next(ctx context.Context) (bool, error) {
	if rs.state == stateExhausted || rs.state == stateClosed {
		return false, nil
	}
	entities, err := rs.source.Entities(ctx)
	if err != nil {
		return false, err
	}
	if (rs.maxRows == 0 || rs.offset < rs.maxRows) && rs.offset < len(entities) {
		row, err := rs.source.ValueSetAt(ctx, rs.offset)
		if err != nil {
			return false, err
		}
		if rs.columnToValue == nil {
			if err := rs.buildColumnIndex(); err != nil {
				return false, err
			}
		}
		rs.current = &row
		rs.offset++
		rs.state = stateIterating
		observe.RowsIterated.Inc()
		return true, nil
	}
	rs.current = nil
	rs.state = stateExhausted
	return false, nil
}

// buildColumnIndex 按首页的变量顺序为每个变量列定位值向量中的位置
func (rs *ResultSet) buildColumnIndex() error {
	order := rs.source.Variables()
	count := rs.metadata.ColumnCount()
	index := make([]int, count+1)
	index[0], index[1] = -1, -1
	for i := 2; i <= count; i++ {
		name, _ := rs.metadata.ColumnName(i)
		pos := slices.Index(order, name)
		if pos < 0 {
			return fmt.Errorf("%w: 列 '%s' 不在值集变量列表中", port.ErrSchemaMismatch, name)
		}
		index[i] = pos
	}
	rs.columnToValue = index
	return nil
}

// Row 返回已读取的行数
func (rs *ResultSet) Row() int {
	return rs.offset
}

// EntityCount 返回过滤后的实体总数，不受 maxRows 影响
func (rs *ResultSet) EntityCount(ctx context.Context) (int, error) {
	entities, err := rs.source.Entities(ctx)
	if err != nil {
		return 0, err
	}
	return len(entities), nil
}

// Current 返回当前行的快照
func (rs *ResultSet) Current() (domain.ValueSetRow, bool) {
	if rs.current == nil {
		return domain.ValueSetRow{}, false
	}
	return rs.current.Clone(), true
}

// Value 返回列的原始字符串值。第 1 列为实体标识，从不为 nil。
func (rs *ResultSet) Value(index int) (*string, error) {
	if err := rs.metadata.checkIndex(index); err != nil {
		return nil, err
	}
	if rs.state != stateIterating || rs.current == nil {
		return nil, fmt.Errorf("%w: 当前没有可读取的行 (%s)", port.ErrInvalidState, rs.state)
	}
	var out *string
	if index == 1 {
		id := rs.current.Identifier
		out = &id
	} else {
		pos := rs.columnToValue[index]
		if pos < len(rs.current.Values) && rs.current.Values[pos].Value != nil {
			v := *rs.current.Values[pos].Value
			out = &v
		}
	}
	rs.wasNull = out == nil
	return out, nil
}

// WasNull 报告最近一次读取的值是否为空
func (rs *ResultSet) WasNull() bool {
	return rs.wasNull
}

func (rs *ResultSet) FindColumn(name string) int {
	return rs.metadata.FindColumn(name)
}

// Close 重置偏移量、分页缓存与实体列表，可重复调用
func (rs *ResultSet) Close() error {
	rs.source.Reset()
	rs.offset = 0
	rs.current = nil
	rs.columnToValue = nil
	rs.wasNull = false
	rs.state = stateClosed
	return nil
}
