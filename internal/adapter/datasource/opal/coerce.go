// file: internal/adapter/datasource/opal/coerce.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// 时间戳按 yyyy-MM-dd'T'HH:mm:ss.SSSZZ 解析，同时接受带冒号的 ISO-8601 偏移
var timestampLayouts = []string{
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05.000Z07:00",
}

func (rs *ResultSet) String(index int) (string, error) {
	v, err := rs.Value(index)
	if err != nil || v == nil {
		return "", err
	}
	return *v, nil
}

// Int 对空值返回 0
func (rs *ResultSet) Int(index int) (int64, error) {
	v, err := rs.Value(index)
	if err != nil || v == nil {
		return 0, err
	}
	n, err := strconv.ParseInt(*v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: 第 %d 列的值 '%s' 不是整数", port.ErrNumericParse, index, *v)
	}
	return n, nil
}

// Double 对空值返回 0
func (rs *ResultSet) Double(index int) (float64, error) {
	v, err := rs.Value(index)
	if err != nil || v == nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(*v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: 第 %d 列的值 '%s' 不是浮点数", port.ErrNumericParse, index, *v)
	}
	return f, nil
}

// BigDecimal 对空值返回 Valid=false
func (rs *ResultSet) BigDecimal(index int) (decimal.NullDecimal, error) {
	v, err := rs.Value(index)
	if err != nil || v == nil {
		return decimal.NullDecimal{}, err
	}
	d, err := decimal.NewFromString(*v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: 第 %d 列的值 '%s' 不是十进制数", port.ErrNumericParse, index, *v)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

// Boolean 仅在值为 "true"（不区分大小写）时返回 true，空值为 false
func (rs *ResultSet) Boolean(index int) (bool, error) {
	v, err := rs.Value(index)
	if err != nil || v == nil {
		return false, err
	}
	return strings.EqualFold(*v, "true"), nil
}

// Date 对空值返回零值时间
func (rs *ResultSet) Date(index int) (time.Time, error) {
	v, err := rs.Value(index)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	t, err := time.Parse(dateLayout, *v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: 第 %d 列的值 '%s'", port.ErrMalformedDate, index, *v)
	}
	return t, nil
}

// Timestamp 对空值返回零值时间
func (rs *ResultSet) Timestamp(index int) (time.Time, error) {
	v, err := rs.Value(index)
	if err != nil || v == nil {
		return time.Time{}, err
	}
	return parseTimestamp(*v)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: '%s' 不符合 yyyy-MM-dd'T'HH:mm:ss.SSSZZ", port.ErrMalformedTimestamp, s)
}

func (rs *ResultSet) Time(int) (time.Time, error) {
	return time.Time{}, fmt.Errorf("%w: Time", port.ErrNotSupported)
}

func (rs *ResultSet) Blob(int) ([]byte, error) {
	return nil, fmt.Errorf("%w: Blob", port.ErrNotSupported)
}

func (rs *ResultSet) Clob(int) (string, error) {
	return "", fmt.Errorf("%w: Clob", port.ErrNotSupported)
}

// Object 按列的原生类型返回转换后的值，空值为 nil
func (rs *ResultSet) Object(index int) (any, error) {
	t, err := rs.metadata.ColumnType(index)
	if err != nil {
		return nil, err
	}
	v, err := rs.Value(index)
	if err != nil || v == nil {
		return nil, err
	}
	switch t {
	case domain.NativeInteger:
		return rs.Int(index)
	case domain.NativeDecimal:
		d, err := rs.BigDecimal(index)
		if err != nil {
			return nil, err
		}
		return d.Decimal, nil
	case domain.NativeBoolean:
		return rs.Boolean(index)
	case domain.NativeDate:
		return rs.Date(index)
	case domain.NativeTimestamp:
		return rs.Timestamp(index)
	default:
		return *v, nil
	}
}

// 以列名访问的变体；列不存在时 FindColumn 返回 -1，随后报告 ErrIndexOutOfRange

func (rs *ResultSet) ValueByName(name string) (*string, error) {
	return rs.Value(rs.FindColumn(name))
}

func (rs *ResultSet) StringByName(name string) (string, error) {
	return rs.String(rs.FindColumn(name))
}

func (rs *ResultSet) IntByName(name string) (int64, error) {
	return rs.Int(rs.FindColumn(name))
}

func (rs *ResultSet) DoubleByName(name string) (float64, error) {
	return rs.Double(rs.FindColumn(name))
}

func (rs *ResultSet) ObjectByName(name string) (any, error) {
	return rs.Object(rs.FindColumn(name))
}
