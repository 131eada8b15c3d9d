// Package domain file: internal/core/domain/native_types.go
package domain

// NativeType 是报表引擎消费的原生列类型码，取值与 JDBC 类型常量一致
type NativeType int

const (
	NativeBinary    NativeType = -2
	NativeDecimal   NativeType = 3
	NativeInteger   NativeType = 4
	NativeVarchar   NativeType = 12
	NativeBoolean   NativeType = 16
	NativeDate      NativeType = 91
	NativeTimestamp NativeType = 93
)

var nativeTypeNames = map[NativeType]string{
	NativeBinary:    "BINARY",
	NativeDecimal:   "DECIMAL",
	NativeInteger:   "INTEGER",
	NativeVarchar:   "VARCHAR",
	NativeBoolean:   "BOOLEAN",
	NativeDate:      "DATE",
	NativeTimestamp: "TIMESTAMP",
}

// String 返回类型码的名称，未知类型码返回 ""
func (t NativeType) String() string {
	return nativeTypeNames[t]
}
