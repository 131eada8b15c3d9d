// file: internal/adapter/datasource/opal/cursor_test.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultSet_Scenario(t *testing.T) {
	ctx := context.Background()
	rs, err := openCursor(ctx, scenarioCatalog(), 100, 0)
	require.NoError(t, err)

	md := rs.Metadata()
	assert.Equal(t, 4, md.ColumnCount())
	name, _ := md.ColumnName(1)
	assert.Equal(t, "Participant ID", name)

	ok, err := rs.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	id, err := rs.String(1)
	require.NoError(t, err)
	assert.Equal(t, "E1", id)
	age, err := rs.Int(2)
	require.NoError(t, err)
	assert.Equal(t, int64(42), age)
	sex, err := rs.String(3)
	require.NoError(t, err)
	assert.Equal(t, "F", sex)
	bmi, err := rs.Double(4)
	require.NoError(t, err)
	assert.InDelta(t, 22.5, bmi, 1e-9)

	ok, err = rs.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	age, err = rs.Int(2)
	require.NoError(t, err)
	assert.Equal(t, int64(0), age)
	assert.True(t, rs.WasNull())
	sex, err = rs.StringByName("sex")
	require.NoError(t, err)
	assert.Equal(t, "M", sex)
	assert.False(t, rs.WasNull())

	ok, err = rs.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResultSet_MaxRows(t *testing.T) {
	ctx := context.Background()
	f := largeCatalog(5)
	rs, err := openCursor(ctx, f, 100, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, rs.MaxRows())

	ok, err := rs.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = rs.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("clamped to entity count", func(t *testing.T) {
		rs, err := openCursor(ctx, largeCatalog(3), 100, 10)
		require.NoError(t, err)
		assert.Equal(t, 3, rs.MaxRows())
	})

	t.Run("only before first next", func(t *testing.T) {
		rs, err := openCursor(ctx, largeCatalog(3), 100, 0)
		require.NoError(t, err)
		_, err = rs.Next(ctx)
		require.NoError(t, err)
		assert.ErrorIs(t, rs.SetMaxRows(ctx, 1), port.ErrInvalidState)
	})

	t.Run("negative", func(t *testing.T) {
		rs, err := openCursor(ctx, largeCatalog(3), 100, 0)
		require.NoError(t, err)
		assert.ErrorIs(t, rs.SetMaxRows(ctx, -1), port.ErrInvalidArgument)
	})

	t.Run("entity count ignores max rows", func(t *testing.T) {
		rs, err := openCursor(ctx, largeCatalog(5), 100, 2)
		require.NoError(t, err)
		n, err := rs.EntityCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 5, n)
		assert.Equal(t, 2, rs.MaxRows())
	})
}

func TestResultSet_RowIdentifiersInEntityOrder(t *testing.T) {
	ctx := context.Background()
	f := largeCatalog(250)
	rs, err := openCursor(ctx, f, 100, 0)
	require.NoError(t, err)

	for r := 0; r < 250; r++ {
		ok, err := rs.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		id, err := rs.String(1)
		require.NoError(t, err)
		assert.Equal(t, f.entities[r], id)
		n, err := rs.Int(2)
		require.NoError(t, err)
		assert.Equal(t, int64(r), n)
		assert.Equal(t, r+1, rs.Row())
	}
	assert.Len(t, f.valueSetsCalls, 3)
}

func TestResultSet_ExhaustionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := largeCatalog(3)
	rs, err := openCursor(ctx, f, 2, 0)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		ok, err := rs.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)
	}
	calls := len(f.valueSetsCalls)
	for i := 0; i < 5; i++ {
		ok, err := rs.Next(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, calls, len(f.valueSetsCalls))
	assert.Equal(t, 3, rs.Row())

	_, err = rs.Value(1)
	assert.ErrorIs(t, err, port.ErrInvalidState)
}

func TestResultSet_ColumnOrderReconciliation(t *testing.T) {
	ctx := context.Background()
	f := scenarioCatalog()
	f.pageOrder = []string{"sex", "bmi", "age"}
	rs, err := openCursor(ctx, f, 10, 0)
	require.NoError(t, err)

	ok, err := rs.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	for col, want := range map[int]string{2: "42", 3: "F", 4: "22.5"} {
		v, err := rs.Value(col)
		require.NoError(t, err)
		require.NotNil(t, v)
		assert.Equal(t, want, *v, "column %d", col)
	}
}

func TestResultSet_MissingVariableInPage(t *testing.T) {
	ctx := context.Background()
	f := scenarioCatalog()
	f.pageOrder = []string{"sex", "age"}
	rs, err := openCursor(ctx, f, 10, 0)
	require.NoError(t, err)

	_, err = rs.Next(ctx)
	require.ErrorIs(t, err, port.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "bmi")
}

func TestResultSet_ValueBounds(t *testing.T) {
	ctx := context.Background()
	rs, err := openCursor(ctx, scenarioCatalog(), 10, 0)
	require.NoError(t, err)

	_, err = rs.Value(1)
	assert.ErrorIs(t, err, port.ErrInvalidState, "Next 之前读取应失败")

	_, err = rs.Next(ctx)
	require.NoError(t, err)
	for _, idx := range []int{0, 5, -1} {
		_, err := rs.Value(idx)
		assert.ErrorIs(t, err, port.ErrIndexOutOfRange, "index %d", idx)
	}
	_, err = rs.StringByName("weight")
	assert.ErrorIs(t, err, port.ErrIndexOutOfRange)
	assert.Equal(t, -1, rs.FindColumn("weight"))
	assert.Equal(t, 2, rs.FindColumn("age"))
}

func TestResultSet_TypedAccessors(t *testing.T) {
	ctx := context.Background()
	f := &fakeCatalog{
		variables: []domain.Variable{
			{Name: "flag", ValueType: domain.ValueTypeBoolean},
			{Name: "born", ValueType: domain.ValueTypeDate},
			{Name: "seen", ValueType: domain.ValueTypeDateTime},
			{Name: "amount", ValueType: domain.ValueTypeDecimal},
			{Name: "count", ValueType: domain.ValueTypeInteger},
			{Name: "photo", ValueType: domain.ValueTypeBinary},
		},
		entities: []string{"A", "B", "C"},
		values: map[string]map[string]*string{
			"A": {"flag": str("TRUE"), "born": str("1980-02-29"), "seen": str("2012-03-05T10:11:12.123-0500"),
				"amount": str("12345678901234567890.125"), "count": str("7"), "photo": str("iVBORw0KGgo=")},
			"B": {"flag": str("yes"), "born": str("29/02/1980"), "seen": str("2012-03-05T10:11:12.123+01:00"),
				"amount": str("abc"), "count": str("7.5")},
			"C": {"seen": str("2012-03-05 10:11:12")},
		},
	}
	rs, err := openCursor(ctx, f, 10, 0)
	require.NoError(t, err)

	t.Run("row A", func(t *testing.T) {
		ok, err := rs.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		b, err := rs.Boolean(2)
		require.NoError(t, err)
		assert.True(t, b)

		d, err := rs.Date(3)
		require.NoError(t, err)
		assert.Equal(t, time.Date(1980, 2, 29, 0, 0, 0, 0, time.UTC), d)

		ts, err := rs.Timestamp(4)
		require.NoError(t, err)
		assert.True(t, ts.Equal(time.Date(2012, 3, 5, 15, 11, 12, 123000000, time.UTC)))

		dec, err := rs.BigDecimal(5)
		require.NoError(t, err)
		require.True(t, dec.Valid)
		assert.True(t, dec.Decimal.Equal(decimal.RequireFromString("12345678901234567890.125")))

		obj, err := rs.Object(6)
		require.NoError(t, err)
		assert.Equal(t, int64(7), obj)

		obj, err = rs.Object(7)
		require.NoError(t, err)
		assert.Equal(t, "iVBORw0KGgo=", obj)

		_, err = rs.Time(4)
		assert.ErrorIs(t, err, port.ErrNotSupported)
		_, err = rs.Blob(7)
		assert.ErrorIs(t, err, port.ErrNotSupported)
		_, err = rs.Clob(1)
		assert.ErrorIs(t, err, port.ErrNotSupported)
	})

	t.Run("row B", func(t *testing.T) {
		ok, err := rs.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		b, err := rs.Boolean(2)
		require.NoError(t, err)
		assert.False(t, b)

		_, err = rs.Date(3)
		assert.ErrorIs(t, err, port.ErrMalformedDate)

		ts, err := rs.Timestamp(4)
		require.NoError(t, err)
		assert.True(t, ts.Equal(time.Date(2012, 3, 5, 9, 11, 12, 123000000, time.UTC)))

		_, err = rs.BigDecimal(5)
		assert.ErrorIs(t, err, port.ErrNumericParse)
		_, err = rs.Int(6)
		assert.ErrorIs(t, err, port.ErrNumericParse)
		_, err = rs.Double(5)
		assert.ErrorIs(t, err, port.ErrNumericParse)
	})

	t.Run("row C nulls and bad timestamp", func(t *testing.T) {
		ok, err := rs.Next(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		_, err = rs.Timestamp(4)
		assert.ErrorIs(t, err, port.ErrMalformedTimestamp)

		b, err := rs.Boolean(2)
		require.NoError(t, err)
		assert.False(t, b)
		assert.True(t, rs.WasNull())

		dec, err := rs.BigDecimal(5)
		require.NoError(t, err)
		assert.False(t, dec.Valid)

		d, err := rs.Double(6)
		require.NoError(t, err)
		assert.Zero(t, d)

		obj, err := rs.Object(3)
		require.NoError(t, err)
		assert.Nil(t, obj)
	})
}

func TestResultSet_Close(t *testing.T) {
	ctx := context.Background()
	f := largeCatalog(4)
	rs, err := openCursor(ctx, f, 2, 0)
	require.NoError(t, err)

	_, err = rs.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, rs.Close())
	require.NoError(t, rs.Close())

	assert.Equal(t, 0, rs.Row())
	ok, err := rs.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = rs.Value(1)
	assert.ErrorIs(t, err, port.ErrInvalidState)
}

func TestResultSet_PageFetchErrorAbortsNext(t *testing.T) {
	ctx := context.Background()
	f := largeCatalog(3)
	rs, err := openCursor(ctx, f, 2, 0)
	require.NoError(t, err)

	f.ValueSetsErr = fmt.Errorf("HTTP请求失败: 状态码 %d", 502)
	ok, err := rs.Next(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, port.ErrPageFetch)
	assert.Equal(t, 0, rs.Row())

	f.ValueSetsErr = nil
	ok, err = rs.Next(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseTimestamp_Layouts(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2020-01-02T03:04:05.250+0100", time.Date(2020, 1, 2, 2, 4, 5, 250000000, time.UTC), true},
		{"2020-01-02T03:04:05.250+01:00", time.Date(2020, 1, 2, 2, 4, 5, 250000000, time.UTC), true},
		{"2020-01-02T03:04:05.000Z", time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC), true},
		// 毫秒是模式的一部分，缺少时拒绝
		{"2020-01-02T03:04:05+0100", time.Time{}, false},
		{"2020-01-02T03:04:05Z", time.Time{}, false},
		{"2020-01-02", time.Time{}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := parseTimestamp(tc.in)
			if !tc.ok {
				assert.ErrorIs(t, err, port.ErrMalformedTimestamp)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Equal(tc.want), "got %s", got)
		})
	}
}
