// file: internal/adapter/datasource/opal/page_cache_test.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCache_WindowFetches(t *testing.T) {
	ctx := context.Background()
	f := largeCatalog(250)
	c := newPageCache(f, testDescriptor(), 100)

	for r := 0; r < 250; r++ {
		before := len(f.valueSetsCalls)
		row, err := c.ValueSetAt(ctx, r)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("E%04d", r), row.Identifier)

		fetched := len(f.valueSetsCalls) - before
		if r%100 == 0 {
			assert.Equal(t, 1, fetched, "offset %d 应触发一次分页获取", r)
		} else {
			assert.Equal(t, 0, fetched, "offset %d 不应触发分页获取", r)
		}
	}

	require.Len(t, f.valueSetsCalls, 3)
	for i, req := range f.valueSetsCalls {
		assert.Equal(t, i*100, req.Offset)
		assert.Equal(t, 100, req.Limit)
	}
}

func TestPageCache_PassesFilters(t *testing.T) {
	f := largeCatalog(3)
	desc := testDescriptor()
	desc.Select = "name().matches(/^n/)"
	desc.Where = "$('n').gt(0)"
	c := newPageCache(f, desc, 10)

	_, err := c.Entities(context.Background())
	require.NoError(t, err)
	_, err = c.ValueSetAt(context.Background(), 0)
	require.NoError(t, err)

	assert.Equal(t, []string{desc.Where}, f.entitiesCalls)
	require.Len(t, f.valueSetsCalls, 1)
	assert.Equal(t, domain.ValueSetsRequest{Select: desc.Select, Where: desc.Where, Offset: 0, Limit: 10}, f.valueSetsCalls[0])
}

func TestPageCache_EntitiesFetchedOnce(t *testing.T) {
	f := largeCatalog(5)
	c := newPageCache(f, testDescriptor(), 10)
	for i := 0; i < 3; i++ {
		list, err := c.Entities(context.Background())
		require.NoError(t, err)
		assert.Len(t, list, 5)
	}
	assert.Len(t, f.entitiesCalls, 1)

	c.Reset()
	_, err := c.Entities(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.entitiesCalls, 2)
}

func TestPageCache_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("backward access", func(t *testing.T) {
		c := newPageCache(largeCatalog(30), testDescriptor(), 10)
		for r := 0; r <= 15; r++ {
			_, err := c.ValueSetAt(ctx, r)
			require.NoError(t, err)
		}
		_, err := c.ValueSetAt(ctx, 5)
		assert.ErrorIs(t, err, port.ErrInvalidState)
	})

	t.Run("transport failure", func(t *testing.T) {
		f := largeCatalog(5)
		f.ValueSetsErr = errors.New("connection reset")
		c := newPageCache(f, testDescriptor(), 10)
		_, err := c.ValueSetAt(ctx, 0)
		require.ErrorIs(t, err, port.ErrPageFetch)
		assert.Contains(t, err.Error(), "connection reset")
	})

	t.Run("entities failure", func(t *testing.T) {
		f := largeCatalog(5)
		f.EntitiesErr = errors.New("timeout")
		c := newPageCache(f, testDescriptor(), 10)
		_, err := c.Entities(ctx)
		assert.ErrorIs(t, err, port.ErrPageFetch)
	})

	t.Run("short page", func(t *testing.T) {
		f := largeCatalog(5)
		f.shortPages = true
		c := newPageCache(f, testDescriptor(), 10)
		_, err := c.ValueSetAt(ctx, 4)
		assert.ErrorIs(t, err, port.ErrPageFetch)
	})

	t.Run("variable order diverges", func(t *testing.T) {
		f := largeCatalog(25)
		f.variables = append(f.variables, domain.Variable{Name: "m", ValueType: domain.ValueTypeText})
		f.reorderAt = 10
		c := newPageCache(f, testDescriptor(), 10)
		for r := 0; r < 10; r++ {
			_, err := c.ValueSetAt(ctx, r)
			require.NoError(t, err)
		}
		_, err := c.ValueSetAt(ctx, 10)
		assert.ErrorIs(t, err, port.ErrSchemaMismatch)
	})

	t.Run("failed fetch keeps window", func(t *testing.T) {
		f := largeCatalog(15)
		c := newPageCache(f, testDescriptor(), 10)
		_, err := c.ValueSetAt(ctx, 9)
		require.NoError(t, err)

		f.ValueSetsErr = errors.New("boom")
		_, err = c.ValueSetAt(ctx, 10)
		require.Error(t, err)

		f.ValueSetsErr = nil
		row, err := c.ValueSetAt(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, "E0010", row.Identifier)
	})
}

func TestPageCache_ReturnsSnapshot(t *testing.T) {
	f := scenarioCatalog()
	c := newPageCache(f, testDescriptor(), 10)
	row, err := c.ValueSetAt(context.Background(), 0)
	require.NoError(t, err)
	*row.Values[0].Value = "mutated"

	again, err := c.ValueSetAt(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "22.5", *again.Values[0].Value)
}

func TestPageCache_RowIdentifierMustMatchEntity(t *testing.T) {
	ctx := context.Background()
	f := largeCatalog(5)
	f.pageIdentifiers = map[int]string{3: "E9999"}
	c := newPageCache(f, testDescriptor(), 10)

	_, err := c.Entities(ctx)
	require.NoError(t, err)
	for r := 0; r < 3; r++ {
		_, err := c.ValueSetAt(ctx, r)
		require.NoError(t, err)
	}

	_, err = c.ValueSetAt(ctx, 3)
	require.ErrorIs(t, err, port.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "E9999")
	assert.Contains(t, err.Error(), "E0003")

	row, err := c.ValueSetAt(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, "E0004", row.Identifier)
}
