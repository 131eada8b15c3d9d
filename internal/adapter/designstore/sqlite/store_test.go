// file: internal/adapter/designstore/sqlite/store_test.go
package sqlite

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "designs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDesign(name string) *domain.DataSetDesign {
	return &domain.DataSetDesign{
		Name:      name,
		QueryText: `select * from 'opal-data.Participants' where "$('age').gt(18)"`,
		Descriptor: domain.QueryDescriptor{
			Datasource: "opal-data",
			Table:      "Participants",
			Where:      "$('age').gt(18)",
		},
	}
}

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)
	fixed := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	d := sampleDesign("adults")
	require.NoError(t, s.Save(ctx, d))
	_, err := uuid.Parse(d.ID)
	require.NoError(t, err, "新建设计应分配 UUID")
	assert.Equal(t, fixed, d.CreatedAt)

	got, err := s.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.Name, got.Name)
	assert.Equal(t, d.QueryText, got.QueryText)
	assert.Equal(t, d.Descriptor, got.Descriptor)
	assert.True(t, got.CreatedAt.Equal(fixed))

	later := fixed.Add(time.Hour)
	s.now = func() time.Time { return later }
	got.Descriptor.Select = "name().matches(/^bmi/)"
	require.NoError(t, s.Save(ctx, got))

	again, err := s.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "name().matches(/^bmi/)", again.Descriptor.Select)
	assert.True(t, again.CreatedAt.Equal(fixed))
	assert.True(t, again.UpdatedAt.Equal(later))

	require.NoError(t, s.Save(ctx, sampleDesign("all participants")))
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "adults", list[0].Name)
	assert.Equal(t, "all participants", list[1].Name)

	require.NoError(t, s.Delete(ctx, d.ID))
	_, err = s.Get(ctx, d.ID)
	assert.ErrorIs(t, err, port.ErrDesignNotFound)
	assert.ErrorIs(t, s.Delete(ctx, d.ID), port.ErrDesignNotFound)
}

func TestStore_EmptyList(t *testing.T) {
	list, err := newFileStore(t).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestStore_Validation(t *testing.T) {
	ctx := context.Background()
	s := newFileStore(t)

	assert.ErrorIs(t, s.Save(ctx, nil), port.ErrInvalidArgument)
	assert.ErrorIs(t, s.Save(ctx, sampleDesign("")), port.ErrInvalidArgument)

	noTable := sampleDesign("x")
	noTable.Descriptor.Table = ""
	assert.ErrorIs(t, s.Save(ctx, noTable), port.ErrInvalidArgument)

	unknown := sampleDesign("ghost")
	unknown.ID = uuid.NewString()
	assert.ErrorIs(t, s.Save(ctx, unknown), port.ErrDesignNotFound)
}

func TestStore_ReopenKeepsDesigns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "designs.db")
	s, err := Open(ctx, path)
	require.NoError(t, err)
	d := sampleDesign("persisted")
	require.NoError(t, s.Save(ctx, d))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, path)
	require.NoError(t, err)
	defer s2.Close()
	got, err := s2.Get(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got.Name)
}

// newMockStore 用 sqlmock 模拟数据库故障
func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS data_set_design").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_design_name").WillReturnResult(sqlmock.NewResult(0, 0))
	s, err := New(context.Background(), db)
	require.NoError(t, err)
	return s, mock
}

func TestStore_DatabaseFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("schema", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("disk I/O error"))
		_, err = New(ctx, db)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "data_set_design")
	})

	t.Run("insert", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectExec("INSERT INTO data_set_design").WillReturnError(errors.New("database is locked"))
		d := sampleDesign("locked")
		err := s.Save(ctx, d)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database is locked")
		assert.Empty(t, d.ID, "失败时不应回填 ID")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get", func(t *testing.T) {
		s, mock := newMockStore(t)
		mock.ExpectQuery("SELECT id, name").WithArgs("abc").WillReturnError(errors.New("bad conn"))
		_, err := s.Get(ctx, "abc")
		require.Error(t, err)
		assert.NotErrorIs(t, err, port.ErrDesignNotFound)
	})

	t.Run("corrupt timestamp", func(t *testing.T) {
		s, mock := newMockStore(t)
		rows := sqlmock.NewRows([]string{"id", "name", "query_text", "datasource", "table_name", "select_script", "where_script", "created_at", "updated_at"}).
			AddRow("abc", "n", "", "ds", "t", "", "", "yesterday", "today")
		mock.ExpectQuery("SELECT id, name").WillReturnRows(rows)
		_, err := s.List(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "created_at")
	})
}
