// Package sqlite 以 SQLite 持久化命名的数据集设计
// file: internal/adapter/designstore/sqlite/store.go
package sqlite

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// 静态断言，确保 Store 实现了 port.DesignStore 接口
var _ port.DesignStore = (*Store)(nil)

var validate = validator.New()

// Store 是 port.DesignStore 的 SQLite 实现
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open 打开（必要时创建）设计库文件并初始化表结构
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("打开/创建设计库 '%s' 失败: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("连接设计库 '%s' (Ping) 失败: %w", path, err)
	}
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New 在已有连接上创建 Store 并确保表结构存在
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("设计库初始化失败: db 实例不能为 nil")
	}
	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	query := `
    CREATE TABLE IF NOT EXISTS data_set_design (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        query_text TEXT NOT NULL DEFAULT '',
        datasource TEXT NOT NULL,
        table_name TEXT NOT NULL,
        select_script TEXT NOT NULL DEFAULT '',
        where_script TEXT NOT NULL DEFAULT '',
        created_at TEXT NOT NULL,
        updated_at TEXT NOT NULL
    );`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("创建 'data_set_design' 表失败: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_design_name ON data_set_design (name);`); err != nil {
		return fmt.Errorf("创建 'data_set_design' 索引失败: %w", err)
	}
	return nil
}

// Save 新建（ID 为空时分配 UUID）或更新一个设计
func (s *Store) Save(ctx context.Context, design *domain.DataSetDesign) error {
	if design == nil {
		return fmt.Errorf("%w: 设计不能为空", port.ErrInvalidArgument)
	}
	if err := validate.Struct(design); err != nil {
		return fmt.Errorf("%w: %w", port.ErrInvalidArgument, err)
	}

	now := s.now().UTC()
	d := design.Descriptor
	if design.ID == "" {
		id := uuid.NewString()
		_, err := s.db.ExecContext(ctx, `
            INSERT INTO data_set_design (id, name, query_text, datasource, table_name, select_script, where_script, created_at, updated_at)
            VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, design.Name, design.QueryText, d.Datasource, d.Table, d.Select, d.Where,
			now.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("插入设计 '%s' 失败: %w", design.Name, err)
		}
		design.ID, design.CreatedAt, design.UpdatedAt = id, now, now
		slog.Debug("设计已创建", "id", id, "name", design.Name)
		return nil
	}

	res, err := s.db.ExecContext(ctx, `
        UPDATE data_set_design
        SET name = ?, query_text = ?, datasource = ?, table_name = ?, select_script = ?, where_script = ?, updated_at = ?
        WHERE id = ?`,
		design.Name, design.QueryText, d.Datasource, d.Table, d.Select, d.Where, now.Format(time.RFC3339Nano), design.ID)
	if err != nil {
		return fmt.Errorf("更新设计 '%s' 失败: %w", design.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("更新设计 '%s' 失败: %w", design.ID, err)
	} else if n == 0 {
		return fmt.Errorf("%w: '%s'", port.ErrDesignNotFound, design.ID)
	}
	design.UpdatedAt = now
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const selectColumns = `SELECT id, name, query_text, datasource, table_name, select_script, where_script, created_at, updated_at FROM data_set_design`

func scanDesign(row rowScanner) (*domain.DataSetDesign, error) {
	var d domain.DataSetDesign
	var created, updated string
	if err := row.Scan(&d.ID, &d.Name, &d.QueryText,
		&d.Descriptor.Datasource, &d.Descriptor.Table, &d.Descriptor.Select, &d.Descriptor.Where,
		&created, &updated); err != nil {
		return nil, err
	}
	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("设计 '%s' 的 created_at 无效: %w", d.ID, err)
	}
	if d.UpdatedAt, err = time.Parse(time.RFC3339Nano, updated); err != nil {
		return nil, fmt.Errorf("设计 '%s' 的 updated_at 无效: %w", d.ID, err)
	}
	return &d, nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.DataSetDesign, error) {
	d, err := scanDesign(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: '%s'", port.ErrDesignNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("查询设计 '%s' 失败: %w", id, err)
	}
	return d, nil
}

// List 按名称排序返回所有设计
func (s *Store) List(ctx context.Context) ([]*domain.DataSetDesign, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY name, created_at`)
	if err != nil {
		return nil, fmt.Errorf("查询设计列表失败: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.DataSetDesign, 0)
	for rows.Next() {
		d, err := scanDesign(rows)
		if err != nil {
			return nil, fmt.Errorf("扫描设计记录失败: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM data_set_design WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("删除设计 '%s' 失败: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("删除设计 '%s' 失败: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: '%s'", port.ErrDesignNotFound, id)
	}
	slog.Debug("设计已删除", "id", id)
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
