// file: internal/adapter/datasource/opal/page_cache.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"OpalBridge/internal/observe"
	"context"
	"fmt"
	"log/slog"
	"slices"
)

var _ port.RowSource = (*pageCache)(nil)

// pageCache 只保留一个活动窗口，按偏移量只进地获取值集分页。
// 所有分页的变量顺序必须与第一页一致。
type pageCache struct {
	catalog  port.Catalog
	desc     domain.QueryDescriptor
	pageSize int

	entities []domain.EntityID
	loaded   bool

	page  *domain.ValueSetPage
	start int
	order []string
}

func newPageCache(catalog port.Catalog, desc domain.QueryDescriptor, pageSize int) *pageCache {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &pageCache{catalog: catalog, desc: desc, pageSize: pageSize}
}

// Entities 首次调用时获取实体列表，之后复用
func (c *pageCache) Entities(ctx context.Context) ([]domain.EntityID, error) {
	if c.loaded {
		return c.entities, nil
	}
	list, err := c.catalog.Entities(ctx, c.desc.Ref(), c.desc.Where)
	if err != nil {
		return nil, fmt.Errorf("%w: 获取 '%s' 的实体列表: %w", port.ErrPageFetch, c.desc.Ref(), err)
	}
	entities := make([]domain.EntityID, len(list))
	for i, e := range list {
		entities[i] = domain.EntityID(e.Identifier)
	}
	c.entities, c.loaded = entities, true
	slog.Debug("实体列表已加载", "table", c.desc.Ref().String(), "count", len(entities))
	return c.entities, nil
}

// ValueSetAt 返回偏移量处值集行的快照，越过当前窗口时前进恰好一个窗口。
// 实体列表已加载时，行标识必须与同一偏移量的实体一致。
func (c *pageCache) ValueSetAt(ctx context.Context, offset int) (domain.ValueSetRow, error) {
	if offset < 0 {
		return domain.ValueSetRow{}, fmt.Errorf("%w: 偏移量 %d 为负", port.ErrInvalidArgument, offset)
	}
	switch {
	case c.page == nil:
		if err := c.fetch(ctx, 0); err != nil {
			return domain.ValueSetRow{}, err
		}
	case offset < c.start:
		return domain.ValueSetRow{}, fmt.Errorf("%w: 偏移量 %d 早于当前窗口起点 %d", port.ErrInvalidState, offset, c.start)
	case offset >= c.start+c.pageSize:
		if err := c.fetch(ctx, c.start+c.pageSize); err != nil {
			return domain.ValueSetRow{}, err
		}
	}

	idx := offset - c.start
	if idx >= len(c.page.ValueSets) {
		return domain.ValueSetRow{}, fmt.Errorf("%w: 起点为 %d 的分页缺少偏移量 %d 的值集 (共 %d 行)",
			port.ErrPageFetch, c.start, offset, len(c.page.ValueSets))
	}
	row := c.page.ValueSets[idx]
	if c.loaded && offset < len(c.entities) && row.Identifier != string(c.entities[offset]) {
		return domain.ValueSetRow{}, fmt.Errorf("%w: 偏移量 %d 的值集实体 '%s' 与实体列表中的 '%s' 不一致",
			port.ErrSchemaMismatch, offset, row.Identifier, c.entities[offset])
	}
	return row.Clone(), nil
}

// fetch 获取起点为 start 的分页，成功后才替换当前窗口
func (c *pageCache) fetch(ctx context.Context, start int) error {
	page, err := c.catalog.ValueSets(ctx, c.desc.Ref(), domain.ValueSetsRequest{
		Select: c.desc.Select,
		Where:  c.desc.Where,
		Offset: start,
		Limit:  c.pageSize,
	})
	if err != nil {
		return fmt.Errorf("%w: 偏移量 %d: %w", port.ErrPageFetch, start, err)
	}
	if page == nil {
		return fmt.Errorf("%w: 偏移量 %d 返回空响应", port.ErrPageFetch, start)
	}
	if c.order == nil {
		c.order = slices.Clone(page.Variables)
	} else if !slices.Equal(c.order, page.Variables) {
		return fmt.Errorf("%w: 偏移量 %d 的分页变量顺序 %v 与首页 %v 不同", port.ErrSchemaMismatch, start, page.Variables, c.order)
	}
	observe.PagesFetched.Inc()
	slog.Debug("值集分页已获取", "table", c.desc.Ref().String(), "offset", start, "rows", len(page.ValueSets))
	c.page, c.start = page, start
	return nil
}

// Variables 返回首页的变量顺序，尚未获取分页时为 nil
func (c *pageCache) Variables() []string {
	return c.order
}

// Reset 丢弃实体列表与当前窗口
func (c *pageCache) Reset() {
	c.entities, c.loaded = nil, false
	c.page, c.start, c.order = nil, 0, nil
}
