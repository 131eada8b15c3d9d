// file: internal/adapter/datasource/opal/helpers_test.go
package opal

import (
	"OpalBridge/internal/core/domain"
	"context"
	"fmt"
	"slices"
)

// fakeCatalog 是 port.Catalog 的内存实现，按实体列表与变量值生成分页
type fakeCatalog struct {
	variables []domain.Variable
	entities  []string
	values    map[string]map[string]*string

	// pageOrder 为分页中的变量顺序，nil 时与 variables 相同
	pageOrder []string
	// reorderAt > 0 时，偏移量不小于它的分页使用反转的变量顺序
	reorderAt int
	// shortPages 为 true 时每页少返回一行
	shortPages bool
	// pageIdentifiers 按偏移量覆盖分页中返回的行标识
	pageIdentifiers map[int]string

	VariablesFunc func(ctx context.Context, ref domain.TableRef, script string) ([]domain.Variable, error)
	EntitiesErr   error
	ValueSetsErr  error

	variablesCalls []string
	entitiesCalls  []string
	valueSetsCalls []domain.ValueSetsRequest
}

func str(s string) *string { return &s }

func (f *fakeCatalog) Datasources(ctx context.Context) ([]domain.Datasource, error) {
	return []domain.Datasource{{Name: "opal-data", Tables: []string{"Participants"}}}, nil
}

func (f *fakeCatalog) Variables(ctx context.Context, ref domain.TableRef, script string) ([]domain.Variable, error) {
	f.variablesCalls = append(f.variablesCalls, script)
	if f.VariablesFunc != nil {
		return f.VariablesFunc(ctx, ref, script)
	}
	return slices.Clone(f.variables), nil
}

func (f *fakeCatalog) Entities(ctx context.Context, ref domain.TableRef, script string) ([]domain.VariableEntity, error) {
	f.entitiesCalls = append(f.entitiesCalls, script)
	if f.EntitiesErr != nil {
		return nil, f.EntitiesErr
	}
	out := make([]domain.VariableEntity, len(f.entities))
	for i, id := range f.entities {
		out[i] = domain.VariableEntity{Identifier: id, EntityType: "Participant"}
	}
	return out, nil
}

func (f *fakeCatalog) order(offset int) []string {
	order := f.pageOrder
	if order == nil {
		for _, v := range f.variables {
			order = append(order, v.Name)
		}
	}
	order = slices.Clone(order)
	if f.reorderAt > 0 && offset >= f.reorderAt {
		slices.Reverse(order)
	}
	return order
}

func (f *fakeCatalog) ValueSets(ctx context.Context, ref domain.TableRef, req domain.ValueSetsRequest) (*domain.ValueSetPage, error) {
	f.valueSetsCalls = append(f.valueSetsCalls, req)
	if f.ValueSetsErr != nil {
		return nil, f.ValueSetsErr
	}
	order := f.order(req.Offset)
	end := min(req.Offset+req.Limit, len(f.entities))
	if f.shortPages && end > req.Offset {
		end--
	}
	page := &domain.ValueSetPage{Variables: order}
	for i := req.Offset; i < end; i++ {
		row := f.row(f.entities[i], order)
		if id, ok := f.pageIdentifiers[i]; ok {
			row.Identifier = id
		}
		page.ValueSets = append(page.ValueSets, row)
	}
	return page, nil
}

func (f *fakeCatalog) ValueSet(ctx context.Context, ref domain.TableRef, identifier, script string) (*domain.ValueSetPage, error) {
	if !slices.Contains(f.entities, identifier) {
		return nil, fmt.Errorf("HTTP请求失败: 状态码 404: %s", identifier)
	}
	order := f.order(0)
	return &domain.ValueSetPage{Variables: order, ValueSets: []domain.ValueSetRow{f.row(identifier, order)}}, nil
}

func (f *fakeCatalog) row(id string, order []string) domain.ValueSetRow {
	row := domain.ValueSetRow{Identifier: id}
	for _, name := range order {
		row.Values = append(row.Values, domain.Value{Value: f.values[id][name]})
	}
	return row
}

// scenarioCatalog: age(integer), sex(text), bmi(decimal)；E2 的 age 为空
func scenarioCatalog() *fakeCatalog {
	return &fakeCatalog{
		variables: []domain.Variable{
			{Name: "age", ValueType: domain.ValueTypeInteger, EntityType: "Participant"},
			{Name: "sex", ValueType: domain.ValueTypeText, EntityType: "Participant"},
			{Name: "bmi", ValueType: domain.ValueTypeDecimal, EntityType: "Participant"},
		},
		entities:  []string{"E1", "E2"},
		pageOrder: []string{"bmi", "age", "sex"},
		values: map[string]map[string]*string{
			"E1": {"age": str("42"), "sex": str("F"), "bmi": str("22.5")},
			"E2": {"sex": str("M"), "bmi": str("27.25")},
		},
	}
}

// largeCatalog 生成 n 个实体，单个 integer 变量 n 的值为实体序号
func largeCatalog(n int) *fakeCatalog {
	f := &fakeCatalog{
		variables: []domain.Variable{{Name: "n", ValueType: domain.ValueTypeInteger, EntityType: "Participant"}},
		values:    make(map[string]map[string]*string, n),
	}
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("E%04d", i)
		f.entities = append(f.entities, id)
		f.values[id] = map[string]*string{"n": str(fmt.Sprint(i))}
	}
	return f
}

func testDescriptor() domain.QueryDescriptor {
	return domain.QueryDescriptor{Datasource: "opal-data", Table: "Participants"}
}

// openCursor 通过连接与查询执行，返回游标
func openCursor(ctx context.Context, f *fakeCatalog, pageSize, maxRows int) (*ResultSet, error) {
	conn := NewConnection(f, pageSize)
	q, err := conn.NewQuery()
	if err != nil {
		return nil, err
	}
	q.SetProperties(testDescriptor().Properties())
	if err := q.SetMaxRows(maxRows); err != nil {
		return nil, err
	}
	return q.Execute(ctx)
}
