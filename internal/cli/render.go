// file: internal/cli/render.go
package cli

import (
	"OpalBridge/internal/core/domain"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"
)

// 输出格式
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

const nullText = "NULL"

// formatValue 将结果集中的值转换为展示文本，空值返回 ok=false
func formatValue(v any) (s string, ok bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case int64:
		return strconv.FormatInt(x, 10), true
	case bool:
		return strconv.FormatBool(x), true
	case decimal.Decimal:
		return x.String(), true
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format(time.DateOnly), true
		}
		return x.Format(time.RFC3339), true
	default:
		return fmt.Sprint(x), true
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetColWidth(32)
	table.SetRowLine(false)
	table.SetAutoFormatHeaders(false)
	table.SetHeader(header)
	return table
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderResult 按格式输出查询结果
func renderResult(w io.Writer, format string, res *domain.QueryResult) error {
	header := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col.Label
	}

	switch format {
	case FormatJSON:
		return writeJSON(w, res)
	case FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		for _, row := range res.Rows {
			record := make([]string, len(row))
			for i, v := range row {
				record[i], _ = formatValue(v)
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	default:
		table := newTable(w, header)
		for _, row := range res.Rows {
			record := make([]string, len(row))
			for i, v := range row {
				s, ok := formatValue(v)
				if !ok {
					s = nullText
				}
				record[i] = s
			}
			table.Append(record)
		}
		table.Render()
		if res.Limited {
			fmt.Fprintf(w, "(结果已按服务端上限截断，共 %d 行)\n", len(res.Rows))
		}
		return nil
	}
}

func renderDatasources(w io.Writer, format string, list []domain.Datasource) error {
	if format == FormatJSON {
		return writeJSON(w, list)
	}
	table := newTable(w, []string{"数据源", "类型", "表", "视图"})
	for _, ds := range list {
		table.Append([]string{ds.Name, ds.Type, strconv.Itoa(len(ds.Tables)), strconv.Itoa(len(ds.Views))})
	}
	table.Render()
	return nil
}

func renderSchema(w io.Writer, format string, schema *domain.TableSchema) error {
	if format == FormatJSON {
		return writeJSON(w, schema)
	}
	table := newTable(w, []string{"#", "名称", "标签", "类型", "值类型", "可重复"})
	for _, col := range schema.Columns {
		table.Append([]string{
			strconv.Itoa(col.Index), col.Name, col.Label, col.TypeName,
			string(col.ValueType), strconv.FormatBool(col.Repeatable),
		})
	}
	table.Render()
	fmt.Fprintf(w, "表: %s  实体类型: %s  实体数: %d\n", schema.Table, schema.EntityType, schema.EntityCount)
	return nil
}

func renderDesigns(w io.Writer, format string, designs []*domain.DataSetDesign) error {
	if format == FormatJSON {
		return writeJSON(w, designs)
	}
	table := newTable(w, []string{"ID", "名称", "查询", "更新时间"})
	for _, d := range designs {
		table.Append([]string{d.ID, d.Name, d.QueryText, d.UpdatedAt.Format(time.RFC3339)})
	}
	table.Render()
	return nil
}
