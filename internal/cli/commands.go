// file: internal/cli/commands.go
package cli

import (
	"OpalBridge/internal/auth"
	"OpalBridge/internal/core/domain"
	"OpalBridge/internal/core/port"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

func newDatasourcesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "datasources",
		Aliases: []string{"ds"},
		Short:   "列出 Opal 中的数据源",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc port.QueryService) error {
				list, err := svc.Datasources(cmd.Context())
				if err != nil {
					return err
				}
				return renderDatasources(a.out, a.format, list)
			})
		},
	}
}

func newSchemaCommand(a *app) *cobra.Command {
	var selectScript, whereScript string
	cmd := &cobra.Command{
		Use:   "schema <datasource> <table>",
		Short: "显示表的列定义与实体数量",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := domain.QueryDescriptor{Datasource: args[0], Table: args[1], Select: selectScript, Where: whereScript}
			return a.withService(cmd.Context(), func(svc port.QueryService) error {
				schema, err := svc.Schema(cmd.Context(), desc)
				if err != nil {
					return err
				}
				return renderSchema(a.out, a.format, schema)
			})
		},
	}
	cmd.Flags().StringVar(&selectScript, "select", "", "变量过滤脚本 (SELECT)")
	cmd.Flags().StringVar(&whereScript, "where", "", "实体过滤脚本 (WHERE)")
	return cmd
}

func newQueryCommand(a *app) *cobra.Command {
	var (
		desc    domain.QueryDescriptor
		maxRows int
	)
	cmd := &cobra.Command{
		Use:   "query [query-text]",
		Short: "执行查询文本，或以 --datasource/--table 指定描述符",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if maxRows < 0 {
				return fmt.Errorf("%w: --max-rows 不能为负", port.ErrInvalidArgument)
			}
			return a.withService(cmd.Context(), func(svc port.QueryService) error {
				var (
					res *domain.QueryResult
					err error
				)
				switch {
				case len(args) == 1:
					res, err = svc.QueryByText(cmd.Context(), args[0], maxRows)
				case desc.Datasource != "" && desc.Table != "":
					res, err = svc.Query(cmd.Context(), desc, maxRows)
				default:
					err = fmt.Errorf("%w: 需要查询文本或 --datasource 与 --table", port.ErrInvalidArgument)
				}
				if err != nil {
					return err
				}
				return renderResult(a.out, a.format, res)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&desc.Datasource, "datasource", "", "数据源名称")
	f.StringVar(&desc.Table, "table", "", "表名称")
	f.StringVar(&desc.Select, "select", "", "变量过滤脚本 (SELECT)")
	f.StringVar(&desc.Where, "where", "", "实体过滤脚本 (WHERE)")
	f.IntVarP(&maxRows, "max-rows", "n", 0, "最多返回的行数，0 表示不限制")
	return cmd
}

func newEntityCommand(a *app) *cobra.Command {
	var selectScript string
	cmd := &cobra.Command{
		Use:   "entity <datasource> <table> <identifier>",
		Short: "显示单个实体的全部变量值",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			desc := domain.QueryDescriptor{Datasource: args[0], Table: args[1], Select: selectScript}
			return a.withService(cmd.Context(), func(svc port.QueryService) error {
				ev, err := svc.EntityValues(cmd.Context(), desc, args[2])
				if err != nil {
					return err
				}
				if a.format == FormatJSON {
					return writeJSON(a.out, ev)
				}
				names := make([]string, 0, len(ev.Values))
				for name := range ev.Values {
					names = append(names, name)
				}
				sort.Strings(names)
				table := newTable(a.out, []string{"变量", "值"})
				for _, name := range names {
					v := nullText
					if p := ev.Values[name]; p != nil {
						v = *p
					}
					table.Append([]string{name, v})
				}
				table.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&selectScript, "select", "", "变量过滤脚本 (SELECT)")
	return cmd
}

func newDesignsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "designs",
		Short: "管理已保存的数据集设计",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "列出已保存的设计",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc port.QueryService) error {
				designs, err := svc.Designs(cmd.Context())
				if err != nil {
					return err
				}
				return renderDesigns(a.out, a.format, designs)
			})
		},
	}

	save := &cobra.Command{
		Use:   "save <name> <query-text>",
		Short: "以查询文本保存一个新设计",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc port.QueryService) error {
				design := &domain.DataSetDesign{Name: args[0], QueryText: args[1]}
				if err := svc.SaveDesign(cmd.Context(), design); err != nil {
					return err
				}
				fmt.Fprintln(a.out, design.ID)
				return nil
			})
		},
	}

	var maxRows int
	run := &cobra.Command{
		Use:   "run <id>",
		Short: "执行已保存的设计",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc port.QueryService) error {
				res, err := svc.ExecuteDesign(cmd.Context(), args[0], maxRows)
				if err != nil {
					return err
				}
				return renderResult(a.out, a.format, res)
			})
		},
	}
	run.Flags().IntVarP(&maxRows, "max-rows", "n", 0, "最多返回的行数，0 表示不限制")

	remove := &cobra.Command{
		Use:   "delete <id>",
		Short: "删除一个设计",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(svc port.QueryService) error {
				return svc.DeleteDesign(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(list, save, run, remove)
	return cmd
}

// newTokenCommand 使用网关密钥签发令牌，不连接 Opal
func newTokenCommand(a *app) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <user>",
		Short: "为指定用户签发网关访问令牌",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = a.cfg.Server.TokenTTL
			}
			issuer, err := auth.NewIssuer(a.cfg.Server.JWTSecret, ttl)
			if err != nil {
				return err
			}
			token, expires, err := issuer.GenToken(args[0])
			if err != nil {
				return err
			}
			if a.format == FormatJSON {
				return writeJSON(a.out, map[string]any{"token": token, "expires_at": expires, "user": args[0]})
			}
			fmt.Fprintln(a.out, token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "令牌有效期，默认取配置中的 token_ttl")
	return cmd
}
