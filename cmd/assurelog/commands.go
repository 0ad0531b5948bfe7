package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/assurelog/internal/auth"
	"github.com/JonMunkholm/assurelog/internal/core"
)

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "database (%s) is up to date\n", db.Dialect())
			return nil
		},
	}
}

func (a *app) tokenCmd() *cobra.Command {
	var (
		secret string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		Long: `Mint an HS256 bearer token for --user-id and --username. The signing
secret defaults to ASSURELOG_SECRET, then JWT_SECRET, so tokens minted
here verify against a server started from the same environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = a.v.GetString("secret")
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			tokens, err := auth.NewTokens(secret)
			if err != nil {
				return err
			}
			tok, err := tokens.Issue(a.identity(), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func (a *app) importCmd() *cobra.Command {
	var title, environment, feature string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a .xlsx or .csv test-case sheet as a new report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				out, err := svc.Import(ctx, a.identity(), core.ImportRequest{
					FileName:        filepath.Base(args[0]),
					Data:            data,
					Title:           title,
					TestEnvironment: environment,
					FeatureScenario: feature,
				})
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if a.v.GetBool("json") {
					return printJSON(w, map[string]any{
						"report_id":      out.ReportID,
						"imported_count": out.ImportedCount,
						"total_rows":     out.TotalRows,
						"errors":         out.Errors,
					})
				}

				fmt.Fprintf(w, "report %s: imported %d of %d rows\n", out.ReportID, out.ImportedCount, out.TotalRows)
				if len(out.Failures) > 0 {
					tw := newTable(w)
					tw.AppendHeader(table.Row{"Row", "Reason"})
					for _, f := range out.Failures {
						tw.AppendRow(table.Row{f.Row, f.Reason})
					}
					tw.Render()
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "report title (default \"Import <file>\")")
	cmd.Flags().StringVar(&environment, "environment", "", "test environment")
	cmd.Flags().StringVar(&feature, "feature", "", "feature or scenario under test")
	return cmd
}

func (a *app) validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE",
		Short: "Check a test-case sheet without importing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				p, err := svc.ValidateImport(ctx, a.identity(), filepath.Base(args[0]), data)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if a.v.GetBool("json") {
					return printJSON(w, map[string]any{
						"valid":           p.Valid,
						"total_rows":      p.TotalRows,
						"valid_rows":      p.ValidRows,
						"invalid_rows":    p.InvalidRows,
						"missing_columns": p.MissingColumns,
						"found_columns":   p.FoundColumns,
					})
				}

				tw := newTable(w)
				tw.AppendRows([]table.Row{
					{"Valid", p.Valid},
					{"Total rows", p.TotalRows},
					{"Valid rows", p.ValidRows},
					{"Invalid rows", joinInts(p.InvalidRows)},
					{"Missing columns", strings.Join(p.MissingColumns, ", ")},
					{"Found columns", strings.Join(p.FoundColumns, ", ")},
				})
				tw.Render()
				return nil
			})
		},
	}
}

func (a *app) reportsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "reports", Short: "Inspect reports"}

	var f core.ReportFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List reports visible to the current identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				reports, err := svc.ListReports(ctx, a.identity(), f)
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				if a.v.GetBool("json") {
					return printJSON(w, reportSummaries(reports))
				}

				tw := newTable(w)
				tw.AppendHeader(table.Row{"ID", "Title", "Date", "Made By", "Environment", "Cases", "Pass", "Fail"})
				for _, s := range reportSummaries(reports) {
					tw.AppendRow(table.Row{s.ID, s.Title, s.Date, s.MadeBy, s.Environment, s.Cases,
						s.Statuses[core.StatusPass], s.Statuses[core.StatusFail]})
				}
				tw.AppendFooter(table.Row{"", "", "", "", "Total", len(reports)})
				tw.Render()
				return nil
			})
		},
	}
	addFilterFlags(list, &f)
	cmd.AddCommand(list)
	return cmd
}

func (a *app) exportCmd() *cobra.Command {
	var (
		all bool
		out string
		f   core.ReportFilter
	)
	cmd := &cobra.Command{
		Use:   "export [REPORT_ID]",
		Short: "Render one report, or every matching report with --all, as PDF",
		Args: func(cmd *cobra.Command, args []string) error {
			if all && len(args) > 0 {
				return fmt.Errorf("--all takes no report id")
			}
			if !all && len(args) != 1 {
				return fmt.Errorf("expected a report id or --all")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withService(cmd.Context(), func(ctx context.Context, svc *core.Service) error {
				var (
					artifact *core.Artifact
					err      error
				)
				if all {
					artifact, err = svc.ExportReports(ctx, a.identity(), f)
				} else {
					artifact, err = svc.ExportReport(ctx, a.identity(), args[0])
				}
				if err != nil {
					return err
				}

				dest := artifact.Path
				if out != "" {
					if info, err := os.Stat(out); err == nil && info.IsDir() {
						out = filepath.Join(out, artifact.DownloadName)
					}
					if err := copyFile(artifact.Path, out); err != nil {
						return err
					}
					dest = out
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", dest, artifact.Size)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "export every report matching the filters")
	cmd.Flags().StringVarP(&out, "output", "o", "", "copy the PDF to this file or directory")
	addFilterFlags(cmd, &f)
	return cmd
}

func addFilterFlags(cmd *cobra.Command, f *core.ReportFilter) {
	cmd.Flags().StringVar(&f.Search, "search", "", "match title, feature or test case text")
	cmd.Flags().StringVar(&f.Responsible, "responsible", "", "match the report author")
	cmd.Flags().StringVar(&f.DateFrom, "from", "", "earliest report date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.DateTo, "to", "", "latest report date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.Status, "status", "", "only reports with a test case in this status")
	cmd.Flags().StringVar(&f.Feature, "feature", "", "match the feature or scenario")
	cmd.Flags().StringVar(&f.Environment, "environment", "", "match the test environment")
	cmd.Flags().StringVar(&f.SortBy, "sort-by", "", "title, date, made_by or created_at")
	cmd.Flags().StringVar(&f.SortOrder, "sort-order", "", "asc or desc")
}

type reportSummary struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	Date        string              `json:"date"`
	MadeBy      string              `json:"made_by"`
	Environment string              `json:"test_environment"`
	Cases       int                 `json:"test_cases"`
	Statuses    map[core.Status]int `json:"statuses"`
}

func reportSummaries(reports []core.Report) []reportSummary {
	out := make([]reportSummary, 0, len(reports))
	for _, r := range reports {
		s := reportSummary{
			ID:          r.ID,
			Title:       r.Title,
			Date:        r.Date.Format(core.ISODate),
			MadeBy:      r.MadeBy,
			Environment: r.TestEnvironment,
			Cases:       len(r.TestCases),
			Statuses:    make(map[core.Status]int, len(core.Statuses)),
		}
		for _, st := range core.Statuses {
			s.Statuses[st] = 0
		}
		for _, tc := range r.TestCases {
			s.Statuses[tc.Status]++
		}
		out = append(out, s)
	}
	return out
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, ", ")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
