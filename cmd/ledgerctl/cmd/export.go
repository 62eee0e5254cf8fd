package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-bot/internal/app"
	bqinfra "github.com/dvloznov/finance-bot/internal/infra/bigquery"
	"github.com/dvloznov/finance-bot/internal/jobs"
	"github.com/dvloznov/finance-bot/internal/money"
)

var (
	sinks []string
	limit int
)

var errNoBigQuery = errors.New("BigQuery is not configured (set BQ_PROJECT)")

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ledger to the configured sinks now",
	Long: `Runs one export synchronously, bypassing the job queue.

Example:
  ledgerctl export
  ledgerctl export --sink file --sink bigquery`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
			job, err := runExport(ctx, a, sinks)
			if err != nil {
				return err
			}
			return printExport(cmd.OutOrStdout(), job)
		})
	},
}

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List recent exports recorded in BigQuery",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, []string{"BQ_PROJECT"}, func(ctx context.Context, a *app.App) error {
			if a.BigQuery == nil {
				return errNoBigQuery
			}
			list, err := a.BigQuery.ListExports(ctx, limit)
			if err != nil {
				return err
			}
			return printExportSummaries(cmd.OutOrStdout(), list)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the BigQuery export table if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, []string{"BQ_PROJECT"}, func(ctx context.Context, a *app.App) error {
			if a.BigQuery == nil {
				return errNoBigQuery
			}
			if err := a.BigQuery.EnsureTable(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Table %s is ready.\n", a.BigQuery.TableRef())
			return nil
		})
	},
}

func init() {
	exportCmd.Flags().StringSliceVar(&sinks, "sink", nil, "sink to export to (repeatable; default all configured)")
	exportsCmd.Flags().IntVar(&limit, "limit", 20, "maximum number of exports to list")
}

// runExport runs the export handler once on a fresh job.
func runExport(ctx context.Context, a *app.App, names []string) (*jobs.ExportJob, error) {
	if len(a.Exports.Sinks()) == 0 {
		return nil, errors.New("no export sinks configured (set EXPORT_DIR, EXPORT_BUCKET, BQ_PROJECT or NOTION_TOKEN)")
	}

	job := &jobs.ExportJob{
		JobID:       uuid.NewString(),
		RequestedBy: "ledgerctl",
		Sinks:       names,
		Status:      jobs.JobStatusRunning,
		MaxRetries:  1,
	}
	if err := a.Exports.Handle(ctx, job); err != nil {
		return job, err
	}
	job.Status = jobs.JobStatusCompleted
	return job, nil
}

func printExport(w io.Writer, job *jobs.ExportJob) error {
	fmt.Fprintf(w, "Export %s\n", job.JobID)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SINK\tROWS\tLOCATION")
	for _, r := range job.Results {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Sink, r.Rows, r.Location)
	}
	return tw.Flush()
}

func printExportSummaries(w io.Writer, list []*bqinfra.ExportSummary) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No exports found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXPORT\tEXPORTED AT\tROWS\tINCOME\tEXPENSE")
	for _, e := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			e.ExportID, e.ExportedAt.Format("2006-01-02 15:04"), e.Rows, money.Format(e.Income), money.Format(e.Expense))
	}
	return tw.Flush()
}
