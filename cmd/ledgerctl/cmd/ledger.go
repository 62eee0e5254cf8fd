package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dvloznov/finance-bot/internal/app"
	"github.com/dvloznov/finance-bot/internal/domain"
	"github.com/dvloznov/finance-bot/internal/money"
	"github.com/dvloznov/finance-bot/internal/report"
)

var keyword string

// errDrift makes audit exit non-zero.
var errDrift = errors.New("balances drifted from the ledger")

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts and balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
			accs, err := a.Accounts.List(ctx)
			if err != nil {
				return err
			}
			return printAccounts(cmd.OutOrStdout(), accs)
		})
	},
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "List transactions in position order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
			txs, err := a.Coordinator.ListTransactions(ctx)
			if err != nil {
				return err
			}
			return printLedger(cmd.OutOrStdout(), txs, keyword)
		})
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Replay the ledger and report accounts whose balance disagrees",
	Long: `Replays every transaction recorded after an account's baseline
(its creation or last /setbalance) and compares the result with the
stored balance. Deleting or clearing transactions leaves balances
untouched, so drift after those commands is expected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, nil, func(ctx context.Context, a *app.App) error {
			snap, err := a.Coordinator.Snapshot(ctx)
			if err != nil {
				return err
			}
			return printAudit(cmd.OutOrStdout(), snap.Audit())
		})
	},
}

func init() {
	ledgerCmd.Flags().StringVarP(&keyword, "search", "s", "", "only show transactions whose note or account contains this")
}

func printAccounts(w io.Writer, accs []domain.Account) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tBALANCE\tCREATED")
	var total int64
	for _, acc := range accs {
		total += acc.Balance
		fmt.Fprintf(tw, "%s\t%s\t%s\n", acc.Name, money.Format(acc.Balance), acc.CreatedAt.Format("2006-01-02"))
	}
	fmt.Fprintf(tw, "TOTAL\t%s\t\n", money.Format(total))
	return tw.Flush()
}

func printLedger(w io.Writer, txs []domain.Transaction, search string) error {
	if search != "" {
		txs = report.Search(txs, search)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tDATE\tKIND\tAMOUNT\tACCOUNT\tNOTE")
	for i, t := range txs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			i+1, t.Timestamp.Format("2006-01-02 15:04"), t.Kind, money.Format(t.Amount), t.Account, t.Note)
	}
	totals := report.ComputeTotals(txs)
	fmt.Fprintf(tw, "\tincome %s\texpense %s\tnet %s\t\t\n",
		money.Format(totals.Income), money.Format(totals.Expense), money.Format(totals.Net))
	return tw.Flush()
}

func printAudit(w io.Writer, drift []report.Drift) error {
	if len(drift) == 0 {
		fmt.Fprintln(w, "All balances match the ledger.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tSTORED\tREPLAYED\tDIFF")
	for _, d := range drift {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", d.Account, money.Format(d.Stored), money.Format(d.Replayed), money.Format(d.Diff()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return fmt.Errorf("%d account(s): %w", len(drift), errDrift)
}
