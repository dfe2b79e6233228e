package commands

import (
	"context"
	"errors"
	"fmt"

	"amazon-orders/internal/amazon/orders"
	"amazon-orders/internal/amazon/transactions"
	"amazon-orders/internal/components/chrono"

	"github.com/spf13/cobra"
)

var (
	exportSchedule    *string
	exportDays        *int
	exportFullDetails *bool
)

func init() {
	flags := exportCmd.Flags()
	exportSchedule = flags.String("schedule", "", "A cron spec (e.g. @daily or \"0 6 * * *\") to export on until interrupted, runs once when empty.")
	exportDays = flags.Int("days", 30, "How many days of transactions each export covers.")
	exportFullDetails = flags.Bool("full-details", false, "Fetch every order's details page.")
	rootCmd.AddCommand(exportCmd)
}

// export saves this year's orders and the recent transactions to the database.
func (a *app) export(ctx context.Context) error {
	err := a.ensureLogin(ctx)
	if err != nil {
		return err
	}

	list, err := a.history().GetOrderHistory(ctx, orders.Options{
		FullDetails: *exportFullDetails,
		KeepPaging:  true,
		MaxPages:    a.cfg.MaxPaginationPages,
		Reauth:      true,
	})
	if err != nil {
		return err
	}
	err = a.saveOrders(ctx, list)
	if err != nil {
		return err
	}

	result, err := a.transactions().GetTransactions(ctx, transactions.Options{
		Days:       *exportDays,
		KeepPaging: true,
	})
	if err != nil {
		return err
	}
	err = a.saveTransactions(ctx, result.Transactions)
	if err != nil {
		return err
	}

	a.tel.ReportCount("export.orders", int64(len(list)))
	a.tel.ReportCount("export.transactions", int64(len(result.Transactions)))
	return nil
}

var exportCmd = &cobra.Command{
	Use:   "export --db <path or url> [--schedule <cron spec>]",
	Short: "Exports orders and transactions to a sqlite or libsql database, once or on a schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		if *dbPath == "" && a.cfg.DB == "" {
			return errors.New("export needs --db or the db setting")
		}

		if *exportSchedule == "" {
			err = a.export(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Export finished.")
			return nil
		}

		scheduler := chrono.NewScheduler(a.tel, nil)
		err = scheduler.Add(ctx, *exportSchedule, a.export)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exporting on %q until interrupted.\n", *exportSchedule)
		scheduler.Run(ctx)
		return nil
	},
}
