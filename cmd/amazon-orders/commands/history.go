package commands

import (
	"context"
	"fmt"

	"amazon-orders/internal/amazon/entity"
	"amazon-orders/internal/amazon/orders"

	"github.com/spf13/cobra"
)

var (
	historyYear        *int
	historyTimeFilter  *string
	historyStartIndex  *int
	historyFullDetails *bool
	historySinglePage  *bool
	historyReauth      *bool
)

func init() {
	flags := historyCmd.Flags()
	historyYear = flags.Int("year", 0, "The year to list orders for, defaults to the current year.")
	historyTimeFilter = flags.String("time-filter", "", "A time filter instead of a year: last30, months-3, year-YYYY or archived.")
	historyStartIndex = flags.Int("start-index", -1, "Fetch only the page that starts at this index.")
	historyFullDetails = flags.Bool("full-details", false, "Fetch every order's details page for payment, totals and sellers.")
	historySinglePage = flags.Bool("single-page", false, "Stop after the first page.")
	historyReauth = flags.Bool("reauth", true, "Sign in again once when the session expires partway through.")
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(orderCmd)
}

func (a *app) historyOptions() orders.Options {
	opts := orders.Options{
		Year:        *historyYear,
		TimeFilter:  *historyTimeFilter,
		FullDetails: *historyFullDetails,
		KeepPaging:  !*historySinglePage,
		MaxPages:    a.cfg.MaxPaginationPages,
		Reauth:      *historyReauth,
	}
	if *historyStartIndex >= 0 {
		index := *historyStartIndex
		opts.StartIndex = &index
	}
	return opts
}

// saveOrders exports to the database when one is configured.
func (a *app) saveOrders(ctx context.Context, list []entity.Order) error {
	out, ok, err := a.openStore(ctx)
	if err != nil || !ok {
		return err
	}
	defer out.Close()

	runId, err := out.SaveOrders(ctx, list)
	if err != nil {
		return fmt.Errorf("export orders: %w", err)
	}
	a.tel.ReportDebug("exported orders", runId, len(list))
	return nil
}

var historyCmd = &cobra.Command{
	Use:   "history [--year <year> | --time-filter <filter>] [--full-details]",
	Short: "Lists the orders placed in a year or time filter.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.ensureLogin(ctx)
		if err != nil {
			return err
		}

		list, fetchErr := a.history().GetOrderHistory(ctx, a.historyOptions())
		if len(list) > 0 || fetchErr == nil {
			err = renderOrders(cmd.OutOrStdout(), list, *jsonOutput)
			if err != nil {
				return err
			}
			err = a.saveOrders(ctx, list)
			if err != nil {
				return err
			}
		}
		if fetchErr != nil {
			if hint := resumeHint(listingOrders, fetchErr); hint != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), hint)
			}
			return fetchErr
		}
		return nil
	},
}

var orderCmd = &cobra.Command{
	Use:   "order <order number>",
	Short: "Shows the full details of a single order.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.ensureLogin(ctx)
		if err != nil {
			return err
		}
		order, err := a.history().GetOrder(ctx, args[0])
		if err != nil {
			return err
		}
		err = renderOrder(cmd.OutOrStdout(), order, *jsonOutput)
		if err != nil {
			return err
		}
		return a.saveOrders(ctx, []entity.Order{order})
	},
}
