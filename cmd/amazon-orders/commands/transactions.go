package commands

import (
	"context"
	"encoding/json"
	"fmt"

	"amazon-orders/internal/amazon/entity"
	"amazon-orders/internal/amazon/errs"
	"amazon-orders/internal/amazon/transactions"

	"github.com/spf13/cobra"
)

var (
	transactionsDays         *int
	transactionsSinglePage   *bool
	transactionsNextPageData *string
)

func init() {
	flags := transactionsCmd.Flags()
	transactionsDays = flags.Int("days", transactions.DefaultDays, "How many days back to list transactions for.")
	transactionsSinglePage = flags.Bool("single-page", false, "Stop after the first page.")
	transactionsNextPageData = flags.String("next-page-data", "", "Continue a listing from the json printed when it stopped partway through.")
	rootCmd.AddCommand(transactionsCmd)
}

func parseNextPageData(raw string) (map[string]string, error) {
	if raw == "" {
		return nil, nil
	}
	var data map[string]string
	err := json.Unmarshal([]byte(raw), &data)
	if err != nil {
		return nil, errs.Configf("next-page-data is not a json object of strings: %s", err.Error())
	}
	return data, nil
}

func (a *app) saveTransactions(ctx context.Context, list []entity.Transaction) error {
	out, ok, err := a.openStore(ctx)
	if err != nil || !ok {
		return err
	}
	defer out.Close()

	runId, err := out.SaveTransactions(ctx, list)
	if err != nil {
		return fmt.Errorf("export transactions: %w", err)
	}
	a.tel.ReportDebug("exported transactions", runId, len(list))
	return nil
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions [--days <days>]",
	Short: "Lists the payment transactions of the last days.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		next, err := parseNextPageData(*transactionsNextPageData)
		if err != nil {
			return err
		}

		a, err := newApp(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.ensureLogin(ctx)
		if err != nil {
			return err
		}

		result, fetchErr := a.transactions().GetTransactions(ctx, transactions.Options{
			Days:         *transactionsDays,
			NextPageData: next,
			KeepPaging:   !*transactionsSinglePage,
		})
		if len(result.Transactions) > 0 || fetchErr == nil {
			err = renderTransactions(cmd.OutOrStdout(), result.Transactions, *jsonOutput)
			if err != nil {
				return err
			}
			err = a.saveTransactions(ctx, result.Transactions)
			if err != nil {
				return err
			}
		}
		if fetchErr != nil {
			if hint := resumeHint(listingTransactions, fetchErr); hint != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), hint)
			}
			return fetchErr
		}
		if result.NextPageData != nil {
			data, err := json.Marshal(result.NextPageData)
			if err == nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "more transactions with: --next-page-data '%s'\n", data)
			}
		}
		return nil
	},
}
