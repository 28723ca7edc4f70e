package cli

import (
	"fmt"

	"github.com/goliatone/go-donations/inbound"
	donationsquery "github.com/goliatone/go-donations/query"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// NewFeesCommand quotes the PayPal fee a donor covers for an amount. It needs
// no database.
func NewFeesCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fees <amount>",
		Short: "Quote processing fees for a donation amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			rt, err := newRuntime(cmd.Context(), root, cmd.ErrOrStderr(), runtimeOptions{})
			if err != nil {
				return err
			}
			defer rt.Close()

			quote, err := rt.facade.Queries().QuoteFees.Query(cmd.Context(), donationsquery.QuoteFeesMessage{Amount: amount})
			if err != nil {
				return err
			}
			return newPrinter(root, cmd.OutOrStdout()).feeQuote(inbound.NewFeeQuoteResponse(quote))
		},
	}
}
