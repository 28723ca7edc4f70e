package cli

import (
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/inbound"
	donationsquery "github.com/goliatone/go-donations/query"
	"github.com/spf13/cobra"
)

type listOptions struct {
	page    int
	perPage int
}

// NewDonationsCommand lists recorded donations; "get" shows one.
func NewDonationsCommand(root *RootOptions) *cobra.Command {
	opts := &listOptions{}
	cmd := &cobra.Command{
		Use:   "donations",
		Short: "List recorded donations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root, cmd.ErrOrStderr(), runtimeOptions{database: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			page, err := rt.facade.Queries().ListDonations.Query(cmd.Context(), donationsquery.ListDonationsMessage{
				Filter: core.DonationFilter{Page: opts.page, PerPage: opts.perPage},
			})
			if err != nil {
				return err
			}
			return newPrinter(root, cmd.OutOrStdout()).donationPage(inbound.NewDonationPageResponse(page))
		},
	}
	cmd.Flags().IntVar(&opts.page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.perPage, "per-page", 50, "donations per page")
	cmd.AddCommand(newGetDonationCommand(root))
	return cmd
}

func newGetDonationCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <transaction-id>",
		Short: "Show one donation by PayPal capture id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root, cmd.ErrOrStderr(), runtimeOptions{database: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			donation, err := rt.facade.Queries().GetDonation.Query(cmd.Context(), donationsquery.GetDonationMessage{
				TransactionID: args[0],
			})
			if err != nil {
				return err
			}
			return newPrinter(root, cmd.OutOrStdout()).donation(inbound.NewDonationResponse(donation))
		},
	}
}
