package cli

import (
	"github.com/goliatone/go-donations/inbound"
	donationsquery "github.com/goliatone/go-donations/query"
	"github.com/spf13/cobra"
)

func NewProgressCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress",
		Short: "Show campaign progress toward the configured goal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(cmd.Context(), root, cmd.ErrOrStderr(), runtimeOptions{database: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			progress, err := rt.facade.Queries().Progress.Query(cmd.Context(), donationsquery.CampaignProgressMessage{})
			if err != nil {
				return err
			}
			return newPrinter(root, cmd.OutOrStdout()).progress(inbound.NewProgressResponse(progress))
		},
	}
}
