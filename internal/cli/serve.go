package cli

import (
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	donations "github.com/goliatone/go-donations"
	"github.com/goliatone/go-donations/inbound"
	"github.com/goliatone/go-donations/providers/paypal"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	address string
	migrate bool
}

// NewServeCommand runs the webhook and read API server.
func NewServeCommand(root *RootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the PayPal webhook endpoint and donation read API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, root, cmd.ErrOrStderr(), runtimeOptions{database: true, migrate: opts.migrate})
			if err != nil {
				return err
			}
			defer rt.Close()

			paypalConfig := rt.service.Config().PayPal
			if strings.TrimSpace(paypalConfig.ClientID) == "" ||
				strings.TrimSpace(paypalConfig.ClientSecret) == "" ||
				strings.TrimSpace(paypalConfig.WebhookID) == "" {
				rt.logger.Warn("paypal credentials are incomplete, every webhook delivery will be rejected")
			}
			verifier := paypal.NewVerifier(paypalConfig,
				paypal.WithLogger(rt.logger),
				paypal.WithHTTPClient(&http.Client{Timeout: paypalConfig.VerifyTimeout}),
			)

			handler, err := rt.facade.HTTPHandler(donations.HTTPOptions{
				Router: inbound.RouterConfig{
					WebhookPath:  rt.config.HTTP.WebhookPath,
					MaxBodyBytes: rt.config.HTTP.MaxBodyBytes,
				},
				Verifier: verifier,
				Ledger:   rt.factory.WebhookDeliveryStore(),
				Logger:   rt.logger,
			})
			if err != nil {
				return err
			}

			address := rt.config.HTTP.Address
			if strings.TrimSpace(opts.address) != "" {
				address = opts.address
			}
			rt.logger.Info("listening",
				"address", address,
				"webhook_path", rt.config.HTTP.WebhookPath,
				"environment", paypalConfig.Environment,
			)
			return inbound.ListenAndServe(ctx, address, handler)
		},
	}
	cmd.Flags().StringVar(&opts.address, "address", "", "listen address (overrides http.address)")
	cmd.Flags().BoolVar(&opts.migrate, "migrate", false, "apply migrations before serving")
	return cmd
}
