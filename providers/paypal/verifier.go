package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-donations/auth"
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/transport"
)

const ProviderID = core.ProviderIDPayPal

const (
	HeaderAuthAlgo         = "PAYPAL-AUTH-ALGO"
	HeaderCertURL          = "PAYPAL-CERT-URL"
	HeaderTransmissionID   = "PAYPAL-TRANSMISSION-ID"
	HeaderTransmissionSig  = "PAYPAL-TRANSMISSION-SIG"
	HeaderTransmissionTime = "PAYPAL-TRANSMISSION-TIME"

	VerificationStatusSuccess = "SUCCESS"

	defaultVerifyTimeout = 30 * time.Second
	tokenRenewBefore     = 2 * time.Minute
)

// TokenSource renders the Authorization header for PayPal REST calls.
type TokenSource interface {
	AuthorizationHeader(ctx context.Context) (string, error)
}

type verifySignatureRequest struct {
	AuthAlgo         string          `json:"auth_algo"`
	CertURL          string          `json:"cert_url"`
	TransmissionID   string          `json:"transmission_id"`
	TransmissionSig  string          `json:"transmission_sig"`
	TransmissionTime string          `json:"transmission_time"`
	WebhookID        string          `json:"webhook_id"`
	WebhookEvent     json.RawMessage `json:"webhook_event"`
}

type verifySignatureResponse struct {
	VerificationStatus string `json:"verification_status"`
}

// Verifier checks deliveries against the PayPal verify-webhook-signature API.
// Every failure path rejects the delivery.
type Verifier struct {
	config    core.PayPalConfig
	tokens    TokenSource
	transport *transport.RESTAdapter
	logger    core.Logger
}

type VerifierOption func(*Verifier)

func WithTokenSource(tokens TokenSource) VerifierOption {
	return func(v *Verifier) {
		v.tokens = tokens
	}
}

func WithHTTPClient(client *http.Client) VerifierOption {
	return func(v *Verifier) {
		if client != nil {
			v.transport = transport.NewRESTAdapter(client)
		}
	}
}

func WithLogger(logger core.Logger) VerifierOption {
	return func(v *Verifier) {
		v.logger = logger
	}
}

func NewVerifier(cfg core.PayPalConfig, opts ...VerifierOption) *Verifier {
	verifier := &Verifier{
		config:    cfg,
		transport: transport.NewRESTAdapter(nil),
		logger:    glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	verifier.logger = glog.Ensure(verifier.logger)
	if verifier.tokens == nil {
		var client *http.Client
		if httpClient, ok := verifier.transport.Client.(*http.Client); ok {
			client = httpClient
		}
		verifier.tokens = auth.NewOAuth2ClientCredentialsStrategy(auth.OAuth2ClientCredentialsStrategyConfig{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL(),
			RenewBefore:  tokenRenewBefore,
			HTTPClient:   client,
		})
	}
	return verifier
}

func (v *Verifier) Verify(ctx context.Context, rawBody []byte, headers map[string]string) error {
	if v == nil {
		return core.NewSignatureInvalidError("", nil)
	}
	req := verifySignatureRequest{
		AuthAlgo:         headerValue(headers, HeaderAuthAlgo),
		CertURL:          headerValue(headers, HeaderCertURL),
		TransmissionID:   headerValue(headers, HeaderTransmissionID),
		TransmissionSig:  headerValue(headers, HeaderTransmissionSig),
		TransmissionTime: headerValue(headers, HeaderTransmissionTime),
		WebhookID:        strings.TrimSpace(v.config.WebhookID),
	}
	for header, value := range map[string]string{
		HeaderAuthAlgo:         req.AuthAlgo,
		HeaderCertURL:          req.CertURL,
		HeaderTransmissionID:   req.TransmissionID,
		HeaderTransmissionSig:  req.TransmissionSig,
		HeaderTransmissionTime: req.TransmissionTime,
	} {
		if value == "" {
			return v.reject("missing signature header", req.TransmissionID, core.NewSignatureInvalidError("missing "+header+" header", nil))
		}
	}
	if strings.TrimSpace(v.config.ClientID) == "" || strings.TrimSpace(v.config.ClientSecret) == "" || req.WebhookID == "" {
		return v.reject("paypal credentials are not configured", req.TransmissionID, core.NewSignatureInvalidError("PayPal credentials are not configured", nil))
	}
	if !json.Valid(rawBody) {
		return v.reject("webhook body is not json", req.TransmissionID, core.NewSignatureInvalidError("webhook body cannot be verified", nil))
	}
	req.WebhookEvent = json.RawMessage(rawBody)

	authorization, err := v.tokens.AuthorizationHeader(ctx)
	if err != nil {
		return v.reject("paypal access token unavailable", req.TransmissionID, core.NewSignatureInvalidError("PayPal access token unavailable", err))
	}

	timeout := v.config.VerifyTimeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	var res verifySignatureResponse
	_, err = v.transport.DoJSON(ctx, core.TransportRequest{
		Method:  http.MethodPost,
		URL:     v.config.VerifySignatureURL(),
		Headers: map[string]string{"Authorization": authorization},
		Timeout: timeout,
	}, req, &res)
	if err != nil {
		return v.reject("signature verification call failed", req.TransmissionID, core.NewSignatureInvalidError("", err))
	}
	if strings.TrimSpace(res.VerificationStatus) != VerificationStatusSuccess {
		return v.reject("signature verification rejected", req.TransmissionID, core.NewSignatureInvalidError("", nil).
			WithMetadata(map[string]any{"verification_status": res.VerificationStatus}))
	}
	return nil
}

func (v *Verifier) reject(message string, transmissionID string, err error) error {
	v.logger.Warn("paypal webhook "+message, "transmission_id", transmissionID, "error", err)
	return err
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), key) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

var _ core.SignatureVerifier = (*Verifier)(nil)
