package paypal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/goliatone/go-donations/core"
)

type paypalStub struct {
	status      string
	verifyCode  int
	tokenHits   int32
	verifyHits  int32
	lastRequest map[string]json.RawMessage
}

func (s *paypalStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.tokenHits, 1)
		if user, pass, ok := r.BasicAuth(); !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"A21AA","token_type":"Bearer","expires_in":32400}`))
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&s.verifyHits, 1)
		if got := r.Header.Get("Authorization"); got != "Bearer A21AA" {
			t.Errorf("expected bearer token, got %q", got)
		}
		s.lastRequest = map[string]json.RawMessage{}
		if err := json.NewDecoder(r.Body).Decode(&s.lastRequest); err != nil {
			t.Errorf("decode verify request: %v", err)
		}
		if s.verifyCode != 0 {
			w.WriteHeader(s.verifyCode)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"verification_status":%q}`, s.status)
	})
	return httptest.NewServer(mux)
}

func signedHeaders() map[string]string {
	return map[string]string{
		"Paypal-Auth-Algo":         "SHA256withRSA",
		"Paypal-Cert-Url":          "https://api.sandbox.paypal.com/v1/notifications/certs/CERT-360caa42",
		"Paypal-Transmission-Id":   "69cd13f0-d67a-11e5-baa3-778b53f4ae55",
		"Paypal-Transmission-Sig":  "lmI95Jx3Y9nhR5SJWlHVIWpg4AgFk7n9bCHSRxbrd8A9zrhdu2rMyFrmz+Zjh3s3boXB07VXCXUZy/UFzUlnGJn0wDugt7FlSvdKeIJenLRemUxYCPVoEZzg9VFNqOa48gMkvF+XTpxBeUx/kWy6B5cp7GkT2+pOowfRK7OaynuxUoKW3JcMWw272VKjLTtTAShncla7tGF+55rxyt2KNZIIqxNMJ48RDZheGU5w1npu9dZHnPgTXB9iomeVRoD8O/jhRpnKsGrDschyNdkeh81BJJMH4Ctc6lnCCquoP/GzCzz33MMsNdid7vL/NIWaCsekQpW26FpWPi/tfj8nLA==",
		"Paypal-Transmission-Time": "2016-02-18T20:01:35Z",
	}
}

func newTestVerifier(server *httptest.Server, mutate func(*core.PayPalConfig)) *Verifier {
	cfg := core.PayPalConfig{
		Environment:  core.PayPalEnvironmentSandbox,
		ClientID:     "client",
		ClientSecret: "secret",
		WebhookID:    "1JE4291016473214C",
		APIBaseURL:   server.URL,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewVerifier(cfg, WithHTTPClient(server.Client()))
}

func TestVerifier_Success(t *testing.T) {
	stub := &paypalStub{status: VerificationStatusSuccess}
	server := stub.server(t)
	defer server.Close()

	verifier := newTestVerifier(server, nil)
	body := []byte(`{"id":"WH-1","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-1"}}`)
	if err := verifier.Verify(context.Background(), body, signedHeaders()); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if string(stub.lastRequest["webhook_id"]) != `"1JE4291016473214C"` {
		t.Fatalf("unexpected webhook id %s", stub.lastRequest["webhook_id"])
	}
	if string(stub.lastRequest["transmission_id"]) != `"69cd13f0-d67a-11e5-baa3-778b53f4ae55"` {
		t.Fatalf("unexpected transmission id %s", stub.lastRequest["transmission_id"])
	}
	if string(stub.lastRequest["webhook_event"]) != string(body) {
		t.Fatalf("expected raw event embedded verbatim, got %s", stub.lastRequest["webhook_event"])
	}

	if err := verifier.Verify(context.Background(), body, signedHeaders()); err != nil {
		t.Fatalf("verify second: %v", err)
	}
	if atomic.LoadInt32(&stub.tokenHits) != 1 {
		t.Fatalf("expected cached access token, got %d token requests", stub.tokenHits)
	}
}

func TestVerifier_FailsClosed(t *testing.T) {
	body := []byte(`{"id":"WH-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{}}`)
	cases := []struct {
		name       string
		stub       *paypalStub
		headers    func() map[string]string
		body       []byte
		mutate     func(*core.PayPalConfig)
		wantVerify bool
	}{
		{
			name:       "failure status",
			stub:       &paypalStub{status: "FAILURE"},
			wantVerify: true,
		},
		{
			name:       "non 2xx",
			stub:       &paypalStub{verifyCode: http.StatusInternalServerError},
			wantVerify: true,
		},
		{
			name: "missing header",
			stub: &paypalStub{status: VerificationStatusSuccess},
			headers: func() map[string]string {
				headers := signedHeaders()
				delete(headers, "Paypal-Transmission-Sig")
				return headers
			},
		},
		{
			name:   "missing webhook id",
			stub:   &paypalStub{status: VerificationStatusSuccess},
			mutate: func(cfg *core.PayPalConfig) { cfg.WebhookID = "" },
		},
		{
			name:   "bad credentials",
			stub:   &paypalStub{status: VerificationStatusSuccess},
			mutate: func(cfg *core.PayPalConfig) { cfg.ClientSecret = "wrong" },
		},
		{
			name: "body not json",
			stub: &paypalStub{status: VerificationStatusSuccess},
			body: []byte("not json"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := tc.stub.server(t)
			defer server.Close()

			headers := signedHeaders()
			if tc.headers != nil {
				headers = tc.headers()
			}
			payload := body
			if tc.body != nil {
				payload = tc.body
			}
			err := newTestVerifier(server, tc.mutate).Verify(context.Background(), payload, headers)
			if err == nil {
				t.Fatalf("expected verification failure")
			}
			if !core.IsSignatureInvalid(err) {
				t.Fatalf("expected invalid signature error, got %v", err)
			}
			if core.HTTPStatus(err) != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", core.HTTPStatus(err))
			}
			hits := atomic.LoadInt32(&tc.stub.verifyHits)
			if tc.wantVerify && hits != 1 {
				t.Fatalf("expected verify api call, got %d", hits)
			}
			if !tc.wantVerify && hits != 0 {
				t.Fatalf("expected no verify api call, got %d", hits)
			}
		})
	}
}

func TestConfigEndpoints(t *testing.T) {
	live := core.PayPalConfig{Environment: core.PayPalEnvironmentLive}
	if live.TokenURL() != "https://api.paypal.com/v1/oauth2/token" {
		t.Fatalf("unexpected live token url %q", live.TokenURL())
	}
	sandbox := core.PayPalConfig{}
	if sandbox.VerifySignatureURL() != "https://api.sandbox.paypal.com/v1/notifications/verify-webhook-signature" {
		t.Fatalf("unexpected sandbox verify url %q", sandbox.VerifySignatureURL())
	}
}
