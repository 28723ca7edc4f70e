package inbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goliatone/go-donations/core"
	"github.com/goliatone/go-donations/query"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/shopspring/decimal"
)

const DefaultMaxBodyBytes int64 = 1 << 20

type RouterConfig struct {
	WebhookPath  string
	MaxBodyBytes int64
}

// ReadService backs the donation read endpoints.
type ReadService interface {
	query.DonationReader
	query.ProgressReader
	query.FeeQuoter
}

type Router struct {
	config     RouterConfig
	dispatcher *Dispatcher
	logger     core.Logger

	listDonations *query.ListDonationsQuery
	getDonation   *query.GetDonationQuery
	progress      *query.CampaignProgressQuery
	quoteFees     *query.QuoteFeesQuery
}

func NewRouter(cfg RouterConfig, dispatcher *Dispatcher, reads ReadService, logger core.Logger) *Router {
	if strings.TrimSpace(cfg.WebhookPath) == "" {
		cfg.WebhookPath = core.DefaultWebhookPath
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	router := &Router{
		config:     cfg,
		dispatcher: dispatcher,
		logger:     glog.Ensure(logger),
	}
	if reads != nil {
		router.listDonations = query.NewListDonationsQuery(reads)
		router.getDonation = query.NewGetDonationQuery(reads)
		router.progress = query.NewCampaignProgressQuery(reads)
		router.quoteFees = query.NewQuoteFeesQuery(reads)
	}
	return router
}

// Handler builds the chi mux.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(rt.logRequests)

	r.Post(rt.config.WebhookPath, rt.handleWebhook)
	r.Get("/healthz", rt.handleHealth)
	r.Route("/donations", func(r chi.Router) {
		r.Get("/", rt.handleListDonations)
		r.Get("/progress", rt.handleProgress)
		r.Get("/fees", rt.handleFees)
		r.Get("/{transactionID}", rt.handleGetDonation)
	})
	return r
}

func (rt *Router) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if rt.dispatcher == nil {
		writeError(w, inboundInternal("inbound: webhook dispatcher is not configured", nil))
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, core.NewMalformedPayloadError("request body too large", err))
			return
		}
		writeError(w, core.NewMalformedPayloadError("", err))
		return
	}
	_, err = rt.dispatcher.Dispatch(r.Context(), core.InboundRequest{
		ProviderID: core.ProviderIDPayPal,
		Surface:    SurfaceWebhook,
		Headers:    flattenHeaders(r.Header),
		Body:       body,
		Metadata: map[string]any{
			"request_id": middleware.GetReqID(r.Context()),
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) handleListDonations(w http.ResponseWriter, r *http.Request) {
	page, err := intParam(r, "page")
	if err != nil {
		writeError(w, err)
		return
	}
	perPage, err := intParam(r, "per_page")
	if err != nil {
		writeError(w, err)
		return
	}
	out, err := rt.listDonations.Query(r.Context(), query.ListDonationsMessage{
		Filter: core.DonationFilter{Page: page, PerPage: perPage},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDonationPageResponse(out))
}

func (rt *Router) handleGetDonation(w http.ResponseWriter, r *http.Request) {
	out, err := rt.getDonation.Query(r.Context(), query.GetDonationMessage{
		TransactionID: chi.URLParam(r, "transactionID"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDonationResponse(out))
}

func (rt *Router) handleProgress(w http.ResponseWriter, r *http.Request) {
	out, err := rt.progress.Query(r.Context(), query.CampaignProgressMessage{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewProgressResponse(out))
}

func (rt *Router) handleFees(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("amount"))
	if raw == "" {
		writeError(w, inboundBadInput("amount query parameter is required", map[string]any{"field": "amount"}))
		return
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		writeError(w, inboundBadInput("amount must be a decimal number", map[string]any{"field": "amount"}))
		return
	}
	out, err := rt.quoteFees.Query(r.Context(), query.QuoteFeesMessage{Amount: amount})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewFeeQuoteResponse(out))
}

func (rt *Router) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		rt.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(startedAt).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// ListenAndServe runs the HTTP server until ctx is done, then shuts down.
func ListenAndServe(ctx context.Context, address string, handler http.Handler) error {
	server := &http.Server{
		Addr:              address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

func intParam(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, inboundBadInput(name+" must be a non-negative integer", map[string]any{"field": name})
	}
	return value, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		out[key] = values[0]
	}
	return out
}
