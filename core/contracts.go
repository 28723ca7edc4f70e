package core

import (
	"context"
	"encoding/json"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type PendingOrderStore interface {
	UpsertMerge(ctx context.Context, orderID string, patch PendingOrderPatch) (PendingOrder, error)
	Get(ctx context.Context, orderID string) (PendingOrder, bool, error)
	Delete(ctx context.Context, orderID string) error
	ListStale(ctx context.Context, query StaleQuery) ([]PendingOrder, error)
}

// StaleQuery selects pending rows created before Before, oldest first.
// Captured selects rows holding capture data; otherwise only approvals that
// never saw a capture are returned.
type StaleQuery struct {
	Before   time.Time
	Captured bool
	Limit    int
}

type DonationLedger interface {
	InsertIfAbsent(ctx context.Context, donation Donation) (InsertOutcome, error)
	Get(ctx context.Context, transactionID string) (Donation, error)
	List(ctx context.Context, filter DonationFilter) (DonationPage, error)
	Summary(ctx context.Context) (DonationSummary, error)
}

// UnitOfWork exposes stores bound to a single transaction.
type UnitOfWork interface {
	PendingOrders() PendingOrderStore
	Donations() DonationLedger
}

// StoreProvider runs fn in one transaction. Returning an error from fn rolls
// back every write made through the UnitOfWork.
type StoreProvider interface {
	UnitOfWork
	RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

type LockHandle interface {
	Release(ctx context.Context) error
}

// OrderLocker serializes work on a single order id. Acquire blocks until the
// lock is granted or ctx is done.
type OrderLocker interface {
	Acquire(ctx context.Context, orderID string, ttl time.Duration) (LockHandle, error)
}

// SignatureVerifier authenticates a raw webhook delivery. A nil error means
// the delivery is authentic.
type SignatureVerifier interface {
	Verify(ctx context.Context, rawBody []byte, headers map[string]string) error
}

// EventHandler consumes a decoded webhook event.
type EventHandler interface {
	HandleEvent(ctx context.Context, event WebhookEvent) error
}

type WebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type,omitempty"`
	CreateTime   string          `json:"create_time,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Resource     json.RawMessage `json:"resource"`
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Metadata             map[string]any
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	ProviderID string
	Surface    string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}
