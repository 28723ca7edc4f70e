package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFieldMap(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFieldMap(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFieldMap(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func cloneFieldMap(input map[string]any) map[string]any {
	if len(input) == 0 {
		return map[string]any{}
	}
	output := make(map[string]any, len(input))
	for key, value := range input {
		output[key] = value
	}
	return output
}

type stubLogger struct{}

func (stubLogger) Trace(string, ...any) {}
func (stubLogger) Debug(string, ...any) {}
func (stubLogger) Info(string, ...any)  {}
func (stubLogger) Warn(string, ...any)  {}
func (stubLogger) Error(string, ...any) {}
func (stubLogger) Fatal(string, ...any) {}
func (s stubLogger) WithContext(context.Context) Logger {
	return s
}

type stubLoggerProvider struct {
	logger Logger
}

func (s stubLoggerProvider) GetLogger(string) Logger {
	return s.logger
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

// failingStore wraps MemoryStore and fails the donation insert on demand.
type failingStore struct {
	*MemoryStore
	failInsert bool
}

func (s *failingStore) RunInTx(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error {
	return s.MemoryStore.RunInTx(ctx, func(ctx context.Context, uow UnitOfWork) error {
		return fn(ctx, failingUnitOfWork{UnitOfWork: uow, failInsert: s.failInsert})
	})
}

type failingUnitOfWork struct {
	UnitOfWork
	failInsert bool
}

func (u failingUnitOfWork) Donations() DonationLedger {
	return failingLedger{DonationLedger: u.UnitOfWork.Donations(), failInsert: u.failInsert}
}

type failingLedger struct {
	DonationLedger
	failInsert bool
}

func (l failingLedger) InsertIfAbsent(ctx context.Context, donation Donation) (InsertOutcome, error) {
	if l.failInsert {
		return "", fmt.Errorf("disk full")
	}
	return l.DonationLedger.InsertIfAbsent(ctx, donation)
}

func orderApprovedResource(orderID string, given string, surname string, email string, amount string) json.RawMessage {
	payload := map[string]any{
		"id":     orderID,
		"status": "APPROVED",
		"purchase_units": []any{
			map[string]any{
				"amount": map[string]any{"currency_code": "USD", "value": amount},
				"shipping": map[string]any{
					"address": map[string]any{
						"address_line_1": "1 Main St",
						"admin_area_2":   "Springfield",
						"admin_area_1":   "IL",
						"postal_code":    "62701",
						"country_code":   "US",
					},
				},
			},
		},
	}
	payer := map[string]any{}
	if given != "" || surname != "" {
		payer["name"] = map[string]any{"given_name": given, "surname": surname}
	}
	if email != "" {
		payer["email_address"] = email
	}
	if len(payer) > 0 {
		payload["payer"] = payer
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func captureCompletedResource(captureID string, orderID string, amount string) json.RawMessage {
	raw, _ := json.Marshal(map[string]any{
		"id":     captureID,
		"status": "COMPLETED",
		"amount": map[string]any{"currency_code": "USD", "value": amount},
		"supplementary_data": map[string]any{
			"related_ids": map[string]any{"order_id": orderID},
		},
	})
	return raw
}
