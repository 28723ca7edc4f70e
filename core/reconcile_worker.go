package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

const JobIDReconcilePending = "donations.pending.reconcile"

type PendingReconcileRunner interface {
	ReconcilePending(ctx context.Context, req ReconcileRequest) (ReconcileReport, error)
}

type ReconcileWorkerConfig struct {
	RetryDelay time.Duration
	IdleDelay  time.Duration
}

func DefaultReconcileWorkerConfig() ReconcileWorkerConfig {
	return ReconcileWorkerConfig{
		RetryDelay: 30 * time.Second,
		IdleDelay:  time.Second,
	}
}

// ReconcileWorker consumes reconcile job messages and runs the pending sweep
// for each one.
type ReconcileWorker struct {
	dequeuer JobDequeuer
	runner   PendingReconcileRunner
	hook     JobWorkerHook
	logger   Logger
	config   ReconcileWorkerConfig
	now      func() time.Time
}

func NewReconcileWorker(
	dequeuer JobDequeuer,
	runner PendingReconcileRunner,
	hook JobWorkerHook,
	logger Logger,
	config ReconcileWorkerConfig,
) (*ReconcileWorker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("core: reconcile worker dequeuer is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("core: reconcile worker runner is required")
	}
	defaults := DefaultReconcileWorkerConfig()
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaults.RetryDelay
	}
	if config.IdleDelay <= 0 {
		config.IdleDelay = defaults.IdleDelay
	}
	return &ReconcileWorker{
		dequeuer: dequeuer,
		runner:   runner,
		hook:     hook,
		logger:   glog.Ensure(logger),
		config:   config,
		now:      defaultNow,
	}, nil
}

// Run processes deliveries until ctx is done.
func (w *ReconcileWorker) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if _, err := w.ProcessNext(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			w.logger.Warn("reconcile worker iteration failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.config.IdleDelay):
			}
		}
	}
}

// ProcessNext handles a single delivery. It reports whether a delivery was
// processed.
func (w *ReconcileWorker) ProcessNext(ctx context.Context) (bool, error) {
	if w == nil || w.dequeuer == nil {
		return false, fmt.Errorf("core: reconcile worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if delivery == nil {
		return false, nil
	}
	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDReconcilePending {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		nackErr := delivery.Nack(ctx, JobNackOptions{
			DeadLetter: true,
			Reason:     fmt.Sprintf("unsupported job id %q", jobID),
		})
		return true, joinErrors(fmt.Errorf("core: unsupported job id %q", jobID), nackErr)
	}

	startedAt := w.now()
	event := JobWorkerEvent{Message: msg, Attempt: 1, StartedAt: startedAt}
	w.onStart(ctx, event)

	req, parseErr := ReconcileRequestFromParameters(msg.Parameters)
	if parseErr != nil {
		event.Err = parseErr
		event.Duration = w.now().Sub(startedAt)
		w.onFailure(ctx, event)
		nackErr := delivery.Nack(ctx, JobNackOptions{DeadLetter: true, Reason: parseErr.Error()})
		return true, joinErrors(parseErr, nackErr)
	}

	report, runErr := w.runner.ReconcilePending(ctx, req)
	event.Duration = w.now().Sub(startedAt)
	if runErr != nil {
		event.Err = runErr
		event.Delay = w.config.RetryDelay
		w.onRetry(ctx, event)
		nackErr := delivery.Nack(ctx, JobNackOptions{
			Delay:   w.config.RetryDelay,
			Requeue: true,
			Reason:  runErr.Error(),
		})
		return true, joinErrors(runErr, nackErr)
	}
	if err := delivery.Ack(ctx); err != nil {
		event.Err = err
		w.onFailure(ctx, event)
		return true, err
	}
	w.logger.Info("pending reconcile job completed",
		"scanned", report.Scanned,
		"deleted", report.Deleted,
		"orphaned_captures", len(report.OrphanedCaptures),
		"dry_run", report.DryRun,
	)
	w.onSuccess(ctx, event)
	return true, nil
}

// ReconcileRequestFromParameters reads older_than, limit and dry_run job
// parameters.
func ReconcileRequestFromParameters(params map[string]any) (ReconcileRequest, error) {
	req := ReconcileRequest{}
	if len(params) == 0 {
		return req, nil
	}
	if raw, ok := params["older_than"]; ok && raw != nil {
		switch typed := raw.(type) {
		case time.Duration:
			req.OlderThan = typed
		case string:
			parsed, err := time.ParseDuration(strings.TrimSpace(typed))
			if err != nil {
				return ReconcileRequest{}, fmt.Errorf("core: invalid older_than parameter: %w", err)
			}
			req.OlderThan = parsed
		case float64:
			req.OlderThan = time.Duration(typed) * time.Second
		case int:
			req.OlderThan = time.Duration(typed) * time.Second
		case int64:
			req.OlderThan = time.Duration(typed) * time.Second
		default:
			return ReconcileRequest{}, fmt.Errorf("core: invalid older_than parameter type %T", raw)
		}
	}
	if raw, ok := params["limit"]; ok && raw != nil {
		switch typed := raw.(type) {
		case int:
			req.Limit = typed
		case int64:
			req.Limit = int(typed)
		case float64:
			req.Limit = int(typed)
		case string:
			parsed, err := strconv.Atoi(strings.TrimSpace(typed))
			if err != nil {
				return ReconcileRequest{}, fmt.Errorf("core: invalid limit parameter: %w", err)
			}
			req.Limit = parsed
		default:
			return ReconcileRequest{}, fmt.Errorf("core: invalid limit parameter type %T", raw)
		}
	}
	if raw, ok := params["dry_run"]; ok && raw != nil {
		switch typed := raw.(type) {
		case bool:
			req.DryRun = typed
		case string:
			parsed, err := strconv.ParseBool(strings.TrimSpace(typed))
			if err != nil {
				return ReconcileRequest{}, fmt.Errorf("core: invalid dry_run parameter: %w", err)
			}
			req.DryRun = parsed
		default:
			return ReconcileRequest{}, fmt.Errorf("core: invalid dry_run parameter type %T", raw)
		}
	}
	if req.OlderThan < 0 || req.Limit < 0 {
		return ReconcileRequest{}, fmt.Errorf("core: reconcile parameters must not be negative")
	}
	return req, nil
}

// NewReconcileJobMessage builds the execution message consumed by
// ReconcileWorker.
func NewReconcileJobMessage(req ReconcileRequest, idempotencyKey string) *JobExecutionMessage {
	params := map[string]any{"dry_run": req.DryRun}
	if req.OlderThan > 0 {
		params["older_than"] = req.OlderThan.String()
	}
	if req.Limit > 0 {
		params["limit"] = req.Limit
	}
	return &JobExecutionMessage{
		JobID:          JobIDReconcilePending,
		ScriptPath:     JobIDReconcilePending,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		DedupPolicy:    "drop",
	}
}

func (w *ReconcileWorker) onStart(ctx context.Context, event JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *ReconcileWorker) onSuccess(ctx context.Context, event JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *ReconcileWorker) onFailure(ctx context.Context, event JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *ReconcileWorker) onRetry(ctx context.Context, event JobWorkerEvent) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

func joinErrors(left error, right error) error {
	switch {
	case left == nil:
		return right
	case right == nil:
		return left
	default:
		return errors.Join(left, right)
	}
}
