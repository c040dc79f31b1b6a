// Package athena runs SQL against AWS Athena: submit, poll until terminal,
// then page through the result set.
package athena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/athena/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cloudsathi/internal/awsutil"
	"cloudsathi/internal/config"
	"cloudsathi/internal/domain"
	"cloudsathi/internal/metrics"
)

// PageSize is the number of rows requested per GetQueryResults call (the Athena maximum).
const PageSize int32 = 1000

// stopTimeout bounds the best-effort StopQueryExecution issued when polling is abandoned.
const stopTimeout = 5 * time.Second

// API is the subset of the Athena client the runner uses.
type API interface {
	athena.GetQueryResultsAPIClient
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	StopQueryExecution(ctx context.Context, params *athena.StopQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StopQueryExecutionOutput, error)
}

// Options tunes polling behaviour.
type Options struct {
	PollInterval time.Duration
	QueryTimeout time.Duration
}

// Runner executes queries against Athena. A Runner with a nil client runs in
// mock mode and serves canned CUR rows.
type Runner struct {
	client  API
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// NewRunner creates a Runner. client may be nil for mock mode; m may be nil.
func NewRunner(client API, opts Options, logger *slog.Logger, m *metrics.Metrics) *Runner {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client:  client,
		opts:    opts,
		logger:  logger.With("component", "athena"),
		metrics: m,
		tracer:  otel.Tracer("cloudsathi/athena"),
	}
}

// NewFromConfig builds a Runner from AWS settings. Without credentials the
// runner is in mock mode.
func NewFromConfig(cfg config.AWSConfig, logger *slog.Logger, m *metrics.Metrics) *Runner {
	var client API
	if cfg.HasCredentials() {
		client = athena.NewFromConfig(awsutil.NewConfig(cfg))
	}
	return NewRunner(client, Options{PollInterval: cfg.PollInterval, QueryTimeout: cfg.QueryTimeout}, logger, m)
}

// MockMode reports whether the runner serves canned data.
func (r *Runner) MockMode() bool { return r.client == nil }

// Run submits q, waits for it to finish and materializes the results.
func (r *Runner) Run(ctx context.Context, q domain.Query) (*domain.ResultSet, error) {
	ctx, span := r.tracer.Start(ctx, "athena.Run", trace.WithAttributes(
		attribute.String("athena.database", q.Database),
	))
	defer span.End()

	rs, err := r.run(ctx, q)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, domain.KindOf(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("athena.records", len(rs.Records)))
	return rs, nil
}

func (r *Runner) run(ctx context.Context, q domain.Query) (*domain.ResultSet, error) {
	handle, err := r.Submit(ctx, q)
	if err != nil {
		return nil, err
	}
	if _, err := r.Wait(ctx, handle); err != nil {
		return nil, err
	}
	return r.Results(ctx, handle)
}

// Submit starts q and returns its execution handle. In mock mode it returns
// domain.MockExecutionHandle without contacting AWS.
func (r *Runner) Submit(ctx context.Context, q domain.Query) (domain.ExecutionHandle, error) {
	if q.SQL == "" {
		return "", &domain.SubmissionError{Message: "query text is empty"}
	}
	if r.MockMode() {
		r.logger.DebugContext(ctx, "no AWS credentials, using mock execution")
		return domain.MockExecutionHandle, nil
	}

	in := &athena.StartQueryExecutionInput{
		QueryString:           aws.String(q.SQL),
		QueryExecutionContext: &types.QueryExecutionContext{Database: aws.String(q.Database)},
		ResultConfiguration:   &types.ResultConfiguration{OutputLocation: aws.String(q.OutputLocation)},
	}
	if q.WorkGroup != "" {
		in.WorkGroup = aws.String(q.WorkGroup)
	}
	out, err := r.client.StartQueryExecution(ctx, in)
	if err != nil {
		if awsutil.IsAccessDenied(err) {
			return "", &domain.AuthorizationError{Provider: "aws", Message: awsutil.ErrorMessage(err), Err: err}
		}
		return "", &domain.SubmissionError{Message: fmt.Sprintf("start query execution: %s", awsutil.ErrorMessage(err)), Err: err}
	}
	handle := domain.ExecutionHandle(aws.ToString(out.QueryExecutionId))
	if handle == "" {
		return "", &domain.SubmissionError{Message: "start query execution returned no execution id"}
	}
	r.logger.InfoContext(ctx, "query submitted", "execution_id", handle, "database", q.Database)
	return handle, nil
}

// Wait polls the execution every PollInterval until it reaches a terminal
// state. It returns a QueryExecutionError for FAILED or CANCELLED, a
// PollTimeoutError when QueryTimeout elapses and a CancelledError when ctx is
// done. In the last two cases the remote execution is stopped.
func (r *Runner) Wait(ctx context.Context, handle domain.ExecutionHandle) (domain.ExecutionStatus, error) {
	if handle.IsMock() {
		r.observeOutcome("mock")
		return domain.StatusSucceeded, nil
	}

	started := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, r.opts.QueryTimeout)
	defer cancel()

	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	checks := 0
	for {
		status, reason, err := r.status(pollCtx, handle)
		checks++
		if err != nil {
			if pollCtx.Err() != nil {
				return "", r.abandon(ctx, handle, checks)
			}
			return "", err
		}
		if status.Terminal() {
			r.observeDuration(started)
			r.logger.InfoContext(ctx, "query finished",
				"execution_id", handle, "state", status, "status_checks", checks,
				"elapsed", time.Since(started).String())
			if status != domain.StatusSucceeded {
				r.observeOutcome(string(status))
				return status, &domain.QueryExecutionError{State: status, Reason: reason}
			}
			r.observeOutcome("succeeded")
			return status, nil
		}

		select {
		case <-pollCtx.Done():
			return "", r.abandon(ctx, handle, checks)
		case <-ticker.C:
		}
	}
}

func (r *Runner) status(ctx context.Context, handle domain.ExecutionHandle) (domain.ExecutionStatus, string, error) {
	if r.metrics != nil {
		r.metrics.AthenaStatusChecks.Inc()
	}
	out, err := r.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
		QueryExecutionId: aws.String(string(handle)),
	})
	if err != nil {
		if awsutil.IsAccessDenied(err) {
			return "", "", &domain.AuthorizationError{Provider: "aws", Message: awsutil.ErrorMessage(err), Err: err}
		}
		return "", "", &domain.RemoteServiceError{Provider: "athena", Message: "get query execution: " + awsutil.ErrorMessage(err), Err: err}
	}
	if out.QueryExecution == nil || out.QueryExecution.Status == nil {
		return domain.StatusRunning, "", nil
	}
	st := out.QueryExecution.Status
	return mapState(st.State), aws.ToString(st.StateChangeReason), nil
}

// abandon stops the remote execution and returns the error describing why
// polling ended. ctx is the caller's context, not the polling context.
func (r *Runner) abandon(ctx context.Context, handle domain.ExecutionHandle, checks int) error {
	var result error
	if ctx.Err() != nil {
		r.observeOutcome("cancelled_by_caller")
		result = &domain.CancelledError{Err: ctx.Err()}
	} else {
		r.observeOutcome("timeout")
		result = &domain.PollTimeoutError{Handle: handle, Checks: checks}
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if _, err := r.client.StopQueryExecution(stopCtx, &athena.StopQueryExecutionInput{
		QueryExecutionId: aws.String(string(handle)),
	}); err != nil {
		r.logger.WarnContext(ctx, "stop query execution failed", "execution_id", handle, "error", err)
	} else {
		r.logger.InfoContext(ctx, "query stopped", "execution_id", handle, "reason", domain.KindOf(result))
	}
	return result
}

// Results pages through the output of a succeeded execution. The first row
// of the first page is the header; its names key every record on every page.
func (r *Runner) Results(ctx context.Context, handle domain.ExecutionHandle) (*domain.ResultSet, error) {
	if handle.IsMock() {
		return MockResultSet(), nil
	}

	p := athena.NewGetQueryResultsPaginator(r.client, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(string(handle)),
		MaxResults:       aws.Int32(PageSize),
	})

	rs := &domain.ResultSet{}
	headerRead := false
	pages := 0
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, &domain.CancelledError{Err: err}
			}
			return nil, &domain.ResultRetrievalError{
				Message: fmt.Sprintf("get query results page %d: %s", pages+1, awsutil.ErrorMessage(err)),
				Err:     err,
			}
		}
		pages++
		if r.metrics != nil {
			r.metrics.AthenaResultPages.Inc()
		}
		if page.ResultSet == nil {
			continue
		}
		rows := page.ResultSet.Rows
		if !headerRead {
			if len(rows) == 0 {
				continue
			}
			rs.Columns = headerNames(rows[0])
			rows = rows[1:]
			headerRead = true
		}
		for _, row := range rows {
			rs.Records = append(rs.Records, toRecord(rs.Columns, row))
		}
	}
	r.logger.DebugContext(ctx, "results materialized", "execution_id", handle, "pages", pages, "records", len(rs.Records))
	return rs, nil
}

func (r *Runner) observeOutcome(outcome string) {
	if r.metrics != nil {
		r.metrics.AthenaQueries.WithLabelValues(outcome).Inc()
	}
}

func (r *Runner) observeDuration(started time.Time) {
	if r.metrics != nil {
		r.metrics.AthenaQueryDuration.Observe(time.Since(started).Seconds())
	}
}

func mapState(s types.QueryExecutionState) domain.ExecutionStatus {
	switch s {
	case types.QueryExecutionStateSucceeded:
		return domain.StatusSucceeded
	case types.QueryExecutionStateFailed:
		return domain.StatusFailed
	case types.QueryExecutionStateCancelled:
		return domain.StatusCancelled
	default:
		// QUEUED, RUNNING and anything unrecognised keep us polling.
		return domain.StatusRunning
	}
}

func headerNames(row types.Row) []string {
	cols := make([]string, len(row.Data))
	for i, d := range row.Data {
		cols[i] = aws.ToString(d.VarCharValue)
	}
	return cols
}

// toRecord keys row by columns. Missing VarCharValue, and cells beyond the
// end of a short row, are recorded as absent (nil).
func toRecord(columns []string, row types.Row) domain.Record {
	rec := make(domain.Record, len(columns))
	for i, col := range columns {
		if i < len(row.Data) && row.Data[i].VarCharValue != nil {
			v := *row.Data[i].VarCharValue
			rec[col] = &v
			continue
		}
		rec[col] = nil
	}
	return rec
}
