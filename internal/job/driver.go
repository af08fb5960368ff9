package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bothelp.app/voiceover/common/logger"
	"bothelp.app/voiceover/internal/metrics"
)

type Config struct {
	Timeout         time.Duration // used when Run is given a non-positive timeout
	PollInterval    time.Duration
	MaxPollInterval time.Duration
	PollMultiplier  float64
}

func DefaultConfig() Config {
	return Config{
		Timeout:         60 * time.Second,
		PollInterval:    500 * time.Millisecond,
		MaxPollInterval: 3 * time.Second,
		PollMultiplier:  1.1,
	}
}

// Driver drives one remote job per call through
// created → submitted → started → polling → finalized.
// It holds no per-request state, so a single Driver serves concurrent requests.
type Driver struct {
	api RemoteJobAPI
	cfg Config
}

func NewDriver(api RemoteJobAPI, cfg Config) *Driver {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.MaxPollInterval <= 0 {
		cfg.MaxPollInterval = def.MaxPollInterval
	}
	if cfg.MaxPollInterval < cfg.PollInterval {
		cfg.MaxPollInterval = cfg.PollInterval
	}
	if cfg.PollMultiplier < 1 {
		cfg.PollMultiplier = 1
	}
	return &Driver{api: api, cfg: cfg}
}

// Run submits input as a fresh remote job and waits for its result.
// The wall-clock deadline starts now and is checked before every poll,
// independently of the retry budget of the underlying calls.
func (d *Driver) Run(ctx context.Context, input string, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		timeout = d.cfg.Timeout
	}

	sc := logger.StartSpan(ctx, "job.run")
	defer sc.End()
	ctx = logger.WithLogFields(sc.Context(), logger.LogFields{Component: "voiceover.job.driver"})

	start := time.Now()
	result, err := d.run(ctx, sc, input, start.Add(timeout))
	elapsed := time.Since(start)

	outcome := outcomeOf(err)
	metrics.JobRuns.WithLabelValues(outcome).Inc()
	metrics.JobDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())

	if err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "job run failed",
			"outcome", outcome,
			"duration_ms", elapsed.Milliseconds(),
			"error", err)
		return nil, err
	}

	result.Elapsed = elapsed
	metrics.JobPolls.Observe(float64(result.Polls))
	slog.InfoContext(ctx, "job run completed",
		"polls", result.Polls,
		"duration_ms", elapsed.Milliseconds(),
		"text_length", len(result.Text))
	return result, nil
}

func (d *Driver) run(ctx context.Context, sc *logger.SpanContext, input string, deadline time.Time) (*Result, error) {
	// created
	jobID, err := d.api.CreateJob(ctx)
	if err != nil {
		return nil, stageError(ctx, ErrCreationFailed, StateCreated, "", err)
	}
	if jobID == "" {
		return nil, failure(ErrCreationFailed, StateCreated, "no job identifier returned", nil)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{JobID: logger.Ptr(string(jobID))})
	sc.SetAttributes("job.id", string(jobID))
	slog.DebugContext(ctx, "job created")

	// submitted
	if err := d.api.Submit(ctx, jobID, input); err != nil {
		return nil, stageError(ctx, ErrSubmissionFailed, StateSubmitted, "", err)
	}

	// started
	runID, err := d.api.Start(ctx, jobID)
	if err != nil {
		return nil, stageError(ctx, ErrExecutionFailed, StateStarted, "run could not be started", err)
	}
	if runID == "" {
		return nil, failure(ErrExecutionFailed, StateStarted, "no run identifier returned", nil)
	}
	ctx = logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(string(runID))})
	sc.SetAttributes("job.run_id", string(runID))
	slog.InfoContext(ctx, "job run started")

	// polling
	polls, err := d.poll(ctx, jobID, runID, deadline)
	if err != nil {
		return nil, err
	}

	// finalized
	text, err := d.api.Result(ctx, jobID, runID)
	if err != nil {
		return nil, stageError(ctx, ErrExecutionFailed, StateFinalized, "result could not be fetched", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, failure(ErrEmptyResult, StateFinalized, "", nil)
	}

	return &Result{
		JobID: jobID,
		RunID: runID,
		Text:  text,
		Polls: polls,
	}, nil
}

func (d *Driver) poll(ctx context.Context, jobID JobHandle, runID RunHandle, deadline time.Time) (int, error) {
	interval := d.cfg.PollInterval
	polls := 0

	for {
		if !time.Now().Before(deadline) {
			return polls, failure(ErrTimeout, StatePolling, fmt.Sprintf("no terminal status after %d poll(s)", polls), nil)
		}

		report, err := d.api.Status(ctx, jobID, runID)
		polls++
		if err != nil {
			return polls, stageError(ctx, ErrExecutionFailed, StatePolling, "status could not be fetched", err)
		}

		slog.DebugContext(ctx, "job status polled",
			"poll", polls,
			"status", report.Status,
			"interval_ms", interval.Milliseconds())

		switch report.Status {
		case StatusCompleted:
			return polls, nil
		case StatusFailed:
			return polls, failure(ErrExecutionFailed, StatePolling, report.Reason, nil)
		case StatusPending, StatusRunning:
			remaining := time.Until(deadline)
			if remaining <= 0 {
				continue
			}
			if err := sleep(ctx, min(interval, remaining)); err != nil {
				return polls, fmt.Errorf("job polling: %w", err)
			}
			interval = d.nextInterval(interval)
		default:
			var cause error
			if report.Reason != "" {
				cause = fmt.Errorf("remote status %q", report.Reason)
			}
			return polls, failure(ErrExecutionFailed, StatePolling, "unexpected status", cause)
		}
	}
}

func (d *Driver) nextInterval(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * d.cfg.PollMultiplier)
	if d.cfg.PollMultiplier > 1 {
		next = max(next, current+1)
	}
	if next > d.cfg.MaxPollInterval {
		return d.cfg.MaxPollInterval
	}
	return next
}

// stageError keeps caller cancellation distinguishable from remote failures.
func stageError(ctx context.Context, kind error, state State, reason string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("job %s: %w", state, ctx.Err())
	}
	return failure(kind, state, reason, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "completed"
	case errors.Is(err, ErrCreationFailed):
		return "creation_failed"
	case errors.Is(err, ErrSubmissionFailed):
		return "submission_failed"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrEmptyResult):
		return "empty_result"
	case errors.Is(err, ErrExecutionFailed):
		return "execution_failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}
