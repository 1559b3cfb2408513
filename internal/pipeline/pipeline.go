package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/flood-mesh-etl/internal/domain"
	"github.com/couchcryptid/flood-mesh-etl/internal/observability"
)

// RequestExtractor reads the next ingest request message from the trigger source.
type RequestExtractor interface {
	Extract(ctx context.Context) (domain.IngestMessage, error)
}

// IngestHandler runs one ingestion pass.
type IngestHandler interface {
	Ingest(ctx context.Context, req domain.IngestRequest) (domain.IngestSummary, error)
}

// SummaryLoader publishes the summary of a finished pass.
type SummaryLoader interface {
	Load(ctx context.Context, summary domain.IngestSummary) error
}

// Pipeline orchestrates the extract-ingest-publish loop.
type Pipeline struct {
	extractor RequestExtractor
	ingester  IngestHandler
	loader    SummaryLoader
	logger    *slog.Logger
	metrics   *observability.Metrics
	running   atomic.Bool
}

// New creates a Pipeline with the given stages and observability.
func New(e RequestExtractor, i IngestHandler, l SummaryLoader, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		extractor: e,
		ingester:  i,
		loader:    l,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil while Run is looping. Ingest requests are rare,
// so an idle pipeline waiting for the next one is ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.running.Load() {
		return errors.New("pipeline is not running")
	}
	return nil
}

// Run executes the ingest loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started")
	p.metrics.PipelineRunning.Set(1)
	p.running.Store(true)
	defer func() {
		p.running.Store(false)
		p.metrics.PipelineRunning.Set(0)
	}()

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		if !p.processRequest(ctx, &backoff, maxBackoff) {
			return nil
		}
	}
}

// processRequest runs one extract-ingest-publish cycle. Returns false if the pipeline should stop.
func (p *Pipeline) processRequest(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	msg, err := p.extractor.Extract(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract ingest request failed", "error", err)
		return p.backoffOrStop(ctx, backoff, maxBackoff)
	}

	p.metrics.IngestRequestsConsumed.Inc()
	*backoff = 200 * time.Millisecond

	req, err := domain.ParseIngestMessage(msg)
	if err != nil {
		p.logger.Warn("malformed ingest request, skipping message",
			"error", err,
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
		)
		p.metrics.IngestErrors.Inc()
		p.commitOffset(ctx, msg)
		return true
	}

	summary, err := p.ingester.Ingest(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("ingest failed, skipping request",
			"error", err,
			"project_id", req.ProjectID,
			"offset", msg.Offset,
		)
		p.metrics.IngestErrors.Inc()
		p.commitOffset(ctx, msg)
		return true
	}

	for {
		err := p.loader.Load(ctx, summary)
		if err == nil {
			break
		}
		p.logger.Error("publish summary failed", "error", err, "run_id", summary.RunID)
		if !p.backoffOrStop(ctx, backoff, maxBackoff) {
			return false
		}
	}

	p.metrics.SummariesProduced.Inc()
	p.commitOffset(ctx, msg)
	return true
}

// backoffOrStop checks for context cancellation, sleeps with the current backoff,
// and advances the backoff. Returns false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if !sleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = nextBackoff(*backoff, maxBackoff)
	return true
}

// commitOffset commits the message offset if a commit function is available.
func (p *Pipeline) commitOffset(ctx context.Context, msg domain.IngestMessage) {
	if msg.Commit == nil {
		return
	}
	if err := msg.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
