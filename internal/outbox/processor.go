package outbox

import (
	"context"
	"fmt"
	"time"

	"parley/internal/domain/outbox"
	"parley/internal/events"
	"parley/internal/repository"
	"parley/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Recorder receives per-batch publication outcomes. Implemented by the
// metrics package.
type Recorder interface {
	OutboxPublished(n int)
	OutboxFailed(n int)
}

type Processor struct {
	repo       repository.OutboxRepository
	publisher  events.Publisher
	log        *logger.Logger
	recorder   Recorder
	clock      func() time.Time
	batchSize  int
	interval   time.Duration
	maxRetries int
	wake       chan struct{}
}

func NewProcessor(repo repository.OutboxRepository, publisher events.Publisher, log *logger.Logger, batchSize int, interval time.Duration, maxRetries int) *Processor {
	return &Processor{
		repo:       repo,
		publisher:  publisher,
		log:        log.Named("outbox"),
		clock:      time.Now,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
		wake:       make(chan struct{}, 1),
	}
}

func (p *Processor) SetRecorder(r Recorder) {
	p.recorder = r
}

// Wake asks the run loop to flush without waiting for the next tick.
func (p *Processor) Wake() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.wake:
		}
		if _, err := p.Flush(ctx); err != nil && ctx.Err() == nil {
			p.log.Logger.Warn("outbox flush failed", zap.Error(err))
		}
	}
}

// Flush publishes pending events in commit order until none remain or a
// batch makes no progress. It returns how many events were published.
func (p *Processor) Flush(ctx context.Context) (int, error) {
	total := 0
	for {
		published, attempted, failed, err := p.processBatch(ctx)
		total += published
		if err != nil || failed > 0 || attempted < p.batchSize || published == 0 {
			return total, err
		}
	}
}

func (p *Processor) processBatch(ctx context.Context) (published, attempted, failed int, err error) {
	batch, err := p.repo.GetPending(ctx, p.batchSize, p.maxRetries)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("load pending outbox events: %w", err)
	}

	// A failed event blocks later events for the same entity so per-entity
	// order survives retries.
	blocked := make(map[string]bool)
	for _, e := range batch {
		attempted++
		key := e.OrderingKey()
		if blocked[key] {
			continue
		}

		event, decodeErr := events.Unmarshal(e.Payload)
		if decodeErr != nil {
			p.markFailed(ctx, e.ID, decodeErr.Error())
			failed++
			continue
		}

		if pubErr := p.publisher.Publish(ctx, event); pubErr != nil {
			blocked[key] = true
			failed++
			p.retry(ctx, e, pubErr)
			continue
		}

		if err := p.repo.MarkCompleted(ctx, e.ID); err != nil {
			p.log.Logger.Warn("mark outbox completed failed", zap.String("event_id", e.ID.String()), zap.Error(err))
		}
		published++
	}

	if p.recorder != nil {
		p.recorder.OutboxPublished(published)
		p.recorder.OutboxFailed(failed)
	}
	return published, attempted, failed, nil
}

func (p *Processor) retry(ctx context.Context, e outbox.OutboxEvent, cause error) {
	p.log.Logger.Warn("outbox publish failed",
		zap.String("event_id", e.ID.String()),
		zap.Int("retry", e.RetryCount+1),
		zap.Error(cause),
	)
	if e.RetryCount+1 >= p.maxRetries {
		p.markFailed(ctx, e.ID, "max retries exceeded: "+cause.Error())
		return
	}
	if err := p.repo.IncrementRetry(ctx, e.ID, cause.Error()); err != nil {
		p.log.Logger.Warn("increment outbox retry failed", zap.String("event_id", e.ID.String()), zap.Error(err))
	}
}

func (p *Processor) markFailed(ctx context.Context, id uuid.UUID, reason string) {
	if err := p.repo.MarkFailed(ctx, id, reason); err != nil {
		p.log.Logger.Warn("mark outbox failed", zap.String("event_id", id.String()), zap.Error(err))
	}
}

// Record serializes event into an outbox row on the given repository, which
// callers pass from inside their transaction.
func Record(ctx context.Context, repo repository.OutboxRepository, event events.ChangeEvent) error {
	payload, err := events.Marshal(event)
	if err != nil {
		return err
	}
	return repo.Create(ctx, &outbox.OutboxEvent{
		ID:            event.ID,
		EventType:     string(event.Kind),
		AggregateType: string(event.Entity),
		AggregateID:   event.Payload.Key(),
		Payload:       payload,
		Status:        outbox.StatusPending,
		CreatedAt:     event.OccurredAt,
	})
}
