package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/esignly/contracts-backend/pkg/config"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/logger"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultMaxAttempts    = 10
	defaultPublishTimeout = 15 * time.Second
	publishBaseBackoff    = 200 * time.Millisecond
	publishRetries        = 3
)

type outboxRepository interface {
	FetchUnpublished(limit int) ([]models.OutboxEvent, error)
	MarkPublished(id uuid.UUID) error
	MarkFailed(id uuid.UUID, err error) error
}

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type gcpPublisher struct {
	inner *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.inner.Publish(ctx, msg)
}

// ServiceParams configures the outbox publisher loop.
type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	Repository outboxRepository
	Publisher  publisher
}

// Service drains unpublished outbox rows to Pub/Sub. Each event is
// published at least once; consumers must dedupe on the event id.
type Service struct {
	logg         *logger.Logger
	repo         outboxRepository
	pub          publisher
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}
	if params.Publisher == nil {
		return nil, errors.New("publisher is required")
	}

	batchSize := params.Config.Outbox.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pollMs := params.Config.Outbox.PollIntervalMS
	if pollMs <= 0 {
		pollMs = defaultPollMs
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		logg:         params.Logger,
		repo:         params.Repository,
		pub:          params.Publisher,
		batchSize:    batchSize,
		maxAttempts:  maxAttempts,
		pollInterval: time.Duration(pollMs) * time.Millisecond,
	}, nil
}

// Run polls the outbox until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if published, err := s.drainOnce(ctx); err != nil {
				s.logg.Error(ctx, "outbox drain cycle failed", err)
			} else if published > 0 {
				s.logg.Info(s.logg.WithField(ctx, "published", published), "outbox events published")
			}
		}
	}
}

// drainOnce publishes one batch. A single failing event is marked
// failed and never blocks the rest of the batch.
func (s *Service) drainOnce(ctx context.Context) (int, error) {
	events, err := s.repo.FetchUnpublished(s.batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch unpublished: %w", err)
	}

	published := 0
	for i := range events {
		event := events[i]
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"event_id":   event.ID.String(),
			"event_type": string(event.EventType),
		})

		if event.AttemptCount >= s.maxAttempts {
			s.logg.Warn(logCtx, "outbox event exceeded max attempts, skipping")
			continue
		}

		if err := s.publishEvent(ctx, event); err != nil {
			s.logg.Error(logCtx, "outbox publish failed", err)
			if markErr := s.repo.MarkFailed(event.ID, err); markErr != nil {
				s.logg.Error(logCtx, "failed to record outbox failure", markErr)
			}
			continue
		}

		if err := s.repo.MarkPublished(event.ID); err != nil {
			// The event went out; the next cycle republishes and the
			// consumer dedupes on the event id.
			s.logg.Error(logCtx, "failed to mark outbox event published", err)
			continue
		}
		published++
	}
	return published, nil
}

func (s *Service) publishEvent(ctx context.Context, event models.OutboxEvent) error {
	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(publishRetries, retry.NewExponential(publishBaseBackoff))
	return retry.Do(publishCtx, backoff, func(ctx context.Context) error {
		result := s.pub.Publish(ctx, &gcppubsub.Message{
			Data: event.Payload,
			Attributes: map[string]string{
				"event_id":       event.ID.String(),
				"event_type":     string(event.EventType),
				"aggregate_type": string(event.AggregateType),
				"aggregate_id":   event.AggregateID.String(),
			},
		})
		if _, err := result.Get(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
