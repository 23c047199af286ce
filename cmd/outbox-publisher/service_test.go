package main

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/esignly/contracts-backend/pkg/config"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	"github.com/esignly/contracts-backend/pkg/logger"
)

type fakeOutboxRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeOutboxRepo) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	if limit < len(f.events) {
		return f.events[:limit], nil
	}
	return f.events, nil
}

func (f *fakeOutboxRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeResult struct {
	err error
}

func (f fakeResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "msg-id", nil
}

type fakePublisher struct {
	messages []*gcppubsub.Message
	failFor  map[string]error
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if err, ok := f.failFor[msg.Attributes["event_id"]]; ok {
		return fakeResult{err: err}
	}
	return fakeResult{}
}

func testEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(map[string]string{"number": "CON-2026-001"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventContractSent,
		AggregateType: enums.AggregateContract,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
		CreatedAt:     time.Now(),
	}
}

func newTestService(t *testing.T, repo *fakeOutboxRepo, pub *fakePublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestDrainOncePublishesBatch(t *testing.T) {
	first := testEvent(t, 0)
	second := testEvent(t, 2)
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	published, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if published != 2 {
		t.Fatalf("expected 2 published got %d", published)
	}
	if len(repo.published) != 2 {
		t.Fatalf("expected both events marked published, got %d", len(repo.published))
	}
	if len(pub.messages) != 2 {
		t.Fatalf("expected 2 messages got %d", len(pub.messages))
	}
	if got := pub.messages[0].Attributes["event_type"]; got != string(enums.EventContractSent) {
		t.Fatalf("unexpected event_type attribute %q", got)
	}
}

func TestDrainOnceFailureDoesNotBlockBatch(t *testing.T) {
	bad := testEvent(t, 0)
	good := testEvent(t, 0)
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{bad, good}}
	pub := &fakePublisher{failFor: map[string]error{bad.ID.String(): errors.New("topic unavailable")}}
	svc := newTestService(t, repo, pub)

	published, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if published != 1 {
		t.Fatalf("expected 1 published got %d", published)
	}
	if len(repo.failed) != 1 || repo.failed[0] != bad.ID {
		t.Fatalf("expected failing event marked failed")
	}
	if len(repo.published) != 1 || repo.published[0] != good.ID {
		t.Fatalf("expected surviving event marked published")
	}
}

func TestDrainOnceSkipsExhaustedEvents(t *testing.T) {
	exhausted := testEvent(t, defaultMaxAttempts)
	repo := &fakeOutboxRepo{events: []models.OutboxEvent{exhausted}}
	pub := &fakePublisher{}
	svc := newTestService(t, repo, pub)

	published, err := svc.drainOnce(context.Background())
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if published != 0 {
		t.Fatalf("expected 0 published got %d", published)
	}
	if len(pub.messages) != 0 {
		t.Fatalf("exhausted event should not be republished")
	}
	if len(repo.failed) != 0 {
		t.Fatalf("exhausted event should not be marked failed again")
	}
}
