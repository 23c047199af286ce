package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
)

func setupOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func TestEmitStoresEnvelope(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	contractID := uuid.New()
	actorID := uuid.New()

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventContractSent,
			AggregateType: enums.AggregateContract,
			AggregateID:   contractID,
			Actor:         &ActorRef{UserID: actorID, Role: "consultant"},
			Data:          map[string]any{"number": "CON-2026-001"},
			Version:       1,
		})
	})
	require.NoError(t, err)

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	require.Equal(t, enums.EventContractSent, row.EventType)
	require.Equal(t, contractID, row.AggregateID)
	require.Nil(t, row.PublishedAt)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.Equal(t, actorID, envelope.Actor.UserID)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestEmitIfNotExistsSkipsDuplicates(t *testing.T) {
	db := setupOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	contractID := uuid.New()

	event := DomainEvent{
		EventType:     enums.EventContractCompleted,
		AggregateType: enums.AggregateContract,
		AggregateID:   contractID,
		Data:          map[string]any{"number": "CON-2026-002"},
		Version:       1,
	}

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.EmitIfNotExists(context.Background(), tx, event)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.EmitIfNotExists(context.Background(), tx, event)
	}))

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestFetchMarkPublishedAndFailed(t *testing.T) {
	db := setupOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, DomainEvent{
				EventType:     enums.EventContractSent,
				AggregateType: enums.AggregateContract,
				AggregateID:   uuid.New(),
				Data:          map[string]any{"seq": i},
				Version:       1,
			})
		}))
	}

	rows, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	require.NoError(t, repo.MarkPublished(rows[0].ID))
	require.NoError(t, repo.MarkFailed(rows[1].ID, errors.New("publish timeout")))

	remaining, err := repo.FetchUnpublished(10)
	require.NoError(t, err)
	require.Len(t, remaining, 2)

	var failed models.OutboxEvent
	require.NoError(t, db.First(&failed, "id = ?", rows[1].ID).Error)
	require.Equal(t, 1, failed.AttemptCount)
	require.NotNil(t, failed.LastError)
	require.Contains(t, *failed.LastError, "publish timeout")
}
