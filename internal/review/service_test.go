package review

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/internal/audit"
	"github.com/esignly/contracts-backend/internal/contracts"
	"github.com/esignly/contracts-backend/internal/templates"
	"github.com/esignly/contracts-backend/pkg/config"
	"github.com/esignly/contracts-backend/pkg/db"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/outbox"
)

const reviewTestDDL = `
CREATE TABLE IF NOT EXISTS templates (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  content TEXT NOT NULL,
  placeholders TEXT NOT NULL,
  signer_roles TEXT NOT NULL,
  active INTEGER NOT NULL DEFAULT 1,
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS contracts (
  id TEXT PRIMARY KEY,
  number TEXT NOT NULL UNIQUE,
  template_id TEXT NOT NULL,
  template_version INTEGER NOT NULL,
  title TEXT NOT NULL,
  content TEXT NOT NULL,
  consultant_id TEXT NOT NULL,
  project_id TEXT NOT NULL,
  signing_policy TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  effective_date DATETIME NOT NULL,
  expiration_date DATETIME NOT NULL,
  created_by TEXT NOT NULL,
  sent_at DATETIME,
  completed_at DATETIME,
  declined_at DATETIME,
  expired_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS signers (
  id TEXT PRIMARY KEY,
  contract_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  role TEXT NOT NULL,
  signing_order INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  signed_at DATETIME,
  declined_at DATETIME,
  decline_reason TEXT,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE TABLE IF NOT EXISTS contract_counters (
  year INTEGER PRIMARY KEY,
  last_value INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS review_sessions (
  id TEXT PRIMARY KEY,
  contract_id TEXT NOT NULL,
  user_id TEXT NOT NULL,
  progress INTEGER NOT NULL DEFAULT 0,
  completed INTEGER NOT NULL DEFAULT 0,
  started_at DATETIME NOT NULL,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (contract_id, user_id)
);
CREATE TABLE IF NOT EXISTS audit_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  contract_id TEXT NOT NULL,
  type TEXT NOT NULL,
  actor_id TEXT,
  details TEXT,
  created_at DATETIME
);
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

type reviewHarness struct {
	db        *gorm.DB
	svc       Service
	contracts contracts.Service
	templates templates.Service
	audit     audit.Recorder
}

func newReviewHarness(t *testing.T) *reviewHarness {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:review-%s?mode=memory", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(reviewTestDDL).Error)

	client := db.NewWithConn(conn)
	signing := config.SigningConfig{Policy: string(enums.SigningPolicySequential), ReviewShortDocChars: 400, ReviewCompletionPercent: 100}

	templateSvc, err := templates.NewService(templates.ServiceParams{Repo: templates.NewRepository(conn)})
	require.NoError(t, err)
	auditSvc, err := audit.NewService(audit.ServiceParams{Repo: audit.NewRepository(conn)})
	require.NoError(t, err)

	contractSvc, err := contracts.NewService(contracts.ServiceParams{
		Repo:      contracts.NewRepository(conn),
		Templates: templateSvc,
		Audit:     auditSvc,
		Outbox:    outbox.NewService(outbox.NewRepository(conn), nil),
		Tx:        client,
		Signing:   signing,
	})
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Contracts: contractSvc,
		Audit:     auditSvc,
		Tx:        client,
		Signing:   signing,
	})
	require.NoError(t, err)

	return &reviewHarness{db: conn, svc: svc, contracts: contractSvc, templates: templateSvc, audit: auditSvc}
}

// pendingContract creates and sends a one-signer contract whose rendered
// content has the given body text.
func (h *reviewHarness) pendingContract(t *testing.T, body string) (*models.Contract, uuid.UUID) {
	t.Helper()
	ctx := context.Background()

	tmpl, err := h.templates.Create(ctx, templates.CreateTemplateInput{
		Name:        "Agreement " + uuid.NewString(),
		Type:        enums.TemplateTypeGeneral,
		Content:     "{{body}}",
		SignerRoles: []string{"consultant"},
	})
	require.NoError(t, err)

	signerUser := uuid.New()
	contract, err := h.contracts.Create(ctx, contracts.CreateContractInput{
		TemplateID:        tmpl.ID,
		Title:             "Agreement",
		ConsultantID:      uuid.New(),
		ProjectID:         uuid.New(),
		EffectiveDate:     time.Now(),
		ExpirationDate:    time.Now().Add(7 * 24 * time.Hour),
		PlaceholderValues: map[string]string{"body": body},
		SignerAssignments: map[string]uuid.UUID{"consultant": signerUser},
		CreatedBy:         uuid.New(),
	})
	require.NoError(t, err)

	contract, err = h.contracts.Send(ctx, contract.ID, contract.CreatedBy)
	require.NoError(t, err)
	return contract, signerUser
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr, "expected typed error, got %v", err)
	require.Equal(t, code, appErr.Code())
}

func longBody() string {
	return strings.Repeat("All obligations survive termination. ", 20)
}

func TestStartShortDocumentAutoCompletes(t *testing.T) {
	h := newReviewHarness(t)
	contract, signerUser := h.pendingContract(t, "Short terms.")
	ctx := context.Background()

	session, err := h.svc.Start(ctx, contract.ID, signerUser)
	require.NoError(t, err)
	require.True(t, session.Completed)
	require.Equal(t, 100, session.Progress)
	require.NotNil(t, session.CompletedAt)

	events, err := h.audit.ListEvents(ctx, contract.ID)
	require.NoError(t, err)
	var types []enums.AuditEventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	require.Contains(t, types, enums.AuditEventReviewStarted)
	require.Contains(t, types, enums.AuditEventReviewCompleted)
}

func TestStartLongDocumentRequiresScrolling(t *testing.T) {
	h := newReviewHarness(t)
	contract, signerUser := h.pendingContract(t, longBody())
	ctx := context.Background()

	session, err := h.svc.Start(ctx, contract.ID, signerUser)
	require.NoError(t, err)
	require.False(t, session.Completed)
	require.Equal(t, 0, session.Progress)

	ok, err := h.svc.IsComplete(ctx, contract.ID, signerUser)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStartIsIdempotent(t *testing.T) {
	h := newReviewHarness(t)
	contract, signerUser := h.pendingContract(t, longBody())
	ctx := context.Background()

	first, err := h.svc.Start(ctx, contract.ID, signerUser)
	require.NoError(t, err)
	second, err := h.svc.Start(ctx, contract.ID, signerUser)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, h.db.Model(&models.ReviewSession{}).
		Where("contract_id = ?", contract.ID).
		Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestRecordProgressCompletesAtThreshold(t *testing.T) {
	h := newReviewHarness(t)
	contract, signerUser := h.pendingContract(t, longBody())
	ctx := context.Background()

	_, err := h.svc.Start(ctx, contract.ID, signerUser)
	require.NoError(t, err)

	session, err := h.svc.RecordProgress(ctx, contract.ID, signerUser, 55)
	require.NoError(t, err)
	require.Equal(t, 55, session.Progress)
	require.False(t, session.Completed)

	session, err = h.svc.RecordProgress(ctx, contract.ID, signerUser, 100)
	require.NoError(t, err)
	require.True(t, session.Completed)
	require.NotNil(t, session.CompletedAt)

	ok, err := h.svc.IsComplete(ctx, contract.ID, signerUser)
	require.NoError(t, err)
	require.True(t, ok)

	events, err := h.audit.ListEvents(ctx, contract.ID)
	require.NoError(t, err)
	require.Equal(t, enums.AuditEventReviewCompleted, events[len(events)-1].Type)
}

func TestRecordProgressNeverMovesBackwards(t *testing.T) {
	h := newReviewHarness(t)
	contract, signerUser := h.pendingContract(t, longBody())
	ctx := context.Background()

	_, err := h.svc.Start(ctx, contract.ID, signerUser)
	require.NoError(t, err)
	_, err = h.svc.RecordProgress(ctx, contract.ID, signerUser, 70)
	require.NoError(t, err)

	session, err := h.svc.RecordProgress(ctx, contract.ID, signerUser, 30)
	require.NoError(t, err)
	require.Equal(t, 70, session.Progress)
}

// staleReadRepo serves one doctored Find result with lowered progress,
// standing in for a racing update that committed between the read and
// the write.
type staleReadRepo struct {
	Repository
	stale *bool
}

func (r *staleReadRepo) WithTx(tx *gorm.DB) Repository {
	return &staleReadRepo{Repository: r.Repository.WithTx(tx), stale: r.stale}
}

func (r *staleReadRepo) Find(ctx context.Context, contractID, userID uuid.UUID) (*models.ReviewSession, error) {
	session, err := r.Repository.Find(ctx, contractID, userID)
	if err != nil || session == nil || !*r.stale {
		return session, err
	}
	*r.stale = false
	session.Progress = 10
	session.Completed = false
	session.CompletedAt = nil
	return session, nil
}

func TestRecordProgressGuardKeepsConcurrentWinner(t *testing.T) {
	h := newReviewHarness(t)
	contract, signerUser := h.pendingContract(t, longBody())
	ctx := context.Background()

	_, err := h.svc.Start(ctx, contract.ID, signerUser)
	require.NoError(t, err)
	_, err = h.svc.RecordProgress(ctx, contract.ID, signerUser, 70)
	require.NoError(t, err)

	stale := true
	svc, err := NewService(ServiceParams{
		Repo:      &staleReadRepo{Repository: NewRepository(h.db), stale: &stale},
		Contracts: h.contracts,
		Audit:     h.audit,
		Tx:        db.NewWithConn(h.db),
		Signing:   config.SigningConfig{Policy: string(enums.SigningPolicySequential), ReviewShortDocChars: 400, ReviewCompletionPercent: 100},
	})
	require.NoError(t, err)

	// The stale read reports 10, but the guard sees the committed 70 and
	// refuses to move the session backwards.
	session, err := svc.RecordProgress(ctx, contract.ID, signerUser, 30)
	require.NoError(t, err)
	require.Equal(t, 70, session.Progress)

	var stored models.ReviewSession
	require.NoError(t, h.db.Where("contract_id = ? AND user_id = ?", contract.ID, signerUser).First(&stored).Error)
	require.Equal(t, 70, stored.Progress)
}

func TestRecordProgressRequiresStartedSession(t *testing.T) {
	h := newReviewHarness(t)
	contract, signerUser := h.pendingContract(t, longBody())

	_, err := h.svc.RecordProgress(context.Background(), contract.ID, signerUser, 50)
	requireCode(t, err, pkgerrors.CodeNotFound)
}

func TestRecordProgressValidatesRange(t *testing.T) {
	h := newReviewHarness(t)
	contract, signerUser := h.pendingContract(t, longBody())

	_, err := h.svc.RecordProgress(context.Background(), contract.ID, signerUser, 101)
	requireCode(t, err, pkgerrors.CodeValidation)
	_, err = h.svc.RecordProgress(context.Background(), contract.ID, signerUser, -1)
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestStartRejectsNonSigner(t *testing.T) {
	h := newReviewHarness(t)
	contract, _ := h.pendingContract(t, longBody())

	_, err := h.svc.Start(context.Background(), contract.ID, uuid.New())
	requireCode(t, err, pkgerrors.CodeForbidden)
}
