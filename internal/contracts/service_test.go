package contracts

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/internal/audit"
	"github.com/esignly/contracts-backend/internal/templates"
	"github.com/esignly/contracts-backend/pkg/config"
	"github.com/esignly/contracts-backend/pkg/db"
	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/outbox"
	"github.com/esignly/contracts-backend/pkg/pagination"
)

const contractsTestDDL = `
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

type contractsHarness struct {
	db        *gorm.DB
	svc       Service
	templates templates.Service
	audit     audit.Recorder
}

func newContractsHarness(t *testing.T) *contractsHarness {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:contracts-%s?mode=memory", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.Exec(contractsTestDDL).Error)

	client := db.NewWithConn(conn)

	templateSvc, err := templates.NewService(templates.ServiceParams{Repo: templates.NewRepository(conn)})
	require.NoError(t, err)
	auditSvc, err := audit.NewService(audit.ServiceParams{Repo: audit.NewRepository(conn)})
	require.NoError(t, err)
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), nil)

	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		Templates: templateSvc,
		Audit:     auditSvc,
		Outbox:    outboxSvc,
		Tx:        client,
		Signing:   config.SigningConfig{Policy: string(enums.SigningPolicySequential), ReviewShortDocChars: 400, ReviewCompletionPercent: 100},
	})
	require.NoError(t, err)

	return &contractsHarness{db: conn, svc: svc, templates: templateSvc, audit: auditSvc}
}

func (h *contractsHarness) createTemplate(t *testing.T) *models.Template {
	t.Helper()
	tmpl, err := h.templates.Create(context.Background(), templates.CreateTemplateInput{
		Name:        "Independent Contractor Agreement",
		Type:        enums.TemplateTypeICA,
		Content:     "Between {{client_name}} and {{consultant_name}}.",
		SignerRoles: []string{"consultant", "admin"},
	})
	require.NoError(t, err)
	return tmpl
}

func (h *contractsHarness) createContract(t *testing.T, tmpl *models.Template) (*models.Contract, uuid.UUID, uuid.UUID) {
	t.Helper()
	consultantUser := uuid.New()
	adminUser := uuid.New()
	contract, err := h.svc.Create(context.Background(), CreateContractInput{
		TemplateID:     tmpl.ID,
		Title:          "ICA for Q3 engagement",
		ConsultantID:   uuid.New(),
		ProjectID:      uuid.New(),
		EffectiveDate:  time.Now(),
		ExpirationDate: time.Now().Add(30 * 24 * time.Hour),
		PlaceholderValues: map[string]string{
			"client_name":     "Acme Corp",
			"consultant_name": "Jordan Lee",
		},
		SignerAssignments: map[string]uuid.UUID{
			"consultant": consultantUser,
			"admin":      adminUser,
		},
		CreatedBy: adminUser,
	})
	require.NoError(t, err)
	return contract, consultantUser, adminUser
}

func (h *contractsHarness) auditTypes(t *testing.T, contractID uuid.UUID) []enums.AuditEventType {
	t.Helper()
	events, err := h.audit.ListEvents(context.Background(), contractID)
	require.NoError(t, err)
	types := make([]enums.AuditEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr, "expected typed error, got %v", err)
	require.Equal(t, code, appErr.Code())
}

func TestCreateContractFromTemplate(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)
	contract, consultantUser, adminUser := h.createContract(t, tmpl)

	require.Equal(t, fmt.Sprintf("CON-%d-001", time.Now().Year()), contract.Number)
	require.Equal(t, enums.ContractStatusDraft, contract.Status)
	require.Equal(t, "Between Acme Corp and Jordan Lee.", contract.Content)
	require.Equal(t, tmpl.Version, contract.TemplateVersion)
	require.Len(t, contract.Signers, 2)
	require.Equal(t, "consultant", contract.Signers[0].Role)
	require.Equal(t, consultantUser, contract.Signers[0].UserID)
	require.Equal(t, 1, contract.Signers[0].SigningOrder)
	require.Equal(t, "admin", contract.Signers[1].Role)
	require.Equal(t, adminUser, contract.Signers[1].UserID)
	require.Equal(t, 2, contract.Signers[1].SigningOrder)

	require.Equal(t, []enums.AuditEventType{enums.AuditEventCreated}, h.auditTypes(t, contract.ID))
}

func TestContractNumbersIncrement(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)

	first, _, _ := h.createContract(t, tmpl)
	second, _, _ := h.createContract(t, tmpl)
	require.NotEqual(t, first.Number, second.Number)
	require.Equal(t, fmt.Sprintf("CON-%d-002", time.Now().Year()), second.Number)
}

func TestCreateContractRequiresAllRoleAssignments(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)

	_, err := h.svc.Create(context.Background(), CreateContractInput{
		TemplateID:        tmpl.ID,
		Title:             "Missing admin",
		ConsultantID:      uuid.New(),
		ProjectID:         uuid.New(),
		EffectiveDate:     time.Now(),
		ExpirationDate:    time.Now().Add(24 * time.Hour),
		PlaceholderValues: map[string]string{"client_name": "A", "consultant_name": "B"},
		SignerAssignments: map[string]uuid.UUID{"consultant": uuid.New()},
		CreatedBy:         uuid.New(),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateContractRejectsMissingPlaceholderValues(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)

	_, err := h.svc.Create(context.Background(), CreateContractInput{
		TemplateID:        tmpl.ID,
		Title:             "No values",
		ConsultantID:      uuid.New(),
		ProjectID:         uuid.New(),
		EffectiveDate:     time.Now(),
		ExpirationDate:    time.Now().Add(24 * time.Hour),
		PlaceholderValues: map[string]string{"client_name": "A"},
		SignerAssignments: map[string]uuid.UUID{"consultant": uuid.New(), "admin": uuid.New()},
		CreatedBy:         uuid.New(),
	})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestSendTransitionsToPendingSignature(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)
	contract, _, adminUser := h.createContract(t, tmpl)

	sent, err := h.svc.Send(context.Background(), contract.ID, adminUser)
	require.NoError(t, err)
	require.Equal(t, enums.ContractStatusPendingSignature, sent.Status)
	require.NotNil(t, sent.SentAt)

	require.Equal(t, []enums.AuditEventType{enums.AuditEventCreated, enums.AuditEventSent}, h.auditTypes(t, contract.ID))

	var outboxCount int64
	require.NoError(t, h.db.Model(&models.OutboxEvent{}).
		Where("event_type = ? AND aggregate_id = ?", enums.EventContractSent, contract.ID).
		Count(&outboxCount).Error)
	require.Equal(t, int64(1), outboxCount)

	// Sending twice is a state conflict, not a duplicate transition.
	_, err = h.svc.Send(context.Background(), contract.ID, adminUser)
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestDeclineFreezesContract(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)
	contract, consultantUser, adminUser := h.createContract(t, tmpl)

	_, err := h.svc.Send(context.Background(), contract.ID, adminUser)
	require.NoError(t, err)

	declined, err := h.svc.Decline(context.Background(), DeclineInput{
		ContractID: contract.ID,
		UserID:     consultantUser,
		Reason:     "rate disagreement",
	})
	require.NoError(t, err)
	require.Equal(t, enums.ContractStatusDeclined, declined.Status)
	require.NotNil(t, declined.DeclinedAt)
	require.Equal(t, enums.SignerStatusDeclined, declined.Signers[0].Status)
	require.NotNil(t, declined.Signers[0].DeclineReason)
	require.Equal(t, "rate disagreement", *declined.Signers[0].DeclineReason)
	// Remaining signers stay frozen at pending.
	require.Equal(t, enums.SignerStatusPending, declined.Signers[1].Status)

	// Nobody can act on a declined contract.
	_, err = h.svc.Decline(context.Background(), DeclineInput{ContractID: contract.ID, UserID: adminUser, Reason: "too late"})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestDeclineRejectsNonSigner(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)
	contract, _, adminUser := h.createContract(t, tmpl)

	_, err := h.svc.Send(context.Background(), contract.ID, adminUser)
	require.NoError(t, err)

	_, err = h.svc.Decline(context.Background(), DeclineInput{ContractID: contract.ID, UserID: uuid.New(), Reason: "nope"})
	requireCode(t, err, pkgerrors.CodeForbidden)
}

func TestCancelFromDraftAndPending(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)

	draft, _, adminUser := h.createContract(t, tmpl)
	cancelled, err := h.svc.Cancel(context.Background(), CancelInput{ContractID: draft.ID, ActorID: adminUser, Reason: "scrapped"})
	require.NoError(t, err)
	require.Equal(t, enums.ContractStatusCancelled, cancelled.Status)

	pending, _, admin2 := h.createContract(t, tmpl)
	_, err = h.svc.Send(context.Background(), pending.ID, admin2)
	require.NoError(t, err)
	cancelled, err = h.svc.Cancel(context.Background(), CancelInput{ContractID: pending.ID, ActorID: admin2, Reason: "superseded"})
	require.NoError(t, err)
	require.Equal(t, enums.ContractStatusCancelled, cancelled.Status)

	// Terminal states cannot be cancelled again.
	_, err = h.svc.Cancel(context.Background(), CancelInput{ContractID: pending.ID, ActorID: admin2, Reason: "again"})
	requireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestGetLazilyExpiresOverdueContract(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)
	contract, _, adminUser := h.createContract(t, tmpl)

	_, err := h.svc.Send(context.Background(), contract.ID, adminUser)
	require.NoError(t, err)

	// Push the expiration date into the past behind the service's back.
	require.NoError(t, h.db.Model(&models.Contract{}).
		Where("id = ?", contract.ID).
		Update("expiration_date", time.Now().Add(-time.Hour)).Error)

	got, err := h.svc.Get(context.Background(), contract.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ContractStatusExpired, got.Status)
	require.NotNil(t, got.ExpiredAt)

	types := h.auditTypes(t, contract.ID)
	require.Equal(t, enums.AuditEventExpired, types[len(types)-1])
}

func TestExpiredContractRejectsDecline(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)
	contract, consultantUser, adminUser := h.createContract(t, tmpl)

	_, err := h.svc.Send(context.Background(), contract.ID, adminUser)
	require.NoError(t, err)
	require.NoError(t, h.db.Model(&models.Contract{}).
		Where("id = ?", contract.ID).
		Update("expiration_date", time.Now().Add(-time.Hour)).Error)

	_, err = h.svc.Decline(context.Background(), DeclineInput{ContractID: contract.ID, UserID: consultantUser, Reason: "late"})
	requireCode(t, err, pkgerrors.CodeStateConflict)

	got, err := h.svc.Get(context.Background(), contract.ID)
	require.NoError(t, err)
	require.Equal(t, enums.ContractStatusExpired, got.Status)
}

func TestExpireDueSweepsOverdueContracts(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		contract, _, adminUser := h.createContract(t, tmpl)
		_, err := h.svc.Send(context.Background(), contract.ID, adminUser)
		require.NoError(t, err)
		ids = append(ids, contract.ID)
	}
	// Two overdue, one still current.
	require.NoError(t, h.db.Model(&models.Contract{}).
		Where("id IN ?", ids[:2]).
		Update("expiration_date", time.Now().Add(-time.Hour)).Error)

	expired, err := h.svc.ExpireDue(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, expired)

	for _, id := range ids[:2] {
		got, err := h.svc.Get(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, enums.ContractStatusExpired, got.Status)
	}
	got, err := h.svc.Get(context.Background(), ids[2])
	require.NoError(t, err)
	require.Equal(t, enums.ContractStatusPendingSignature, got.Status)
}

func TestListReportsOverdueContractsAsExpired(t *testing.T) {
	h := newContractsHarness(t)
	tmpl := h.createTemplate(t)
	contract, _, adminUser := h.createContract(t, tmpl)

	_, err := h.svc.Send(context.Background(), contract.ID, adminUser)
	require.NoError(t, err)
	require.NoError(t, h.db.Model(&models.Contract{}).
		Where("id = ?", contract.ID).
		Update("expiration_date", time.Now().Add(-time.Hour)).Error)

	page, err := h.svc.List(context.Background(), contract.ConsultantID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	require.Equal(t, enums.ContractStatusExpired, page.Items[0].Status)
}

func TestGetUnknownContractIsNotFound(t *testing.T) {
	h := newContractsHarness(t)
	_, err := h.svc.Get(context.Background(), uuid.New())
	requireCode(t, err, pkgerrors.CodeNotFound)
}
