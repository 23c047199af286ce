package templates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
)

func setupTemplatesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
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
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func newTemplateService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: NewRepository(db)})
	require.NoError(t, err)
	return svc
}

func TestCreateTemplateExtractsPlaceholders(t *testing.T) {
	db := setupTemplatesTestDB(t)
	svc := newTemplateService(t, db)

	created, err := svc.Create(context.Background(), CreateTemplateInput{
		Name:        "Independent Contractor Agreement",
		Type:        enums.TemplateTypeICA,
		Content:     "Between {{client_name}} and {{consultant_name}} for {{project_name}}.",
		SignerRoles: []string{"consultant", "admin"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, created.Version)
	require.True(t, created.Active)
	require.Equal(t, []string{"client_name", "consultant_name", "project_name"}, created.Placeholders)

	loaded, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.Placeholders, loaded.Placeholders)
	require.Equal(t, []string{"consultant", "admin"}, loaded.SignerRoles)
}

func TestCreateTemplateValidation(t *testing.T) {
	db := setupTemplatesTestDB(t)
	svc := newTemplateService(t, db)
	ctx := context.Background()

	cases := []CreateTemplateInput{
		{Name: "", Type: enums.TemplateTypeNDA, Content: "x", SignerRoles: []string{"consultant"}},
		{Name: "n", Type: "bogus", Content: "x", SignerRoles: []string{"consultant"}},
		{Name: "n", Type: enums.TemplateTypeNDA, Content: "", SignerRoles: []string{"consultant"}},
		{Name: "n", Type: enums.TemplateTypeNDA, Content: "x", SignerRoles: nil},
		{Name: "n", Type: enums.TemplateTypeNDA, Content: "x", SignerRoles: []string{"consultant", "consultant"}},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		require.Error(t, err)
		appErr := pkgerrors.As(err)
		require.NotNil(t, appErr)
		require.Equal(t, pkgerrors.CodeValidation, appErr.Code())
	}
}

func TestUpdateContentBumpsVersion(t *testing.T) {
	db := setupTemplatesTestDB(t)
	svc := newTemplateService(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateTemplateInput{
		Name:        "NDA",
		Type:        enums.TemplateTypeNDA,
		Content:     "Old body with {{client_name}}.",
		SignerRoles: []string{"consultant"},
	})
	require.NoError(t, err)

	newContent := "New body with {{client_name}} and {{effective_date}}."
	updated, err := svc.Update(ctx, created.ID, UpdateTemplateInput{Content: &newContent})
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)
	require.Equal(t, []string{"client_name", "effective_date"}, updated.Placeholders)

	// Saving identical content leaves the version alone.
	same, err := svc.Update(ctx, created.ID, UpdateTemplateInput{Content: &newContent})
	require.NoError(t, err)
	require.Equal(t, 2, same.Version)
}

func TestGetActiveRejectsDeactivated(t *testing.T) {
	db := setupTemplatesTestDB(t)
	svc := newTemplateService(t, db)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateTemplateInput{
		Name:        "SOW",
		Type:        enums.TemplateTypeSOW,
		Content:     "Scope of work.",
		SignerRoles: []string{"consultant"},
	})
	require.NoError(t, err)

	inactive := false
	_, err = svc.Update(ctx, created.ID, UpdateTemplateInput{Active: &inactive})
	require.NoError(t, err)

	_, err = svc.GetActive(ctx, created.ID)
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeStateConflict, appErr.Code())
}

func TestGetUnknownTemplateIsNotFound(t *testing.T) {
	db := setupTemplatesTestDB(t)
	svc := newTemplateService(t, db)

	_, err := svc.Get(context.Background(), uuid.New())
	require.Error(t, err)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	require.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}
