package templates

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/esignly/contracts-backend/pkg/db/models"
	"github.com/esignly/contracts-backend/pkg/enums"
	pkgerrors "github.com/esignly/contracts-backend/pkg/errors"
	"github.com/esignly/contracts-backend/pkg/logger"
)

// CreateTemplateInput carries the fields for a new template.
type CreateTemplateInput struct {
	Name        string
	Type        enums.TemplateType
	Content     string
	SignerRoles []string
}

// UpdateTemplateInput carries the mutable template fields. Nil means
// leave unchanged. A content change bumps the version; existing
// contracts keep their snapshot.
type UpdateTemplateInput struct {
	Name    *string
	Content *string
	Active  *bool
}

// Service exposes the template store read by the contract factory.
type Service interface {
	Create(ctx context.Context, input CreateTemplateInput) (*models.Template, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Template, error)
	GetActive(ctx context.Context, id uuid.UUID) (*models.Template, error)
	List(ctx context.Context, activeOnly bool) ([]models.Template, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateTemplateInput) (*models.Template, error)
}

// ServiceParams groups dependencies for the template service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService builds a template service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template repo is required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) Create(ctx context.Context, input CreateTemplateInput) (*models.Template, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template name is required")
	}
	if !input.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid template type")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template content is required")
	}
	if len(input.SignerRoles) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one signer role is required")
	}
	seen := map[string]bool{}
	for _, role := range input.SignerRoles {
		role = strings.TrimSpace(role)
		if role == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "signer roles must be non-empty")
		}
		if seen[role] {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "duplicate signer role "+role)
		}
		seen[role] = true
	}

	row := &models.Template{
		ID:           uuid.New(),
		Name:         input.Name,
		Type:         input.Type,
		Content:      input.Content,
		Placeholders: ExtractPlaceholders(input.Content),
		SignerRoles:  input.SignerRoles,
		Active:       true,
		Version:      1,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create template")
	}

	if s.logg != nil {
		fields := map[string]any{"template_id": row.ID.String(), "template_type": row.Type}
		s.logg.Info(s.logg.WithFields(ctx, fields), "template created")
	}
	return row, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "template id is required")
	}
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "template not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load template")
	}
	return row, nil
}

// GetActive loads a template and rejects inactive ones. The contract
// factory instantiates from active templates only.
func (s *service) GetActive(ctx context.Context, id uuid.UUID) (*models.Template, error) {
	row, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !row.Active {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "template is inactive")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, activeOnly bool) ([]models.Template, error) {
	rows, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list templates")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateTemplateInput) (*models.Template, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := false
	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "template name must be non-empty")
		}
		current.Name = *input.Name
		changed = true
	}
	if input.Content != nil {
		if strings.TrimSpace(*input.Content) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "template content must be non-empty")
		}
		if *input.Content != current.Content {
			current.Content = *input.Content
			current.Placeholders = ExtractPlaceholders(*input.Content)
			current.Version++
			changed = true
		}
	}
	if input.Active != nil && *input.Active != current.Active {
		current.Active = *input.Active
		changed = true
	}
	if !changed {
		return current, nil
	}

	if err := s.repo.Save(ctx, current); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update template")
	}
	return current, nil
}
