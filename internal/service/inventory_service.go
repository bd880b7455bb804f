package service

import (
	"context"

	"github.com/netopscockpit/cockpit/internal/inventory"
	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/query"
	"github.com/netopscockpit/cockpit/internal/repository"
	"github.com/netopscockpit/cockpit/internal/sms"
)

// PreviewRequest evaluates a device-set query without rendering.
type PreviewRequest struct {
	Operations []models.LogicalOperation `json:"operations" validate:"required,min=1,dive"`
}

// GenerateRequest renders the selected template over a device-set
// query result.
type GenerateRequest struct {
	Operations       []models.LogicalOperation `json:"operations" validate:"required,min=1,dive"`
	TemplateName     string                    `json:"template_name" validate:"required"`
	TemplateCategory string                    `json:"template_category"`
}

// GenerateResult is the rendered inventory with its counts.
type GenerateResult struct {
	InventoryContent   string   `json:"inventory_content"`
	TemplateUsed       string   `json:"template_used"`
	DeviceCount        int      `json:"device_count"`
	OperationsExecuted int      `json:"operations_executed"`
	Warnings           []string `json:"warnings,omitempty"`
}

// FieldLister answers UI helper lookups against the SMS.
type FieldLister interface {
	FieldValues(ctx context.Context, field string) ([]string, error)
	CustomFields(ctx context.Context) ([]sms.CustomField, error)
}

// InventoryService combines the query engine with the template-driven
// generator.
type InventoryService interface {
	Preview(ctx context.Context, req PreviewRequest) (*models.QueryResult, error)
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error)
	FieldOptions() []string
	FieldValues(ctx context.Context, field string) ([]string, error)
	CustomFields(ctx context.Context) ([]sms.CustomField, error)
}

type inventoryService struct {
	engine    *query.Engine
	templates repository.TemplateRepository
	generator *inventory.Generator
	fields    FieldLister
}

// NewInventoryService creates the inventory service.
func NewInventoryService(engine *query.Engine, templates repository.TemplateRepository, generator *inventory.Generator, fields FieldLister) InventoryService {
	return &inventoryService{engine: engine, templates: templates, generator: generator, fields: fields}
}

func (s *inventoryService) Preview(ctx context.Context, req PreviewRequest) (*models.QueryResult, error) {
	return s.engine.Evaluate(ctx, req.Operations)
}

func (s *inventoryService) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	result, err := s.engine.Evaluate(ctx, req.Operations)
	if err != nil {
		return nil, err
	}

	category := req.TemplateCategory
	if category == "" {
		category = "inventory"
	}
	tpl, err := s.templates.GetByNameAndCategory(ctx, req.TemplateName, category)
	if err != nil {
		return nil, err
	}
	if tpl == nil {
		return nil, apierrors.NewNotFoundError("Template")
	}
	templateSrc, err := s.templates.Content(ctx, tpl)
	if err != nil {
		return nil, err
	}

	content := s.generator.Render(templateSrc, inventory.DeviceMaps(result.Devices))
	return &GenerateResult{
		InventoryContent:   content,
		TemplateUsed:       tpl.Name,
		DeviceCount:        result.TotalCount,
		OperationsExecuted: result.OperationsExecuted,
		Warnings:           result.Warnings,
	}, nil
}

// FieldOptions lists the condition fields the query engine recognizes.
func (s *inventoryService) FieldOptions() []string {
	return []string{"name", "location", "role", "tag", "device_type", "manufacturer", "platform"}
}

func (s *inventoryService) FieldValues(ctx context.Context, field string) ([]string, error) {
	return s.fields.FieldValues(ctx, field)
}

func (s *inventoryService) CustomFields(ctx context.Context) ([]sms.CustomField, error) {
	return s.fields.CustomFields(ctx)
}
