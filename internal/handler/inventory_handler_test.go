package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netopscockpit/cockpit/internal/models"
	"github.com/netopscockpit/cockpit/internal/service"
	"github.com/netopscockpit/cockpit/internal/sms"
)

// mockInventoryService is a mock implementation of InventoryService.
type mockInventoryService struct {
	previewFunc      func(ctx context.Context, req service.PreviewRequest) (*models.QueryResult, error)
	generateFunc     func(ctx context.Context, req service.GenerateRequest) (*service.GenerateResult, error)
	fieldValuesFunc  func(ctx context.Context, field string) ([]string, error)
	customFieldsFunc func(ctx context.Context) ([]sms.CustomField, error)
}

func (m *mockInventoryService) Preview(ctx context.Context, req service.PreviewRequest) (*models.QueryResult, error) {
	if m.previewFunc != nil {
		return m.previewFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockInventoryService) Generate(ctx context.Context, req service.GenerateRequest) (*service.GenerateResult, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, req)
	}
	return nil, nil
}

func (m *mockInventoryService) FieldOptions() []string {
	return []string{"name", "location", "role", "tag", "device_type", "manufacturer", "platform"}
}

func (m *mockInventoryService) FieldValues(ctx context.Context, field string) ([]string, error) {
	if m.fieldValuesFunc != nil {
		return m.fieldValuesFunc(ctx, field)
	}
	return nil, nil
}

func (m *mockInventoryService) CustomFields(ctx context.Context) ([]sms.CustomField, error) {
	if m.customFieldsFunc != nil {
		return m.customFieldsFunc(ctx)
	}
	return nil, nil
}

func opsBody() map[string]any {
	return map[string]any{
		"operations": []map[string]any{
			{
				"operator": "AND",
				"conditions": []map[string]any{
					{"field": "role", "operator": "equals", "value": "edge"},
				},
			},
		},
	}
}

func TestInventoryHandler_Preview(t *testing.T) {
	svc := &mockInventoryService{
		previewFunc: func(_ context.Context, req service.PreviewRequest) (*models.QueryResult, error) {
			require.Len(t, req.Operations, 1)
			return &models.QueryResult{
				Devices:            []models.Device{{ID: "d1", Name: "edge-1"}},
				TotalCount:         1,
				OperationsExecuted: 1,
			}, nil
		},
	}
	h := NewInventoryHandler(svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/preview", opsBody()))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var result models.QueryResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.TotalCount)
}

func TestInventoryHandler_PreviewRequiresOperations(t *testing.T) {
	h := NewInventoryHandler(&mockInventoryService{})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/preview", map[string]any{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInventoryHandler_Generate(t *testing.T) {
	body := opsBody()
	body["template_name"] = "linux-hosts"

	svc := &mockInventoryService{
		generateFunc: func(_ context.Context, req service.GenerateRequest) (*service.GenerateResult, error) {
			assert.Equal(t, "linux-hosts", req.TemplateName)
			return &service.GenerateResult{
				InventoryContent:   "all:\n  hosts:\n    edge-1:\n",
				TemplateUsed:       req.TemplateName,
				DeviceCount:        1,
				OperationsExecuted: 1,
			}, nil
		},
	}
	h := NewInventoryHandler(svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/generate", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var result service.GenerateResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.DeviceCount)
}

func TestInventoryHandler_Download(t *testing.T) {
	body := opsBody()
	body["template_name"] = "linux-hosts"

	svc := &mockInventoryService{
		generateFunc: func(_ context.Context, _ service.GenerateRequest) (*service.GenerateResult, error) {
			return &service.GenerateResult{InventoryContent: "all:\n  hosts: {}\n"}, nil
		},
	}
	h := NewInventoryHandler(svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodPost, "/download", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename=inventory.yaml`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "all:\n  hosts: {}\n", rec.Body.String())
}

func TestInventoryHandler_FieldHelpers(t *testing.T) {
	svc := &mockInventoryService{
		fieldValuesFunc: func(_ context.Context, field string) ([]string, error) {
			assert.Equal(t, "role", field)
			return []string{"edge", "core"}, nil
		},
		customFieldsFunc: func(context.Context) ([]sms.CustomField, error) {
			return []sms.CustomField{{Key: "rack_unit", Label: "Rack Unit", Type: "text"}}, nil
		},
	}
	h := NewInventoryHandler(svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodGet, "/field-options", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "manufacturer")

	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodGet, "/field-values/role", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "core")

	rec = httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, jsonRequest(t, http.MethodGet, "/custom-fields", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rack_unit")
}
