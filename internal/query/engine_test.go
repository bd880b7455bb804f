package query

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/netopscockpit/cockpit/internal/models"
)

// fakeQuerier serves devices from an in-memory table.
type fakeQuerier struct {
	devices []models.Device
	queries int
}

func strp(s string) *string { return &s }

func (f *fakeQuerier) DevicesByField(_ context.Context, field, value string, regex bool) ([]models.Device, error) {
	f.queries++
	var out []models.Device
	for _, d := range f.devices {
		var fieldVal string
		switch field {
		case "name":
			fieldVal = d.Name
		case "location":
			if d.Location != nil {
				fieldVal = *d.Location
			}
		case "role":
			if d.Role != nil {
				fieldVal = *d.Role
			}
		case "platform":
			if d.Platform != nil {
				fieldVal = *d.Platform
			}
		}
		if regex {
			if fieldVal != "" && strings.Contains(fieldVal, value) {
				out = append(out, d)
			}
		} else if fieldVal == value {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeQuerier) DevicesByCustomField(_ context.Context, key, value string) ([]models.Device, error) {
	f.queries++
	return nil, nil
}

func testDevices() []models.Device {
	return []models.Device{
		{ID: "d1", Name: "D1", Role: strp("edge"), Location: strp("dc1-prod")},
		{ID: "d2", Name: "D2", Role: strp("edge"), Location: strp("dc1-lab")},
		{ID: "d3", Name: "D3", Role: strp("core"), Location: strp("dc1-prod")},
	}
}

func cond(field, op, value string) models.Condition {
	return models.Condition{Field: field, Operator: models.ConditionOperator(op), Value: value}
}

func TestEvaluate_ANDWithNOTDifference(t *testing.T) {
	querier := &fakeQuerier{devices: testDevices()}
	e := NewEngine(querier)

	result, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: models.OperatorAND, Conditions: []models.Condition{cond("role", "equals", "edge")}},
		{Operator: models.OperatorNOT, Conditions: []models.Condition{cond("location", "contains", "-lab")}},
	})
	require.NoError(t, err)

	require.Len(t, result.Devices, 1)
	assert.Equal(t, "D1", result.Devices[0].Name)
	assert.Equal(t, 1, result.TotalCount)
	assert.Equal(t, 2, result.OperationsExecuted)
}

func TestEvaluate_LeadingNOTIsEmpty(t *testing.T) {
	querier := &fakeQuerier{devices: testDevices()}
	e := NewEngine(querier)

	result, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: models.OperatorNOT, Conditions: []models.Condition{cond("role", "equals", "edge")}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Devices)
	assert.Equal(t, 0, result.TotalCount)
	assert.Equal(t, 1, result.OperationsExecuted, "the leaf still executes")
}

func TestEvaluate_TwoNonNOTsIntersect(t *testing.T) {
	querier := &fakeQuerier{devices: testDevices()}
	e := NewEngine(querier)

	result, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: models.OperatorAND, Conditions: []models.Condition{cond("role", "equals", "edge")}},
		{Operator: models.OperatorAND, Conditions: []models.Condition{cond("location", "equals", "dc1-prod")}},
	})
	require.NoError(t, err)
	require.Len(t, result.Devices, 1)
	assert.Equal(t, "D1", result.Devices[0].Name)
}

func TestEvaluate_ORUnion(t *testing.T) {
	querier := &fakeQuerier{devices: testDevices()}
	e := NewEngine(querier)

	result, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: models.OperatorOR, Conditions: []models.Condition{
			cond("name", "equals", "D1"),
			cond("name", "equals", "D3"),
		}},
	})
	require.NoError(t, err)
	assert.Len(t, result.Devices, 2)
	assert.Equal(t, 2, result.OperationsExecuted)
}

func TestEvaluate_ANDIntersectionWithinOperation(t *testing.T) {
	querier := &fakeQuerier{devices: testDevices()}
	e := NewEngine(querier)

	result, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: models.OperatorAND, Conditions: []models.Condition{
			cond("role", "equals", "edge"),
			cond("location", "equals", "dc1-lab"),
		}},
	})
	require.NoError(t, err)
	require.Len(t, result.Devices, 1)
	assert.Equal(t, "D2", result.Devices[0].Name)
}

func TestEvaluate_NestedOperations(t *testing.T) {
	querier := &fakeQuerier{devices: testDevices()}
	e := NewEngine(querier)

	// edge AND (dc1-prod OR dc1-lab) == all edge devices
	result, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{
			Operator:   models.OperatorAND,
			Conditions: []models.Condition{cond("role", "equals", "edge")},
			Operations: []models.LogicalOperation{
				{Operator: models.OperatorOR, Conditions: []models.Condition{
					cond("location", "equals", "dc1-prod"),
					cond("location", "equals", "dc1-lab"),
				}},
			},
		},
	})
	require.NoError(t, err)
	assert.Len(t, result.Devices, 2)
	assert.Equal(t, 3, result.OperationsExecuted)
}

func TestEvaluate_ContainsDegradesWithWarning(t *testing.T) {
	querier := &fakeQuerier{devices: testDevices()}
	e := NewEngine(querier)

	result, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: models.OperatorAND, Conditions: []models.Condition{cond("role", "contains", "edge")}},
	})
	require.NoError(t, err)
	assert.Len(t, result.Devices, 2, "contains fell back to equals")
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "does not support contains")
}

func TestEvaluate_UnrecognizedField(t *testing.T) {
	e := NewEngine(&fakeQuerier{})

	_, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: models.OperatorAND, Conditions: []models.Condition{cond("serial", "equals", "x")}},
	})
	require.Error(t, err)
}

func TestEvaluate_UnknownOperatorRejected(t *testing.T) {
	e := NewEngine(&fakeQuerier{devices: testDevices()})

	// A single-condition node must be rejected too, not passed through.
	_, err := e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: "XOR", Conditions: []models.Condition{cond("role", "equals", "edge")}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "XOR")

	_, err = e.Evaluate(t.Context(), []models.LogicalOperation{
		{Operator: models.OperatorAND, Operations: []models.LogicalOperation{
			{Operator: "NAND", Conditions: []models.Condition{cond("role", "equals", "edge")}},
		}},
	})
	require.Error(t, err)
}

func TestEvaluate_EmptyOperations(t *testing.T) {
	e := NewEngine(&fakeQuerier{})
	_, err := e.Evaluate(t.Context(), nil)
	require.Error(t, err)
}
