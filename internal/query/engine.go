// Package query evaluates boolean device-set expressions against the
// SMS GraphQL surface.
package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/netopscockpit/cockpit/internal/models"
	apierrors "github.com/netopscockpit/cockpit/internal/pkg/errors"
	"github.com/netopscockpit/cockpit/internal/sms"
)

// regexFields are the fields whose resolver honors contains; elsewhere
// contains degrades to equals with a warning.
var regexFields = map[string]bool{
	"name":     true,
	"location": true,
}

// recognizedFields are the plain (non custom) condition fields.
var recognizedFields = map[string]bool{
	"name": true, "location": true, "role": true, "tag": true,
	"device_type": true, "manufacturer": true, "platform": true,
}

const customFieldPrefix = "custom_fields."

// Engine evaluates LogicalOperation trees into deduplicated device
// sets.
type Engine struct {
	querier sms.DeviceQuerier
}

// NewEngine creates a query engine over the given device querier.
func NewEngine(querier sms.DeviceQuerier) *Engine {
	return &Engine{querier: querier}
}

// deviceSet is keyed by device id for deduplication.
type deviceSet map[string]models.Device

func (s deviceSet) union(other deviceSet) deviceSet {
	out := make(deviceSet, len(s)+len(other))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

func (s deviceSet) intersect(other deviceSet) deviceSet {
	out := make(deviceSet)
	for k, v := range s {
		if _, ok := other[k]; ok {
			out[k] = v
		}
	}
	return out
}

func (s deviceSet) difference(other deviceSet) deviceSet {
	out := make(deviceSet)
	for k, v := range s {
		if _, ok := other[k]; !ok {
			out[k] = v
		}
	}
	return out
}

// evalState accumulates the leaf count and warnings across one
// evaluation.
type evalState struct {
	executed int
	warnings []string
}

// Evaluate combines the top-level operations per the accumulator
// rules: the first non-NOT set seeds the accumulator (a leading NOT
// seeds it empty), later NOTs subtract, later non-NOTs intersect.
func (e *Engine) Evaluate(ctx context.Context, operations []models.LogicalOperation) (*models.QueryResult, error) {
	if len(operations) == 0 {
		return nil, apierrors.NewValidationError("operations", "at least one operation is required")
	}

	state := &evalState{}
	var acc deviceSet
	seeded := false

	for _, op := range operations {
		set, err := e.evalOperation(ctx, op, state)
		if err != nil {
			return nil, err
		}
		if op.Operator == models.OperatorNOT {
			if !seeded {
				acc = deviceSet{}
				seeded = true
				continue
			}
			acc = acc.difference(set)
			continue
		}
		if !seeded {
			acc = set
			seeded = true
			continue
		}
		acc = acc.intersect(set)
	}

	devices := make([]models.Device, 0, len(acc))
	for _, d := range acc {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })

	slog.Info("device query evaluated",
		"operations", len(operations),
		"leaves_executed", state.executed,
		"devices", len(devices))

	return &models.QueryResult{
		Devices:            devices,
		TotalCount:         len(devices),
		OperationsExecuted: state.executed,
		Warnings:           state.warnings,
	}, nil
}

// evalOperation resolves one tree node. NOT combines its children the
// same way OR does; the negation itself happens in the top-level
// accumulator.
func (e *Engine) evalOperation(ctx context.Context, op models.LogicalOperation, state *evalState) (deviceSet, error) {
	switch op.Operator {
	case models.OperatorAND, models.OperatorOR, models.OperatorNOT:
	default:
		return nil, apierrors.NewValidationError("operator", fmt.Sprintf("unknown operator %q", op.Operator))
	}

	var sets []deviceSet

	for _, cond := range op.Conditions {
		set, err := e.evalCondition(ctx, cond, state)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	for _, nested := range op.Operations {
		set, err := e.evalOperation(ctx, nested, state)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	if len(sets) == 0 {
		return deviceSet{}, nil
	}

	acc := sets[0]
	for _, set := range sets[1:] {
		if op.Operator == models.OperatorAND {
			acc = acc.intersect(set)
		} else {
			acc = acc.union(set)
		}
	}
	return acc, nil
}

// evalCondition resolves one leaf predicate with one SMS query.
func (e *Engine) evalCondition(ctx context.Context, cond models.Condition, state *evalState) (deviceSet, error) {
	field := strings.TrimSpace(cond.Field)

	if strings.HasPrefix(field, customFieldPrefix) {
		key := strings.TrimPrefix(field, customFieldPrefix)
		if key == "" {
			return nil, apierrors.NewValidationError("field", "custom field key is empty")
		}
		if cond.Operator == models.ConditionContains {
			state.warnings = append(state.warnings,
				fmt.Sprintf("field %q does not support contains; using equals", field))
		}
		devices, err := e.querier.DevicesByCustomField(ctx, key, cond.Value)
		if err != nil {
			return nil, err
		}
		state.executed++
		return toSet(devices), nil
	}

	if !recognizedFields[field] {
		return nil, apierrors.NewValidationError("field", fmt.Sprintf("unrecognized field %q", field))
	}

	regex := cond.Operator == models.ConditionContains
	if regex && !regexFields[field] {
		state.warnings = append(state.warnings,
			fmt.Sprintf("field %q does not support contains; using equals", field))
		regex = false
	}

	devices, err := e.querier.DevicesByField(ctx, field, cond.Value, regex)
	if err != nil {
		return nil, err
	}
	state.executed++
	return toSet(devices), nil
}

func toSet(devices []models.Device) deviceSet {
	set := make(deviceSet, len(devices))
	for _, d := range devices {
		key := d.ID
		if key == "" {
			key = d.Name
		}
		set[key] = d
	}
	return set
}
