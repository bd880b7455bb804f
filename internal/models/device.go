package models

// Device is the read model for one SMS device record. Every nested
// optional is destructured into an explicit pointer so that absent
// fields are visible rather than zero-valued.
type Device struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	PrimaryIP4   *string  `json:"primary_ip4"`
	Status       *string  `json:"status"`
	DeviceType   *string  `json:"device_type"`
	Manufacturer *string  `json:"manufacturer"`
	Role         *string  `json:"role"`
	Location     *string  `json:"location"`
	Platform     *string  `json:"platform"`
	Tags         []string `json:"tags"`
}

// LogicalOperator enumerates the boolean combinators of a device query.
type LogicalOperator string

const (
	OperatorAND LogicalOperator = "AND"
	OperatorOR  LogicalOperator = "OR"
	OperatorNOT LogicalOperator = "NOT"
)

// ConditionOperator enumerates the leaf predicates.
type ConditionOperator string

const (
	ConditionEquals   ConditionOperator = "equals"
	ConditionContains ConditionOperator = "contains"
)

// Condition is one field predicate. Field is one of the recognized
// names (name, location, role, tag, device_type, manufacturer,
// platform) or a custom_fields.<key> reference.
type Condition struct {
	Field    string            `json:"field" validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required,oneof=equals contains"`
	Value    string            `json:"value" validate:"required"`
}

// LogicalOperation is a node of the boolean query tree.
type LogicalOperation struct {
	Operator   LogicalOperator    `json:"operator" validate:"required,oneof=AND OR NOT"`
	Conditions []Condition        `json:"conditions,omitempty"`
	Operations []LogicalOperation `json:"operations,omitempty"`
}

// QueryResult is the outcome of evaluating a device-set query.
type QueryResult struct {
	Devices            []Device `json:"devices"`
	TotalCount         int      `json:"total_count"`
	OperationsExecuted int      `json:"operations_executed"`
	Warnings           []string `json:"warnings,omitempty"`
}
