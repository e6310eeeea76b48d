package graph

import (
	"encoding/json"
	"fmt"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/types"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// OperandKind tags the operand union.
type OperandKind string

const (
	// OperandIndicator reads a declared indicator series at a lag offset.
	OperandIndicator OperandKind = "indicator"
	// OperandMarketField reads an OHLCV component at a lag offset.
	OperandMarketField OperandKind = "marketField"
	// OperandLiveField reads the current tick (ltp, bid, ask, volume, oi).
	OperandLiveField OperandKind = "liveField"
	// OperandConstant is a numeric literal.
	OperandConstant OperandKind = "constant"
	// OperandCurrentTime reads the step timestamp in a chosen unit.
	OperandCurrentTime OperandKind = "currentTime"
)

// TimeUnit is how a currentTime operand renders the step timestamp.
type TimeUnit string

const (
	// TimeUnitHour is the hour of day, 0-23.
	TimeUnitHour TimeUnit = "hour"
	// TimeUnitMinute is the minute of hour, 0-59.
	TimeUnitMinute TimeUnit = "minute"
	// TimeUnitHHMM is hour*100+minute, e.g. 1530 for 15:30.
	TimeUnitHHMM TimeUnit = "hhmm"
	// TimeUnitUnix is seconds since epoch.
	TimeUnitUnix TimeUnit = "unix"
)

// IsValid reports whether the unit is supported.
func (u TimeUnit) IsValid() bool {
	switch u {
	case TimeUnitHour, TimeUnitMinute, TimeUnitHHMM, TimeUnitUnix:
		return true
	}

	return false
}

// Operand is the tagged union over the value sources a condition can compare.
// Only the fields for its Kind are meaningful.
type Operand struct {
	Kind OperandKind `json:"kind"`
	// Name is the indicator series key for indicator operands, e.g. "rsi_14".
	Name string `json:"name,omitempty"`
	// Field names an OHLCV component (marketField) or tick field (liveField).
	Field string `json:"field,omitempty"`
	// Offset is the bar-relative lag: 0 = current bar, -1 = previous bar.
	// Offsets are bar-relative, never time-relative, regardless of gaps.
	Offset int `json:"offset,omitempty"`
	// Value is the literal for constant operands.
	Value float64 `json:"value,omitempty"`
	// Unit is the time unit for currentTime operands.
	Unit TimeUnit `json:"unit,omitempty"`
	// Symbol/Timeframe optionally target another instrument for market field
	// reads; empty means the strategy's execution instrument.
	Symbol    string          `json:"symbol,omitempty"`
	Timeframe types.Timeframe `json:"timeframe,omitempty"`
}

// Describe renders the operand the way traces and trigger snapshots label
// resolved values, e.g. "rsi_14[-1]", "close[0]", "ltp", "1530", "14:30".
func (o Operand) Describe() string {
	switch o.Kind {
	case OperandIndicator:
		return fmt.Sprintf("%s[%d]", o.Name, o.Offset)
	case OperandMarketField:
		if o.Symbol != "" {
			return fmt.Sprintf("%s.%s[%d]", o.Symbol, o.Field, o.Offset)
		}

		return fmt.Sprintf("%s[%d]", o.Field, o.Offset)
	case OperandLiveField:
		return o.Field
	case OperandConstant:
		return trimFloat(o.Value)
	case OperandCurrentTime:
		return fmt.Sprintf("time.%s", o.Unit)
	}

	return string(o.Kind)
}

// trimFloat renders a float without a trailing ".000000".
func trimFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}

	return fmt.Sprintf("%g", v)
}

// Operator is a comparison operator between two resolved operands.
type Operator string

const (
	OperatorLT Operator = "<"
	OperatorGT Operator = ">"
	OperatorLE Operator = "<="
	OperatorGE Operator = ">="
	OperatorEQ Operator = "=="
	OperatorNE Operator = "!="
)

// IsValid reports whether the operator is supported.
func (op Operator) IsValid() bool {
	switch op {
	case OperatorLT, OperatorGT, OperatorLE, OperatorGE, OperatorEQ, OperatorNE:
		return true
	}

	return false
}

// Apply compares two resolved values. Equality is exact: conditions that
// need tolerance should encode it explicitly with two comparisons.
func (op Operator) Apply(lhs, rhs float64) (bool, error) {
	switch op {
	case OperatorLT:
		return lhs < rhs, nil
	case OperatorGT:
		return lhs > rhs, nil
	case OperatorLE:
		return lhs <= rhs, nil
	case OperatorGE:
		return lhs >= rhs, nil
	case OperatorEQ:
		return lhs == rhs, nil
	case OperatorNE:
		return lhs != rhs, nil
	}

	return false, errors.Newf(errors.ErrCodeInvalidOperator, "unknown operator %q", op)
}

// Condition is one leaf comparison.
type Condition struct {
	LHS      Operand  `json:"lhs"`
	Operator Operator `json:"operator"`
	RHS      Operand  `json:"rhs"`
}

// Describe renders the condition for traces, e.g. "rsi_14[-1] < 30".
func (c Condition) Describe() string {
	return fmt.Sprintf("%s %s %s", c.LHS.Describe(), c.Operator, c.RHS.Describe())
}

// GroupLogic combines a group's children.
type GroupLogic string

const (
	GroupLogicAnd GroupLogic = "AND"
	GroupLogicOr  GroupLogic = "OR"
)

// IsValid reports whether the logic is AND or OR.
func (l GroupLogic) IsValid() bool {
	return l == GroupLogicAnd || l == GroupLogicOr
}

// ConditionGroup is a recursive AND/OR tree of conditions.
type ConditionGroup struct {
	Logic    GroupLogic      `json:"logic"`
	Children []ConditionItem `json:"conditions"`
}

// ConditionItem is either a leaf condition or a nested group. Exactly one of
// the two fields is set.
type ConditionItem struct {
	Condition *Condition
	Group     *ConditionGroup
}

// UnmarshalJSON distinguishes leaves from nested groups by shape: a group
// object carries "logic", a leaf carries "operator".
func (item *ConditionItem) UnmarshalJSON(data []byte) error {
	var probe struct {
		Logic    *json.RawMessage `json:"logic"`
		Operator *json.RawMessage `json:"operator"`
	}

	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}

	switch {
	case probe.Logic != nil:
		var group ConditionGroup
		if err := json.Unmarshal(data, &group); err != nil {
			return err
		}

		item.Group = &group
	case probe.Operator != nil:
		var cond Condition
		if err := json.Unmarshal(data, &cond); err != nil {
			return err
		}

		item.Condition = &cond
	default:
		return errors.New(errors.ErrCodeInvalidGraph, "condition item must carry either \"logic\" (group) or \"operator\" (leaf)")
	}

	return nil
}

// MarshalJSON re-emits the underlying leaf or group.
func (item ConditionItem) MarshalJSON() ([]byte, error) {
	switch {
	case item.Condition != nil:
		return json.Marshal(item.Condition)
	case item.Group != nil:
		return json.Marshal(item.Group)
	}

	return nil, errors.New(errors.ErrCodeEncodeFailed, "empty condition item")
}

// Walk visits every leaf condition in the group in document order.
func (g *ConditionGroup) Walk(visit func(Condition)) {
	if g == nil {
		return
	}

	for _, item := range g.Children {
		switch {
		case item.Condition != nil:
			visit(*item.Condition)
		case item.Group != nil:
			item.Group.Walk(visit)
		}
	}
}
