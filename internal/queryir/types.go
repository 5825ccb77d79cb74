package queryir

import (
	"fmt"
	"strings"

	"github.com/roach88/geoff/internal/ir"
)

// Query represents a query object.
//
// This is a sealed interface - only Select, Union and CTE implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Condition is a join condition: either spatial or attribute equality.
//
// This is a sealed interface - only SpatialCondition and AttributeCondition
// implement it, so an attribute join carrying a distance is unrepresentable.
type Condition interface {
	conditionNode() // Marker method - seals interface to this package
}

// Kind distinguishes plain selects from aggregates. Both compile the same way.
type Kind string

const (
	KindSelect    Kind = "select"
	KindAggregate Kind = "aggregate"
)

// Select is a single-table query with optional joins.
//
// Semantics:
//
//	SELECT [DISTINCT] <columns> FROM <table> [AS <alias>]
//	  <joins>
//	  WHERE (<filters>) AND <spatial filters>
//	  GROUP BY <group_by> ORDER BY <order_by> LIMIT <limit>;
type Select struct {
	Kind           Kind
	Distinct       bool
	Columns        []Column
	Table          string
	Alias          string
	Joins          []Join
	Filters        []Filter
	SpatialFilters []SpatialFilter
	GroupBy        []string
	OrderBy        []OrderBy
	Limit          int // 0 = no limit
}

func (Select) queryNode() {}

// Qualifier returns the name other clauses use to reference the base table.
func (s Select) Qualifier() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Table
}

// UnionType selects the UNION flavor.
type UnionType string

const (
	UnionAll      UnionType = "ALL"
	UnionDistinct UnionType = "DISTINCT"
	UnionPlain    UnionType = ""
)

// Union combines several selects. Sub-queries keep their own columns; the
// database enforces column compatibility.
type Union struct {
	Type    UnionType
	Queries []Select
}

func (Union) queryNode() {}

// NamedQuery is one entry in a WITH clause.
type NamedQuery struct {
	Name  string
	Query Select
}

// CTE wraps named sub-queries in front of a main query.
//
// Semantics:
//
//	WITH <name1> AS (<q1>), <name2> AS (<q2>) <main>;
type CTE struct {
	CTEs []NamedQuery
	Main *Select
}

func (CTE) queryNode() {}

// Column is one projected column.
// Exactly one of Name or Expression is set.
type Column struct {
	Name       string
	Expression string
	Alias      string
	Aggregate  string
}

// Operator is a filter comparison operator.
type Operator string

const (
	OpEq         Operator = "="
	OpNe         Operator = "!="
	OpLt         Operator = "<"
	OpLe         Operator = "<="
	OpGt         Operator = ">"
	OpGe         Operator = ">="
	OpILike      Operator = "ILIKE"
	OpNotILike   Operator = "NOT ILIKE"
	OpIn         Operator = "IN"
	OpNotIn      Operator = "NOT IN"
	OpBetween    Operator = "BETWEEN"
	OpNotBetween Operator = "NOT BETWEEN"
	OpIsNull     Operator = "IS NULL"
	OpIsNotNull  Operator = "IS NOT NULL"
)

var operators = map[string]Operator{
	"=":           OpEq,
	"==":          OpEq,
	"!=":          OpNe,
	"<>":          OpNe,
	"<":           OpLt,
	"<=":          OpLe,
	">":           OpGt,
	">=":          OpGe,
	"ILIKE":       OpILike,
	"NOT ILIKE":   OpNotILike,
	"IN":          OpIn,
	"NOT IN":      OpNotIn,
	"BETWEEN":     OpBetween,
	"NOT BETWEEN": OpNotBetween,
	"IS NULL":     OpIsNull,
	"IS NOT NULL": OpIsNotNull,
}

// ParseOperator normalizes case and inner whitespace and returns the
// matching operator.
func ParseOperator(s string) (Operator, error) {
	key := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	op, ok := operators[key]
	if !ok {
		return "", fmt.Errorf("unknown operator %q", s)
	}
	return op, nil
}

// TakesValue reports whether the operator carries a value operand.
func (o Operator) TakesValue() bool {
	return o != OpIsNull && o != OpIsNotNull
}

// TakesList reports whether the operator's value must be a list.
func (o Operator) TakesList() bool {
	switch o {
	case OpIn, OpNotIn, OpBetween, OpNotBetween:
		return true
	}
	return false
}

// Logic joins a filter to the condition before it.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// ParseLogic returns LogicAnd for the empty string.
func ParseLogic(s string) (Logic, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "AND":
		return LogicAnd, nil
	case "OR":
		return LogicOr, nil
	default:
		return "", fmt.Errorf("unknown logic %q", s)
	}
}

// Filter is one WHERE condition.
//
// Logic describes how this filter joins to the previous one; it is ignored
// on the first filter of a list.
type Filter struct {
	Column   string
	Operator Operator
	Value    ir.Value // nil for IS NULL / IS NOT NULL
	Logic    Logic
}

// SpatialOp is a PostGIS predicate function.
type SpatialOp string

const (
	OpDWithin    SpatialOp = "ST_DWithin"
	OpIntersects SpatialOp = "ST_Intersects"
	OpContains   SpatialOp = "ST_Contains"
	OpWithin     SpatialOp = "ST_Within"
)

// ParseSpatialOp matches a PostGIS predicate name case-insensitively.
func ParseSpatialOp(s string) (SpatialOp, error) {
	for _, op := range []SpatialOp{OpDWithin, OpIntersects, OpContains, OpWithin} {
		if strings.EqualFold(strings.TrimSpace(s), string(op)) {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown spatial operation %q", s)
}

// SpatialCondition joins on a spatial predicate between base and joined
// geometries. Distance is required for ST_DWithin and ignored otherwise.
type SpatialCondition struct {
	Op       SpatialOp
	Distance ir.Number
}

func (SpatialCondition) conditionNode() {}

// AttributeCondition joins on column equality. Unqualified columns are
// prefixed with the base and joined qualifiers respectively.
type AttributeCondition struct {
	LeftColumn  string
	RightColumn string
}

func (AttributeCondition) conditionNode() {}

// JoinType is the SQL join flavor.
type JoinType string

const (
	JoinInner JoinType = "INNER"
	JoinLeft  JoinType = "LEFT"
	JoinRight JoinType = "RIGHT"
	JoinFull  JoinType = "FULL"
)

// ParseJoinType accepts "inner", "LEFT JOIN", "left" etc. Empty is INNER.
func ParseJoinType(s string) (JoinType, error) {
	t := strings.ToUpper(strings.Join(strings.Fields(s), " "))
	t = strings.TrimSuffix(t, " JOIN")
	t = strings.TrimSuffix(t, " OUTER")
	switch t {
	case "", "INNER", "JOIN":
		return JoinInner, nil
	case "LEFT":
		return JoinLeft, nil
	case "RIGHT":
		return JoinRight, nil
	case "FULL":
		return JoinFull, nil
	default:
		return "", fmt.Errorf("unknown join type %q", s)
	}
}

// Join is one JOIN clause against the select's base table.
type Join struct {
	Type  JoinType
	Table string
	Alias string
	On    Condition
}

// Qualifier returns the name the join condition uses for the joined table.
func (j Join) Qualifier() string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Table
}

// SpatialFilter restricts the base table by a spatial relationship with
// another table. With UseExists the predicate is wrapped in
// EXISTS (SELECT 1 FROM <target> WHERE ...).
type SpatialFilter struct {
	Op        SpatialOp
	Target    string
	Distance  ir.Number
	UseExists bool
}

// Direction is an ORDER BY direction.
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// ParseDirection returns Asc for the empty string.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// OrderBy is one ORDER BY term. Exactly one of Column or Expression is set.
type OrderBy struct {
	Column     string
	Expression string
	Direction  Direction
}
