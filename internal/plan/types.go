package plan

import (
	"github.com/roach88/geoff/internal/ir"
	"github.com/roach88/geoff/internal/queryir"
)

// Action is the plan's top-level verb.
type Action string

const (
	ActionSelect    Action = "select"
	ActionAggregate Action = "aggregate"
)

// Plan is a decoded query plan.
// Exactly one of Groups or Layers is populated.
type Plan struct {
	Action Action
	Groups []Group
	Layers []Layer

	// Legacy is true when the plan used top-level source_tables.
	Legacy bool
}

// Group is one independently compiled unit. It yields one statement per
// table without a relation, or the statements its relation's clause calls
// for.
type Group struct {
	Tables   []SourceTable
	Relation Relation // nil when the group has no relation
}

// Table returns the source table whose qualifier is name.
func (g Group) Table(name string) (SourceTable, bool) {
	for _, t := range g.Tables {
		if t.Qualifier() == name {
			return t, true
		}
	}
	return SourceTable{}, false
}

// SourceTable is one table reference inside a group.
type SourceTable struct {
	Table   string
	Alias   string
	Columns []queryir.Column
	Filters []queryir.Filter
}

// Qualifier returns the alias when set, else the table name.
func (t SourceTable) Qualifier() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Table
}

// Clause is the structural shape a relation compiles to.
type Clause string

const (
	ClauseExists   Clause = "exists"
	ClauseJoin     Clause = "join"
	ClauseLeftJoin Clause = "left join"
)

// Ends names the two tables a relation connects (by qualifier) and the
// clause shape used to connect them.
type Ends struct {
	Clause Clause
	Left   string
	Right  string
}

// Relation is a sealed interface over the two relation kinds.
type Relation interface {
	relationNode() // Marker method - seals interface to this package
	Endpoints() Ends
}

// SpatialRelation relates two tables by a PostGIS predicate.
// Distance (meters) is set only for ST_DWithin.
type SpatialRelation struct {
	Ends
	Method   queryir.SpatialOp
	Distance ir.Number
}

func (SpatialRelation) relationNode() {}

// Endpoints implements Relation.
func (r SpatialRelation) Endpoints() Ends { return r.Ends }

// AttributeRelation relates two tables by column equality.
type AttributeRelation struct {
	Ends
	LeftColumn  string
	RightColumn string
}

func (AttributeRelation) relationNode() {}

// Endpoints implements Relation.
func (r AttributeRelation) Endpoints() Ends { return r.Ends }

// Layer is one entry of a layers-form plan.
type Layer struct {
	Name  string
	Type  string
	Query queryir.Query
}
