package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuerySealed(t *testing.T) {
	var _ Query = Select{}
	var _ Query = &Select{}
	var _ Query = Union{}
	var _ Query = CTE{}
	var _ Condition = SpatialCondition{}
	var _ Condition = AttributeCondition{}
}

func TestParseOperator(t *testing.T) {
	tests := []struct {
		in   string
		want Operator
	}{
		{"=", OpEq},
		{"<>", OpNe},
		{"ilike", OpILike},
		{"not   ilike", OpNotILike},
		{" not in ", OpNotIn},
		{"Between", OpBetween},
		{"is not null", OpIsNotNull},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOperator(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOperator("LIKE ANY")
	require.Error(t, err)
}

func TestOperatorArity(t *testing.T) {
	assert.False(t, OpIsNull.TakesValue())
	assert.True(t, OpEq.TakesValue())
	assert.True(t, OpBetween.TakesList())
	assert.True(t, OpNotIn.TakesList())
	assert.False(t, OpGe.TakesList())
}

func TestParseSpatialOp(t *testing.T) {
	op, err := ParseSpatialOp("st_dwithin")
	require.NoError(t, err)
	assert.Equal(t, OpDWithin, op)

	op, err = ParseSpatialOp("ST_Intersects")
	require.NoError(t, err)
	assert.Equal(t, OpIntersects, op)

	_, err = ParseSpatialOp("st_touches")
	require.Error(t, err)
}

func TestParseJoinType(t *testing.T) {
	for in, want := range map[string]JoinType{
		"":                JoinInner,
		"inner":           JoinInner,
		"LEFT JOIN":       JoinLeft,
		"left outer join": JoinLeft,
		"full":            JoinFull,
	} {
		got, err := ParseJoinType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseJoinType("cross")
	require.Error(t, err)
}

func TestParseLogicAndDirection(t *testing.T) {
	l, err := ParseLogic("")
	require.NoError(t, err)
	assert.Equal(t, LogicAnd, l)

	l, err = ParseLogic("or")
	require.NoError(t, err)
	assert.Equal(t, LogicOr, l)

	_, err = ParseLogic("xor")
	require.Error(t, err)

	d, err := ParseDirection("desc")
	require.NoError(t, err)
	assert.Equal(t, Desc, d)

	_, err = ParseDirection("up")
	require.Error(t, err)
}

func TestQualifier(t *testing.T) {
	assert.Equal(t, "parks", Select{Table: "parks"}.Qualifier())
	assert.Equal(t, "p", Select{Table: "parks", Alias: "p"}.Qualifier())
	assert.Equal(t, "fs", Join{Table: "fire_stations", Alias: "fs"}.Qualifier())
}
