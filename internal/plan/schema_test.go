package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSchema_Valid(t *testing.T) {
	require.NoError(t, CheckSchema([]byte(fireStationsPlan)))

	require.NoError(t, CheckSchema(relationPlan(`{
		"type": "spatial", "method": "st_dwithin", "clause": "left_join",
		"left_table": "bike_lanes", "right_table": "s",
		"params": {"distance_meters": 500}
	}`)))
}

func TestCheckSchema_MissingAction(t *testing.T) {
	err := CheckSchema([]byte(`{"groups": [{"source_tables": [{"table": "parks"}]}]}`))
	require.Error(t, err)
	assert.True(t, IsPlanError(err))
	assert.Contains(t, err.Error(), "action")
}

func TestCheckSchema_EmptySourceTables(t *testing.T) {
	err := CheckSchema([]byte(`{"action": "select", "groups": [{"source_tables": []}]}`))
	require.Error(t, err)
	assert.True(t, IsPlanError(err))
	assert.Contains(t, err.Error(), "source_tables")
}

func TestCheckSchema_BadRelationType(t *testing.T) {
	err := CheckSchema(relationPlan(`{"type": "temporal", "left_table": "bike_lanes", "right_table": "s"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relations")
}

func TestCheckSchema_MalformedJSON(t *testing.T) {
	err := CheckSchema([]byte(`{"action": `))
	require.Error(t, err)
	assert.True(t, IsPlanError(err))
}
