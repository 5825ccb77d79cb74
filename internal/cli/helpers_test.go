package cli

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/geoff/internal/store"
)

const (
	firePlan = `{"action": "select", "groups": [{"source_tables": [{
		"table": "fire_stations",
		"columns": ["station_no", "address", "year_built", "geometry"],
		"filters": [{"column": "year_built", "operator": "<", "value": 1980}]
	}]}]}`

	fireSQL   = "SELECT fire_stations.station_no, fire_stations.address, fire_stations.year_built, ST_AsGeoJSON(fire_stations.geometry) AS geometry FROM fire_stations WHERE year_built < 1980;"
	fireQuery = "SELECT fire_stations.station_no, fire_stations.address, fire_stations.year_built, ST_AsGeoJSON(fire_stations.geometry) AS geometry FROM fire_stations WHERE year_built < $1;"

	casinoPlan = `{"action": "select", "groups": [{"source_tables": [{"table": "casinos", "columns": ["name"]}]}]}`

	point = `{"type":"Point","coordinates":[-79.4,43.7]}`
)

var fireColumns = []string{"station_no", "address", "year_built", "geometry"}

// testRoot returns root options reading files from an in-memory filesystem
// holding the given files.
func testRoot(t *testing.T, format string, files map[string]string) *RootOptions {
	t.Helper()
	fs := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fs, name, []byte(content), 0o644))
	}
	return &RootOptions{Format: format, Fs: fs}
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// recordingHistory keeps recorded questions in memory.
type recordingHistory struct {
	mu      sync.Mutex
	queries []store.Query
}

func (h *recordingHistory) RecordQuery(_ context.Context, q store.Query, _ []store.Attempt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.queries = append(h.queries, q)
	return nil
}

func (h *recordingHistory) recorded() []store.Query {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]store.Query(nil), h.queries...)
}
