package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://fleet:s3cret@db:5432/fleetcast?sslmode=disable", "postgres://fleet:xxxxx@db:5432/fleetcast?sslmode=disable"},
		{"postgres://db:5432/fleetcast", "postgres://db:5432/fleetcast"},
		{"sqlserver://reader@src:1433?database=rentals", "sqlserver://reader@src:1433?database=rentals"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, maskPassword(tt.in))
	}
}

func TestParseDateFlag(t *testing.T) {
	d, err := parseDateFlag("from", "2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	d, err = parseDateFlag("to", "")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	_, err = parseDateFlag("from", "29/02/2024")
	assert.ErrorContains(t, err, "--from")
}

func TestCommandTree(t *testing.T) {
	want := map[string][]string{
		"featurestore": {"build", "clear", "stats", "validate"},
		"forecast":     {"accuracy", "show", "train"},
		"pipeline":     {"run"},
		"scheduler":    {"list", "run", "start", "status"},
		"migrate":      {"down", "up", "version"},
	}
	for parent, children := range want {
		cmd, _, err := rootCmd.Find([]string{parent})
		require.NoError(t, err, parent)
		var names []string
		for _, c := range cmd.Commands() {
			names = append(names, c.Name())
		}
		assert.ElementsMatch(t, children, names, parent)
	}

	_, _, err := rootCmd.Find([]string{"simulate"})
	assert.NoError(t, err)
}

func TestSimulateCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("runs the full pipeline")
	}
	rootCmd.SetArgs([]string{"simulate", "--branches", "1", "--days", "150", "--json"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, Execute())
}
