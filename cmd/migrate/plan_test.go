package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versions(ms []migration) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Version
	}
	return out
}

func TestPlan(t *testing.T) {
	files := []string{
		"migrations/002_requests.up.sql",
		"migrations/001_initial_schema.up.sql",
		"migrations/003_indexes.up.sql",
		"migrations/001_initial_schema.down.sql",
		"migrations/002_requests.down.sql",
		"migrations/003_indexes.down.sql",
	}
	applied := map[string]bool{"001_initial_schema": true, "002_requests": true}

	tests := []struct {
		name      string
		direction string
		steps     int
		expected  []string
	}{
		{name: "up_skips_applied", direction: "up", expected: []string{"003_indexes"}},
		{name: "down_newest_first", direction: "down", expected: []string{"002_requests", "001_initial_schema"}},
		{name: "down_one_step", direction: "down", steps: 1, expected: []string{"002_requests"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, err := plan(files, applied, tt.direction, tt.steps)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, versions(ms))
		})
	}

	t.Run("fresh_database", func(t *testing.T) {
		ms, err := plan(files, map[string]bool{}, "up", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"001_initial_schema", "002_requests", "003_indexes"}, versions(ms))
		assert.Equal(t, "migrations/001_initial_schema.up.sql", ms[0].Path)
	})

	t.Run("unknown_direction", func(t *testing.T) {
		_, err := plan(files, applied, "sideways", 0)
		assert.Error(t, err)
	})
}
