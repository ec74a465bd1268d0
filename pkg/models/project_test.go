package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProject_ResolveDefaults(t *testing.T) {
	fallback := ProjectDefaults{Overhead: 0.10, Risk: 0.05, Profit: 0.20}

	t.Run("nil project", func(t *testing.T) {
		var p *Project
		assert.Equal(t, fallback, p.ResolveDefaults(fallback))
	})

	t.Run("no stored defaults", func(t *testing.T) {
		assert.Equal(t, fallback, (&Project{Name: "Loft"}).ResolveDefaults(fallback))
	})

	t.Run("stored defaults win", func(t *testing.T) {
		own := ProjectDefaults{Overhead: 0.15, Risk: 0, Profit: 0.25}
		assert.Equal(t, own, (&Project{Defaults: &own}).ResolveDefaults(fallback))
	})
}

func TestProject_JSONOmitsMissingDefaults(t *testing.T) {
	data, err := json.Marshal(&Project{Name: "Loft", Status: "active"})
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "defaults")
	assert.Equal(t, "Loft", raw["name"])
}
