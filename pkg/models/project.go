// Package models contains domain types for the studio console engine.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a studio project.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Defaults holds the project-level costing percentages. Nil means the
	// studio-wide defaults from configuration apply.
	Defaults *ProjectDefaults `json:"defaults,omitempty"`
}

// ProjectDefaults holds the fractions (0.15 = 15%) applied to a section's direct
// cost when the section does not override them.
type ProjectDefaults struct {
	Overhead float64 `json:"overhead"`
	Risk     float64 `json:"risk"`
	Profit   float64 `json:"profit"`
}

// ResolveDefaults returns the project's own defaults, or fallback when the
// project has none stored.
func (p *Project) ResolveDefaults(fallback ProjectDefaults) ProjectDefaults {
	if p == nil || p.Defaults == nil {
		return fallback
	}
	return *p.Defaults
}
