package models

import (
	"time"

	"github.com/google/uuid"
)

// BlockField is one field value inside a knowledge block's JSON payload.
type BlockField struct {
	Value any `json:"value"`
}

// KnowledgeBlock is a rendered snapshot of one fact group, scoped to the
// project or to a single item. One block exists per (scope, item, block key).
type KnowledgeBlock struct {
	ID               uuid.UUID             `json:"id"`
	ProjectID        uuid.UUID             `json:"project_id"`
	ScopeType        ScopeType             `json:"scope_type"`
	ItemID           *uuid.UUID            `json:"item_id,omitempty"`
	BlockKey         string                `json:"block_key"`
	RenderedMarkdown *string               `json:"rendered_markdown,omitempty"`
	JSON             map[string]BlockField `json:"json,omitempty"`
	UpdatedAt        time.Time             `json:"updated_at"`
}

// Item is a deliverable tracked within a project.
type Item struct {
	ID        uuid.UUID `json:"id"`
	ProjectID uuid.UUID `json:"project_id"`
	Title     string    `json:"title,omitempty"`
	Name      string    `json:"name,omitempty"`
	Type      string    `json:"type,omitempty"`
	Status    string    `json:"status,omitempty"`
	Scope     ItemScope `json:"scope"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ItemScope describes what an item covers.
type ItemScope struct {
	Quantity    *float64 `json:"quantity,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	Dimensions  string   `json:"dimensions,omitempty"`
	Location    string   `json:"location,omitempty"`
	Constraints []string `json:"constraints,omitempty"`
	Assumptions []string `json:"assumptions,omitempty"`
}

// IsEmpty returns true when no scope field is set.
func (s ItemScope) IsEmpty() bool {
	return s.Quantity == nil && s.Unit == "" && s.Dimensions == "" && s.Location == "" &&
		len(s.Constraints) == 0 && len(s.Assumptions) == 0
}

// DisplayTitle returns the title, then the name, then a placeholder.
func (i *Item) DisplayTitle() string {
	if i.Title != "" {
		return i.Title
	}
	if i.Name != "" {
		return i.Name
	}
	return "Untitled item"
}
