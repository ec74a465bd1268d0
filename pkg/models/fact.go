package models

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
)

// FactStatus is the review lifecycle state of a fact.
type FactStatus string

const (
	FactProposed FactStatus = "proposed"
	FactAccepted FactStatus = "accepted"
	FactRejected FactStatus = "rejected"
	FactConflict FactStatus = "conflict"
)

// ScopeType says whether a fact or knowledge block describes the whole
// project or a single item.
type ScopeType string

const (
	ScopeProject ScopeType = "project"
	ScopeItem    ScopeType = "item"
)

// IsValid returns true if s is a known scope type.
func (s ScopeType) IsValid() bool {
	return s == ScopeProject || s == ScopeItem
}

// Evidence points back to the material a fact was extracted from.
type Evidence struct {
	Quote     string `json:"quote"`
	SourceRef string `json:"source_ref,omitempty"`
	Page      *int   `json:"page,omitempty"`
}

// Fact is a single key/value claim about a project or item.
// Stored in studio_facts.
type Fact struct {
	ID          uuid.UUID        `json:"id"`
	ProjectID   uuid.UUID        `json:"project_id"`
	ScopeType   ScopeType        `json:"scope_type"`
	ItemID      *uuid.UUID       `json:"item_id,omitempty"`
	Key         string           `json:"key"`
	Group       string           `json:"group"`
	Field       string           `json:"field"`
	Value       json.RawMessage  `json:"value"`
	Status      FactStatus       `json:"status"`
	NeedsReview bool             `json:"needs_review"`
	Evidence    *Evidence        `json:"evidence,omitempty"`
	Source      ProvenanceSource `json:"source"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// FactKey identifies the slot a fact competes for. At most one fact per
// FactKey may be accepted at a time.
type FactKey struct {
	ProjectID uuid.UUID
	ScopeType ScopeType
	ItemID    *uuid.UUID
	Key       string
}

// Slot returns the FactKey of f.
func (f *Fact) Slot() FactKey {
	return FactKey{ProjectID: f.ProjectID, ScopeType: f.ScopeType, ItemID: f.ItemID, Key: f.Key}
}

// String renders the key as a stable lock name.
func (k FactKey) String() string {
	item := "-"
	if k.ItemID != nil {
		item = k.ItemID.String()
	}
	return "fact:" + k.ProjectID.String() + ":" + string(k.ScopeType) + ":" + item + ":" + k.Key
}

// SplitFactKey derives the display (group, field) pair from a dot-path key by
// taking its last two segments. A single-segment key has an empty group.
func SplitFactKey(key string) (group, field string) {
	parts := strings.Split(key, ".")
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	default:
		return parts[len(parts)-2], parts[len(parts)-1]
	}
}

// FactValuesEqual compares two JSON values semantically (key order and
// whitespace are ignored).
func FactValuesEqual(a, b json.RawMessage) bool {
	if bytes.Equal(a, b) {
		return true
	}
	var av, bv any
	if err := json.Unmarshal(a, &av); err != nil {
		return false
	}
	if err := json.Unmarshal(b, &bv); err != nil {
		return false
	}
	return reflect.DeepEqual(av, bv)
}

// FactView selects a subset of a project's facts.
type FactView string

const (
	FactViewAll         FactView = "all"
	FactViewNeedsReview FactView = "needs_review"
	FactViewConflict    FactView = "conflict"
)

// IsValid returns true if v is a known view.
func (v FactView) IsValid() bool {
	switch v {
	case FactViewAll, FactViewNeedsReview, FactViewConflict:
		return true
	default:
		return false
	}
}

// FilterFacts applies a view to the full fact set. It never mutates facts.
func FilterFacts(facts []*Fact, view FactView) []*Fact {
	out := make([]*Fact, 0, len(facts))
	for _, f := range facts {
		switch view {
		case FactViewNeedsReview:
			if f.Status != FactProposed && !f.NeedsReview {
				continue
			}
		case FactViewConflict:
			if f.Status != FactConflict {
				continue
			}
		}
		out = append(out, f)
	}
	return out
}

// ProjectedValue is one leaf of an item projection.
type ProjectedValue struct {
	Value  json.RawMessage  `json:"value"`
	FactID uuid.UUID        `json:"fact_id"`
	Source ProvenanceSource `json:"source"`
}

// ItemProjection is the nested {group: {field: value}} view of an item's facts.
type ItemProjection map[string]map[string]ProjectedValue

// ProjectFacts builds an ItemProjection from facts in the given order. When two
// different keys share the same (group, field) pair the later fact wins.
func ProjectFacts(facts []*Fact) ItemProjection {
	proj := make(ItemProjection)
	for _, f := range facts {
		group, field := f.Group, f.Field
		if group == "" && field == "" {
			group, field = SplitFactKey(f.Key)
		}
		if proj[group] == nil {
			proj[group] = make(map[string]ProjectedValue)
		}
		proj[group][field] = ProjectedValue{Value: f.Value, FactID: f.ID, Source: f.Source}
	}
	return proj
}
