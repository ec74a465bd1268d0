package currentstate

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/magnetic-studio/studio-console/pkg/models"
)

// Scope selects which items a rendering covers.
type Scope string

const (
	ScopeProject    Scope = "project"
	ScopeSingleItem Scope = "singleItem"
	ScopeMultiItem  Scope = "multiItem"
)

// ParseScope validates a scope string. Empty means ScopeProject.
func ParseScope(s string) (Scope, error) {
	switch Scope(s) {
	case "", ScopeProject:
		return ScopeProject, nil
	case ScopeSingleItem, ScopeMultiItem:
		return Scope(s), nil
	default:
		return "", fmt.Errorf("unknown scope %q", s)
	}
}

// ApplyScope pre-filters items and blocks to the selected item ids. Project
// blocks are always kept. ScopeProject returns the inputs unchanged.
func ApplyScope(scope Scope, itemIDs []uuid.UUID, items []*models.Item, blocks []*models.KnowledgeBlock) ([]*models.Item, []*models.KnowledgeBlock, error) {
	switch scope {
	case "", ScopeProject:
		return items, blocks, nil
	case ScopeSingleItem:
		if len(itemIDs) != 1 {
			return nil, nil, fmt.Errorf("singleItem scope requires exactly one item id, got %d", len(itemIDs))
		}
	case ScopeMultiItem:
		if len(itemIDs) == 0 {
			return nil, nil, fmt.Errorf("multiItem scope requires at least one item id")
		}
	default:
		return nil, nil, fmt.Errorf("unknown scope %q", scope)
	}

	selected := make(map[uuid.UUID]bool, len(itemIDs))
	for _, id := range itemIDs {
		selected[id] = true
	}

	scopedItems := make([]*models.Item, 0, len(itemIDs))
	for _, it := range items {
		if selected[it.ID] {
			scopedItems = append(scopedItems, it)
		}
	}

	scopedBlocks := make([]*models.KnowledgeBlock, 0, len(blocks))
	for _, b := range blocks {
		if b.ScopeType == models.ScopeProject || (b.ItemID != nil && selected[*b.ItemID]) {
			scopedBlocks = append(scopedBlocks, b)
		}
	}
	return scopedItems, scopedBlocks, nil
}
