// Package currentstate renders the derived "current state" markdown document
// for a project from its knowledge blocks and items.
//
// Consumers parse this document by its headings, so the heading text
// ("# Current State (Derived)", "## Project Facts", "## Items",
// "### Item: ...") is part of the contract.
package currentstate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/magnetic-studio/studio-console/pkg/models"
)

const (
	headerTitle        = "# Current State (Derived)"
	headerProjectFacts = "## Project Facts"
	headerItems        = "## Items"
	none               = "(none)"

	maxScopeListEntries = 3
)

// Input is everything Build needs. Items are rendered in the given order.
type Input struct {
	ProjectName string
	Blocks      []*models.KnowledgeBlock
	Items       []*models.Item
}

// Build renders the current-state markdown. Identical inputs produce
// byte-identical output regardless of block order.
func Build(in Input) string {
	var projectBlocks, itemBlocks []*models.KnowledgeBlock
	for _, b := range in.Blocks {
		if b == nil {
			continue
		}
		switch b.ScopeType {
		case models.ScopeProject:
			projectBlocks = append(projectBlocks, b)
		case models.ScopeItem:
			itemBlocks = append(itemBlocks, b)
		}
	}
	sortBlocks(projectBlocks)
	sortBlocks(itemBlocks)

	lines := []string{headerTitle}
	if in.ProjectName != "" {
		lines = append(lines, "Project: "+in.ProjectName)
	}
	lines = append(lines, "", headerProjectFacts)
	if md := renderBlocks(projectBlocks); md != "" {
		lines = append(lines, md)
	} else {
		lines = append(lines, none)
	}

	lines = append(lines, "", headerItems)
	if len(in.Items) == 0 {
		lines = append(lines, none)
		return finish(lines)
	}

	for _, item := range in.Items {
		if item == nil {
			continue
		}
		lines = append(lines, "", "### Item: "+item.DisplayTitle())
		lines = append(lines, "- Type: "+orUnknown(item.Type))
		lines = append(lines, "- Status: "+orUnknown(item.Status))
		if scope := scopeLine(item.Scope); scope != "" {
			lines = append(lines, "- Scope: "+scope)
		}
		if md := renderBlocks(blocksForItem(itemBlocks, item.ID)); md != "" {
			lines = append(lines, "", md)
		}
	}

	return finish(lines)
}

func finish(lines []string) string {
	return strings.TrimRight(strings.Join(lines, "\n"), " \t\r\n")
}

func sortBlocks(blocks []*models.KnowledgeBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if blocks[i].BlockKey != blocks[j].BlockKey {
			return blocks[i].BlockKey < blocks[j].BlockKey
		}
		return blocks[i].ID.String() < blocks[j].ID.String()
	})
}

func blocksForItem(blocks []*models.KnowledgeBlock, itemID uuid.UUID) []*models.KnowledgeBlock {
	var out []*models.KnowledgeBlock
	for _, b := range blocks {
		if b.ItemID != nil && *b.ItemID == itemID {
			out = append(out, b)
		}
	}
	return out
}

// renderBlocks joins block markdown with blank lines. A block without
// markdown renders as a bare heading.
func renderBlocks(blocks []*models.KnowledgeBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if b.RenderedMarkdown != nil && strings.TrimSpace(*b.RenderedMarkdown) != "" {
			parts = append(parts, strings.TrimRight(*b.RenderedMarkdown, " \t\r\n"))
			continue
		}
		parts = append(parts, "### "+b.BlockKey)
	}
	return strings.Join(parts, "\n\n")
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func scopeLine(s models.ItemScope) string {
	if s.IsEmpty() {
		return ""
	}
	var parts []string
	if s.Quantity != nil || s.Unit != "" {
		qty := ""
		if s.Quantity != nil {
			qty = strconv.FormatFloat(*s.Quantity, 'f', -1, 64)
		}
		parts = append(parts, "quantity "+strings.TrimSpace(qty+" "+s.Unit))
	}
	if s.Dimensions != "" {
		parts = append(parts, "dimensions "+s.Dimensions)
	}
	if s.Location != "" {
		parts = append(parts, "location "+s.Location)
	}
	if len(s.Constraints) > 0 {
		parts = append(parts, "constraints "+strings.Join(firstN(s.Constraints, maxScopeListEntries), "; "))
	}
	if len(s.Assumptions) > 0 {
		parts = append(parts, "assumptions "+strings.Join(firstN(s.Assumptions, maxScopeListEntries), "; "))
	}
	return strings.Join(parts, " | ")
}

func firstN(values []string, n int) []string {
	if len(values) <= n {
		return values
	}
	return values[:n]
}

// RenderFactGroup renders the markdown for a knowledge block from its JSON
// fields, sorted by field name.
func RenderFactGroup(blockKey string, fields map[string]models.BlockField) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"### " + blockKey}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("- %s: %s", name, formatValue(fields[name].Value)))
	}
	return strings.Join(lines, "\n")
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case json.RawMessage:
		var s string
		if err := json.Unmarshal(t, &s); err == nil {
			return s
		}
		return string(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
