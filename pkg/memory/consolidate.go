package memory

import (
	"context"
	"fmt"
)

// minGroupSize is the minimum number of same-type-or-action short-term
// entries within a session required to promote a long-term pattern.
const minGroupSize = 3

// Consolidate groups a session's short-term entries by type (falling back
// to "action" when type is absent) and promotes one long-term pattern
// entry per group with count >= 3, importance min(0.3 + 0.1*count, 1.0),
// carrying up to the first 3 examples.
func (s *Store) Consolidate(ctx context.Context, agentID, sessionID string) ([]string, error) {
	entries, err := s.GetShortTerm(ctx, agentID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory: consolidate load: %w", err)
	}

	groups := make(map[string][]ShortTermEntry)
	var order []string
	for _, e := range entries {
		key := groupKey(e.Entry)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], e)
	}

	var promoted []string
	for _, key := range order {
		group := groups[key]
		if len(group) < minGroupSize {
			continue
		}
		importance := 0.3 + 0.1*float64(len(group))
		if importance > 1.0 {
			importance = 1.0
		}

		examples := group
		if len(examples) > 3 {
			examples = examples[:3]
		}
		exampleContent := make([]map[string]any, 0, len(examples))
		for _, e := range examples {
			exampleContent = append(exampleContent, e.Entry)
		}

		id, err := s.SaveLongTerm(ctx, agentID, TypePattern, map[string]any{
			"groupKey": key,
			"count":    len(group),
			"examples": exampleContent,
		}, importance)
		if err != nil {
			return promoted, fmt.Errorf("memory: consolidate promote: %w", err)
		}
		promoted = append(promoted, id)
	}
	return promoted, nil
}

func groupKey(entry map[string]any) string {
	if t, ok := entry["type"].(string); ok && t != "" {
		return t
	}
	if a, ok := entry["action"].(string); ok && a != "" {
		return a
	}
	return "unclassified"
}
