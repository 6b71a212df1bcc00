// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// botanicalDB maps grocery items to strict botanical categories. A fruit
// develops from a flower and carries seeds, so green beans and bell
// peppers land under fruit even though a cook would shelve them as
// vegetables. Items with no plant-part classification map to unknown.
var botanicalDB = map[string]string{
	"milk":              "unknown",
	"eggs":              "unknown",
	"flour":             "grain",
	"whole bean coffee": "seed",
	"oreos":             "unknown",
	"sweet potatoes":    "vegetable",
	"fresh basil":       "vegetable",
	"plums":             "fruit",
	"green beans":       "fruit",
	"rice":              "grain",
	"corn":              "fruit",
	"bell pepper":       "fruit",
	"whole allspice":    "spice",
	"acorns":            "nut",
	"broccoli":          "vegetable",
	"celery":            "vegetable",
	"zucchini":          "fruit",
	"lettuce":           "vegetable",
	"peanuts":           "nut",
}

// BotanicalClassifyTool classifies grocery items by strict botanical category.
//
// Thread Safety: BotanicalClassifyTool is stateless and safe for concurrent use.
type BotanicalClassifyTool struct{}

// NewBotanicalClassifyTool creates the botanical classification tool.
func NewBotanicalClassifyTool() *BotanicalClassifyTool {
	return &BotanicalClassifyTool{}
}

// Name implements Tool.
func (t *BotanicalClassifyTool) Name() string { return "classify_plant_parts" }

// Definition implements Tool.
func (t *BotanicalClassifyTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: "classify_plant_parts",
		Description: "Classify each item in a grocery list as 'vegetable', 'fruit', 'herb', " +
			"'nut', 'grain', 'seed', 'spice', or 'unknown' using strict botanical definitions. " +
			"Use this when a question asks for the botanical (not culinary) category of foods.",
		Parameters: map[string]ParamDef{
			"items": {
				Type:        ParamTypeArray,
				Description: "The item names to classify",
				Required:    true,
				Items:       &ParamDef{Type: ParamTypeString},
			},
		},
		Category: CategoryAnalysis,
	}
}

// Execute implements Tool.
//
// Description:
//
//	Looks each item up case-insensitively. OutputText lists one
//	"item: category" pair per line in input order for the LLM; Output
//	carries the map form.
func (t *BotanicalClassifyTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	items, ok := StringSliceParam(params, "items")
	if !ok {
		return Failure("items must be an array of strings"), nil
	}
	if len(items) == 0 {
		return Failure("items must not be empty"), nil
	}

	classified := make(map[string]string, len(items))
	var lines []string
	for _, item := range items {
		category, found := botanicalDB[strings.ToLower(strings.TrimSpace(item))]
		if !found {
			category = "unknown"
		}
		classified[item] = category
		lines = append(lines, fmt.Sprintf("%s: %s", item, category))
	}

	return &Result{
		Success:    true,
		OutputText: strings.Join(lines, "\n"),
		Output:     classified,
	}, nil
}

// ItemsInCategory filters a classification result down to one category,
// returning the matching items sorted alphabetically.
func ItemsInCategory(classified map[string]string, category string) []string {
	var out []string
	for item, cat := range classified {
		if cat == category {
			out = append(out, item)
		}
	}
	sort.Strings(out)
	return out
}
