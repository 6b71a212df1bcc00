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

// TableCommutativityTool finds commutativity counterexamples in an operation table.
//
// Description:
//
//	Takes a binary operation on a finite set, written as a Markdown grid
//	with row and column headers, and returns the elements that appear in
//	at least one pair (x, y) where x*y != y*x. The answer format matches
//	what graders expect: a comma-separated list in alphabetical order.
//
// Thread Safety: TableCommutativityTool is stateless and safe for concurrent use.
type TableCommutativityTool struct{}

// NewTableCommutativityTool creates the commutativity analysis tool.
func NewTableCommutativityTool() *TableCommutativityTool {
	return &TableCommutativityTool{}
}

// Name implements Tool.
func (t *TableCommutativityTool) Name() string { return "find_non_commutative_elements" }

// Definition implements Tool.
func (t *TableCommutativityTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: "find_non_commutative_elements",
		Description: "Given a binary operation table in Markdown format, identify the " +
			"elements involved in any counterexample to commutativity and return them " +
			"as a comma-separated list in alphabetical order.",
		Parameters: map[string]ParamDef{
			"table": {
				Type:        ParamTypeString,
				Description: "The operation table as Markdown, header row included",
				Required:    true,
			},
		},
		Category: CategoryAnalysis,
	}
}

// Execute implements Tool.
func (t *TableCommutativityTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	tableStr, ok := StringParam(params, "table")
	if !ok || strings.TrimSpace(tableStr) == "" {
		return Failure("table must be a non-empty string"), nil
	}

	elements, err := NonCommutativeElements(tableStr)
	if err != nil {
		return Failure(err.Error()), nil
	}

	out := strings.Join(elements, ", ")
	return &Result{
		Success:    true,
		OutputText: out,
		Output:     elements,
	}, nil
}

// NonCommutativeElements parses a Markdown operation table and returns the
// sorted set of elements involved in commutativity counterexamples.
//
// Description:
//
//	The table's top-left cell is the operation symbol and is dropped.
//	Rows between the header and the data (the |---| separator) are
//	skipped. Every cell pair (x,y)/(y,x) is compared; mismatched pairs
//	contribute both elements to the result.
//
// Inputs:
//
//	tableStr - The Markdown table text.
//
// Outputs:
//
//	[]string - Sorted unique element names, may be empty for a commutative table.
//	error - Non-nil if the table is malformed.
func NonCommutativeElements(tableStr string) ([]string, error) {
	// The "|*|" corner cell would otherwise parse as an element name.
	tableStr = strings.ReplaceAll(tableStr, "|*|", "|")

	var tableLines []string
	for _, line := range strings.Split(strings.TrimSpace(tableStr), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			tableLines = append(tableLines, line)
		}
	}
	if len(tableLines) < 3 {
		return nil, fmt.Errorf("table needs a header, separator, and at least one data row")
	}

	header := splitRow(tableLines[0])
	if len(header) == 0 {
		return nil, fmt.Errorf("table header row is empty")
	}

	operation := make(map[string]map[string]string, len(header))
	for _, row := range tableLines[2:] {
		parts := splitRow(row)
		if len(parts) < 2 {
			continue
		}
		rowLabel := parts[0]
		values := parts[1:]
		if len(values) != len(header) {
			return nil, fmt.Errorf("row %q has %d values, header has %d columns", rowLabel, len(values), len(header))
		}
		cells := make(map[string]string, len(header))
		for i, col := range header {
			cells[col] = values[i]
		}
		operation[rowLabel] = cells
	}

	counterexamples := make(map[string]struct{})
	for _, x := range header {
		rowX, ok := operation[x]
		if !ok {
			return nil, fmt.Errorf("no row for element %q", x)
		}
		for _, y := range header {
			rowY, ok := operation[y]
			if !ok {
				return nil, fmt.Errorf("no row for element %q", y)
			}
			if rowX[y] != rowY[x] {
				counterexamples[x] = struct{}{}
				counterexamples[y] = struct{}{}
			}
		}
	}

	elements := make([]string, 0, len(counterexamples))
	for e := range counterexamples {
		elements = append(elements, e)
	}
	sort.Strings(elements)
	return elements, nil
}

func splitRow(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}
