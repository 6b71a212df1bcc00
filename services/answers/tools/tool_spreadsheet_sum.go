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
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// SpreadsheetSumTool sums the numeric columns of an Excel workbook.
//
// Description:
//
//	Opens the first sheet of an .xlsx file, treats the first row as
//	column headers, and sums every column whose data cells parse as
//	numbers. The output is a label/value listing, one column per line,
//	which feeds directly into sum_selected_items for filtered totals.
//
// Thread Safety: SpreadsheetSumTool is stateless and safe for concurrent use.
type SpreadsheetSumTool struct{}

// NewSpreadsheetSumTool creates the spreadsheet summing tool.
func NewSpreadsheetSumTool() *SpreadsheetSumTool {
	return &SpreadsheetSumTool{}
}

// Name implements Tool.
func (t *SpreadsheetSumTool) Name() string { return "sum_spreadsheet_columns" }

// Definition implements Tool.
func (t *SpreadsheetSumTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: "sum_spreadsheet_columns",
		Description: "Load an Excel (.xlsx) file and sum each numeric column. The input " +
			"must be the local file_path returned by get_question_file, never the file " +
			"name from the question text. Returns one 'Column total' pair per line.",
		Parameters: map[string]ParamDef{
			"file_path": {
				Type:        ParamTypeString,
				Description: "Local path to the .xlsx file, as returned by get_question_file",
				Required:    true,
			},
		},
		Category: CategoryAnalysis,
		Timeout:  20 * time.Second,
	}
}

// Execute implements Tool.
func (t *SpreadsheetSumTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	path, ok := StringParam(params, "file_path")
	if !ok || strings.TrimSpace(path) == "" {
		return Failure("file_path must be a non-empty string"), nil
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return Failure(fmt.Sprintf("opening spreadsheet: %v", err)), nil
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Failure("spreadsheet has no sheets"), nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Failure(fmt.Sprintf("reading sheet %q: %v", sheets[0], err)), nil
	}
	if len(rows) < 2 {
		return Failure("spreadsheet has no data rows"), nil
	}

	headers := rows[0]
	sums := make([]float64, len(headers))
	numeric := make([]bool, len(headers))
	for i := range numeric {
		numeric[i] = true
	}

	for _, row := range rows[1:] {
		for col := range headers {
			if !numeric[col] {
				continue
			}
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				continue
			}
			v, err := strconv.ParseFloat(strings.ReplaceAll(row[col], ",", ""), 64)
			if err != nil {
				numeric[col] = false
				continue
			}
			sums[col] += v
		}
	}

	var lines []string
	totals := make(map[string]float64)
	for col, header := range headers {
		if !numeric[col] || strings.TrimSpace(header) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s    %s", header, formatCellSum(sums[col])))
		totals[header] = sums[col]
	}
	if len(lines) == 0 {
		return Failure("spreadsheet has no numeric columns"), nil
	}

	return &Result{
		Success:    true,
		OutputText: strings.Join(lines, "\n"),
		Output:     totals,
	}, nil
}

// formatCellSum renders a column sum without a trailing ".000000" when the
// total is a whole number.
func formatCellSum(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
