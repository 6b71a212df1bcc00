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
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// GetQuestionFileTool downloads a task attachment from the scoring service.
//
// Description:
//
//	Questions may reference an attached file (spreadsheet, audio, code).
//	The scoring service exposes attachments at /files/{stem}, where the
//	stem is the file name without its extension. The tool downloads the
//	attachment to a local temp file carrying the original extension and
//	returns the local path for downstream tools to open.
//
//	Concurrent fetches of the same file are deduplicated with
//	singleflight; a bench run asking ten questions about one spreadsheet
//	hits the service once.
//
// Thread Safety: GetQuestionFileTool is safe for concurrent use.
type GetQuestionFileTool struct {
	baseURL    string
	httpClient *http.Client
	group      singleflight.Group
}

// NewGetQuestionFileTool creates the file-fetch tool.
//
// Inputs:
//
//	baseURL - The scoring service base URL, without trailing slash.
//	client - HTTP client. Nil uses a default with a 15s timeout.
func NewGetQuestionFileTool(baseURL string, client *http.Client) *GetQuestionFileTool {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &GetQuestionFileTool{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: client,
	}
}

// Name implements Tool.
func (t *GetQuestionFileTool) Name() string { return "get_question_file" }

// Definition implements Tool.
func (t *GetQuestionFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: "get_question_file",
		Description: "Download the file attached to the current question and return its " +
			"local path. Use this before any tool that takes a file_path. The input is the " +
			"attachment file name from the question metadata (e.g. '003_data.xlsx').",
		Parameters: map[string]ParamDef{
			"file_name": {
				Type:        ParamTypeString,
				Description: "Attachment file name, including extension",
				Required:    true,
			},
		},
		Category:    CategoryFile,
		SideEffects: true,
		Timeout:     30 * time.Second,
	}
}

// Execute implements Tool.
//
// Description:
//
//	Fetches {baseURL}/files/{stem} and writes the body to a temp file
//	whose suffix preserves the original extension, so format-sensitive
//	consumers (spreadsheet readers, transcription) can detect the type.
//
// Outputs:
//
//	*Result - OutputText carries the local path; Output holds path and size.
func (t *GetQuestionFileTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	fileName, ok := StringParam(params, "file_name")
	if !ok || strings.TrimSpace(fileName) == "" {
		return Failure("file_name must be a non-empty string"), nil
	}
	fileName = strings.TrimSpace(fileName)

	stem := fileName
	if idx := strings.Index(fileName, "."); idx > 0 {
		stem = fileName[:idx]
	}

	// The fetch serves every caller sharing the flight, so it must not
	// inherit the first caller's cancellation. The HTTP client timeout
	// still bounds it.
	v, err, shared := t.group.Do(stem, func() (any, error) {
		return t.fetch(context.WithoutCancel(ctx), stem, fileName)
	})
	if err != nil {
		return Failure(fmt.Sprintf("fetching %s: %v", fileName, err)), nil
	}
	path := v.(string)

	info, statErr := os.Stat(path)
	var size int64
	if statErr == nil {
		size = info.Size()
	}

	slog.Info("Question file fetched",
		slog.String("file_name", fileName),
		slog.String("path", path),
		slog.Int64("bytes", size),
		slog.Bool("deduplicated", shared),
	)

	return &Result{
		Success:    true,
		OutputText: fmt.Sprintf("File saved at: %s", path),
		Output: map[string]any{
			"file_path": path,
			"bytes":     size,
		},
	}, nil
}

func (t *GetQuestionFileTool) fetch(ctx context.Context, stem, fileName string) (string, error) {
	url := t.baseURL + "/files/" + stem

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned status %d for %s", resp.StatusCode, url)
	}

	suffix := filepath.Ext(fileName)
	tmp, err := os.CreateTemp("", "question-*"+suffix)
	if err != nil {
		return "", err
	}
	defer tmp.Close()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}
