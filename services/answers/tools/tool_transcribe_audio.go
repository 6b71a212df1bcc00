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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultAssemblyAIBaseURL = "https://api.assemblyai.com/v2"

// TranscribeAudioTool converts an audio file to text via AssemblyAI.
//
// Description:
//
//	Uploads the local audio file to AssemblyAI, submits a transcription
//	job, and polls until the job completes or the context expires. The
//	returned transcript text is what the agent reasons over for
//	audio-based questions.
//
// Thread Safety: TranscribeAudioTool is safe for concurrent use.
type TranscribeAudioTool struct {
	apiKey       string
	baseURL      string
	httpClient   *http.Client
	pollInterval time.Duration
}

// NewTranscribeAudioTool creates the audio transcription tool.
//
// Inputs:
//
//	apiKey - The AssemblyAI API key.
//	baseURL - The API base URL. Empty uses the AssemblyAI default.
//	client - HTTP client. Nil uses a default with a 60s timeout.
func NewTranscribeAudioTool(apiKey, baseURL string, client *http.Client) *TranscribeAudioTool {
	if baseURL == "" {
		baseURL = defaultAssemblyAIBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &TranscribeAudioTool{
		apiKey:       apiKey,
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   client,
		pollInterval: 3 * time.Second,
	}
}

// Name implements Tool.
func (t *TranscribeAudioTool) Name() string { return "transcribe_audio" }

// Definition implements Tool.
func (t *TranscribeAudioTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name: "transcribe_audio",
		Description: "Convert an audio file (mp3, wav) to text. The input must be the " +
			"local file_path returned by get_question_file, never the file name from " +
			"the question text.",
		Parameters: map[string]ParamDef{
			"file_path": {
				Type:        ParamTypeString,
				Description: "Local path to the audio file, as returned by get_question_file",
				Required:    true,
			},
		},
		Category: CategoryFile,
		Timeout:  5 * time.Minute,
	}
}

type assemblyTranscript struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Execute implements Tool.
func (t *TranscribeAudioTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return Failure("transcription is not configured (missing AssemblyAI API key)"), nil
	}

	path, ok := StringParam(params, "file_path")
	if !ok || strings.TrimSpace(path) == "" {
		return Failure("file_path must be a non-empty string"), nil
	}

	audioURL, err := t.upload(ctx, path)
	if err != nil {
		return Failure(fmt.Sprintf("uploading audio: %v", err)), nil
	}

	transcriptID, err := t.submit(ctx, audioURL)
	if err != nil {
		return Failure(fmt.Sprintf("submitting transcription: %v", err)), nil
	}

	for {
		tr, err := t.poll(ctx, transcriptID)
		if err != nil {
			return Failure(fmt.Sprintf("polling transcription: %v", err)), nil
		}
		switch tr.Status {
		case "completed":
			return &Result{Success: true, OutputText: tr.Text}, nil
		case "error":
			return Failure("transcription failed: " + tr.Error), nil
		}

		select {
		case <-ctx.Done():
			return Failure("transcription cancelled: " + ctx.Err().Error()), nil
		case <-time.After(t.pollInterval):
		}
	}
}

func (t *TranscribeAudioTool) upload(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/upload", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload returned status %d", resp.StatusCode)
	}

	var decoded struct {
		UploadURL string `json:"upload_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.UploadURL == "" {
		return "", fmt.Errorf("upload returned no URL")
	}
	return decoded.UploadURL, nil
}

func (t *TranscribeAudioTool) submit(ctx context.Context, audioURL string) (string, error) {
	payload, err := json.Marshal(map[string]string{"audio_url": audioURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/transcript", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("transcript submit returned status %d", resp.StatusCode)
	}

	var tr assemblyTranscript
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", err
	}
	if tr.ID == "" {
		return "", fmt.Errorf("transcript submit returned no ID")
	}
	return tr.ID, nil
}

func (t *TranscribeAudioTool) poll(ctx context.Context, id string) (*assemblyTranscript, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/transcript/"+id, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", t.apiKey)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("transcript poll returned status %d", resp.StatusCode)
	}

	var tr assemblyTranscript
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, err
	}
	return &tr, nil
}
