// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package scoring is the client for the external grading service.
//
// The service publishes the question set, serves question attachments, and
// accepts answer submissions for scoring. Attachment downloads live in the
// tool layer; this package covers the question list and submission.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Question is one entry of the grading set.
type Question struct {
	TaskID   string `json:"task_id"`
	Question string `json:"question"`
	FileName string `json:"file_name,omitempty"`
	Level    string `json:"Level,omitempty"`
}

// Answer is one submitted answer.
type Answer struct {
	TaskID          string `json:"task_id"`
	SubmittedAnswer string `json:"submitted_answer"`
}

// Submission is the full payload the grading service scores.
type Submission struct {
	Username  string   `json:"username"`
	AgentCode string   `json:"agent_code"`
	Answers   []Answer `json:"answers"`
}

// SubmissionResult is the grading service's verdict on a submission.
type SubmissionResult struct {
	Username      string  `json:"username"`
	Score         float64 `json:"score"`
	CorrectCount  int     `json:"correct_count"`
	TotalAttempts int     `json:"total_attempted"`
	Message       string  `json:"message"`
}

// Client talks to the grading service.
//
// Thread Safety: Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a grading service client.
//
// Inputs:
//
//	baseURL - The service base URL, without trailing slash.
//	httpClient - HTTP client. Nil uses a default with a 30s timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Questions fetches the full question set.
//
// Outputs:
//
//	[]Question - The question list.
//	error - Non-nil on transport or decode failure.
func (c *Client) Questions(ctx context.Context) ([]Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/questions", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring: fetching questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scoring: questions returned status %d", resp.StatusCode)
	}

	var questions []Question
	if err := json.NewDecoder(resp.Body).Decode(&questions); err != nil {
		return nil, fmt.Errorf("scoring: decoding questions: %w", err)
	}
	return questions, nil
}

// Submit posts answers for scoring.
//
// Outputs:
//
//	*SubmissionResult - The grading verdict.
//	error - Non-nil on transport failure or a non-200 response.
func (c *Client) Submit(ctx context.Context, submission Submission) (*SubmissionResult, error) {
	payload, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("scoring: encoding submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submit", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scoring: submitting answers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scoring: submit returned status %d: %s", resp.StatusCode, string(body))
	}

	var result SubmissionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("scoring: decoding submit response: %w", err)
	}
	return &result, nil
}
