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
	"strings"
	"time"
)

const defaultTavilyURL = "https://api.tavily.com/search"

// webMaxResults bounds how many search hits feed back to the LLM context.
const webMaxResults = 3

// WebSearchTool queries the Tavily search API.
//
// Description:
//
//	Posts the query to Tavily and returns up to three results, each
//	wrapped in a <Document source="..."> marker. Tavily rate limits
//	aggressively on free keys, so 429 responses are retried with an
//	exponential backoff capped at 30 seconds; the context deadline still
//	bounds the total wait.
//
// Thread Safety: WebSearchTool is safe for concurrent use.
type WebSearchTool struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
}

// NewWebSearchTool creates the web search tool.
//
// Inputs:
//
//	apiKey - The Tavily API key.
//	apiURL - The search endpoint. Empty uses the Tavily default.
//	client - HTTP client. Nil uses a default with a 10s timeout.
func NewWebSearchTool(apiKey, apiURL string, client *http.Client) *WebSearchTool {
	if apiURL == "" {
		apiURL = defaultTavilyURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WebSearchTool{apiKey: apiKey, apiURL: apiURL, httpClient: client}
}

// Name implements Tool.
func (t *WebSearchTool) Name() string { return "web_search" }

// Definition implements Tool.
func (t *WebSearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "web_search",
		Description: "Search the web for a query and return up to 3 results with snippets.",
		Parameters: map[string]ParamDef{
			"query": {
				Type:        ParamTypeString,
				Description: "The search query",
				Required:    true,
			},
		},
		Category: CategorySearch,
		Timeout:  60 * time.Second,
	}
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Execute implements Tool.
func (t *WebSearchTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return Failure("web search is not configured (missing Tavily API key)"), nil
	}

	query, ok := StringParam(params, "query")
	if !ok || strings.TrimSpace(query) == "" {
		return Failure("query must be a non-empty string"), nil
	}

	payload, err := json.Marshal(map[string]any{
		"query":       query,
		"api_key":     t.apiKey,
		"max_results": webMaxResults,
	})
	if err != nil {
		return Failure(fmt.Sprintf("encoding request: %v", err)), nil
	}

	var resp *http.Response
	delay := 1 * time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.apiURL, bytes.NewReader(payload))
		if err != nil {
			return Failure(fmt.Sprintf("building request: %v", err)), nil
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.httpClient.Do(req)
		if err != nil {
			return Failure(fmt.Sprintf("search request failed: %v", err)), nil
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// Back off and retry on 429, doubling the delay each time up to 30s.
		select {
		case <-ctx.Done():
			return Failure("search cancelled while rate limited: " + ctx.Err().Error()), nil
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Failure(fmt.Sprintf("search returned status %d", resp.StatusCode)), nil
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Failure(fmt.Sprintf("decoding search response: %v", err)), nil
	}

	var docs []string
	for _, r := range decoded.Results {
		if len(docs) >= webMaxResults {
			break
		}
		docs = append(docs, fmt.Sprintf("<Document source=%q>\n%s\n%s\n</Document>", r.URL, r.Title, r.Content))
	}
	if len(docs) == 0 {
		return &Result{Success: true, OutputText: "No web results found."}, nil
	}

	return &Result{
		Success:    true,
		OutputText: strings.Join(docs, "\n\n---\n\n"),
	}, nil
}
