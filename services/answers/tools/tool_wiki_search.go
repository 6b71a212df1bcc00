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
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultWikipediaAPIURL = "https://en.wikipedia.org/w/api.php"

// wikiMaxResults bounds how many articles a single search feeds back to
// the LLM context.
const wikiMaxResults = 2

// WikiSearchTool queries the MediaWiki API for article extracts.
//
// Description:
//
//	Runs a generator=search query against the Wikipedia action API and
//	returns plain-text intro extracts for the top matches. Results are
//	wrapped in <Document source="..."> markers so the LLM can cite which
//	article a fact came from.
//
// Thread Safety: WikiSearchTool is safe for concurrent use.
type WikiSearchTool struct {
	apiURL     string
	httpClient *http.Client
}

// NewWikiSearchTool creates the Wikipedia search tool.
//
// Inputs:
//
//	apiURL - The MediaWiki API endpoint. Empty uses English Wikipedia.
//	client - HTTP client. Nil uses a default with a 15s timeout.
func NewWikiSearchTool(apiURL string, client *http.Client) *WikiSearchTool {
	if apiURL == "" {
		apiURL = defaultWikipediaAPIURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &WikiSearchTool{apiURL: apiURL, httpClient: client}
}

// Name implements Tool.
func (t *WikiSearchTool) Name() string { return "wiki_search" }

// Definition implements Tool.
func (t *WikiSearchTool) Definition() ToolDefinition {
	return ToolDefinition{
		Name:        "wiki_search",
		Description: "Search Wikipedia for a query and return up to 2 article extracts.",
		Parameters: map[string]ParamDef{
			"query": {
				Type:        ParamTypeString,
				Description: "The search query",
				Required:    true,
			},
		},
		Category: CategorySearch,
		Timeout:  20 * time.Second,
	}
}

type wikiQueryResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
			FullURL string `json:"fullurl"`
		} `json:"pages"`
	} `json:"query"`
}

// Execute implements Tool.
func (t *WikiSearchTool) Execute(ctx context.Context, params map[string]any) (*Result, error) {
	query, ok := StringParam(params, "query")
	if !ok || strings.TrimSpace(query) == "" {
		return Failure("query must be a non-empty string"), nil
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("format", "json")
	q.Set("generator", "search")
	q.Set("gsrsearch", query)
	q.Set("gsrlimit", fmt.Sprintf("%d", wikiMaxResults))
	q.Set("prop", "extracts|info")
	q.Set("exintro", "1")
	q.Set("explaintext", "1")
	q.Set("inprop", "url")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.apiURL+"?"+q.Encode(), nil)
	if err != nil {
		return Failure(fmt.Sprintf("building request: %v", err)), nil
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return Failure(fmt.Sprintf("wikipedia request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Failure(fmt.Sprintf("wikipedia returned status %d", resp.StatusCode)), nil
	}

	var decoded wikiQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Failure(fmt.Sprintf("decoding wikipedia response: %v", err)), nil
	}

	var docs []string
	for _, page := range decoded.Query.Pages {
		if len(docs) >= wikiMaxResults {
			break
		}
		source := page.FullURL
		if source == "" {
			source = page.Title
		}
		docs = append(docs, fmt.Sprintf("<Document source=%q>\n%s\n</Document>", source, page.Extract))
	}
	if len(docs) == 0 {
		return &Result{Success: true, OutputText: "No Wikipedia results found."}, nil
	}

	return &Result{
		Success:    true,
		OutputText: strings.Join(docs, "\n\n---\n\n"),
	}, nil
}
