// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package scoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Questions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/questions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"task_id":"t1","question":"What is 2+2?"},
			{"task_id":"t2","question":"Sum the sheet","file_name":"003_data.xlsx"}
		]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)

	questions, err := client.Questions(context.Background())
	require.NoError(t, err)
	require.Len(t, questions, 2)
	assert.Equal(t, "t1", questions[0].TaskID)
	assert.Equal(t, "003_data.xlsx", questions[1].FileName)
}

func TestClient_Questions_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)

	_, err := client.Questions(context.Background())
	assert.Error(t, err)
}

func TestClient_Submit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/submit", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		var sub Submission
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sub))
		assert.Equal(t, "tester", sub.Username)
		require.Len(t, sub.Answers, 1)
		assert.Equal(t, "4", sub.Answers[0].SubmittedAnswer)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"username":"tester","score":100,"correct_count":1,"total_attempted":1,"message":"ok"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil)

	result, err := client.Submit(context.Background(), Submission{
		Username:  "tester",
		AgentCode: "https://example.com/repo",
		Answers:   []Answer{{TaskID: "t1", SubmittedAnswer: "4"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, 1, result.CorrectCount)
}
