// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package checkpoint

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := agent.NewConversation("What is 2+2?", "task-1", "data.xlsx", 10, 25)
	conv.Append(llm.ChatMessage{Role: "assistant", Content: "4"})
	conv.IncrementIteration()
	conv.SetState(agent.StateWorker)

	require.NoError(t, store.Save(ctx, conv))

	restored, err := store.Load(ctx, conv.RunID)
	require.NoError(t, err)

	assert.Equal(t, conv.RunID, restored.RunID)
	assert.Equal(t, "task-1", restored.TaskID)
	assert.Equal(t, "data.xlsx", restored.FileName)
	assert.Equal(t, 1, restored.IterationCount)
	assert.Equal(t, agent.StateWorker, restored.State())
	require.Len(t, restored.Messages, 2)
	assert.Equal(t, "4", restored.Messages[1].Content)
}

func TestStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Load(context.Background(), "no-such-run")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	conv := agent.NewConversation("q", "", "", 10, 0)
	require.NoError(t, store.Save(ctx, conv))

	conv.Append(llm.ChatMessage{Role: "assistant", Content: "turn"})
	require.NoError(t, store.Save(ctx, conv))

	restored, err := store.Load(ctx, conv.RunID)
	require.NoError(t, err)
	assert.Len(t, restored.Messages, 2)
}

func TestOpen_PersistentRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
