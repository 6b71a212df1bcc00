// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

// Route decides the state after a worker turn.
//
// Description:
//
//	Pure total function over the last message's shape. A message carrying
//	one or more pending tool calls routes to TOOLS; anything else,
//	including the worker's forced-termination message, routes to
//	EVALUATOR. No side effects, no state mutation.
//
// Inputs:
//
//	last - The worker's latest message.
//
// Outputs:
//
//	AgentState - StateTools or StateEvaluator.
func Route(last llm.ChatMessage) AgentState {
	if len(last.ToolCalls) > 0 {
		return StateTools
	}
	return StateEvaluator
}
