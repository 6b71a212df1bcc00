// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package stages

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
	"github.com/AleutianAI/AleutianAnswers/services/llm"
)

// submitFinalAnswerTool is the forced function the evaluator LLM must call.
// Constraining the call to this schema is what makes the output structured.
const submitFinalAnswerTool = "submit_final_answer"

// evaluatorValidationRetries is how many extra attempts the stage makes
// when the LLM's structured output fails validation.
const evaluatorValidationRetries = 2

// Evaluator is the normalization stage.
//
// Description:
//
//	Summarizes the user and assistant turns of the conversation, then
//	issues one LLM call forced to invoke submit_final_answer, whose
//	arguments carry the canonical is_numeric/final_answer pair. A
//	response failing validation is retried a bounded number of times and
//	then surfaced as a stage error, never silently trusted.
//
//	The stage appends exactly one terminal message of the form
//	"Evaluator final answer: {answer}" and the loop transitions to
//	COMPLETE unconditionally after it runs.
//
// Thread Safety: Evaluator is safe for concurrent use across runs.
type Evaluator struct {
	client llm.ToolCallingClient
}

// NewEvaluator creates the evaluator stage.
func NewEvaluator(client llm.ToolCallingClient) *Evaluator {
	return &Evaluator{client: client}
}

// Name implements agent.Stage.
func (e *Evaluator) Name() string { return "evaluator" }

// Execute implements agent.Stage.
//
// Outputs:
//
//	agent.AgentState - Always StateComplete on success.
//	error - agent.ErrEvaluatorOutput if no valid verdict within the retry budget.
func (e *Evaluator) Execute(ctx context.Context, conv *agent.Conversation) (agent.AgentState, error) {
	last, _ := conv.LastMessage()

	messages := []llm.ChatMessage{
		{Role: "system", Content: evaluatorSystemPrompt},
		{Role: "user", Content: evaluatorUserPrompt(conv.Snapshot(), last.Content)},
	}

	verdict, err := e.obtainVerdict(ctx, conv.RunID, messages)
	if err != nil {
		return agent.StateError, err
	}

	conv.SetEvaluation(verdict)
	conv.Append(llm.ChatMessage{
		Role:    "assistant",
		Content: "Evaluator final answer: " + verdict.FinalAnswer,
	})

	slog.Info("Evaluator verdict",
		slog.String("run_id", conv.RunID),
		slog.String("final_answer", verdict.FinalAnswer),
		slog.Bool("is_numeric", verdict.IsNumeric),
	)

	return agent.StateComplete, nil
}

// obtainVerdict calls the LLM with a forced tool choice and validates the
// structured arguments, retrying on validation failure.
func (e *Evaluator) obtainVerdict(ctx context.Context, runID string, messages []llm.ChatMessage) (*agent.EvaluatorVerdict, error) {
	var lastErr error
	for attempt := 0; attempt <= evaluatorValidationRetries; attempt++ {
		result, err := e.client.ChatWithTools(ctx, messages,
			llm.GenerationParams{ForceTool: submitFinalAnswerTool},
			[]llm.ToolDef{verdictToolDef()},
		)
		if err != nil {
			return nil, fmt.Errorf("evaluator LLM call: %w", err)
		}

		verdict, err := parseVerdict(result)
		if err == nil {
			return verdict, nil
		}

		lastErr = err
		slog.Warn("Evaluator output failed validation, retrying",
			slog.String("run_id", runID),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}
	return nil, fmt.Errorf("%w: %v", agent.ErrEvaluatorOutput, lastErr)
}

// parseVerdict validates the LLM's forced tool call into a verdict.
func parseVerdict(result *llm.ChatWithToolsResult) (*agent.EvaluatorVerdict, error) {
	if len(result.ToolCalls) == 0 {
		return nil, fmt.Errorf("response carries no %s call", submitFinalAnswerTool)
	}
	call := result.ToolCalls[0]
	if call.Name != submitFinalAnswerTool {
		return nil, fmt.Errorf("response called %q instead of %s", call.Name, submitFinalAnswerTool)
	}

	var verdict agent.EvaluatorVerdict
	if err := json.Unmarshal([]byte(call.ArgumentsString()), &verdict); err != nil {
		return nil, fmt.Errorf("decoding verdict arguments: %w", err)
	}
	if strings.TrimSpace(verdict.FinalAnswer) == "" {
		return nil, fmt.Errorf("verdict has empty final_answer")
	}
	return &verdict, nil
}

// verdictToolDef is the two-field schema the evaluator is constrained to.
func verdictToolDef() llm.ToolDef {
	return llm.ToolDef{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        submitFinalAnswerTool,
			Description: "Submit the evaluated final answer.",
			Parameters: llm.ToolParameters{
				Type: "object",
				Properties: map[string]llm.ToolParamDef{
					"is_numeric": {
						Type:        "boolean",
						Description: "Whether the response is a number (true) or words (false)",
					},
					"final_answer": {
						Type:        "string",
						Description: "The final answer extracted from the response",
					},
				},
				Required: []string{"is_numeric", "final_answer"},
			},
		},
	}
}

const evaluatorSystemPrompt = `You are an evaluator that determines the final answer by an Assistant.
Assess the Assistant's last response based on the given criteria. Respond if the answer is a number or a string of few words and determine the answer`

// evaluatorUserPrompt renders the normalization request. Only user and
// assistant turns feed the summary; tool-result turns matter only through
// the assistant's eventual answer.
func evaluatorUserPrompt(messages []llm.ChatMessage, lastResponse string) string {
	var b strings.Builder
	b.WriteString("Conversation history:\n\n")
	for _, msg := range messages {
		switch msg.Role {
		case "user":
			b.WriteString("User: " + msg.Content + "\n")
		case "assistant":
			text := msg.Content
			if text == "" {
				text = "[Tools use]"
			}
			b.WriteString("Assistant: " + text + "\n")
		}
	}

	return fmt.Sprintf(`You are evaluating a conversation between the User and Assistant. You decide what type of answer (string or number) and output the answer.

The entire conversation with the assistant, with the user's original request and all replies, is:
%s

And the final response from the Assistant that you are evaluating is:
%s

You are a general AI evaluator. Based on the question given, finish your answer with the following template: FINAL ANSWER: [YOUR FINAL ANSWER].
YOUR FINAL ANSWER should be a number OR as few words as possible OR a comma separated list of numbers and/or strings. If you are asked for a number, don't use comma to write your number neither use units such as $ or percent sign unless specified otherwise.
If you are asked for a string, don't use articles, neither abbreviations (e.g. for cities), and write the digits in plain text unless specified otherwise.
If you are asked for a comma separated list, apply the above rules depending of whether the element to be put in the list is a number or a string.
`, b.String(), lastResponse)
}
