// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianAnswers/services/answers"
	"github.com/AleutianAI/AleutianAnswers/services/answers/agent"
	"github.com/AleutianAI/AleutianAnswers/services/answers/scoring"
)

var (
	benchConcurrency int
	benchSubmit      bool
	benchUsername    string
	benchAgentCode   string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the agent against the grading service's question set",
	Long: `bench fetches the full question set from the grading service, answers
every question, and prints a per-question summary. With --submit the collected
answers are posted back for scoring.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if benchSubmit && (benchUsername == "" || benchAgentCode == "") {
			return fmt.Errorf("--submit requires --username and --agent-code")
		}

		svc, err := answers.NewService(cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		client := scoring.NewClient(cfg.ScoringBaseURL, nil)
		questions, err := client.Questions(cmd.Context())
		if err != nil {
			return err
		}
		slog.Info("Fetched question set", slog.Int("count", len(questions)))

		var mu sync.Mutex
		results := make([]agent.RunResult, len(questions))

		group, ctx := errgroup.WithContext(cmd.Context())
		group.SetLimit(benchConcurrency)

		for i, q := range questions {
			i, q := i, q
			group.Go(func() error {
				result, runErr := svc.Loop().Run(ctx, q.Question, q.TaskID, q.FileName)
				if runErr != nil {
					slog.Error("Run failed",
						slog.String("task_id", q.TaskID),
						slog.String("error", runErr.Error()),
					)
				}
				if result == nil {
					result = &agent.RunResult{
						TaskID:  q.TaskID,
						Outcome: agent.OutcomeFailed,
						Error:   runErr.Error(),
					}
				}
				mu.Lock()
				results[i] = *result
				mu.Unlock()
				// A failed question should not abort the benchmark.
				return ctx.Err()
			})
		}
		if err := group.Wait(); err != nil {
			return err
		}

		answersOut := make([]scoring.Answer, 0, len(results))
		var answered, skipped, failed int
		for _, r := range results {
			switch r.Outcome {
			case agent.OutcomeAnswered:
				answered++
			case agent.OutcomeSkipped:
				skipped++
			default:
				failed++
			}
			answersOut = append(answersOut, scoring.Answer{
				TaskID:          r.TaskID,
				SubmittedAnswer: r.Answer,
			})
			fmt.Printf("%-40s %-9s %s\n", r.TaskID, r.Outcome, r.Answer)
		}
		fmt.Printf("\n%d answered, %d skipped, %d failed of %d\n",
			answered, skipped, failed, len(results))

		if !benchSubmit {
			return nil
		}

		verdict, err := client.Submit(cmd.Context(), scoring.Submission{
			Username:  benchUsername,
			AgentCode: benchAgentCode,
			Answers:   answersOut,
		})
		if err != nil {
			return err
		}
		fmt.Printf("\nScore: %.1f%% (%d/%d correct)\n%s\n",
			verdict.Score, verdict.CorrectCount, verdict.TotalAttempts, verdict.Message)
		return nil
	},
}

func init() {
	benchCmd.Flags().IntVar(&benchConcurrency, "concurrency", 2, "questions answered in parallel")
	benchCmd.Flags().BoolVar(&benchSubmit, "submit", false, "submit collected answers for scoring")
	benchCmd.Flags().StringVar(&benchUsername, "username", "", "grading service username")
	benchCmd.Flags().StringVar(&benchAgentCode, "agent-code", "", "public URL of the agent code")
}
