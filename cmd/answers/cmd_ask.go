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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianAnswers/services/answers"
)

var (
	askTaskID   string
	askFileName string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a single question from the command line",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := answers.NewService(cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		question := strings.Join(args, " ")
		result, err := svc.Loop().Run(cmd.Context(), question, askTaskID, askFileName)
		if err != nil {
			return err
		}

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Println(result.Answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&askTaskID, "task-id", "", "task identifier for grading correlation")
	askCmd.Flags().StringVar(&askFileName, "file-name", "", "attachment file name from the question metadata")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full run result as JSON")
}
