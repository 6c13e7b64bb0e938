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
	"os"

	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	drafterURL string
	jdiMode    bool

	rootCmd = &cobra.Command{
		Use:   "draftforge",
		Short: "A cli for drafting Business Requirements Specifications with the DraftForge assistant",
		Long: `DraftForge is a terminal client for the drafter service. It streams
				assistant responses and document tool activity in real time.`,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive drafting session",
		Run:   runChatCommand, // Defined in cmd_chat.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Send a single drafting instruction and stream the response",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAskCommand, // Defined in cmd_chat.go
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Cancel all in-flight turns on the drafter service",
		Run:   runStopCommand, // Defined in cmd_chat.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&drafterURL, "url", "",
		"Base URL of the drafter service (overrides config and DRAFTER_URL)")

	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().BoolVar(&jdiMode, "jdi", false,
		"Enable proactive mode: the assistant acts on documents without asking first")

	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&jdiMode, "jdi", false,
		"Enable proactive mode: the assistant acts on documents without asking first")

	rootCmd.AddCommand(stopCmd)
}

// getDrafterBaseURL resolves the drafter base URL with precedence:
// --url flag, draftforge.yaml, DRAFTER_URL env, built-in default.
func getDrafterBaseURL() string {
	if drafterURL != "" {
		return drafterURL
	}
	if config.DrafterURL != "" {
		return config.DrafterURL
	}
	if env := os.Getenv("DRAFTER_URL"); env != "" {
		return env
	}
	return "http://localhost:12310"
}
