// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package services

import "github.com/AleutianAI/DraftForge/services/llm"

// Tool names understood by the dispatcher. The catalog below and the
// Dispatch switch must stay in sync.
const (
	ToolCreateFile       = "create_file"
	ToolWriteInitialData = "write_initial_data"
	ToolImplementEdits   = "implement_edits"
	ToolReadFile         = "read_file"
)

// DocumentTools is the tool catalog advertised to the provider on every
// drafting turn. Argument schemas mirror the document store's contracts;
// the store itself remains the authority on validation.
func DocumentTools() []llm.ToolDefinition {
	return []llm.ToolDefinition{
		{
			Name:        ToolCreateFile,
			Description: "Create a new, empty BRS document in the document store.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"filename": map[string]any{
						"type":        "string",
						"description": "Document name. Lowercase letters, digits, and hyphens, ending in .md.",
						"pattern":     "^[a-zA-Z0-9-]+\\.md$",
					},
				},
				"required":             []string{"filename"},
				"additionalProperties": false,
			},
			Strict: true,
		},
		{
			Name:        ToolWriteInitialData,
			Description: "Write the first draft of a BRS document. Fails if the document already has content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_inputs": map[string]any{
						"type":        "string",
						"description": "The full markdown body of the first draft.",
					},
					"brs_file_name": map[string]any{
						"type":        "string",
						"description": "Name of the document created with create_file.",
					},
				},
				"required":             []string{"user_inputs", "brs_file_name"},
				"additionalProperties": false,
			},
			Strict: true,
		},
		{
			Name:        ToolImplementEdits,
			Description: "Apply edits to an existing BRS document. Appends a new version; earlier versions stay readable.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"user_inputs": map[string]any{
						"type":        "string",
						"description": "The full markdown body after the requested edits.",
					},
					"file_name": map[string]any{
						"type":        "string",
						"description": "Name of the document to edit.",
					},
				},
				"required":             []string{"user_inputs", "file_name"},
				"additionalProperties": false,
			},
			Strict: true,
		},
		{
			Name:        ToolReadFile,
			Description: "Read a BRS document from the store. Returns the latest version unless a version is given.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"file_name": map[string]any{
						"type":        "string",
						"description": "Name of the document to read.",
					},
					"version": map[string]any{
						"type":        "integer",
						"description": "Optional version number. Defaults to the latest.",
					},
				},
				"required":             []string{"file_name"},
				"additionalProperties": false,
			},
			Strict: false,
		},
	}
}
