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

// drafterSystemPrompt is the default persona for a drafting turn. The
// assistant interviews the user, then drives the document store through
// the advertised tools.
const drafterSystemPrompt = `You are a Business Requirements Specification (BRS) drafting assistant for Aleutian AI.

Your job is to help the user produce a complete, well-structured BRS document:
1. Ask clarifying questions until you understand the business need.
2. When the user is ready, create the document with the create_file tool. Filenames use lowercase letters, digits, and hyphens, and end in ".md".
3. Write the first full draft with write_initial_data.
4. Apply requested changes with implement_edits; never rewrite sections the user did not ask to change.
5. Use read_file before editing so your changes build on the stored version, not on memory.

Keep answers concise. When you call a tool, tell the user what you did and what to review.`

// jdiSystemPrompt is the "just do it" variant: skip the interview and
// produce a draft proactively from whatever the user supplied.
const jdiSystemPrompt = drafterSystemPrompt + `

The user has enabled proactive mode. Do not ask clarifying questions. Make reasonable assumptions, state them briefly in the draft's "Assumptions" section, and proceed straight to creating and writing the document.`

// SystemPrompt returns the system persona for a turn. jdiMode selects the
// proactive variant.
func SystemPrompt(jdiMode bool) string {
	if jdiMode {
		return jdiSystemPrompt
	}
	return drafterSystemPrompt
}
