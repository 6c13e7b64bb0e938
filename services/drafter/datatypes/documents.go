// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// This file contains wire types for the external document store. The store
// owns validation (filename pattern, duplicate rejection, version rules);
// these types only describe its request and response shapes.
package datatypes

// CreateFileArgs are the arguments of the create_file operation. The store
// enforces `^[a-zA-Z0-9-]+\.md$` with length 2-500 and rejects duplicates.
type CreateFileArgs struct {
	Filename string `json:"filename"`
}

// WriteInitialDataArgs are the arguments of the write_initial_data
// operation. The store rejects files that already have a version.
type WriteInitialDataArgs struct {
	UserInputs  string `json:"user_inputs"`
	BRSFileName string `json:"brs_file_name"`
}

// ImplementEditsArgs are the arguments of the implement_edits operation.
// The store appends a new version and increments latestVersion.
type ImplementEditsArgs struct {
	UserInputs string `json:"user_inputs"`
	FileName   string `json:"file_name"`
}

// ReadFileArgs are the arguments of the read_file operation. Version is
// optional; the store defaults to the latest version.
type ReadFileArgs struct {
	FileName string `json:"file_name"`
	Version  int    `json:"version,omitempty"`
}

// StoredFile mirrors the store's persisted file shape.
type StoredFile struct {
	Name          string         `json:"name"`
	LatestVersion int            `json:"latestVersion"`
	Versions      map[string]any `json:"versions"`
}
