// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes research conversations to files.
//
// # Supported Formats
//
//   - Markdown: Human-readable transcript with optional research details
//   - JSON: Machine-readable with every event payload
//   - HTML: Standalone page rendered from the Markdown transcript
//
// # Usage
//
//	exporter, err := export.ForFormat("markdown", opts)
//	path, err := export.ExportToFile(conv, exporter, opts)
package export
