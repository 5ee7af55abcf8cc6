// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the CLI, the TUI and the
// history store.
//
// # Key Functions
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width truncation (CJK and emoji aware)
//   - OneLine: collapses whitespace for single-line previews
//
// Formatting:
//   - FormatPercent: fraction to "12.50%"
//   - FormatCount: thousands separators for token counts
//   - FormatAge: "3 minutes ago"
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
package util
