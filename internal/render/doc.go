// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package render turns conversation messages into Markdown and terminal
// output.
//
// MessageMarkdown produces the Markdown form of one message; exporters use
// it as is. Renderer passes that Markdown through glamour and decorates it
// with the theme's label and body styles for the chat screen and the ask
// command.
package render
