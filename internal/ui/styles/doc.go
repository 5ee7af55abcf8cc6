// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colors and Lip Gloss styles of the chat TUI.

# Colors (colors.go)

Accent colors mark message kinds: Cyan for the user, Purple for answers,
Amber for research progress and Rose for errors. Every color is an
AdaptiveColor so the palette follows the terminal background.

# Theme (theme.go)

A Theme carries per-kind label and body styles plus the header, input and
status bar styles:

	theme := styles.NewTheme("auto")
	label := theme.LabelStyle(model.KindAssistant).Render("Assistant")
*/
package styles
