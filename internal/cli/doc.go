// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the drchat command tree.
//
// Commands:
//
//	drchat serve              run the relay in front of the research service
//	drchat chat               interactive chat (TUI, or --plain line mode)
//	drchat ask "question"     one-shot question; --json streams events
//	drchat history ...        list, show, export, delete and search history
//	drchat config ...         show, path and init the config file
//	drchat version            build information
//
// Global flags --config, --url and --debug are applied before any command
// runs. A .env file in the working directory is loaded first so variables
// such as NODE_SERVER_URL and PORT work as they do for the relay's
// deployment.
package cli
