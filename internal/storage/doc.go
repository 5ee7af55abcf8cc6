// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists finished research conversations in SQLite.
//
// # Key Types
//
//   - Store: SQLite-backed history, safe for concurrent use
//   - ConversationMeta: Lightweight metadata for listing
//
// # Usage
//
//	store, err := storage.Open(path)
//	defer store.Close()
//	err = store.Save(ctx, conv)
//
// List and load conversations:
//
//	metas, err := store.List(ctx, 20)
//	conv, err := store.Load(ctx, metas[0].ID)
//
// Search matches titles and message text:
//
//	results, err := store.Search(ctx, "tides", 20)
//
// Store satisfies session.Recorder, so a session saves its conversation
// each time a stream settles.
package storage
