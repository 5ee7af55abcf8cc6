// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the research API.
//
// A question is submitted with POST /api/query, which answers with a request
// ID. The client then opens GET /api/query?request_id=<id> and decodes the
// server-sent event stream into research events until a final or error
// event arrives.
//
// # Usage
//
//	client := backend.NewClient("http://localhost:5001")
//	err := client.Ask(ctx, "What is quantum entanglement?", func(ev research.Event) {
//	    fmt.Println(ev.Kind())
//	})
//
// Failures are never retried. Submit errors are *APIError or ErrNoRequestID;
// stream errors are *StreamError or ErrStreamClosed. Payloads that do not
// decode are skipped.
package backend
