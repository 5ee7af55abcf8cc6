// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package research defines the wire vocabulary spoken by the deep research
// backend: the query submission body and the tagged-union events delivered
// over the event stream.
//
// # Key Types
//
//   - QueryRequest / QueryResponse: POST /api/query request and reply
//   - ProgressEvent: an intermediate step of the research agent
//   - FinalEvent: the final answer, terminates the stream
//   - ErrorEvent: a backend failure, terminates the stream
//
// # Usage
//
//	ev, err := research.DecodeEvent(data)
//	switch e := ev.(type) {
//	case *research.ProgressEvent:
//	    fmt.Println("step", e.Step)
//	case *research.FinalEvent:
//	    fmt.Println(e.Answer)
//	}
package research
