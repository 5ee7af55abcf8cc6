// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package relay is the HTTP proxy between chat clients and the research
// service.
//
// Endpoints:
//   - POST /api/query  - submit a question, forwarded to {upstream}/query
//   - GET  /api/query  - relay {upstream}/stream/{request_id} as SSE
//   - GET  /health     - health check
//   - GET  /stats      - relay counters
//   - GET  /           - service descriptor
//
// Stream failures are reported in-band: the relay emits an error event
// followed by a close event, so clients always see a terminal frame.
package relay
