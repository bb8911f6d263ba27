// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server provides the HTTP API of the session store daemon.
//
// Endpoints:
//   - POST /api/login                - Exchange credentials for a token
//   - POST /api/session              - Create a session
//   - GET  /api/session              - Fetch a session with its turns
//   - PUT  /api/session              - Append one turn
//   - POST /api/session/replace-all  - Replace a session's transcript
//   - GET  /api/sessions             - List a user's sessions
//   - GET  /health                   - Health check
//
// Everything under /api except /api/login sits behind the login gate.
package server
