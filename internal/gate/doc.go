// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package gate implements the login gate for the session store.
//
// Access is limited to a fixed set of known users. A successful login
// issues an opaque bearer token with a 24-hour lifetime; the HTTP
// middleware checks the token on every store request.
package gate
