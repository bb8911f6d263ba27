// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Command kms-sessiond runs the session store daemon: the HTTP+JSON API
// the kms-tui client persists conversations to, backed by SQLite.
//
// Credentials live in a TOML file of bcrypt password hashes; generate a
// hash with the -hash-password flag. A .env file beside the working
// directory is loaded before flags are read, matching container setups
// where KMSTUI_* variables carry the configuration.
package main
