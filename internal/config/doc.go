// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for
// the Provana KMS client.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - RealtimeConfig: Websocket backend and reconnect tuning
//   - StoreConfig: Session store client settings
//   - SessiondConfig: Store daemon settings
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (KMSTUI_*)
//   - ~/.kms-tui/config.toml
//   - ~/.kms-tui/config.json
//   - Built-in defaults
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Access settings:
//
//	url := cfg.Realtime.URL
//	delay := cfg.Realtime.ReconnectBase()
package config
