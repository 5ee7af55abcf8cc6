// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for drchat.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Relay listener and upstream research service
//   - ClientConfig: Where the chat client finds the relay
//   - HistoryConfig: Conversation history database
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (DRCHAT_*, plus PORT and NODE_SERVER_URL)
//   - A .env file in the working directory
//   - ~/.drchat/config.toml
//   - Built-in defaults
//
// # Usage
//
//	config.LoadDotEnv()
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	addr := cfg.Server.Addr()
//
// The relay follows edits to the config file through Watch.
package config
