// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// healthTimeout bounds the startup reachability probe.
const healthTimeout = 5 * time.Second

// HealthMsg reports the result of the startup reachability probe.
type HealthMsg struct {
	Err error
}

// checkHealth probes the relay once.
func checkHealth(probe func(context.Context) error) tea.Cmd {
	if probe == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
		defer cancel()
		return HealthMsg{Err: probe(ctx)}
	}
}
