// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/drchat/internal/model"
)

func TestNewTheme_StylesEveryKind(t *testing.T) {
	theme := NewTheme("dark")
	assert.True(t, theme.IsDark)

	for _, kind := range []model.Kind{
		model.KindUser, model.KindAssistant, model.KindError, model.KindProgress, model.KindThinking,
	} {
		assert.Contains(t, theme.Label, kind)
		assert.Contains(t, theme.Body, kind)
		assert.Contains(t, theme.LabelStyle(kind).Render(kind.DisplayName()), kind.DisplayName())
	}
}

func TestTheme_UnknownKindFallsBack(t *testing.T) {
	theme := NewTheme("light")
	assert.False(t, theme.IsDark)
	assert.Equal(t, "x", theme.BodyStyle("other").Render("x"))
	assert.Contains(t, theme.LabelStyle("other").Render("x"), "x")
}

func TestGlamourStyle(t *testing.T) {
	assert.Equal(t, "dark", GlamourStyle("dark"))
	assert.Equal(t, "light", GlamourStyle("light"))
	assert.Equal(t, "auto", GlamourStyle("auto"))
	assert.Equal(t, "auto", GlamourStyle(""))
}
