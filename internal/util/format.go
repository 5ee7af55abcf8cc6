// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatPercent renders a 0..1 fraction as a percentage with two decimals.
func FormatPercent(fraction float64) string {
	return strconv.FormatFloat(fraction*100, 'f', 2, 64) + "%"
}

// FormatCount renders a count with thousands separators. Fractional
// counts keep their decimals.
func FormatCount(n float64) string {
	return humanize.Commaf(n)
}

// FormatAge renders t relative to now, e.g. "3 minutes ago".
func FormatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return humanize.Time(t)
}
