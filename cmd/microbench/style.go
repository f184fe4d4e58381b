// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorAccent  = lipgloss.Color("#20B9B4")
	colorWarning = lipgloss.Color("#F4D03F")
	colorError   = lipgloss.Color("#E74C3C")
	colorMuted   = lipgloss.Color("#5C7A84")
)

// palette styles the summary and diagnostic lines around result tables.
// Tables themselves are never styled so that their layout stays exact.
type palette struct {
	enabled bool
	title   lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	muted   lipgloss.Style
}

func newPalette(enabled bool) palette {
	return palette{
		enabled: enabled,
		title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent),
		ok:      lipgloss.NewStyle().Foreground(colorAccent),
		warn:    lipgloss.NewStyle().Foreground(colorWarning),
		fail:    lipgloss.NewStyle().Foreground(colorError).Bold(true),
		muted:   lipgloss.NewStyle().Foreground(colorMuted),
	}
}

func (p palette) render(s lipgloss.Style, text string) string {
	if !p.enabled {
		return text
	}
	return s.Render(text)
}

func (p palette) Title(text string) string { return p.render(p.title, text) }
func (p palette) OK(text string) string    { return p.render(p.ok, "✓ "+text) }
func (p palette) Warn(text string) string  { return p.render(p.warn, "⚠ "+text) }
func (p palette) Fail(text string) string  { return p.render(p.fail, "✗ "+text) }
func (p palette) Muted(text string) string { return p.render(p.muted, text) }

// colorEnabled resolves the output.color setting for w.
func colorEnabled(mode string, w io.Writer) bool {
	switch mode {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
