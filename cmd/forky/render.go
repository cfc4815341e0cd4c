package main

import (
	"strings"

	"github.com/deepnoodle-ai/forky/llm"
	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

var (
	userColor      = color.New(color.FgCyan).SprintfFunc()
	assistantColor = color.New(color.FgWhite).SprintfFunc()
	systemColor    = color.New(color.FgYellow).SprintfFunc()
	currentColor   = color.New(color.FgGreen, color.Bold).SprintfFunc()
	mergeColor     = color.New(color.FgMagenta).SprintfFunc()
	dimColor       = color.New(color.Faint).SprintfFunc()
)

func roleColor(role llm.Role) func(format string, a ...interface{}) string {
	switch role {
	case llm.User:
		return userColor
	case llm.Assistant:
		return assistantColor
	default:
		return systemColor
	}
}

// shortID returns the first id segment, enough to disambiguate in practice.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// truncate collapses whitespace and cuts the string to the given display
// width, accounting for wide runes.
func truncate(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	return runewidth.Truncate(s, width, "...")
}
