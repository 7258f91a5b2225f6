package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"speechcmd/internal/ipc"
)

var (
	accent = lipgloss.Color("86")  // green
	danger = lipgloss.Color("196") // red
	muted  = lipgloss.Color("245")

	okStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(accent)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(danger)

	keyStyle = lipgloss.NewStyle().
			Foreground(muted).
			Width(10)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func render(r ipc.Reply) string {
	var parts []string

	if r.Message != "" {
		if r.OK {
			parts = append(parts, okStyle.Render(r.Message))
		} else {
			parts = append(parts, errorStyle.Render(r.Message))
		}
	}

	if len(r.Lines) > 0 {
		parts = append(parts, boxStyle.Render(strings.Join(r.Lines, "\n")))
	}

	if len(r.Stats) > 0 {
		keys := make([]string, 0, len(r.Stats))
		for k := range r.Stats {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		rows := make([]string, 0, len(keys))
		for _, k := range keys {
			rows = append(rows, keyStyle.Render(k)+fmt.Sprint(r.Stats[k]))
		}
		parts = append(parts, boxStyle.Render(strings.Join(rows, "\n")))
	}

	if len(parts) == 0 {
		if r.OK {
			return okStyle.Render("ok")
		}
		return errorStyle.Render("failed")
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
