// Package tui provides the text user interface for plclogger.
package tui

import (
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Color scheme
var (
	ColorPrimary    = tcell.ColorBlue
	ColorAccent     = tcell.ColorYellow
	ColorError      = tcell.ColorRed
	ColorConnected  = tcell.ColorGreen
	ColorDisconnect = tcell.ColorGray
	ColorText       = tcell.ColorWhite
)

// Status indicator strings
const (
	StatusIndicatorConnected    = "[green]●[-]"
	StatusIndicatorDisconnected = "[gray]○[-]"
	StatusIndicatorConnecting   = "[yellow]◐[-]"
	StatusIndicatorError        = "[red]●[-]"
)

// Button labels
const (
	ButtonConnect    = "Connect"
	ButtonRead       = "Read DB and Save to CSV"
	ButtonDisconnect = "Disconnect"
	ButtonQuit       = "Quit"
)

// acceptDigits is a validation function for numeric input fields.
func acceptDigits(text string, lastChar rune) bool {
	if text == "" {
		return true
	}
	for _, c := range text {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// escape keeps log text from being parsed as tview color tags.
func escape(s string) string {
	return tview.Escape(strings.TrimRight(s, "\n"))
}

// Help text
const HelpText = `
 Keyboard Shortcuts
 ──────────────────────────────────────

   Tab          Move between fields
   Enter        Activate button
   Escape       Close dialog
   F1           Show this help
   Ctrl+R       Read DB and save to CSV
   Ctrl+Q       Quit
`
