package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"echopress/internal/tui"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

var statusKinds = [...]struct {
	label string
	color lipgloss.Color
}{
	statusInfo:  {"INFO", tui.ColorCyan},
	statusOK:    {"OK", tui.ColorGreen},
	statusWarn:  {"WARN", tui.ColorYellow},
	statusError: {"ERROR", tui.ColorRed},
}

// colorRenderer always emits ANSI; callers decide with shouldColorize.
var colorRenderer = func() *lipgloss.Renderer {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI256)
	return r
}()

func (k statusKind) label() string {
	if k < 0 || int(k) >= len(statusKinds) {
		k = statusInfo
	}
	return statusKinds[k].label
}

func (k statusKind) style() lipgloss.Style {
	if k < 0 || int(k) >= len(statusKinds) {
		k = statusInfo
	}
	return colorRenderer.NewStyle().Foreground(statusKinds[k].color)
}

// renderStatusLine lays out "label: [KIND] message" with the label padded so
// the status column lines up across a section.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	status := "[" + kind.label() + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", status)
	if !colorize {
		return line
	}
	return kind.style().Render(line)
}

func statusKindFromSeverity(severity string) statusKind {
	switch strings.ToLower(strings.TrimSpace(severity)) {
	case "ok":
		return statusOK
	case "warn", "warning":
		return statusWarn
	case "error":
		return statusError
	default:
		return statusInfo
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", lipgloss.Width(line))
	if colorize {
		heading := colorRenderer.NewStyle().Bold(true).Foreground(tui.ColorCyan)
		return []string{heading.Render(line), heading.UnsetBold().Render(rule)}
	}
	return []string{line, rule}
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// shouldColorize honours NO_COLOR and only colors real terminals.
func shouldColorize(writer io.Writer) bool {
	return os.Getenv("NO_COLOR") == "" && isTerminal(writer)
}
