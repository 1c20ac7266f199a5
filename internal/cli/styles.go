// Package cli holds the terminal styling and logging setup shared by the
// algo-amp commands.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#D97706") // Amber
	accentColor  = lipgloss.Color("#22C55E") // Green
	mutedColor   = lipgloss.Color("#888888")
	textColor    = lipgloss.Color("#FFFFFF")
	errorColor   = lipgloss.Color("#DC2626")
)

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginBottom(1)

	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			MarginTop(1)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	KeyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	ValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(textColor)

	GoodStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)
)

// PrintTitle prints a command banner.
func PrintTitle(w io.Writer, title string) {
	fmt.Fprintln(w, TitleStyle.Render(title))
}

// PrintSection prints a section heading.
func PrintSection(w io.Writer, name string) {
	fmt.Fprintln(w, SectionStyle.Render(name))
}

// PrintKV prints one aligned key/value line.
func PrintKV(w io.Writer, key string, format string, args ...any) {
	fmt.Fprintf(w, "  %s %s\n", KeyStyle.Render(fmt.Sprintf("%-14s", key+":")), ValueStyle.Render(fmt.Sprintf(format, args...)))
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), message)
}

// Fatal prints err and exits with status 1.
func Fatal(err error) {
	PrintError(err.Error())
	os.Exit(1)
}

// NewLogger returns a text logger on stderr at the named level.
func NewLogger(level string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(lvl)
	l.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return l, nil
}
