package output

import (
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// levelStyles renders the "gbp:<level>:" prefix, colored only on terminals
type levelStyles struct {
	color  bool
	styles map[slog.Level]lipgloss.Style
}

func newLevelStyles(w io.Writer) *levelStyles {
	color := false
	if f, ok := w.(*os.File); ok && os.Getenv("NO_COLOR") == "" {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &levelStyles{
		color: color,
		styles: map[slog.Level]lipgloss.Style{
			slog.LevelDebug: lipgloss.NewStyle().Foreground(lipgloss.Color("6")),
			slog.LevelInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
			slog.LevelWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
			slog.LevelError: lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		},
	}
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warning"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

func (l *levelStyles) prefix(level slog.Level) string {
	name := levelName(level)
	if !l.color {
		return "gbp:" + name + ":"
	}
	style, ok := l.styles[level]
	if !ok {
		return "gbp:" + name + ":"
	}
	return "gbp:" + style.Render(name) + ":"
}
