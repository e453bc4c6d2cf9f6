package cli

import (
	"io"
	"os"

	"golang.org/x/term"

	"github.com/dkoosis/kind2run/internal/config"
	"github.com/dkoosis/kind2run/pkg/render"
)

// isTTYWriter reports whether w is a terminal.
func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// termSize returns the terminal dimensions for w, defaulting to 80x24.
func termSize(w io.Writer) (width, height int) {
	width, height = 80, 24
	if f, ok := w.(*os.File); ok {
		if tw, th, err := term.GetSize(int(f.Fd())); err == nil {
			if tw > 0 {
				width = tw
			}
			if th > 0 {
				height = th
			}
		}
	}
	return width, height
}

// resolveFormat turns "auto" into terminal for a TTY and plain otherwise.
func resolveFormat(format string, w io.Writer) string {
	if format != "auto" {
		return format
	}
	if isTTYWriter(w) {
		return "terminal"
	}
	return "plain"
}

func theme(cfg *config.Resolved) render.Theme {
	if cfg.NoColor {
		return render.MonoTheme()
	}
	return render.ThemeByName(cfg.Theme)
}
