package render

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/dkoosis/kind2run/pkg/outcome"
)

// Theme defines colors and icons for terminal rendering.
type Theme struct {
	Name      string
	Title     lipgloss.Style
	Valid     lipgloss.Style
	Falsified lipgloss.Style
	Unknown   lipgloss.Style
	Working   lipgloss.Style
	Muted     lipgloss.Style
	Bold      lipgloss.Style
	Icons     ThemeIcons
}

// ThemeIcons defines the icon set for a theme.
type ThemeIcons struct {
	Valid        string
	Falsified    string
	Unknown      string
	Inconsistent string
	Working      string
	Waiting      string
	Bullet       string
}

// DefaultTheme returns a vibrant color theme.
func DefaultTheme() Theme {
	return Theme{
		Name:      "default",
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true), // blue
		Valid:     lipgloss.NewStyle().Foreground(lipgloss.Color("34")),            // green
		Falsified: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),           // red
		Unknown:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),           // orange
		Working:   lipgloss.NewStyle().Foreground(lipgloss.Color("39")),            // blue
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("242")),           // gray
		Bold:      lipgloss.NewStyle().Bold(true),
		Icons: ThemeIcons{
			Valid:        "✓",
			Falsified:    "✗",
			Unknown:      "?",
			Inconsistent: "⚠",
			Working:      "●",
			Waiting:      "○",
			Bullet:       "·",
		},
	}
}

// OrcaTheme returns a muted, professional theme.
func OrcaTheme() Theme {
	return Theme{
		Name:      "orca",
		Title:     lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true), // pale blue
		Valid:     lipgloss.NewStyle().Foreground(lipgloss.Color("108")),           // sage green
		Falsified: lipgloss.NewStyle().Foreground(lipgloss.Color("167")),           // muted red
		Unknown:   lipgloss.NewStyle().Foreground(lipgloss.Color("179")),           // muted gold
		Working:   lipgloss.NewStyle().Foreground(lipgloss.Color("75")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("245")), // lighter gray
		Bold:      lipgloss.NewStyle().Bold(true),
		Icons: ThemeIcons{
			Valid:        "✓",
			Falsified:    "✗",
			Unknown:      "?",
			Inconsistent: "!",
			Working:      "·",
			Waiting:      "○",
			Bullet:       "·",
		},
	}
}

// MonoTheme returns a monochrome theme with ASCII icons.
func MonoTheme() Theme {
	return Theme{
		Name:      "mono",
		Title:     lipgloss.NewStyle().Bold(true),
		Valid:     lipgloss.NewStyle(),
		Falsified: lipgloss.NewStyle(),
		Unknown:   lipgloss.NewStyle(),
		Working:   lipgloss.NewStyle(),
		Muted:     lipgloss.NewStyle(),
		Bold:      lipgloss.NewStyle().Bold(true),
		Icons: ThemeIcons{
			Valid:        "+",
			Falsified:    "x",
			Unknown:      "?",
			Inconsistent: "!",
			Working:      "*",
			Waiting:      "-",
			Bullet:       "-",
		},
	}
}

// ThemeByName returns a theme by name, defaulting to DefaultTheme.
func ThemeByName(name string) Theme {
	switch name {
	case "orca":
		return OrcaTheme()
	case "mono":
		return MonoTheme()
	default:
		return DefaultTheme()
	}
}

// Status returns the icon and style for a property status.
func (t Theme) Status(s outcome.Status) (string, lipgloss.Style) {
	switch s {
	case outcome.StatusValid:
		return t.Icons.Valid, t.Valid
	case outcome.StatusFalsified:
		return t.Icons.Falsified, t.Falsified
	case outcome.StatusUnknown:
		return t.Icons.Unknown, t.Unknown
	case outcome.StatusInconsistent:
		return t.Icons.Inconsistent, t.Falsified
	case outcome.StatusWorking:
		return t.Icons.Working, t.Working
	default:
		return t.Icons.Waiting, t.Muted
	}
}
