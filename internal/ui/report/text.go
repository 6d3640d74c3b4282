package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"staticreflect/internal/core/app"
)

// Text writes reports for a terminal. Colour is the caller's decision.
type Text struct {
	w io.Writer

	heading lipgloss.Style
	faint   lipgloss.Style
	section lipgloss.Style
	failure lipgloss.Style
}

func NewText(w io.Writer, color bool) *Text {
	r := lipgloss.NewRenderer(w)
	if color {
		r.SetColorProfile(termenv.ANSI)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Text{
		w:       w,
		heading: r.NewStyle().Bold(true),
		faint:   r.NewStyle().Faint(true),
		section: r.NewStyle().Foreground(lipgloss.Color("6")),
		failure: r.NewStyle().Foreground(lipgloss.Color("1")),
	}
}

func paint(style lipgloss.Style, s string) string {
	if s == "" {
		return s
	}
	return style.Render(s)
}

func (t *Text) Class(r app.ClassReport) error {
	var b strings.Builder
	head := r.Kind + " " + r.Name
	if len(r.Modifiers) > 0 {
		head = strings.Join(r.Modifiers, " ") + " " + head
	}
	if r.Backing != "" {
		head += ": " + r.Backing
	}
	b.WriteString(paint(t.heading, head) + "\n")
	b.WriteString(paint(t.faint, fmt.Sprintf("  %s:%d", r.File, r.Line)) + "\n")
	if r.Parent != "" {
		b.WriteString("  extends " + r.Parent + "\n")
	}
	if len(r.Interfaces) > 0 {
		b.WriteString("  implements " + strings.Join(r.Interfaces, ", ") + "\n")
	}
	if len(r.Traits) > 0 {
		b.WriteString("  uses " + strings.Join(r.Traits, ", ") + "\n")
	}
	for _, attr := range r.Attributes {
		b.WriteString("  #[" + attr + "]\n")
	}

	t.writeMembers(&b, "constants", r.Name, r.Constants)
	t.writeMembers(&b, "properties", r.Name, r.Properties)
	t.writeMembers(&b, "methods", r.Name, r.Methods)
	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *Text) writeMembers(b *strings.Builder, title, class string, members []app.MemberReport) {
	if len(members) == 0 {
		return
	}
	b.WriteString(fmt.Sprintf("\n%s (%d)\n", paint(t.section, title), len(members)))
	for _, m := range members {
		line := "  "
		if len(m.Modifiers) > 0 {
			line += strings.Join(m.Modifiers, " ") + " "
		}
		line += m.Name
		switch {
		case m.Error != "":
			line += " " + paint(t.failure, "! "+m.Error)
		case m.Detail != "" && m.Detail != m.Name:
			line += "  " + m.Detail
		}
		if m.Declaring != class || m.Trait != "" {
			origin := m.Declaring
			if m.Trait != "" {
				origin = m.Trait
			}
			line += paint(t.faint, "  <- "+origin)
		}
		b.WriteString(line + "\n")
	}
}

func (t *Text) Function(r app.FunctionReport) error {
	detail := r.Signature
	if r.Error != "" {
		detail = paint(t.failure, "! "+r.Error)
	}
	_, err := fmt.Fprintf(t.w, "%s %s\n%s\n", paint(t.heading, "function "+r.Name), detail,
		paint(t.faint, fmt.Sprintf("  %s:%d", r.File, r.Line)))
	return err
}

func (t *Text) Constant(r app.ConstantReport) error {
	detail := "= " + r.Value
	if r.Error != "" {
		detail = paint(t.failure, "! "+r.Error)
	}
	kind := "const"
	if r.Defined {
		kind = "define"
	}
	_, err := fmt.Fprintf(t.w, "%s %s\n%s\n", paint(t.heading, kind+" "+r.Name), detail,
		paint(t.faint, fmt.Sprintf("  %s:%d", r.File, r.Line)))
	return err
}
