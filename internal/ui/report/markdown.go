// Package report renders reflection reports as terminal text or Markdown.
package report

import (
	"fmt"
	"path/filepath"
	"strings"

	"staticreflect/internal/core/app"
)

type MarkdownOptions struct {
	// ProjectRoot shortens file paths when set.
	ProjectRoot string
	// Collapsible wraps member tables longer than CollapseAfter rows in a
	// <details> block.
	Collapsible   bool
	CollapseAfter int
}

type MarkdownGenerator struct {
	opts MarkdownOptions
}

func NewMarkdownGenerator(opts MarkdownOptions) *MarkdownGenerator {
	if opts.CollapseAfter <= 0 {
		opts.CollapseAfter = 10
	}
	return &MarkdownGenerator{opts: opts}
}

func (m *MarkdownGenerator) Class(r app.ClassReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# %s `%s`\n\n", r.Kind, r.Name))

	b.WriteString("| Property | Value |\n")
	b.WriteString("| --- | --- |\n")
	b.WriteString(fmt.Sprintf("| Location | `%s:%d` |\n", relPath(m.opts.ProjectRoot, r.File), r.Line))
	writeRow(&b, "Modifiers", strings.Join(r.Modifiers, " "))
	writeRow(&b, "Extends", code(r.Parent))
	writeRow(&b, "Implements", codeList(r.Interfaces))
	writeRow(&b, "Uses", codeList(r.Traits))
	writeRow(&b, "Backed by", code(r.Backing))
	writeRow(&b, "Attributes", codeList(r.Attributes))
	b.WriteString("\n")

	m.writeMembers(&b, "Constants", r.Constants)
	m.writeMembers(&b, "Properties", r.Properties)
	m.writeMembers(&b, "Methods", r.Methods)
	return b.String()
}

func (m *MarkdownGenerator) Function(r app.FunctionReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# function `%s`\n\n", r.Name))
	b.WriteString(fmt.Sprintf("- Location: `%s:%d`\n", relPath(m.opts.ProjectRoot, r.File), r.Line))
	if r.Error != "" {
		b.WriteString("- Error: " + r.Error + "\n")
	} else {
		b.WriteString("- Signature: `" + r.Signature + "`\n")
	}
	if len(r.Attributes) > 0 {
		b.WriteString("- Attributes: " + codeList(r.Attributes) + "\n")
	}
	return b.String()
}

func (m *MarkdownGenerator) Constant(r app.ConstantReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("# constant `%s`\n\n", r.Name))
	b.WriteString(fmt.Sprintf("- Location: `%s:%d`\n", relPath(m.opts.ProjectRoot, r.File), r.Line))
	if r.Defined {
		b.WriteString("- Declared with `define()`\n")
	}
	if r.Error != "" {
		b.WriteString("- Error: " + r.Error + "\n")
	} else {
		b.WriteString("- Value: `" + r.Value + "`\n")
	}
	return b.String()
}

func (m *MarkdownGenerator) writeMembers(b *strings.Builder, title string, members []app.MemberReport) {
	b.WriteString("## " + title + "\n")
	if len(members) == 0 {
		b.WriteString("None.\n\n")
		return
	}
	rows := make([]string, 0, len(members))
	for _, member := range members {
		detail := code(member.Detail)
		if member.Error != "" {
			detail = "error: " + escapeCell(member.Error)
		}
		origin := code(member.Declaring)
		if member.Trait != "" {
			origin += " via " + code(member.Trait)
		}
		rows = append(rows, fmt.Sprintf("| `%s` | %s | %s | %s |\n",
			member.Name, strings.Join(member.Modifiers, " "), detail, origin))
	}
	m.writeTableWithCollapse(
		b,
		title+" details",
		len(rows) > m.opts.CollapseAfter,
		[]string{"| Name | Modifiers | Detail | Declared in |\n", "| --- | --- | --- | --- |\n"},
		rows,
	)
}

func (m *MarkdownGenerator) writeTableWithCollapse(b *strings.Builder, summary string, collapse bool, header, rows []string) {
	collapse = collapse && m.opts.Collapsible
	if collapse {
		b.WriteString("<details>\n<summary>" + summary + "</summary>\n\n")
	}
	for _, line := range header {
		b.WriteString(line)
	}
	for _, line := range rows {
		b.WriteString(line)
	}
	b.WriteString("\n")
	if collapse {
		b.WriteString("</details>\n\n")
	}
}

func writeRow(b *strings.Builder, key, val string) {
	if val == "" {
		return
	}
	b.WriteString("| " + key + " | " + val + " |\n")
}

func code(s string) string {
	if s == "" {
		return ""
	}
	return "`" + escapeCell(s) + "`"
}

func codeList(items []string) string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, code(item))
	}
	return strings.Join(out, ", ")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func relPath(root, path string) string {
	root = strings.TrimSpace(root)
	path = strings.TrimSpace(path)
	if root == "" || path == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
