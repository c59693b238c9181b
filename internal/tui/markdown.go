package tui

import (
	"fmt"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownView renders assistant replies: headings, emphasis, lists, code and
// quotes are styled, everything else falls through as plain text.
type markdownView struct {
	t      theme
	source []byte
}

func renderMarkdown(t theme, source string, width int) string {
	if strings.TrimSpace(source) == "" {
		return source
	}
	view := markdownView{t: t, source: []byte(source)}
	doc := goldmark.DefaultParser().Parse(text.NewReader(view.source))

	var blocks []string
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		if block := view.block(node, maxInt(10, width)); block != "" {
			blocks = append(blocks, block)
		}
	}
	return strings.Join(blocks, "\n\n")
}

func (v markdownView) block(node ast.Node, width int) string {
	switch typed := node.(type) {
	case *ast.Heading:
		return v.t.mdHeading.Render(wrapText(v.inline(typed), width))
	case *ast.Paragraph, *ast.TextBlock:
		return wrapText(v.inline(typed), width)
	case *ast.List:
		return v.list(typed, width)
	case *ast.FencedCodeBlock, *ast.CodeBlock:
		return v.t.mdCode.Render(strings.TrimRight(v.lines(typed), "\n"))
	case *ast.Blockquote:
		var rows []string
		for child := typed.FirstChild(); child != nil; child = child.NextSibling() {
			for _, line := range strings.Split(v.block(child, width-2), "\n") {
				rows = append(rows, v.t.mdQuote.Render("│ ")+line)
			}
		}
		return strings.Join(rows, "\n")
	case *ast.ThematicBreak:
		return v.t.mdBullet.Render(strings.Repeat("─", minInt(width, 40)))
	case *ast.HTMLBlock:
		return strings.TrimRight(v.lines(typed), "\n")
	default:
		return wrapText(v.inline(typed), width)
	}
}

func (v markdownView) list(list *ast.List, width int) string {
	var items []string
	index := list.Start
	for item := list.FirstChild(); item != nil; item = item.NextSibling() {
		marker := "• "
		if list.IsOrdered() {
			marker = fmt.Sprintf("%d. ", index)
			index++
		}
		indent := strings.Repeat(" ", lipgloss.Width(marker))

		var parts []string
		for child := item.FirstChild(); child != nil; child = child.NextSibling() {
			parts = append(parts, v.block(child, width-len(indent)))
		}
		lines := strings.Split(strings.Join(parts, "\n"), "\n")
		for i, line := range lines {
			if i == 0 {
				lines[i] = v.t.mdBullet.Render(marker) + line
			} else {
				lines[i] = indent + line
			}
		}
		items = append(items, strings.Join(lines, "\n"))
	}
	return strings.Join(items, "\n")
}

func (v markdownView) inline(node ast.Node) string {
	var out strings.Builder
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		switch typed := child.(type) {
		case *ast.Text:
			out.Write(typed.Segment.Value(v.source))
			if typed.HardLineBreak() {
				out.WriteString("\n")
			} else if typed.SoftLineBreak() {
				out.WriteString(" ")
			}
		case *ast.String:
			out.Write(typed.Value)
		case *ast.Emphasis:
			style := v.t.mdEmph
			if typed.Level >= 2 {
				style = v.t.mdStrong
			}
			out.WriteString(style.Render(v.inline(typed)))
		case *ast.CodeSpan:
			out.WriteString(v.t.mdCode.Render(v.inline(typed)))
		case *ast.Link:
			out.WriteString(v.t.mdLink.Render(v.inline(typed)))
		case *ast.AutoLink:
			out.WriteString(v.t.mdLink.Render(string(typed.Label(v.source))))
		default:
			out.WriteString(v.inline(typed))
		}
	}
	return out.String()
}

func (v markdownView) lines(node ast.Node) string {
	var out strings.Builder
	segments := node.Lines()
	for i := 0; i < segments.Len(); i++ {
		segment := segments.At(i)
		out.Write(segment.Value(v.source))
	}
	return out.String()
}

func wrapText(value string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(value)
}
