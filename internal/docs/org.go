package docs

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/justyntemme/organelle/ast"
	"github.com/justyntemme/organelle/lexer"
	"github.com/justyntemme/organelle/parser"
)

// convertOrg renders org-mode source as HTML.
func convertOrg(src []byte, out *bytes.Buffer) error {
	p := parser.New(lexer.New(string(src)))
	doc := p.ParseDocument()
	if errs := p.Errors(); len(errs) > 0 {
		return fmt.Errorf("org: %s", strings.Join(errs, "; "))
	}
	for _, node := range doc.Children {
		writeOrgNode(out, node)
	}
	return nil
}

func writeOrgNode(out *bytes.Buffer, node ast.Node) {
	switch n := node.(type) {
	case *ast.Headline:
		writeOrgHeadline(out, n)
	case *ast.Paragraph:
		out.WriteString("<p>")
		if len(n.Inline) > 0 {
			writeOrgInline(out, n.Inline)
		} else {
			out.WriteString(html.EscapeString(n.Content))
		}
		out.WriteString("</p>\n")
	case *ast.Block:
		writeOrgBlock(out, n)
	case *ast.List:
		writeOrgList(out, n)
	case *ast.Keyword:
		fmt.Fprintf(out, "<p><strong>%s:</strong> <em>%s</em></p>\n",
			html.EscapeString(n.Key), html.EscapeString(n.Value))
	case *ast.HorizontalRule:
		out.WriteString("<hr>\n")
	case *ast.Table:
		writeOrgTable(out, n)
	case *ast.Comment, *ast.Drawer:
		// not rendered
	}
}

func writeOrgHeadline(out *bytes.Buffer, h *ast.Headline) {
	level := h.Level
	if level < 1 {
		level = 1
	}
	if level > 6 {
		level = 6
	}

	fmt.Fprintf(out, "<h%d>", level)
	if h.Keyword != "" {
		fmt.Fprintf(out, `<span class="keyword">%s</span> `, html.EscapeString(h.Keyword))
	}
	if h.Priority != "" {
		fmt.Fprintf(out, `<span class="priority">[#%s]</span> `, html.EscapeString(h.Priority))
	}
	out.WriteString(html.EscapeString(h.Title))
	if len(h.Tags) > 0 {
		fmt.Fprintf(out, ` <code class="tags">:%s:</code>`, html.EscapeString(strings.Join(h.Tags, ":")))
	}
	fmt.Fprintf(out, "</h%d>\n", level)

	for _, child := range h.Children {
		writeOrgNode(out, child)
	}
}

func writeOrgInline(out *bytes.Buffer, elems []ast.InlineElement) {
	for _, elem := range elems {
		switch elem.Type {
		case ast.InlineText:
			out.WriteString(html.EscapeString(elem.Content))
		case ast.InlineBold:
			writeOrgWrapped(out, "strong", elem)
		case ast.InlineItalic:
			writeOrgWrapped(out, "em", elem)
		case ast.InlineUnderline:
			writeOrgWrapped(out, "u", elem)
		case ast.InlineStrikethrough:
			writeOrgWrapped(out, "del", elem)
		case ast.InlineCode, ast.InlineVerbatim:
			fmt.Fprintf(out, "<code>%s</code>", html.EscapeString(elem.Content))
		case ast.InlineLink:
			text := elem.Content
			if text == "" {
				text = elem.URL
			}
			fmt.Fprintf(out, `<a href="%s">%s</a>`, html.EscapeString(elem.URL), html.EscapeString(text))
		}
	}
}

func writeOrgWrapped(out *bytes.Buffer, tag string, elem ast.InlineElement) {
	fmt.Fprintf(out, "<%s>", tag)
	if len(elem.Children) > 0 {
		writeOrgInline(out, elem.Children)
	} else {
		out.WriteString(html.EscapeString(elem.Content))
	}
	fmt.Fprintf(out, "</%s>", tag)
}

func writeOrgBlock(out *bytes.Buffer, b *ast.Block) {
	content := html.EscapeString(b.Content)
	switch strings.ToUpper(b.Type) {
	case "SRC":
		if b.Language != "" {
			fmt.Fprintf(out, "<pre><code class=\"language-%s\">%s</code></pre>\n", html.EscapeString(b.Language), content)
		} else {
			fmt.Fprintf(out, "<pre><code>%s</code></pre>\n", content)
		}
	case "EXAMPLE":
		fmt.Fprintf(out, "<pre>%s</pre>\n", content)
	case "QUOTE":
		fmt.Fprintf(out, "<blockquote>%s</blockquote>\n", content)
	default:
		fmt.Fprintf(out, "<p>%s</p>\n", content)
	}
}

func writeOrgList(out *bytes.Buffer, l *ast.List) {
	tag := "ul"
	if l.Ordered {
		tag = "ol"
	}
	fmt.Fprintf(out, "<%s>\n", tag)
	for _, item := range l.Items {
		out.WriteString("<li>")
		switch item.Checkbox {
		case ast.CheckboxUnchecked:
			out.WriteString("[ ] ")
		case ast.CheckboxChecked:
			out.WriteString("[X] ")
		case ast.CheckboxPartial:
			out.WriteString("[-] ")
		}
		out.WriteString(html.EscapeString(item.Content))
		for _, child := range item.Children {
			writeOrgNode(out, child)
		}
		out.WriteString("</li>\n")
	}
	fmt.Fprintf(out, "</%s>\n", tag)
}

func writeOrgTable(out *bytes.Buffer, t *ast.Table) {
	out.WriteString("<table>\n")
	for _, row := range t.Rows {
		if row.Separator {
			continue
		}
		out.WriteString("<tr>")
		for _, cell := range row.Cells {
			fmt.Fprintf(out, "<td>%s</td>", html.EscapeString(strings.TrimSpace(cell)))
		}
		out.WriteString("</tr>\n")
	}
	out.WriteString("</table>\n")
}
