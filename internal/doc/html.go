package doc

import (
	"fmt"
	"html"
	"strings"
)

// RenderHTML converts a document tree to an HTML fragment for export and
// print preview.
func RenderHTML(root Node) string {
	var b strings.Builder
	renderBlocks(&b, root.Content)
	return b.String()
}

func renderBlocks(b *strings.Builder, nodes []Node) {
	for _, n := range nodes {
		renderBlock(b, n)
	}
}

func renderBlock(b *strings.Builder, n Node) {
	switch n.Type {
	case TypeParagraph:
		align := StringAttr(n.Attrs, "textAlign")
		if align != "" && align != "left" {
			fmt.Fprintf(b, `<p style="text-align: %s">`, html.EscapeString(align))
		} else {
			b.WriteString("<p>")
		}
		renderInline(b, n.Content)
		b.WriteString("</p>\n")
	case TypeHeading:
		level := IntAttr(n.Attrs, "level", MinHeadingLevel)
		if level < MinHeadingLevel {
			level = MinHeadingLevel
		}
		if level > MaxHeadingLevel {
			level = MaxHeadingLevel
		}
		fmt.Fprintf(b, "<h%d>", level)
		renderInline(b, n.Content)
		fmt.Fprintf(b, "</h%d>\n", level)
	case TypeBlockquote:
		b.WriteString("<blockquote>\n")
		renderBlocks(b, n.Content)
		b.WriteString("</blockquote>\n")
	case TypeBulletList:
		b.WriteString("<ul>\n")
		renderBlocks(b, n.Content)
		b.WriteString("</ul>\n")
	case TypeOrderedList:
		b.WriteString("<ol>\n")
		renderBlocks(b, n.Content)
		b.WriteString("</ol>\n")
	case TypeListItem:
		b.WriteString("<li>")
		renderBlocks(b, n.Content)
		b.WriteString("</li>\n")
	case TypeHorizontalRule:
		b.WriteString("<hr>\n")
	case TypeColorBleed:
		color := StringAttr(n.Attrs, "color")
		if color == "" {
			color = "#000000"
		}
		fmt.Fprintf(b, `<div class="color-bleed" style="background-color: %s">`+"\n", html.EscapeString(color))
		renderBlocks(b, n.Content)
		b.WriteString("</div>\n")
	case TypeImageBleed:
		src := StringAttr(n.Attrs, "src")
		alt := StringAttr(n.Attrs, "alt")
		fmt.Fprintf(b, `<div class="image-bleed"><img src="%s" alt="%s"></div>`+"\n",
			html.EscapeString(src), html.EscapeString(alt))
	default:
		// Unknown block types degrade to their inline content so an
		// export never drops text.
		renderInline(b, n.Content)
	}
}

func renderInline(b *strings.Builder, nodes []Node) {
	for _, n := range nodes {
		switch n.Type {
		case TypeText:
			b.WriteString(renderLeaf(n))
		case TypeHardBreak:
			b.WriteString("<br>")
		default:
			renderInline(b, n.Content)
		}
	}
}

func renderLeaf(n Node) string {
	out := html.EscapeString(n.Text)
	for _, m := range n.Marks {
		switch m.Type {
		case MarkBold:
			out = "<strong>" + out + "</strong>"
		case MarkItalic:
			out = "<em>" + out + "</em>"
		case MarkStrike:
			out = "<s>" + out + "</s>"
		case MarkTextStyle:
			if style := textStyleCSS(m.Attrs); style != "" {
				out = fmt.Sprintf(`<span style="%s">%s</span>`, style, out)
			}
		}
	}
	return out
}

func textStyleCSS(attrs map[string]any) string {
	var parts []string
	if c := StringAttr(attrs, "color"); c != "" {
		parts = append(parts, "color: "+html.EscapeString(c))
	}
	if f := StringAttr(attrs, "fontFamily"); f != "" {
		parts = append(parts, "font-family: "+html.EscapeString(f))
	}
	if s := StringAttr(attrs, "fontSize"); s != "" {
		parts = append(parts, "font-size: "+html.EscapeString(s))
	}
	return strings.Join(parts, "; ")
}
