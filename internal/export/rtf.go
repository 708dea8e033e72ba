package export

import (
	"fmt"
	"strings"

	"inkwell/api/internal/doc"
)

// RTF font sizes are half-points: \fs24 is 12pt.
const rtfBodySize = 24

// headingSize maps heading levels to RTF half-point sizes.
func headingSize(level int) int {
	switch level {
	case 2:
		return 40
	case 3:
		return 36
	case 4:
		return 32
	case 5:
		return 28
	default:
		return 26
	}
}

// exportRTF renders the manuscript as RTF. Chapter titles become large
// centered headings; block and mark formatting follows the document tree.
func exportRTF(project ProjectInfo, chapters []chapterContent) []byte {
	font := project.FontFamily
	if font == "" {
		font = "Georgia"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `{\rtf1\ansi\deff0{\fonttbl{\f0 %s;}}`, rtfEscape(font))
	b.WriteString("\n")

	for i, ch := range chapters {
		if i > 0 {
			b.WriteString(`\page`)
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, `{\pard\qc\b\fs48 %s\b0\par}`, rtfEscape(ch.Info.Title))
		b.WriteString("\n")
		writeRTFBlocks(&b, ch.Doc.Content, 0)
	}

	b.WriteString("}\n")
	return []byte(b.String())
}

func writeRTFBlocks(b *strings.Builder, nodes []doc.Node, indent int) {
	for _, n := range nodes {
		switch n.Type {
		case doc.TypeParagraph:
			b.WriteString(`{\pard`)
			if indent > 0 {
				fmt.Fprintf(b, `\li%d`, indent*720)
			}
			fmt.Fprintf(b, `\fs%d `, rtfBodySize)
			writeRTFInline(b, n.Content)
			b.WriteString(`\par}`)
			b.WriteString("\n")
		case doc.TypeHeading:
			level := doc.IntAttr(n.Attrs, "level", doc.MinHeadingLevel)
			fmt.Fprintf(b, `{\pard\b\fs%d `, headingSize(level))
			writeRTFInline(b, n.Content)
			b.WriteString(`\b0\par}`)
			b.WriteString("\n")
		case doc.TypeBlockquote:
			for _, child := range n.Content {
				writeRTFBlocks(b, []doc.Node{child}, indent+1)
			}
		case doc.TypeBulletList, doc.TypeOrderedList:
			writeRTFList(b, n, indent)
		case doc.TypeHorizontalRule:
			b.WriteString(`{\pard\qc\fs24 * * *\par}`)
			b.WriteString("\n")
		case doc.TypeColorBleed:
			writeRTFBlocks(b, n.Content, indent)
		case doc.TypeImageBleed:
			// Images do not survive RTF export; leave a placeholder line.
			b.WriteString(`{\pard\qc\i\fs20 [image]\i0\par}`)
			b.WriteString("\n")
		default:
			writeRTFBlocks(b, n.Content, indent)
		}
	}
}

func writeRTFList(b *strings.Builder, list doc.Node, indent int) {
	ordered := list.Type == doc.TypeOrderedList
	for i, item := range list.Content {
		marker := `\bullet  `
		if ordered {
			marker = fmt.Sprintf("%d. ", i+1)
		}
		for j, child := range item.Content {
			if child.Type == doc.TypeParagraph && j == 0 {
				fmt.Fprintf(b, `{\pard\li%d\fs%d %s`, (indent+1)*720, rtfBodySize, marker)
				writeRTFInline(b, child.Content)
				b.WriteString(`\par}`)
				b.WriteString("\n")
				continue
			}
			writeRTFBlocks(b, []doc.Node{child}, indent+1)
		}
	}
}

func writeRTFInline(b *strings.Builder, nodes []doc.Node) {
	for _, n := range nodes {
		switch n.Type {
		case doc.TypeText:
			var open, close string
			for _, m := range n.Marks {
				switch m.Type {
				case doc.MarkBold:
					open += `\b `
					close = `\b0 ` + close
				case doc.MarkItalic:
					open += `\i `
					close = `\i0 ` + close
				case doc.MarkStrike:
					open += `\strike `
					close = `\strike0 ` + close
				}
			}
			b.WriteString(open)
			b.WriteString(rtfEscape(n.Text))
			b.WriteString(close)
		case doc.TypeHardBreak:
			b.WriteString(`\line `)
		default:
			writeRTFInline(b, n.Content)
		}
	}
}

// rtfEscape escapes RTF control characters and encodes non-ASCII runes
// as unicode escapes.
func rtfEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '{':
			b.WriteString(`\{`)
		case r == '}':
			b.WriteString(`\}`)
		case r < 128:
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, `\u%d?`, int16(r))
		}
	}
	return b.String()
}
