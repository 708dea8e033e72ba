package doc

import (
	"strings"
)

// FromPlainText converts raw text to a document: one paragraph per
// non-empty line group, blank lines separating paragraphs.
func FromPlainText(text string) Node {
	var blocks []Node
	for _, para := range splitParagraphs(text) {
		blocks = append(blocks, paragraphNode(para))
	}
	if len(blocks) == 0 {
		return Empty()
	}
	return Node{Type: TypeDoc, Content: blocks}
}

func splitParagraphs(text string) []string {
	var paras []string
	var current []string
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == "" {
			if len(current) > 0 {
				paras = append(paras, strings.Join(current, " "))
				current = nil
			}
			continue
		}
		current = append(current, strings.TrimSpace(line))
	}
	if len(current) > 0 {
		paras = append(paras, strings.Join(current, " "))
	}
	return paras
}

func paragraphNode(text string) Node {
	if text == "" {
		return Node{Type: TypeParagraph}
	}
	return Node{Type: TypeParagraph, Content: inlineNodes(text)}
}

// FromMarkdown converts a Markdown fragment to a document tree. The parser
// is line-oriented and covers what imported manuscripts actually use:
// ATX headings, bullet and ordered lists, blockquotes, horizontal rules,
// and bold/italic emphasis. Everything else is a paragraph.
func FromMarkdown(md string) Node {
	var blocks []Node
	lines := strings.Split(strings.ReplaceAll(md, "\r\n", "\n"), "\n")

	var para []string
	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, paragraphNode(strings.Join(para, " ")))
			para = nil
		}
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flushPara()
		case isHorizontalRule(trimmed):
			flushPara()
			blocks = append(blocks, Node{Type: TypeHorizontalRule})
		case strings.HasPrefix(trimmed, "#"):
			flushPara()
			level, text := parseHeading(trimmed)
			if level == 0 {
				para = append(para, trimmed)
				continue
			}
			blocks = append(blocks, Node{
				Type:    TypeHeading,
				Attrs:   map[string]any{"level": level},
				Content: inlineNodes(text),
			})
		case strings.HasPrefix(trimmed, "> "):
			flushPara()
			var quoted []string
			for ; i < len(lines); i++ {
				t := strings.TrimSpace(lines[i])
				if !strings.HasPrefix(t, ">") {
					i--
					break
				}
				quoted = append(quoted, strings.TrimSpace(strings.TrimPrefix(t, ">")))
			}
			blocks = append(blocks, Node{
				Type:    TypeBlockquote,
				Content: []Node{paragraphNode(strings.Join(quoted, " "))},
			})
		case isBulletItem(trimmed):
			flushPara()
			listType := TypeBulletList
			var items []Node
			for ; i < len(lines); i++ {
				t := strings.TrimSpace(lines[i])
				if !isBulletItem(t) {
					i--
					break
				}
				items = append(items, listItemNode(bulletItemText(t)))
			}
			blocks = append(blocks, Node{Type: listType, Content: items})
		case isOrderedItem(trimmed):
			flushPara()
			var items []Node
			for ; i < len(lines); i++ {
				t := strings.TrimSpace(lines[i])
				if !isOrderedItem(t) {
					i--
					break
				}
				items = append(items, listItemNode(orderedItemText(t)))
			}
			blocks = append(blocks, Node{Type: TypeOrderedList, Content: items})
		default:
			para = append(para, trimmed)
		}
	}
	flushPara()

	if len(blocks) == 0 {
		return Empty()
	}
	return Node{Type: TypeDoc, Content: blocks}
}

func isHorizontalRule(line string) bool {
	return line == "---" || line == "***" || line == "___"
}

// parseHeading returns the heading level clamped to 2..6 and the text.
// A single # maps to level 2 because chapter titles own h1 territory.
func parseHeading(line string) (int, string) {
	hashes := 0
	for hashes < len(line) && line[hashes] == '#' {
		hashes++
	}
	if hashes > 6 || hashes >= len(line) || line[hashes] != ' ' {
		return 0, ""
	}
	level := hashes
	if level < MinHeadingLevel {
		level = MinHeadingLevel
	}
	return level, strings.TrimSpace(line[hashes:])
}

func isBulletItem(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "+ ")
}

func bulletItemText(line string) string {
	return strings.TrimSpace(line[2:])
}

func isOrderedItem(line string) bool {
	dot := strings.Index(line, ". ")
	if dot <= 0 {
		return false
	}
	for _, r := range line[:dot] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func orderedItemText(line string) string {
	dot := strings.Index(line, ". ")
	return strings.TrimSpace(line[dot+2:])
}

func listItemNode(text string) Node {
	return Node{Type: TypeListItem, Content: []Node{paragraphNode(text)}}
}

// inlineNodes splits a line into text leaves, applying bold (**) and
// italic (*) emphasis spans.
func inlineNodes(text string) []Node {
	var nodes []Node
	rest := text
	for rest != "" {
		if open := strings.Index(rest, "**"); open >= 0 {
			if close := strings.Index(rest[open+2:], "**"); close >= 0 {
				if open > 0 {
					nodes = append(nodes, italicRuns(rest[:open])...)
				}
				inner := rest[open+2 : open+2+close]
				if inner != "" {
					nodes = append(nodes, Node{
						Type:  TypeText,
						Text:  inner,
						Marks: []Mark{{Type: MarkBold}},
					})
				}
				rest = rest[open+2+close+2:]
				continue
			}
		}
		nodes = append(nodes, italicRuns(rest)...)
		break
	}
	return nodes
}

func italicRuns(text string) []Node {
	var nodes []Node
	rest := text
	for rest != "" {
		open := strings.IndexByte(rest, '*')
		if open < 0 {
			nodes = append(nodes, Node{Type: TypeText, Text: rest})
			break
		}
		close := strings.IndexByte(rest[open+1:], '*')
		if close < 0 {
			nodes = append(nodes, Node{Type: TypeText, Text: rest})
			break
		}
		if open > 0 {
			nodes = append(nodes, Node{Type: TypeText, Text: rest[:open]})
		}
		inner := rest[open+1 : open+1+close]
		if inner != "" {
			nodes = append(nodes, Node{
				Type:  TypeText,
				Text:  inner,
				Marks: []Mark{{Type: MarkItalic}},
			})
		}
		rest = rest[open+1+close+1:]
	}
	return nodes
}

// Section is one imported chapter candidate: a title and its body text.
type Section struct {
	Title string
	Body  string
}

// SplitSections splits imported file content on a delimiter line. When
// extractTitles is set, the first non-empty line of each section becomes
// its title (leading Markdown heading markers stripped). An empty
// delimiter yields a single section.
func SplitSections(content, delimiter string, extractTitles bool) []Section {
	var parts []string
	if strings.TrimSpace(delimiter) == "" {
		parts = []string{content}
	} else {
		parts = splitOnDelimiterLine(content, strings.TrimSpace(delimiter))
	}

	var sections []Section
	for _, part := range parts {
		body := strings.TrimSpace(part)
		if body == "" {
			continue
		}
		s := Section{Body: body}
		if extractTitles {
			lines := strings.SplitN(body, "\n", 2)
			s.Title = strings.TrimSpace(strings.TrimLeft(lines[0], "# "))
			if len(lines) > 1 {
				s.Body = strings.TrimSpace(lines[1])
			} else {
				s.Body = ""
			}
		}
		sections = append(sections, s)
	}
	return sections
}

func splitOnDelimiterLine(content, delimiter string) []string {
	var parts []string
	var current []string
	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(line) == delimiter {
			parts = append(parts, strings.Join(current, "\n"))
			current = nil
			continue
		}
		current = append(current, line)
	}
	parts = append(parts, strings.Join(current, "\n"))
	return parts
}
