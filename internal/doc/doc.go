// Package doc models a chapter's rich-text content tree. The JSON shape
// matches what the editing surface produces and what is persisted per
// chapter: typed nodes with attributes, child nodes, and text leaves
// carrying formatting marks.
package doc

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Node is one node of the content tree.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []Node         `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is a formatting mark on a text leaf.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Node and mark type tags.
const (
	TypeDoc            = "doc"
	TypeParagraph      = "paragraph"
	TypeHeading        = "heading"
	TypeBlockquote     = "blockquote"
	TypeBulletList     = "bulletList"
	TypeOrderedList    = "orderedList"
	TypeListItem       = "listItem"
	TypeText           = "text"
	TypeHardBreak      = "hardBreak"
	TypeHorizontalRule = "horizontalRule"
	TypeColorBleed     = "colorBleed"
	TypeImageBleed     = "imageBleed"

	MarkBold      = "bold"
	MarkItalic    = "italic"
	MarkStrike    = "strike"
	MarkTextStyle = "textStyle"
)

const (
	MinHeadingLevel = 2
	MaxHeadingLevel = 6
)

// Empty returns a fresh document: a doc root holding one empty paragraph.
func Empty() Node {
	return Node{
		Type:    TypeDoc,
		Content: []Node{{Type: TypeParagraph}},
	}
}

// Parse decodes a persisted chapter document and validates it.
func Parse(raw []byte) (Node, error) {
	var root Node
	if err := json.Unmarshal(raw, &root); err != nil {
		return Node{}, fmt.Errorf("decode document: %w", err)
	}
	if err := Validate(root); err != nil {
		return Node{}, err
	}
	return root, nil
}

// Marshal encodes a document for persistence.
func Marshal(root Node) ([]byte, error) {
	payload, err := json.MarshalIndent(root, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return append(payload, '\n'), nil
}

// Validate checks the structural invariants of a document tree:
// the root must be a doc node, heading levels stay within 2..6, and a
// bleed block never nests inside another bleed block.
func Validate(root Node) error {
	if root.Type != TypeDoc {
		return fmt.Errorf("document root must be %q, got %q", TypeDoc, root.Type)
	}
	return validateChildren(root.Content, false)
}

func validateChildren(nodes []Node, insideBleed bool) error {
	for _, n := range nodes {
		switch n.Type {
		case TypeDoc:
			return fmt.Errorf("nested %s node", TypeDoc)
		case TypeHeading:
			level := IntAttr(n.Attrs, "level", 0)
			if level < MinHeadingLevel || level > MaxHeadingLevel {
				return fmt.Errorf("heading level %d out of range %d..%d", level, MinHeadingLevel, MaxHeadingLevel)
			}
		case TypeColorBleed, TypeImageBleed:
			if insideBleed {
				return fmt.Errorf("%s may not nest inside a bleed block", n.Type)
			}
			if err := validateChildren(n.Content, true); err != nil {
				return err
			}
			continue
		}
		if err := validateChildren(n.Content, insideBleed); err != nil {
			return err
		}
	}
	return nil
}

// IntAttr reads an integer attribute. Attrs decoded from JSON carry
// numbers as float64.
func IntAttr(attrs map[string]any, key string, fallback int) int {
	if attrs == nil {
		return fallback
	}
	switch v := attrs[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return fallback
	}
}

// StringAttr reads a string attribute.
func StringAttr(attrs map[string]any, key string) string {
	if attrs == nil {
		return ""
	}
	s, _ := attrs[key].(string)
	return s
}

// FloatAttr reads a numeric attribute.
func FloatAttr(attrs map[string]any, key string) (float64, bool) {
	if attrs == nil {
		return 0, false
	}
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}

// HasMark reports whether a leaf carries a mark of the given type.
func (n Node) HasMark(markType string) bool {
	for _, m := range n.Marks {
		if m.Type == markType {
			return true
		}
	}
	return false
}

// FindMark returns the first mark of the given type.
func (n Node) FindMark(markType string) (Mark, bool) {
	for _, m := range n.Marks {
		if m.Type == markType {
			return m, true
		}
	}
	return Mark{}, false
}

// PlainText returns the document text with block boundaries collapsed to
// newlines, suitable for word counting and search indexing.
func PlainText(root Node) string {
	var b strings.Builder
	writePlainText(&b, root.Content)
	return strings.TrimRight(b.String(), "\n")
}

func writePlainText(b *strings.Builder, nodes []Node) {
	for _, n := range nodes {
		switch {
		case n.Type == TypeText:
			b.WriteString(n.Text)
		case n.Type == TypeHardBreak:
			b.WriteByte('\n')
		case len(n.Content) > 0:
			writePlainText(b, n.Content)
			b.WriteByte('\n')
		}
	}
}

// WordCount counts non-empty whitespace-separated tokens in the document
// text.
func WordCount(root Node) int {
	return len(strings.Fields(PlainText(root)))
}

// Leaf is a text leaf with its absolute document position range. Positions
// follow the editing surface's arithmetic: entering a non-leaf node costs
// one position, text occupies one position per rune, and leaving a node
// costs one position.
type Leaf struct {
	Text  string
	From  int
	To    int
	Marks []Mark
}

// TextLeaves walks the tree once, in document order, and returns every
// text leaf with its (From, To) offsets.
func TextLeaves(root Node) []Leaf {
	var leaves []Leaf
	walkLeaves(root.Content, 0, &leaves)
	return leaves
}

func walkLeaves(nodes []Node, pos int, leaves *[]Leaf) int {
	for _, n := range nodes {
		switch {
		case n.Type == TypeText:
			size := utf8.RuneCountInString(n.Text)
			*leaves = append(*leaves, Leaf{
				Text:  n.Text,
				From:  pos,
				To:    pos + size,
				Marks: n.Marks,
			})
			pos += size
		case len(n.Content) > 0:
			pos = walkLeaves(n.Content, pos+1, leaves) + 1
		default:
			// Leaf block (hardBreak, horizontalRule, imageBleed without
			// children): occupies a single position.
			if n.Type == TypeHardBreak || n.Type == TypeHorizontalRule || n.Type == TypeImageBleed {
				pos++
			} else {
				pos += 2
			}
		}
	}
	return pos
}

// BlockSpan returns the absolute position range of the top-level block
// containing pos, using the same arithmetic as TextLeaves. ok is false when
// pos falls outside the document.
func BlockSpan(root Node, pos int) (from, to int, ok bool) {
	at := 0
	for _, child := range root.Content {
		size := nodeSize(child)
		if pos >= at && pos < at+size {
			return at, at + size, true
		}
		at += size
	}
	return 0, 0, false
}

func nodeSize(n Node) int {
	switch {
	case n.Type == TypeText:
		return utf8.RuneCountInString(n.Text)
	case len(n.Content) > 0:
		size := 2
		for _, c := range n.Content {
			size += nodeSize(c)
		}
		return size
	case n.Type == TypeHardBreak || n.Type == TypeHorizontalRule || n.Type == TypeImageBleed:
		return 1
	default:
		return 2
	}
}

// Normalize re-encodes a raw document with stable field ordering so two
// serializations can be compared byte-wise.
func Normalize(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil
	}
	normalized, err := json.Marshal(parsed)
	if err != nil {
		return nil
	}
	return normalized
}

// Equal reports whether two documents have identical content, ignoring
// encoding differences.
func Equal(a, b Node) bool {
	rawA, errA := json.Marshal(a)
	rawB, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(Normalize(rawA)) == string(Normalize(rawB))
}
