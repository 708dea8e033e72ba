// Package styles resolves the per-project style cascade: a fixed set of
// block style keys, built-in defaults, per-project overrides merged field
// by field, and CSS emission for the editing surface and export.
package styles

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"inkwell/api/internal/doc"
)

// The seven block style keys. No other keys exist.
const (
	KeyParagraph  = "paragraph"
	KeyH2         = "h2"
	KeyH3         = "h3"
	KeyH4         = "h4"
	KeyH5         = "h5"
	KeyH6         = "h6"
	KeyBlockquote = "blockquote"
)

// Keys lists every style key in display order.
var Keys = []string{KeyParagraph, KeyH2, KeyH3, KeyH4, KeyH5, KeyH6, KeyBlockquote}

// Definition holds the styleable fields of one block key. Nil means the
// field is unset at this layer and falls through to the layer below.
type Definition struct {
	FontSize   *float64 `json:"fontSize,omitempty"`
	FontFamily *string  `json:"fontFamily,omitempty"`
	LineHeight *float64 `json:"lineHeight,omitempty"`
	Bold       *bool    `json:"bold,omitempty"`
	Italic     *bool    `json:"italic,omitempty"`
}

// Sheet maps style keys to override definitions. A missing key means no
// overrides for that key.
type Sheet map[string]Definition

func ptrF(v float64) *float64 { return &v }
func ptrS(v string) *string   { return &v }
func ptrB(v bool) *bool       { return &v }

// defaults returns the built-in definition for a key. Font family is left
// unset so the project-wide font falls through.
func defaults(key string) (Definition, bool) {
	switch key {
	case KeyParagraph:
		return Definition{FontSize: ptrF(12), LineHeight: ptrF(1.5), Bold: ptrB(false), Italic: ptrB(false)}, true
	case KeyH2:
		return Definition{FontSize: ptrF(24), LineHeight: ptrF(1.2), Bold: ptrB(true), Italic: ptrB(false)}, true
	case KeyH3:
		return Definition{FontSize: ptrF(20), LineHeight: ptrF(1.2), Bold: ptrB(true), Italic: ptrB(false)}, true
	case KeyH4:
		return Definition{FontSize: ptrF(16), LineHeight: ptrF(1.3), Bold: ptrB(true), Italic: ptrB(false)}, true
	case KeyH5:
		return Definition{FontSize: ptrF(14), LineHeight: ptrF(1.3), Bold: ptrB(true), Italic: ptrB(false)}, true
	case KeyH6:
		return Definition{FontSize: ptrF(12), LineHeight: ptrF(1.4), Bold: ptrB(true), Italic: ptrB(false)}, true
	case KeyBlockquote:
		return Definition{FontSize: ptrF(12), LineHeight: ptrF(1.5), Bold: ptrB(false), Italic: ptrB(true)}, true
	default:
		return Definition{}, false
	}
}

// ValidKey reports whether key is one of the seven block style keys.
func ValidKey(key string) bool {
	_, ok := defaults(key)
	return ok
}

// merge overlays b onto a, field by field. Set fields of b win.
func merge(a, b Definition) Definition {
	out := a
	if b.FontSize != nil {
		out.FontSize = b.FontSize
	}
	if b.FontFamily != nil {
		out.FontFamily = b.FontFamily
	}
	if b.LineHeight != nil {
		out.LineHeight = b.LineHeight
	}
	if b.Bold != nil {
		out.Bold = b.Bold
	}
	if b.Italic != nil {
		out.Italic = b.Italic
	}
	return out
}

// Resolve merges project overrides over the built-in defaults and returns
// the full sheet, one definition per key. Overrides for unknown keys are
// ignored.
func Resolve(overrides Sheet) Sheet {
	resolved := make(Sheet, len(Keys))
	for _, key := range Keys {
		base, _ := defaults(key)
		resolved[key] = merge(base, overrides[key])
	}
	return resolved
}

// Apply returns a copy of overrides with patch merged into one key.
// Fields the patch leaves nil keep their current override value.
func Apply(overrides Sheet, key string, patch Definition) (Sheet, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("unknown style key %q", key)
	}
	out := make(Sheet, len(overrides)+1)
	for k, v := range overrides {
		out[k] = v
	}
	out[key] = merge(out[key], patch)
	return out, nil
}

// ResetKey returns the built-in definition for one key, erasing any
// overrides. Unknown keys are an error.
func ResetKey(key string) (Definition, error) {
	base, ok := defaults(key)
	if !ok {
		return Definition{}, fmt.Errorf("unknown style key %q", key)
	}
	return base, nil
}

// selector maps a style key to its CSS selector inside the editing surface.
func selector(key string) string {
	if key == KeyParagraph {
		return ".editor-content p"
	}
	if key == KeyBlockquote {
		return ".editor-content blockquote"
	}
	return ".editor-content " + key
}

// Rules emits CSS for a resolved sheet, one rule per key in display order.
// Only set fields produce declarations.
func Rules(resolved Sheet) string {
	var b strings.Builder
	for _, key := range Keys {
		def, ok := resolved[key]
		if !ok {
			continue
		}
		var decls []string
		if def.FontSize != nil {
			decls = append(decls, "font-size: "+formatPt(*def.FontSize))
		}
		if def.FontFamily != nil && *def.FontFamily != "" {
			decls = append(decls, "font-family: "+quoteFamily(*def.FontFamily))
		}
		if def.LineHeight != nil {
			decls = append(decls, "line-height: "+trimFloat(*def.LineHeight))
		}
		if def.Bold != nil {
			if *def.Bold {
				decls = append(decls, "font-weight: bold")
			} else {
				decls = append(decls, "font-weight: normal")
			}
		}
		if def.Italic != nil {
			if *def.Italic {
				decls = append(decls, "font-style: italic")
			} else {
				decls = append(decls, "font-style: normal")
			}
		}
		if len(decls) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s {\n", selector(key))
		for _, d := range decls {
			fmt.Fprintf(&b, "  %s;\n", d)
		}
		b.WriteString("}\n")
	}
	return b.String()
}

func formatPt(v float64) string {
	return trimFloat(v) + "pt"
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func quoteFamily(family string) string {
	if strings.ContainsAny(family, " ") && !strings.HasPrefix(family, `"`) {
		return `"` + family + `"`
	}
	return family
}

// FromSelection inspects the text leaves of a selection and returns the
// fields every leaf agrees on. Fields with any disagreement stay unset and
// are silently dropped. An empty selection adopts nothing.
func FromSelection(leaves []doc.Leaf) Definition {
	if len(leaves) == 0 {
		return Definition{}
	}

	type leafStyle struct {
		bold, italic bool
		family, size string
	}

	read := func(l doc.Leaf) leafStyle {
		var s leafStyle
		for _, m := range l.Marks {
			switch m.Type {
			case doc.MarkBold:
				s.bold = true
			case doc.MarkItalic:
				s.italic = true
			case doc.MarkTextStyle:
				s.family = doc.StringAttr(m.Attrs, "fontFamily")
				s.size = doc.StringAttr(m.Attrs, "fontSize")
			}
		}
		return s
	}

	first := read(leaves[0])
	boldOK, italicOK, familyOK, sizeOK := true, true, true, true
	for _, l := range leaves[1:] {
		s := read(l)
		if s.bold != first.bold {
			boldOK = false
		}
		if s.italic != first.italic {
			italicOK = false
		}
		if s.family != first.family {
			familyOK = false
		}
		if s.size != first.size {
			sizeOK = false
		}
	}

	var out Definition
	if boldOK {
		out.Bold = ptrB(first.bold)
	}
	if italicOK {
		out.Italic = ptrB(first.italic)
	}
	if familyOK && first.family != "" {
		out.FontFamily = ptrS(first.family)
	}
	if sizeOK && first.size != "" {
		if pt, ok := parsePt(first.size); ok {
			out.FontSize = ptrF(pt)
		}
	}
	return out
}

func parsePt(s string) (float64, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "pt")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// OverrideKeys returns the keys a sheet actually overrides, sorted.
func OverrideKeys(overrides Sheet) []string {
	var keys []string
	for key, def := range overrides {
		if !ValidKey(key) {
			continue
		}
		if def.FontSize != nil || def.FontFamily != nil || def.LineHeight != nil || def.Bold != nil || def.Italic != nil {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}
