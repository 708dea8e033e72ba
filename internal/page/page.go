// Package page estimates print geometry for a manuscript: paper
// dimensions in CSS pixels at 96 dpi, usable content area after margins,
// and a page count derived from word count.
package page

import (
	"fmt"
	"math"
)

// DPI is the fixed CSS pixel density used for all conversions.
const DPI = 96

// WordsPerPage is the estimation constant: one manuscript page holds
// roughly 250 words.
const WordsPerPage = 250

// Settings holds the user-facing page configuration. Margins and the
// first-line indent are inches; paragraph spacing is points.
type Settings struct {
	PaperSize        string  `json:"paperSize"`
	MarginTop        float64 `json:"marginTop"`
	MarginRight      float64 `json:"marginRight"`
	MarginBottom     float64 `json:"marginBottom"`
	MarginLeft       float64 `json:"marginLeft"`
	PageNumbers      bool    `json:"pageNumbers"`
	FirstPageNumber  int     `json:"firstPageNumber"`
	NumberPosition   string  `json:"numberPosition"`
	FirstLineIndent  float64 `json:"firstLineIndent"`
	ParagraphSpacing float64 `json:"paragraphSpacing"`
	Alignment        string  `json:"alignment"`
}

// Defaults returns the settings new projects start with: US Letter,
// one-inch margins, centered bottom page numbers from 1, a half-inch
// first-line indent, left alignment.
func Defaults() Settings {
	return Settings{
		PaperSize:        "letter",
		MarginTop:        1,
		MarginRight:      1,
		MarginBottom:     1,
		MarginLeft:       1,
		PageNumbers:      true,
		FirstPageNumber:  1,
		NumberPosition:   "bottom-center",
		FirstLineIndent:  0.5,
		ParagraphSpacing: 0,
		Alignment:        "left",
	}
}

// numberPositions lists where a page number may be placed.
var numberPositions = map[string]bool{
	"top-left":      true,
	"top-center":    true,
	"top-right":     true,
	"bottom-left":   true,
	"bottom-center": true,
	"bottom-right":  true,
}

// alignments lists the paragraph alignment modes.
var alignments = map[string]bool{
	"left":    true,
	"justify": true,
}

// paperInches maps paper size names to (width, height) in inches.
var paperInches = map[string][2]float64{
	"letter": {8.5, 11},
	"legal":  {8.5, 14},
	"a4":     {8.27, 11.69},
	"a5":     {5.83, 8.27},
	"b5":     {6.93, 9.84},
}

// ValidPaperSize reports whether name is a known paper size.
func ValidPaperSize(name string) bool {
	_, ok := paperInches[name]
	return ok
}

// Validate checks settings for a known paper size, non-negative margins
// that leave a positive content area, and valid numbering and paragraph
// options.
func Validate(s Settings) error {
	dims, ok := paperInches[s.PaperSize]
	if !ok {
		return fmt.Errorf("unknown paper size %q", s.PaperSize)
	}
	for _, m := range []float64{s.MarginTop, s.MarginRight, s.MarginBottom, s.MarginLeft} {
		if m < 0 {
			return fmt.Errorf("negative margin")
		}
	}
	if s.MarginLeft+s.MarginRight >= dims[0] || s.MarginTop+s.MarginBottom >= dims[1] {
		return fmt.Errorf("margins leave no content area on %s paper", s.PaperSize)
	}
	if s.FirstPageNumber < 1 {
		return fmt.Errorf("first page number must be at least 1")
	}
	if !numberPositions[s.NumberPosition] {
		return fmt.Errorf("unknown page number position %q", s.NumberPosition)
	}
	if s.FirstLineIndent < 0 {
		return fmt.Errorf("negative first-line indent")
	}
	if s.ParagraphSpacing < 0 {
		return fmt.Errorf("negative paragraph spacing")
	}
	if !alignments[s.Alignment] {
		return fmt.Errorf("unknown alignment %q", s.Alignment)
	}
	return nil
}

// Geometry is the pixel-space result of resolving settings at 96 dpi.
// All values are rounded to whole pixels.
type Geometry struct {
	PageWidth        int `json:"pageWidth"`
	PageHeight       int `json:"pageHeight"`
	ContentWidth     int `json:"contentWidth"`
	ContentHeight    int `json:"contentHeight"`
	MarginTop        int `json:"marginTop"`
	MarginRight      int `json:"marginRight"`
	MarginBottom     int `json:"marginBottom"`
	MarginLeft       int `json:"marginLeft"`
	FirstLineIndent  int `json:"firstLineIndent"`
	ParagraphSpacing int `json:"paragraphSpacing"`
}

// Resolve converts settings to pixel geometry. Unknown paper sizes fall
// back to the defaults.
func Resolve(s Settings) Geometry {
	dims, ok := paperInches[s.PaperSize]
	if !ok {
		dims = paperInches[Defaults().PaperSize]
	}
	g := Geometry{
		PageWidth:        toPx(dims[0]),
		PageHeight:       toPx(dims[1]),
		MarginTop:        toPx(s.MarginTop),
		MarginRight:      toPx(s.MarginRight),
		MarginBottom:     toPx(s.MarginBottom),
		MarginLeft:       toPx(s.MarginLeft),
		FirstLineIndent:  toPx(s.FirstLineIndent),
		ParagraphSpacing: pointsToPx(s.ParagraphSpacing),
	}
	g.ContentWidth = g.PageWidth - g.MarginLeft - g.MarginRight
	g.ContentHeight = g.PageHeight - g.MarginTop - g.MarginBottom
	return g
}

// PaperInches returns the paper dimensions in inches, falling back to
// the default size for unknown names. Print pipelines want inches.
func PaperInches(s Settings) (width, height float64) {
	dims, ok := paperInches[s.PaperSize]
	if !ok {
		dims = paperInches[Defaults().PaperSize]
	}
	return dims[0], dims[1]
}

func toPx(inches float64) int {
	return int(math.Round(inches * DPI))
}

// pointsToPx converts typographic points (1/72 inch) to pixels at 96 dpi.
func pointsToPx(points float64) int {
	return int(math.Round(points / 72 * DPI))
}

// EstimatePages returns the page count for a word count: at least one
// page, then one page per 250 words rounded up.
func EstimatePages(wordCount int) int {
	if wordCount <= 0 {
		return 1
	}
	pages := (wordCount + WordsPerPage - 1) / WordsPerPage
	if pages < 1 {
		return 1
	}
	return pages
}
