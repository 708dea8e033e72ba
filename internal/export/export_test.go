package export

import (
	"context"
	"errors"
	"strings"
	"testing"

	"inkwell/api/internal/doc"
	"inkwell/api/internal/page"
	"inkwell/api/internal/styles"
)

type fakeStore struct {
	project  ProjectInfo
	chapters []ChapterInfo
	content  map[int]doc.Node
}

func (f *fakeStore) GetProjectInfo(ctx context.Context, projectID string) (ProjectInfo, error) {
	return f.project, nil
}

func (f *fakeStore) ListChapterInfos(ctx context.Context, projectID string) ([]ChapterInfo, error) {
	return f.chapters, nil
}

func (f *fakeStore) GetChapterContent(ctx context.Context, projectID string, chapterID int) (doc.Node, error) {
	content, ok := f.content[chapterID]
	if !ok {
		return doc.Node{}, errors.New("missing")
	}
	return content, nil
}

func testStore() *fakeStore {
	return &fakeStore{
		project: ProjectInfo{
			ID:           "proj_1",
			Title:        "The Long Winter",
			Author:       "A. Frost",
			FontFamily:   "Georgia",
			Styles:       styles.Sheet{},
			PageSettings: page.Defaults(),
		},
		chapters: []ChapterInfo{
			{ID: 1, Title: "Chapter One"},
			{ID: 2, Title: "Chapter Two"},
		},
		content: map[int]doc.Node{
			1: {Type: doc.TypeDoc, Content: []doc.Node{
				{Type: doc.TypeParagraph, Content: []doc.Node{
					{Type: doc.TypeText, Text: "Snow fell "},
					{Type: doc.TypeText, Text: "hard", Marks: []doc.Mark{{Type: doc.MarkBold}}},
					{Type: doc.TypeText, Text: " that year."},
				}},
			}},
			2: {Type: doc.TypeDoc, Content: []doc.Node{
				{Type: doc.TypeHeading, Attrs: map[string]any{"level": 2}, Content: []doc.Node{
					{Type: doc.TypeText, Text: "Thaw"},
				}},
				{Type: doc.TypeParagraph, Content: []doc.Node{
					{Type: doc.TypeText, Text: "Spring { came } late."},
				}},
			}},
		},
	}
}

func TestExportHTMLIncludesChaptersAndStyles(t *testing.T) {
	store := testStore()
	store.project.Styles = styles.Sheet{
		styles.KeyParagraph: {FontSize: floatPtr(14)},
	}
	svc := NewService(store)

	result, err := svc.Export(context.Background(), Request{ProjectID: "proj_1", Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.MimeType != "text/html; charset=utf-8" {
		t.Errorf("mime = %q", result.MimeType)
	}
	if result.Filename != "The-Long-Winter.html" {
		t.Errorf("filename = %q", result.Filename)
	}

	html := string(result.Data)
	for _, want := range []string{
		"<h1>Chapter One</h1>",
		"<h1>Chapter Two</h1>",
		"<strong>hard</strong>",
		"font-size: 14pt;",
		"The Long Winter",
		"A. Frost",
		`class="chapter-break"`,
	} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestExportSingleChapter(t *testing.T) {
	svc := NewService(testStore())
	result, err := svc.Export(context.Background(), Request{ProjectID: "proj_1", ChapterID: 2, Format: FormatHTML})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	html := string(result.Data)
	if strings.Contains(html, "Chapter One") {
		t.Error("single-chapter export included another chapter")
	}
	if !strings.Contains(html, "Thaw") {
		t.Error("requested chapter missing")
	}
}

func TestExportRTF(t *testing.T) {
	svc := NewService(testStore())
	result, err := svc.Export(context.Background(), Request{ProjectID: "proj_1", Format: FormatRTF})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if result.MimeType != "application/rtf" {
		t.Errorf("mime = %q", result.MimeType)
	}

	rtf := string(result.Data)
	if !strings.HasPrefix(rtf, `{\rtf1\ansi`) {
		t.Fatalf("not an RTF document: %.40s", rtf)
	}
	for _, want := range []string{
		`{\fonttbl{\f0 Georgia;}}`,
		`\b hard\b0`,  // bold run
		`\page`,       // chapter separator
		`\fs40`,       // level 2 heading size
		`\{ came \}`,  // escaped braces
	} {
		if !strings.Contains(rtf, want) {
			t.Errorf("rtf missing %q", want)
		}
	}
}

func TestExportUnknownFormat(t *testing.T) {
	svc := NewService(testStore())
	if _, err := svc.Export(context.Background(), Request{ProjectID: "proj_1", Format: "epub3"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestExportMissingContent(t *testing.T) {
	store := testStore()
	delete(store.content, 1)
	svc := NewService(store)
	_, err := svc.Export(context.Background(), Request{ProjectID: "proj_1", Format: FormatHTML})
	if !errors.Is(err, ErrContentUnavailable) {
		t.Fatalf("err = %v, want ErrContentUnavailable", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"The Long Winter":       "The-Long-Winter",
		"what? about: symbols!": "what-about-symbols",
		"":                      "manuscript",
		strings.Repeat("a", 80): strings.Repeat("a", 50),
	}
	for in, want := range cases {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	got := percentEncodeForDataURL("a b<c>")
	if got != "a%20b%3Cc%3E" {
		t.Fatalf("encoded = %q", got)
	}
}

func floatPtr(v float64) *float64 { return &v }
