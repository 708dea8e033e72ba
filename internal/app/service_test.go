package app

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"inkwell/api/internal/config"
	"inkwell/api/internal/doc"
	"inkwell/api/internal/export"
	"inkwell/api/internal/gitrepo"
	"inkwell/api/internal/page"
	"inkwell/api/internal/search"
	"inkwell/api/internal/spellcheck"
	"inkwell/api/internal/store"
	"inkwell/api/internal/styles"
)

type fakeStore struct {
	mu        sync.Mutex
	appConfig store.AppConfig
	projects  map[string]store.Project
	chapters  map[string][]store.Chapter
	maxID     map[string]int
	patches   []store.ProjectPatch
	orders    [][]int
	renames   int

	saveOrderErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		projects: map[string]store.Project{},
		chapters: map[string][]store.Chapter{},
		maxID:    map[string]int{},
	}
}

func (f *fakeStore) GetAppConfig(context.Context) (store.AppConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.appConfig, nil
}

func (f *fakeStore) SetLastProjectPath(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appConfig.LastProjectPath = path
	return nil
}

func (f *fakeStore) SetAppFontFamily(_ context.Context, family string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appConfig.FontFamily = family
	return nil
}

func (f *fakeStore) CreateProject(_ context.Context, p store.Project) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetProject(_ context.Context, id string) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return store.Project{}, sql.ErrNoRows
	}
	return p, nil
}

func (f *fakeStore) GetProjectByPath(_ context.Context, path string) (store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.projects {
		if p.Path == path {
			return p, nil
		}
	}
	return store.Project{}, sql.ErrNoRows
}

func (f *fakeStore) ListProjects(context.Context) ([]store.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Project
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeStore) SaveProjectMetadata(_ context.Context, id string, patch store.ProjectPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.projects[id]
	if !ok {
		return sql.ErrNoRows
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Author != nil {
		p.Author = *patch.Author
	}
	if patch.ExportDir != nil {
		p.ExportDir = *patch.ExportDir
	}
	if patch.FontFamily != nil {
		p.FontFamily = *patch.FontFamily
	}
	if patch.ActiveChapterID != nil {
		active := *patch.ActiveChapterID
		p.ActiveChapterID = &active
	}
	if len(patch.Styles) > 0 {
		p.Styles = patch.Styles
	}
	if len(patch.PageSettings) > 0 {
		p.PageSettings = patch.PageSettings
	}
	f.projects[id] = p
	f.patches = append(f.patches, patch)
	return nil
}

func (f *fakeStore) ClearActiveChapter(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.projects[id]; ok {
		p.ActiveChapterID = nil
		f.projects[id] = p
	}
	return nil
}

func (f *fakeStore) DeleteProject(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.projects, id)
	delete(f.chapters, id)
	return nil
}

func (f *fakeStore) ListChapters(_ context.Context, projectID string) ([]store.Chapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]store.Chapter(nil), f.chapters[projectID]...), nil
}

func (f *fakeStore) NextChapterID(_ context.Context, projectID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxID[projectID] + 1, nil
}

func (f *fakeStore) InsertChapter(_ context.Context, c store.Chapter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.Position = len(f.chapters[c.ProjectID])
	f.chapters[c.ProjectID] = append(f.chapters[c.ProjectID], c)
	if c.ChapterID > f.maxID[c.ProjectID] {
		f.maxID[c.ProjectID] = c.ChapterID
	}
	return nil
}

func (f *fakeStore) RenameChapter(_ context.Context, projectID string, chapterID int, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.chapters[projectID] {
		if c.ChapterID == chapterID {
			f.chapters[projectID][i].Title = title
			f.renames++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) DeleteChapter(_ context.Context, projectID string, chapterID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.chapters[projectID][:0]
	for _, c := range f.chapters[projectID] {
		if c.ChapterID != chapterID {
			kept = append(kept, c)
		}
	}
	f.chapters[projectID] = kept
	return nil
}

func (f *fakeStore) SaveChapterOrder(_ context.Context, projectID string, order []int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveOrderErr != nil {
		return f.saveOrderErr
	}
	byID := map[int]store.Chapter{}
	for _, c := range f.chapters[projectID] {
		byID[c.ChapterID] = c
	}
	next := make([]store.Chapter, 0, len(order))
	for i, id := range order {
		c := byID[id]
		c.Position = i
		next = append(next, c)
	}
	f.chapters[projectID] = next
	f.orders = append(f.orders, append([]int(nil), order...))
	return nil
}

func (f *fakeStore) UpsertChapterText(context.Context, store.ChapterText) error { return nil }
func (f *fakeStore) Ping(context.Context) error                                 { return nil }

type fakeGit struct {
	mu       sync.Mutex
	docs     map[string]map[int]doc.Node
	saves    int
	attempts int
	deletes  int
	saveErr  error
}

func newFakeGit() *fakeGit {
	return &fakeGit{docs: map[string]map[int]doc.Node{}}
}

func (f *fakeGit) EnsureProjectRepo(projectID, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.docs[projectID] == nil {
		f.docs[projectID] = map[int]doc.Node{}
	}
	return nil
}

func (f *fakeGit) SaveChapter(projectID string, chapterID int, root doc.Node, author, message string) (store.CommitInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.saveErr != nil {
		return store.CommitInfo{}, f.saveErr
	}
	if f.docs[projectID] == nil {
		f.docs[projectID] = map[int]doc.Node{}
	}
	f.docs[projectID][chapterID] = root
	f.saves++
	return store.CommitInfo{Hash: "abc1234", Message: message, Author: author, CreatedAt: time.Now()}, nil
}

func (f *fakeGit) LoadChapter(projectID string, chapterID int) (doc.Node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	root, ok := f.docs[projectID][chapterID]
	if !ok {
		return doc.Node{}, gitrepo.ErrChapterNotFound
	}
	return root, nil
}

func (f *fakeGit) LoadChapterAt(projectID string, chapterID int, hash string) (doc.Node, error) {
	return f.LoadChapter(projectID, chapterID)
}

func (f *fakeGit) DeleteChapter(projectID string, chapterID int, author string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs[projectID], chapterID)
	f.deletes++
	return nil
}

func (f *fakeGit) History(projectID string, limit int) ([]store.CommitInfo, error) {
	return []store.CommitInfo{{Hash: "abc1234", Message: "Save Chapter 1", Author: "A", CreatedAt: time.Now()}}, nil
}

func (f *fakeGit) DeleteProjectRepo(projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, projectID)
	return nil
}

func (f *fakeGit) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeGit) attemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *fakeGit) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

type fakeLexicon struct {
	mu      sync.Mutex
	global  map[string]bool
	project map[string]map[string]bool
}

func newFakeLexicon() *fakeLexicon {
	return &fakeLexicon{global: map[string]bool{}, project: map[string]map[string]bool{}}
}

func (f *fakeLexicon) AddGlobalWord(_ context.Context, word string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.global[word] = true
	return nil
}

func (f *fakeLexicon) AddProjectWord(_ context.Context, projectID, word string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.project[projectID] == nil {
		f.project[projectID] = map[string]bool{}
	}
	f.project[projectID][word] = true
	return nil
}

func (f *fakeLexicon) RemoveGlobalWord(_ context.Context, word string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.global, word)
	return nil
}

func (f *fakeLexicon) RemoveProjectWord(_ context.Context, projectID, word string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.project[projectID], word)
	return nil
}

func (f *fakeLexicon) GlobalWords(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for w := range f.global {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeLexicon) ProjectWords(_ context.Context, projectID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for w := range f.project[projectID] {
		out = append(out, w)
	}
	return out, nil
}

func (f *fakeLexicon) MergedWords(ctx context.Context, projectID string) ([]string, error) {
	global, _ := f.GlobalWords(ctx)
	project, _ := f.ProjectWords(ctx, projectID)
	return append(global, project...), nil
}

func (f *fakeLexicon) DeleteProjectWords(_ context.Context, projectID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.project, projectID)
	return nil
}

func (f *fakeLexicon) Ping(context.Context) error { return nil }

type fakeSearch struct {
	mu      sync.Mutex
	indexed []search.ChapterRecord
	deleted []int
}

func (f *fakeSearch) Search(q search.Query) search.Response {
	return search.Response{Results: []search.Result{}}
}

func (f *fakeSearch) IndexChapter(rec search.ChapterRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indexed = append(f.indexed, rec)
}

func (f *fakeSearch) DeleteChapter(projectID string, chapterID int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, chapterID)
}

type fakeExporter struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeExporter) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return &export.Result{Data: []byte("<html></html>"), Filename: "Test.html", MimeType: "text/html; charset=utf-8"}, nil
}

func newTestService(fs *fakeStore, fg *fakeGit) *Service {
	s := &Service{
		cfg:    config.Config{AutosaveDelay: 20 * time.Millisecond},
		store:  fs,
		git:    fg,
		lex:    newFakeLexicon(),
		search: &fakeSearch{},
		export: &fakeExporter{},
		spell:  spellcheck.NewEngine(spellcheck.NewSet()),
		events: newEventBus(),
	}
	s.saver = newAutosaver(s.cfg.AutosaveDelay, s.saveChapter)
	return s
}

func seedProject(t *testing.T, fs *fakeStore, fg *fakeGit, chapterTitles ...string) store.Project {
	t.Helper()
	ctx := context.Background()
	project := store.Project{ID: "proj_test", Path: "/home/ink/winter", Title: "Winter", Author: "A. Frost"}
	if _, err := fs.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	_ = fg.EnsureProjectRepo(project.ID, project.Author)
	for i, title := range chapterTitles {
		id := i + 1
		if err := fs.InsertChapter(ctx, store.Chapter{ProjectID: project.ID, ChapterID: id, Title: title}); err != nil {
			t.Fatalf("InsertChapter: %v", err)
		}
		if _, err := fg.SaveChapter(project.ID, id, doc.FromPlainText(title+" text"), project.Author, "seed"); err != nil {
			t.Fatalf("SaveChapter: %v", err)
		}
	}
	return project
}

func openTestProject(t *testing.T, s *Service, path string) ProjectState {
	t.Helper()
	state, err := s.OpenProject(context.Background(), OpenProjectInput{Path: path})
	if err != nil {
		t.Fatalf("OpenProject: %v", err)
	}
	return state
}

func TestOpenProjectActivatesFirstChapter(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One", "Two")
	s := newTestService(fs, fg)

	state := openTestProject(t, s, "/home/ink/winter")

	if state.Project == nil || state.Project.ID != "proj_test" {
		t.Fatalf("project not loaded: %+v", state.Project)
	}
	if len(state.Chapters) != 2 {
		t.Fatalf("chapters = %d, want 2", len(state.Chapters))
	}
	if state.ActiveChapterID != 1 {
		t.Errorf("active = %d, want 1", state.ActiveChapterID)
	}
	if fs.appConfig.LastProjectPath != "/home/ink/winter" {
		t.Errorf("last project path = %q", fs.appConfig.LastProjectPath)
	}
}

func TestOperationsWithoutOpenProjectFail(t *testing.T) {
	s := newTestService(newFakeStore(), newFakeGit())

	_, err := s.AddChapter(context.Background(), AddChapterInput{Title: "One"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "NO_PROJECT" {
		t.Fatalf("err = %v, want NO_PROJECT", err)
	}
}

func TestAddChapterAssignsNextIDAndDedupesTitle(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "Chapter 1", "Chapter 2")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	chapter, err := s.AddChapter(context.Background(), AddChapterInput{Title: "Chapter 2"})
	if err != nil {
		t.Fatalf("AddChapter: %v", err)
	}
	if chapter.ChapterID != 3 {
		t.Errorf("id = %d, want 3", chapter.ChapterID)
	}
	if chapter.Title != "Chapter 2 (1)" {
		t.Errorf("title = %q, want %q", chapter.Title, "Chapter 2 (1)")
	}
	if got := s.State(context.Background()).ActiveChapterID; got != 3 {
		t.Errorf("active = %d, want new chapter 3", got)
	}
}

func TestChapterIDsNeverReused(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One", "Two", "Three")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	if err := s.DeleteChapter(context.Background(), 3); err != nil {
		t.Fatalf("DeleteChapter: %v", err)
	}
	chapter, err := s.AddChapter(context.Background(), AddChapterInput{})
	if err != nil {
		t.Fatalf("AddChapter: %v", err)
	}
	if chapter.ChapterID != 4 {
		t.Errorf("id = %d, want 4 (3 stays retired)", chapter.ChapterID)
	}
}

func TestRenameChapterTrimsAndIgnoresEmpty(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	if err := s.RenameChapter(context.Background(), 1, RenameChapterInput{Title: "   "}); err != nil {
		t.Fatalf("empty rename should be a no-op, got %v", err)
	}
	if fs.renames != 0 {
		t.Errorf("renames = %d, want 0", fs.renames)
	}

	if err := s.RenameChapter(context.Background(), 1, RenameChapterInput{Title: "  The Storm  "}); err != nil {
		t.Fatalf("RenameChapter: %v", err)
	}
	chapters, _ := fs.ListChapters(context.Background(), "proj_test")
	if chapters[0].Title != "The Storm" {
		t.Errorf("title = %q, want trimmed %q", chapters[0].Title, "The Storm")
	}
}

func TestDeleteActiveChapterActivatesNextThenPrevious(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One", "Two", "Three")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	if _, err := s.SelectChapter(context.Background(), 2); err != nil {
		t.Fatalf("SelectChapter: %v", err)
	}
	if err := s.DeleteChapter(context.Background(), 2); err != nil {
		t.Fatalf("DeleteChapter: %v", err)
	}
	if got := s.State(context.Background()).ActiveChapterID; got != 3 {
		t.Errorf("active = %d, want next chapter 3", got)
	}

	if err := s.DeleteChapter(context.Background(), 3); err != nil {
		t.Fatalf("DeleteChapter: %v", err)
	}
	if got := s.State(context.Background()).ActiveChapterID; got != 1 {
		t.Errorf("active = %d, want previous chapter 1", got)
	}
}

func TestDeleteUnknownChapterIsNoOp(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	if err := s.DeleteChapter(context.Background(), 99); err != nil {
		t.Fatalf("deleting an absent chapter should be a no-op, got %v", err)
	}
	if fg.deletes != 0 {
		t.Errorf("git deletes = %d, want 0", fg.deletes)
	}
}

func TestUpdateContentMarksDirtyAndAutosaveClears(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")
	baseline := fg.saveCount()

	raw, _ := doc.Marshal(doc.FromPlainText("a new draft"))
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}
	if !s.State(context.Background()).Dirty[1] {
		t.Fatal("chapter not marked dirty after edit")
	}

	deadline := time.Now().Add(2 * time.Second)
	for s.State(context.Background()).Dirty[1] {
		if time.Now().After(deadline) {
			t.Fatal("autosave never cleared the dirty flag")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got := fg.saveCount() - baseline; got != 1 {
		t.Errorf("saves = %d, want 1", got)
	}
}

func TestUpdateContentRejectsInvalidTree(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: []byte(`{"type":"paragraph"}`)})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_CONTENT" {
		t.Fatalf("err = %v, want INVALID_CONTENT", err)
	}
}

func TestSaveFailureKeepsDirtyUntilRetrySucceeds(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	raw, _ := doc.Marshal(doc.FromPlainText("fragile draft"))
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}

	fg.mu.Lock()
	fg.saveErr = errors.New("repo unavailable")
	fg.mu.Unlock()
	if err := s.SaveChapterNow(context.Background(), 1); err == nil {
		t.Fatal("expected save error")
	}
	if !s.State(context.Background()).Dirty[1] {
		t.Fatal("dirty flag cleared despite failed save")
	}

	fg.mu.Lock()
	fg.saveErr = nil
	fg.mu.Unlock()
	if err := s.SaveChapterNow(context.Background(), 1); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if s.State(context.Background()).Dirty[1] {
		t.Fatal("dirty flag still set after successful save")
	}
}

func TestSelectChapterFlushesOutgoingEdit(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One", "Two")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")
	baseline := fg.saveCount()

	raw, _ := doc.Marshal(doc.FromPlainText("unsaved words"))
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}
	if _, err := s.SelectChapter(context.Background(), 2); err != nil {
		t.Fatalf("SelectChapter: %v", err)
	}

	if got := fg.saveCount() - baseline; got != 1 {
		t.Errorf("saves = %d, want 1 flush before switching", got)
	}
	if got := s.State(context.Background()).ActiveChapterID; got != 2 {
		t.Errorf("active = %d, want 2", got)
	}
	root, err := fg.LoadChapter("proj_test", 1)
	if err != nil {
		t.Fatalf("LoadChapter: %v", err)
	}
	if doc.PlainText(root) != "unsaved words" {
		t.Errorf("flushed content = %q", doc.PlainText(root))
	}
}

func TestReorderChaptersPersistsNewOrder(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One", "Two", "Three")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	chapters, err := s.ReorderChapters(context.Background(), ReorderInput{DraggedID: 3, TargetID: 1, Position: DropBefore})
	if err != nil {
		t.Fatalf("ReorderChapters: %v", err)
	}
	got := []int{chapters[0].ChapterID, chapters[1].ChapterID, chapters[2].ChapterID}
	want := []int{3, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
	if len(fs.orders) != 1 {
		t.Errorf("persisted orders = %d, want 1", len(fs.orders))
	}
}

func TestReorderInvalidPairIsSilentNoOp(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One", "Two")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	if _, err := s.ReorderChapters(context.Background(), ReorderInput{DraggedID: 9, TargetID: 1, Position: DropAfter}); err != nil {
		t.Fatalf("invalid drag should not error: %v", err)
	}
	if len(fs.orders) != 0 {
		t.Errorf("order persisted for a no-op drag")
	}
}

func TestImportChaptersSplitsMarkdownSections(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	content := "The Storm\nWind howled all night.\n***\nThe Calm\nMorning came quietly."
	imported, err := s.ImportChapters(context.Background(), ImportChaptersInput{
		Files:            []ImportFileInput{{Filename: "part-two.md", Content: content}},
		Delimiter:        "***",
		FirstLineAsTitle: true,
	})
	if err != nil {
		t.Fatalf("ImportChapters: %v", err)
	}
	if len(imported) != 2 {
		t.Fatalf("imported = %d chapters, want 2", len(imported))
	}
	if imported[0].Title != "The Storm" || imported[1].Title != "The Calm" {
		t.Errorf("titles = %q, %q", imported[0].Title, imported[1].Title)
	}
	if imported[0].ChapterID != 2 || imported[1].ChapterID != 3 {
		t.Errorf("ids = %d, %d, want 2, 3", imported[0].ChapterID, imported[1].ChapterID)
	}
}

func TestImportChaptersRejectsUnknownExtension(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	_, err := s.ImportChapters(context.Background(), ImportChaptersInput{
		Files: []ImportFileInput{{Filename: "novel.docx", Content: "x"}},
	})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "UNSUPPORTED_FILE" {
		t.Fatalf("err = %v, want UNSUPPORTED_FILE", err)
	}
}

func TestUpdateStyleAndReset(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	size := 18.0
	sheet, err := s.UpdateStyle(context.Background(), UpdateStyleInput{
		Key:        styles.KeyParagraph,
		Definition: styles.Definition{FontSize: &size},
	})
	if err != nil {
		t.Fatalf("UpdateStyle: %v", err)
	}
	if got := sheet[styles.KeyParagraph].FontSize; got == nil || *got != 18 {
		t.Fatalf("paragraph font size = %v, want 18", got)
	}

	sheet, err = s.ResetStyle(context.Background(), styles.KeyParagraph)
	if err != nil {
		t.Fatalf("ResetStyle: %v", err)
	}
	if got := sheet[styles.KeyParagraph].FontSize; got == nil || *got != 12 {
		t.Fatalf("paragraph font size after reset = %v, want builtin 12", got)
	}
}

func TestUpdateStyleUnknownKeyFails(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	_, err := s.UpdateStyle(context.Background(), UpdateStyleInput{Key: "h1"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "INVALID_STYLE_KEY" {
		t.Fatalf("err = %v, want INVALID_STYLE_KEY", err)
	}
}

func TestUpdatePageSettingsValidates(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	bad := page.Defaults()
	bad.MarginTop = -1
	if _, err := s.UpdatePageSettings(context.Background(), bad); err == nil {
		t.Fatal("negative margin accepted")
	}

	good := page.Defaults()
	good.PaperSize = "a4"
	geometry, err := s.UpdatePageSettings(context.Background(), good)
	if err != nil {
		t.Fatalf("UpdatePageSettings: %v", err)
	}
	if geometry.PageWidth == 0 {
		t.Error("geometry not resolved")
	}
	settings, err := s.PageSettings(context.Background())
	if err != nil {
		t.Fatalf("PageSettings: %v", err)
	}
	if settings.PaperSize != "a4" {
		t.Errorf("paper = %q, want a4", settings.PaperSize)
	}
}

func TestAddLexiconWordDecoratesOccurrences(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	raw, _ := doc.Marshal(doc.FromPlainText("Aelric rode north"))
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}
	decorations, err := s.Decorations(context.Background(), 1)
	if err != nil {
		t.Fatalf("Decorations: %v", err)
	}
	if len(decorations) != 0 {
		t.Fatalf("decorations = %d against an empty dictionary, want 0", len(decorations))
	}

	if err := s.AddLexiconWord(context.Background(), LexiconWordInput{Word: "Aelric", Scope: "project"}); err != nil {
		t.Fatalf("AddLexiconWord: %v", err)
	}
	decorations, err = s.Decorations(context.Background(), 1)
	if err != nil {
		t.Fatalf("Decorations: %v", err)
	}
	if len(decorations) != 1 || decorations[0].Word != "Aelric" {
		t.Fatalf("decorations = %+v, want the dictionary term highlighted once", decorations)
	}
}

func TestExportFlushesPendingEdits(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")
	baseline := fg.saveCount()

	raw, _ := doc.Marshal(doc.FromPlainText("about to export"))
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}
	result, err := s.Export(context.Background(), export.Request{Format: export.FormatHTML})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if result.Filename == "" {
		t.Error("empty export result")
	}
	if got := fg.saveCount() - baseline; got != 1 {
		t.Errorf("saves before export = %d, want 1", got)
	}
	if s.State(context.Background()).Dirty[1] {
		t.Error("dirty after export flush")
	}
}

func TestCloseProjectPersistsActiveChapter(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One", "Two")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	if _, err := s.SelectChapter(context.Background(), 2); err != nil {
		t.Fatalf("SelectChapter: %v", err)
	}
	if err := s.CloseProject(context.Background()); err != nil {
		t.Fatalf("CloseProject: %v", err)
	}

	project, _ := fs.GetProject(context.Background(), "proj_test")
	if project.ActiveChapterID == nil || *project.ActiveChapterID != 2 {
		t.Errorf("persisted active = %v, want 2", project.ActiveChapterID)
	}
	if s.State(context.Background()).Project != nil {
		t.Error("session survived close")
	}
}

func TestUpdateFontScopes(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	if err := s.UpdateFont(context.Background(), UpdateFontInput{FontFamily: "Georgia", Scope: "app"}); err != nil {
		t.Fatalf("app font: %v", err)
	}
	if fs.appConfig.FontFamily != "Georgia" {
		t.Errorf("app font = %q", fs.appConfig.FontFamily)
	}

	if err := s.UpdateFont(context.Background(), UpdateFontInput{FontFamily: "Garamond", Scope: "project"}); err != nil {
		t.Fatalf("project font: %v", err)
	}
	project, _ := fs.GetProject(context.Background(), "proj_test")
	if project.FontFamily != "Garamond" {
		t.Errorf("project font = %q", project.FontFamily)
	}

	if err := s.UpdateFont(context.Background(), UpdateFontInput{FontFamily: "X", Scope: "galaxy"}); err == nil {
		t.Fatal("unknown scope accepted")
	}
}

func TestExportDirFallsBackToProjectParent(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	dir, err := s.ExportDir(context.Background())
	if err != nil {
		t.Fatalf("ExportDir: %v", err)
	}
	if dir != "/home/ink" {
		t.Errorf("dir = %q, want parent of project path", dir)
	}

	if err := s.UpdateExportDir(context.Background(), UpdateExportDirInput{ExportDir: "/mnt/manuscripts"}); err != nil {
		t.Fatalf("UpdateExportDir: %v", err)
	}
	dir, _ = s.ExportDir(context.Background())
	if dir != "/mnt/manuscripts" {
		t.Errorf("dir = %q after update", dir)
	}
}

func TestSubscribeReceivesDirtyEvents(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	events, cancel := s.Subscribe()
	defer cancel()

	raw, _ := doc.Marshal(doc.FromPlainText("draft"))
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case e := <-events:
			if e.Type == EventDirtyChanged && e.ChapterID == 1 && e.Dirty {
				return
			}
		case <-deadline:
			t.Fatal("no dirty event published")
		}
	}
}

func TestStyleFromCollapsedCursorExpandsToBlock(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	root := doc.Node{Type: doc.TypeDoc, Content: []doc.Node{
		{Type: doc.TypeParagraph, Content: []doc.Node{
			{Type: doc.TypeText, Text: "brave words", Marks: []doc.Mark{{Type: doc.MarkBold}}},
		}},
	}}
	raw, _ := doc.Marshal(root)
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}

	// A zero-width range inside the paragraph adopts the whole block.
	sheet, err := s.StyleFromSelection(context.Background(), StyleFromSelectionInput{Key: "paragraph", From: 3, To: 3})
	if err != nil {
		t.Fatalf("StyleFromSelection: %v", err)
	}
	p := sheet["paragraph"]
	if p.Bold == nil || !*p.Bold {
		t.Errorf("paragraph bold = %v, want adopted true", p.Bold)
	}

	// A cursor past the document is an empty selection.
	_, err = s.StyleFromSelection(context.Background(), StyleFromSelectionInput{Key: "paragraph", From: 99, To: 99})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "EMPTY_SELECTION" {
		t.Fatalf("err = %v, want EMPTY_SELECTION", err)
	}
}

func TestCloseProjectFlushesDirtyChapterAfterFailedAutosave(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")
	baseline := fg.attemptCount()

	fg.setSaveErr(errors.New("repo unavailable"))
	raw, _ := doc.Marshal(doc.FromPlainText("rescued words"))
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}

	// Let the debounced save fire and fail; the chapter stays dirty with
	// no pending timer.
	deadline := time.Now().Add(2 * time.Second)
	for fg.attemptCount() == baseline {
		if time.Now().After(deadline) {
			t.Fatal("autosave never attempted")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !s.State(context.Background()).Dirty[1] {
		t.Fatal("dirty flag cleared despite failed save")
	}

	fg.setSaveErr(nil)
	if err := s.CloseProject(context.Background()); err != nil {
		t.Fatalf("CloseProject: %v", err)
	}

	root, err := fg.LoadChapter("proj_test", 1)
	if err != nil {
		t.Fatalf("LoadChapter: %v", err)
	}
	if got := doc.PlainText(root); got != "rescued words" {
		t.Fatalf("persisted content = %q, want the unsaved edit", got)
	}
}

func TestCloseProjectReturnsErrorWhenFlushStillFails(t *testing.T) {
	fs, fg := newFakeStore(), newFakeGit()
	seedProject(t, fs, fg, "One")
	s := newTestService(fs, fg)
	openTestProject(t, s, "/home/ink/winter")

	fg.setSaveErr(errors.New("repo unavailable"))
	raw, _ := doc.Marshal(doc.FromPlainText("still stuck"))
	if err := s.UpdateChapterContent(context.Background(), 1, UpdateContentInput{Content: raw}); err != nil {
		t.Fatalf("UpdateChapterContent: %v", err)
	}

	if err := s.CloseProject(context.Background()); err == nil {
		t.Fatal("expected close to surface the flush error")
	}
	// The session survives so the edit can still be saved.
	if !s.State(context.Background()).Dirty[1] {
		t.Fatal("dirty flag lost after failed close")
	}
}
