package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"inkwell/api/internal/config"
	"inkwell/api/internal/doc"
	"inkwell/api/internal/export"
	"inkwell/api/internal/gitrepo"
	"inkwell/api/internal/lexicon"
	"inkwell/api/internal/page"
	"inkwell/api/internal/search"
	"inkwell/api/internal/spellcheck"
	"inkwell/api/internal/store"
	"inkwell/api/internal/styles"
	"inkwell/api/internal/util"
)

type CreateProjectInput struct {
	Path   string `json:"path"`
	Title  string `json:"title"`
	Author string `json:"author"`
}

type OpenProjectInput struct {
	Path string `json:"path"`
}

type UpdateMetadataInput struct {
	Title  *string `json:"title"`
	Author *string `json:"author"`
}

type AddChapterInput struct {
	Title string `json:"title"`
}

type RenameChapterInput struct {
	Title string `json:"title"`
}

type UpdateContentInput struct {
	Content json.RawMessage `json:"content"`
}

type ReorderInput struct {
	DraggedID int          `json:"draggedId"`
	TargetID  int          `json:"targetId"`
	Position  DropPosition `json:"position"`
}

type UpdateStyleInput struct {
	Key        string            `json:"key"`
	Definition styles.Definition `json:"definition"`
}

type StyleFromSelectionInput struct {
	Key  string `json:"key"`
	From int    `json:"from"`
	To   int    `json:"to"`
}

type ImportFileInput struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

type ImportChaptersInput struct {
	Files              []ImportFileInput `json:"files"`
	UseFilenameAsTitle bool              `json:"useFilenameAsTitle"`
	Delimiter          string            `json:"delimiter"`
	FirstLineAsTitle   bool              `json:"firstLineAsTitle"`
}

type UpdateFontInput struct {
	FontFamily string `json:"fontFamily"`
	Scope      string `json:"scope"`
}

type UpdateExportDirInput struct {
	ExportDir string `json:"exportDir"`
}

type LexiconWordInput struct {
	Word  string `json:"word"`
	Scope string `json:"scope"`
}

var allowedFontScopes = map[string]struct{}{
	"app":     {},
	"project": {},
}

var allowedWordScopes = map[string]struct{}{
	"global":  {},
	"project": {},
}

// ProjectState is the full session snapshot the editing surface renders
// from. Transitions are computed before publication, so a snapshot never
// shows a half-applied change.
type ProjectState struct {
	Project         *store.Project  `json:"project"`
	Chapters        []store.Chapter `json:"chapters"`
	ActiveChapterID int             `json:"activeChapterId"`
	ActiveContent   json.RawMessage `json:"activeContent,omitempty"`
	Dirty           map[int]bool    `json:"dirty"`
	Styles          styles.Sheet    `json:"styles"`
	PageSettings    page.Settings   `json:"pageSettings"`
}

type metadataStore interface {
	GetAppConfig(context.Context) (store.AppConfig, error)
	SetLastProjectPath(context.Context, string) error
	SetAppFontFamily(context.Context, string) error
	CreateProject(context.Context, store.Project) (store.Project, error)
	GetProject(context.Context, string) (store.Project, error)
	GetProjectByPath(context.Context, string) (store.Project, error)
	ListProjects(context.Context) ([]store.Project, error)
	SaveProjectMetadata(context.Context, string, store.ProjectPatch) error
	ClearActiveChapter(context.Context, string) error
	DeleteProject(context.Context, string) error
	ListChapters(context.Context, string) ([]store.Chapter, error)
	NextChapterID(context.Context, string) (int, error)
	InsertChapter(context.Context, store.Chapter) error
	RenameChapter(context.Context, string, int, string) error
	DeleteChapter(context.Context, string, int) error
	SaveChapterOrder(context.Context, string, []int) error
	UpsertChapterText(context.Context, store.ChapterText) error
	Ping(ctx context.Context) error
}

type contentStore interface {
	EnsureProjectRepo(projectID, author string) error
	SaveChapter(projectID string, chapterID int, root doc.Node, author, message string) (store.CommitInfo, error)
	LoadChapter(projectID string, chapterID int) (doc.Node, error)
	LoadChapterAt(projectID string, chapterID int, hash string) (doc.Node, error)
	DeleteChapter(projectID string, chapterID int, author string) error
	History(projectID string, limit int) ([]store.CommitInfo, error)
	DeleteProjectRepo(projectID string) error
}

type lexiconStore interface {
	AddGlobalWord(context.Context, string) error
	AddProjectWord(context.Context, string, string) error
	RemoveGlobalWord(context.Context, string) error
	RemoveProjectWord(context.Context, string, string) error
	GlobalWords(context.Context) ([]string, error)
	ProjectWords(context.Context, string) ([]string, error)
	MergedWords(context.Context, string) ([]string, error)
	DeleteProjectWords(context.Context, string) error
	Ping(context.Context) error
}

type searchIndex interface {
	Search(search.Query) search.Response
	IndexChapter(search.ChapterRecord)
	DeleteChapter(projectID string, chapterID int)
}

type exporter interface {
	Export(context.Context, export.Request) (*export.Result, error)
}

type assetStore interface {
	Put(ctx context.Context, projectID, filename, contentType string, r io.Reader, size int64) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	DeleteProject(ctx context.Context, projectID string) error
}

type session struct {
	project  store.Project
	chapters []store.Chapter
	active   int
	docs     map[int]doc.Node
	versions map[int]int64
	dirty    map[int]bool
}

type Service struct {
	cfg    config.Config
	store  metadataStore
	git    contentStore
	lex    lexiconStore
	search searchIndex
	export exporter
	assets assetStore
	spell  *spellcheck.Engine
	saver  *autosaver
	events *eventBus

	mu      sync.Mutex
	session *session
}

func New(cfg config.Config, dataStore *store.PostgresStore, gitService *gitrepo.Service, lexStore *lexicon.RedisStore, searchService *search.Service, exportService *export.Service) *Service {
	s := &Service{
		cfg:    cfg,
		store:  dataStore,
		git:    gitService,
		lex:    lexStore,
		search: searchService,
		export: exportService,
		spell:  spellcheck.NewEngine(spellcheck.NewSet()),
		events: newEventBus(),
	}
	s.saver = newAutosaver(cfg.AutosaveDelay, s.saveChapter)
	return s
}

// SetAssets wires the optional object store for image assets. Without it
// asset endpoints report unavailable.
func (s *Service) SetAssets(assets assetStore) {
	s.assets = assets
}

// UploadAsset stores an image under the open project and returns its key
// plus a presigned URL the editing surface can embed.
func (s *Service) UploadAsset(ctx context.Context, filename, contentType string, r io.Reader, size int64) (map[string]string, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if s.assets == nil {
		return nil, domainError(http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Asset storage is not configured", nil)
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domainError(http.StatusBadRequest, "INVALID_FILENAME", "Filename is required", nil)
	}

	key, err := s.assets.Put(ctx, projectID, filename, contentType, r, size)
	if err != nil {
		return nil, err
	}
	url, err := s.assets.PresignedURL(ctx, key, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	return map[string]string{"key": key, "url": url}, nil
}

// AssetURL returns a fresh presigned URL for an existing asset.
func (s *Service) AssetURL(ctx context.Context, key string) (string, error) {
	if _, err := s.requireSession(); err != nil {
		return "", err
	}
	if s.assets == nil {
		return "", domainError(http.StatusServiceUnavailable, "ASSETS_UNAVAILABLE", "Asset storage is not configured", nil)
	}
	if strings.TrimSpace(key) == "" {
		return "", domainError(http.StatusBadRequest, "INVALID_KEY", "Asset key is required", nil)
	}
	return s.assets.PresignedURL(ctx, key, 24*time.Hour)
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingLexicon(ctx context.Context) error {
	return s.lex.Ping(ctx)
}

// Subscribe exposes session change events for the push channel.
func (s *Service) Subscribe() (<-chan Event, func()) {
	return s.events.Subscribe()
}

// requireSession returns the open project's id, or the error every
// project-scoped operation shares when nothing is open.
func (s *Service) requireSession() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return "", domainError(http.StatusConflict, "NO_PROJECT", "No project is open", nil)
	}
	return s.session.project.ID, nil
}

// withSession runs fn on the open session under the lock.
func (s *Service) withSession(fn func(*session)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return domainError(http.StatusConflict, "NO_PROJECT", "No project is open", nil)
	}
	fn(s.session)
	return nil
}

func projectStyles(p store.Project) styles.Sheet {
	sheet := styles.Sheet{}
	if len(p.Styles) > 0 {
		if err := json.Unmarshal(p.Styles, &sheet); err != nil {
			log.Printf("app: project %s styles unreadable, using defaults: %v", p.ID, err)
			sheet = styles.Sheet{}
		}
	}
	return sheet
}

func projectPage(p store.Project) page.Settings {
	settings := page.Defaults()
	if len(p.PageSettings) > 0 {
		if err := json.Unmarshal(p.PageSettings, &settings); err != nil {
			log.Printf("app: project %s page settings unreadable, using defaults: %v", p.ID, err)
			settings = page.Defaults()
		}
	}
	return settings
}

// State snapshots the open session. With no project open it returns an
// empty state rather than an error, so the launcher screen can render.
func (s *Service) State(ctx context.Context) ProjectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return ProjectState{Dirty: map[int]bool{}, Styles: styles.Resolve(nil), PageSettings: page.Defaults()}
	}

	sess := s.session
	project := sess.project
	state := ProjectState{
		Project:         &project,
		Chapters:        append([]store.Chapter(nil), sess.chapters...),
		ActiveChapterID: sess.active,
		Dirty:           map[int]bool{},
		Styles:          styles.Resolve(projectStyles(project)),
		PageSettings:    projectPage(project),
	}
	for id, dirty := range sess.dirty {
		if dirty {
			state.Dirty[id] = true
		}
	}
	if root, ok := sess.docs[sess.active]; ok {
		if raw, err := doc.Marshal(root); err == nil {
			state.ActiveContent = raw
		}
	}
	return state
}

func (s *Service) ListProjects(ctx context.Context) ([]store.Project, error) {
	return s.store.ListProjects(ctx)
}

// CreateProject provisions the metadata row and the content repository,
// seeds the first chapter, and opens the new project.
func (s *Service) CreateProject(ctx context.Context, input CreateProjectInput) (ProjectState, error) {
	title := strings.TrimSpace(input.Title)
	path := strings.TrimSpace(input.Path)
	if title == "" {
		return ProjectState{}, domainError(http.StatusBadRequest, "INVALID_TITLE", "Project title is required", nil)
	}
	if path == "" {
		return ProjectState{}, domainError(http.StatusBadRequest, "INVALID_PATH", "Project path is required", nil)
	}

	project, err := s.store.CreateProject(ctx, store.Project{
		ID:     util.NewID("proj"),
		Path:   path,
		Title:  title,
		Author: strings.TrimSpace(input.Author),
	})
	if err != nil {
		return ProjectState{}, err
	}
	if err := s.git.EnsureProjectRepo(project.ID, project.Author); err != nil {
		return ProjectState{}, err
	}

	first := store.Chapter{ProjectID: project.ID, ChapterID: 1, Title: "Chapter 1"}
	if err := s.store.InsertChapter(ctx, first); err != nil {
		return ProjectState{}, err
	}
	if _, err := s.git.SaveChapter(project.ID, first.ChapterID, doc.Empty(), project.Author, "Add Chapter 1"); err != nil {
		return ProjectState{}, err
	}

	return s.openLoaded(ctx, project)
}

// OpenProject loads a project by its filesystem path and makes it the
// active session, flushing whatever was open before.
func (s *Service) OpenProject(ctx context.Context, input OpenProjectInput) (ProjectState, error) {
	path := strings.TrimSpace(input.Path)
	if path == "" {
		return ProjectState{}, domainError(http.StatusBadRequest, "INVALID_PATH", "Project path is required", nil)
	}
	project, err := s.store.GetProjectByPath(ctx, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ProjectState{}, domainError(http.StatusNotFound, "PROJECT_NOT_FOUND", "No project at that path", nil)
		}
		return ProjectState{}, err
	}
	return s.openLoaded(ctx, project)
}

// OpenLastProject reopens the project recorded on the previous close.
func (s *Service) OpenLastProject(ctx context.Context) (ProjectState, error) {
	cfg, err := s.store.GetAppConfig(ctx)
	if err != nil {
		return ProjectState{}, err
	}
	if cfg.LastProjectPath == "" {
		return ProjectState{}, domainError(http.StatusNotFound, "NO_LAST_PROJECT", "No previously opened project", nil)
	}
	return s.OpenProject(ctx, OpenProjectInput{Path: cfg.LastProjectPath})
}

func (s *Service) openLoaded(ctx context.Context, project store.Project) (ProjectState, error) {
	if err := s.CloseProject(ctx); err != nil {
		return ProjectState{}, err
	}
	if err := s.git.EnsureProjectRepo(project.ID, project.Author); err != nil {
		return ProjectState{}, err
	}

	chapters, err := s.store.ListChapters(ctx, project.ID)
	if err != nil {
		return ProjectState{}, err
	}

	active := 0
	if project.ActiveChapterID != nil {
		for _, c := range chapters {
			if c.ChapterID == *project.ActiveChapterID {
				active = c.ChapterID
			}
		}
	}
	if active == 0 && len(chapters) > 0 {
		active = chapters[0].ChapterID
	}

	sess := &session{
		project:  project,
		chapters: chapters,
		active:   active,
		docs:     make(map[int]doc.Node),
		versions: make(map[int]int64),
		dirty:    make(map[int]bool),
	}
	if active != 0 {
		root, err := s.git.LoadChapter(project.ID, active)
		if err != nil {
			if !errors.Is(err, gitrepo.ErrChapterNotFound) {
				return ProjectState{}, err
			}
			root = doc.Empty()
		}
		sess.docs[active] = root
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	if err := s.store.SetLastProjectPath(ctx, project.Path); err != nil {
		log.Printf("app: record last project path: %v", err)
	}
	s.refreshLexicon(ctx, project.ID)

	s.events.Publish(Event{Type: EventProjectChanged, ProjectID: project.ID})
	return s.State(ctx), nil
}

// CloseProject flushes pending saves and drops the session. Closing when
// nothing is open is a no-op.
func (s *Service) CloseProject(ctx context.Context) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()
	if sess == nil {
		return nil
	}

	if err := s.flushDirty(); err != nil {
		return err
	}

	active := sess.active
	patch := store.ProjectPatch{}
	if active != 0 {
		patch.ActiveChapterID = &active
	}
	if err := s.store.SaveProjectMetadata(ctx, sess.project.ID, patch); err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Printf("app: persist active chapter on close: %v", err)
	}

	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	s.spell.ReplaceSet(spellcheck.NewSet())
	s.events.Publish(Event{Type: EventProjectChanged})
	return nil
}

// DeleteProject removes a project's metadata, content repository, lexicon
// entries, and search records. The open session is closed first if it is
// the one being deleted.
func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	s.mu.Lock()
	open := s.session != nil && s.session.project.ID == projectID
	s.mu.Unlock()
	if open {
		if err := s.CloseProject(ctx); err != nil {
			return err
		}
	}

	chapters, err := s.store.ListChapters(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	if err := s.git.DeleteProjectRepo(projectID); err != nil {
		log.Printf("app: delete project repo %s: %v", projectID, err)
	}
	if err := s.lex.DeleteProjectWords(ctx, projectID); err != nil {
		log.Printf("app: delete project lexicon %s: %v", projectID, err)
	}
	for _, c := range chapters {
		s.search.DeleteChapter(projectID, c.ChapterID)
	}
	if s.assets != nil {
		if err := s.assets.DeleteProject(ctx, projectID); err != nil {
			log.Printf("app: delete project assets %s: %v", projectID, err)
		}
	}
	return nil
}

// SaveMetadata applies a partial project metadata update. Absent fields
// are never clobbered.
func (s *Service) SaveMetadata(ctx context.Context, input UpdateMetadataInput) (ProjectState, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return ProjectState{}, err
	}

	patch := store.ProjectPatch{Title: input.Title, Author: input.Author}
	if err := s.store.SaveProjectMetadata(ctx, projectID, patch); err != nil {
		return ProjectState{}, err
	}
	if err := s.reloadProject(ctx, projectID); err != nil {
		return ProjectState{}, err
	}
	s.events.Publish(Event{Type: EventProjectChanged, ProjectID: projectID})
	return s.State(ctx), nil
}

// reloadProject refreshes the cached project row after a metadata write.
func (s *Service) reloadProject(ctx context.Context, projectID string) error {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.project.ID == projectID {
		s.session.project = project
	}
	return nil
}

// AddChapter creates a chapter at the end of the order. Its id is one
// past the highest id the project has ever used; ids of deleted chapters
// are never reassigned.
func (s *Service) AddChapter(ctx context.Context, input AddChapterInput) (store.Chapter, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return store.Chapter{}, err
	}

	nextID, err := s.store.NextChapterID(ctx, projectID)
	if err != nil {
		return store.Chapter{}, err
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = fmt.Sprintf("Chapter %d", nextID)
	}
	s.mu.Lock()
	if s.session == nil {
		s.mu.Unlock()
		return store.Chapter{}, domainError(http.StatusConflict, "NO_PROJECT", "No project is open", nil)
	}
	used := usedTitles(s.session.chapters)
	author := s.session.project.Author
	s.mu.Unlock()
	title = MakeUniqueTitle(title, used)

	chapter := store.Chapter{ProjectID: projectID, ChapterID: nextID, Title: title}
	if err := s.store.InsertChapter(ctx, chapter); err != nil {
		return store.Chapter{}, err
	}
	if _, err := s.git.SaveChapter(projectID, nextID, doc.Empty(), author, "Add "+title); err != nil {
		return store.Chapter{}, err
	}

	if err := s.refreshChapters(ctx, projectID); err != nil {
		return store.Chapter{}, err
	}
	s.mu.Lock()
	if s.session != nil && s.session.project.ID == projectID {
		s.session.docs[nextID] = doc.Empty()
		s.session.active = nextID
	}
	s.mu.Unlock()

	s.events.Publish(Event{Type: EventChaptersChanged, ProjectID: projectID, ChapterID: nextID})
	return chapter, nil
}

func usedTitles(chapters []store.Chapter) map[string]bool {
	used := make(map[string]bool, len(chapters))
	for _, c := range chapters {
		used[strings.ToLower(c.Title)] = true
	}
	return used
}

func (s *Service) refreshChapters(ctx context.Context, projectID string) error {
	chapters, err := s.store.ListChapters(ctx, projectID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != nil && s.session.project.ID == projectID {
		s.session.chapters = chapters
	}
	return nil
}

// RenameChapter trims the new title. An empty result is a silent no-op,
// matching how the editing surface treats an abandoned rename.
func (s *Service) RenameChapter(ctx context.Context, chapterID int, input RenameChapterInput) error {
	projectID, err := s.requireSession()
	if err != nil {
		return err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil
	}

	if err := s.store.RenameChapter(ctx, projectID, chapterID, title); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domainError(http.StatusNotFound, "CHAPTER_NOT_FOUND", "Chapter does not exist", nil)
		}
		return err
	}
	if err := s.refreshChapters(ctx, projectID); err != nil {
		return err
	}
	s.mirrorChapterText(projectID, chapterID)
	s.events.Publish(Event{Type: EventChaptersChanged, ProjectID: projectID, ChapterID: chapterID})
	return nil
}

// DeleteChapter removes a chapter. If it was active, an adjacent chapter
// is activated before the content is discarded: the next in order, else
// the previous, else none. Deleting an id that is not present is a no-op.
func (s *Service) DeleteChapter(ctx context.Context, chapterID int) error {
	projectID, err := s.requireSession()
	if err != nil {
		return err
	}

	s.mu.Lock()
	sess := s.session
	if sess == nil {
		s.mu.Unlock()
		return nil
	}
	idx := -1
	for i, c := range sess.chapters {
		if c.ChapterID == chapterID {
			idx = i
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return nil
	}
	author := sess.project.Author
	nextActive := 0
	if sess.active == chapterID {
		if idx+1 < len(sess.chapters) {
			nextActive = sess.chapters[idx+1].ChapterID
		} else if idx > 0 {
			nextActive = sess.chapters[idx-1].ChapterID
		}
	} else {
		nextActive = sess.active
	}
	s.mu.Unlock()

	s.saver.Cancel(chapterID)

	if nextActive != 0 && nextActive != chapterID {
		if err := s.activateChapter(ctx, projectID, nextActive); err != nil {
			return err
		}
	}

	if err := s.store.DeleteChapter(ctx, projectID, chapterID); err != nil {
		return err
	}
	if err := s.git.DeleteChapter(projectID, chapterID, author); err != nil {
		return err
	}
	s.search.DeleteChapter(projectID, chapterID)
	s.spell.Forget(chapterID)

	if err := s.refreshChapters(ctx, projectID); err != nil {
		return err
	}
	s.mu.Lock()
	if s.session != nil && s.session.project.ID == projectID {
		delete(s.session.docs, chapterID)
		delete(s.session.versions, chapterID)
		delete(s.session.dirty, chapterID)
		if nextActive == 0 {
			s.session.active = 0
		}
	}
	s.mu.Unlock()
	if nextActive == 0 {
		if err := s.store.ClearActiveChapter(ctx, projectID); err != nil {
			log.Printf("app: clear active chapter: %v", err)
		}
	}

	s.events.Publish(Event{Type: EventChaptersChanged, ProjectID: projectID, ChapterID: chapterID})
	return nil
}

// SelectChapter flushes the outgoing chapter before the incoming one is
// loaded, so switching can never lose an unsaved edit.
func (s *Service) SelectChapter(ctx context.Context, chapterID int) (json.RawMessage, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	current := 0
	if s.session != nil {
		current = s.session.active
	}
	s.mu.Unlock()
	if current != 0 && current != chapterID {
		if err := s.saver.Flush(current); err != nil {
			return nil, err
		}
	}

	if err := s.activateChapter(ctx, projectID, chapterID); err != nil {
		return nil, err
	}

	root, err := s.chapterDoc(chapterID)
	if err != nil {
		return nil, err
	}
	raw, err := doc.Marshal(root)
	if err != nil {
		return nil, err
	}
	s.events.Publish(Event{Type: EventChaptersChanged, ProjectID: projectID, ChapterID: chapterID})
	return raw, nil
}

func (s *Service) activateChapter(ctx context.Context, projectID string, chapterID int) error {
	s.mu.Lock()
	sess := s.session
	if sess == nil {
		s.mu.Unlock()
		return domainError(http.StatusConflict, "NO_PROJECT", "No project is open", nil)
	}
	known := false
	for _, c := range sess.chapters {
		if c.ChapterID == chapterID {
			known = true
		}
	}
	_, loaded := sess.docs[chapterID]
	s.mu.Unlock()
	if !known {
		return domainError(http.StatusNotFound, "CHAPTER_NOT_FOUND", "Chapter does not exist", nil)
	}

	if !loaded {
		root, err := s.git.LoadChapter(projectID, chapterID)
		if err != nil {
			if !errors.Is(err, gitrepo.ErrChapterNotFound) {
				return err
			}
			root = doc.Empty()
		}
		s.mu.Lock()
		if s.session != nil && s.session.project.ID == projectID {
			if _, ok := s.session.docs[chapterID]; !ok {
				s.session.docs[chapterID] = root
			}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	if s.session != nil && s.session.project.ID == projectID {
		s.session.active = chapterID
	}
	s.mu.Unlock()

	active := chapterID
	if err := s.store.SaveProjectMetadata(ctx, projectID, store.ProjectPatch{ActiveChapterID: &active}); err != nil && !errors.Is(err, sql.ErrNoRows) {
		log.Printf("app: persist active chapter: %v", err)
	}
	return nil
}

// UpdateChapterContent replaces the in-memory tree for a chapter, marks
// it dirty, and arms the debounced save. Persistence failure later leaves
// the dirty flag set; the content is never lost from the session.
func (s *Service) UpdateChapterContent(ctx context.Context, chapterID int, input UpdateContentInput) error {
	projectID, err := s.requireSession()
	if err != nil {
		return err
	}

	root, err := doc.Parse(input.Content)
	if err != nil {
		return domainError(http.StatusBadRequest, "INVALID_CONTENT", "Content is not a valid document tree", err.Error())
	}
	if err := doc.Validate(root); err != nil {
		return domainError(http.StatusBadRequest, "INVALID_CONTENT", err.Error(), nil)
	}

	s.mu.Lock()
	sess := s.session
	if sess == nil {
		s.mu.Unlock()
		return domainError(http.StatusConflict, "NO_PROJECT", "No project is open", nil)
	}
	known := false
	for _, c := range sess.chapters {
		if c.ChapterID == chapterID {
			known = true
		}
	}
	if !known {
		s.mu.Unlock()
		return domainError(http.StatusNotFound, "CHAPTER_NOT_FOUND", "Chapter does not exist", nil)
	}
	sess.docs[chapterID] = root
	sess.versions[chapterID]++
	sess.dirty[chapterID] = true
	s.mu.Unlock()

	s.saver.Schedule(chapterID)
	s.events.Publish(Event{Type: EventDirtyChanged, ProjectID: projectID, ChapterID: chapterID, Dirty: true})
	return nil
}

// SaveChapterNow bypasses the debounce, for an explicit save action.
func (s *Service) SaveChapterNow(ctx context.Context, chapterID int) error {
	if _, err := s.requireSession(); err != nil {
		return err
	}
	return s.saver.Flush(chapterID)
}

// flushDirty synchronously saves every chapter still marked dirty. The
// dirty set is the worklist, not the pending timers: a chapter whose
// debounced save already fired and failed has no timer but still holds
// unsaved content, and close or export must not discard it.
func (s *Service) flushDirty() error {
	var ids []int
	s.mu.Lock()
	if s.session != nil {
		for id, dirty := range s.session.dirty {
			if dirty {
				ids = append(ids, id)
			}
		}
	}
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.saver.Flush(id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// saveChapter is the autosave callback. It commits the chapter tree,
// refreshes the text mirror and search index, and clears the dirty flag
// only when the commit succeeded and no newer edit arrived meanwhile.
func (s *Service) saveChapter(chapterID int) error {
	s.mu.Lock()
	sess := s.session
	if sess == nil || !sess.dirty[chapterID] {
		s.mu.Unlock()
		return nil
	}
	root := sess.docs[chapterID]
	version := sess.versions[chapterID]
	projectID := sess.project.ID
	author := sess.project.Author
	title := ""
	for _, c := range sess.chapters {
		if c.ChapterID == chapterID {
			title = c.Title
		}
	}
	s.mu.Unlock()

	if _, err := s.git.SaveChapter(projectID, chapterID, root, author, "Save "+title); err != nil {
		return err
	}

	body := doc.PlainText(root)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpsertChapterText(ctx, store.ChapterText{
		ProjectID: projectID,
		ChapterID: chapterID,
		Title:     title,
		Body:      body,
	}); err != nil {
		log.Printf("app: chapter %d text mirror: %v", chapterID, err)
	}
	s.search.IndexChapter(search.ChapterRecord{
		ID:        search.RecordID(projectID, chapterID),
		ProjectID: projectID,
		ChapterID: chapterID,
		Title:     title,
		Body:      body,
	})

	s.mu.Lock()
	if s.session != nil && s.session.project.ID == projectID && s.session.versions[chapterID] == version {
		delete(s.session.dirty, chapterID)
	}
	s.mu.Unlock()

	s.events.Publish(Event{Type: EventDirtyChanged, ProjectID: projectID, ChapterID: chapterID})
	return nil
}

// mirrorChapterText re-mirrors a chapter's searchable text after a
// metadata-only change such as a rename.
func (s *Service) mirrorChapterText(projectID string, chapterID int) {
	s.mu.Lock()
	sess := s.session
	title := ""
	root, loaded := doc.Node{}, false
	if sess != nil && sess.project.ID == projectID {
		for _, c := range sess.chapters {
			if c.ChapterID == chapterID {
				title = c.Title
			}
		}
		root, loaded = sess.docs[chapterID]
	}
	s.mu.Unlock()
	if !loaded {
		if fromGit, err := s.git.LoadChapter(projectID, chapterID); err == nil {
			root, loaded = fromGit, true
		}
	}
	if !loaded {
		return
	}

	body := doc.PlainText(root)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.UpsertChapterText(ctx, store.ChapterText{
		ProjectID: projectID, ChapterID: chapterID, Title: title, Body: body,
	}); err != nil {
		log.Printf("app: chapter %d text mirror: %v", chapterID, err)
	}
	s.search.IndexChapter(search.ChapterRecord{
		ID:        search.RecordID(projectID, chapterID),
		ProjectID: projectID,
		ChapterID: chapterID,
		Title:     title,
		Body:      body,
	})
}

// ReorderChapters computes and persists a new order. Invalid drag pairs
// leave the order unchanged without error; rapid drag interaction is
// allowed to race chapter deletion.
func (s *Service) ReorderChapters(ctx context.Context, input ReorderInput) ([]store.Chapter, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}

	var order []int
	if err := s.withSession(func(sess *session) {
		for _, c := range sess.chapters {
			order = append(order, c.ChapterID)
		}
	}); err != nil {
		return nil, err
	}

	next := Reorder(order, input.DraggedID, input.TargetID, input.Position)
	changed := false
	for i := range next {
		if next[i] != order[i] {
			changed = true
		}
	}
	if changed {
		if err := s.store.SaveChapterOrder(ctx, projectID, next); err != nil {
			return nil, err
		}
		if err := s.refreshChapters(ctx, projectID); err != nil {
			return nil, err
		}
		s.events.Publish(Event{Type: EventChaptersChanged, ProjectID: projectID})
	}

	var chapters []store.Chapter
	if err := s.withSession(func(sess *session) {
		chapters = append(chapters, sess.chapters...)
	}); err != nil {
		return nil, err
	}
	return chapters, nil
}

// ImportChapters converts text and Markdown files into chapters. Files
// may be split into multiple sections on a delimiter line; titles come
// from the first section line, the filename, or the assigned id.
func (s *Service) ImportChapters(ctx context.Context, input ImportChaptersInput) ([]store.Chapter, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if len(input.Files) == 0 {
		return nil, domainError(http.StatusBadRequest, "NO_FILES", "No files to import", nil)
	}

	var (
		used   map[string]bool
		author string
	)
	if err := s.withSession(func(sess *session) {
		used = usedTitles(sess.chapters)
		author = sess.project.Author
	}); err != nil {
		return nil, err
	}

	var imported []store.Chapter
	for _, file := range input.Files {
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file.Filename), "."))
		if ext != "txt" && ext != "md" && ext != "markdown" {
			return nil, domainError(http.StatusBadRequest, "UNSUPPORTED_FILE", fmt.Sprintf("Cannot import %q: only .txt and .md files are supported", file.Filename), nil)
		}

		sections := doc.SplitSections(file.Content, input.Delimiter, input.FirstLineAsTitle)
		for _, section := range sections {
			nextID, err := s.store.NextChapterID(ctx, projectID)
			if err != nil {
				return nil, err
			}

			title := strings.TrimSpace(section.Title)
			if title == "" && input.UseFilenameAsTitle {
				base := filepath.Base(file.Filename)
				title = strings.TrimSuffix(base, filepath.Ext(base))
			}
			if title == "" {
				title = fmt.Sprintf("Chapter %d", nextID)
			}
			title = MakeUniqueTitle(title, used)
			used[strings.ToLower(title)] = true

			var root doc.Node
			if ext == "md" || ext == "markdown" {
				root = doc.FromMarkdown(section.Body)
			} else {
				root = doc.FromPlainText(section.Body)
			}

			chapter := store.Chapter{ProjectID: projectID, ChapterID: nextID, Title: title}
			if err := s.store.InsertChapter(ctx, chapter); err != nil {
				return nil, err
			}
			if _, err := s.git.SaveChapter(projectID, nextID, root, author, "Import "+title); err != nil {
				return nil, err
			}

			s.mu.Lock()
			if s.session != nil && s.session.project.ID == projectID {
				s.session.docs[nextID] = root
			}
			s.mu.Unlock()
			s.mirrorChapterText(projectID, nextID)
			imported = append(imported, chapter)
		}
	}

	if err := s.refreshChapters(ctx, projectID); err != nil {
		return nil, err
	}
	s.events.Publish(Event{Type: EventChaptersChanged, ProjectID: projectID})
	return imported, nil
}

// Styles returns the project's resolved style sheet plus the keys the
// project actually overrides, so the surface can flag customized blocks.
func (s *Service) Styles(ctx context.Context) (styles.Sheet, []string, error) {
	var overrides styles.Sheet
	if err := s.withSession(func(sess *session) {
		overrides = projectStyles(sess.project)
	}); err != nil {
		return nil, nil, err
	}
	return styles.Resolve(overrides), styles.OverrideKeys(overrides), nil
}

// UpdateStyle merges a partial definition into one style key and
// persists the project's override sheet.
func (s *Service) UpdateStyle(ctx context.Context, input UpdateStyleInput) (styles.Sheet, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}

	var overrides styles.Sheet
	if err := s.withSession(func(sess *session) {
		overrides = projectStyles(sess.project)
	}); err != nil {
		return nil, err
	}

	next, err := styles.Apply(overrides, input.Key, input.Definition)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_STYLE_KEY", err.Error(), nil)
	}
	if err := s.persistStyles(ctx, projectID, next); err != nil {
		return nil, err
	}
	return styles.Resolve(next), nil
}

// ResetStyle drops the overrides for one key, restoring its built-in
// definition.
func (s *Service) ResetStyle(ctx context.Context, key string) (styles.Sheet, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if _, err := styles.ResetKey(key); err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_STYLE_KEY", err.Error(), nil)
	}

	var overrides styles.Sheet
	if err := s.withSession(func(sess *session) {
		overrides = projectStyles(sess.project)
	}); err != nil {
		return nil, err
	}
	delete(overrides, key)

	if err := s.persistStyles(ctx, projectID, overrides); err != nil {
		return nil, err
	}
	return styles.Resolve(overrides), nil
}

// StyleFromSelection adopts formatting from the active chapter's selected
// range into a style key. Only fields unanimous across the selection are
// adopted; conflicting fields are dropped silently.
func (s *Service) StyleFromSelection(ctx context.Context, input StyleFromSelectionInput) (styles.Sheet, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	var (
		root      doc.Node
		ok        bool
		overrides styles.Sheet
	)
	if err := s.withSession(func(sess *session) {
		root, ok = sess.docs[sess.active]
		overrides = projectStyles(sess.project)
	}); err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainError(http.StatusConflict, "NO_ACTIVE_CHAPTER", "No chapter is active", nil)
	}

	from, to := input.From, input.To
	if to <= from {
		// A collapsed cursor expands to the block it sits in.
		blockFrom, blockTo, inside := doc.BlockSpan(root, from)
		if !inside {
			return nil, domainError(http.StatusBadRequest, "EMPTY_SELECTION", "Selection range is empty", nil)
		}
		from, to = blockFrom, blockTo
	}

	var selected []doc.Leaf
	for _, leaf := range doc.TextLeaves(root) {
		if leaf.To > from && leaf.From < to {
			selected = append(selected, leaf)
		}
	}
	adopted := styles.FromSelection(selected)

	next, err := styles.Apply(overrides, input.Key, adopted)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "INVALID_STYLE_KEY", err.Error(), nil)
	}
	if err := s.persistStyles(ctx, projectID, next); err != nil {
		return nil, err
	}
	return styles.Resolve(next), nil
}

func (s *Service) persistStyles(ctx context.Context, projectID string, overrides styles.Sheet) error {
	raw, err := json.Marshal(overrides)
	if err != nil {
		return err
	}
	if err := s.store.SaveProjectMetadata(ctx, projectID, store.ProjectPatch{Styles: raw}); err != nil {
		return err
	}
	if err := s.reloadProject(ctx, projectID); err != nil {
		return err
	}
	s.events.Publish(Event{Type: EventStylesChanged, ProjectID: projectID})
	return nil
}

// PageSettings returns the project's page settings with defaults filled.
func (s *Service) PageSettings(ctx context.Context) (page.Settings, error) {
	var settings page.Settings
	if err := s.withSession(func(sess *session) {
		settings = projectPage(sess.project)
	}); err != nil {
		return page.Settings{}, err
	}
	return settings, nil
}

// UpdatePageSettings validates and persists the full page configuration:
// paper size, margins, page numbering, and paragraph options.
func (s *Service) UpdatePageSettings(ctx context.Context, settings page.Settings) (page.Geometry, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return page.Geometry{}, err
	}
	if err := page.Validate(settings); err != nil {
		return page.Geometry{}, domainError(http.StatusBadRequest, "INVALID_PAGE_SETTINGS", err.Error(), nil)
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return page.Geometry{}, err
	}
	if err := s.store.SaveProjectMetadata(ctx, projectID, store.ProjectPatch{PageSettings: raw}); err != nil {
		return page.Geometry{}, err
	}
	if err := s.reloadProject(ctx, projectID); err != nil {
		return page.Geometry{}, err
	}
	s.events.Publish(Event{Type: EventPageSettingsChanged, ProjectID: projectID})
	return page.Resolve(settings), nil
}

// PageEstimate reports the chapter's word count and estimated page count.
func (s *Service) PageEstimate(ctx context.Context, chapterID int) (map[string]int, error) {
	if _, err := s.requireSession(); err != nil {
		return nil, err
	}
	root, err := s.chapterDoc(chapterID)
	if err != nil {
		return nil, err
	}
	words := doc.WordCount(root)
	return map[string]int{"words": words, "pages": page.EstimatePages(words)}, nil
}

// Decorations returns the spans where a chapter mentions lexicon words,
// which the editing surface excludes from spellcheck. Results are cached
// per chapter and recomputed only when the content version moves or the
// lexicon changes.
func (s *Service) Decorations(ctx context.Context, chapterID int) ([]spellcheck.Decoration, error) {
	if _, err := s.requireSession(); err != nil {
		return nil, err
	}
	root, err := s.chapterDoc(chapterID)
	if err != nil {
		return nil, err
	}
	var version int64
	if err := s.withSession(func(sess *session) {
		version = sess.versions[chapterID]
	}); err != nil {
		return nil, err
	}
	return s.spell.Apply(chapterID, root, version), nil
}

func (s *Service) chapterDoc(chapterID int) (doc.Node, error) {
	s.mu.Lock()
	sess := s.session
	if sess == nil {
		s.mu.Unlock()
		return doc.Node{}, domainError(http.StatusConflict, "NO_PROJECT", "No project is open", nil)
	}
	root, loaded := sess.docs[chapterID]
	projectID := sess.project.ID
	s.mu.Unlock()
	if loaded {
		return root, nil
	}

	root, err := s.git.LoadChapter(projectID, chapterID)
	if err != nil {
		if errors.Is(err, gitrepo.ErrChapterNotFound) {
			return doc.Node{}, domainError(http.StatusNotFound, "CHAPTER_NOT_FOUND", "Chapter does not exist", nil)
		}
		return doc.Node{}, err
	}
	s.mu.Lock()
	if s.session != nil && s.session.project.ID == projectID {
		s.session.docs[chapterID] = root
	}
	s.mu.Unlock()
	return root, nil
}

// AddLexiconWord adds a word to the author's dictionary, globally or for
// the open project. The decoration engine picks the word up without a
// reload.
func (s *Service) AddLexiconWord(ctx context.Context, input LexiconWordInput) error {
	projectID, err := s.requireSession()
	if err != nil {
		return err
	}
	word := strings.TrimSpace(input.Word)
	if word == "" {
		return domainError(http.StatusBadRequest, "INVALID_WORD", "Word is required", nil)
	}
	if _, ok := allowedWordScopes[input.Scope]; !ok {
		return domainError(http.StatusBadRequest, "INVALID_SCOPE", "Scope must be global or project", nil)
	}

	if input.Scope == "global" {
		err = s.lex.AddGlobalWord(ctx, word)
	} else {
		err = s.lex.AddProjectWord(ctx, projectID, word)
	}
	if err != nil {
		return err
	}

	s.spell.AddWord(word)
	s.events.Publish(Event{Type: EventLexiconChanged, ProjectID: projectID})
	return nil
}

// RemoveLexiconWord drops a word from the author's dictionary.
func (s *Service) RemoveLexiconWord(ctx context.Context, input LexiconWordInput) error {
	projectID, err := s.requireSession()
	if err != nil {
		return err
	}
	word := strings.TrimSpace(input.Word)
	if word == "" {
		return domainError(http.StatusBadRequest, "INVALID_WORD", "Word is required", nil)
	}
	if _, ok := allowedWordScopes[input.Scope]; !ok {
		return domainError(http.StatusBadRequest, "INVALID_SCOPE", "Scope must be global or project", nil)
	}

	if input.Scope == "global" {
		err = s.lex.RemoveGlobalWord(ctx, word)
	} else {
		err = s.lex.RemoveProjectWord(ctx, projectID, word)
	}
	if err != nil {
		return err
	}

	s.refreshLexicon(ctx, projectID)
	s.events.Publish(Event{Type: EventLexiconChanged, ProjectID: projectID})
	return nil
}

// LexiconWords lists exemptions by scope.
func (s *Service) LexiconWords(ctx context.Context) (map[string][]string, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	global, err := s.lex.GlobalWords(ctx)
	if err != nil {
		return nil, err
	}
	project, err := s.lex.ProjectWords(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return map[string][]string{"global": global, "project": project}, nil
}

// refreshLexicon rebuilds the decoration term set from the merged global
// and project word lists.
func (s *Service) refreshLexicon(ctx context.Context, projectID string) {
	words, err := s.lex.MergedWords(ctx, projectID)
	if err != nil {
		log.Printf("app: load lexicon for %s: %v", projectID, err)
		return
	}
	s.spell.ReplaceSet(spellcheck.NewSet(words))
}

// SearchChapters queries the open project's chapters.
func (s *Service) SearchChapters(ctx context.Context, text string, limit, offset int) (search.Response, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return search.Response{}, err
	}
	if strings.TrimSpace(text) == "" {
		return search.Response{Results: []search.Result{}}, nil
	}
	return s.search.Search(search.Query{
		Text:      text,
		ProjectID: projectID,
		Limit:     limit,
		Offset:    offset,
	}), nil
}

// Export flushes pending saves and renders the manuscript.
func (s *Service) Export(ctx context.Context, req export.Request) (*export.Result, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if err := s.flushDirty(); err != nil {
		return nil, err
	}
	req.ProjectID = projectID
	result, err := s.export.Export(ctx, req)
	if err != nil {
		if errors.Is(err, export.ErrPDFDependencyMissing) {
			return nil, domainError(http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF rendering is not available on this host", nil)
		}
		return nil, err
	}
	return result, nil
}

// History lists the project's save commits, newest first.
func (s *Service) History(ctx context.Context, limit int) ([]store.CommitInfo, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.git.History(projectID, limit)
}

// ChapterRevision loads a chapter's content as of one commit.
func (s *Service) ChapterRevision(ctx context.Context, chapterID int, hash string) (json.RawMessage, error) {
	projectID, err := s.requireSession()
	if err != nil {
		return nil, err
	}
	root, err := s.git.LoadChapterAt(projectID, chapterID, hash)
	if err != nil {
		if errors.Is(err, gitrepo.ErrChapterNotFound) {
			return nil, domainError(http.StatusNotFound, "CHAPTER_NOT_FOUND", "Chapter not present in that revision", nil)
		}
		return nil, err
	}
	return doc.Marshal(root)
}

// UpdateFont sets the writing font, app-wide or for the open project.
func (s *Service) UpdateFont(ctx context.Context, input UpdateFontInput) error {
	family := strings.TrimSpace(input.FontFamily)
	if family == "" {
		return domainError(http.StatusBadRequest, "INVALID_FONT", "Font family is required", nil)
	}
	if _, ok := allowedFontScopes[input.Scope]; !ok {
		return domainError(http.StatusBadRequest, "INVALID_SCOPE", "Scope must be app or project", nil)
	}

	if input.Scope == "app" {
		return s.store.SetAppFontFamily(ctx, family)
	}

	projectID, err := s.requireSession()
	if err != nil {
		return err
	}
	if err := s.store.SaveProjectMetadata(ctx, projectID, store.ProjectPatch{FontFamily: &family}); err != nil {
		return err
	}
	if err := s.reloadProject(ctx, projectID); err != nil {
		return err
	}
	s.events.Publish(Event{Type: EventProjectChanged, ProjectID: projectID})
	return nil
}

// ExportDir returns the project's export directory, falling back to the
// parent of the project path when none was chosen.
func (s *Service) ExportDir(ctx context.Context) (string, error) {
	var dir string
	if err := s.withSession(func(sess *session) {
		dir = sess.project.ExportDir
		if dir == "" {
			dir = filepath.Dir(sess.project.Path)
		}
	}); err != nil {
		return "", err
	}
	return dir, nil
}

// UpdateExportDir persists the export directory preference.
func (s *Service) UpdateExportDir(ctx context.Context, input UpdateExportDirInput) error {
	projectID, err := s.requireSession()
	if err != nil {
		return err
	}
	dir := strings.TrimSpace(input.ExportDir)
	if dir == "" {
		return nil
	}
	if err := s.store.SaveProjectMetadata(ctx, projectID, store.ProjectPatch{ExportDir: &dir}); err != nil {
		return err
	}
	if err := s.reloadProject(ctx, projectID); err != nil {
		return err
	}
	s.events.Publish(Event{Type: EventProjectChanged, ProjectID: projectID})
	return nil
}
