// Package gitrepo persists chapter content. Each project owns one git
// repository with a chapters/<id>.json file per chapter; every
// successful save is a commit, which gives revision history for free.
package gitrepo

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"inkwell/api/internal/doc"
	"inkwell/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrChapterNotFound is returned when a chapter file does not exist at
// the head commit.
var ErrChapterNotFound = errors.New("chapter content not found")

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// EnsureProjectRepo initializes a project's content repository with an
// empty baseline commit on main. Calling it for an existing repo is a
// no-op.
func (s *Service) EnsureProjectRepo(projectID, author string) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	path := s.repoPath(projectID)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat repo path: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(path, "chapters"), 0o755); err != nil {
		return fmt.Errorf("create repo dir: %w", err)
	}

	repo, err := git.PlainInit(path, false)
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, "chapters", ".gitkeep"), nil, 0o644); err != nil {
		return fmt.Errorf("write baseline file: %w", err)
	}
	if _, err := worktree.Add("chapters"); err != nil {
		return fmt.Errorf("git add baseline: %w", err)
	}
	hash, err := worktree.Commit("Initialize project", &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return fmt.Errorf("commit baseline: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return fmt.Errorf("set HEAD to main: %w", err)
	}
	return nil
}

// SaveChapter writes a chapter document and commits it.
func (s *Service) SaveChapter(projectID string, chapterID int, root doc.Node, author, message string) (store.CommitInfo, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("open worktree: %w", err)
	}

	payload, err := doc.Marshal(root)
	if err != nil {
		return store.CommitInfo{}, err
	}

	rel := chapterFile(chapterID)
	if err := os.WriteFile(filepath.Join(worktree.Filesystem.Root(), rel), payload, 0o644); err != nil {
		return store.CommitInfo{}, fmt.Errorf("write chapter file: %w", err)
	}
	if _, err := worktree.Add(rel); err != nil {
		return store.CommitInfo{}, fmt.Errorf("git add chapter: %w", err)
	}

	// Saving identical content must still succeed, so empty commits are
	// allowed.
	hash, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            signature(author),
	})
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("commit chapter: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return store.CommitInfo{}, fmt.Errorf("read commit object: %w", err)
	}
	return toCommitInfo(commitObj), nil
}

// LoadChapter reads a chapter document at the head of main.
func (s *Service) LoadChapter(projectID string, chapterID int) (doc.Node, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	commitObj, err := s.headCommit(projectID)
	if err != nil {
		return doc.Node{}, err
	}
	return readChapterFromCommit(commitObj, chapterID)
}

// LoadChapterAt reads a chapter document from a specific commit, for
// revision viewing.
func (s *Service) LoadChapterAt(projectID string, chapterID int, hash string) (doc.Node, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return doc.Node{}, fmt.Errorf("open repo: %w", err)
	}
	resolvedHash, err := resolveHash(repo, hash)
	if err != nil {
		return doc.Node{}, err
	}
	commitObj, err := repo.CommitObject(resolvedHash)
	if err != nil {
		return doc.Node{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	return readChapterFromCommit(commitObj, chapterID)
}

// DeleteChapter removes a chapter file and commits the removal. Deleting
// an absent file is a no-op.
func (s *Service) DeleteChapter(projectID string, chapterID int, author string) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return fmt.Errorf("open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	rel := chapterFile(chapterID)
	abs := filepath.Join(worktree.Filesystem.Root(), rel)
	if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("remove chapter file: %w", err)
	}
	if _, err := worktree.Add(rel); err != nil {
		return fmt.Errorf("git stage removal: %w", err)
	}
	if _, err := worktree.Commit(fmt.Sprintf("Delete chapter %d", chapterID), &git.CommitOptions{
		Author: signature(author),
	}); err != nil {
		return fmt.Errorf("commit removal: %w", err)
	}
	return nil
}

// History lists the most recent saves on main, newest first. A limit of
// zero means no limit.
func (s *Service) History(projectID string, limit int) ([]store.CommitInfo, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]store.CommitInfo, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toCommitInfo(commitObj))
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// DeleteProjectRepo removes a project's content repository entirely.
func (s *Service) DeleteProjectRepo(projectID string) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(projectID)); err != nil {
		return fmt.Errorf("remove repo: %w", err)
	}
	return nil
}

func (s *Service) repoPath(projectID string) string {
	return filepath.Join(s.baseDir, projectID)
}

func (s *Service) projectLock(projectID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[projectID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[projectID] = lock
	return lock
}

func (s *Service) headCommit(projectID string) (*object.Commit, error) {
	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	ref, err := repo.Reference(plumbing.NewBranchReferenceName("main"), true)
	if err != nil {
		return nil, fmt.Errorf("resolve main: %w", err)
	}
	commitObj, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("load commit object: %w", err)
	}
	return commitObj, nil
}

func chapterFile(chapterID int) string {
	return filepath.Join("chapters", fmt.Sprintf("%d.json", chapterID))
}

func readChapterFromCommit(commitObj *object.Commit, chapterID int) (doc.Node, error) {
	file, err := commitObj.File(chapterFile(chapterID))
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return doc.Node{}, ErrChapterNotFound
		}
		return doc.Node{}, fmt.Errorf("load chapter file from commit: %w", err)
	}
	reader, err := file.Reader()
	if err != nil {
		return doc.Node{}, fmt.Errorf("open chapter reader: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return doc.Node{}, fmt.Errorf("read chapter bytes: %w", err)
	}
	return doc.Parse(raw)
}

func toCommitInfo(commitObj *object.Commit) store.CommitInfo {
	return store.CommitInfo{
		Hash:      commitObj.Hash.String()[:7],
		Message:   commitObj.Message,
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func signature(author string) *object.Signature {
	if author == "" {
		author = "Inkwell"
	}
	return &object.Signature{
		Name:  author,
		Email: fmt.Sprintf("%s@local.inkwell.dev", sanitizeEmail(author)),
		When:  time.Now(),
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "author"
	}
	return string(out)
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve hash %s: %w", hash, err)
	}
	return *resolved, nil
}
