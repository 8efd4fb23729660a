// Package history keeps a git repository per project and snapshots the HTML
// document on every save, giving editors a browsable revision trail and
// one-click restore.
package history

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

const documentFile = "index.html"

// Revision is one saved snapshot.
type Revision struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

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

// Snapshot commits the current document for a project, initializing the
// repository on first use. An unchanged document commits nothing and
// returns the current head revision.
func (s *Service) Snapshot(projectID, html, author, message string) (Revision, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := s.openOrInit(projectID)
	if err != nil {
		return Revision{}, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Revision{}, fmt.Errorf("open worktree: %w", err)
	}

	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, documentFile), []byte(html), 0o644); err != nil {
		return Revision{}, fmt.Errorf("write document: %w", err)
	}
	if _, err := worktree.Add(documentFile); err != nil {
		return Revision{}, fmt.Errorf("git add document: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return Revision{}, fmt.Errorf("read worktree status: %w", err)
	}
	if status.IsClean() {
		return s.head(repo)
	}

	if message == "" {
		message = "Save site"
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: signature(author),
	})
	if err != nil {
		return Revision{}, fmt.Errorf("commit document: %w", err)
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), nil
}

// List returns the newest revisions first, up to limit (0 means all).
func (s *Service) List(projectID string, limit int) ([]Revision, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	headRef, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve head: %w", err)
	}
	iter, err := repo.Log(&git.LogOptions{From: headRef.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	var revisions []Revision
	err = iter.ForEach(func(commitObj *object.Commit) error {
		revisions = append(revisions, toRevision(commitObj))
		if limit > 0 && len(revisions) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return revisions, nil
}

// Document returns the HTML stored at a revision.
func (s *Service) Document(projectID, hash string) (string, error) {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(projectID))
	if err != nil {
		return "", fmt.Errorf("open repo: %w", err)
	}

	resolved, err := resolveHash(repo, hash)
	if err != nil {
		return "", err
	}
	commitObj, err := repo.CommitObject(resolved)
	if err != nil {
		return "", fmt.Errorf("read commit %s: %w", hash, err)
	}

	file, err := commitObj.File(documentFile)
	if err != nil {
		return "", fmt.Errorf("load document from commit: %w", err)
	}
	content, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read document contents: %w", err)
	}
	return content, nil
}

// Delete removes a project's revision trail entirely.
func (s *Service) Delete(projectID string) error {
	lock := s.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.RemoveAll(s.repoPath(projectID)); err != nil {
		return fmt.Errorf("remove repo: %w", err)
	}
	return nil
}

func (s *Service) openOrInit(projectID string) (*git.Repository, error) {
	path := s.repoPath(projectID)

	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	return repo, nil
}

func (s *Service) head(repo *git.Repository) (Revision, error) {
	headRef, err := repo.Head()
	if err != nil {
		return Revision{}, fmt.Errorf("resolve head: %w", err)
	}
	commitObj, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return Revision{}, fmt.Errorf("read head commit: %w", err)
	}
	return toRevision(commitObj), nil
}

func (s *Service) repoPath(projectID string) string {
	return filepath.Join(s.baseDir, projectID)
}

func (s *Service) projectLock(projectID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[projectID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[projectID] = lock
	}
	return lock
}

func signature(author string) *object.Signature {
	if author == "" {
		author = "sitesmith"
	}
	return &object.Signature{
		Name:  author,
		Email: sanitizeEmail(author) + "@history.sitesmith.local",
		When:  time.Now(),
	}
}

func toRevision(commitObj *object.Commit) Revision {
	return Revision{
		Hash:      commitObj.Hash.String()[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func resolveHash(repo *git.Repository, hash string) (plumbing.Hash, error) {
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve revision %s: %w", hash, err)
	}
	return *resolved, nil
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range strings.ToLower(input) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
