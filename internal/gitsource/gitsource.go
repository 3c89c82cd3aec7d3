// Package gitsource keeps local checkouts of deck repositories up to date.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// Syncer clones or pulls deck repositories below BaseDir.
type Syncer struct {
	BaseDir  string
	Log      *zap.Logger
	Progress io.Writer // optional clone/pull progress output
}

// Sync brings the checkout of repoURL up to date and returns its local path.
// A missing checkout is cloned; an existing one is pulled.
func (s *Syncer) Sync(ctx context.Context, repoURL string) (string, error) {
	localPath, err := LocalPath(s.BaseDir, repoURL)
	if err != nil {
		return "", err
	}

	_, err = os.Stat(localPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.Log.Info("cloning deck repository", zap.String("url", repoURL), zap.String("path", localPath))
		_, err := git.PlainCloneContext(ctx, localPath, false, &git.CloneOptions{
			URL:      repoURL,
			Depth:    1,
			Progress: s.Progress,
		})
		if err != nil {
			return "", fmt.Errorf("clone %s: %w", repoURL, err)
		}
	case err == nil:
		s.Log.Info("pulling deck repository", zap.String("path", localPath))
		repo, err := git.PlainOpen(localPath)
		if err != nil {
			return "", fmt.Errorf("open repo at %s: %w", localPath, err)
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return "", fmt.Errorf("worktree for %s: %w", localPath, err)
		}
		err = worktree.PullContext(ctx, &git.PullOptions{
			RemoteName: "origin",
			Progress:   s.Progress,
		})
		if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
			return "", fmt.Errorf("pull %s: %w", localPath, err)
		}
	default:
		return "", fmt.Errorf("stat %s: %w", localPath, err)
	}

	return localPath, nil
}

// IsGitURL reports whether path names a git remote rather than a directory.
func IsGitURL(path string) bool {
	return strings.HasSuffix(path, ".git") ||
		strings.HasPrefix(path, "git@") ||
		strings.HasPrefix(path, "https://") ||
		strings.HasPrefix(path, "http://")
}

// LocalPath maps a remote URL to baseDir/host/path, accepting both
// https://host/owner/repo.git and git@host:owner/repo.git forms.
func LocalPath(baseDir, repoURL string) (string, error) {
	if host, repoPath, ok := scpLike(repoURL); ok {
		return filepath.Join(baseDir, host, repoPath), nil
	}

	u, err := url.Parse(repoURL)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	repoPath := strings.Trim(strings.TrimSuffix(u.Path, ".git"), "/")
	if repoPath == "" || strings.Contains(repoPath, "..") {
		return "", fmt.Errorf("could not parse git URL: %s", repoURL)
	}
	return filepath.Join(baseDir, u.Host, repoPath), nil
}

func scpLike(repoURL string) (host, repoPath string, ok bool) {
	if strings.Contains(repoURL, "://") {
		return "", "", false
	}
	userHost, p, found := strings.Cut(repoURL, ":")
	if !found {
		return "", "", false
	}
	_, host, found = strings.Cut(userHost, "@")
	if !found || host == "" {
		return "", "", false
	}
	repoPath = strings.Trim(strings.TrimSuffix(p, ".git"), "/")
	if repoPath == "" || strings.Contains(repoPath, "..") {
		return "", "", false
	}
	return host, repoPath, true
}
