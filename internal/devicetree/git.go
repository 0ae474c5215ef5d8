package devicetree

import (
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"github.com/EduardoA3677/twrpdtgen/internal/logging"
)

// InitRepo turns the written device-tree directory into a git
// repository: init, stage everything, commit the generated message with
// the given author identity.
func (t *Tree) InitRepo(dir, authorName, authorEmail string) error {
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return fmt.Errorf("initializing git repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("opening worktree: %w", err)
	}
	if err := wt.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging device tree files: %w", err)
	}

	data := newTemplateData(t.Fingerprint, t.Manifest, t.Version)
	message, err := renderTemplate("commit_message", data)
	if err != nil {
		return err
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  authorName,
			Email: authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing device tree: %w", err)
	}

	logging.GetLogger().Info("git repository created",
		zap.String("dir", dir),
		zap.String("commit", hash.String()))
	return nil
}
