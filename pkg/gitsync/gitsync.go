// Package gitsync keeps the application checkout in step with upstream.
// A missing directory gets a fresh clone; an existing one gets a
// fast-forward-only pull, so operator-local history is never overwritten.
package gitsync

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// ErrDiverged is returned when the local checkout has commits upstream
// does not know about. The checkout is left untouched.
var ErrDiverged = errors.New("local history has diverged from upstream, refusing to update")

// Sync clones repoURL into targetDir, or fast-forwards an existing clone.
// Running twice with no upstream change is a no-op.
func Sync(ctx context.Context, repoURL, targetDir string) error {
	log := otelzap.Ctx(ctx)

	if _, err := os.Stat(targetDir); os.IsNotExist(err) {
		log.Info("Cloning application source",
			zap.String("repo", repoURL),
			zap.String("dir", targetDir))
		_, err := git.PlainCloneContext(ctx, targetDir, false, &git.CloneOptions{
			URL:   repoURL,
			Depth: 0,
		})
		if err != nil {
			return fmt.Errorf("clone %s: %w", repoURL, err)
		}
		return nil
	}

	repo, err := git.PlainOpen(targetDir)
	if err != nil {
		return fmt.Errorf("open repository at %s: %w", targetDir, err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	log.Info("Updating application source", zap.String("dir", targetDir))
	err = wt.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	switch {
	case err == nil:
		log.Info("Source updated")
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		log.Info("Source already up to date")
		return nil
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return fmt.Errorf("%w: %s", ErrDiverged, targetDir)
	default:
		return fmt.Errorf("pull %s: %w", targetDir, err)
	}
}
