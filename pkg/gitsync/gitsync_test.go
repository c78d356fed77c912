// pkg/gitsync/gitsync_test.go

package gitsync

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signature() *object.Signature {
	return &object.Signature{
		Name:  "upstream",
		Email: "upstream@example.test",
		When:  time.Now(),
	}
}

// commitFile writes a file into the repo's worktree and commits it.
func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))

	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	_, err = wt.Commit("add "+name, &git.CommitOptions{Author: signature()})
	require.NoError(t, err)
}

// newUpstream creates a local repository with one commit to clone from.
func newUpstream(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFile(t, repo, dir, "README.md", "belegsync\n")
	return dir, repo
}

func TestSyncClonesMissingDirectory(t *testing.T) {
	upstreamDir, _ := newUpstream(t)
	target := filepath.Join(t.TempDir(), "checkout")

	require.NoError(t, Sync(context.Background(), upstreamDir, target))

	raw, err := os.ReadFile(filepath.Join(target, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "belegsync\n", string(raw))
}

func TestSyncTwiceIsNoOp(t *testing.T) {
	upstreamDir, _ := newUpstream(t)
	target := filepath.Join(t.TempDir(), "checkout")
	ctx := context.Background()

	require.NoError(t, Sync(ctx, upstreamDir, target))
	require.NoError(t, Sync(ctx, upstreamDir, target))
}

func TestSyncFastForwardsNewCommits(t *testing.T) {
	upstreamDir, upstream := newUpstream(t)
	target := filepath.Join(t.TempDir(), "checkout")
	ctx := context.Background()

	require.NoError(t, Sync(ctx, upstreamDir, target))

	commitFile(t, upstream, upstreamDir, "CHANGELOG.md", "v2\n")
	require.NoError(t, Sync(ctx, upstreamDir, target))

	_, err := os.Stat(filepath.Join(target, "CHANGELOG.md"))
	assert.NoError(t, err)
}

func TestSyncRefusesDivergedHistory(t *testing.T) {
	upstreamDir, upstream := newUpstream(t)
	target := filepath.Join(t.TempDir(), "checkout")
	ctx := context.Background()

	require.NoError(t, Sync(ctx, upstreamDir, target))

	// Operator commits locally; upstream moves on independently.
	local, err := git.PlainOpen(target)
	require.NoError(t, err)
	commitFile(t, local, target, "local-patch.md", "operator change\n")
	commitFile(t, upstream, upstreamDir, "upstream.md", "upstream change\n")

	err = Sync(ctx, upstreamDir, target)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDiverged)

	// The local modification survives untouched.
	raw, readErr := os.ReadFile(filepath.Join(target, "local-patch.md"))
	require.NoError(t, readErr)
	assert.Equal(t, "operator change\n", string(raw))
}

func TestSyncExistingNonRepoDirectory(t *testing.T) {
	target := t.TempDir() // exists, but is not a repository

	err := Sync(context.Background(), "https://example.test/repo.git", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open repository")
}
