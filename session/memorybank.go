package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/orchestrace/control-plane/log"
)

// MemoryBank is the per-agent git-worktree-backed durable store bound to a
// session (§4.7's "memory bank keyed by agentId"), adapted from the
// teacher's GitWorktree: push/PR publishing and the Jujutsu placeholder are
// dropped (out of scope — this is local agent memory, not a collaboration
// surface), leaving worktree setup/cleanup/prune.
type MemoryBank struct {
	repoPath      string
	worktreePath  string
	agentID       string
	branchName    string
	baseCommitSHA string
}

// NewMemoryBank locates the git repository root containing repoPath and
// derives a sanitized branch name from agentID.
func NewMemoryBank(repoPath, agentID string) (*MemoryBank, error) {
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, fmt.Errorf("memory bank: resolving repo path: %w", err)
	}
	root, err := findGitRepoRoot(absPath)
	if err != nil {
		return nil, fmt.Errorf("memory bank: %w", err)
	}

	branch := SanitizeName(agentID)
	return &MemoryBank{
		repoPath:     root,
		worktreePath: filepath.Join(root, ".git", "worktrees", branch),
		agentID:      agentID,
		branchName:   branch,
	}, nil
}

func (m *MemoryBank) Path() string   { return m.worktreePath }
func (m *MemoryBank) Branch() string { return m.branchName }

// Setup creates the worktree, from an existing branch if agentID has one
// already, otherwise as a new branch off HEAD.
func (m *MemoryBank) Setup() error {
	repo, err := git.PlainOpen(m.repoPath)
	if err != nil {
		return fmt.Errorf("memory bank: opening repo: %w", err)
	}
	if _, err := repo.Branch(m.branchName); err == nil {
		return m.setupFromExistingBranch()
	} else if errors.Is(err, git.ErrBranchNotFound) {
		return m.setupNewWorktree(repo)
	} else {
		return fmt.Errorf("memory bank: checking for existing branch: %w", err)
	}
}

func (m *MemoryBank) setupFromExistingBranch() error {
	log.InfoLog.Printf("memory bank: setting up worktree from existing branch %s", m.branchName)
	_, _ = runGit(m.repoPath, "worktree", "remove", "-f", m.worktreePath)
	if _, err := runGit(m.repoPath, "worktree", "add", m.worktreePath, m.branchName); err != nil {
		return fmt.Errorf("memory bank: adding worktree from existing branch: %w", err)
	}
	return nil
}

func (m *MemoryBank) setupNewWorktree(repo *git.Repository) error {
	log.InfoLog.Printf("memory bank: setting up new worktree and branch %s", m.branchName)
	_, _ = runGit(m.repoPath, "worktree", "remove", "-f", m.worktreePath)

	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("memory bank: getting HEAD: %w", err)
	}
	m.baseCommitSHA = head.Hash().String()

	if _, err := runGit(m.repoPath, "worktree", "add", "-b", m.branchName, m.worktreePath, m.baseCommitSHA); err != nil {
		return fmt.Errorf("memory bank: adding new worktree: %w", err)
	}
	return nil
}

// Cleanup removes the worktree and deletes its branch.
func (m *MemoryBank) Cleanup() error {
	if _, err := runGit(m.repoPath, "worktree", "remove", "-f", m.worktreePath); err != nil {
		log.ErrorLog.Printf("memory bank: removing worktree %s: %v", m.worktreePath, err)
	}

	repo, err := git.PlainOpen(m.repoPath)
	if err != nil {
		return fmt.Errorf("memory bank: opening repo for branch deletion: %w", err)
	}
	if err := repo.DeleteBranch(m.branchName); err != nil && !errors.Is(err, git.ErrBranchNotFound) {
		return fmt.Errorf("memory bank: deleting branch %s: %w", m.branchName, err)
	}
	return m.Prune()
}

// Remove removes the worktree but keeps the branch.
func (m *MemoryBank) Remove() error {
	if _, err := runGit(m.repoPath, "worktree", "remove", "-f", m.worktreePath); err != nil {
		return fmt.Errorf("memory bank: removing worktree %s: %w", m.worktreePath, err)
	}
	return nil
}

// Prune removes stale worktree entries.
func (m *MemoryBank) Prune() error {
	_, err := runGit(m.repoPath, "worktree", "prune")
	if err != nil {
		return fmt.Errorf("memory bank: pruning worktrees: %w", err)
	}
	return nil
}

func runGit(path string, args ...string) (string, error) {
	baseArgs := []string{}
	if path != "" {
		baseArgs = append(baseArgs, "-C", path)
	}
	out, err := runCommand("git", append(baseArgs, args...)...)
	if err != nil {
		return "", fmt.Errorf("git command failed: %s (%w)", out, err)
	}
	return strings.TrimSpace(out), nil
}

// SanitizeName transforms an arbitrary agent id into a git-branch-safe
// string.
func SanitizeName(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")

	re := regexp.MustCompile(`[^a-z0-9\-_/.]+`)
	s = re.ReplaceAllString(s, "")

	reDash := regexp.MustCompile(`-+`)
	s = reDash.ReplaceAllString(s, "-")

	s = strings.Trim(s, "-/.")
	s = strings.TrimSuffix(s, "/")
	s = strings.ReplaceAll(s, "..", "-")

	if len(s) > 100 {
		s = s[:100]
	}
	return s
}

// IsGitRepo reports whether path is within a git repository.
func IsGitRepo(path string) bool {
	for {
		if _, err := git.PlainOpen(path); err == nil {
			return true
		}
		parent := filepath.Dir(path)
		if parent == path {
			return false
		}
		path = parent
	}
}

func findGitRepoRoot(path string) (string, error) {
	current := path
	for {
		if IsGitRepo(current) {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", fmt.Errorf("no git repository found above %s", path)
}

// CombineErrors joins multiple errors into one.
func CombineErrors(errs []error) error {
	var present []error
	for _, e := range errs {
		if e != nil {
			present = append(present, e)
		}
	}
	return errors.Join(present...)
}
