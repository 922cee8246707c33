package git

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// StoreStatus describes how a wallet store file relates to an enclosing
// git work tree.
type StoreStatus struct {
	IsRepo    bool
	RepoRoot  string
	StorePath string // relative to RepoRoot
	Tracked   bool   // committed or staged (bad)
	Ignored   bool   // covered by .gitignore (good)
}

// IsGitRepo checks if the working directory is inside a git repository
func IsGitRepo(workDir string) bool {
	cmd := exec.Command("git", "rev-parse", "--is-inside-work-tree")
	cmd.Dir = workDir
	err := cmd.Run()
	return err == nil
}

// RepoRoot returns the top-level directory of the work tree containing workDir.
func RepoRoot(workDir string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	cmd.Dir = workDir
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// IsTracked checks if a file is tracked by git
func IsTracked(workDir, path string) bool {
	cmd := exec.Command("git", "ls-files", "--", path)
	cmd.Dir = workDir
	output, err := cmd.Output()

	if err != nil {
		return false
	}

	return len(strings.TrimSpace(string(output))) > 0
}

// IsIgnored checks if a file is ignored by git (handles all .gitignore files)
func IsIgnored(workDir, path string) bool {
	cmd := exec.Command("git", "check-ignore", "-q", "--", path)
	cmd.Dir = workDir
	err := cmd.Run()

	// git check-ignore returns exit code 0 if file is ignored
	return err == nil
}

// CheckStore reports whether storePath lives in a git work tree and, if so,
// whether git tracks or ignores it. A store outside any repository yields
// IsRepo == false and no error.
func CheckStore(storePath string) (*StoreStatus, error) {
	abs, err := filepath.Abs(storePath)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(abs)

	status := &StoreStatus{}
	if !IsGitRepo(dir) {
		return status, nil
	}
	status.IsRepo = true

	root, err := RepoRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository root: %w", err)
	}
	// Resolve symlinks on both sides so Rel works on macOS temp dirs
	if r, err := filepath.EvalSymlinks(root); err == nil {
		root = r
	}
	if d, err := filepath.EvalSymlinks(dir); err == nil {
		abs = filepath.Join(d, filepath.Base(abs))
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return nil, err
	}
	status.RepoRoot = root
	status.StorePath = filepath.ToSlash(rel)
	status.Tracked = IsTracked(root, status.StorePath)
	status.Ignored = IsIgnored(root, status.StorePath)
	return status, nil
}

// FormatStoreStatus formats git status for display
func FormatStoreStatus(status *StoreStatus) string {
	if status == nil || !status.IsRepo {
		return ""
	}

	var result strings.Builder
	result.WriteString("\nGit Integration:\n")

	if status.Tracked {
		result.WriteString(fmt.Sprintf("   error: %s is tracked by git (run: git rm --cached %s)\n", status.StorePath, status.StorePath))
	} else {
		result.WriteString("   ok: wallet store not tracked by git\n")
	}

	if status.Ignored {
		result.WriteString(fmt.Sprintf("   ok: %s in .gitignore\n", status.StorePath))
	} else if !status.Tracked {
		result.WriteString(fmt.Sprintf("   warning: %s not in .gitignore (add to .gitignore)\n", status.StorePath))
	} else {
		result.WriteString(fmt.Sprintf("   warning: %s not in .gitignore\n", status.StorePath))
	}

	return result.String()
}
