package git

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	cmd := exec.Command("git", "init", "-q")
	cmd.Dir = dir
	if err := cmd.Run(); err != nil {
		t.Skipf("git init failed: %v", err)
	}
	return dir
}

func TestCheckStoreOutsideRepo(t *testing.T) {
	dir := t.TempDir()
	status, err := CheckStore(filepath.Join(dir, "wallets.db"))
	if err != nil {
		t.Fatalf("CheckStore failed: %v", err)
	}
	if status.IsRepo && !IsGitRepo(dir) {
		t.Error("temp dir reported as repository")
	}
	if !status.IsRepo && FormatStoreStatus(status) != "" {
		t.Error("no output expected outside a repository")
	}
}

func TestCheckStoreNotIgnored(t *testing.T) {
	dir := initRepo(t)
	store := filepath.Join(dir, "wallets.db")
	if err := os.WriteFile(store, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	status, err := CheckStore(store)
	if err != nil {
		t.Fatalf("CheckStore failed: %v", err)
	}
	if !status.IsRepo || status.Tracked || status.Ignored {
		t.Errorf("unexpected status %+v", status)
	}
	if status.StorePath != "wallets.db" {
		t.Errorf("StorePath = %q", status.StorePath)
	}
	if !strings.Contains(FormatStoreStatus(status), "warning: wallets.db not in .gitignore") {
		t.Errorf("missing warning in %q", FormatStoreStatus(status))
	}
}

func TestCheckStoreIgnored(t *testing.T) {
	dir := initRepo(t)
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.db\n"), 0644); err != nil {
		t.Fatal(err)
	}
	store := filepath.Join(dir, "wallets.db")
	if err := os.WriteFile(store, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}

	status, err := CheckStore(store)
	if err != nil {
		t.Fatalf("CheckStore failed: %v", err)
	}
	if !status.Ignored {
		t.Error("store should be ignored")
	}
	if !strings.Contains(FormatStoreStatus(status), "ok: wallets.db in .gitignore") {
		t.Errorf("unexpected output %q", FormatStoreStatus(status))
	}
}
