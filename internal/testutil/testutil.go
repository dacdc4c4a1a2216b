// Package testutil provides shared test helpers for setting up vaults and databases.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/starford/ansuz/internal/storage"
)

// VaultRoot is the root directory of in-memory vaults.
const VaultRoot = "/vault"

// MemVault creates an in-memory vault seeded with files (path relative to
// the vault root → raw content).
func MemVault(t *testing.T, files map[string]string) (*storage.FS, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	if err := fsys.MkdirAll(VaultRoot, 0o755); err != nil {
		t.Fatal(err)
	}
	for rel, content := range files {
		WriteFile(t, fsys, rel, content)
	}
	return storage.New(fsys, VaultRoot), fsys
}

// WriteFile writes a raw record into an in-memory vault.
func WriteFile(t *testing.T, fsys afero.Fs, rel, content string) {
	t.Helper()
	abs := filepath.Join(VaultRoot, filepath.FromSlash(rel))
	if err := fsys.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fsys, abs, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// Note renders a raw Markdown record with the given frontmatter fields.
func Note(title string, tags, links []string, body string) string {
	var b strings.Builder
	b.WriteString("---\n")
	b.WriteString("title: " + title + "\n")
	if len(tags) > 0 {
		b.WriteString("tags:\n")
		for _, tag := range tags {
			b.WriteString("  - " + tag + "\n")
		}
	}
	if len(links) > 0 {
		b.WriteString("linked_notes:\n")
		for _, l := range links {
			b.WriteString("  - " + l + "\n")
		}
	}
	b.WriteString("---\n\n")
	b.WriteString(body)
	b.WriteString("\n")
	return b.String()
}

// TestDBPath returns a temporary SQLite file path that is automatically cleaned up.
func TestDBPath(t *testing.T) string {
	t.Helper()
	dbFile, err := os.CreateTemp("", "ansuz-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })
	return dbFile.Name()
}

// TestVault creates a temporary on-disk vault directory with an FS store.
func TestVault(t *testing.T) (string, *storage.FS) {
	t.Helper()
	vaultDir := t.TempDir()
	store, err := storage.NewOS(vaultDir)
	if err != nil {
		t.Fatal(err)
	}
	return vaultDir, store
}
