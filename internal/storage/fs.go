package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
)

const (
	noteExt    = ".md"
	tempPrefix = ".ansuz-tmp-"
)

// FS implements Store on top of an afero file system rooted at a vault
// directory.
type FS struct {
	fs   afero.Fs
	root string
}

// New creates an FS over fsys rooted at root. No existence check is made;
// tests pass an afero.NewMemMapFs.
func New(fsys afero.Fs, root string) *FS {
	return &FS{fs: fsys, root: filepath.Clean(root)}
}

// NewOS creates an FS over the local file system. The directory must exist.
func NewOS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	osfs := afero.NewOsFs()
	ok, err := afero.DirExists(osfs, abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return New(osfs, abs), nil
}

// Root returns the vault root directory.
func (f *FS) Root() string {
	return f.root
}

// CleanScope normalises a scope path to slash form relative to the vault
// root. The root itself is "". Absolute paths and paths escaping the root
// fail with apperr.ErrInvalidRequest.
func CleanScope(scope string) (string, error) {
	rel := filepath.ToSlash(strings.TrimSpace(scope))
	if rel == "" || rel == "." || rel == "/" {
		return "", nil
	}
	if path.IsAbs(rel) {
		return "", fmt.Errorf("%w: absolute paths not allowed: %s", apperr.ErrInvalidRequest, scope)
	}
	cleaned := path.Clean(rel)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: path escapes vault root: %s", apperr.ErrInvalidRequest, scope)
	}
	return cleaned, nil
}

// safePath resolves a scope-relative path against the vault root.
func (f *FS) safePath(rel string) (string, error) {
	cleaned, err := CleanScope(rel)
	if err != nil {
		return "", err
	}
	if cleaned == "" {
		return f.root, nil
	}
	return filepath.Join(f.root, filepath.FromSlash(cleaned)), nil
}

func (f *FS) scopeDir(scope string) (string, error) {
	dir, err := f.safePath(scope)
	if err != nil {
		return "", err
	}
	ok, err := afero.DirExists(f.fs, dir)
	if err != nil {
		return "", fmt.Errorf("storage: stat scope %q: %w", scope, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: scope %q", apperr.ErrNotFound, scope)
	}
	return dir, nil
}

type record struct {
	abs  string
	rel  string
	info os.FileInfo
}

// records lists every note file under dir sorted by vault-relative path,
// skipping hidden directories and temp files.
func (f *FS) records(dir string) ([]record, error) {
	var out []record
	err := afero.Walk(f.fs, dir, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := info.Name()
		if info.IsDir() {
			if p != dir && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(name, noteExt) || strings.HasPrefix(name, tempPrefix) {
			return nil
		}
		out = append(out, record{abs: p, rel: f.rel(p), info: info})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].rel < out[j].rel })
	return out, nil
}

func (f *FS) rel(abs string) string {
	r, err := filepath.Rel(f.root, abs)
	if err != nil {
		return abs
	}
	return filepath.ToSlash(r)
}

func stem(name string) string {
	return strings.TrimSuffix(path.Base(name), noteExt)
}

// ScopeOf returns the scope (directory) of a vault-relative record path.
func ScopeOf(relPath string) string {
	dir := path.Dir(relPath)
	if dir == "." {
		return ""
	}
	return dir
}

// readNode loads and decodes one record.
func (f *FS) readNode(rec record) (*models.Node, error) {
	data, err := afero.ReadFile(f.fs, rec.abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", rec.rel, err)
	}
	res, err := parser.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("storage: %s: %w", rec.rel, err)
	}
	n := res.Node(stem(rec.rel), ScopeOf(rec.rel), rec.rel, rec.info.ModTime())
	n.Checksum = Checksum(data)
	return n, nil
}

// Enumerate implements Accessor.
func (f *FS) Enumerate(scope string) (*Snapshot, error) {
	dir, err := f.scopeDir(scope)
	if err != nil {
		return nil, err
	}
	recs, err := f.records(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: enumerate %q: %w", scope, err)
	}

	snap := &Snapshot{Nodes: make([]*models.Node, 0, len(recs))}
	seen := make(map[string]string, len(recs))
	for _, rec := range recs {
		id := stem(rec.rel)
		if first, dup := seen[id]; dup {
			snap.Warnings = append(snap.Warnings, DuplicateWarning(id, rec.rel, first))
			continue
		}
		seen[id] = rec.rel

		n, err := f.readNode(rec)
		if err != nil {
			snap.Warnings = append(snap.Warnings, models.Warning{ID: id, Path: rec.rel, Message: err.Error()})
			continue
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	return snap, nil
}

// Load implements Accessor. When several records share the ID the first in
// path order is returned, matching Enumerate.
func (f *FS) Load(scope, id string) (*models.Node, error) {
	dir, err := f.scopeDir(scope)
	if err != nil {
		return nil, err
	}
	recs, err := f.records(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: load %q: %w", id, err)
	}
	for _, rec := range recs {
		if stem(rec.rel) == id {
			return f.readNode(rec)
		}
	}
	return nil, fmt.Errorf("%w: node %q in scope %q", apperr.ErrNotFound, id, scope)
}

// Save implements Writer. The record is written to <scope>/<id>.md
// atomically: tmp file → fsync → rename.
func (f *FS) Save(n *models.Node) error {
	if n.ID == "" {
		return fmt.Errorf("%w: node id is required", apperr.ErrInvalidRequest)
	}
	dir, err := f.safePath(n.ScopePath)
	if err != nil {
		return err
	}
	data, err := parser.Render(n)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := afero.TempFile(f.fs, dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := f.fs.Rename(tmpName, filepath.Join(dir, n.ID+noteExt)); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// CreateScope implements Writer.
func (f *FS) CreateScope(scope string) error {
	dir, err := f.safePath(scope)
	if err != nil {
		return err
	}
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}
	return nil
}

// Scopes implements ScopeLister. Hidden directories are skipped, as in
// Enumerate. The result is sorted.
func (f *FS) Scopes() ([]string, error) {
	var out []string
	err := afero.Walk(f.fs, f.root, func(p string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !info.IsDir() || p == f.root {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		out = append(out, f.rel(p))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: list scopes: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// DuplicateWarning reports a record skipped because an earlier path already
// defined its ID.
func DuplicateWarning(id, relPath, firstPath string) models.Warning {
	return models.Warning{
		ID:      id,
		Path:    relPath,
		Message: fmt.Sprintf("%v: duplicate id, already defined by %s", apperr.ErrCorruptNode, firstPath),
	}
}

// Checksum returns the hex SHA-256 of a raw record.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

var (
	_ Store       = (*FS)(nil)
	_ ScopeLister = (*FS)(nil)
)
