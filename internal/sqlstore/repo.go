package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

const nodeColumns = `path, id, scope, title, body, tags, checksum, created_at, modified_at`

// Upsert inserts or replaces a node and its declared links within a
// transaction. The node's Path, ScopePath and Checksum are stored as given.
func (db *DB) Upsert(n *models.Node) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	tags := n.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("sqlstore: encode tags: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO nodes (`+nodeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			id          = excluded.id,
			scope       = excluded.scope,
			title       = excluded.title,
			body        = excluded.body,
			tags        = excluded.tags,
			checksum    = excluded.checksum,
			created_at  = excluded.created_at,
			modified_at = excluded.modified_at
	`, n.Path, n.ID, n.ScopePath, n.Title, n.Body, string(tagsJSON), n.Checksum,
		n.CreatedAt.UTC(), n.ModifiedAt.UTC())
	if err != nil {
		return fmt.Errorf("sqlstore: upsert node: %w", err)
	}

	if err := insertScopes(tx, n.ScopePath); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, n.Path); err != nil {
		return fmt.Errorf("sqlstore: clear links: %w", err)
	}
	if len(n.OutboundRefs) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target, position) VALUES (?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("sqlstore: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for i, target := range n.OutboundRefs {
			if _, err := stmt.Exec(n.Path, target, i); err != nil {
				return fmt.Errorf("sqlstore: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// Delete removes a node and its declared links.
func (db *DB) Delete(relPath string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(`DELETE FROM links WHERE source = ?`, relPath); err != nil {
		return fmt.Errorf("sqlstore: delete links: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE path = ?`, relPath); err != nil {
		return fmt.Errorf("sqlstore: delete node: %w", err)
	}
	return tx.Commit()
}

// AllChecksums returns path → checksum for every stored node.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM nodes`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, fmt.Errorf("sqlstore: scan checksum: %w", err)
		}
		out[p] = cs
	}
	return out, rows.Err()
}

// Save implements storage.Writer. The record is stored under
// <scope>/<id>.md with a checksum of its rendered form.
func (db *DB) Save(n *models.Node) error {
	if n.ID == "" {
		return fmt.Errorf("%w: node id is required", apperr.ErrInvalidRequest)
	}
	scope, err := storage.CleanScope(n.ScopePath)
	if err != nil {
		return err
	}
	data, err := parser.Render(n)
	if err != nil {
		return err
	}
	row := *n
	row.ScopePath = scope
	row.Path = path.Join(scope, n.ID+".md")
	row.Checksum = storage.Checksum(data)
	now := time.Now().UTC()
	if row.ModifiedAt.IsZero() {
		row.ModifiedAt = now
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = row.ModifiedAt
	}
	return db.Upsert(&row)
}

// CreateScope implements storage.Writer.
func (db *DB) CreateScope(scope string) error {
	cleaned, err := storage.CleanScope(scope)
	if err != nil {
		return err
	}
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertScopes(tx, cleaned); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceScopes swaps the folders recorded under scope for scopes. The
// scope row itself is kept.
func (db *DB) ReplaceScopes(scope string, scopes []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("sqlstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	where, args := "1 = 1", []any(nil)
	if scope != "" {
		where, args = "path LIKE ? ESCAPE '\\'", []any{escapeLike(scope) + "/%"}
	}
	if _, err := tx.Exec(`DELETE FROM scopes WHERE `+where, args...); err != nil {
		return fmt.Errorf("sqlstore: clear scopes: %w", err)
	}
	if err := insertScopes(tx, scope); err != nil {
		return err
	}
	for _, sc := range scopes {
		if err := insertScopes(tx, sc); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// insertScopes records scope and every parent folder of it.
func insertScopes(tx *sql.Tx, scope string) error {
	if scope == "" {
		return nil
	}
	parts := strings.Split(scope, "/")
	for i := range parts {
		p := strings.Join(parts[:i+1], "/")
		if _, err := tx.Exec(`INSERT OR IGNORE INTO scopes (path) VALUES (?)`, p); err != nil {
			return fmt.Errorf("sqlstore: insert scope: %w", err)
		}
	}
	return nil
}

// Scopes implements storage.ScopeLister.
func (db *DB) Scopes() ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM scopes ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: list scopes: %w", err)
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("sqlstore: scan scope: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// readTx runs fn inside one read-only transaction so every query it issues
// sees the same database state.
func (db *DB) readTx(fn func(q querier) error) error {
	tx, err := db.conn.BeginTx(context.Background(), &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("sqlstore: begin read tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // read-only, nothing to keep
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// scopeFilter returns a WHERE clause selecting nodes inside scope.
func scopeFilter(scope string) (string, []any) {
	if scope == "" {
		return "1 = 1", nil
	}
	return "(scope = ? OR scope LIKE ? ESCAPE '\\')", []any{scope, escapeLike(scope) + "/%"}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// checkScope fails with apperr.ErrNotFound unless scope is a recorded
// folder or holds at least one node.
func checkScope(q querier, scope string) (string, error) {
	cleaned, err := storage.CleanScope(scope)
	if err != nil {
		return "", err
	}
	if cleaned == "" {
		return "", nil
	}
	where, args := scopeFilter(cleaned)
	var found bool
	err = q.QueryRow(`SELECT EXISTS(SELECT 1 FROM scopes WHERE path = ?) OR EXISTS(SELECT 1 FROM nodes WHERE `+where+`)`,
		append([]any{cleaned}, args...)...).Scan(&found)
	if err != nil {
		return "", fmt.Errorf("sqlstore: check scope: %w", err)
	}
	if !found {
		return "", fmt.Errorf("%w: scope %q", apperr.ErrNotFound, scope)
	}
	return cleaned, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanNode reads one row. A row whose tags cannot be decoded is reported
// as corrupt.
func scanNode(s scanner) (*models.Node, error) {
	var (
		n        models.Node
		tagsJSON string
	)
	if err := s.Scan(&n.Path, &n.ID, &n.ScopePath, &n.Title, &n.Body, &tagsJSON, &n.Checksum, &n.CreatedAt, &n.ModifiedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &n.Tags); err != nil {
		return &n, fmt.Errorf("%w: %s: tags: %v", apperr.ErrCorruptNode, n.Path, err)
	}
	if n.Tags == nil {
		n.Tags = []string{}
	}
	n.OutboundRefs = []string{}
	return &n, nil
}

func linksFor(q querier, where string, args []any) (map[string][]string, error) {
	rows, err := q.Query(`
		SELECT l.source, l.target FROM links l
		JOIN nodes ON nodes.path = l.source
		WHERE `+where+`
		ORDER BY l.source, l.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query links: %w", err)
	}
	defer rows.Close()
	out := make(map[string][]string)
	for rows.Next() {
		var src, target string
		if err := rows.Scan(&src, &target); err != nil {
			return nil, fmt.Errorf("sqlstore: scan link: %w", err)
		}
		out[src] = append(out[src], target)
	}
	return out, rows.Err()
}

// Enumerate implements storage.Accessor. The scope check, the links and the
// nodes are read in one transaction.
func (db *DB) Enumerate(scope string) (*storage.Snapshot, error) {
	var snap *storage.Snapshot
	err := db.readTx(func(q querier) error {
		var err error
		snap, err = enumerate(q, scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func enumerate(q querier, scope string) (*storage.Snapshot, error) {
	cleaned, err := checkScope(q, scope)
	if err != nil {
		return nil, err
	}
	where, args := scopeFilter(cleaned)

	refs, err := linksFor(q, where, args)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(`SELECT `+nodeColumns+` FROM nodes WHERE `+where+` ORDER BY path`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: enumerate: %w", err)
	}
	defer rows.Close()

	snap := &storage.Snapshot{Nodes: []*models.Node{}}
	seen := make(map[string]string)
	for rows.Next() {
		n, err := scanNode(rows)
		if n == nil {
			return nil, fmt.Errorf("sqlstore: scan node: %w", err)
		}
		if first, dup := seen[n.ID]; dup {
			snap.Warnings = append(snap.Warnings, storage.DuplicateWarning(n.ID, n.Path, first))
			continue
		}
		seen[n.ID] = n.Path
		if err != nil {
			snap.Warnings = append(snap.Warnings, models.Warning{ID: n.ID, Path: n.Path, Message: err.Error()})
			continue
		}
		if r := refs[n.Path]; r != nil {
			n.OutboundRefs = r
		}
		snap.Nodes = append(snap.Nodes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlstore: enumerate: %w", err)
	}
	return snap, nil
}

// Load implements storage.Accessor.
func (db *DB) Load(scope, id string) (*models.Node, error) {
	var n *models.Node
	err := db.readTx(func(q querier) error {
		var err error
		n, err = load(q, scope, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func load(q querier, scope, id string) (*models.Node, error) {
	cleaned, err := checkScope(q, scope)
	if err != nil {
		return nil, err
	}
	where, args := scopeFilter(cleaned)

	row := q.QueryRow(`SELECT `+nodeColumns+` FROM nodes WHERE id = ? AND `+where+` ORDER BY path LIMIT 1`,
		append([]any{id}, args...)...)
	n, err := scanNode(row)
	if n == nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: node %q in scope %q", apperr.ErrNotFound, id, scope)
		}
		return nil, fmt.Errorf("sqlstore: load %q: %w", id, err)
	}
	if err != nil {
		return nil, err
	}

	refs, err := linksFor(q, "nodes.path = ?", []any{n.Path})
	if err != nil {
		return nil, err
	}
	if r := refs[n.Path]; r != nil {
		n.OutboundRefs = r
	}
	return n, nil
}

var (
	_ storage.Store       = (*DB)(nil)
	_ storage.ScopeLister = (*DB)(nil)
)
