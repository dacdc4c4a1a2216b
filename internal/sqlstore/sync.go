package sqlstore

import (
	"log/slog"
	"strings"

	"github.com/starford/ansuz/internal/storage"
)

// SyncStats summarises one Sync run.
type SyncStats struct {
	Upserted  int `json:"upserted"`
	Unchanged int `json:"unchanged"`
	Removed   int `json:"removed"`
	Skipped   int `json:"skipped"`
	Scopes    int `json:"scopes"`
}

// Sync copies every node under scope from src into the database:
//   - new/changed records (by checksum) are upserted
//   - records no longer present in src are deleted
//   - records src could not decode are skipped and logged
//   - when src is a storage.ScopeLister, its folders replace the recorded
//     folders under scope, so empty folders stay addressable
func Sync(db *DB, src storage.Accessor, scope string, logger *slog.Logger) (SyncStats, error) {
	var stats SyncStats

	snap, err := src.Enumerate(scope)
	if err != nil {
		return stats, err
	}
	checksums, err := db.AllChecksums()
	if err != nil {
		return stats, err
	}

	present := make(map[string]struct{}, len(snap.Nodes)+len(snap.Warnings))
	for _, w := range snap.Warnings {
		present[w.Path] = struct{}{}
		stats.Skipped++
		logger.Warn("sync: skipped record", slog.String("path", w.Path), slog.String("error", w.Message))
	}

	for _, n := range snap.Nodes {
		present[n.Path] = struct{}{}
		if checksums[n.Path] == n.Checksum {
			stats.Unchanged++
			continue
		}
		if err := db.Upsert(n); err != nil {
			logger.Warn("sync: upsert failed", slog.String("path", n.Path), slog.String("error", err.Error()))
			continue
		}
		stats.Upserted++
		logger.Debug("sync: upserted", slog.String("path", n.Path))
	}

	cleaned, err := storage.CleanScope(scope)
	if err != nil {
		return stats, err
	}
	for p := range checksums {
		if _, ok := present[p]; ok || !inScope(p, cleaned) {
			continue
		}
		if err := db.Delete(p); err != nil {
			logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
			continue
		}
		stats.Removed++
		logger.Debug("sync: removed stale", slog.String("path", p))
	}

	if ls, ok := src.(storage.ScopeLister); ok {
		all, err := ls.Scopes()
		if err != nil {
			return stats, err
		}
		var kept []string
		for _, sc := range all {
			if inScope(sc, cleaned) {
				kept = append(kept, sc)
			}
		}
		if err := db.ReplaceScopes(cleaned, kept); err != nil {
			return stats, err
		}
		stats.Scopes = len(kept)
	}

	return stats, nil
}

func inScope(relPath, scope string) bool {
	return scope == "" || strings.HasPrefix(relPath, scope+"/")
}
