package progress

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

const (
	kindViewed  = "viewed"
	kindUpdated = "updated"
)

const schema = `
CREATE TABLE IF NOT EXISTS progress (
	image_id   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (image_id, kind)
)`

// SQLite keeps progress in a SQLite database file.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer at a time; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create progress table: %w", err)
	}
	logger.Info("progress.sqlite.open", "path", path)
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Load(ctx context.Context) (Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT image_id, kind FROM progress`)
	if err != nil {
		return Record{}, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()
	rec := NewRecord()
	for rows.Next() {
		var id, kind string
		if err := rows.Scan(&id, &kind); err != nil {
			return Record{}, fmt.Errorf("scan progress: %w", err)
		}
		switch kind {
		case kindViewed:
			rec.MarkViewed(id)
		case kindUpdated:
			rec.MarkUpdated(id)
		}
	}
	return rec, rows.Err()
}

func (s *SQLite) MarkViewed(ctx context.Context, id string) error {
	return s.insert(ctx, id, kindViewed)
}

func (s *SQLite) MarkUpdated(ctx context.Context, id string) error {
	return s.insert(ctx, id, kindUpdated)
}

func (s *SQLite) insert(ctx context.Context, id, kind string) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO progress (image_id, kind) VALUES (?, ?)`, id, kind)
	if err != nil {
		return fmt.Errorf("mark %s %q: %w", kind, id, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Debug("progress.mark", "id", id, "kind", kind)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
