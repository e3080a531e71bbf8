// Package postgres stores the ledger in two relational tables.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/user/tablemagnifier/internal/entity"
	"github.com/user/tablemagnifier/internal/repository"
)

const schema = `
CREATE TABLE IF NOT EXISTS source_records (
	origin_id    INTEGER PRIMARY KEY,
	source_ref   TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL DEFAULT '',
	artifact_ref TEXT NOT NULL DEFAULT '',
	table_count  INTEGER NOT NULL DEFAULT 0,
	processed_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS table_records (
	origin_id        INTEGER NOT NULL REFERENCES source_records (origin_id) ON DELETE CASCADE,
	table_index      INTEGER NOT NULL,
	image_ref        TEXT NOT NULL,
	row_count        INTEGER NOT NULL DEFAULT 0,
	col_count        INTEGER NOT NULL DEFAULT 0,
	pixel_width      INTEGER NOT NULL DEFAULT 0,
	pixel_height     INTEGER NOT NULL DEFAULT 0,
	position_tag     TEXT NOT NULL DEFAULT '',
	preview_text     TEXT NOT NULL DEFAULT '',
	detection_method TEXT NOT NULL,
	PRIMARY KEY (origin_id, table_index)
);`

const (
	selectSources = `SELECT origin_id, source_ref, title, artifact_ref, table_count, processed_at
		FROM source_records ORDER BY origin_id`
	selectTables = `SELECT origin_id, table_index, image_ref, row_count, col_count, pixel_width, pixel_height,
		position_tag, preview_text, detection_method
		FROM table_records ORDER BY origin_id, table_index`
	insertSource = `INSERT INTO source_records (origin_id, source_ref, title, artifact_ref, table_count, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	insertTable = `INSERT INTO table_records (origin_id, table_index, image_ref, row_count, col_count, pixel_width, pixel_height,
		position_tag, preview_text, detection_method)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
)

// LedgerStore is a repository.LedgerStore over PostgreSQL.
type LedgerStore struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewLedgerStore connects to connStr and creates the ledger tables if needed.
func NewLedgerStore(ctx context.Context, connStr string, logger *zap.Logger) (*LedgerStore, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if _, err := db.Exec(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger schema: %w", err)
	}
	return &LedgerStore{db: db, logger: logger}, nil
}

func (s *LedgerStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *LedgerStore) Close() {
	s.db.Close()
}

func (s *LedgerStore) Load(ctx context.Context) (entity.LedgerSnapshot, error) {
	var snap entity.LedgerSnapshot

	rows, err := s.db.Query(ctx, selectSources)
	if err != nil {
		return snap, err
	}
	snap.Sources, err = collect(rows, scanSource)
	if err != nil {
		return snap, err
	}

	rows, err = s.db.Query(ctx, selectTables)
	if err != nil {
		return snap, err
	}
	snap.Tables, err = collect(rows, scanTable)
	if err != nil {
		return snap, err
	}

	if len(snap.Sources) == 0 && len(snap.Tables) == 0 {
		return snap, repository.ErrLedgerNotFound
	}
	return snap, nil
}

// Save replaces both tables with snap inside one transaction.
func (s *LedgerStore) Save(ctx context.Context, snap entity.LedgerSnapshot) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE table_records, source_records`); err != nil {
		return err
	}

	if len(snap.Sources) > 0 {
		batch := &pgx.Batch{}
		for _, src := range snap.Sources {
			batch.Queue(insertSource, sourceArgs(src)...)
		}
		for _, tbl := range snap.Tables {
			batch.Queue(insertTable, tableArgs(tbl)...)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.logger.Debug("Saved ledger to postgres",
		zap.Int("sources", len(snap.Sources)),
		zap.Int("tables", len(snap.Tables)))
	return nil
}

func sourceArgs(s entity.SourceRecord) []any {
	return []any{s.OriginID, s.SourceRef, s.Title, s.ArtifactRef, s.TableCount, s.ProcessedAt}
}

func tableArgs(t entity.TableRecord) []any {
	return []any{
		t.OriginID, t.TableIndex, t.ImageRef, t.Rows, t.Cols, t.PixelWidth, t.PixelHeight,
		t.PositionTag, t.PreviewText, string(t.DetectionMethod),
	}
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanSource(row pgx.Row) (entity.SourceRecord, error) {
	var s entity.SourceRecord
	var at time.Time
	err := row.Scan(&s.OriginID, &s.SourceRef, &s.Title, &s.ArtifactRef, &s.TableCount, &at)
	s.ProcessedAt = at.UTC()
	return s, err
}

func scanTable(row pgx.Row) (entity.TableRecord, error) {
	var t entity.TableRecord
	var method string
	err := row.Scan(&t.OriginID, &t.TableIndex, &t.ImageRef, &t.Rows, &t.Cols, &t.PixelWidth, &t.PixelHeight,
		&t.PositionTag, &t.PreviewText, &method)
	if err != nil {
		return t, err
	}
	t.DetectionMethod, err = entity.ParseDetectionMethod(method)
	return t, err
}
