package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// InsertIgnoreConfig defines the parameters for a bulk insert that skips
// rows violating a unique constraint.
type InsertIgnoreConfig struct {
	Table        string   // target table (e.g., "public.leads")
	Columns      []string // all columns being inserted
	ConflictKeys []string // columns forming the unique constraint
	Returning    string   // column echoed back for each inserted row
}

// BulkInsertIgnore loads rows through a temp table and inserts them with
// ON CONFLICT DO NOTHING. It returns the Returning column of every row that
// was actually inserted. Rows that collide with existing data, or with an
// earlier row in the same batch, are skipped.
//
// It must run inside a transaction; the temp table is dropped on commit.
func BulkInsertIgnore(ctx context.Context, tx Querier, cfg InsertIgnoreConfig, rows [][]any) ([]string, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	if len(cfg.Columns) == 0 {
		return nil, eris.New("db: insert: no columns specified")
	}
	if len(cfg.ConflictKeys) == 0 {
		return nil, eris.New("db: insert: no conflict keys specified")
	}
	if cfg.Returning == "" {
		return nil, eris.New("db: insert: no returning column specified")
	}

	tempTable := fmt.Sprintf("_tmp_insert_%s", strings.ReplaceAll(cfg.Table, ".", "_"))

	createSQL := fmt.Sprintf(
		"CREATE TEMP TABLE IF NOT EXISTS %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP",
		pgx.Identifier{tempTable}.Sanitize(),
		sanitizeTable(cfg.Table),
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return nil, eris.Wrapf(err, "db: insert: create temp table for %s", cfg.Table)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tempTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return nil, eris.Wrapf(err, "db: insert: COPY into temp table for %s", cfg.Table)
	}

	colList := quoteAndJoin(cfg.Columns)
	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO NOTHING RETURNING %s",
		sanitizeTable(cfg.Table),
		colList,
		colList,
		pgx.Identifier{tempTable}.Sanitize(),
		quoteAndJoin(cfg.ConflictKeys),
		pgx.Identifier{cfg.Returning}.Sanitize(),
	)

	res, err := tx.Query(ctx, insertSQL)
	if err != nil {
		return nil, eris.Wrapf(err, "db: insert: INSERT ON CONFLICT for %s", cfg.Table)
	}
	inserted, err := pgx.CollectRows(res, pgx.RowTo[string])
	if err != nil {
		return nil, eris.Wrapf(err, "db: insert: collect returned keys for %s", cfg.Table)
	}

	// Clear the staging rows so a second call in the same transaction starts empty.
	if _, err := tx.Exec(ctx, "TRUNCATE "+pgx.Identifier{tempTable}.Sanitize()); err != nil {
		return nil, eris.Wrapf(err, "db: insert: truncate temp table for %s", cfg.Table)
	}
	return inserted, nil
}

// sanitizeTable handles schema-qualified table names like "public.leads".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
