package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/leadscore/internal/db"
	"github.com/sells-group/leadscore/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
//
// Every transaction starts with BEGIN IMMEDIATE, so a scoring batch holds the
// database write lock from claim to commit and a concurrent batch waits for
// it (up to the busy timeout) before it can select.
type SQLiteStore struct {
	db *sql.DB
}

// sqliteParams are applied on every pooled connection.
var sqliteParams = url.Values{
	"_pragma": {
		"busy_timeout(5000)",
		"foreign_keys(1)",
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
	},
	"_time_format": {"sqlite"},
	"_txlock":      {"immediate"},
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(path string) (*SQLiteStore, error) {
	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?" + sqliteParams.Encode()
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: conn}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS offers (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL CHECK (length(name) BETWEEN 3 AND 100),
	value_props     TEXT NOT NULL CHECK (json_array_length(value_props) > 0),
	ideal_use_cases TEXT NOT NULL CHECK (json_array_length(ideal_use_cases) > 0),
	created_at      DATETIME NOT NULL,
	updated_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	email        TEXT NOT NULL UNIQUE,
	role         TEXT NOT NULL,
	industry     TEXT NOT NULL,
	company      TEXT NOT NULL DEFAULT '',
	linkedin     TEXT NOT NULL DEFAULT '',
	phone        TEXT NOT NULL DEFAULT '',
	score        INTEGER NOT NULL DEFAULT 0 CHECK (score BETWEEN 0 AND 100),
	score_reason TEXT NOT NULL DEFAULT '',
	is_processed BOOLEAN NOT NULL DEFAULT 0,
	processed_at DATETIME,
	offer_id     TEXT REFERENCES offers(id) ON DELETE RESTRICT,
	created_at   DATETIME NOT NULL,
	CHECK (
		(is_processed = 1 AND processed_at IS NOT NULL AND offer_id IS NOT NULL AND score_reason <> '')
		OR (is_processed = 0 AND score = 0 AND offer_id IS NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_leads_unprocessed ON leads(is_processed, created_at, id);
CREATE INDEX IF NOT EXISTS idx_leads_processed_at ON leads(processed_at);
CREATE INDEX IF NOT EXISTS idx_leads_offer_id ON leads(offer_id);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Leads ---

func (s *SQLiteStore) InsertLeads(ctx context.Context, leads []model.Lead) (model.InsertResult, error) {
	if len(leads) == 0 {
		return model.InsertResult{}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.InsertResult{}, eris.Wrap(err, "sqlite: insert leads: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO leads (id, name, email, role, industry, company, linkedin, phone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (email) DO NOTHING`)
	if err != nil {
		return model.InsertResult{}, eris.Wrap(err, "sqlite: prepare insert lead")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	res := model.InsertResult{Outcomes: make([]model.InsertOutcome, len(leads))}
	for i, l := range leads {
		created := l.CreatedAt
		if created.IsZero() {
			created = now
		}
		r, err := stmt.ExecContext(ctx, l.ID, l.Name, l.Email, l.Role, l.Industry, l.Company, l.LinkedIn, l.Phone, created.UTC())
		if err != nil {
			return model.InsertResult{}, eris.Wrapf(err, "sqlite: insert lead %s", l.Email)
		}
		n, err := r.RowsAffected()
		if err != nil {
			return model.InsertResult{}, eris.Wrap(err, "sqlite: rows affected")
		}
		status := model.InsertStatusDuplicate
		if n > 0 {
			status = model.InsertStatusInserted
		}
		res.Outcomes[i] = model.InsertOutcome{Email: l.Email, Status: status}
	}

	if err := tx.Commit(); err != nil {
		return model.InsertResult{}, eris.Wrapf(model.ErrStorageTransaction, "sqlite: insert leads: commit: %v", err)
	}
	return res, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteLead(row scannable) (model.Lead, error) {
	var l model.Lead
	var processedAt sql.NullTime
	var offerID sql.NullString
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Role, &l.Industry, &l.Company, &l.LinkedIn, &l.Phone,
		&l.Score, &l.ScoreReason, &l.IsProcessed, &processedAt, &offerID, &l.CreatedAt)
	if processedAt.Valid {
		t := processedAt.Time.UTC()
		l.ProcessedAt = &t
	}
	l.OfferID = offerID.String
	l.CreatedAt = l.CreatedAt.UTC()
	return l, err
}

func collectSQLiteLeads(rows *sql.Rows) ([]model.Lead, error) {
	defer rows.Close()
	var leads []model.Lead
	for rows.Next() {
		l, err := scanSQLiteLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

func sqlitePlaceholder(int) string { return "?" }

func (s *SQLiteStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, int, error) {
	filter = filter.Normalize()
	where, args := leadWhere(filter, sqlitePlaceholder)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: count leads")
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where + orderClause(filter) + ` LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sqlite: list leads")
	}
	leads, err := collectSQLiteLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanSQLiteLead(s.db.QueryRowContext(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: lead %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return &l, nil
}

func (s *SQLiteStore) DeleteLead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM leads WHERE id = ?`, id)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete lead %s", id)
	}
	return checkRowsAffected(res, "lead", id)
}

// --- Offers ---

func scanSQLiteOffer(row scannable) (model.Offer, error) {
	var o model.Offer
	var props, cases string
	if err := row.Scan(&o.ID, &o.Name, &props, &cases, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	if err := json.Unmarshal([]byte(props), &o.ValueProps); err != nil {
		return o, eris.Wrap(err, "unmarshal value_props")
	}
	if err := json.Unmarshal([]byte(cases), &o.IdealUseCases); err != nil {
		return o, eris.Wrap(err, "unmarshal ideal_use_cases")
	}
	o.CreatedAt, o.UpdatedAt = o.CreatedAt.UTC(), o.UpdatedAt.UTC()
	return o, nil
}

func (s *SQLiteStore) CreateOffer(ctx context.Context, offer model.Offer) (*model.Offer, error) {
	props, cases, err := prepareOffer(&offer)
	if err != nil {
		return nil, err
	}
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	offer.CreatedAt, offer.UpdatedAt = now, now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO offers (`+offerColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		offer.ID, offer.Name, string(props), string(cases), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert offer")
	}
	return &offer, nil
}

func (s *SQLiteStore) UpdateOffer(ctx context.Context, offer model.Offer) (*model.Offer, error) {
	props, cases, err := prepareOffer(&offer)
	if err != nil {
		return nil, err
	}
	offer.UpdatedAt = time.Now().UTC()

	err = s.db.QueryRowContext(ctx,
		`UPDATE offers SET name = ?, value_props = ?, ideal_use_cases = ?, updated_at = ?
		 WHERE id = ? RETURNING created_at`,
		offer.Name, string(props), string(cases), offer.UpdatedAt, offer.ID,
	).Scan(&offer.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: offer %s", offer.ID)
		}
		return nil, eris.Wrapf(err, "sqlite: update offer %s", offer.ID)
	}
	offer.CreatedAt = offer.CreatedAt.UTC()
	return &offer, nil
}

func (s *SQLiteStore) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	o, err := scanSQLiteOffer(s.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "sqlite: offer %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get offer %s", id)
	}
	return &o, nil
}

func (s *SQLiteStore) ListOffers(ctx context.Context) ([]model.Offer, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list offers")
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		o, err := scanSQLiteOffer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan offer")
		}
		offers = append(offers, o)
	}
	return offers, eris.Wrap(rows.Err(), "sqlite: iterate offers")
}

func (s *SQLiteStore) DeleteOffer(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM offers WHERE id = ?`, id)
	if err != nil {
		var se *sqlite.Error
		if errors.As(err, &se) && se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
			return eris.Wrapf(model.ErrOfferInUse, "sqlite: delete offer %s", id)
		}
		return eris.Wrapf(err, "sqlite: delete offer %s", id)
	}
	return checkRowsAffected(res, "offer", id)
}

// --- Reporting ---

func (s *SQLiteStore) LeadCounts(ctx context.Context) (model.LeadCounts, error) {
	var c model.LeadCounts
	err := s.db.QueryRowContext(ctx, `SELECT
		count(*),
		COALESCE(SUM(is_processed = 1), 0),
		COALESCE(SUM(is_processed = 1 AND score >= 70), 0),
		COALESCE(SUM(is_processed = 1 AND score >= 40 AND score < 70), 0),
		COALESCE(SUM(is_processed = 1 AND score < 40), 0),
		COALESCE(SUM(CASE WHEN is_processed = 1 THEN score END), 0)
		FROM leads`,
	).Scan(&c.Total, &c.Processed, &c.High, &c.Medium, &c.Low, &c.ScoreSum)
	return c, eris.Wrap(err, "sqlite: lead counts")
}

func (s *SQLiteStore) RecentProcessed(ctx context.Context, n int) ([]model.RecentLead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, company, score, offer_id, processed_at FROM leads
		 WHERE is_processed = 1
		 ORDER BY processed_at DESC, id DESC
		 LIMIT ?`, n)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent processed")
	}
	defer rows.Close()

	recent := []model.RecentLead{}
	for rows.Next() {
		var r model.RecentLead
		var offerID sql.NullString
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Company, &r.Score, &offerID, &r.ProcessedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan recent lead")
		}
		r.OfferID = offerID.String
		r.ProcessedAt = r.ProcessedAt.UTC()
		recent = append(recent, r)
	}
	return recent, eris.Wrap(rows.Err(), "sqlite: iterate recent leads")
}

// --- Batches ---

type sqliteBatch struct {
	tx *sql.Tx
}

func (s *SQLiteStore) BeginBatch(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin batch")
	}
	return &sqliteBatch{tx: tx}, nil
}

func (b *sqliteBatch) ClaimUnprocessedLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := b.tx.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads
		 WHERE is_processed = 0
		 ORDER BY created_at, id
		 LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim leads")
	}
	return collectSQLiteLeads(rows)
}

func (b *sqliteBatch) exec(ctx context.Context, query string) error {
	_, err := b.tx.ExecContext(ctx, query)
	return err
}

func (b *sqliteBatch) ApplyScore(ctx context.Context, leadID string, u model.ScoreUpdate) error {
	if err := validateUpdate(u); err != nil {
		return err
	}
	return db.WithSavepoint(ctx, b.exec, "lead_score", func() error {
		res, err := b.tx.ExecContext(ctx,
			`UPDATE leads
			 SET score = ?, score_reason = ?, is_processed = 1, processed_at = ?, offer_id = ?
			 WHERE id = ? AND is_processed = 0`,
			u.Score, u.ScoreReason, u.ProcessedAt.UTC(), u.OfferID, leadID)
		if err != nil {
			return eris.Wrapf(err, "sqlite: apply score %s", leadID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return eris.Wrap(err, "sqlite: rows affected")
		}
		if n == 0 {
			return eris.Wrapf(model.ErrNotFound, "sqlite: unprocessed lead %s", leadID)
		}
		return nil
	})
}

func (b *sqliteBatch) Commit(context.Context) error {
	if err := b.tx.Commit(); err != nil {
		return eris.Wrapf(model.ErrStorageTransaction, "sqlite: commit batch: %v", err)
	}
	return nil
}

func (b *sqliteBatch) Rollback(context.Context) error {
	err := b.tx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return eris.Wrap(err, "sqlite: rollback batch")
	}
	return nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
