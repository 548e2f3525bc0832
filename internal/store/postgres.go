package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscore/internal/db"
	"github.com/sells-group/leadscore/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgClaimLeads = `SELECT ` + leadColumns + ` FROM leads
		WHERE NOT is_processed
		ORDER BY created_at, id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`

	pgApplyScore = `UPDATE leads
		SET score = $1, score_reason = $2, is_processed = true, processed_at = $3, offer_id = $4
		WHERE id = $5 AND NOT is_processed`

	pgRecentProcessed = `SELECT id, name, email, company, score, offer_id, processed_at FROM leads
		WHERE is_processed
		ORDER BY processed_at DESC, id DESC
		LIMIT $1`

	pgLeadCounts = `SELECT
		count(*),
		count(*) FILTER (WHERE is_processed),
		count(*) FILTER (WHERE is_processed AND score >= 70),
		count(*) FILTER (WHERE is_processed AND score >= 40 AND score < 70),
		count(*) FILTER (WHERE is_processed AND score < 40),
		COALESCE(sum(score) FILTER (WHERE is_processed), 0)
		FROM leads`
)

// preparedStatements lists queries to prepare on each new connection for
// the hot paths of a scoring batch and the summary report.
var preparedStatements = map[string]string{
	"claim_leads":      pgClaimLeads,
	"apply_score":      pgApplyScore,
	"recent_processed": pgRecentProcessed,
	"lead_counts":      pgLeadCounts,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				// Tables may not exist before the first migrate.
				zap.L().Debug("postgres: skip prepare", zap.String("statement", name), zap.Error(err))
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS offers (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL CHECK (char_length(name) BETWEEN 3 AND 100),
	value_props     JSONB NOT NULL CHECK (jsonb_array_length(value_props) > 0),
	ideal_use_cases JSONB NOT NULL CHECK (jsonb_array_length(ideal_use_cases) > 0),
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
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
	is_processed BOOLEAN NOT NULL DEFAULT false,
	processed_at TIMESTAMPTZ,
	offer_id     TEXT REFERENCES offers(id) ON DELETE RESTRICT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT leads_processing_state CHECK (
		(is_processed AND processed_at IS NOT NULL AND offer_id IS NOT NULL AND score_reason <> '')
		OR (NOT is_processed AND score = 0 AND offer_id IS NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_leads_unprocessed ON leads(created_at, id) WHERE NOT is_processed;
CREATE INDEX IF NOT EXISTS idx_leads_processed_at ON leads(processed_at DESC) WHERE is_processed;
CREATE INDEX IF NOT EXISTS idx_leads_offer_id ON leads(offer_id);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// --- Leads ---

var leadInsertColumns = []string{
	"id", "name", "email", "role", "industry", "company", "linkedin", "phone", "created_at",
}

func (s *PostgresStore) InsertLeads(ctx context.Context, leads []model.Lead) (model.InsertResult, error) {
	if len(leads) == 0 {
		return model.InsertResult{}, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, len(leads))
	for i, l := range leads {
		created := l.CreatedAt
		if created.IsZero() {
			created = now
		}
		rows[i] = []any{l.ID, l.Name, l.Email, l.Role, l.Industry, l.Company, l.LinkedIn, l.Phone, created}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return model.InsertResult{}, eris.Wrap(err, "postgres: insert leads: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	inserted, err := db.BulkInsertIgnore(ctx, tx, db.InsertIgnoreConfig{
		Table:        "leads",
		Columns:      leadInsertColumns,
		ConflictKeys: []string{"email"},
		Returning:    "email",
	}, rows)
	if err != nil {
		return model.InsertResult{}, eris.Wrap(err, "postgres: insert leads")
	}
	if err := tx.Commit(ctx); err != nil {
		return model.InsertResult{}, eris.Wrapf(model.ErrStorageTransaction, "postgres: insert leads: commit: %v", err)
	}
	return buildInsertResult(leads, inserted), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(row rowScanner) (model.Lead, error) {
	var l model.Lead
	var offerID *string
	err := row.Scan(&l.ID, &l.Name, &l.Email, &l.Role, &l.Industry, &l.Company, &l.LinkedIn, &l.Phone,
		&l.Score, &l.ScoreReason, &l.IsProcessed, &l.ProcessedAt, &offerID, &l.CreatedAt)
	if offerID != nil {
		l.OfferID = *offerID
	}
	return l, err
}

func collectLeads(rows pgx.Rows) ([]model.Lead, error) {
	defer rows.Close()
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, int, error) {
	filter = filter.Normalize()
	where, args := leadWhere(filter, pgPlaceholder)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM leads`+where, args...).Scan(&total); err != nil {
		return nil, 0, eris.Wrap(err, "postgres: count leads")
	}

	query := `SELECT ` + leadColumns + ` FROM leads` + where + orderClause(filter) +
		fmt.Sprintf(` LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	rows, err := s.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, eris.Wrap(err, "postgres: list leads")
	}
	leads, err := collectLeads(rows)
	if err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: lead %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return &l, nil
}

func (s *PostgresStore) DeleteLead(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM leads WHERE id = $1`, id)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete lead %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "postgres: lead %s", id)
	}
	return nil
}

// --- Offers ---

const offerColumns = `id, name, value_props, ideal_use_cases, created_at, updated_at`

func scanOffer(row rowScanner) (model.Offer, error) {
	var o model.Offer
	var props, cases []byte
	if err := row.Scan(&o.ID, &o.Name, &props, &cases, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	if err := json.Unmarshal(props, &o.ValueProps); err != nil {
		return o, eris.Wrap(err, "unmarshal value_props")
	}
	if err := json.Unmarshal(cases, &o.IdealUseCases); err != nil {
		return o, eris.Wrap(err, "unmarshal ideal_use_cases")
	}
	return o, nil
}

// prepareOffer normalizes, validates and encodes an offer for writing.
func prepareOffer(o *model.Offer) (props, cases []byte, err error) {
	o.Normalize()
	if err := o.Validate(); err != nil {
		return nil, nil, err
	}
	if props, err = json.Marshal(o.ValueProps); err != nil {
		return nil, nil, eris.Wrap(err, "marshal value_props")
	}
	if cases, err = json.Marshal(o.IdealUseCases); err != nil {
		return nil, nil, eris.Wrap(err, "marshal ideal_use_cases")
	}
	return props, cases, nil
}

func (s *PostgresStore) CreateOffer(ctx context.Context, offer model.Offer) (*model.Offer, error) {
	props, cases, err := prepareOffer(&offer)
	if err != nil {
		return nil, err
	}
	if offer.ID == "" {
		offer.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	offer.CreatedAt, offer.UpdatedAt = now, now

	_, err = s.pool.Exec(ctx,
		`INSERT INTO offers (`+offerColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		offer.ID, offer.Name, props, cases, now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert offer")
	}
	return &offer, nil
}

func (s *PostgresStore) UpdateOffer(ctx context.Context, offer model.Offer) (*model.Offer, error) {
	props, cases, err := prepareOffer(&offer)
	if err != nil {
		return nil, err
	}
	offer.UpdatedAt = time.Now().UTC()

	err = s.pool.QueryRow(ctx,
		`UPDATE offers SET name = $1, value_props = $2, ideal_use_cases = $3, updated_at = $4
		 WHERE id = $5 RETURNING created_at`,
		offer.Name, props, cases, offer.UpdatedAt, offer.ID,
	).Scan(&offer.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: offer %s", offer.ID)
		}
		return nil, eris.Wrapf(err, "postgres: update offer %s", offer.ID)
	}
	return &offer, nil
}

func (s *PostgresStore) GetOffer(ctx context.Context, id string) (*model.Offer, error) {
	o, err := scanOffer(s.pool.QueryRow(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Wrapf(model.ErrNotFound, "postgres: offer %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get offer %s", id)
	}
	return &o, nil
}

func (s *PostgresStore) ListOffers(ctx context.Context) ([]model.Offer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+offerColumns+` FROM offers ORDER BY created_at, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list offers")
	}
	defer rows.Close()

	var offers []model.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan offer")
		}
		offers = append(offers, o)
	}
	return offers, eris.Wrap(rows.Err(), "postgres: iterate offers")
}

func pgPlaceholder(n int) string { return fmt.Sprintf("$%d", n) }

// pgForeignKeyViolation is the SQLSTATE raised by ON DELETE RESTRICT.
const pgForeignKeyViolation = "23503"

func (s *PostgresStore) DeleteOffer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM offers WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return eris.Wrapf(model.ErrOfferInUse, "postgres: delete offer %s", id)
		}
		return eris.Wrapf(err, "postgres: delete offer %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(model.ErrNotFound, "postgres: offer %s", id)
	}
	return nil
}

// --- Reporting ---

func (s *PostgresStore) LeadCounts(ctx context.Context) (model.LeadCounts, error) {
	var c model.LeadCounts
	err := s.pool.QueryRow(ctx, pgLeadCounts).Scan(&c.Total, &c.Processed, &c.High, &c.Medium, &c.Low, &c.ScoreSum)
	return c, eris.Wrap(err, "postgres: lead counts")
}

func (s *PostgresStore) RecentProcessed(ctx context.Context, n int) ([]model.RecentLead, error) {
	rows, err := s.pool.Query(ctx, pgRecentProcessed, n)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent processed")
	}
	defer rows.Close()

	recent := []model.RecentLead{}
	for rows.Next() {
		var r model.RecentLead
		var offerID *string
		if err := rows.Scan(&r.ID, &r.Name, &r.Email, &r.Company, &r.Score, &offerID, &r.ProcessedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan recent lead")
		}
		if offerID != nil {
			r.OfferID = *offerID
		}
		recent = append(recent, r)
	}
	return recent, eris.Wrap(rows.Err(), "postgres: iterate recent leads")
}

// --- Batches ---

// pgBatch is a UnitOfWork over one pgx transaction. Claimed rows stay
// locked until Commit or Rollback.
type pgBatch struct {
	tx pgx.Tx
}

func (s *PostgresStore) BeginBatch(ctx context.Context) (UnitOfWork, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin batch")
	}
	return &pgBatch{tx: tx}, nil
}

func (b *pgBatch) ClaimUnprocessedLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	rows, err := b.tx.Query(ctx, pgClaimLeads, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim leads")
	}
	return collectLeads(rows)
}

func (b *pgBatch) ApplyScore(ctx context.Context, leadID string, u model.ScoreUpdate) error {
	if err := validateUpdate(u); err != nil {
		return err
	}
	return db.WithSavepoint(ctx, db.PgxExec(b.tx), "lead_score", func() error {
		tag, err := b.tx.Exec(ctx, pgApplyScore, u.Score, u.ScoreReason, u.ProcessedAt, u.OfferID, leadID)
		if err != nil {
			return eris.Wrapf(err, "postgres: apply score %s", leadID)
		}
		if tag.RowsAffected() == 0 {
			return eris.Wrapf(model.ErrNotFound, "postgres: unprocessed lead %s", leadID)
		}
		return nil
	})
}

func (b *pgBatch) Commit(ctx context.Context) error {
	if err := b.tx.Commit(ctx); err != nil {
		return eris.Wrapf(model.ErrStorageTransaction, "postgres: commit batch: %v", err)
	}
	return nil
}

func (b *pgBatch) Rollback(ctx context.Context) error {
	err := b.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return eris.Wrap(err, "postgres: rollback batch")
	}
	return nil
}

// validateUpdate rejects a transition that would break the processed-lead
// invariants before it reaches the database.
func validateUpdate(u model.ScoreUpdate) error {
	switch {
	case u.Score < 0 || u.Score > model.MaxScore:
		return eris.Wrapf(model.ErrValidation, "score %d out of range", u.Score)
	case strings.TrimSpace(u.ScoreReason) == "":
		return eris.Wrap(model.ErrValidation, "score reason is required")
	case u.OfferID == "":
		return eris.Wrap(model.ErrValidation, "offer id is required")
	case u.ProcessedAt.IsZero():
		return eris.Wrap(model.ErrValidation, "processed_at is required")
	}
	return nil
}
