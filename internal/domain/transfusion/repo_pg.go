package transfusion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hemorec/hemorec/internal/domain/patient"
	"github.com/hemorec/hemorec/internal/platform/apperr"
	"github.com/hemorec/hemorec/internal/platform/db"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *repoPG) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithinTx(ctx, r.pool, fn)
}

func (r *repoPG) LockCode(ctx context.Context, code string) error {
	_, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, "transfusion:"+patient.CanonicalCode(code))
	if err != nil {
		return fmt.Errorf("lock transfusion code: %w", err)
	}
	return nil
}

const transfusionCols = `t.id, t.code, t.patient_code, t.transfusion_date, t.local,
	t.bags, t.tags, t.notes, t.code_tokens, t.logs, t.created_at, t.updated_at`

func scanTransfusion(row pgx.Row) (*Transfusion, error) {
	var t Transfusion
	var date time.Time
	err := row.Scan(&t.ID, &t.Code, &t.PatientCode, &date, &t.Local,
		&t.Bags, &t.Tags, &t.Text, &t.CodeTokens, &t.Logs, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan transfusion: %w", err)
	}
	t.Date = Date{date}
	return &t, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Transfusion, error) {
	return scanTransfusion(r.conn(ctx).QueryRow(ctx,
		`SELECT `+transfusionCols+` FROM transfusions t WHERE t.id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Transfusion, error) {
	return scanTransfusion(r.conn(ctx).QueryRow(ctx,
		`SELECT `+transfusionCols+` FROM transfusions t WHERE t.canonical_code = $1`,
		patient.CanonicalCode(code)))
}

func (r *repoPG) Put(ctx context.Context, t *Transfusion) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO transfusions (id, code, canonical_code, patient_code, patient_canonical_code,
			transfusion_date, local, bags, tags, notes, code_tokens, logs, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			canonical_code = EXCLUDED.canonical_code,
			patient_code = EXCLUDED.patient_code,
			patient_canonical_code = EXCLUDED.patient_canonical_code,
			transfusion_date = EXCLUDED.transfusion_date,
			local = EXCLUDED.local,
			bags = EXCLUDED.bags,
			tags = EXCLUDED.tags,
			notes = EXCLUDED.notes,
			code_tokens = EXCLUDED.code_tokens,
			logs = EXCLUDED.logs,
			updated_at = EXCLUDED.updated_at`,
		t.ID, t.Code, patient.CanonicalCode(t.Code), t.PatientCode, patient.CanonicalCode(t.PatientCode),
		t.Date.Time, t.Local, t.Bags, t.Tags, t.Text, t.CodeTokens, t.Logs, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put transfusion: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM transfusions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete transfusion: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Transfusion, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM transfusions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transfusions: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+transfusionCols+` FROM transfusions t
		 ORDER BY t.updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transfusions: %w", err)
	}
	defer rows.Close()
	return collectTransfusions(rows, total)
}

// searchClause maps a field to its containment condition. Patient fields
// match through the join on the referenced patient record.
func searchClause(field SearchField, arg int) string {
	switch field {
	case SearchByPatientCode:
		return fmt.Sprintf("p.code_tokens @> ARRAY[$%d]::text[]", arg)
	case SearchByPatientName:
		return fmt.Sprintf("p.name_tokens @> ARRAY[$%d]::text[]", arg)
	default:
		return fmt.Sprintf("t.code_tokens @> ARRAY[$%d]::text[]", arg)
	}
}

func needsPatientJoin(matches []TokenMatch) bool {
	for _, m := range matches {
		if m.Field == SearchByPatientCode || m.Field == SearchByPatientName {
			return true
		}
	}
	return false
}

func (r *repoPG) Search(ctx context.Context, matches []TokenMatch, limit, offset int) ([]*Transfusion, int, error) {
	if len(matches) == 0 {
		return nil, 0, nil
	}

	from := "FROM transfusions t"
	if needsPatientJoin(matches) {
		from += " JOIN patients p ON p.canonical_code = t.patient_canonical_code"
	}

	where := ""
	args := make([]interface{}, 0, len(matches)+2)
	for i, m := range matches {
		if i > 0 {
			where += " OR "
		}
		where += searchClause(m.Field, i+1)
		args = append(args, m.Token)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) `+from+` WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count transfusion search: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s %s WHERE %s ORDER BY t.updated_at DESC LIMIT $%d OFFSET $%d`,
		transfusionCols, from, where, len(matches)+1, len(matches)+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search transfusions: %w", err)
	}
	defer rows.Close()
	return collectTransfusions(rows, total)
}

func collectTransfusions(rows pgx.Rows, total int) ([]*Transfusion, int, error) {
	var items []*Transfusion
	for rows.Next() {
		t, err := scanTransfusion(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate transfusions: %w", err)
	}
	return items, total, nil
}

func (r *repoPG) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM transfusions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count transfusions: %w", err)
	}
	return n, nil
}

func (r *repoPG) CountByTag(ctx context.Context, tag string) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM transfusions WHERE tags @> ARRAY[$1]::text[]`, tag).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transfusions by tag: %w", err)
	}
	return n, nil
}

func (r *repoPG) PatientCodeByKey(ctx context.Context, key uuid.UUID) (string, error) {
	var code string
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT code FROM patients WHERE id = $1`, key).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve patient key: %w", err)
	}
	return code, nil
}

func (r *repoPG) PatientExists(ctx context.Context, patientCode string) (bool, error) {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id FROM patients WHERE canonical_code = $1 FOR SHARE`,
		patient.CanonicalCode(patientCode)).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check patient exists: %w", err)
	}
	return true, nil
}
