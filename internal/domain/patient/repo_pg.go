package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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
		`SELECT pg_advisory_xact_lock(hashtext($1))`, "patient:"+CanonicalCode(code))
	if err != nil {
		return fmt.Errorf("lock patient code: %w", err)
	}
	return nil
}

const patientCols = `id, code, canonical_code, name, blood_type, patient_type,
	name_tokens, code_tokens, logs, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var canonical string
	err := row.Scan(&p.ID, &p.Code, &canonical, &p.Name, &p.BloodType, &p.Type,
		&p.NameTokens, &p.CodeTokens, &p.Logs, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE canonical_code = $1`, CanonicalCode(code)))
}

func (r *repoPG) Put(ctx context.Context, p *Patient) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, code, canonical_code, name, blood_type, patient_type,
			name_tokens, code_tokens, logs, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			code = EXCLUDED.code,
			canonical_code = EXCLUDED.canonical_code,
			name = EXCLUDED.name,
			blood_type = EXCLUDED.blood_type,
			patient_type = EXCLUDED.patient_type,
			name_tokens = EXCLUDED.name_tokens,
			code_tokens = EXCLUDED.code_tokens,
			logs = EXCLUDED.logs,
			updated_at = EXCLUDED.updated_at`,
		p.ID, p.Code, CanonicalCode(p.Code), p.Name, p.BloodType, p.Type,
		p.NameTokens, p.CodeTokens, p.Logs, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put patient: %w", err)
	}
	return nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patients ORDER BY updated_at DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func tokenColumn(field SearchField) string {
	if field == SearchByCode {
		return "code_tokens"
	}
	return "name_tokens"
}

func (r *repoPG) Search(ctx context.Context, matches []TokenMatch, limit, offset int) ([]*Patient, int, error) {
	if len(matches) == 0 {
		return nil, 0, nil
	}

	where := ""
	args := make([]interface{}, 0, len(matches)+2)
	for i, m := range matches {
		if i > 0 {
			where += " OR "
		}
		where += fmt.Sprintf("%s @> ARRAY[$%d]::text[]", tokenColumn(m.Field), i+1)
		args = append(args, m.Token)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patients WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patient search: %w", err)
	}

	args = append(args, limit, offset)
	rows, err := r.conn(ctx).Query(ctx, fmt.Sprintf(
		`SELECT %s FROM patients WHERE %s ORDER BY updated_at DESC LIMIT $%d OFFSET $%d`,
		patientCols, where, len(matches)+1, len(matches)+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search patients: %w", err)
	}
	defer rows.Close()
	return collectPatients(rows, total)
}

func collectPatients(rows pgx.Rows, total int) ([]*Patient, int, error) {
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate patients: %w", err)
	}
	return items, total, nil
}

func (r *repoPG) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return n, nil
}

func (r *repoPG) Referenced(ctx context.Context, code string) (bool, error) {
	var referenced bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM transfusions WHERE patient_canonical_code = $1)`,
		CanonicalCode(code)).Scan(&referenced)
	if err != nil {
		return false, fmt.Errorf("check patient references: %w", err)
	}
	return referenced, nil
}
