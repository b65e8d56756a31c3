package attendance

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"membership/internal/store"
)

// Repository persists attendance records keyed by (member, date).
type Repository struct {
	db  *store.DB
	now func() time.Time
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

const recordColumns = `member_id, attended_on, status, communion, updated_at`

func scanRecord(row interface{ Scan(...any) error }) (Record, error) {
	var (
		rec     Record
		status  string
		updated string
	)
	if err := row.Scan(&rec.MemberID, &rec.Date, &status, &rec.Communion, &updated); err != nil {
		return Record{}, err
	}
	rec.Status = Status(status)
	rec.UpdatedAt, _ = time.Parse(store.TimeFormat, updated)
	return rec, nil
}

// UpsertStatus sets the status of a member on a date. A new record starts
// without communion; an existing one keeps its communion flag.
func (r *Repository) UpsertStatus(ctx context.Context, memberID, date string, status Status) (Record, error) {
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance (`+recordColumns+`)
		VALUES (?, ?, ?, FALSE, ?)
		ON CONFLICT (member_id, attended_on) DO UPDATE SET
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`), memberID, date, string(status), r.now().Format(store.TimeFormat))
	if err != nil {
		return Record{}, err
	}
	return r.Get(ctx, memberID, date)
}

// UpsertCommunion sets the communion flag of a member on a date. A new record
// starts as absent; an existing one keeps its status.
func (r *Repository) UpsertCommunion(ctx context.Context, memberID, date string, communion bool) (Record, error) {
	_, err := r.db.Client.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO attendance (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (member_id, attended_on) DO UPDATE SET
			communion = EXCLUDED.communion,
			updated_at = EXCLUDED.updated_at
	`), memberID, date, string(Absent), communion, r.now().Format(store.TimeFormat))
	if err != nil {
		return Record{}, err
	}
	return r.Get(ctx, memberID, date)
}

// Get returns the record for a member on a date.
func (r *Repository) Get(ctx context.Context, memberID, date string) (Record, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`
		SELECT `+recordColumns+` FROM attendance WHERE member_id = ? AND attended_on = ?
	`), memberID, date)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

// List returns records matching the filter, newest date first.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance`
	var (
		clauses []string
		args    []any
	)
	if f.Date != "" {
		clauses = append(clauses, "attended_on = ?")
		args = append(args, f.Date)
	}
	if f.From != "" {
		clauses = append(clauses, "attended_on >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		clauses = append(clauses, "attended_on <= ?")
		args = append(args, f.To)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY attended_on DESC, member_id"

	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

// MarkedDates returns every date with at least one present record, ascending.
func (r *Repository) MarkedDates(ctx context.Context) ([]string, error) {
	rows, err := r.db.Client.QueryContext(ctx, r.db.Rebind(`
		SELECT DISTINCT attended_on FROM attendance WHERE status = ? ORDER BY attended_on
	`), string(Present))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}
