package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"membership/internal/store"
)

const memberColumns = `id, name, birthday, phone, email, tag, gender,
	is_teenager, is_baptized, has_taken_communion, version, created_at, updated_at`

// Repository persists members in the SQL store.
type Repository struct {
	db  *store.DB
	now func() time.Time
}

// NewRepository creates a repo.
func NewRepository(db *store.DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMember(row scanner) (Member, error) {
	var (
		m                  Member
		created, updated   string
		birthday, phone    sql.NullString
		email, tag, gender sql.NullString
	)
	if err := row.Scan(&m.ID, &m.Name, &birthday, &phone, &email, &tag, &gender,
		&m.IsTeenager, &m.IsBaptized, &m.HasTakenCommunion, &m.Version, &created, &updated); err != nil {
		return Member{}, err
	}
	m.Birthday = nullString(birthday)
	m.Phone = nullString(phone)
	m.Email = nullString(email)
	m.Tag = nullString(tag)
	m.Gender = Gender(gender.String)
	m.CreatedAt, _ = time.Parse(store.TimeFormat, created)
	m.UpdatedAt, _ = time.Parse(store.TimeFormat, updated)
	return m, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullArg(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// List returns all members ordered by name.
func (r *Repository) List(ctx context.Context) ([]Member, error) {
	rows, err := r.db.Client.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

// Get returns a single member by id.
func (r *Repository) Get(ctx context.Context, id string) (Member, error) {
	row := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT `+memberColumns+` FROM members WHERE id = ?`), id)
	m, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Member{}, ErrNotFound
	}
	return m, err
}

// Exists reports whether a member with id is stored.
func (r *Repository) Exists(ctx context.Context, id string) (bool, error) {
	var n int
	err := r.db.Client.QueryRowContext(ctx, r.db.Rebind(`SELECT COUNT(*) FROM members WHERE id = ?`), id).Scan(&n)
	return n > 0, err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *Repository) insert(ctx context.Context, ex execer, f Fields) (Member, error) {
	now := r.now()
	m := Member{ID: uuid.NewString(), Fields: f.Normalize(), Version: 1, CreatedAt: now, UpdatedAt: now}
	_, err := ex.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO members (`+memberColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), m.ID, m.Name, nullArg(m.Birthday), nullArg(m.Phone), nullArg(m.Email), nullArg(m.Tag), string(m.Gender),
		m.IsTeenager, m.IsBaptized, m.HasTakenCommunion, m.Version,
		now.Format(store.TimeFormat), now.Format(store.TimeFormat))
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

// Insert writes a new member with a server assigned id.
func (r *Repository) Insert(ctx context.Context, f Fields) (Member, error) {
	return r.insert(ctx, r.db.Client, f)
}

// InsertMany writes every payload in one transaction; any failure inserts nothing.
func (r *Repository) InsertMany(ctx context.Context, fs []Fields) ([]Member, error) {
	out := make([]Member, 0, len(fs))
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		for i, f := range fs {
			m, err := r.insert(ctx, tx, f)
			if err != nil {
				return fmt.Errorf("insert row %d: %w", i+1, err)
			}
			out = append(out, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update overwrites a member in place. expectedVersion > 0 makes the write conditional.
func (r *Repository) Update(ctx context.Context, id string, f Fields, expectedVersion int) (Member, error) {
	f = f.Normalize()
	query := `
		UPDATE members
		SET name = ?, birthday = ?, phone = ?, email = ?, tag = ?, gender = ?,
			is_teenager = ?, is_baptized = ?, has_taken_communion = ?,
			version = version + 1, updated_at = ?
		WHERE id = ?`
	args := []any{f.Name, nullArg(f.Birthday), nullArg(f.Phone), nullArg(f.Email), nullArg(f.Tag), string(f.Gender),
		f.IsTeenager, f.IsBaptized, f.HasTakenCommunion, r.now().Format(store.TimeFormat), id}
	if expectedVersion > 0 {
		query += ` AND version = ?`
		args = append(args, expectedVersion)
	}

	res, err := r.db.Client.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return Member{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return Member{}, err
	} else if n == 0 {
		ok, err := r.Exists(ctx, id)
		if err != nil {
			return Member{}, err
		}
		if !ok {
			return Member{}, ErrNotFound
		}
		return Member{}, ErrConflict
	}
	return r.Get(ctx, id)
}

// Delete removes a member together with its attendance records and returns
// how many attendance records went with it.
func (r *Repository) Delete(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := r.db.InTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM attendance WHERE member_id = ?`), id)
		if err != nil {
			return err
		}
		if removed, err = res.RowsAffected(); err != nil {
			return err
		}
		res, err = tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM members WHERE id = ?`), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
