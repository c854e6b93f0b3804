package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
)

// StaffRepo implements StaffRepository using PostgreSQL.
type StaffRepo struct{ db *DB }

// NewStaffRepo constructs a staff repository.
func NewStaffRepo(db *DB) *StaffRepo { return &StaffRepo{db: db} }

const staffCols = `id, username, cpf, pwd_hash, role`

// Create inserts a new staff row.
func (r *StaffRepo) Create(ctx context.Context, s *model.Staff) error {
	const q = `
INSERT INTO staff (username, cpf, pwd_hash, role)
VALUES ($1, $2, $3, $4)
RETURNING id`
	err := r.db.Pool.QueryRow(ctx, q, s.Username, s.CPF, s.PwdHash, s.Role).Scan(&s.ID)
	if name, ok := uniqueConstraint(err); ok {
		switch name {
		case "staff_username_key":
			return fmt.Errorf("%w: username already taken", errs.ErrConflict)
		case "staff_cpf_key":
			return fmt.Errorf("%w: CPF already registered", errs.ErrConflict)
		}
		return errs.ErrConflict
	}
	return err
}

// GetByID selects a staff member by ID.
func (r *StaffRepo) GetByID(ctx context.Context, id int64) (*model.Staff, error) {
	const q = `SELECT ` + staffCols + ` FROM staff WHERE id=$1`
	return scanStaff(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByCPF selects a staff member by CPF.
func (r *StaffRepo) GetByCPF(ctx context.Context, cpf string) (*model.Staff, error) {
	const q = `SELECT ` + staffCols + ` FROM staff WHERE cpf=$1`
	return scanStaff(r.db.Pool.QueryRow(ctx, q, cpf))
}

// List returns every staff member ordered by ID.
func (r *StaffRepo) List(ctx context.Context) ([]model.Staff, error) {
	const q = `SELECT ` + staffCols + ` FROM staff ORDER BY id`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanStaff(row pgx.Row) (*model.Staff, error) {
	var s model.Staff
	if err := row.Scan(&s.ID, &s.Username, &s.CPF, &s.PwdHash, &s.Role); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
