package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
)

// PatientRepo implements PatientRepository using PostgreSQL.
type PatientRepo struct{ db *DB }

// NewPatientRepo constructs a patient repository.
func NewPatientRepo(db *DB) *PatientRepo { return &PatientRepo{db: db} }

const patientCols = `id, full_name, birth_date, cpf, pwd_hash, gender, phone_number, address,
email, blood_type, known_allergies, role, is_active, version_id`

// updatableColumns whitelists the columns ApplyChanges may write.
var updatableColumns = map[string]bool{
	"full_name":       true,
	"birth_date":      true,
	"gender":          true,
	"phone_number":    true,
	"address":         true,
	"email":           true,
	"blood_type":      true,
	"known_allergies": true,
}

// Create inserts a new patient row; store-side defaults set role, is_active and version_id.
func (r *PatientRepo) Create(ctx context.Context, p *model.Patient) error {
	const q = `
INSERT INTO patients (full_name, birth_date, cpf, pwd_hash, gender, phone_number, address,
                      email, blood_type, known_allergies)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id, role, is_active, version_id`
	err := r.db.Pool.QueryRow(ctx, q,
		p.FullName, p.BirthDate, p.CPF, p.PwdHash, p.Gender, p.PhoneNumber, p.Address,
		p.Email, p.BloodType, p.KnownAllergies,
	).Scan(&p.ID, &p.Role, &p.IsActive, &p.VersionID)
	if isUniqueViolation(err) {
		return errs.ErrConflict
	}
	return err
}

// GetByID selects a patient by ID.
func (r *PatientRepo) GetByID(ctx context.Context, id int64) (*model.Patient, error) {
	const q = `SELECT ` + patientCols + ` FROM patients WHERE id=$1`
	return scanPatient(r.db.Pool.QueryRow(ctx, q, id))
}

// GetByCPF selects a patient by CPF.
func (r *PatientRepo) GetByCPF(ctx context.Context, cpf string) (*model.Patient, error) {
	const q = `SELECT ` + patientCols + ` FROM patients WHERE cpf=$1`
	return scanPatient(r.db.Pool.QueryRow(ctx, q, cpf))
}

// Search returns patients matching all set filters, ordered by id.
func (r *PatientRepo) Search(ctx context.Context, f model.PatientFilter) ([]model.Patient, error) {
	var (
		conds []string
		args  []any
	)
	if f.ID != nil {
		args = append(args, *f.ID)
		conds = append(conds, fmt.Sprintf("id = $%d", len(args)))
	}
	if f.CPF != nil {
		args = append(args, *f.CPF)
		conds = append(conds, fmt.Sprintf("cpf = $%d", len(args)))
	}
	if f.Name != nil {
		args = append(args, "%"+escapeLike(*f.Name)+"%")
		conds = append(conds, fmt.Sprintf("full_name ILIKE $%d", len(args)))
	}

	q := `SELECT ` + patientCols + ` FROM patients`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY id`

	rows, err := r.db.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ApplyChanges writes the audit entries, the new field values and the version
// bump in one transaction. The UPDATE is guarded by expectedVer: if another
// writer got there first no row matches and everything is rolled back.
func (r *PatientRepo) ApplyChanges(
	ctx context.Context, id, expectedVer int64, changes []model.FieldChange, changedBy string, at time.Time,
) (newVer int64, err error) {
	const hist = `
INSERT INTO patient_history (patient_id, field_name, old_value, new_value, changed_by, changed_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		sets := make([]string, 0, len(changes)+1)
		args := []any{id, expectedVer}
		for _, c := range changes {
			if !updatableColumns[c.Field] {
				return fmt.Errorf("%w: field %q is not updatable", errs.ErrInvalid, c.Field)
			}
			newValue := ""
			if c.NewValue != nil {
				newValue = *c.NewValue
			}
			if _, err := tx.Exec(ctx, hist, id, c.Field, c.OldValue, newValue, changedBy, at); err != nil {
				return err
			}
			args = append(args, c.NewValue)
			sets = append(sets, fmt.Sprintf("%s = $%d", c.Field, len(args)))
		}
		sets = append(sets, "version_id = version_id + 1")

		q := `UPDATE patients SET ` + strings.Join(sets, ", ") +
			` WHERE id = $1 AND version_id = $2 RETURNING version_id`
		if err := tx.QueryRow(ctx, q, args...).Scan(&newVer); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrVersionConflict
			}
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVer, nil
}

// Deactivate marks an active patient without scheduled appointments inactive
// and records why. The patient row is locked FOR UPDATE in its own statement,
// so the appointment check that follows runs on a fresh snapshot and a booking
// holding the share lock in AppointmentRepo.Create is either visible or waits.
func (r *PatientRepo) Deactivate(
	ctx context.Context, id int64, reason, by string, at time.Time,
) (out *model.PatientInactivation, err error) {
	const lock = `SELECT is_active FROM patients WHERE id = $1 FOR UPDATE`
	const pending = `SELECT EXISTS (SELECT 1 FROM appointments WHERE patient_id = $1 AND status = $2)`
	const upd = `UPDATE patients SET is_active = false WHERE id = $1`
	const ins = `
INSERT INTO patient_inactivations (patient_id, reason, inactivated_by, inactivated_at)
VALUES ($1, $2, $3, $4)
RETURNING id, inactivated_at`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		var active bool
		if err := tx.QueryRow(ctx, lock, id).Scan(&active); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		if !active {
			return errs.ErrNotFound
		}
		var blocked bool
		if err := tx.QueryRow(ctx, pending, id, string(model.StatusScheduled)).Scan(&blocked); err != nil {
			return err
		}
		if blocked {
			return errs.ErrBlocked
		}
		if _, err := tx.Exec(ctx, upd, id); err != nil {
			return err
		}

		rec := &model.PatientInactivation{PatientID: id, Reason: reason, InactivatedBy: by}
		if err := tx.QueryRow(ctx, ins, id, reason, by, at).Scan(&rec.ID, &rec.InactivatedAt); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a patient; history, inactivations and appointments cascade.
func (r *PatientRepo) Delete(ctx context.Context, id int64) error {
	const q = `DELETE FROM patients WHERE id = $1`
	tag, err := r.db.Pool.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}

// History returns the audit entries of a patient in insertion order.
func (r *PatientRepo) History(ctx context.Context, id int64) ([]model.PatientHistoryEntry, error) {
	const q = `
SELECT id, patient_id, field_name, old_value, new_value, changed_by, changed_at
FROM patient_history
WHERE patient_id = $1
ORDER BY id ASC`
	rows, err := r.db.Pool.Query(ctx, q, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PatientHistoryEntry
	for rows.Next() {
		var h model.PatientHistoryEntry
		if err := rows.Scan(&h.ID, &h.PatientID, &h.FieldName, &h.OldValue, &h.NewValue, &h.ChangedBy, &h.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanPatient(row pgx.Row) (*model.Patient, error) {
	var p model.Patient
	err := row.Scan(
		&p.ID, &p.FullName, &p.BirthDate, &p.CPF, &p.PwdHash, &p.Gender, &p.PhoneNumber, &p.Address,
		&p.Email, &p.BloodType, &p.KnownAllergies, &p.Role, &p.IsActive, &p.VersionID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string { return likeEscaper.Replace(s) }
