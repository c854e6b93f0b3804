package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
)

// AppointmentRepo implements AppointmentRepository using PostgreSQL.
type AppointmentRepo struct{ db *DB }

// NewAppointmentRepo constructs an appointment repository.
func NewAppointmentRepo(db *DB) *AppointmentRepo { return &AppointmentRepo{db: db} }

const appointmentCols = `id, patient_id, doctor_id, scheduled_at, status`

// Create inserts a new appointment. The patient row is share-locked and must
// be active, which serialises the insert against PatientRepo.Deactivate. The
// (doctor_id, scheduled_at) constraint is the only slot check; a violation
// rolls the transaction back and is reported as errs.ErrConflict.
func (r *AppointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	const lockPatient = `SELECT 1 FROM patients WHERE id = $1 AND is_active FOR SHARE`
	const q = `
INSERT INTO appointments (patient_id, doctor_id, scheduled_at, status)
VALUES ($1, $2, $3, $4)
RETURNING id`
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}
	err := r.db.inTx(ctx, func(tx pgx.Tx) error {
		var one int
		if err := tx.QueryRow(ctx, lockPatient, a.PatientID).Scan(&one); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return errs.ErrNotFound
			}
			return err
		}
		return tx.QueryRow(ctx, q, a.PatientID, a.DoctorID, a.ScheduledAt, string(a.Status)).Scan(&a.ID)
	})
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err):
		return errs.ErrConflict
	case isForeignKeyViolation(err):
		return errs.ErrNotFound
	default:
		return err
	}
}

// GetByID selects an appointment by ID.
func (r *AppointmentRepo) GetByID(ctx context.Context, id int64) (*model.Appointment, error) {
	const q = `SELECT ` + appointmentCols + ` FROM appointments WHERE id=$1`
	return scanAppointment(r.db.Pool.QueryRow(ctx, q, id))
}

// Transition moves an appointment from status `from` to `to`. A row in another
// status yields errs.ErrInvalid; a missing row errs.ErrNotFound.
func (r *AppointmentRepo) Transition(ctx context.Context, id int64, from, to model.AppointmentStatus) error {
	const upd = `UPDATE appointments SET status = $3 WHERE id = $1 AND status = $2`
	tag, err := r.db.Pool.Exec(ctx, upd, id, string(from), string(to))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: appointment is %s, not %s", errs.ErrInvalid, cur.Status, from)
}

// ListByPatient returns a patient's appointments ordered by scheduled time.
func (r *AppointmentRepo) ListByPatient(ctx context.Context, patientID int64) ([]model.Appointment, error) {
	const q = `SELECT ` + appointmentCols + ` FROM appointments WHERE patient_id=$1 ORDER BY scheduled_at, id`
	rows, err := r.db.Pool.Query(ctx, q, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var (
		a      model.Appointment
		status string
	)
	if err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.ScheduledAt, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, err
	}
	a.Status = model.AppointmentStatus(status)
	return &a, nil
}
