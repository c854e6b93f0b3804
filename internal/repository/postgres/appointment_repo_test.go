package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
)

var appointmentColumns = []string{"id", "patient_id", "doctor_id", "scheduled_at", "status"}

func expectPatientLock(mock pgxmock.PgxPoolIface, patientID int64) *pgxmock.ExpectedQuery {
	return mock.ExpectQuery(`SELECT 1 FROM patients WHERE id = \$1 AND is_active FOR SHARE`).
		WithArgs(patientID)
}

func TestAppointmentRepo_Create_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAppointmentRepo(db)
	when := time.Date(2030, 5, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectPatientLock(mock, 5).WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO appointments \(patient_id, doctor_id, scheduled_at, status\) VALUES \(\$1, \$2, \$3, \$4\) RETURNING id`).
		WithArgs(int64(5), int64(2), when, "SCHEDULED").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(11)))
	mock.ExpectCommit()

	a := &model.Appointment{PatientID: 5, DoctorID: 2, ScheduledAt: when}
	require.NoError(t, r.Create(context.Background(), a))
	require.Equal(t, int64(11), a.ID)
	require.Equal(t, model.StatusScheduled, a.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepo_Create_InactivePatient(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAppointmentRepo(db)

	mock.ExpectBegin()
	expectPatientLock(mock, 5).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := r.Create(context.Background(), &model.Appointment{PatientID: 5, DoctorID: 2, ScheduledAt: time.Now()})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepo_Create_SlotTakenRollsBack(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAppointmentRepo(db)
	when := time.Date(2030, 5, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectPatientLock(mock, 5).WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(int64(5), int64(2), when, "SCHEDULED").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_doctor_schedule"})
	mock.ExpectRollback()

	err := r.Create(context.Background(), &model.Appointment{PatientID: 5, DoctorID: 2, ScheduledAt: when})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepo_Create_CommitTimeViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAppointmentRepo(db)
	when := time.Date(2030, 5, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectPatientLock(mock, 5).WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(int64(5), int64(2), when, "SCHEDULED").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: "23505"})

	err := r.Create(context.Background(), &model.Appointment{PatientID: 5, DoctorID: 2, ScheduledAt: when})
	require.ErrorIs(t, err, errs.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepo_Create_MissingDoctor(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAppointmentRepo(db)
	when := time.Date(2030, 5, 10, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	expectPatientLock(mock, 5).WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO appointments`).
		WithArgs(int64(5), int64(404), when, "SCHEDULED").
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectRollback()

	err := r.Create(context.Background(), &model.Appointment{PatientID: 5, DoctorID: 404, ScheduledAt: when})
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepo_Transition(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAppointmentRepo(db)
	ctx := context.Background()
	when := time.Now().UTC()

	mock.ExpectExec(`UPDATE appointments SET status = \$3 WHERE id = \$1 AND status = \$2`).
		WithArgs(int64(11), "SCHEDULED", "CANCELLED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.Transition(ctx, 11, model.StatusScheduled, model.StatusCancelled))

	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs(int64(11), "SCHEDULED", "COMPLETED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`FROM appointments WHERE id=\$1`).
		WithArgs(int64(11)).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).AddRow(int64(11), int64(5), int64(2), when, "CANCELLED"))
	err := r.Transition(ctx, 11, model.StatusScheduled, model.StatusCompleted)
	require.ErrorIs(t, err, errs.ErrInvalid)
	require.Contains(t, err.Error(), "CANCELLED")

	mock.ExpectExec(`UPDATE appointments SET status`).
		WithArgs(int64(99), "SCHEDULED", "CANCELLED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`FROM appointments WHERE id=\$1`).
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)
	require.ErrorIs(t, r.Transition(ctx, 99, model.StatusScheduled, model.StatusCancelled), errs.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepo_ListByPatient(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewAppointmentRepo(db)
	t1 := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	mock.ExpectQuery(`FROM appointments WHERE patient_id=\$1 ORDER BY scheduled_at, id`).
		WithArgs(int64(5)).
		WillReturnRows(pgxmock.NewRows(appointmentColumns).
			AddRow(int64(1), int64(5), int64(2), t1, "COMPLETED").
			AddRow(int64(2), int64(5), int64(3), t2, "SCHEDULED"))

	list, err := r.ListByPatient(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, model.StatusCompleted, list[0].Status)
	require.Equal(t, t2, list[1].ScheduledAt)
}
