// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"
	"time"

	"github.com/and161185/clinic-keeper/internal/model"
)

// StaffRepository provides access to staff accounts.
type StaffRepository interface {
	// Create inserts a new staff member and sets its ID.
	Create(ctx context.Context, s *model.Staff) error
	// GetByID loads a staff member by ID.
	GetByID(ctx context.Context, id int64) (*model.Staff, error)
	// GetByCPF loads a staff member by CPF.
	GetByCPF(ctx context.Context, cpf string) (*model.Staff, error)
	// List returns all staff members ordered by ID.
	List(ctx context.Context) ([]model.Staff, error)
}

// PatientRepository provides versioned, audited access to patient records.
type PatientRepository interface {
	// Create inserts a new patient (version 1, active) and sets its ID.
	Create(ctx context.Context, p *model.Patient) error
	// GetByID loads a patient by ID.
	GetByID(ctx context.Context, id int64) (*model.Patient, error)
	// GetByCPF loads a patient by CPF.
	GetByCPF(ctx context.Context, cpf string) (*model.Patient, error)
	// Search returns patients matching every set filter, ordered by ID.
	Search(ctx context.Context, f model.PatientFilter) ([]model.Patient, error)
	// ApplyChanges records one history entry per change, applies the changes and
	// bumps version_id by one, all in one transaction guarded by expectedVer.
	ApplyChanges(ctx context.Context, id, expectedVer int64, changes []model.FieldChange, changedBy string, at time.Time) (newVer int64, err error)
	// Deactivate flips is_active to false when the patient has no scheduled
	// appointment and records the inactivation, atomically.
	Deactivate(ctx context.Context, id int64, reason, by string, at time.Time) (*model.PatientInactivation, error)
	// Delete hard-deletes a patient; dependants cascade.
	Delete(ctx context.Context, id int64) error
	// History returns the audit trail of a patient in insertion order.
	History(ctx context.Context, id int64) ([]model.PatientHistoryEntry, error)
}

// AppointmentRepository provides access to appointments.
type AppointmentRepository interface {
	// Create inserts a scheduled appointment; a taken (doctor, instant) slot
	// yields errs.ErrConflict.
	Create(ctx context.Context, a *model.Appointment) error
	// GetByID loads an appointment by ID.
	GetByID(ctx context.Context, id int64) (*model.Appointment, error)
	// Transition moves an appointment from one status to another.
	Transition(ctx context.Context, id int64, from, to model.AppointmentStatus) error
	// ListByPatient returns a patient's appointments ordered by time.
	ListByPatient(ctx context.Context, patientID int64) ([]model.Appointment, error)
}
