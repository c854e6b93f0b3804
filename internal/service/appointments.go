package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/clinic-keeper/internal/authz"
	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
	"github.com/and161185/clinic-keeper/internal/repository"
)

// AppointmentService defines scheduling operations.
type AppointmentService interface {
	// Schedule books doctorID for patientID at when.
	Schedule(ctx context.Context, p model.Principal, patientID, doctorID int64, when time.Time) (*model.Appointment, error)
	// Cancel moves a scheduled appointment to CANCELLED.
	Cancel(ctx context.Context, p model.Principal, id int64) error
	// Complete moves a scheduled appointment to COMPLETED.
	Complete(ctx context.Context, p model.Principal, id int64) error
	// ListForPatient returns a patient's appointments ordered by time.
	ListForPatient(ctx context.Context, p model.Principal, patientID int64) ([]model.Appointment, error)
}

// WorkingHours is an inclusive time-of-day window in Loc. Start and End are
// offsets from local midnight.
type WorkingHours struct {
	Start time.Duration
	End   time.Duration
	Loc   *time.Location
}

// Contains reports whether t falls inside the window.
func (w WorkingHours) Contains(t time.Time) bool {
	loc := w.Loc
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	sinceMidnight := time.Duration(lt.Hour())*time.Hour +
		time.Duration(lt.Minute())*time.Minute +
		time.Duration(lt.Second())*time.Second +
		time.Duration(lt.Nanosecond())
	return sinceMidnight >= w.Start && sinceMidnight <= w.End
}

type AppointmentServiceImpl struct {
	appts    repository.AppointmentRepository
	patients repository.PatientRepository
	staff    repository.StaffRepository
	hours    *WorkingHours
	clock    Clock
	log      *zap.Logger
}

// NewAppointmentService constructs AppointmentService. hours may be nil to
// accept any future instant.
func NewAppointmentService(
	appts repository.AppointmentRepository,
	patients repository.PatientRepository,
	staff repository.StaffRepository,
	hours *WorkingHours,
	clock Clock,
	log *zap.Logger,
) *AppointmentServiceImpl {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AppointmentServiceImpl{appts: appts, patients: patients, staff: staff, hours: hours, clock: clock, log: log}
}

// Schedule validates the instant, then both parties, then inserts. Slot
// uniqueness is left to the store: two racing bookings both pass validation
// and exactly one insert commits.
func (s *AppointmentServiceImpl) Schedule(
	ctx context.Context, p model.Principal, patientID, doctorID int64, when time.Time,
) (*model.Appointment, error) {
	if err := authz.Check(p, authz.AppointmentSchedule); err != nil {
		return nil, err
	}
	if !when.After(s.clock.Now()) {
		return nil, fmt.Errorf("%w: scheduled time must be in the future", errs.ErrInvalid)
	}
	if s.hours != nil && !s.hours.Contains(when) {
		return nil, fmt.Errorf("%w: outside working hours", errs.ErrInvalid)
	}

	pt, err := s.patients.GetByID(ctx, patientID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if err != nil || !pt.IsActive {
		return nil, fmt.Errorf("%w: patient not found or inactive", errs.ErrNotFound)
	}

	doc, err := s.staff.GetByID(ctx, doctorID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, err
	}
	if err != nil || !strings.EqualFold(strings.TrimSpace(doc.Role), model.RoleDoctor) {
		return nil, fmt.Errorf("%w: doctor not found", errs.ErrNotFound)
	}

	a := &model.Appointment{PatientID: patientID, DoctorID: doctorID, ScheduledAt: when, Status: model.StatusScheduled}
	if err := s.appts.Create(ctx, a); err != nil {
		switch {
		case errors.Is(err, errs.ErrConflict):
			s.log.Info("appointment slot conflict",
				zap.Int64("doctor_id", doctorID), zap.Time("scheduled_at", when))
			return nil, fmt.Errorf("%w: time slot already taken for this doctor", errs.ErrConflict)
		case errors.Is(err, errs.ErrNotFound):
			return nil, fmt.Errorf("%w: patient or doctor not found", errs.ErrNotFound)
		}
		return nil, err
	}

	s.log.Info("appointment scheduled",
		zap.Int64("appointment_id", a.ID),
		zap.Int64("patient_id", patientID),
		zap.Int64("doctor_id", doctorID),
		zap.String("by", p.Username),
	)
	return a, nil
}

func (s *AppointmentServiceImpl) Cancel(ctx context.Context, p model.Principal, id int64) error {
	if err := authz.Check(p, authz.AppointmentCancel); err != nil {
		return err
	}
	return s.transition(ctx, p, id, model.StatusCancelled)
}

func (s *AppointmentServiceImpl) Complete(ctx context.Context, p model.Principal, id int64) error {
	if err := authz.Check(p, authz.AppointmentComplete); err != nil {
		return err
	}
	return s.transition(ctx, p, id, model.StatusCompleted)
}

func (s *AppointmentServiceImpl) transition(ctx context.Context, p model.Principal, id int64, to model.AppointmentStatus) error {
	if err := s.appts.Transition(ctx, id, model.StatusScheduled, to); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("%w: appointment not found", errs.ErrNotFound)
		}
		return err
	}
	s.log.Info("appointment status changed",
		zap.Int64("appointment_id", id), zap.String("status", string(to)), zap.String("by", p.Username))
	return nil
}

func (s *AppointmentServiceImpl) ListForPatient(ctx context.Context, p model.Principal, patientID int64) ([]model.Appointment, error) {
	if err := authz.Check(p, authz.AppointmentList); err != nil {
		return nil, err
	}
	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, msgPatientNotFound)
		}
		return nil, err
	}
	return s.appts.ListByPatient(ctx, patientID)
}
