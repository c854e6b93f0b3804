package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
)

type apptFixture struct {
	m         *memStore
	clock     *fixedClock
	s         *AppointmentServiceImpl
	patientID int64
	doctorID  int64
}

func newApptFixture(t *testing.T, hours *WorkingHours) *apptFixture {
	t.Helper()
	m := newMemStore()
	ctx := context.Background()
	doc := &model.Staff{Username: "dr.who", CPF: "55555555555", Role: "doctor"}
	if err := (fakeStaff{m}).Create(ctx, doc); err != nil {
		t.Fatalf("seed doctor: %v", err)
	}
	pt := &model.Patient{FullName: "Pedro Alves", CPF: "66666666666"}
	if err := (fakePatients{m}).Create(ctx, pt); err != nil {
		t.Fatalf("seed patient: %v", err)
	}
	clock := newClock()
	s := NewAppointmentService(fakeAppts{m}, fakePatients{m}, fakeStaff{m}, hours, clock, nil)
	return &apptFixture{m: m, clock: clock, s: s, patientID: pt.ID, doctorID: doc.ID}
}

func TestAppointments_Schedule(t *testing.T) {
	t.Parallel()
	f := newApptFixture(t, nil)
	ctx := context.Background()
	when := f.clock.Now().Add(24 * time.Hour)

	a, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, when)
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if a.ID == 0 || a.Status != model.StatusScheduled || !a.ScheduledAt.Equal(when) {
		t.Fatalf("bad appointment: %+v", a)
	}

	_, err = f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, when)
	if !errors.Is(err, errs.ErrConflict) || !strings.Contains(err.Error(), "time slot already taken") {
		t.Fatalf("want slot conflict, got %v", err)
	}

	// Another doctor at the same instant is fine.
	other := &model.Staff{Username: "dr.strange", CPF: "77777777777", Role: model.RoleDoctor}
	_ = fakeStaff{f.m}.Create(ctx, other)
	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, other.ID, when); err != nil {
		t.Fatalf("second doctor same instant: %v", err)
	}
}

func TestAppointments_Schedule_Validation(t *testing.T) {
	t.Parallel()
	f := newApptFixture(t, nil)
	ctx := context.Background()
	now := f.clock.Now()

	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, now.Add(-time.Minute)); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("want ErrInvalid for past instant, got %v", err)
	}
	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, now); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("want ErrInvalid for the current instant, got %v", err)
	}

	_, err := f.s.Schedule(ctx, receptionist, 999, f.doctorID, now.Add(time.Hour))
	if !errors.Is(err, errs.ErrNotFound) || !strings.Contains(err.Error(), "patient not found or inactive") {
		t.Fatalf("want patient ErrNotFound, got %v", err)
	}

	_, err = f.s.Schedule(ctx, receptionist, f.patientID, 999, now.Add(time.Hour))
	if !errors.Is(err, errs.ErrNotFound) || !strings.Contains(err.Error(), "doctor not found") {
		t.Fatalf("want doctor ErrNotFound, got %v", err)
	}

	recep := &model.Staff{Username: "front.desk", CPF: "88888888888", Role: model.RoleReceptionist}
	_ = fakeStaff{f.m}.Create(ctx, recep)
	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, recep.ID, now.Add(time.Hour)); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("non-doctor staff must not be bookable, got %v", err)
	}

	f.m.patients[f.patientID].IsActive = false
	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, now.Add(time.Hour)); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound for inactive patient, got %v", err)
	}
	if len(f.m.appts) != 0 {
		t.Fatalf("rejected schedules must not write")
	}
}

func TestAppointments_Schedule_Forbidden(t *testing.T) {
	t.Parallel()
	f := newApptFixture(t, nil)
	when := f.clock.Now().Add(time.Hour)

	for _, p := range []model.Principal{patientP, doctorP, adminP} {
		if _, err := f.s.Schedule(context.Background(), p, f.patientID, f.doctorID, when); !errors.Is(err, errs.ErrForbidden) {
			t.Fatalf("%s: want ErrForbidden, got %v", p.Role, err)
		}
	}
}

func TestAppointments_Schedule_InstantCheckedBeforeLookups(t *testing.T) {
	t.Parallel()
	f := newApptFixture(t, &WorkingHours{Start: 8 * time.Hour, End: 17 * time.Hour, Loc: time.UTC})
	ctx := context.Background()
	f.m.getErr = errors.New("db down")

	if _, err := f.s.Schedule(ctx, receptionist, 999, 999, f.clock.Now().Add(-time.Hour)); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("past instant must fail before any lookup, got %v", err)
	}
	night := time.Date(2030, 3, 5, 22, 0, 0, 0, time.UTC)
	if _, err := f.s.Schedule(ctx, receptionist, 999, 999, night); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("out-of-hours instant must fail before any lookup, got %v", err)
	}
}

// activeSnapshot serves a patient as it looked before a concurrent
// deactivation, while the store underneath already holds it inactive.
type activeSnapshot struct{ fakePatients }

func (a activeSnapshot) GetByID(ctx context.Context, id int64) (*model.Patient, error) {
	p, err := a.fakePatients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.IsActive = true
	return p, nil
}

func TestAppointments_Schedule_PatientDeactivatedBeforeInsert(t *testing.T) {
	t.Parallel()
	f := newApptFixture(t, nil)
	s := NewAppointmentService(fakeAppts{f.m}, activeSnapshot{fakePatients{f.m}}, fakeStaff{f.m}, nil, f.clock, nil)
	f.m.patients[f.patientID].IsActive = false

	_, err := s.Schedule(context.Background(), receptionist, f.patientID, f.doctorID, f.clock.Now().Add(time.Hour))
	if !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound when the patient turns inactive before insert, got %v", err)
	}
	if len(f.m.appts) != 0 {
		t.Fatalf("no appointment may be stored for an inactive patient")
	}
}

func TestAppointments_Schedule_WorkingHours(t *testing.T) {
	t.Parallel()
	f := newApptFixture(t, &WorkingHours{Start: 8 * time.Hour, End: 17 * time.Hour, Loc: time.UTC})
	ctx := context.Background()
	day := time.Date(2030, 3, 5, 0, 0, 0, 0, time.UTC)

	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, day.Add(7*time.Hour)); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("want ErrInvalid before opening, got %v", err)
	}
	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, day.Add(17*time.Hour+time.Minute)); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("want ErrInvalid after closing, got %v", err)
	}
	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, day.Add(8*time.Hour)); err != nil {
		t.Fatalf("opening instant must be accepted: %v", err)
	}
	if _, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, day.Add(17*time.Hour)); err != nil {
		t.Fatalf("closing instant must be accepted: %v", err)
	}
}

func TestAppointments_ConcurrentDoubleBooking(t *testing.T) {
	t.Parallel()
	f := newApptFixture(t, nil)
	ctx := context.Background()
	when := f.clock.Now().Add(48 * time.Hour)

	const callers = 10
	var (
		wg             sync.WaitGroup
		mu             sync.Mutex
		won, conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, when)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won++
			case errors.Is(err, errs.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if won != 1 || conflicts != callers-1 {
		t.Fatalf("want one booking, got won=%d conflicts=%d", won, conflicts)
	}
	if len(f.m.appts) != 1 {
		t.Fatalf("want a single stored appointment, got %d", len(f.m.appts))
	}
}

func TestAppointments_CancelCompleteList(t *testing.T) {
	t.Parallel()
	f := newApptFixture(t, nil)
	ctx := context.Background()
	base := f.clock.Now()

	a1, _ := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, base.Add(2*time.Hour))
	a2, _ := f.s.Schedule(ctx, receptionist, f.patientID, f.doctorID, base.Add(time.Hour))

	if err := f.s.Complete(ctx, receptionist, a2.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden completing as receptionist, got %v", err)
	}
	if err := f.s.Complete(ctx, doctorP, a2.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := f.s.Cancel(ctx, receptionist, a2.ID); !errors.Is(err, errs.ErrInvalid) {
		t.Fatalf("want ErrInvalid cancelling a completed appointment, got %v", err)
	}
	if err := f.s.Cancel(ctx, adminP, a1.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if err := f.s.Cancel(ctx, receptionist, 999); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	list, err := f.s.ListForPatient(ctx, doctorP, f.patientID)
	if err != nil {
		t.Fatalf("ListForPatient: %v", err)
	}
	if len(list) != 2 || list[0].ID != a2.ID || list[0].Status != model.StatusCompleted || list[1].Status != model.StatusCancelled {
		t.Fatalf("bad list: %+v", list)
	}
	if _, err := f.s.ListForPatient(ctx, patientP, f.patientID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("want ErrForbidden for patient, got %v", err)
	}
	if _, err := f.s.ListForPatient(ctx, receptionist, 999); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("want ErrNotFound for unknown patient, got %v", err)
	}
}

func TestWorkingHours_Contains(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("BRT", -3*3600)
	w := WorkingHours{Start: 8 * time.Hour, End: 17 * time.Hour, Loc: loc}

	// 11:00 UTC is 08:00 in BRT.
	if !w.Contains(time.Date(2030, 1, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("08:00 local must be inside")
	}
	if w.Contains(time.Date(2030, 1, 1, 10, 59, 0, 0, time.UTC)) {
		t.Fatalf("07:59 local must be outside")
	}
	if !(WorkingHours{Start: 0, End: 24 * time.Hour}).Contains(time.Date(2030, 1, 1, 23, 59, 0, 0, time.UTC)) {
		t.Fatalf("nil location defaults to UTC")
	}
}
