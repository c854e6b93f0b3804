package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/limiter"
	"github.com/and161185/clinic-keeper/internal/model"
	"github.com/and161185/clinic-keeper/internal/repository"
)

// memStore is an in-memory clinic database shared by the fake repositories.
// Its mutex plays the role of the store's row locks and unique indexes.
type memStore struct {
	mu sync.Mutex

	nextID   int64
	staff    map[int64]*model.Staff
	patients map[int64]*model.Patient
	history  []model.PatientHistoryEntry
	inacts   []model.PatientInactivation
	appts    map[int64]*model.Appointment

	getErr error
}

func newMemStore() *memStore {
	return &memStore{
		staff:    map[int64]*model.Staff{},
		patients: map[int64]*model.Patient{},
		appts:    map[int64]*model.Appointment{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

type fakeStaff struct{ *memStore }
type fakePatients struct{ *memStore }
type fakeAppts struct{ *memStore }

var (
	_ repository.StaffRepository       = fakeStaff{}
	_ repository.PatientRepository     = fakePatients{}
	_ repository.AppointmentRepository = fakeAppts{}
)

func (f fakeStaff) Create(_ context.Context, s *model.Staff) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.staff {
		if e.Username == s.Username {
			return fmt.Errorf("%w: username already taken", errs.ErrConflict)
		}
		if e.CPF == s.CPF {
			return fmt.Errorf("%w: CPF already registered", errs.ErrConflict)
		}
	}
	s.ID = f.id()
	c := *s
	f.staff[s.ID] = &c
	return nil
}

func (f fakeStaff) GetByID(_ context.Context, id int64) (*model.Staff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	s, ok := f.staff[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (f fakeStaff) GetByCPF(_ context.Context, cpf string) (*model.Staff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, s := range f.staff {
		if s.CPF == cpf {
			c := *s
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f fakeStaff) List(context.Context) ([]model.Staff, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Staff, 0, len(f.staff))
	for _, s := range f.staff {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakePatients) Create(_ context.Context, p *model.Patient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.patients {
		if e.CPF == p.CPF {
			return errs.ErrConflict
		}
	}
	p.ID = f.id()
	p.Role = model.RolePatient
	p.IsActive = true
	p.VersionID = 1
	c := *p
	f.patients[p.ID] = &c
	return nil
}

func (f fakePatients) GetByID(_ context.Context, id int64) (*model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	p, ok := f.patients[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (f fakePatients) GetByCPF(_ context.Context, cpf string) (*model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, p := range f.patients {
		if p.CPF == cpf {
			c := *p
			return &c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f fakePatients) Search(_ context.Context, flt model.PatientFilter) ([]model.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Patient
	for _, p := range f.patients {
		if flt.ID != nil && p.ID != *flt.ID {
			continue
		}
		if flt.CPF != nil && p.CPF != *flt.CPF {
			continue
		}
		if flt.Name != nil && !strings.Contains(strings.ToLower(p.FullName), strings.ToLower(*flt.Name)) {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakePatients) ApplyChanges(
	_ context.Context, id, expectedVer int64, changes []model.FieldChange, by string, at time.Time,
) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok || p.VersionID != expectedVer {
		return 0, errs.ErrVersionConflict
	}
	next := *p
	for _, c := range changes {
		nv := ""
		if c.NewValue != nil {
			nv = *c.NewValue
		}
		switch c.Field {
		case "full_name":
			next.FullName = nv
		case "birth_date":
			next.BirthDate = nv
		case "gender":
			next.Gender = nv
		case "phone_number":
			next.PhoneNumber = nv
		case "address":
			next.Address = nv
		case "email":
			next.Email = c.NewValue
		case "blood_type":
			next.BloodType = c.NewValue
		case "known_allergies":
			next.KnownAllergies = c.NewValue
		default:
			return 0, errs.ErrInvalid
		}
	}
	for _, c := range changes {
		nv := ""
		if c.NewValue != nil {
			nv = *c.NewValue
		}
		f.history = append(f.history, model.PatientHistoryEntry{
			ID: f.id(), PatientID: id, FieldName: c.Field, OldValue: c.OldValue, NewValue: nv, ChangedBy: by, ChangedAt: at,
		})
	}
	next.VersionID++
	f.patients[id] = &next
	return next.VersionID, nil
}

func (f fakePatients) Deactivate(_ context.Context, id int64, reason, by string, at time.Time) (*model.PatientInactivation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.patients[id]
	if !ok || !p.IsActive {
		return nil, errs.ErrNotFound
	}
	for _, a := range f.appts {
		if a.PatientID == id && a.Status == model.StatusScheduled {
			return nil, errs.ErrBlocked
		}
	}
	p.IsActive = false
	rec := model.PatientInactivation{ID: f.id(), PatientID: id, Reason: reason, InactivatedBy: by, InactivatedAt: at}
	f.inacts = append(f.inacts, rec)
	return &rec, nil
}

func (f fakePatients) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.patients[id]; !ok {
		return errs.ErrNotFound
	}
	delete(f.patients, id)
	for aid, a := range f.appts {
		if a.PatientID == id {
			delete(f.appts, aid)
		}
	}
	return nil
}

func (f fakePatients) History(_ context.Context, id int64) ([]model.PatientHistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.PatientHistoryEntry
	for _, h := range f.history {
		if h.PatientID == id {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f fakeAppts) Create(_ context.Context, a *model.Appointment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.appts {
		if e.DoctorID == a.DoctorID && e.ScheduledAt.Equal(a.ScheduledAt) {
			return errs.ErrConflict
		}
	}
	if p, ok := f.patients[a.PatientID]; !ok || !p.IsActive {
		return errs.ErrNotFound
	}
	a.ID = f.id()
	if a.Status == "" {
		a.Status = model.StatusScheduled
	}
	c := *a
	f.appts[a.ID] = &c
	return nil
}

func (f fakeAppts) GetByID(_ context.Context, id int64) (*model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	c := *a
	return &c, nil
}

func (f fakeAppts) Transition(_ context.Context, id int64, from, to model.AppointmentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appts[id]
	if !ok {
		return errs.ErrNotFound
	}
	if a.Status != from {
		return fmt.Errorf("%w: appointment is %s, not %s", errs.ErrInvalid, a.Status, from)
	}
	a.Status = to
	return nil
}

func (f fakeAppts) ListByPatient(_ context.Context, patientID int64) ([]model.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Appointment
	for _, a := range f.appts {
		if a.PatientID == patientID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

type fakeLimiter struct {
	allowOK  bool
	allowErr error

	failBlocked bool
	failErr     error

	successErr error

	allowCalls   int
	failureCalls int
	successCalls int
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	l.allowCalls++
	return l.allowOK, 0, l.allowErr
}
func (l *fakeLimiter) Success(context.Context, string, []byte) error {
	l.successCalls++
	return l.successErr
}
func (l *fakeLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	l.failureCalls++
	return l.failBlocked, 0, l.failErr
}

// fixedClock is a manually advanced Clock.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

var (
	receptionist = model.Principal{ID: 100, CPF: "90000000001", Role: model.RoleReceptionist, Username: "recep"}
	doctorP      = model.Principal{ID: 101, CPF: "90000000002", Role: model.RoleDoctor, Username: "doc"}
	adminP       = model.Principal{ID: 102, CPF: "90000000003", Role: model.RoleAdmin, Username: "admin"}
	patientP     = model.Principal{ID: 103, CPF: "90000000004", Role: model.RolePatient, Username: "Some Patient"}
)

func validNewPatient(cpf string) model.NewPatient {
	return model.NewPatient{
		FullName:    "Maria Souza",
		BirthDate:   "01021990",
		CPF:         cpf,
		Password:    "secret1",
		Gender:      "female",
		PhoneNumber: "11987654321",
		Address:     "Rua A, 100",
	}
}
