// Package convert maps domain models to wire messages and back.
package convert

import (
	"fmt"

	"github.com/and161185/clinic-keeper/internal/api"
	"github.com/and161185/clinic-keeper/internal/errs"
	model "github.com/and161185/clinic-keeper/internal/model"
)

// --- principal ---

// ToAPIPrincipal converts an authenticated identity.
func ToAPIPrincipal(p model.Principal) api.Principal {
	return api.Principal{ID: p.ID, CPF: p.CPF, Role: p.Role, Username: p.Username}
}

// --- patients ---

// ToAPIPatient drops the password hash and the role column.
func ToAPIPatient(p model.Patient) api.Patient {
	return api.Patient{
		ID:             p.ID,
		FullName:       p.FullName,
		BirthDate:      p.BirthDate,
		CPF:            p.CPF,
		Gender:         p.Gender,
		PhoneNumber:    p.PhoneNumber,
		Address:        p.Address,
		Email:          p.Email,
		BloodType:      p.BloodType,
		KnownAllergies: p.KnownAllergies,
		IsActive:       p.IsActive,
		VersionID:      p.VersionID,
	}
}

// ToAPIPatients converts a slice, never returning nil.
func ToAPIPatients(in []model.Patient) []api.Patient {
	out := make([]api.Patient, 0, len(in))
	for _, p := range in {
		out = append(out, ToAPIPatient(p))
	}
	return out
}

func FromAPIFilter(in *api.SearchPatientsRequest) model.PatientFilter {
	if in == nil {
		return model.PatientFilter{}
	}
	return model.PatientFilter{ID: in.ID, CPF: in.CPF, Name: in.Name}
}

func FromAPINewPatient(in *api.CreatePatientRequest) model.NewPatient {
	if in == nil {
		return model.NewPatient{}
	}
	return model.NewPatient{
		FullName:       in.FullName,
		BirthDate:      in.BirthDate,
		CPF:            in.CPF,
		Password:       in.Password,
		Gender:         in.Gender,
		PhoneNumber:    in.PhoneNumber,
		Address:        in.Address,
		Email:          in.Email,
		BloodType:      in.BloodType,
		KnownAllergies: in.KnownAllergies,
	}
}

// FromAPIPatch turns the wire patch into a domain patch. Only optional
// fields can be cleared, and a field cannot be both set and cleared.
func FromAPIPatch(in api.PatientPatch) (model.PatientPatch, error) {
	var out model.PatientPatch
	text := func(v *string, dst *model.Opt[string]) {
		if v != nil {
			*dst = model.Some(*v)
		}
	}
	text(in.FullName, &out.FullName)
	text(in.BirthDate, &out.BirthDate)
	text(in.Gender, &out.Gender)
	text(in.PhoneNumber, &out.PhoneNumber)
	text(in.Address, &out.Address)

	nullable := map[string]struct {
		v   *string
		dst *model.Opt[*string]
	}{
		"email":           {in.Email, &out.Email},
		"blood_type":      {in.BloodType, &out.BloodType},
		"known_allergies": {in.KnownAllergies, &out.KnownAllergies},
	}
	for _, n := range nullable {
		if n.v != nil {
			v := *n.v
			*n.dst = model.Some(&v)
		}
	}
	for _, name := range in.Clear {
		n, ok := nullable[name]
		if !ok {
			return model.PatientPatch{}, fmt.Errorf("%w: field %q cannot be cleared", errs.ErrInvalid, name)
		}
		if n.v != nil {
			return model.PatientPatch{}, fmt.Errorf("%w: field %q is both set and cleared", errs.ErrInvalid, name)
		}
		*n.dst = model.Some[*string](nil)
	}
	return out, nil
}

func ToAPIInactivation(r model.PatientInactivation) api.Inactivation {
	return api.Inactivation{
		ID:            r.ID,
		PatientID:     r.PatientID,
		Reason:        r.Reason,
		InactivatedBy: r.InactivatedBy,
		InactivatedAt: r.InactivatedAt,
	}
}

func ToAPIHistory(in []model.PatientHistoryEntry) []api.HistoryEntry {
	out := make([]api.HistoryEntry, 0, len(in))
	for _, h := range in {
		out = append(out, api.HistoryEntry{
			ID:        h.ID,
			FieldName: h.FieldName,
			OldValue:  h.OldValue,
			NewValue:  h.NewValue,
			ChangedBy: h.ChangedBy,
			ChangedAt: h.ChangedAt,
		})
	}
	return out
}

// --- appointments ---

func ToAPIAppointment(a model.Appointment) api.Appointment {
	return api.Appointment{
		ID:          a.ID,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		ScheduledAt: a.ScheduledAt,
		Status:      string(a.Status),
	}
}

func ToAPIAppointments(in []model.Appointment) []api.Appointment {
	out := make([]api.Appointment, 0, len(in))
	for _, a := range in {
		out = append(out, ToAPIAppointment(a))
	}
	return out
}

// --- staff ---

// ToAPIStaff drops the password hash.
func ToAPIStaff(s model.Staff) api.Staff {
	return api.Staff{ID: s.ID, Username: s.Username, CPF: s.CPF, Role: s.Role}
}

func ToAPIStaffList(in []model.Staff) []api.Staff {
	out := make([]api.Staff, 0, len(in))
	for _, s := range in {
		out = append(out, ToAPIStaff(s))
	}
	return out
}

func FromAPINewStaff(in *api.CreateStaffRequest) model.NewStaff {
	if in == nil {
		return model.NewStaff{}
	}
	return model.NewStaff{Username: in.Username, CPF: in.CPF, Password: in.Password, Role: in.Role}
}
