package authz

import (
	"testing"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
	"github.com/stretchr/testify/require"
)

func TestAllowed_Table(t *testing.T) {
	t.Parallel()

	cases := []struct {
		op   Operation
		role string
		want bool
	}{
		{PatientSearch, model.RoleReceptionist, true},
		{PatientSearch, model.RoleDoctor, true},
		{PatientSearch, model.RolePatient, false},
		{PatientSearch, model.RoleAdmin, false},
		{PatientCreate, model.RoleReceptionist, true},
		{PatientCreate, model.RoleDoctor, false},
		{PatientUpdate, model.RoleReceptionist, true},
		{PatientUpdate, model.RoleAdmin, false},
		{PatientDeactivate, model.RoleAdmin, true},
		{PatientDeactivate, model.RoleReceptionist, true},
		{PatientDeactivate, model.RoleDoctor, false},
		{PatientDelete, model.RoleAdmin, true},
		{PatientDelete, model.RoleReceptionist, false},
		{AppointmentSchedule, model.RoleReceptionist, true},
		{AppointmentSchedule, model.RoleDoctor, false},
		{AppointmentComplete, model.RoleDoctor, true},
		{StaffCreate, model.RoleAdmin, true},
		{StaffCreate, "", false},
		{Operation("unknown"), model.RoleAdmin, false},
	}
	for _, c := range cases {
		require.Equalf(t, c.want, Allowed(c.op, c.role), "%s/%s", c.op, c.role)
	}
}

func TestAllowed_CaseInsensitiveRole(t *testing.T) {
	t.Parallel()
	require.True(t, Allowed(PatientSearch, "doctor"))
	require.True(t, Allowed(PatientCreate, " Receptionist "))
}

func TestCheck_Forbidden(t *testing.T) {
	t.Parallel()

	err := Check(model.Principal{Role: model.RolePatient}, PatientSearch)
	require.ErrorIs(t, err, errs.ErrForbidden)
	require.Contains(t, err.Error(), "patient.search")

	require.NoError(t, Check(model.Principal{Role: model.RoleReceptionist}, PatientSearch))
}

func TestRoles_ReturnsCopy(t *testing.T) {
	t.Parallel()

	r := Roles(PatientSearch)
	r[0] = "X"
	require.Equal(t, model.RoleReceptionist, Roles(PatientSearch)[0])
}
