// Package authz holds the role permission table checked before every
// patient, appointment and staff operation.
package authz

import (
	"fmt"
	"strings"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
)

// Operation names a guarded action.
type Operation string

const (
	PatientSearch       Operation = "patient.search"
	PatientCreate       Operation = "patient.create"
	PatientUpdate       Operation = "patient.update"
	PatientDeactivate   Operation = "patient.deactivate"
	PatientDelete       Operation = "patient.delete"
	PatientHistory      Operation = "patient.history"
	AppointmentSchedule Operation = "appointment.schedule"
	AppointmentCancel   Operation = "appointment.cancel"
	AppointmentComplete Operation = "appointment.complete"
	AppointmentList     Operation = "appointment.list"
	StaffCreate         Operation = "staff.create"
	StaffList           Operation = "staff.list"
)

var table = map[Operation][]string{
	PatientSearch:       {model.RoleReceptionist, model.RoleDoctor},
	PatientCreate:       {model.RoleReceptionist},
	PatientUpdate:       {model.RoleReceptionist},
	PatientDeactivate:   {model.RoleReceptionist, model.RoleAdmin},
	PatientDelete:       {model.RoleAdmin},
	PatientHistory:      {model.RoleReceptionist, model.RoleAdmin},
	AppointmentSchedule: {model.RoleReceptionist},
	AppointmentCancel:   {model.RoleReceptionist, model.RoleAdmin},
	AppointmentComplete: {model.RoleDoctor},
	AppointmentList:     {model.RoleReceptionist, model.RoleDoctor},
	StaffCreate:         {model.RoleAdmin},
	StaffList:           {model.RoleAdmin},
}

// Allowed reports whether role may perform op. Unknown operations are denied.
func Allowed(op Operation, role string) bool {
	role = strings.ToUpper(strings.TrimSpace(role))
	for _, r := range table[op] {
		if r == role {
			return true
		}
	}
	return false
}

// Check returns errs.ErrForbidden unless the principal's role may perform op.
func Check(p model.Principal, op Operation) error {
	if !Allowed(op, p.Role) {
		return fmt.Errorf("%w: insufficient permission for %s", errs.ErrForbidden, op)
	}
	return nil
}

// Roles lists the roles permitted to perform op.
func Roles(op Operation) []string {
	return append([]string(nil), table[op]...)
}
