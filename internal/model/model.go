// Package model defines domain entities used by services and repositories.
package model

import (
	"time"
)

// Well-known roles. Staff roles are free-form strings; these are the ones the
// permission table knows about.
const (
	RolePatient      = "PATIENT"
	RoleReceptionist = "RECEPTIONIST"
	RoleDoctor       = "DOCTOR"
	RoleAdmin        = "ADMIN"
)

// Tokens collects an issued access token.
type Tokens struct {
	AccessToken string
	ExpiresAt   time.Time // access token expiry (for diagnostics)
}

// Principal is an authenticated identity decoded from a token.
type Principal struct {
	ID       int64
	CPF      string
	Role     string
	Username string
}

// Staff is a clinic employee account. Owns appointments as the doctor side.
type Staff struct {
	ID       int64
	Username string // unique
	CPF      string // unique
	PwdHash  string
	Role     string
}

// NewStaff is the input for creating a staff account.
type NewStaff struct {
	Username string
	CPF      string
	Password string
	Role     string
}

// Patient is a patient record with optimistic versioning.
type Patient struct {
	ID             int64
	FullName       string
	BirthDate      string // DDMMYYYY
	CPF            string // 11 digits, unique
	PwdHash        string
	Gender         string
	PhoneNumber    string
	Address        string
	Email          *string
	BloodType      *string
	KnownAllergies *string
	Role           string
	IsActive       bool
	VersionID      int64 // starts at 1, +1 per update
}

// NewPatient is the input for registering a patient. Password is plaintext.
type NewPatient struct {
	FullName       string
	BirthDate      string
	CPF            string
	Password       string
	Gender         string
	PhoneNumber    string
	Address        string
	Email          *string
	BloodType      *string
	KnownAllergies *string
}

// PatientFilter holds optional, combinable search criteria.
type PatientFilter struct {
	ID   *int64
	CPF  *string // digits only; callers normalise
	Name *string // case-insensitive substring
}

// Opt is an optional patch value. Set distinguishes "absent" from "present".
type Opt[T any] struct {
	Set   bool
	Value T
}

// Some returns a present Opt holding v.
func Some[T any](v T) Opt[T] { return Opt[T]{Set: true, Value: v} }

// PatientPatch is a sparse update over the patient's updatable fields.
type PatientPatch struct {
	FullName       Opt[string]
	BirthDate      Opt[string]
	Gender         Opt[string]
	PhoneNumber    Opt[string]
	Address        Opt[string]
	Email          Opt[*string]
	BloodType      Opt[*string]
	KnownAllergies Opt[*string]
}

// FieldChange is one field-level diff produced by an update.
type FieldChange struct {
	Field    string  // column name, e.g. "full_name"
	OldValue *string // nil when the previous value was NULL
	NewValue *string // nil clears the column
}

// PatientHistoryEntry is an immutable audit record of one changed field.
type PatientHistoryEntry struct {
	ID        int64
	PatientID int64
	FieldName string
	OldValue  *string
	NewValue  string
	ChangedBy string
	ChangedAt time.Time
}

// PatientInactivation is an immutable audit record of a deactivation.
type PatientInactivation struct {
	ID            int64
	PatientID     int64
	Reason        string
	InactivatedBy string
	InactivatedAt time.Time
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusCompleted AppointmentStatus = "COMPLETED"
)

// Appointment binds a patient to a doctor at an instant. (doctor, instant) is unique.
type Appointment struct {
	ID          int64
	PatientID   int64
	DoctorID    int64
	ScheduledAt time.Time
	Status      AppointmentStatus
}
