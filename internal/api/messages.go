package api

import "time"

// Empty is used by calls without a payload.
type Empty struct{}

type Principal struct {
	ID       int64  `json:"id"`
	CPF      string `json:"cpf"`
	Role     string `json:"role"`
	Username string `json:"username"`
}

type LoginRequest struct {
	CPF      string `json:"cpf"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	Principal   Principal `json:"principal"`
}

type Patient struct {
	ID             int64   `json:"id"`
	FullName       string  `json:"full_name"`
	BirthDate      string  `json:"birth_date"`
	CPF            string  `json:"cpf"`
	Gender         string  `json:"gender"`
	PhoneNumber    string  `json:"phone_number"`
	Address        string  `json:"address"`
	Email          *string `json:"email,omitempty"`
	BloodType      *string `json:"blood_type,omitempty"`
	KnownAllergies *string `json:"known_allergies,omitempty"`
	IsActive       bool    `json:"is_active"`
	VersionID      int64   `json:"version_id"`
}

type SearchPatientsRequest struct {
	ID   *int64  `json:"id,omitempty"`
	CPF  *string `json:"cpf,omitempty"`
	Name *string `json:"name,omitempty"`
}

type PatientsResponse struct {
	Patients []Patient `json:"patients"`
}

type CreatePatientRequest struct {
	FullName       string  `json:"full_name"`
	BirthDate      string  `json:"birth_date"`
	CPF            string  `json:"cpf"`
	Password       string  `json:"password"`
	Gender         string  `json:"gender"`
	PhoneNumber    string  `json:"phone_number"`
	Address        string  `json:"address"`
	Email          *string `json:"email,omitempty"`
	BloodType      *string `json:"blood_type,omitempty"`
	KnownAllergies *string `json:"known_allergies,omitempty"`
}

type PatientResponse struct {
	Patient Patient `json:"patient"`
}

// PatientPatch carries only the fields to change. A nil pointer leaves the
// field alone; the optional fields listed in Clear are set to NULL.
type PatientPatch struct {
	FullName       *string  `json:"full_name,omitempty"`
	BirthDate      *string  `json:"birth_date,omitempty"`
	Gender         *string  `json:"gender,omitempty"`
	PhoneNumber    *string  `json:"phone_number,omitempty"`
	Address        *string  `json:"address,omitempty"`
	Email          *string  `json:"email,omitempty"`
	BloodType      *string  `json:"blood_type,omitempty"`
	KnownAllergies *string  `json:"known_allergies,omitempty"`
	Clear          []string `json:"clear,omitempty"`
}

type UpdatePatientRequest struct {
	ID        int64        `json:"id"`
	VersionID int64        `json:"version_id"`
	Patch     PatientPatch `json:"patch"`
}

type DeactivatePatientRequest struct {
	ID     int64  `json:"id"`
	Reason string `json:"reason"`
}

type Inactivation struct {
	ID            int64     `json:"id"`
	PatientID     int64     `json:"patient_id"`
	Reason        string    `json:"reason"`
	InactivatedBy string    `json:"inactivated_by"`
	InactivatedAt time.Time `json:"inactivated_at"`
}

type DeactivatePatientResponse struct {
	Inactivation Inactivation `json:"inactivation"`
}

// IDRequest addresses a single patient or appointment.
type IDRequest struct {
	ID int64 `json:"id"`
}

type HistoryEntry struct {
	ID        int64     `json:"id"`
	FieldName string    `json:"field_name"`
	OldValue  *string   `json:"old_value"`
	NewValue  string    `json:"new_value"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

type PatientHistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

type Appointment struct {
	ID          int64     `json:"id"`
	PatientID   int64     `json:"patient_id"`
	DoctorID    int64     `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Status      string    `json:"status"`
}

type ScheduleAppointmentRequest struct {
	PatientID   int64     `json:"patient_id"`
	DoctorID    int64     `json:"doctor_id"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

type AppointmentResponse struct {
	Appointment Appointment `json:"appointment"`
}

type ListAppointmentsRequest struct {
	PatientID int64 `json:"patient_id"`
}

type AppointmentsResponse struct {
	Appointments []Appointment `json:"appointments"`
}

type Staff struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	CPF      string `json:"cpf"`
	Role     string `json:"role"`
}

type CreateStaffRequest struct {
	Username string `json:"username"`
	CPF      string `json:"cpf"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type StaffResponse struct {
	Staff Staff `json:"staff"`
}

type StaffListResponse struct {
	Staff []Staff `json:"staff"`
}
