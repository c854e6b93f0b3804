package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/clinic-keeper/internal/authz"
	pkgcrypto "github.com/and161185/clinic-keeper/internal/crypto"
	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
	"github.com/and161185/clinic-keeper/internal/repository"
)

// PatientService defines patient record operations. Every call is checked
// against the permission table before touching storage.
type PatientService interface {
	// Search returns patients matching all set filters, ordered by ID.
	Search(ctx context.Context, p model.Principal, f model.PatientFilter) ([]model.Patient, error)
	// Create registers a patient at version 1.
	Create(ctx context.Context, p model.Principal, in model.NewPatient) (*model.Patient, error)
	// Update applies a sparse patch if expectedVersion is still current.
	Update(ctx context.Context, p model.Principal, id int64, patch model.PatientPatch, expectedVersion int64) (*model.Patient, error)
	// Deactivate marks a patient inactive and records why.
	Deactivate(ctx context.Context, p model.Principal, id int64, reason string) (*model.PatientInactivation, error)
	// Delete hard-deletes a patient and everything attached to it.
	Delete(ctx context.Context, p model.Principal, id int64) error
	// History returns the field-level audit trail of a patient.
	History(ctx context.Context, p model.Principal, id int64) ([]model.PatientHistoryEntry, error)
}

type PatientServiceImpl struct {
	repo  repository.PatientRepository
	clock Clock
	log   *zap.Logger
}

// NewPatientService constructs PatientService.
func NewPatientService(repo repository.PatientRepository, clock Clock, log *zap.Logger) *PatientServiceImpl {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PatientServiceImpl{repo: repo, clock: clock, log: log}
}

const (
	msgPatientNotFound = "patient not found"
	msgStale           = "stale data: refresh and try again"
)

// Search normalises the CPF filter and trims the name filter before querying.
func (s *PatientServiceImpl) Search(ctx context.Context, p model.Principal, f model.PatientFilter) ([]model.Patient, error) {
	if err := authz.Check(p, authz.PatientSearch); err != nil {
		return nil, err
	}
	if f.CPF != nil {
		cpf := normalizeCPF(*f.CPF)
		f.CPF = &cpf
	}
	if f.Name != nil {
		name := strings.TrimSpace(*f.Name)
		if name == "" {
			f.Name = nil
		} else {
			f.Name = &name
		}
	}
	list, err := s.repo.Search(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: no patients found", errs.ErrNotFound)
	}
	return list, nil
}

// Create validates the input, hashes the password and stores the record.
func (s *PatientServiceImpl) Create(ctx context.Context, p model.Principal, in model.NewPatient) (*model.Patient, error) {
	if err := authz.Check(p, authz.PatientCreate); err != nil {
		return nil, err
	}
	in = normalizeNewPatient(in)
	if err := validateNewPatient(in); err != nil {
		return nil, err
	}
	hash, err := pkgcrypto.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	pt := &model.Patient{
		FullName:       in.FullName,
		BirthDate:      in.BirthDate,
		CPF:            in.CPF,
		PwdHash:        hash,
		Gender:         in.Gender,
		PhoneNumber:    in.PhoneNumber,
		Address:        in.Address,
		Email:          blankToNil(in.Email),
		BloodType:      blankToNil(in.BloodType),
		KnownAllergies: blankToNil(in.KnownAllergies),
	}
	if err := s.repo.Create(ctx, pt); err != nil {
		if errors.Is(err, errs.ErrConflict) {
			return nil, fmt.Errorf("%w: CPF already registered", errs.ErrConflict)
		}
		return nil, err
	}
	s.log.Info("patient created", zap.Int64("patient_id", pt.ID), zap.String("by", p.Username))
	return pt, nil
}

// Update compares the patch with the stored record and writes only the fields
// that differ, one audit entry each. The version check happens twice: here
// against the loaded row, and again inside the guarded UPDATE so a writer that
// commits in between still loses.
func (s *PatientServiceImpl) Update(
	ctx context.Context, p model.Principal, id int64, patch model.PatientPatch, expectedVersion int64,
) (*model.Patient, error) {
	if err := authz.Check(p, authz.PatientUpdate); err != nil {
		return nil, err
	}
	patch = normalizePatch(patch)
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, msgPatientNotFound)
		}
		return nil, err
	}
	if cur.VersionID != expectedVersion {
		return nil, fmt.Errorf("%w: %s", errs.ErrVersionConflict, msgStale)
	}

	next, changes := diffPatient(cur, patch)
	newVer, err := s.repo.ApplyChanges(ctx, id, expectedVersion, changes, p.Username, s.clock.Now())
	if err != nil {
		if errors.Is(err, errs.ErrVersionConflict) {
			return nil, fmt.Errorf("%w: %s", errs.ErrVersionConflict, msgStale)
		}
		return nil, err
	}
	next.VersionID = newVer

	s.log.Info("patient updated",
		zap.Int64("patient_id", id),
		zap.Int("fields", len(changes)),
		zap.Int64("version", newVer),
		zap.String("by", p.Username),
	)
	return &next, nil
}

// Deactivate requires a 3..100 character reason.
func (s *PatientServiceImpl) Deactivate(
	ctx context.Context, p model.Principal, id int64, reason string,
) (*model.PatientInactivation, error) {
	if err := authz.Check(p, authz.PatientDeactivate); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if err := ruleReason.check(reason); err != nil {
		return nil, err
	}

	rec, err := s.repo.Deactivate(ctx, id, reason, p.Username, s.clock.Now())
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return nil, fmt.Errorf("%w: patient not found or already inactive", errs.ErrNotFound)
	case errors.Is(err, errs.ErrBlocked):
		return nil, fmt.Errorf("%w: patient has pending appointments; cancel them before deactivating", errs.ErrBlocked)
	case err != nil:
		return nil, err
	}
	s.log.Info("patient deactivated", zap.Int64("patient_id", id), zap.String("by", p.Username))
	return rec, nil
}

func (s *PatientServiceImpl) Delete(ctx context.Context, p model.Principal, id int64) error {
	if err := authz.Check(p, authz.PatientDelete); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return fmt.Errorf("%w: %s", errs.ErrNotFound, msgPatientNotFound)
		}
		return err
	}
	s.log.Info("patient deleted", zap.Int64("patient_id", id), zap.String("by", p.Username))
	return nil
}

func (s *PatientServiceImpl) History(ctx context.Context, p model.Principal, id int64) ([]model.PatientHistoryEntry, error) {
	if err := authz.Check(p, authz.PatientHistory); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", errs.ErrNotFound, msgPatientNotFound)
		}
		return nil, err
	}
	return s.repo.History(ctx, id)
}

func validateNewPatient(in model.NewPatient) error {
	if err := checkCPF(in.CPF); err != nil {
		return err
	}
	checks := []struct {
		rule fieldRule
		v    string
	}{
		{ruleFullName, in.FullName},
		{ruleBirth, in.BirthDate},
		{rulePassword, in.Password},
		{ruleGender, in.Gender},
		{rulePhone, in.PhoneNumber},
		{ruleAddress, in.Address},
	}
	for _, c := range checks {
		if err := c.rule.check(c.v); err != nil {
			return err
		}
	}
	return nil
}

func validatePatch(pp model.PatientPatch) error {
	checks := []struct {
		rule fieldRule
		opt  model.Opt[string]
	}{
		{ruleFullName, pp.FullName},
		{ruleBirth, pp.BirthDate},
		{ruleGender, pp.Gender},
		{rulePhone, pp.PhoneNumber},
		{ruleAddress, pp.Address},
	}
	for _, c := range checks {
		if !c.opt.Set {
			continue
		}
		if err := c.rule.check(c.opt.Value); err != nil {
			return err
		}
	}
	return nil
}

// diffPatient returns cur with the patch applied and the list of fields whose
// value actually changed. Present-but-equal fields produce no entry.
func diffPatient(cur *model.Patient, pp model.PatientPatch) (model.Patient, []model.FieldChange) {
	next := *cur
	var changes []model.FieldChange

	text := func(col string, o model.Opt[string], dst *string) {
		if !o.Set || o.Value == *dst {
			return
		}
		old, nv := *dst, o.Value
		changes = append(changes, model.FieldChange{Field: col, OldValue: &old, NewValue: &nv})
		*dst = nv
	}
	nullable := func(col string, o model.Opt[*string], dst **string) {
		if !o.Set {
			return
		}
		nv := blankToNil(o.Value)
		if equalText(*dst, nv) {
			return
		}
		changes = append(changes, model.FieldChange{Field: col, OldValue: cloneText(*dst), NewValue: cloneText(nv)})
		*dst = nv
	}

	text("full_name", pp.FullName, &next.FullName)
	text("birth_date", pp.BirthDate, &next.BirthDate)
	text("gender", pp.Gender, &next.Gender)
	text("phone_number", pp.PhoneNumber, &next.PhoneNumber)
	text("address", pp.Address, &next.Address)
	nullable("email", pp.Email, &next.Email)
	nullable("blood_type", pp.BloodType, &next.BloodType)
	nullable("known_allergies", pp.KnownAllergies, &next.KnownAllergies)
	return next, changes
}

func equalText(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func cloneText(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
