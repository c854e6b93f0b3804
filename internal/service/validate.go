package service

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
)

// normalizeCPF keeps digits only, so "123.456.789-01" and "12345678901" match.
func normalizeCPF(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// fieldRule bounds the rune length of a text field.
type fieldRule struct {
	name     string
	min, max int
}

var (
	ruleFullName = fieldRule{"full_name", 5, 100}
	ruleBirth    = fieldRule{"birth_date", 8, 8}
	ruleGender   = fieldRule{"gender", 3, 10}
	rulePhone    = fieldRule{"phone_number", 11, 11}
	ruleAddress  = fieldRule{"address", 5, 60}
	rulePassword = fieldRule{"password", 6, 30}
	ruleUsername = fieldRule{"username", 5, 100}
	ruleRole     = fieldRule{"role", 3, 15}
	ruleReason   = fieldRule{"reason", 3, 100}
)

func (r fieldRule) check(v string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(v))
	if n < r.min || n > r.max {
		if r.min == r.max {
			return fmt.Errorf("%w: %s must be %d characters", errs.ErrInvalid, r.name, r.min)
		}
		return fmt.Errorf("%w: %s must be %d..%d characters", errs.ErrInvalid, r.name, r.min, r.max)
	}
	return nil
}

func checkCPF(cpf string) error {
	if len(cpf) != 11 {
		return fmt.Errorf("%w: CPF must have 11 digits", errs.ErrInvalid)
	}
	return nil
}

// blankToNil turns an empty optional text into an absent one.
func blankToNil(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}

// normalizeNewPatient trims the text fields and strips the CPF to digits.
func normalizeNewPatient(in model.NewPatient) model.NewPatient {
	in.CPF = normalizeCPF(in.CPF)
	in.FullName = strings.TrimSpace(in.FullName)
	in.BirthDate = strings.TrimSpace(in.BirthDate)
	in.Gender = strings.TrimSpace(in.Gender)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	in.Address = strings.TrimSpace(in.Address)
	in.Email = trimText(in.Email)
	in.BloodType = trimText(in.BloodType)
	in.KnownAllergies = trimText(in.KnownAllergies)
	return in
}

// normalizePatch applies the same trimming to the present fields of a patch,
// so stored values and the diff agree with what validation saw.
func normalizePatch(pp model.PatientPatch) model.PatientPatch {
	for _, o := range []*model.Opt[string]{&pp.FullName, &pp.BirthDate, &pp.Gender, &pp.PhoneNumber, &pp.Address} {
		if o.Set {
			o.Value = strings.TrimSpace(o.Value)
		}
	}
	for _, o := range []*model.Opt[*string]{&pp.Email, &pp.BloodType, &pp.KnownAllergies} {
		if o.Set {
			o.Value = trimText(o.Value)
		}
	}
	return pp
}

func trimText(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
