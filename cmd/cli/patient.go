package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/and161185/clinic-keeper/internal/api"
)

// optString maps an empty flag value to "not given".
func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// patchFlags registers one flag per updatable patient field.
func patchFlags(fs *flag.FlagSet) {
	fs.String("name", "", "full name")
	fs.String("birth", "", "birth date DDMMYYYY")
	fs.String("gender", "", "gender")
	fs.String("phone", "", "phone number (11 digits)")
	fs.String("address", "", "address")
	fs.String("email", "", "email")
	fs.String("blood", "", "blood type")
	fs.String("allergies", "", "known allergies")
	fs.String("clear", "", "comma-separated optional fields to set to null")
}

// buildPatch turns the explicitly set flags of fs into a patch. A flag given
// with an empty value is still sent; only untouched flags are left out.
func buildPatch(fs *flag.FlagSet) api.PatientPatch {
	var p api.PatientPatch
	fs.Visit(func(f *flag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "name":
			p.FullName = &v
		case "birth":
			p.BirthDate = &v
		case "gender":
			p.Gender = &v
		case "phone":
			p.PhoneNumber = &v
		case "address":
			p.Address = &v
		case "email":
			p.Email = &v
		case "blood":
			p.BloodType = &v
		case "allergies":
			p.KnownAllergies = &v
		case "clear":
			for _, name := range strings.Split(v, ",") {
				if name = strings.TrimSpace(name); name != "" {
					p.Clear = append(p.Clear, name)
				}
			}
		}
	})
	return p
}

func emptyPatch(p api.PatientPatch) bool {
	return p.FullName == nil && p.BirthDate == nil && p.Gender == nil && p.PhoneNumber == nil &&
		p.Address == nil && p.Email == nil && p.BloodType == nil && p.KnownAllergies == nil &&
		len(p.Clear) == 0
}

// cmdCreatePatient registers a patient from flags.
func cmdCreatePatient(ctx context.Context, args []string, tr transport) {
	fs := flag.NewFlagSet("create-patient", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	birth := fs.String("birth", "", "birth date DDMMYYYY")
	cpf := fs.String("cpf", "", "cpf")
	pass := fs.String("p", "", "password")
	gender := fs.String("gender", "", "gender")
	phone := fs.String("phone", "", "phone number (11 digits)")
	address := fs.String("address", "", "address")
	email := fs.String("email", "", "email")
	blood := fs.String("blood", "", "blood type")
	allergies := fs.String("allergies", "", "known allergies")
	_ = fs.Parse(args)

	if *name == "" || *cpf == "" || *pass == "" {
		fmt.Fprintln(os.Stderr, "need at least -name, -cpf and -p")
		os.Exit(2)
	}
	req := &api.CreatePatientRequest{
		FullName:       *name,
		BirthDate:      *birth,
		CPF:            *cpf,
		Password:       *pass,
		Gender:         *gender,
		PhoneNumber:    *phone,
		Address:        *address,
		Email:          optString(*email),
		BloodType:      optString(*blood),
		KnownAllergies: optString(*allergies),
	}

	cc, cli := dialAuthed(tr)
	defer cc.Close()

	out, err := cli.CreatePatient(ctx, req)
	if err != nil {
		fail(err)
	}
	printJSON(out.Patient)
}

// cmdUpdatePatient sends a sparse update guarded by the version the caller last saw.
func cmdUpdatePatient(ctx context.Context, args []string, tr transport) {
	fs := flag.NewFlagSet("update-patient", flag.ExitOnError)
	id := fs.Int64("id", 0, "patient id")
	ver := fs.Int64("ver", 0, "version the change is based on")
	patchFlags(fs)
	_ = fs.Parse(args)

	requireID("id", *id)
	requireID("ver", *ver)
	patch := buildPatch(fs)
	if emptyPatch(patch) {
		fmt.Fprintln(os.Stderr, "nothing to update")
		os.Exit(2)
	}

	cc, cli := dialAuthed(tr)
	defer cc.Close()

	out, err := cli.UpdatePatient(ctx, &api.UpdatePatientRequest{ID: *id, VersionID: *ver, Patch: patch})
	if err != nil {
		fail(err)
	}
	printJSON(out.Patient)
}
