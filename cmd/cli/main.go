// Command ck is a CLI client for the clinic-keeper service.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcinsecure "google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/and161185/clinic-keeper/internal/api"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "clinic-keeper")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "clinic-keeper")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tok string, exp time.Time) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: tok, ExpiresAt: exp})
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

type bearerCreds struct {
	token     string
	plaintext bool
}

func (b bearerCreds) GetRequestMetadata(context.Context, ...string) (map[string]string, error) {
	return map[string]string{"authorization": "Bearer " + b.token}, nil
}
func (b bearerCreds) RequireTransportSecurity() bool { return !b.plaintext }

type transport struct {
	addr      string
	caPath    string
	insecure  bool
	plaintext bool
}

func loadTLS(caPath string, insecure bool) (credentials.TransportCredentials, error) {
	if insecure {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

func dial(tr transport, bearer string) (*grpc.ClientConn, *api.Client, error) {
	var creds credentials.TransportCredentials
	if tr.plaintext {
		creds = grpcinsecure.NewCredentials()
	} else {
		c, err := loadTLS(tr.caPath, tr.insecure)
		if err != nil {
			return nil, nil, err
		}
		creds = c
	}
	opts := []grpc.DialOption{grpc.WithTransportCredentials(creds)}
	if bearer != "" {
		opts = append(opts, grpc.WithPerRPCCredentials(bearerCreds{token: bearer, plaintext: tr.plaintext}))
	}
	cc, err := grpc.NewClient(tr.addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return cc, api.NewClient(cc), nil
}

// dialAuthed loads the saved token and dials with it.
func dialAuthed(tr transport) (*grpc.ClientConn, *api.Client) {
	token, err := loadToken()
	if err != nil {
		fail(err)
	}
	cc, cli, err := dial(tr, token)
	if err != nil {
		fail(err)
	}
	return cc, cli
}

// ---- utils ----

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func requireID(name string, v int64) {
	if v <= 0 {
		fmt.Fprintf(os.Stderr, "need -%s\n", name)
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `ck CLI
Usage:
  ck -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  login           -cpf <cpf> -p <password>           (saves token)
  whoami
  search          [-id <id>] [-cpf <cpf>] [-name <substr>]
  create-patient  -name -birth DDMMYYYY -cpf -p -gender -phone -address [-email -blood -allergies]
  update-patient  -id <id> -ver <version> [field flags] [-clear email,blood_type,known_allergies]
  deactivate      -id <id> -reason <text>
  delete-patient  -id <id>
  history         -id <id>
  schedule        -patient <id> -doctor <id> -at <RFC3339>
  cancel          -id <appointment id>
  complete        -id <appointment id>
  appointments    -patient <id>
  create-staff    -u <username> -cpf <cpf> -p <password> -role <role>
  list-staff
`)
	os.Exit(2)
}

// ---- main ----

var (
	version   = "dev"
	buildDate = "unknown"
)

// main dispatches subcommands and configures TLS/auth for RPC calls.
func main() {
	// global flags
	addr := flag.String("addr", "localhost:8443", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	insecure := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS at all (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}
	cmd := flag.Arg(0)
	args := flag.Args()[1:]
	tr := transport{addr: *addr, caPath: *caPath, insecure: *insecure, plaintext: *plaintext}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {

	case "version":
		fmt.Printf("ck %s (%s)\n", version, buildDate)

	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		cpf := fs.String("cpf", "", "cpf")
		p := fs.String("p", "", "password")
		_ = fs.Parse(args)
		if *cpf == "" || *p == "" {
			fmt.Fprintln(os.Stderr, "need -cpf and -p")
			os.Exit(1)
		}

		cc, cli, err := dial(tr, "")
		if err != nil {
			fail(err)
		}
		defer cc.Close()

		resp, err := cli.Login(ctx, &api.LoginRequest{CPF: *cpf, Password: *p})
		if err != nil {
			fail(err)
		}
		if err := saveToken(resp.AccessToken, resp.ExpiresAt); err != nil {
			fail(err)
		}
		printJSON(resp.Principal)

	case "whoami":
		cc, cli := dialAuthed(tr)
		defer cc.Close()

		out, err := cli.WhoAmI(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out)

	case "search":
		fs := flag.NewFlagSet("search", flag.ExitOnError)
		id := fs.Int64("id", 0, "patient id")
		cpf := fs.String("cpf", "", "cpf")
		name := fs.String("name", "", "name substring")
		_ = fs.Parse(args)

		req := &api.SearchPatientsRequest{CPF: optString(*cpf), Name: optString(*name)}
		if *id > 0 {
			req.ID = id
		}
		cc, cli := dialAuthed(tr)
		defer cc.Close()

		out, err := cli.SearchPatients(ctx, req)
		if err != nil {
			fail(err)
		}
		printJSON(out.Patients)

	case "create-patient":
		cmdCreatePatient(ctx, args, tr)
	case "update-patient":
		cmdUpdatePatient(ctx, args, tr)

	case "deactivate":
		fs := flag.NewFlagSet("deactivate", flag.ExitOnError)
		id := fs.Int64("id", 0, "patient id")
		reason := fs.String("reason", "", "reason")
		_ = fs.Parse(args)
		requireID("id", *id)

		cc, cli := dialAuthed(tr)
		defer cc.Close()

		out, err := cli.DeactivatePatient(ctx, &api.DeactivatePatientRequest{ID: *id, Reason: *reason})
		if err != nil {
			fail(err)
		}
		printJSON(out.Inactivation)

	case "delete-patient":
		fs := flag.NewFlagSet("delete-patient", flag.ExitOnError)
		id := fs.Int64("id", 0, "patient id")
		_ = fs.Parse(args)
		requireID("id", *id)

		cc, cli := dialAuthed(tr)
		defer cc.Close()

		if err := cli.DeletePatient(ctx, *id); err != nil {
			fail(err)
		}
		fmt.Println("deleted")

	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		id := fs.Int64("id", 0, "patient id")
		_ = fs.Parse(args)
		requireID("id", *id)

		cc, cli := dialAuthed(tr)
		defer cc.Close()

		out, err := cli.PatientHistory(ctx, *id)
		if err != nil {
			fail(err)
		}
		printJSON(out.Entries)

	case "schedule":
		fs := flag.NewFlagSet("schedule", flag.ExitOnError)
		patient := fs.Int64("patient", 0, "patient id")
		doctor := fs.Int64("doctor", 0, "doctor staff id")
		at := fs.String("at", "", "start time, RFC3339")
		_ = fs.Parse(args)
		requireID("patient", *patient)
		requireID("doctor", *doctor)
		when, err := parseAt(*at)
		if err != nil {
			fail(err)
		}

		cc, cli := dialAuthed(tr)
		defer cc.Close()

		out, err := cli.ScheduleAppointment(ctx, &api.ScheduleAppointmentRequest{
			PatientID: *patient, DoctorID: *doctor, ScheduledAt: when,
		})
		if err != nil {
			fail(err)
		}
		printJSON(out.Appointment)

	case "cancel", "complete":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int64("id", 0, "appointment id")
		_ = fs.Parse(args)
		requireID("id", *id)

		cc, cli := dialAuthed(tr)
		defer cc.Close()

		call := cli.CancelAppointment
		if cmd == "complete" {
			call = cli.CompleteAppointment
		}
		if err := call(ctx, *id); err != nil {
			fail(err)
		}
		fmt.Println("ok")

	case "appointments":
		fs := flag.NewFlagSet("appointments", flag.ExitOnError)
		patient := fs.Int64("patient", 0, "patient id")
		_ = fs.Parse(args)
		requireID("patient", *patient)

		cc, cli := dialAuthed(tr)
		defer cc.Close()

		out, err := cli.ListAppointments(ctx, *patient)
		if err != nil {
			fail(err)
		}
		printJSON(out.Appointments)

	case "create-staff":
		fs := flag.NewFlagSet("create-staff", flag.ExitOnError)
		u := fs.String("u", "", "username")
		cpf := fs.String("cpf", "", "cpf")
		p := fs.String("p", "", "password")
		role := fs.String("role", "", "role (e.g. DOCTOR)")
		_ = fs.Parse(args)
		if *u == "" || *cpf == "" || *p == "" || *role == "" {
			fmt.Fprintln(os.Stderr, "need -u, -cpf, -p and -role")
			os.Exit(1)
		}

		cc, cli := dialAuthed(tr)
		defer cc.Close()

		out, err := cli.CreateStaff(ctx, &api.CreateStaffRequest{Username: *u, CPF: *cpf, Password: *p, Role: *role})
		if err != nil {
			fail(err)
		}
		printJSON(out.Staff)

	case "list-staff":
		cc, cli := dialAuthed(tr)
		defer cc.Close()

		out, err := cli.ListStaff(ctx)
		if err != nil {
			fail(err)
		}
		printJSON(out.Staff)

	default:
		usage()
	}
}

// ---- helpers ----

func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("need -at")
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad -at: %w", err)
	}
	return t, nil
}

func fail(err error) {
	if s, ok := status.FromError(err); ok {
		fmt.Fprintf(os.Stderr, "rpc error: code=%s msg=%s\n", s.Code(), s.Message())
		os.Exit(1)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
