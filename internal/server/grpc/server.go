// Package grpcserver exposes the clinic gRPC API handlers.
package grpcserver

import (
	"context"
	"errors"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/clinic-keeper/internal/api"
	"github.com/and161185/clinic-keeper/internal/convert"
	"github.com/and161185/clinic-keeper/internal/errs"
	"github.com/and161185/clinic-keeper/internal/model"
	"github.com/and161185/clinic-keeper/internal/service"
)

// Server wires services into gRPC handlers.
type Server struct {
	auth     service.AuthService
	patients service.PatientService
	appts    service.AppointmentService
	staff    service.StaffService
	log      *zap.Logger
}

var _ api.ClinicServer = (*Server)(nil)

// New constructs a gRPC server with injected services.
func New(
	auth service.AuthService,
	patients service.PatientService,
	appts service.AppointmentService,
	staff service.StaffService,
	log *zap.Logger,
) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, patients: patients, appts: appts, staff: staff, log: log}
}

// toStatus maps domain sentinels onto gRPC codes, keeping the wrapped
// message. Anything unrecognised is logged and reported as a bare Internal.
func (s *Server) toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	var code codes.Code
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		code = codes.Unauthenticated
	case errors.Is(err, errs.ErrForbidden):
		code = codes.PermissionDenied
	case errors.Is(err, errs.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, errs.ErrConflict):
		code = codes.AlreadyExists
	case errors.Is(err, errs.ErrVersionConflict):
		code = codes.Aborted
	case errors.Is(err, errs.ErrBlocked):
		code = codes.FailedPrecondition
	case errors.Is(err, errs.ErrInvalid):
		code = codes.InvalidArgument
	case errors.Is(err, errs.ErrRateLimited):
		code = codes.ResourceExhausted
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	default:
		s.log.Error("internal error", zap.Error(err), zap.String("request_id", RequestIDFromCtx(ctx)))
		return status.Error(codes.Internal, "internal")
	}
	return status.Error(code, err.Error())
}

// principal is filled in by AuthUnary.
func principal(ctx context.Context) (model.Principal, error) {
	p, ok := PrincipalFromCtx(ctx)
	if !ok {
		return model.Principal{}, status.Error(codes.Unauthenticated, "no auth")
	}
	return p, nil
}

// remoteIP returns the caller host without the port so that one client keeps
// one limiter key across connections.
func remoteIP(ctx context.Context) string {
	p, ok := peer.FromContext(ctx)
	if !ok || p.Addr == nil {
		return ""
	}
	addr := p.Addr.String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

// --- Auth ---

// Login authenticates by CPF and password and returns an access token.
func (s *Server) Login(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	if req.CPF == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "empty cpf/password")
	}
	tok, p, err := s.auth.Login(ctx, req.CPF, req.Password, remoteIP(ctx))
	if err != nil {
		if errors.Is(err, errs.ErrUnauthorized) {
			return nil, status.Error(codes.Unauthenticated, "bad credentials")
		}
		return nil, s.toStatus(ctx, err)
	}
	return &api.LoginResponse{
		AccessToken: tok.AccessToken,
		ExpiresAt:   tok.ExpiresAt,
		Principal:   convert.ToAPIPrincipal(p),
	}, nil
}

// WhoAmI echoes the principal decoded from the caller's token.
func (s *Server) WhoAmI(ctx context.Context, _ *api.Empty) (*api.Principal, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	out := convert.ToAPIPrincipal(p)
	return &out, nil
}

// --- Patients ---

func (s *Server) SearchPatients(ctx context.Context, req *api.SearchPatientsRequest) (*api.PatientsResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.patients.Search(ctx, p, convert.FromAPIFilter(req))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.PatientsResponse{Patients: convert.ToAPIPatients(list)}, nil
}

func (s *Server) CreatePatient(ctx context.Context, req *api.CreatePatientRequest) (*api.PatientResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	pt, err := s.patients.Create(ctx, p, convert.FromAPINewPatient(req))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.PatientResponse{Patient: convert.ToAPIPatient(*pt)}, nil
}

// UpdatePatient applies a sparse patch guarded by the client's version.
func (s *Server) UpdatePatient(ctx context.Context, req *api.UpdatePatientRequest) (*api.PatientResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	patch, err := convert.FromAPIPatch(req.Patch)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	pt, err := s.patients.Update(ctx, p, req.ID, patch, req.VersionID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.PatientResponse{Patient: convert.ToAPIPatient(*pt)}, nil
}

func (s *Server) DeactivatePatient(ctx context.Context, req *api.DeactivatePatientRequest) (*api.DeactivatePatientResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := s.patients.Deactivate(ctx, p, req.ID, req.Reason)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.DeactivatePatientResponse{Inactivation: convert.ToAPIInactivation(*rec)}, nil
}

func (s *Server) DeletePatient(ctx context.Context, req *api.IDRequest) (*api.Empty, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.patients.Delete(ctx, p, req.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *Server) PatientHistory(ctx context.Context, req *api.IDRequest) (*api.PatientHistoryResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	hist, err := s.patients.History(ctx, p, req.ID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.PatientHistoryResponse{Entries: convert.ToAPIHistory(hist)}, nil
}

// --- Appointments ---

func (s *Server) ScheduleAppointment(ctx context.Context, req *api.ScheduleAppointmentRequest) (*api.AppointmentResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if req.ScheduledAt.IsZero() {
		return nil, status.Error(codes.InvalidArgument, "empty scheduled_at")
	}
	a, err := s.appts.Schedule(ctx, p, req.PatientID, req.DoctorID, req.ScheduledAt)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.AppointmentResponse{Appointment: convert.ToAPIAppointment(*a)}, nil
}

func (s *Server) CancelAppointment(ctx context.Context, req *api.IDRequest) (*api.Empty, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.appts.Cancel(ctx, p, req.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *Server) CompleteAppointment(ctx context.Context, req *api.IDRequest) (*api.Empty, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.appts.Complete(ctx, p, req.ID); err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.Empty{}, nil
}

func (s *Server) ListAppointments(ctx context.Context, req *api.ListAppointmentsRequest) (*api.AppointmentsResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.appts.ListForPatient(ctx, p, req.PatientID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.AppointmentsResponse{Appointments: convert.ToAPIAppointments(list)}, nil
}

// --- Staff ---

func (s *Server) CreateStaff(ctx context.Context, req *api.CreateStaffRequest) (*api.StaffResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	st, err := s.staff.CreateStaff(ctx, p, convert.FromAPINewStaff(req))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.StaffResponse{Staff: convert.ToAPIStaff(*st)}, nil
}

func (s *Server) ListStaff(ctx context.Context, _ *api.Empty) (*api.StaffListResponse, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	list, err := s.staff.ListStaff(ctx, p)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return &api.StaffListResponse{Staff: convert.ToAPIStaffList(list)}, nil
}
