package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "clinic.v1.Clinic"

// Full method names, as seen by interceptors.
const (
	MethodLogin               = "/" + ServiceName + "/Login"
	MethodWhoAmI              = "/" + ServiceName + "/WhoAmI"
	MethodSearchPatients      = "/" + ServiceName + "/SearchPatients"
	MethodCreatePatient       = "/" + ServiceName + "/CreatePatient"
	MethodUpdatePatient       = "/" + ServiceName + "/UpdatePatient"
	MethodDeactivatePatient   = "/" + ServiceName + "/DeactivatePatient"
	MethodDeletePatient       = "/" + ServiceName + "/DeletePatient"
	MethodPatientHistory      = "/" + ServiceName + "/PatientHistory"
	MethodScheduleAppointment = "/" + ServiceName + "/ScheduleAppointment"
	MethodCancelAppointment   = "/" + ServiceName + "/CancelAppointment"
	MethodCompleteAppointment = "/" + ServiceName + "/CompleteAppointment"
	MethodListAppointments    = "/" + ServiceName + "/ListAppointments"
	MethodCreateStaff         = "/" + ServiceName + "/CreateStaff"
	MethodListStaff           = "/" + ServiceName + "/ListStaff"
)

// ClinicServer is the server API of the clinic service.
type ClinicServer interface {
	Login(context.Context, *LoginRequest) (*LoginResponse, error)
	WhoAmI(context.Context, *Empty) (*Principal, error)

	SearchPatients(context.Context, *SearchPatientsRequest) (*PatientsResponse, error)
	CreatePatient(context.Context, *CreatePatientRequest) (*PatientResponse, error)
	UpdatePatient(context.Context, *UpdatePatientRequest) (*PatientResponse, error)
	DeactivatePatient(context.Context, *DeactivatePatientRequest) (*DeactivatePatientResponse, error)
	DeletePatient(context.Context, *IDRequest) (*Empty, error)
	PatientHistory(context.Context, *IDRequest) (*PatientHistoryResponse, error)

	ScheduleAppointment(context.Context, *ScheduleAppointmentRequest) (*AppointmentResponse, error)
	CancelAppointment(context.Context, *IDRequest) (*Empty, error)
	CompleteAppointment(context.Context, *IDRequest) (*Empty, error)
	ListAppointments(context.Context, *ListAppointmentsRequest) (*AppointmentsResponse, error)

	CreateStaff(context.Context, *CreateStaffRequest) (*StaffResponse, error)
	ListStaff(context.Context, *Empty) (*StaffListResponse, error)
}

// unary adapts a typed ClinicServer method to a grpc.MethodDesc.
func unary[Req, Resp any](fullMethod string, call func(ClinicServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: fullMethod[len(ServiceName)+2:],
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ClinicServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ClinicServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the clinic service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClinicServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodLogin, ClinicServer.Login),
		unary(MethodWhoAmI, ClinicServer.WhoAmI),
		unary(MethodSearchPatients, ClinicServer.SearchPatients),
		unary(MethodCreatePatient, ClinicServer.CreatePatient),
		unary(MethodUpdatePatient, ClinicServer.UpdatePatient),
		unary(MethodDeactivatePatient, ClinicServer.DeactivatePatient),
		unary(MethodDeletePatient, ClinicServer.DeletePatient),
		unary(MethodPatientHistory, ClinicServer.PatientHistory),
		unary(MethodScheduleAppointment, ClinicServer.ScheduleAppointment),
		unary(MethodCancelAppointment, ClinicServer.CancelAppointment),
		unary(MethodCompleteAppointment, ClinicServer.CompleteAppointment),
		unary(MethodListAppointments, ClinicServer.ListAppointments),
		unary(MethodCreateStaff, ClinicServer.CreateStaff),
		unary(MethodListStaff, ClinicServer.ListStaff),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "clinic/v1/clinic.json",
}

// RegisterClinicServer registers srv on s.
func RegisterClinicServer(s grpc.ServiceRegistrar, srv ClinicServer) {
	s.RegisterService(&ServiceDesc, srv)
}
