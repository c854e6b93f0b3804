package api

import (
	"context"

	"google.golang.org/grpc"
)

// Client is a typed client for the clinic service. Every call is sent with
// the JSON content-subtype.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection.
func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c, MethodLogin, in, opts)
}

func (c *Client) WhoAmI(ctx context.Context, opts ...grpc.CallOption) (*Principal, error) {
	return invoke[Principal](ctx, c, MethodWhoAmI, &Empty{}, opts)
}

func (c *Client) SearchPatients(ctx context.Context, in *SearchPatientsRequest, opts ...grpc.CallOption) (*PatientsResponse, error) {
	return invoke[PatientsResponse](ctx, c, MethodSearchPatients, in, opts)
}

func (c *Client) CreatePatient(ctx context.Context, in *CreatePatientRequest, opts ...grpc.CallOption) (*PatientResponse, error) {
	return invoke[PatientResponse](ctx, c, MethodCreatePatient, in, opts)
}

func (c *Client) UpdatePatient(ctx context.Context, in *UpdatePatientRequest, opts ...grpc.CallOption) (*PatientResponse, error) {
	return invoke[PatientResponse](ctx, c, MethodUpdatePatient, in, opts)
}

func (c *Client) DeactivatePatient(ctx context.Context, in *DeactivatePatientRequest, opts ...grpc.CallOption) (*DeactivatePatientResponse, error) {
	return invoke[DeactivatePatientResponse](ctx, c, MethodDeactivatePatient, in, opts)
}

func (c *Client) DeletePatient(ctx context.Context, id int64, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodDeletePatient, &IDRequest{ID: id}, opts)
	return err
}

func (c *Client) PatientHistory(ctx context.Context, id int64, opts ...grpc.CallOption) (*PatientHistoryResponse, error) {
	return invoke[PatientHistoryResponse](ctx, c, MethodPatientHistory, &IDRequest{ID: id}, opts)
}

func (c *Client) ScheduleAppointment(ctx context.Context, in *ScheduleAppointmentRequest, opts ...grpc.CallOption) (*AppointmentResponse, error) {
	return invoke[AppointmentResponse](ctx, c, MethodScheduleAppointment, in, opts)
}

func (c *Client) CancelAppointment(ctx context.Context, id int64, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodCancelAppointment, &IDRequest{ID: id}, opts)
	return err
}

func (c *Client) CompleteAppointment(ctx context.Context, id int64, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c, MethodCompleteAppointment, &IDRequest{ID: id}, opts)
	return err
}

func (c *Client) ListAppointments(ctx context.Context, patientID int64, opts ...grpc.CallOption) (*AppointmentsResponse, error) {
	return invoke[AppointmentsResponse](ctx, c, MethodListAppointments, &ListAppointmentsRequest{PatientID: patientID}, opts)
}

func (c *Client) CreateStaff(ctx context.Context, in *CreateStaffRequest, opts ...grpc.CallOption) (*StaffResponse, error) {
	return invoke[StaffResponse](ctx, c, MethodCreateStaff, in, opts)
}

func (c *Client) ListStaff(ctx context.Context, opts ...grpc.CallOption) (*StaffListResponse, error) {
	return invoke[StaffListResponse](ctx, c, MethodListStaff, &Empty{}, opts)
}
