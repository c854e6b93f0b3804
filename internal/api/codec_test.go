package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/encoding"
)

func TestCodec_Registered(t *testing.T) {
	c := encoding.GetCodec(CodecName)
	require.NotNil(t, c)
	require.Equal(t, CodecName, c.Name())
}

func TestCodec_PatchKeepsAbsentFieldsAbsent(t *testing.T) {
	name := "Maria Lima"
	in := &UpdatePatientRequest{ID: 3, VersionID: 2, Patch: PatientPatch{FullName: &name, Clear: []string{"email"}}}

	b, err := jsonCodec{}.Marshal(in)
	require.NoError(t, err)
	require.NotContains(t, string(b), "phone_number")

	var out UpdatePatientRequest
	require.NoError(t, jsonCodec{}.Unmarshal(b, &out))
	require.Equal(t, *in, out)
	require.Nil(t, out.Patch.Email)
}

func TestCodec_TimesRoundTrip(t *testing.T) {
	when := time.Date(2030, 5, 1, 9, 30, 0, 0, time.UTC)
	b, err := jsonCodec{}.Marshal(&ScheduleAppointmentRequest{PatientID: 1, DoctorID: 2, ScheduledAt: when})
	require.NoError(t, err)

	var out ScheduleAppointmentRequest
	require.NoError(t, jsonCodec{}.Unmarshal(b, &out))
	require.True(t, out.ScheduledAt.Equal(when))
}

func TestCodec_Errors(t *testing.T) {
	_, err := jsonCodec{}.Marshal(make(chan int))
	require.Error(t, err)

	var out LoginRequest
	require.Error(t, jsonCodec{}.Unmarshal([]byte("{"), &out))
	require.NoError(t, jsonCodec{}.Unmarshal(nil, &out))
}

func TestServiceDesc_MethodNames(t *testing.T) {
	require.Len(t, ServiceDesc.Methods, 14)
	require.Equal(t, "Login", ServiceDesc.Methods[0].MethodName)
	require.Equal(t, "ListStaff", ServiceDesc.Methods[13].MethodName)
}
