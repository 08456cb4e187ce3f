// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package emm

import (
	"bytes"
	"testing"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/mmeapp"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testRand  = bytes.Repeat([]byte{0x5a}, 16)
	testXres  = []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	testAutn  = bytes.Repeat([]byte{0xa5}, 16)
	testKasme = bytes.Repeat([]byte{0x3c}, 32)
)

func attachRequest(identity nasMessage.MobileIdentity, attachType uint8) *nasMessage.AttachRequest {
	return &nasMessage.AttachRequest{
		NasKeySetIdentifier: nasMessage.NasKeySetIdentifier{Ksi: nasMessage.NasKeySetIdentifierNoKeyAvailable},
		EpsAttachType:       attachType,
		EpsMobileIdentity:   identity,
		UeNetworkCapability: nasMessage.UeNetworkCapability{0xe0, 0xe0},
		EsmMessageContainer: []byte{0x02, 0x01, 0xd0, 0x31},
	}
}

func authInfoAnswer(ue *context.UeContext) *itti.AuthInfoAnswer {
	return &itti.AuthInfoAnswer{
		UeId:   ue.UeId,
		Imsi:   ue.Emm.Imsi.Value(),
		Result: itti.ResultSuccess,
		Vectors: []itti.EutranVector{
			{Rand: testRand, Xres: testXres, Autn: testAutn, Kasme: testKasme},
		},
	}
}

func TestAttachWithImsi(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "")
	success := prometheus.Labels{"result": "attach_proc_successful", "cause": ""}
	authSuccess := prometheus.Labels{"result": "success"}
	before := counterValue("ue_attach", success)
	authBefore := counterValue("nas_auth_rsp", authSuccess)

	dispatch(t, mme, ue, attachRequest(nasMessage.NewImsiIdentity("208930000000011"), nasMessage.EpsAttachTypeEps))
	assert.True(t, ue.Emm.State.Is(context.CommonProcedureInitiated))
	airs := bus.SentOf(itti.S6aAuthInfoRequest)
	require.Len(t, airs, 1)
	assert.Equal(t, "208930000000011", airs[0].(*itti.AuthInfoRequest).Imsi)
	assert.Nil(t, airs[0].(*itti.AuthInfoRequest).ResyncInfo)

	require.NoError(t, HandleAuthInfoAnswer(mme, authInfoAnswer(ue)))
	authReq, ok := lastDownlink(t, bus).(*nasMessage.AuthenticationRequest)
	require.True(t, ok)
	assert.Equal(t, testRand, authReq.Rand[:])
	assert.Equal(t, testAutn, authReq.Autn)

	dispatch(t, mme, ue, &nasMessage.AuthenticationResponse{Res: testXres})
	assert.Equal(t, authBefore+1, counterValue("nas_auth_rsp", authSuccess))
	smc, ok := lastDownlink(t, bus).(*nasMessage.SecurityModeCommand)
	require.True(t, ok)
	assert.Equal(t, uint8(2), smc.SelectedEia)
	assert.Equal(t, uint8(0), smc.SelectedEea)
	require.NotNil(t, ue.Emm.SecurityContext)
	assert.True(t, ue.Emm.SecurityContext.KeysDerived)
	assert.False(t, ue.Emm.SecurityContext.Activated)

	dispatch(t, mme, ue, &nasMessage.SecurityModeComplete{})
	assert.True(t, ue.Emm.SecurityContext.Activated)
	assert.True(t, ue.Emm.State.Is(context.Deregistered))
	csrs := bus.SentOf(itti.S11CreateSessionRequest)
	require.Len(t, csrs, 1)
	csr := csrs[0].(*itti.CreateSessionRequest)
	assert.Equal(t, uint8(5), csr.Ebi)
	assert.Equal(t, []byte{0x02, 0x01, 0xd0, 0x31}, csr.EsmContainer)

	require.NoError(t, HandleCreateSessionResponse(mme, &itti.CreateSessionResponse{
		UeId:         ue.UeId,
		Ebi:          5,
		Cause:        itti.ResultSuccess,
		SgwTeid:      0x1234,
		PdnAddress:   "10.250.0.2",
		EsmContainer: []byte{0x52, 0x01, 0xc1},
	}))
	icss := bus.SentOf(itti.S1apInitialContextSetupRequest)
	require.Len(t, icss, 1)
	ics := icss[0].(*itti.InitialContextSetupRequest)
	assert.Len(t, ics.Kenb, 32)
	require.Len(t, ics.Erabs, 1)
	assert.Equal(t, uint32(0x1234), ics.Erabs[0].SgwTeid)

	accept, ok := lastDownlink(t, bus).(*nasMessage.AttachAccept)
	require.True(t, ok)
	guti, valid := ue.Emm.Guti.Get()
	require.True(t, valid)
	require.NotNil(t, accept.Guti)
	assert.Equal(t, guti, *accept.Guti)
	assert.Len(t, accept.TaiList, 2)
	assert.Equal(t, []byte{0x52, 0x01, 0xc1}, accept.EsmMessageContainer)

	dispatch(t, mme, ue, &nasMessage.AttachComplete{})
	assert.True(t, ue.Emm.State.Is(context.Registered))
	assert.Equal(t, before+1, counterValue("ue_attach", success))
	_, attaching := ue.Emm.Procedure(context.ProcedureAttach)
	assert.False(t, attaching)
	found, ok := mme.UeContextByGuti(guti)
	require.True(t, ok)
	assert.Equal(t, ue.UeId, found.UeId)
}

func TestAttachUnknownSubscriber(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "")
	failure := prometheus.Labels{"result": "failure", "cause": "user_unknown"}
	before := counterValue("ue_attach", failure)

	dispatch(t, mme, ue, attachRequest(nasMessage.NewImsiIdentity("208930000000012"), nasMessage.EpsAttachTypeEps))
	require.NoError(t, HandleAuthInfoAnswer(mme, &itti.AuthInfoAnswer{
		UeId:   ue.UeId,
		Result: itti.ResultUserUnknown,
	}))

	reject, ok := lastDownlink(t, bus).(*nasMessage.AttachReject)
	require.True(t, ok)
	assert.Equal(t, nasMessage.Cause8EpsAndNonEpsServicesNotAllowed, reject.EmmCause)
	assert.Equal(t, before+1, counterValue("ue_attach", failure))
	assert.True(t, ue.Emm.State.Is(context.Deregistered))

	// the reject releases the connection, the context goes with it
	assert.Empty(t, bus.SentOf(itti.S1apUeContextReleaseCommand))
	mmeapp.HandleUeContextReleaseComplete(mme, ue)
	_, ok = mme.UeContextByImsi("208930000000012")
	assert.False(t, ok)
}

func TestAuthenticationResponseMismatch(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "")
	failure := prometheus.Labels{"result": "failure"}
	before := counterValue("nas_auth_rsp", failure)

	dispatch(t, mme, ue, attachRequest(nasMessage.NewImsiIdentity("208930000000013"), nasMessage.EpsAttachTypeEps))
	require.NoError(t, HandleAuthInfoAnswer(mme, authInfoAnswer(ue)))
	dispatch(t, mme, ue, &nasMessage.AuthenticationResponse{Res: []byte{0xde, 0xad, 0xbe, 0xef}})

	_, ok := lastDownlink(t, bus).(*nasMessage.AuthenticationReject)
	assert.True(t, ok)
	assert.Equal(t, before+1, counterValue("nas_auth_rsp", failure))
	assert.True(t, ue.Emm.State.Is(context.Deregistered))
	assert.Nil(t, ue.Emm.SecurityContext)
}

func TestAuthenticationSynchFailure(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "")
	auts := bytes.Repeat([]byte{0x0f}, 14)

	dispatch(t, mme, ue, attachRequest(nasMessage.NewImsiIdentity("208930000000014"), nasMessage.EpsAttachTypeEps))
	require.NoError(t, HandleAuthInfoAnswer(mme, authInfoAnswer(ue)))
	dispatch(t, mme, ue, &nasMessage.AuthenticationFailure{
		EmmCause:                       nasMessage.Cause21SynchFailure,
		AuthenticationFailureParameter: auts,
	})

	airs := bus.SentOf(itti.S6aAuthInfoRequest)
	require.Len(t, airs, 2)
	resync := airs[1].(*itti.AuthInfoRequest).ResyncInfo
	assert.Equal(t, append(append([]byte{}, testRand...), auts...), resync)
	assert.True(t, ue.Emm.State.Is(context.CommonProcedureInitiated))

	// a second synch failure ends the attach
	require.NoError(t, HandleAuthInfoAnswer(mme, authInfoAnswer(ue)))
	dispatch(t, mme, ue, &nasMessage.AuthenticationFailure{
		EmmCause:                       nasMessage.Cause21SynchFailure,
		AuthenticationFailureParameter: auts,
	})
	_, ok := lastDownlink(t, bus).(*nasMessage.AuthenticationReject)
	assert.True(t, ok)
	assert.Len(t, bus.SentOf(itti.S6aAuthInfoRequest), 2)
	assert.True(t, ue.Emm.State.Is(context.Deregistered))
}

func TestAttachWithForeignGuti(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "")
	foreign := nasMessage.Guti{PlmnId: testPlmn, MmeGroupId: 7, MmeCode: 9, MTmsi: 0xc0ffee}

	dispatch(t, mme, ue, attachRequest(nasMessage.NewGutiIdentity(foreign), nasMessage.EpsAttachTypeEps))
	idReq, ok := lastDownlink(t, bus).(*nasMessage.IdentityRequest)
	require.True(t, ok)
	assert.Equal(t, nasMessage.MobileIdentityTypeImsi, idReq.IdentityType)
	assert.True(t, ue.Emm.State.Is(context.CommonProcedureInitiated))
	assert.Empty(t, bus.SentOf(itti.S6aAuthInfoRequest))
	assert.False(t, ue.Emm.Guti.IsValid())

	dispatch(t, mme, ue, &nasMessage.IdentityResponse{MobileIdentity: nasMessage.NewImsiIdentity("208930000000015")})
	assert.Equal(t, "208930000000015", ue.Emm.Imsi.Value())
	assert.Len(t, bus.SentOf(itti.S6aAuthInfoRequest), 1)
}

func TestAttachFromRegisteredUe(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000016")
	registerUe(t, mme, ue)
	s := context.NewPdnSession(5, "internet")
	s.State = context.PdnSessionActive
	ue.AddPdnSession(s)

	dispatch(t, mme, ue, attachRequest(nasMessage.NewImsiIdentity("208930000000016"), nasMessage.EpsAttachTypeEps))

	assert.Len(t, bus.SentOf(itti.S11DeleteSessionRequest), 1)
	assert.Len(t, bus.SentOf(itti.S6aAuthInfoRequest), 1)
	assert.True(t, ue.Emm.State.Is(context.CommonProcedureInitiated))
	assert.False(t, ue.DestroyOnRelease)

	// the answer to the delete is absorbed without tearing the UE down
	mmeapp.HandleDeleteSessionResponse(mme, &itti.DeleteSessionResponse{UeId: ue.UeId, Ebi: 5, Cause: itti.ResultSuccess})
	_, ok := mme.UeContextById(ue.UeId)
	assert.True(t, ok)
	assert.Empty(t, ue.PdnSessions)
}

func TestExtendedServiceRequestCongestion(t *testing.T) {
	testCases := []struct {
		name       string
		attachType uint8
		control    string
	}{
		{"eps only attach", nasMessage.EpsAttachTypeEps, factory.NonEpsServiceControlCsfbSms},
		{"cs fallback not offered", nasMessage.EpsAttachTypeCombinedEpsImsi, factory.NonEpsServiceControlOff},
		{"neither", nasMessage.EpsAttachTypeEps, factory.NonEpsServiceControlOff},
	}
	labels := prometheus.Labels{"result": "failure", "cause": "emm_cause_congestion"}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := newTestConfig()
			cfg.Nas.NonEpsServiceControl = tc.control
			mme, bus := newTestMme(cfg)
			ue := newTestUe(t, mme, "208930000000021")
			registerUe(t, mme, ue)
			ue.Emm.AttachType = tc.attachType
			before := counterValue("extended_service_request", labels)

			dispatch(t, mme, ue, &nasMessage.ExtendedServiceRequest{
				MTmsi: nasMessage.NewTmsiIdentity(ue.Emm.Guti.Value().MTmsi),
			})

			reject, ok := lastDownlink(t, bus).(*nasMessage.ServiceReject)
			require.True(t, ok)
			assert.Equal(t, nasMessage.Cause22Congestion, reject.EmmCause)
			assert.Equal(t, before+1, counterValue("extended_service_request", labels))
			assert.Empty(t, bus.SentOf(itti.S1apInitialContextSetupRequest))
		})
	}
}

func TestExtendedServiceRequestCsfb(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000022")
	registerUe(t, mme, ue)
	ue.Emm.AttachType = nasMessage.EpsAttachTypeCombinedEpsImsi
	labels := prometheus.Labels{"result": "success", "cause": ""}
	before := counterValue("extended_service_request", labels)
	accepted := uint8(0x01)

	dispatch(t, mme, ue, &nasMessage.ExtendedServiceRequest{
		MTmsi:        nasMessage.NewTmsiIdentity(ue.Emm.Guti.Value().MTmsi),
		CsfbResponse: &accepted,
	})

	assert.Len(t, bus.SentOf(itti.S1apInitialContextSetupRequest), 1)
	assert.Equal(t, before+1, counterValue("extended_service_request", labels))
	assert.Equal(t, accepted, ue.Emm.Csfb.CsfbResponse.Value())
}

func TestServiceRequest(t *testing.T) {
	t.Run("deregistered", func(t *testing.T) {
		mme, bus := newTestMme(newTestConfig())
		ue := newTestUe(t, mme, "")
		labels := prometheus.Labels{"result": "failure", "cause": "implicitly_detached"}
		before := counterValue("service_request", labels)

		dispatch(t, mme, ue, &nasMessage.ServiceRequest{})

		reject, ok := lastDownlink(t, bus).(*nasMessage.ServiceReject)
		require.True(t, ok)
		assert.Equal(t, nasMessage.Cause10ImplicitlyDetached, reject.EmmCause)
		assert.Equal(t, before+1, counterValue("service_request", labels))
		assert.True(t, ue.DestroyOnRelease)
	})
	t.Run("registered", func(t *testing.T) {
		mme, bus := newTestMme(newTestConfig())
		ue := newTestUe(t, mme, "208930000000023")
		registerUe(t, mme, ue)
		labels := prometheus.Labels{"result": "success", "cause": ""}
		before := counterValue("service_request", labels)

		dispatch(t, mme, ue, &nasMessage.ServiceRequest{})

		icss := bus.SentOf(itti.S1apInitialContextSetupRequest)
		require.Len(t, icss, 1)
		assert.Len(t, icss[0].(*itti.InitialContextSetupRequest).Kenb, 32)
		assert.Equal(t, before+1, counterValue("service_request", labels))
	})
}

func TestRejectUnidentified(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000024")
	registerUe(t, mme, ue)
	labels := prometheus.Labels{"result": "failure", "cause": "ue_identity_cant_be_derived_by_nw"}
	before := counterValue("tracking_area_update_req", labels)

	require.NoError(t, RejectUnidentified(mme, ue, nasMessage.MsgTypeTrackingAreaUpdateRequest))

	dl := bus.SentOf(itti.S1apDownlinkNasTransport)
	require.Len(t, dl, 1)
	pdu := dl[0].(*itti.DownlinkNasTransport)
	assert.Equal(t, nasMessage.SecurityHeaderTypePlainNas, pdu.NasPdu[0]>>4)
	assert.Equal(t, itti.DispositionReleaseAfterSend, pdu.Disposition)
	reject, ok := lastDownlink(t, bus).(*nasMessage.TrackingAreaUpdateReject)
	require.True(t, ok)
	assert.Equal(t, nasMessage.Cause9UeIdentityCannotBeDerivedByNetwork, reject.EmmCause)
	assert.Equal(t, before+1, counterValue("tracking_area_update_req", labels))
}

func TestDetachSwitchOffIdle(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000031")
	registerUe(t, mme, ue)
	ue.EcmState = context.EcmIdle
	labels := prometheus.Labels{"cause": "ue_initiated"}
	before := counterValue("ue_detach", labels)

	dispatch(t, mme, ue, &nasMessage.DetachRequest{
		DetachType:        nasMessage.DetachTypeEps | nasMessage.DetachTypeSwitchOff,
		EpsMobileIdentity: nasMessage.NewImsiIdentity("208930000000031"),
	})

	_, ok := mme.UeContextById(ue.UeId)
	assert.False(t, ok)
	assert.Empty(t, bus.SentOf(itti.S1apDownlinkNasTransport))
	assert.Equal(t, before+1, counterValue("ue_detach", labels))
}

func TestDetachConnected(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000032")
	registerUe(t, mme, ue)

	dispatch(t, mme, ue, &nasMessage.DetachRequest{
		DetachType:        nasMessage.DetachTypeEps,
		EpsMobileIdentity: nasMessage.NewImsiIdentity("208930000000032"),
	})

	_, ok := lastDownlink(t, bus).(*nasMessage.DetachAccept)
	assert.True(t, ok)
	assert.True(t, ue.Emm.State.Is(context.Deregistered))
	assert.Len(t, bus.SentOf(itti.S1apUeContextReleaseCommand), 1)

	mmeapp.HandleUeContextReleaseComplete(mme, ue)
	_, ok = mme.UeContextById(ue.UeId)
	assert.False(t, ok)
}

func TestImsiDetach(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000033")
	registerUe(t, mme, ue)
	ue.Emm.Csfb.SgsAssociated = true

	dispatch(t, mme, ue, &nasMessage.DetachRequest{
		DetachType:        nasMessage.DetachTypeImsi,
		EpsMobileIdentity: nasMessage.NewImsiIdentity("208930000000033"),
	})

	_, ok := lastDownlink(t, bus).(*nasMessage.DetachAccept)
	assert.True(t, ok)
	assert.True(t, ue.Emm.State.Is(context.Registered))
	assert.False(t, ue.Emm.Csfb.SgsAssociated)
	assert.True(t, ue.Emm.Detach.ImsiOnly)
	assert.Empty(t, bus.SentOf(itti.S1apUeContextReleaseCommand))
}

func TestMessageNotCompatibleWithState(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "")

	dispatch(t, mme, ue, &nasMessage.AuthenticationResponse{Res: testXres})

	status, ok := lastDownlink(t, bus).(*nasMessage.EmmStatus)
	require.True(t, ok)
	assert.Equal(t, nasMessage.Cause98MessageTypeNotCompatibleWithState, status.EmmCause)
	assert.True(t, ue.Emm.State.Is(context.Deregistered))
}

func TestEmmStatusCounted(t *testing.T) {
	mme, _ := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000034")
	registerUe(t, mme, ue)
	labels := prometheus.Labels{"cause": "111"}
	before := counterValue("emm_status_rcvd", labels)

	dispatch(t, mme, ue, &nasMessage.EmmStatus{EmmCause: nasMessage.Cause111ProtocolErrorUnspecified})

	assert.Equal(t, before+1, counterValue("emm_status_rcvd", labels))
	assert.True(t, ue.Emm.State.Is(context.Registered))
}

func TestTrackingAreaUpdate(t *testing.T) {
	cfg := newTestConfig()
	cfg.T3450 = idleTimer
	mme, bus := newTestMme(cfg)
	ue := newTestUe(t, mme, "208930000000041")
	registerUe(t, mme, ue)
	oldGuti := ue.Emm.Guti.Value()
	ue.Tai = nasMessage.Tai{PlmnId: testPlmn, Tac: 2}
	labels := prometheus.Labels{"result": "success", "cause": ""}
	before := counterValue("tracking_area_update_req", labels)

	dispatch(t, mme, ue, &nasMessage.TrackingAreaUpdateRequest{
		EpsUpdateType: nasMessage.EpsUpdateTypeTaUpdating,
		OldGuti:       nasMessage.NewGutiIdentity(oldGuti),
	})

	accept, ok := lastDownlink(t, bus).(*nasMessage.TrackingAreaUpdateAccept)
	require.True(t, ok)
	assert.Equal(t, nasMessage.EpsUpdateResultTaUpdated, accept.EpsUpdateResult)
	require.NotNil(t, accept.Guti)
	assert.NotEqual(t, oldGuti, *accept.Guti)
	assert.Len(t, accept.TaiList, 2)
	assert.Equal(t, before+1, counterValue("tracking_area_update_req", labels))
	p, ok := ue.Emm.Procedure(context.ProcedureTau)
	require.True(t, ok)
	assert.NotNil(t, p.Timer)
	assert.Equal(t, oldGuti, ue.Emm.OldGuti.Value())

	dispatch(t, mme, ue, &nasMessage.TrackingAreaUpdateComplete{})
	_, ok = ue.Emm.Procedure(context.ProcedureTau)
	assert.False(t, ok)
	assert.False(t, ue.Emm.OldGuti.IsPresent())
	_, ok = mme.UeContextByGuti(oldGuti)
	assert.False(t, ok)
}

func TestCombinedTrackingAreaUpdate(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000042")
	registerUe(t, mme, ue)
	ue.Emm.AttachType = nasMessage.EpsAttachTypeCombinedEpsImsi

	dispatch(t, mme, ue, &nasMessage.TrackingAreaUpdateRequest{
		EpsUpdateType: nasMessage.EpsUpdateTypeCombinedTaLaUpdating | nasMessage.EpsUpdateTypeActiveFlag,
		OldGuti:       nasMessage.NewGutiIdentity(ue.Emm.Guti.Value()),
	})

	bodies := downlinks(t, bus)
	require.NotEmpty(t, bodies)
	accept, ok := bodies[0].(*nasMessage.TrackingAreaUpdateAccept)
	require.True(t, ok)
	assert.Equal(t, nasMessage.EpsUpdateResultCombinedTaLaUpdated, accept.EpsUpdateResult)
	assert.Nil(t, accept.Guti)
	assert.Len(t, bus.SentOf(itti.S1apInitialContextSetupRequest), 1)
	_, ok = ue.Emm.Procedure(context.ProcedureTau)
	assert.False(t, ok)
}

func TestTrackingAreaUpdateDeregistered(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "")

	dispatch(t, mme, ue, &nasMessage.TrackingAreaUpdateRequest{EpsUpdateType: nasMessage.EpsUpdateTypeTaUpdating})

	reject, ok := lastDownlink(t, bus).(*nasMessage.TrackingAreaUpdateReject)
	require.True(t, ok)
	assert.Equal(t, nasMessage.Cause10ImplicitlyDetached, reject.EmmCause)
}

func TestNetworkDetachTimer(t *testing.T) {
	cfg := newTestConfig()
	cfg.T3422 = idleTimer
	mme, bus := newTestMme(cfg)
	ue := newTestUe(t, mme, "208930000000051")
	registerUe(t, mme, ue)
	labels := prometheus.Labels{"cause": "network_initiated"}
	before := counterValue("ue_detach", labels)

	require.NoError(t, NetworkDetach(mme, ue, true))
	assert.True(t, ue.Emm.State.Is(context.DeregistrationInitiated))
	assert.Equal(t, before+1, counterValue("ue_detach", labels))
	require.Len(t, bus.SentOf(itti.S1apDownlinkNasTransport), 1)
	p, ok := ue.Emm.Procedure(context.ProcedureNetworkDetach)
	require.True(t, ok)
	require.NotNil(t, p.Timer)
	timer := p.Timer

	require.NoError(t, HandleTimerExpiry(mme, context.TimerExpiry{
		UeId: ue.UeId, Name: context.T3422, Attempt: 1, Timer: timer,
	}))
	dl := bus.SentOf(itti.S1apDownlinkNasTransport)
	require.Len(t, dl, 2)
	assert.Equal(t, dl[0].(*itti.DownlinkNasTransport).NasPdu, dl[1].(*itti.DownlinkNasTransport).NasPdu)

	require.NoError(t, HandleTimerExpiry(mme, context.TimerExpiry{
		UeId: ue.UeId, Name: context.T3422, Attempt: 5, Final: true, Timer: timer,
	}))
	assert.True(t, ue.Emm.State.Is(context.Deregistered))
	assert.Len(t, bus.SentOf(itti.S1apUeContextReleaseCommand), 1)

	// a late expiry of the stopped timer changes nothing
	require.NoError(t, HandleTimerExpiry(mme, context.TimerExpiry{
		UeId: ue.UeId, Name: context.T3422, Attempt: 2, Timer: timer,
	}))
	assert.Len(t, bus.SentOf(itti.S1apDownlinkNasTransport), 2)
}

func TestNetworkDetachAccepted(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000052")
	registerUe(t, mme, ue)

	require.NoError(t, NetworkDetach(mme, ue, false))
	dispatch(t, mme, ue, &nasMessage.DetachAccept{})

	assert.True(t, ue.Emm.State.Is(context.Deregistered))
	assert.Len(t, bus.SentOf(itti.S1apUeContextReleaseCommand), 1)
	_, ok := ue.Emm.Procedure(context.ProcedureNetworkDetach)
	assert.False(t, ok)
}

func TestNetworkDetachIdleIsLocal(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000053")
	registerUe(t, mme, ue)
	ue.EcmState = context.EcmIdle

	require.NoError(t, NetworkDetach(mme, ue, false))

	assert.Empty(t, bus.SentOf(itti.S1apDownlinkNasTransport))
	_, ok := mme.UeContextById(ue.UeId)
	assert.False(t, ok)
}

func TestExtendedServiceRequestDuringCommonProcedure(t *testing.T) {
	mme, bus := newTestMme(newTestConfig())
	ue := newTestUe(t, mme, "208930000000023")
	registerUe(t, mme, ue)
	ue.Emm.AttachType = nasMessage.EpsAttachTypeEps
	ue.Emm.State.Set(context.CommonProcedureInitiated)

	dispatch(t, mme, ue, &nasMessage.ExtendedServiceRequest{
		MTmsi: nasMessage.NewTmsiIdentity(ue.Emm.Guti.Value().MTmsi),
	})

	reject, ok := lastDownlink(t, bus).(*nasMessage.ServiceReject)
	require.True(t, ok)
	assert.Equal(t, nasMessage.Cause22Congestion, reject.EmmCause)
	assert.True(t, ue.Emm.State.Is(context.CommonProcedureInitiated))
}

func TestRequestsDuringNetworkDetach(t *testing.T) {
	testCases := []struct {
		name  string
		body  func(ue *context.UeContext) nasMessage.Body
		cause func(body nasMessage.Body) (uint8, bool)
		want  uint8
	}{
		{
			name: "tracking area update",
			body: func(ue *context.UeContext) nasMessage.Body {
				return &nasMessage.TrackingAreaUpdateRequest{
					EpsUpdateType: nasMessage.EpsUpdateTypeTaUpdating,
					OldGuti:       nasMessage.NewGutiIdentity(ue.Emm.Guti.Value()),
				}
			},
			cause: func(body nasMessage.Body) (uint8, bool) {
				reject, ok := body.(*nasMessage.TrackingAreaUpdateReject)
				if !ok {
					return 0, false
				}
				return reject.EmmCause, true
			},
			want: nasMessage.Cause10ImplicitlyDetached,
		},
		{
			name: "service request",
			body: func(*context.UeContext) nasMessage.Body { return &nasMessage.ServiceRequest{} },
			cause: func(body nasMessage.Body) (uint8, bool) {
				reject, ok := body.(*nasMessage.ServiceReject)
				if !ok {
					return 0, false
				}
				return reject.EmmCause, true
			},
			want: nasMessage.Cause10ImplicitlyDetached,
		},
		{
			name: "extended service request",
			body: func(ue *context.UeContext) nasMessage.Body {
				return &nasMessage.ExtendedServiceRequest{
					MTmsi: nasMessage.NewTmsiIdentity(ue.Emm.Guti.Value().MTmsi),
				}
			},
			cause: func(body nasMessage.Body) (uint8, bool) {
				reject, ok := body.(*nasMessage.ServiceReject)
				if !ok {
					return 0, false
				}
				return reject.EmmCause, true
			},
			want: nasMessage.Cause22Congestion,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			mme, bus := newTestMme(newTestConfig())
			ue := newTestUe(t, mme, "208930000000054")
			registerUe(t, mme, ue)
			ue.Emm.AttachType = nasMessage.EpsAttachTypeEps
			require.NoError(t, NetworkDetach(mme, ue, false))
			require.True(t, ue.Emm.State.Is(context.DeregistrationInitiated))

			dispatch(t, mme, ue, tc.body(ue))

			cause, ok := tc.cause(lastDownlink(t, bus))
			require.True(t, ok)
			assert.Equal(t, tc.want, cause)
			dl := bus.SentOf(itti.S1apDownlinkNasTransport)
			assert.NotEqual(t, itti.DispositionSuccess, dl[len(dl)-1].(*itti.DownlinkNasTransport).Disposition)
		})
	}
}
