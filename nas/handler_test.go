// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package nas

import (
	"bytes"
	ctxt "context"
	"testing"
	"time"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/mme/nas/nas_security"
	"github.com/omec-project/nas/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPlmn = nasMessage.PlmnId{Mcc: "208", Mnc: "93"}

func newTestConfig(tolerate bool) *factory.Configuration {
	return &factory.Configuration{
		MmeName: "mme-test",
		ServedGummeiList: []factory.Gummei{
			{PlmnId: factory.PlmnId{Mcc: "208", Mnc: "93"}, MmeGroupId: 1, MmeCode: 1},
		},
		SupportTaiList: []factory.Tai{
			{PlmnId: factory.PlmnId{Mcc: "208", Mnc: "93"}, Tac: 1},
		},
		Security: &factory.Security{
			IntegrityOrder: []string{"EIA2"},
			CipheringOrder: []string{"EEA0"},
		},
		Nas: &factory.Nas{TolerateMacMismatch: &tolerate},
		T3450: factory.TimerValue{Enable: true, ExpireTime: time.Hour, MaxRetryTimes: 4},
	}
}

func newTestMme(tolerate bool) (*context.MmeContext, *itti.MemoryBus) {
	cfg := newTestConfig(tolerate)
	mme := context.NewMmeContext(factory.NewConfigProvider(&factory.Config{Configuration: cfg}), nil)
	return mme, mme.Bus.(*itti.MemoryBus)
}

func newTestUe(t *testing.T, mme *context.MmeContext) *context.UeContext {
	t.Helper()
	ue, err := mme.NewUeContext(21, nasMessage.Tai{PlmnId: testPlmn, Tac: 1}, context.Ecgi{PlmnId: testPlmn, CellId: 1})
	require.NoError(t, err)
	mme.BindImsi(ue, "208930000000001")
	ue.Log = zap.NewNop().Sugar()
	ue.Emm.Log = zap.NewNop().Sugar()
	ue.Emm.UeNetworkCapability = nasMessage.UeNetworkCapability{0xe0, 0xe0}
	return ue
}

// registerUe activates a security context on ue and returns the UE side
// copy used to protect uplink messages.
func registerUe(t *testing.T, mme *context.MmeContext, ue *context.UeContext) *context.SecurityContext {
	t.Helper()
	kasme := bytes.Repeat([]byte{0x11}, 32)
	sc := context.NewSecurityContext(1, &context.AuthVector{Kasme: kasme})
	require.NoError(t, sc.SelectAlgorithms(ue.Emm.UeNetworkCapability, mme.CipheringOrder(), mme.IntegrityOrder()))
	require.NoError(t, sc.DeriveNasKeys())
	sc.Activated = true
	ue.Emm.SecurityContext = sc
	_, err := mme.AllocateGuti(ue)
	require.NoError(t, err)
	ue.Emm.State.Set(context.Registered)
	return ueSide(t, sc.SelectedAlgorithms, kasme)
}

func ueSide(t *testing.T, algs context.SelectedAlgorithms, kasme []byte) *context.SecurityContext {
	t.Helper()
	sc := context.NewSecurityContext(1, &context.AuthVector{Kasme: kasme})
	sc.DirectionEncode, sc.DirectionDecode = security.DirectionUplink, security.DirectionDownlink
	sc.SelectedAlgorithms = algs
	require.NoError(t, sc.DeriveNasKeys())
	return sc
}

func protect(t *testing.T, sc *context.SecurityContext, body nasMessage.Body) []byte {
	t.Helper()
	pdu, err := nas_security.Encode(sc, &nasMessage.Message{
		SecurityHeader: nasMessage.SecurityHeader{
			ProtocolDiscriminator: nasMessage.ProtocolDiscriminatorEMM,
			SecurityHeaderType:    nasMessage.SecurityHeaderTypeIntegrityProtected,
		},
		Body: body,
	})
	require.NoError(t, err)
	return pdu
}

func plain(t *testing.T, body nasMessage.Body) []byte {
	t.Helper()
	pdu, err := nasMessage.EncodePlain(body)
	require.NoError(t, err)
	return pdu
}

// countDispatch replaces the EMM entry point and counts the messages that
// pass the gate.
func countDispatch(t *testing.T) *[]uint8 {
	t.Helper()
	var got []uint8
	orig := dispatchEmm
	dispatchEmm = func(_ *context.MmeContext, _ *context.UeContext, msg *nasMessage.Message,
		_ nas_security.DecodeStatus,
	) error {
		msgType, _ := msg.EmmMessageType()
		got = append(got, msgType)
		return nil
	}
	t.Cleanup(func() { dispatchEmm = orig })
	return &got
}

func uplink(ue *context.UeContext, pdu []byte) *itti.UplinkNasTransport {
	return &itti.UplinkNasTransport{UeId: ue.UeId, EnbUeS1apId: ue.EnbUeS1apId, NasPdu: pdu, Tai: ue.Tai, Ecgi: ue.Ecgi}
}

func lastDownlink(t *testing.T, bus *itti.MemoryBus) *itti.DownlinkNasTransport {
	t.Helper()
	sent := bus.SentOf(itti.S1apDownlinkNasTransport)
	require.NotEmpty(t, sent)
	return sent[len(sent)-1].(*itti.DownlinkNasTransport)
}

func downlinkBody(t *testing.T, dl *itti.DownlinkNasTransport) nasMessage.Body {
	t.Helper()
	pdu := dl.NasPdu
	if pdu[0]>>4 != nasMessage.SecurityHeaderTypePlainNas {
		pdu = pdu[6:]
	}
	body, err := nasMessage.DecodePlain(pdu)
	require.NoError(t, err)
	return body
}

func TestCompleteWithoutSecurityContext(t *testing.T) {
	mme, bus := newTestMme(true)
	ue := newTestUe(t, mme)
	calls := countDispatch(t)

	err := HandleDataIndication(ctxt.Background(), mme, uplink(ue, plain(t, &nasMessage.AttachComplete{
		EsmMessageContainer: []byte{0x02, 0x01, 0xd0},
	})))
	assert.ErrorIs(t, err, ErrProtocolError)
	assert.Empty(t, *calls)

	status, ok := downlinkBody(t, lastDownlink(t, bus)).(*nasMessage.EmmStatus)
	require.True(t, ok)
	assert.Equal(t, nasMessage.Cause111ProtocolErrorUnspecified, status.EmmCause)
}

func TestCompleteFamilyGate(t *testing.T) {
	cases := []struct {
		name     string
		body     nasMessage.Body
		badMac   bool
		dispatch bool
	}{
		{"status verified", &nasMessage.EmmStatus{EmmCause: nasMessage.Cause98MessageTypeNotCompatibleWithState}, false, true},
		{"status mac mismatch", &nasMessage.EmmStatus{EmmCause: nasMessage.Cause98MessageTypeNotCompatibleWithState}, true, false},
		{"uplink transport verified", &nasMessage.UplinkNasTransport{NasMessageContainer: []byte{0x09}}, false, true},
		{"tau complete mac mismatch", &nasMessage.TrackingAreaUpdateComplete{}, true, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mme, bus := newTestMme(true)
			ue := newTestUe(t, mme)
			ueSc := registerUe(t, mme, ue)
			if tc.badMac {
				ueSc = ueSide(t, ueSc.SelectedAlgorithms, bytes.Repeat([]byte{0x22}, 32))
			}
			calls := countDispatch(t)

			err := HandleDataIndication(ctxt.Background(), mme, uplink(ue, protect(t, ueSc, tc.body)))
			if tc.dispatch {
				require.NoError(t, err)
				assert.Len(t, *calls, 1)
				assert.Empty(t, bus.SentOf(itti.S1apDownlinkNasTransport))
				return
			}
			assert.ErrorIs(t, err, ErrProtocolError)
			assert.Empty(t, *calls)
			status, ok := downlinkBody(t, lastDownlink(t, bus)).(*nasMessage.EmmStatus)
			require.True(t, ok)
			assert.Equal(t, nasMessage.Cause111ProtocolErrorUnspecified, status.EmmCause)
		})
	}
}

func TestRequestFamilyRejectsUnverified(t *testing.T) {
	mme, bus := newTestMme(true)
	calls := countDispatch(t)
	guti := nasMessage.Guti{PlmnId: testPlmn, MmeGroupId: 7, MmeCode: 7, MTmsi: 0xcafe}

	_, err := HandleEstablishRequest(ctxt.Background(), mme, &itti.InitialUeMessage{
		EnbUeS1apId: 5,
		NasPdu: plain(t, &nasMessage.TrackingAreaUpdateRequest{
			EpsUpdateType: nasMessage.EpsUpdateTypeTaUpdating,
			OldGuti:       nasMessage.NewGutiIdentity(guti),
		}),
		Tai: nasMessage.Tai{PlmnId: testPlmn, Tac: 1},
	})
	assert.ErrorIs(t, err, ErrProtocolError)
	assert.Empty(t, *calls)

	dl := lastDownlink(t, bus)
	assert.Equal(t, itti.DispositionReleaseAfterSend, dl.Disposition)
	reject, ok := downlinkBody(t, dl).(*nasMessage.TrackingAreaUpdateReject)
	require.True(t, ok)
	assert.Equal(t, nasMessage.Cause9UeIdentityCannotBeDerivedByNetwork, reject.EmmCause)
}

func TestDetachGate(t *testing.T) {
	t.Run("before security activation", func(t *testing.T) {
		mme, _ := newTestMme(true)
		ue := newTestUe(t, mme)
		calls := countDispatch(t)

		err := HandleDataIndication(ctxt.Background(), mme, uplink(ue, plain(t, &nasMessage.DetachRequest{
			DetachType:        nasMessage.DetachTypeEps,
			EpsMobileIdentity: nasMessage.NewImsiIdentity("208930000000001"),
		})))
		require.NoError(t, err)
		assert.Equal(t, []uint8{nasMessage.MsgTypeDetachRequest}, *calls)
	})

	t.Run("plain after security activation", func(t *testing.T) {
		mme, bus := newTestMme(true)
		ue := newTestUe(t, mme)
		registerUe(t, mme, ue)
		calls := countDispatch(t)

		err := HandleDataIndication(ctxt.Background(), mme, uplink(ue, plain(t, &nasMessage.DetachAccept{})))
		assert.ErrorIs(t, err, ErrProtocolError)
		assert.Empty(t, *calls)
		_, ok := downlinkBody(t, lastDownlink(t, bus)).(*nasMessage.EmmStatus)
		assert.True(t, ok)
	})
}

func TestMacMismatchPolicy(t *testing.T) {
	cases := []struct {
		name     string
		tolerate bool
		body     nasMessage.Body
		dispatch bool
	}{
		{"tolerated", true, &nasMessage.IdentityResponse{MobileIdentity: nasMessage.NewImsiIdentity("208930000000001")}, true},
		{"strict exempt", false, &nasMessage.IdentityResponse{MobileIdentity: nasMessage.NewImsiIdentity("208930000000001")}, true},
		{"strict discarded", false, &nasMessage.AttachComplete{EsmMessageContainer: []byte{0x02, 0x01, 0xd0}}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mme, bus := newTestMme(tc.tolerate)
			ue := newTestUe(t, mme)
			ueSc := registerUe(t, mme, ue)
			forged := ueSide(t, ueSc.SelectedAlgorithms, bytes.Repeat([]byte{0x33}, 32))
			calls := countDispatch(t)

			err := HandleDataIndication(ctxt.Background(), mme, uplink(ue, protect(t, forged, tc.body)))
			require.NoError(t, err)
			if tc.dispatch {
				assert.Len(t, *calls, 1)
				return
			}
			assert.Empty(t, *calls)
			assert.Empty(t, bus.SentOf(itti.S1apDownlinkNasTransport))
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	truncatedCapability := plain(t, &nasMessage.AttachRequest{
		EpsAttachType:       nasMessage.EpsAttachTypeEps,
		EpsMobileIdentity:   nasMessage.NewImsiIdentity("208930000000001"),
		UeNetworkCapability: nasMessage.UeNetworkCapability{0xe0},
	})
	cases := []struct {
		name  string
		pdu   []byte
		cause uint8
	}{
		{"unsupported discriminator", []byte{0x0b, 0x41}, 0},
		{"short buffer", []byte{0x07}, 0},
		{"unknown message type", []byte{0x07, 0x4f}, nasMessage.Cause97MessageTypeNonExistentOrNotImplemented},
		{"invalid mandatory ie", truncatedCapability, nasMessage.Cause96InvalidMandatoryInformation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mme, bus := newTestMme(true)
			ue := newTestUe(t, mme)
			calls := countDispatch(t)

			err := HandleDataIndication(ctxt.Background(), mme, uplink(ue, tc.pdu))
			assert.Empty(t, *calls)
			if tc.cause == 0 {
				assert.NoError(t, err)
				assert.Empty(t, bus.Sent())
				return
			}
			assert.Error(t, err)
			status, ok := downlinkBody(t, lastDownlink(t, bus)).(*nasMessage.EmmStatus)
			require.True(t, ok)
			assert.Equal(t, tc.cause, status.EmmCause)
		})
	}
}

func TestEstablishFindsUeByMTmsi(t *testing.T) {
	mme, _ := newTestMme(true)
	ue := newTestUe(t, mme)
	ueSc := registerUe(t, mme, ue)
	ue.EcmState = context.EcmIdle
	ue.ReleasePending = true
	guti, ok := ue.Emm.Guti.Get()
	require.True(t, ok)
	calls := countDispatch(t)

	_, err := HandleEstablishRequest(ctxt.Background(), mme, &itti.InitialUeMessage{
		EnbUeS1apId: 99,
		NasPdu:      protect(t, ueSc, &nasMessage.UplinkNasTransport{NasMessageContainer: []byte{0x09}}),
		Tai:         nasMessage.Tai{PlmnId: testPlmn, Tac: 1},
		MTmsi:       &guti.MTmsi,
	})
	require.NoError(t, err)
	assert.Len(t, *calls, 1)
	assert.Equal(t, int64(99), ue.EnbUeS1apId)
	assert.True(t, ue.IsConnected())
	assert.False(t, ue.ReleasePending)
	assert.Equal(t, 1, mme.UeCount())
}

func TestEstablishFindsUeByGuti(t *testing.T) {
	mme, _ := newTestMme(true)
	ue := newTestUe(t, mme)
	ueSc := registerUe(t, mme, ue)
	ue.EcmState = context.EcmIdle
	guti, _ := ue.Emm.Guti.Get()
	calls := countDispatch(t)

	_, err := HandleEstablishRequest(ctxt.Background(), mme, &itti.InitialUeMessage{
		EnbUeS1apId: 42,
		NasPdu: protect(t, ueSc, &nasMessage.TrackingAreaUpdateRequest{
			EpsUpdateType: nasMessage.EpsUpdateTypeTaUpdating,
			OldGuti:       nasMessage.NewGutiIdentity(guti),
		}),
		Tai: nasMessage.Tai{PlmnId: testPlmn, Tac: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint8{nasMessage.MsgTypeTrackingAreaUpdateRequest}, *calls)
	assert.Equal(t, int64(42), ue.EnbUeS1apId)
	assert.False(t, ue.DestroyOnRelease)
}

func TestEstablishCreatesUe(t *testing.T) {
	mme, _ := newTestMme(true)
	calls := countDispatch(t)

	_, err := HandleEstablishRequest(ctxt.Background(), mme, &itti.InitialUeMessage{
		EnbUeS1apId:        3,
		NasPdu:             plain(t, &nasMessage.IdentityResponse{MobileIdentity: nasMessage.NewImsiIdentity("208930000000002")}),
		Tai:                nasMessage.Tai{PlmnId: testPlmn, Tac: 1},
		EstablishmentCause: 3,
	})
	require.NoError(t, err)
	assert.Len(t, *calls, 1)
	require.Equal(t, 1, mme.UeCount())
	mme.RangeUeContexts(func(ue *context.UeContext) bool {
		assert.True(t, ue.DestroyOnRelease)
		assert.Equal(t, int64(3), ue.EnbUeS1apId)
		assert.Equal(t, uint8(3), ue.EstablishmentCause)
		return true
	})
}

func TestDataIndicationUnknownUe(t *testing.T) {
	mme, bus := newTestMme(true)
	calls := countDispatch(t)

	err := HandleDataIndication(ctxt.Background(), mme, &itti.UplinkNasTransport{
		UeId:        77,
		EnbUeS1apId: 8,
		NasPdu: plain(t, &nasMessage.DetachRequest{
			DetachType:        nasMessage.DetachTypeEps | nasMessage.DetachTypeSwitchOff,
			EpsMobileIdentity: nasMessage.NewImsiIdentity("208930000000001"),
		}),
	})
	require.NoError(t, err)
	assert.Empty(t, *calls)
	release := bus.SentOf(itti.S1apUeContextReleaseCommand)
	require.Len(t, release, 1)
	assert.Equal(t, int64(8), release[0].(*itti.UeContextReleaseCommand).EnbUeS1apId)

	err = HandleDataIndication(ctxt.Background(), mme, &itti.UplinkNasTransport{
		UeId:   77,
		NasPdu: plain(t, &nasMessage.DetachAccept{}),
	})
	assert.Error(t, err)
}
