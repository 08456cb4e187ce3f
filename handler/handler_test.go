// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package handler

import (
	ctxt "context"
	"testing"
	"time"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	mme_message "github.com/omec-project/mme/handler/message"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPlmn = nasMessage.PlmnId{Mcc: "208", Mnc: "93"}

func newTestMme() (*context.MmeContext, *itti.MemoryBus) {
	cfg := &factory.Configuration{
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
		T3422: factory.TimerValue{Enable: true, ExpireTime: time.Hour, MaxRetryTimes: 4},
	}
	mme := context.NewMmeContext(factory.NewConfigProvider(&factory.Config{Configuration: cfg}), nil)
	return mme, mme.Bus.(*itti.MemoryBus)
}

func newTestUe(t *testing.T, mme *context.MmeContext, imsi string) *context.UeContext {
	t.Helper()
	ue, err := mme.NewUeContext(21, nasMessage.Tai{PlmnId: testPlmn, Tac: 1}, context.Ecgi{PlmnId: testPlmn, CellId: 1})
	require.NoError(t, err)
	mme.BindImsi(ue, imsi)
	ue.Log = zap.NewNop().Sugar()
	ue.Emm.Log = zap.NewNop().Sugar()
	return ue
}

func TestDispatchInitialUeMessage(t *testing.T) {
	mme, bus := newTestMme()
	pdu, err := nasMessage.EncodePlain(&nasMessage.AttachRequest{
		NasKeySetIdentifier: nasMessage.NasKeySetIdentifier{Ksi: nasMessage.NasKeySetIdentifierNoKeyAvailable},
		EpsAttachType:       nasMessage.EpsAttachTypeEps,
		EpsMobileIdentity:   nasMessage.NewImsiIdentity("208930000000031"),
		UeNetworkCapability: nasMessage.UeNetworkCapability{0xe0, 0xe0},
		EsmMessageContainer: []byte{0x02, 0x01, 0xd0, 0x31},
	})
	require.NoError(t, err)

	Dispatch(mme, &itti.InitialUeMessage{
		EnbUeS1apId: 1000,
		NasPdu:      pdu,
		Tai:         nasMessage.Tai{PlmnId: testPlmn, Tac: 1},
	})

	airs := bus.SentOf(itti.S6aAuthInfoRequest)
	require.Len(t, airs, 1)
	air := airs[0].(*itti.AuthInfoRequest)
	assert.Equal(t, "208930000000031", air.Imsi)

	ue, ok := mme.UeContextByImsi("208930000000031")
	require.True(t, ok)
	doc, err := mme.Store.Get(ctxt.Background(), ue.UeId)
	require.NoError(t, err)
	assert.Equal(t, "208930000000031", doc.Imsi)
	assert.Equal(t, string(context.CommonProcedureInitiated), doc.EmmState)
}

func TestDispatchReleaseComplete(t *testing.T) {
	mme, _ := newTestMme()
	ue := newTestUe(t, mme, "208930000000032")
	ue.DestroyOnRelease = true

	Dispatch(mme, &itti.UeContextReleaseComplete{UeId: ue.UeId})
	_, ok := mme.UeContextById(ue.UeId)
	assert.False(t, ok)
	_, err := mme.Store.Get(ctxt.Background(), ue.UeId)
	assert.ErrorIs(t, err, context.ErrUeNotStored)

	// unknown ue
	Dispatch(mme, &itti.UeContextReleaseComplete{UeId: ue.UeId})
}

func TestDispatchNetworkDetach(t *testing.T) {
	mme, bus := newTestMme()
	ue := newTestUe(t, mme, "208930000000033")
	_, err := mme.AllocateGuti(ue)
	require.NoError(t, err)
	ue.Emm.State.Set(context.Registered)

	req := &mme_message.NetworkDetachRequest{UeId: ue.UeId, ReattachRequired: true, ResponseChan: make(chan error, 1)}
	Dispatch(mme, req)
	require.NoError(t, <-req.ResponseChan)
	assert.True(t, ue.Emm.State.Is(context.DeregistrationInitiated))
	require.Len(t, bus.SentOf(itti.S1apDownlinkNasTransport), 1)

	missing := &mme_message.NetworkDetachRequest{UeId: 4242, ResponseChan: make(chan error, 1)}
	Dispatch(mme, missing)
	assert.Error(t, <-missing.ResponseChan)
}

func TestDispatchUeContextQuery(t *testing.T) {
	mme, _ := newTestMme()
	ue := newTestUe(t, mme, "208930000000034")
	guti, err := mme.AllocateGuti(ue)
	require.NoError(t, err)

	q := &mme_message.UeContextQuery{UeId: ue.UeId, ResponseChan: make(chan *mme_message.UeContextSnapshot, 1)}
	Dispatch(mme, q)
	s := <-q.ResponseChan
	require.NotNil(t, s)
	assert.Equal(t, "208930000000034", s.Imsi)
	assert.Equal(t, guti.String(), s.Guti)
	assert.Equal(t, string(context.EcmConnected), s.EcmState)
	assert.Equal(t, string(context.Deregistered), s.EmmState)

	q = &mme_message.UeContextQuery{UeId: 4242, ResponseChan: make(chan *mme_message.UeContextSnapshot, 1)}
	Dispatch(mme, q)
	assert.Nil(t, <-q.ResponseChan)
}

func TestTaskLoopDispatches(t *testing.T) {
	mme, _ := newTestMme()
	ue := newTestUe(t, mme, "208930000000035")
	loop := NewTaskLoop(mme, 2, 4)
	loop.Start()
	defer loop.Stop()

	q := &mme_message.UeContextQuery{UeId: ue.UeId, ResponseChan: make(chan *mme_message.UeContextSnapshot, 1)}
	require.True(t, mme.Submit(q))
	select {
	case s := <-q.ResponseChan:
		require.NotNil(t, s)
		assert.Equal(t, ue.UeId, s.UeId)
	case <-time.After(time.Second):
		t.Fatal("query not answered")
	}
}

func TestInitialUeMessageSharesUeShard(t *testing.T) {
	mme, _ := newTestMme()
	ue := newTestUe(t, mme, "208930000000036")
	guti, err := mme.AllocateGuti(ue)
	require.NoError(t, err)
	loop := NewTaskLoop(mme, 4, 16)
	defer loop.Stop()

	tmsi := guti.MTmsi
	byTmsi := &itti.InitialUeMessage{EnbUeS1apId: ue.UeId + 1, MTmsi: &tmsi, NasPdu: []byte{0xc7, 0x01, 0x00, 0x00}}
	require.True(t, mme.Submit(byTmsi))
	assert.Equal(t, ue.UeId, byTmsi.UeId)
	detach := &mme_message.NetworkDetachRequest{UeId: ue.UeId}
	assert.Equal(t, loop.Shard(detach.TaskKey()), loop.Shard(byTmsi.TaskKey()))

	pdu, err := nasMessage.EncodePlain(&nasMessage.TrackingAreaUpdateRequest{
		EpsUpdateType: nasMessage.EpsUpdateTypeTaUpdating,
		OldGuti:       nasMessage.NewGutiIdentity(guti),
	})
	require.NoError(t, err)
	byGuti := &itti.InitialUeMessage{EnbUeS1apId: ue.UeId + 2, NasPdu: pdu}
	require.True(t, mme.Submit(byGuti))
	assert.Equal(t, ue.UeId, byGuti.UeId)
}

func TestInitialUeMessageReservesUeId(t *testing.T) {
	mme, _ := newTestMme()
	loop := NewTaskLoop(mme, 4, 16)
	pdu, err := nasMessage.EncodePlain(&nasMessage.AttachRequest{
		NasKeySetIdentifier: nasMessage.NasKeySetIdentifier{Ksi: nasMessage.NasKeySetIdentifierNoKeyAvailable},
		EpsAttachType:       nasMessage.EpsAttachTypeEps,
		EpsMobileIdentity:   nasMessage.NewImsiIdentity("208930000000037"),
		UeNetworkCapability: nasMessage.UeNetworkCapability{0xe0, 0xe0},
		EsmMessageContainer: []byte{0x02, 0x01, 0xd0, 0x31},
	})
	require.NoError(t, err)

	msg := &itti.InitialUeMessage{EnbUeS1apId: 4001, NasPdu: pdu, Tai: nasMessage.Tai{PlmnId: testPlmn, Tac: 1}}
	require.True(t, mme.Submit(msg))
	require.NotZero(t, msg.UeId)
	assert.Equal(t, msg.UeId, msg.TaskKey())
	_, ok := mme.UeContextById(msg.UeId)
	assert.False(t, ok)
	loop.Stop()

	Dispatch(mme, msg)
	ue, ok := mme.UeContextByImsi("208930000000037")
	require.True(t, ok)
	assert.Equal(t, msg.UeId, ue.UeId)
	assert.Equal(t, int64(4001), ue.EnbUeS1apId)
}
