// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package mmeapp

import (
	"testing"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/factory"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/metrics"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testPlmn = nasMessage.PlmnId{Mcc: "208", Mnc: "93"}

func newTestMme(purge bool) *context.MmeContext {
	return context.NewMmeContext(factory.NewConfigProvider(&factory.Config{
		Configuration: &factory.Configuration{
			MmeName:       "mme-test",
			PurgeOnDetach: purge,
			ServedGummeiList: []factory.Gummei{
				{PlmnId: factory.PlmnId{Mcc: "208", Mnc: "93"}, MmeGroupId: 1, MmeCode: 1},
			},
		},
	}), nil)
}

func newTestUe(t *testing.T, mme *context.MmeContext, imsi string) *context.UeContext {
	t.Helper()
	ue, err := mme.NewUeContext(11, nasMessage.Tai{PlmnId: testPlmn, Tac: 1}, context.Ecgi{PlmnId: testPlmn, CellId: 1})
	require.NoError(t, err)
	if imsi != "" {
		mme.BindImsi(ue, imsi)
	}
	ue.Log = zap.NewNop().Sugar()
	ue.Emm.Log = zap.NewNop().Sugar()
	return ue
}

func addSession(ue *context.UeContext, ebi uint8) {
	s := context.NewPdnSession(ebi, "internet")
	s.State = context.PdnSessionActive
	ue.AddPdnSession(s)
}

func TestDetachIdleWithoutSessions(t *testing.T) {
	mme := newTestMme(true)
	bus := mme.Bus.(*itti.MemoryBus)
	ue := newTestUe(t, mme, "208930000000001")
	ue.EcmState = context.EcmIdle

	HandleDetachRequest(mme, ue, context.S1apCauseNasDetach)

	_, ok := mme.UeContextById(ue.UeId)
	assert.False(t, ok)
	_, ok = mme.UeContextByImsi("208930000000001")
	assert.False(t, ok)
	assert.Len(t, bus.SentOf(itti.S6aPurgeRequest), 1)
	assert.Empty(t, bus.SentOf(itti.S1apUeContextReleaseCommand))
}

func TestDetachConnectedWithoutSessions(t *testing.T) {
	mme := newTestMme(false)
	bus := mme.Bus.(*itti.MemoryBus)
	ue := newTestUe(t, mme, "208930000000002")

	HandleDetachRequest(mme, ue, context.S1apCauseNasDetach)

	cmds := bus.SentOf(itti.S1apUeContextReleaseCommand)
	require.Len(t, cmds, 1)
	assert.Equal(t, "nas-detach", cmds[0].(*itti.UeContextReleaseCommand).Cause)
	_, ok := mme.UeContextById(ue.UeId)
	assert.True(t, ok, "context kept until the release completes")
	assert.Empty(t, bus.SentOf(itti.S6aPurgeRequest))

	HandleUeContextReleaseComplete(mme, ue)
	_, ok = mme.UeContextById(ue.UeId)
	assert.False(t, ok)
}

func TestDetachConnectedSctpShutdown(t *testing.T) {
	mme := newTestMme(false)
	ue := newTestUe(t, mme, "208930000000003")

	HandleDetachRequest(mme, ue, context.S1apCauseSctpShutdownOrReset)

	_, ok := mme.UeContextById(ue.UeId)
	assert.False(t, ok)
}

func TestDetachWithSessionsJoinsDeletes(t *testing.T) {
	mme := newTestMme(false)
	bus := mme.Bus.(*itti.MemoryBus)
	ue := newTestUe(t, mme, "208930000000004")
	ue.EcmState = context.EcmIdle
	addSession(ue, 5)
	addSession(ue, 6)

	HandleDetachRequest(mme, ue, context.S1apCauseNasDetach)

	deletes := bus.SentOf(itti.S11DeleteSessionRequest)
	require.Len(t, deletes, 2)
	assert.Equal(t, 2, ue.PendingSessionDeletes)
	assert.Equal(t, 0, ue.ActivePdnCount())

	HandleDeleteSessionResponse(mme, &itti.DeleteSessionResponse{UeId: ue.UeId, Ebi: 5, Cause: itti.ResultSuccess})
	_, ok := mme.UeContextById(ue.UeId)
	assert.True(t, ok)

	// a duplicate answer must not complete the join
	HandleDeleteSessionResponse(mme, &itti.DeleteSessionResponse{UeId: ue.UeId, Ebi: 5, Cause: itti.ResultSuccess})
	assert.Equal(t, 1, ue.PendingSessionDeletes)

	HandleDeleteSessionResponse(mme, &itti.DeleteSessionResponse{UeId: ue.UeId, Ebi: 6, Cause: itti.ResultUnableToComply})
	_, ok = mme.UeContextById(ue.UeId)
	assert.False(t, ok)
}

func TestReleaseRequestRegisteredGoesIdle(t *testing.T) {
	mme := newTestMme(false)
	bus := mme.Bus.(*itti.MemoryBus)
	ue := newTestUe(t, mme, "208930000000005")
	ue.Emm.State.Set(context.Registered)

	HandleUeContextReleaseRequest(mme, &itti.UeContextReleaseRequest{UeId: ue.UeId, Cause: "user-inactivity"})
	require.Len(t, bus.SentOf(itti.S1apUeContextReleaseCommand), 1)
	assert.Equal(t, context.S1apCauseUserInactivity, ue.ReleaseCause)

	HandleUeContextReleaseComplete(mme, ue)
	assert.Equal(t, context.EcmIdle, ue.EcmState)
	_, ok := mme.UeContextById(ue.UeId)
	assert.True(t, ok)
}

func TestReleaseRequestUnregisteredDetachesImplicitly(t *testing.T) {
	mme := newTestMme(false)
	ue := newTestUe(t, mme, "")
	counter := metrics.Counter("ue_detach").With(prometheus.Labels{"cause": "implicit_detach"})
	before := testutil.ToFloat64(counter)

	HandleUeContextReleaseRequest(mme, &itti.UeContextReleaseRequest{UeId: ue.UeId, Cause: "sctp-shutdown-or-reset"})

	_, ok := mme.UeContextById(ue.UeId)
	assert.False(t, ok)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestReleaseUnknownUe(t *testing.T) {
	mme := newTestMme(false)
	bus := mme.Bus.(*itti.MemoryBus)

	ReleaseUnknownUe(mme, 99, 4)
	cmds := bus.SentOf(itti.S1apUeContextReleaseCommand)
	require.Len(t, cmds, 1)
	assert.Equal(t, int64(99), cmds[0].(*itti.UeContextReleaseCommand).UeId)
	assert.Equal(t, int64(4), cmds[0].(*itti.UeContextReleaseCommand).EnbUeS1apId)
}
