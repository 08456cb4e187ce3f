// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package mmeapp

import (
	"testing"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/itti"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReleasePdnSessionsKeepsUe(t *testing.T) {
	mme := newTestMme(false)
	bus := mme.Bus.(*itti.MemoryBus)
	ue := newTestUe(t, mme, "208930000000101")
	addSession(ue, 5)
	addSession(ue, 6)

	ReleasePdnSessions(mme, ue)
	assert.Len(t, bus.SentOf(itti.S11DeleteSessionRequest), 2)
	assert.Equal(t, 2, ue.PendingSessionDeletes)

	// a second call does not delete twice
	ReleasePdnSessions(mme, ue)
	assert.Len(t, bus.SentOf(itti.S11DeleteSessionRequest), 2)

	HandleDeleteSessionResponse(mme, &itti.DeleteSessionResponse{UeId: ue.UeId, Ebi: 5, Cause: itti.ResultSuccess})
	HandleDeleteSessionResponse(mme, &itti.DeleteSessionResponse{UeId: ue.UeId, Ebi: 6, Cause: itti.ResultUnableToComply})
	assert.Zero(t, ue.PendingSessionDeletes)
	assert.Empty(t, ue.PdnSessions)
	assert.Empty(t, bus.SentOf(itti.S1apUeContextReleaseCommand))
	_, ok := mme.UeContextById(ue.UeId)
	assert.True(t, ok)
}

func TestRequestImplicitDetachInline(t *testing.T) {
	mme := newTestMme(false)
	ue := newTestUe(t, mme, "208930000000102")
	ue.EcmState = context.EcmIdle

	RequestImplicitDetach(mme, ue, context.S1apCauseNasNormalRelease)

	_, ok := mme.UeContextById(ue.UeId)
	assert.False(t, ok)
}

func TestRequestImplicitDetachQueued(t *testing.T) {
	mme := newTestMme(false)
	ue := newTestUe(t, mme, "208930000000103")
	ue.EcmState = context.EcmIdle
	var queued []context.TaskMessage
	mme.SetSubmitter(func(msg context.TaskMessage) bool {
		queued = append(queued, msg)
		return true
	})

	RequestImplicitDetach(mme, ue, context.S1apCauseNasNormalRelease)
	require.Len(t, queued, 1)
	req, ok := queued[0].(*ImplicitDetachRequest)
	require.True(t, ok)
	assert.Equal(t, ue.UeId, req.TaskKey())
	_, ok = mme.UeContextById(ue.UeId)
	assert.True(t, ok)

	HandleImplicitDetachRequest(mme, req)
	_, ok = mme.UeContextById(ue.UeId)
	assert.False(t, ok)

	// the UE is gone, a duplicate is ignored
	HandleImplicitDetachRequest(mme, req)
}
