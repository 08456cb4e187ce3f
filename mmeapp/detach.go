// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

// Package mmeapp owns the UE context side of detach: PDN session teardown
// towards the gateway, the S1 release towards the eNB and the final
// destruction of the UE and EMM contexts.
package mmeapp

import (
	"github.com/omec-project/mme/consumer"
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
	s1ap_message "github.com/omec-project/mme/s1ap/message"
)

// HandleDetachRequest runs once EMM has finished its part of a detach. A UE
// without PDN sessions is released and destroyed right away when idle, or
// after the S1 release when connected. Otherwise every session is deleted
// first and the teardown continues when the last answer arrives.
func HandleDetachRequest(mme *context.MmeContext, ue *context.UeContext, cause context.S1apCause) {
	ue.Log.Infof("detach, %d pdn sessions, %s", ue.ActivePdnCount(), ue.EcmState)
	ue.DestroyOnRelease = true
	ue.ReleaseCause = cause

	ReleasePdnSessions(mme, ue)
	if ue.PendingSessionDeletes == 0 {
		releaseAndDestroy(mme, ue, cause)
	}
}

// HandleDeleteSessionResponse joins the session delete fan out of a detach.
func HandleDeleteSessionResponse(mme *context.MmeContext, rsp *itti.DeleteSessionResponse) {
	ue, ok := mme.UeContextById(rsp.UeId)
	if !ok {
		logger.MmeAppLog.Warnf("delete session response for unknown ue %d", rsp.UeId)
		return
	}
	s, ok := ue.PdnSessions[rsp.Ebi]
	if !ok || s.State != context.PdnSessionDeleting {
		ue.Log.Warnf("unexpected delete session response, ebi %d", rsp.Ebi)
		return
	}
	if rsp.Cause != itti.ResultSuccess {
		ue.Log.Warnf("delete session ebi %d failed with cause %d, removing locally", rsp.Ebi, rsp.Cause)
	}
	ue.RemovePdnSession(rsp.Ebi)
	if ue.PendingSessionDeletes > 0 {
		ue.PendingSessionDeletes--
	}
	mme.MarkDirty(ue.UeId)
	if ue.PendingSessionDeletes > 0 || !ue.DestroyOnRelease {
		return
	}
	releaseAndDestroy(mme, ue, ue.ReleaseCause)
}

// releaseAndDestroy finishes a detach of a UE without PDN sessions.
func releaseAndDestroy(mme *context.MmeContext, ue *context.UeContext, cause context.S1apCause) {
	switch {
	case !ue.IsConnected():
		DestroyUeContext(mme, ue)
	case ue.ReleasePending:
		ue.Log.Debugln("release already requested, waiting for release complete")
	default:
		if err := s1ap_message.SendUeContextReleaseCommand(mme, ue, cause); err != nil {
			ue.Log.Errorf("release command: %v", err)
			DestroyUeContext(mme, ue)
			return
		}
		// an eNB that lost its association never answers
		if cause == context.S1apCauseSctpShutdownOrReset {
			DestroyUeContext(mme, ue)
		}
	}
}

// DestroyUeContext purges the subscriber at the HSS when configured and
// removes the UE context with its EMM context, timers and identities.
func DestroyUeContext(mme *context.MmeContext, ue *context.UeContext) {
	if mme.Configuration().PurgeOnDetach && ue.Emm.Imsi.IsPresent() {
		if err := consumer.SendPurgeRequest(mme, ue); err != nil {
			ue.Log.Warnf("purge request: %v", err)
		}
	}
	ue.Emm.State.Set(context.Deregistered)
	ue.PublishUeCtxtInfo(mme.NfId)
	mme.RemoveUeContext(ue.UeId)
}

// ReleaseUnknownUe asks S1AP to drop a signalling connection the MME holds no
// UE context for.
func ReleaseUnknownUe(mme *context.MmeContext, ueId, enbUeS1apId int64) {
	stale := &context.UeContext{
		UeId:        ueId,
		EnbUeS1apId: enbUeS1apId,
		Log:         logger.MmeAppLog.With(logger.FieldUeId, ueId),
	}
	if err := s1ap_message.SendUeContextReleaseCommand(mme, stale, context.S1apCauseNasDetach); err != nil {
		stale.Log.Errorf("release command: %v", err)
	}
}

func HandlePurgeAnswer(mme *context.MmeContext, ans *itti.PurgeAnswer) {
	if ans.Result != itti.ResultSuccess {
		logger.MmeAppLog.Warnf("purge of %s failed with result %d", ans.Imsi, ans.Result)
		return
	}
	logger.MmeAppLog.Infof("purge of %s acknowledged", ans.Imsi)
}
