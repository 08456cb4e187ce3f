// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package mmeapp

import (
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/metrics"
	s1ap_message "github.com/omec-project/mme/s1ap/message"
)

// HandleUeContextReleaseRequest handles an eNB initiated release. A
// registered UE moves to ECM_IDLE and keeps its context; any other UE is
// implicitly detached.
func HandleUeContextReleaseRequest(mme *context.MmeContext, req *itti.UeContextReleaseRequest) {
	ue, ok := mme.UeContextById(req.UeId)
	if !ok {
		logger.MmeAppLog.Warnf("release request for unknown ue %d", req.UeId)
		return
	}
	cause := context.ParseS1apCause(req.Cause)
	ue.Log.Infof("ue context release request, cause %s", cause)

	if !ue.Emm.State.Is(context.Registered) {
		ImplicitDetach(mme, ue, cause)
		return
	}
	if cause == context.S1apCauseSctpShutdownOrReset {
		HandleUeContextReleaseComplete(mme, ue)
		return
	}
	if err := s1ap_message.SendUeContextReleaseCommand(mme, ue, cause); err != nil {
		ue.Log.Errorf("release command: %v", err)
	}
}

// HandleUeContextReleaseComplete moves the UE to ECM_IDLE and finishes a
// detach that was waiting for the release.
func HandleUeContextReleaseComplete(mme *context.MmeContext, ue *context.UeContext) {
	ue.EcmState = context.EcmIdle
	ue.ReleasePending = false
	mme.MarkDirty(ue.UeId)
	ue.Log.Infof("ue context released, cause %s", ue.ReleaseCause)

	if ue.DestroyOnRelease && ue.PendingSessionDeletes == 0 {
		DestroyUeContext(mme, ue)
		return
	}
	ue.PublishUeCtxtInfo(mme.NfId)
}

// ImplicitDetach deregisters the UE without NAS signalling.
func ImplicitDetach(mme *context.MmeContext, ue *context.UeContext, cause context.S1apCause) {
	ue.Log.Infoln("implicit detach")
	metrics.IncrementCounter("ue_detach", metrics.Label{Key: "cause", Value: "implicit_detach"})
	ue.Emm.ClearProcedures(mme.Timers)
	ue.Emm.State.Set(context.Deregistered)
	HandleDetachRequest(mme, ue, cause)
}
