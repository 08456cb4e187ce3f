// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
//
// SPDX-License-Identifier: Apache-2.0
//

package mmeapp

import (
	"github.com/omec-project/mme/consumer"
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/logger"
)

// ImplicitDetachRequest asks the task loop owning a UE to detach it locally,
// for example when another connection claimed its IMSI.
type ImplicitDetachRequest struct {
	UeId  int64
	Cause context.S1apCause
}

func (r *ImplicitDetachRequest) TaskKey() int64 { return r.UeId }

// RequestImplicitDetach queues the detach on the loop of the owning UE, or runs
// it inline when no task loop is attached.
func RequestImplicitDetach(mme *context.MmeContext, ue *context.UeContext, cause context.S1apCause) {
	req := &ImplicitDetachRequest{UeId: ue.UeId, Cause: cause}
	if !mme.Submit(req) {
		HandleImplicitDetachRequest(mme, req)
	}
}

func HandleImplicitDetachRequest(mme *context.MmeContext, req *ImplicitDetachRequest) {
	ue, ok := mme.UeContextById(req.UeId)
	if !ok {
		logger.MmeAppLog.Debugf("implicit detach for unknown ue %d", req.UeId)
		return
	}
	ImplicitDetach(mme, ue, req.Cause)
}

// ReleasePdnSessions deletes every PDN session of a UE that stays known to
// the MME, as on a new attach from a registered UE. Answers are absorbed by
// HandleDeleteSessionResponse.
func ReleasePdnSessions(mme *context.MmeContext, ue *context.UeContext) {
	for _, s := range ue.SortedPdnSessions() {
		if s.State == context.PdnSessionDeleting {
			continue
		}
		s.State = context.PdnSessionDeleting
		if err := consumer.SendDeleteSessionRequest(mme, ue, s); err != nil {
			ue.Log.Errorf("delete session ebi %d: %v", s.Ebi, err)
			ue.RemovePdnSession(s.Ebi)
			continue
		}
		ue.PendingSessionDeletes++
	}
	mme.MarkDirty(ue.UeId)
}
