// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

// Package handler routes task loop messages to the NAS, EMM and MME app
// handlers. Each message runs on the shard that owns its UE, between loading
// and storing the NAS state.
package handler

import (
	ctxt "context"
	"fmt"

	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/emm"
	mme_message "github.com/omec-project/mme/handler/message"
	"github.com/omec-project/mme/itti"
	"github.com/omec-project/mme/logger"
	"github.com/omec-project/mme/mmeapp"
	"github.com/omec-project/mme/nas"
)

// NewTaskLoop builds the task loop that dispatches every message to mme.
// Messages are queued through mme.Submit, which routes initial UE messages
// to the shard of the UE they belong to.
func NewTaskLoop(mme *context.MmeContext, shards, depth int) *context.TaskLoop {
	loop := context.NewTaskLoop(shards, depth, func(msg context.TaskMessage) {
		Dispatch(mme, msg)
	})
	mme.SetSubmitter(func(msg context.TaskMessage) bool {
		m, initial := msg.(*itti.InitialUeMessage)
		if initial {
			nas.Route(mme, m)
		}
		if !loop.Submit(msg) {
			if initial {
				mme.ReleaseUeId(m.UeId)
			}
			return false
		}
		return true
	})
	return loop
}

func Dispatch(mme *context.MmeContext, msg context.TaskMessage) {
	if err := mme.GetMmeNasState(false); err != nil {
		logger.HandlerLog.Errorf("get nas state: %v", err)
	}
	ueId, err := handle(mme, msg)
	if err != nil {
		logger.HandlerLog.Warnf("handle %T for ue %d: %v", msg, ueId, err)
	}
	if err := mme.PutMmeNasState(ueId); err != nil {
		logger.HandlerLog.Errorf("put nas state: %v", err)
	}
}

// handle returns the MME UE S1AP id of the UE the message was about.
func handle(mme *context.MmeContext, msg context.TaskMessage) (int64, error) {
	ueId := msg.TaskKey()
	switch m := msg.(type) {
	case *itti.InitialUeMessage:
		ue, err := nas.HandleEstablishRequest(ctxt.Background(), mme, m)
		if ue != nil {
			ueId = ue.UeId
		}
		return ueId, err
	case *itti.UplinkNasTransport:
		return ueId, nas.HandleDataIndication(ctxt.Background(), mme, m)
	case *itti.NasNonDeliveryIndication:
		nas.HandleNonDelivery(mme, m)
	case *itti.UeContextReleaseRequest:
		nas.HandleReleaseIndication(mme, m)
	case *itti.UeContextReleaseComplete:
		ue, ok := mme.UeContextById(m.UeId)
		if !ok {
			return ueId, fmt.Errorf("ue context %d not found", m.UeId)
		}
		mmeapp.HandleUeContextReleaseComplete(mme, ue)
	case *itti.CreateSessionResponse:
		return ueId, emm.HandleCreateSessionResponse(mme, m)
	case *itti.DeleteSessionResponse:
		mmeapp.HandleDeleteSessionResponse(mme, m)
	case *itti.AuthInfoAnswer:
		return ueId, emm.HandleAuthInfoAnswer(mme, m)
	case *itti.PurgeAnswer:
		mmeapp.HandlePurgeAnswer(mme, m)
	case context.TimerExpiry:
		return ueId, emm.HandleTimerExpiry(mme, m)
	case *mmeapp.ImplicitDetachRequest:
		mmeapp.HandleImplicitDetachRequest(mme, m)
	case *mme_message.NetworkDetachRequest:
		err := handleNetworkDetach(mme, m)
		if m.ResponseChan != nil {
			m.ResponseChan <- err
		}
		return ueId, err
	case *mme_message.UeContextQuery:
		m.ResponseChan <- snapshot(mme, m.UeId)
	default:
		logger.HandlerLog.Warnf("message %T has not implemented", msg)
	}
	return ueId, nil
}

func handleNetworkDetach(mme *context.MmeContext, req *mme_message.NetworkDetachRequest) error {
	ue, ok := mme.UeContextById(req.UeId)
	if !ok {
		return fmt.Errorf("ue context %d not found", req.UeId)
	}
	return emm.NetworkDetach(mme, ue, req.ReattachRequired)
}

func snapshot(mme *context.MmeContext, ueId int64) *mme_message.UeContextSnapshot {
	ue, ok := mme.UeContextById(ueId)
	if !ok {
		return nil
	}
	s := &mme_message.UeContextSnapshot{
		UeId:     ue.UeId,
		Imsi:     ue.Emm.Imsi.Value(),
		EmmState: string(ue.Emm.State.Current()),
		EcmState: string(ue.EcmState),
		Tai:      ue.Tai,
		TaiList:  append(ue.Emm.TaiList[:0:0], ue.Emm.TaiList...),
		PdnCount: ue.ActivePdnCount(),
	}
	if guti, ok := ue.Emm.Guti.Get(); ok {
		s.Guti = guti.String()
	}
	return s
}
