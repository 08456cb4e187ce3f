// SPDX-FileCopyrightText: 2024 Open Networking Foundation <info@opennetworking.org>
// SPDX-FileCopyrightText: 2021 Open Networking Foundation <info@opennetworking.org>
// Copyright 2019 free5GC.org
//
// SPDX-License-Identifier: Apache-2.0
//

package emm

import (
	"github.com/omec-project/mme/context"
	"github.com/omec-project/mme/emm/message"
	"github.com/omec-project/mme/nas/nasMessage"
	"github.com/omec-project/util/fsm"
)

func messageArgs(args fsm.ArgsType) (*context.MmeContext, *context.UeContext, *nasMessage.Message) {
	return args[ArgMme].(*context.MmeContext), args[ArgUeContext].(*context.UeContext),
		args[ArgNasMessage].(*nasMessage.Message)
}

func logEvent(args fsm.ArgsType, state fsm.StateType, event fsm.EventType) {
	if ue, ok := args[ArgUeContext].(*context.UeContext); ok {
		ue.Emm.Log.Debugf("%s at EMM state %s", event, state)
	}
}

// notCompatible answers a message the current state has no handler for.
func notCompatible(mme *context.MmeContext, ue *context.UeContext, msg *nasMessage.Message) {
	ue.Emm.Log.Warnf("message %T not compatible with EMM state %s", msg.Body, ue.Emm.State.Current())
	if err := message.SendEmmStatus(mme, ue, nasMessage.Cause98MessageTypeNotCompatibleWithState); err != nil {
		ue.Emm.Log.Errorf("send EMM Status failed: %+v", err)
	}
}

func Deregistered(state *fsm.State, event fsm.EventType, args fsm.ArgsType) {
	switch event {
	case EmmMessageEvent:
		mme, ue, msg := messageArgs(args)
		var err error
		switch body := msg.Body.(type) {
		case *nasMessage.AttachRequest:
			err = HandleAttachRequest(mme, ue, body)
		case *nasMessage.AttachComplete:
			err = HandleAttachComplete(mme, ue, body)
		case *nasMessage.DetachRequest:
			err = HandleDetachRequest(mme, ue, body)
		case *nasMessage.TrackingAreaUpdateRequest:
			err = HandleTrackingAreaUpdateRequest(mme, ue, body)
		case *nasMessage.ServiceRequest:
			err = HandleServiceRequest(mme, ue, body)
		case *nasMessage.ExtendedServiceRequest:
			err = HandleExtendedServiceRequest(mme, ue, body)
		case *nasMessage.EmmStatus:
			err = HandleEmmStatus(mme, ue, body)
		case *nasMessage.UplinkNasTransport:
			err = HandleUplinkNasTransport(mme, ue, body)
		default:
			notCompatible(mme, ue, msg)
		}
		if err != nil {
			ue.Emm.Log.Errorf("handle %T in state %s failed: %+v", msg.Body, state.Current(), err)
		}
	default:
		logEvent(args, context.Deregistered, event)
	}
}

func CommonProcedureInitiated(state *fsm.State, event fsm.EventType, args fsm.ArgsType) {
	switch event {
	case EmmMessageEvent:
		mme, ue, msg := messageArgs(args)
		var err error
		switch body := msg.Body.(type) {
		case *nasMessage.AuthenticationResponse:
			err = HandleAuthenticationResponse(mme, ue, body)
		case *nasMessage.AuthenticationFailure:
			err = HandleAuthenticationFailure(mme, ue, body)
		case *nasMessage.IdentityResponse:
			err = HandleIdentityResponse(mme, ue, body)
		case *nasMessage.SecurityModeComplete:
			err = HandleSecurityModeComplete(mme, ue, body)
		case *nasMessage.SecurityModeReject:
			err = HandleSecurityModeReject(mme, ue, body)
		case *nasMessage.AttachRequest:
			// a new attach aborts the running common procedure
			ue.Emm.Log.Infoln("attach request during common procedure, restarting")
			abortCommonProcedures(mme, ue)
			err = HandleAttachRequest(mme, ue, body)
		case *nasMessage.DetachRequest:
			err = HandleDetachRequest(mme, ue, body)
		case *nasMessage.ExtendedServiceRequest:
			err = HandleExtendedServiceRequest(mme, ue, body)
		case *nasMessage.EmmStatus:
			err = HandleEmmStatus(mme, ue, body)
		default:
			notCompatible(mme, ue, msg)
		}
		if err != nil {
			ue.Emm.Log.Errorf("handle %T in state %s failed: %+v", msg.Body, state.Current(), err)
		}
	default:
		logEvent(args, context.CommonProcedureInitiated, event)
	}
}

func Registered(state *fsm.State, event fsm.EventType, args fsm.ArgsType) {
	switch event {
	case fsm.EntryEvent:
		logEvent(args, context.Registered, event)
		if ue, ok := args[ArgUeContext].(*context.UeContext); ok {
			ue.Emm.Log.Infof("UE %s registered", ue.Emm.Imsi.Value())
		}
	case EmmMessageEvent:
		mme, ue, msg := messageArgs(args)
		var err error
		switch body := msg.Body.(type) {
		case *nasMessage.AttachRequest:
			err = HandleAttachRequest(mme, ue, body)
		case *nasMessage.AttachComplete:
			err = HandleAttachComplete(mme, ue, body)
		case *nasMessage.DetachRequest:
			err = HandleDetachRequest(mme, ue, body)
		case *nasMessage.TrackingAreaUpdateRequest:
			err = HandleTrackingAreaUpdateRequest(mme, ue, body)
		case *nasMessage.TrackingAreaUpdateComplete:
			err = HandleTrackingAreaUpdateComplete(mme, ue, body)
		case *nasMessage.ServiceRequest:
			err = HandleServiceRequest(mme, ue, body)
		case *nasMessage.ExtendedServiceRequest:
			err = HandleExtendedServiceRequest(mme, ue, body)
		case *nasMessage.EmmStatus:
			err = HandleEmmStatus(mme, ue, body)
		case *nasMessage.UplinkNasTransport:
			err = HandleUplinkNasTransport(mme, ue, body)
		default:
			notCompatible(mme, ue, msg)
		}
		if err != nil {
			ue.Emm.Log.Errorf("handle %T in state %s failed: %+v", msg.Body, state.Current(), err)
		}
	default:
		logEvent(args, context.Registered, event)
	}
}

func DeregistrationInitiated(state *fsm.State, event fsm.EventType, args fsm.ArgsType) {
	switch event {
	case EmmMessageEvent:
		mme, ue, msg := messageArgs(args)
		var err error
		switch body := msg.Body.(type) {
		case *nasMessage.DetachAccept:
			err = HandleDetachAccept(mme, ue, body)
		case *nasMessage.DetachRequest:
			err = HandleDetachRequest(mme, ue, body)
		case *nasMessage.EmmStatus:
			err = HandleEmmStatus(mme, ue, body)
		// the network detach proceeds; the UE is told it is no longer
		// registered and the context goes with the connection
		case *nasMessage.TrackingAreaUpdateRequest:
			err = HandleTrackingAreaUpdateRequest(mme, ue, body)
		case *nasMessage.ServiceRequest:
			err = HandleServiceRequest(mme, ue, body)
		case *nasMessage.ExtendedServiceRequest:
			err = HandleExtendedServiceRequest(mme, ue, body)
		default:
			notCompatible(mme, ue, msg)
		}
		if err != nil {
			ue.Emm.Log.Errorf("handle %T in state %s failed: %+v", msg.Body, state.Current(), err)
		}
	default:
		logEvent(args, context.DeregistrationInitiated, event)
	}
}
